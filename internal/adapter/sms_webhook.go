package adapter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/loyaltyops/notify-dispatch/internal/model"
)

const smsProvider = "sms-webhook"

// SMSWebhook delivers SMS through an HTTP gateway that accepts
// {phoneNumber, message} and answers 202 with {messageId}.
type SMSWebhook struct {
	url    string
	client *http.Client
}

func NewSMSWebhook(url string) *SMSWebhook {
	return &SMSWebhook{
		url: url,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

type smsSendRequest struct {
	PhoneNumber string `json:"phoneNumber"`
	Message     string `json:"message"`
}

type gatewayResponse struct {
	Message   string `json:"message"`
	MessageID string `json:"messageId"`
}

func (a *SMSWebhook) Name() model.Channel { return model.ChannelSMS }

func (a *SMSWebhook) Send(ctx context.Context, address string, content Content) (Outcome, error) {
	reqBody, err := json.Marshal(smsSendRequest{
		PhoneNumber: address,
		Message:     content.Body,
	})
	if err != nil {
		return Outcome{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.url, bytes.NewReader(reqBody))
	if err != nil {
		return Outcome{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return Outcome{}, err
	}
	defer resp.Body.Close()

	return decodeGateway(resp, smsProvider)
}

// decodeGateway maps a gateway reply onto an Outcome. Rejections and
// malformed replies are delivery failures, not errors.
func decodeGateway(resp *http.Response, provider string) (Outcome, error) {
	body, _ := io.ReadAll(resp.Body)

	if resp.StatusCode != http.StatusAccepted {
		return Outcome{
			Provider: provider,
			Error:    fmt.Sprintf("unexpected status code: %d body=%q", resp.StatusCode, string(body)),
		}, nil
	}

	var gr gatewayResponse
	if err := json.Unmarshal(body, &gr); err != nil {
		return Outcome{
			Provider: provider,
			Error:    fmt.Sprintf("failed to decode json: %v body=%q", err, string(body)),
		}, nil
	}
	if gr.MessageID == "" {
		return Outcome{
			Provider: provider,
			Error:    fmt.Sprintf("missing messageId in response body=%q", string(body)),
		}, nil
	}

	return Outcome{
		Success:   true,
		MessageID: gr.MessageID,
		Provider:  provider,
	}, nil
}
