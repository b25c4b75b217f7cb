package adapter

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/loyaltyops/notify-dispatch/internal/model"
)

const pushProvider = "push-webhook"

// PushWebhook delivers push notifications through an HTTP gateway that
// accepts {token, title, body} and answers 202 with {messageId}.
type PushWebhook struct {
	url    string
	client *http.Client
}

func NewPushWebhook(url string) *PushWebhook {
	return &PushWebhook{
		url: url,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

type pushSendRequest struct {
	Token string `json:"token"`
	Title string `json:"title"`
	Body  string `json:"body"`
}

func (a *PushWebhook) Name() model.Channel { return model.ChannelPush }

func (a *PushWebhook) Send(ctx context.Context, address string, content Content) (Outcome, error) {
	reqBody, err := json.Marshal(pushSendRequest{
		Token: address,
		Title: content.Title,
		Body:  content.Body,
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

	return decodeGateway(resp, pushProvider)
}
