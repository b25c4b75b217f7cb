package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/loyaltyops/notify-dispatch/internal/adapter"
	"github.com/loyaltyops/notify-dispatch/internal/cache"
	"github.com/loyaltyops/notify-dispatch/internal/model"
	"github.com/loyaltyops/notify-dispatch/internal/repo"
	"github.com/loyaltyops/notify-dispatch/internal/template"
)

// DefaultSendTimeout bounds each adapter call. Override with
// WithSendTimeout; there is no infinite wait.
const DefaultSendTimeout = 10 * time.Second

// TemplateSource resolves templates for dispatch. The two entry points carry
// deliberately different miss semantics: event resolution degrades
// gracefully (found=false), explicit resolution fails loudly.
type TemplateSource interface {
	ResolveByEventKey(ctx context.Context, eventKey string) (*model.NotificationTemplate, bool, error)
	ResolveByID(ctx context.Context, templateID int64, want model.TriggerType) (*model.NotificationTemplate, error)
}

type RecipientSource interface {
	Resolve(ctx context.Context, userID int64) (*model.Recipient, error)
}

// CampaignResult is one entry of a campaign's partial-failure report. Every
// targeted user gets exactly one entry regardless of other users' failures.
type CampaignResult struct {
	UserID   int64                   `json:"userId"`
	Outcomes []model.DeliveryOutcome `json:"outcomes"`
	Error    string                  `json:"error,omitempty"`
}

// Dispatcher orchestrates one notification send: resolve recipient, render
// per-channel content, invoke adapters, and append a delivery-attempt row per
// channel actually attempted. Channel failures are recorded, never raised.
type Dispatcher struct {
	templates  TemplateSource
	recipients RecipientSource
	log        repo.DeliveryLogRepository
	sms        adapter.Channel
	push       adapter.Channel

	outcomes    cache.OutcomeCache
	sendTimeout time.Duration
}

func NewDispatcher(templates TemplateSource, recipients RecipientSource, log repo.DeliveryLogRepository, sms, push adapter.Channel) *Dispatcher {
	return &Dispatcher{
		templates:   templates,
		recipients:  recipients,
		log:         log,
		sms:         sms,
		push:        push,
		sendTimeout: DefaultSendTimeout,
	}
}

// WithOutcomeCache mirrors delivery outcomes into a cache, best effort.
func (d *Dispatcher) WithOutcomeCache(c cache.OutcomeCache) *Dispatcher {
	d.outcomes = c
	return d
}

func (d *Dispatcher) WithSendTimeout(timeout time.Duration) *Dispatcher {
	if timeout > 0 {
		d.sendTimeout = timeout
	}
	return d
}

// Dispatch sends tmpl to one user over every channel the template defines and
// the recipient is addressable on. SMS is attempted before push. An unknown
// user is not an error: a missing recipient must never abort a batch send, so
// it logs a warning and yields no outcomes. The returned error covers storage
// failures only.
func (d *Dispatcher) Dispatch(ctx context.Context, userID int64, tmpl *model.NotificationTemplate, data template.Data) ([]model.DeliveryOutcome, error) {
	dispatchID := uuid.NewString()

	rec, err := d.recipients.Resolve(ctx, userID)
	if errors.Is(err, repo.ErrNotFound) {
		slog.Warn("recipient not found, skipping dispatch",
			"user_id", userID,
			"template_id", tmpl.ID,
			"dispatch_id", dispatchID,
		)
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var outcomes []model.DeliveryOutcome

	// A channel with no renderable body or no recipient address is not an
	// error, it is non-applicable: skipped without an attempt row.
	if tmpl.SMSBody != "" && rec.HasPhone() {
		content := adapter.Content{Body: template.Render(tmpl.SMSBody, data)}
		out := d.attempt(ctx, d.sms, rec.PhoneNumber, content)
		outcomes = append(outcomes, d.record(ctx, dispatchID, userID, tmpl, d.sms.Name(), out))
	}

	if tmpl.PushBody != "" && rec.HasPushToken() {
		content := adapter.Content{
			Title: template.Render(tmpl.PushTitle, data),
			Body:  template.Render(tmpl.PushBody, data),
		}
		out := d.attempt(ctx, d.push, rec.PushToken, content)
		outcomes = append(outcomes, d.record(ctx, dispatchID, userID, tmpl, d.push.Name(), out))
	}

	return outcomes, nil
}

// TriggerByEvent resolves the template bound to eventKey and dispatches.
// An unresolved event is a silent no-op: automatic triggers degrade
// gracefully.
func (d *Dispatcher) TriggerByEvent(ctx context.Context, eventKey string, userID int64, data template.Data) ([]model.DeliveryOutcome, error) {
	tmpl, found, err := d.templates.ResolveByEventKey(ctx, eventKey)
	if err != nil {
		return nil, err
	}
	if !found {
		slog.Warn("no active template bound to event, skipping",
			"event_key", eventKey,
			"user_id", userID,
		)
		return nil, nil
	}
	return d.Dispatch(ctx, userID, tmpl, data)
}

// SendManual dispatches an explicitly chosen manual template to one user.
// Resolution failures are caller contract violations and propagate.
func (d *Dispatcher) SendManual(ctx context.Context, userID, templateID int64, data template.Data) ([]model.DeliveryOutcome, error) {
	tmpl, err := d.templates.ResolveByID(ctx, templateID, model.TriggerManual)
	if err != nil {
		return nil, err
	}
	return d.Dispatch(ctx, userID, tmpl, data)
}

// SendCampaign dispatches a campaign template to every user in userIDs,
// sequentially and independently. One recipient's failure never aborts the
// rest; the report carries one entry per user. Only template resolution may
// fail the whole call.
func (d *Dispatcher) SendCampaign(ctx context.Context, userIDs []int64, templateID int64, data template.Data) ([]CampaignResult, error) {
	tmpl, err := d.templates.ResolveByID(ctx, templateID, model.TriggerCampaign)
	if err != nil {
		return nil, err
	}

	results := make([]CampaignResult, 0, len(userIDs))
	for _, userID := range userIDs {
		entry := CampaignResult{UserID: userID}

		outcomes, err := d.Dispatch(ctx, userID, tmpl, data)
		if err != nil {
			entry.Error = err.Error()
			slog.Error("campaign dispatch failed for user",
				"user_id", userID,
				"template_id", templateID,
				"err", err,
			)
		}
		entry.Outcomes = outcomes
		results = append(results, entry)
	}
	return results, nil
}

// attempt invokes one adapter with the configured timeout and converts
// transport errors into failed outcomes so they never leak past dispatch.
func (d *Dispatcher) attempt(ctx context.Context, ch adapter.Channel, address string, content adapter.Content) adapter.Outcome {
	sendCtx, cancel := context.WithTimeout(ctx, d.sendTimeout)
	defer cancel()

	out, err := ch.Send(sendCtx, address, content)
	if err != nil {
		return adapter.Outcome{
			Provider: string(ch.Name()),
			Error:    err.Error(),
		}
	}
	return out
}

type attemptMetadata struct {
	DispatchID string `json:"dispatchId"`
	Provider   string `json:"provider,omitempty"`
	MessageID  string `json:"messageId,omitempty"`
	Error      string `json:"error,omitempty"`
}

// record appends the delivery-attempt row for one adapter call and returns
// the caller-facing outcome. The row is written whether the send succeeded or
// failed; a failed write is logged, not raised.
func (d *Dispatcher) record(ctx context.Context, dispatchID string, userID int64, tmpl *model.NotificationTemplate, channel model.Channel, out adapter.Outcome) model.DeliveryOutcome {
	status := model.DeliverySent
	if !out.Success {
		status = model.DeliveryFailed
	}

	meta, _ := json.Marshal(attemptMetadata{
		DispatchID: dispatchID,
		Provider:   out.Provider,
		MessageID:  out.MessageID,
		Error:      out.Error,
	})

	now := time.Now().UTC()
	att := &model.DeliveryAttempt{
		UserID:      userID,
		Channel:     channel,
		TemplateID:  tmpl.ID,
		TriggerType: tmpl.TriggerType,
		Status:      status,
		Metadata:    string(meta),
		SentAt:      now,
	}
	if err := d.log.Insert(ctx, att); err != nil {
		slog.Error("failed to write delivery attempt",
			"user_id", userID,
			"channel", channel,
			"dispatch_id", dispatchID,
			"err", err,
		)
	}

	result := model.DeliveryOutcome{
		Channel:   channel,
		Success:   out.Success,
		Provider:  out.Provider,
		MessageID: out.MessageID,
		Error:     out.Error,
	}

	if d.outcomes != nil {
		if err := d.outcomes.StoreOutcome(ctx, userID, channel, result, now); err != nil {
			slog.Warn("failed to cache delivery outcome",
				"user_id", userID,
				"channel", channel,
				"err", err,
			)
		}
	}

	return result
}
