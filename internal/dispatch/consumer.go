package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/loyaltyops/notify-dispatch/internal/template"
)

// EventMessage is the bus payload producers publish to trigger a
// notification. The schema is owned by producer/consumer pairs; the bus
// itself treats it as opaque.
type EventMessage struct {
	EventKey string        `json:"eventKey"`
	UserID   int64         `json:"userId"`
	Data     template.Data `json:"data"`
}

// HandleEventMessage decodes a bus payload and funnels it into
// TriggerByEvent. Decode failures are returned so the bus layer can apply
// its failure policy; unresolved events stay silent no-ops.
func (d *Dispatcher) HandleEventMessage(ctx context.Context, raw json.RawMessage) error {
	var msg EventMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return fmt.Errorf("decode event message: %w", err)
	}
	if msg.EventKey == "" {
		return errors.New("event message missing eventKey")
	}
	if msg.UserID == 0 {
		return errors.New("event message missing userId")
	}

	_, err := d.TriggerByEvent(ctx, msg.EventKey, msg.UserID, msg.Data)
	return err
}
