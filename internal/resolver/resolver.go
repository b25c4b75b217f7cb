package resolver

import (
	"context"
	"errors"
	"fmt"

	"github.com/loyaltyops/notify-dispatch/internal/model"
	"github.com/loyaltyops/notify-dispatch/internal/repo"
)

var (
	// ErrTemplateNotFound means an explicitly requested template does not
	// exist or is inactive. This is a caller contract violation, unlike the
	// event path where a missing binding is a silent no-op.
	ErrTemplateNotFound = errors.New("template not found")

	// ErrTriggerTypeMismatch means the template exists but may not be
	// dispatched the way the caller asked for.
	ErrTriggerTypeMismatch = errors.New("template trigger type mismatch")
)

// TemplateResolver turns event keys and template ids into dispatchable
// templates.
type TemplateResolver struct {
	templates repo.TemplateRepository
}

func NewTemplateResolver(templates repo.TemplateRepository) *TemplateResolver {
	return &TemplateResolver{templates: templates}
}

// ResolveByEventKey finds the active template bound to an active event.
// found=false covers every non-error miss: unknown or inactive event, event
// without a template binding, and inactive or missing template. Only storage
// failures return a non-nil error.
func (r *TemplateResolver) ResolveByEventKey(ctx context.Context, eventKey string) (*model.NotificationTemplate, bool, error) {
	ev, err := r.templates.FindActiveEventByKey(ctx, eventKey)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	if ev.TemplateID == nil {
		return nil, false, nil
	}

	tmpl, err := r.templates.FindActiveTemplateByID(ctx, *ev.TemplateID)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return tmpl, true, nil
}

// ResolveByID fetches an active template directly and verifies it may be
// dispatched with the given trigger type. A mismatch never falls back
// silently.
func (r *TemplateResolver) ResolveByID(ctx context.Context, templateID int64, want model.TriggerType) (*model.NotificationTemplate, error) {
	tmpl, err := r.templates.FindActiveTemplateByID(ctx, templateID)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, fmt.Errorf("%w: id=%d", ErrTemplateNotFound, templateID)
	}
	if err != nil {
		return nil, err
	}
	if tmpl.TriggerType != want {
		return nil, fmt.Errorf("%w: template %d is %q, want %q", ErrTriggerTypeMismatch, templateID, tmpl.TriggerType, want)
	}
	return tmpl, nil
}

// RecipientResolver loads a user's contact identifiers. It does not validate
// address formats; adapters decide addressability.
type RecipientResolver struct {
	users repo.RecipientRepository
}

func NewRecipientResolver(users repo.RecipientRepository) *RecipientResolver {
	return &RecipientResolver{users: users}
}

func (r *RecipientResolver) Resolve(ctx context.Context, userID int64) (*model.Recipient, error) {
	return r.users.FindUserByID(ctx, userID)
}
