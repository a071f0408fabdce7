package flow

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/bazaarlink/bazaarbot/internal/models"
	"github.com/bazaarlink/bazaarbot/internal/util"
)

// Seedable is implemented by flows that can be entered through cross-session
// seeding. PromptSeeded sends the entry prompt for the step the session was
// seeded into.
type Seedable interface {
	PromptSeeded(ctx context.Context, fc *Context) error
}

// Trigger seeds another phone's session into a flow and delivers that flow's
// entry prompt. This is how one user's action (creating an agreement,
// posting a product request) opens a conversation with another user who
// never sent a message.
//
// Trigger acquires the target phone's session lock via Seed, so a handler
// must only ever trigger phones other than the one it is handling.
type Trigger struct {
	deps *Deps
}

// NewTrigger creates a Trigger over the shared handler dependencies.
func NewTrigger(deps *Deps) *Trigger {
	return &Trigger{deps: deps}
}

// Notify seeds phone into flow/step with tempData and sends the seeded
// step's entry prompt. The target's in-progress flow, if any, is
// overwritten.
func (t *Trigger) Notify(ctx context.Context, phone string, ft models.FlowType, step models.StepType, tempData map[models.DataKey]string) error {
	h, ok := Get(ft)
	if !ok {
		return fmt.Errorf("no handler registered for flow %s", ft)
	}
	seedable, ok := h.(Seedable)
	if !ok {
		return fmt.Errorf("flow %s cannot be entered by seeding", ft)
	}

	sess, err := t.deps.Sessions.Seed(ctx, phone, ft, step, tempData)
	if err != nil {
		return fmt.Errorf("failed to seed session: %w", err)
	}

	user, err := t.deps.Users.ByPhone(ctx, phone)
	if err != nil {
		slog.Warn("Trigger could not load target user, prompting anyway", "error", err, "phone", util.MaskPhone(phone))
	}

	fc := &Context{Deps: t.deps, Session: sess, User: user}
	if err := seedable.PromptSeeded(ctx, fc); err != nil {
		return fmt.Errorf("failed to send seeded prompt: %w", err)
	}
	slog.Info("Triggered flow on target session", "flow", ft, "step", step, "phone", util.MaskPhone(phone))
	return nil
}

// NotifyLater runs Notify on its own goroutine. Handlers hold their own
// phone's session lock while running, so they must use this form; calling
// Notify inline from two handlers seeding each other would deadlock.
func (t *Trigger) NotifyLater(ctx context.Context, phone string, ft models.FlowType, step models.StepType, tempData map[models.DataKey]string) {
	bg := context.WithoutCancel(ctx)
	go func() {
		if err := t.Notify(bg, phone, ft, step, tempData); err != nil {
			slog.Error("Deferred trigger failed", "error", err, "flow", ft, "phone", util.MaskPhone(phone))
		}
	}()
}
