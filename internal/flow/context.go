package flow

import (
	"context"

	"github.com/bazaarlink/bazaarbot/internal/media"
	"github.com/bazaarlink/bazaarbot/internal/messaging"
	"github.com/bazaarlink/bazaarbot/internal/models"
	"github.com/bazaarlink/bazaarbot/internal/services"
	"github.com/bazaarlink/bazaarbot/internal/session"
)

// Deps bundles the long-lived collaborators every handler needs. Built once
// at startup and shared across all flows.
type Deps struct {
	Sessions   *session.Manager
	Sender     messaging.Sender
	Users      *services.Users
	Agreements *services.Agreements
	Offers     *services.Offers
	Products   *services.Products
	Catches    *services.Catches
	Media      *media.Store

	// Trigger is set right after construction; handlers use it to open a
	// flow on another phone's session.
	Trigger *Trigger
}

// Context is the per-message state handed to a handler: the locked session
// being advanced and the registered user behind it (nil when unregistered).
type Context struct {
	*Deps
	Session *models.Session
	User    *models.User
}

// Phone returns the phone number the session belongs to.
func (fc *Context) Phone() string {
	return fc.Session.Phone
}

// Registered reports whether this session belongs to an active registered user.
func (fc *Context) Registered() bool {
	return fc.User != nil && fc.User.Active
}

// Reply sends a text message back to the session's phone.
func (fc *Context) Reply(ctx context.Context, body string) error {
	return fc.Sender.SendText(ctx, fc.Phone(), body)
}

// ReplyButtons sends a button prompt back to the session's phone.
func (fc *Context) ReplyButtons(ctx context.Context, body string, buttons []models.Button) error {
	return fc.Sender.SendButtons(ctx, fc.Phone(), body, buttons)
}

// ReplyList sends a list prompt back to the session's phone.
func (fc *Context) ReplyList(ctx context.Context, body, buttonLabel string, sections []models.ListSection) error {
	return fc.Sender.SendList(ctx, fc.Phone(), body, buttonLabel, sections)
}

// StartFlow switches the session into another flow and runs its Start.
// Used for flow-to-flow handoff within the same locked session, e.g. a
// terminal step jumping back to the main menu.
func (fc *Context) StartFlow(ctx context.Context, ft models.FlowType) error {
	h, ok := Get(ft)
	if !ok {
		h, _ = Get(models.FlowTypeMainMenu)
	}
	if err := fc.Sessions.SetFlowStep(ctx, fc.Session, h.Type(), models.StepNone); err != nil {
		return err
	}
	if err := fc.Sessions.ClearTempData(ctx, fc.Session); err != nil {
		return err
	}
	return h.Start(ctx, fc)
}
