package flow

import (
	"context"
	"log/slog"

	"github.com/bazaarlink/bazaarbot/internal/models"
	"github.com/bazaarlink/bazaarbot/internal/util"
)

// Settings menu selection ids.
const (
	settingsEditName     = "edit_name"
	settingsEditLocation = "edit_location"
	settingsDelete       = "delete_account"
)

// settingsTable resolves typed settings choices.
var settingsTable = Table{
	{Value: settingsEditName, Keywords: []string{"name"}},
	{Value: settingsEditLocation, Keywords: []string{"location", "address"}},
	{Value: settingsDelete, Keywords: []string{"delete", "remove", "deactivate"}},
}

// SettingsFlow lets a registered user update their profile or deactivate
// their account. Deactivation is a soft delete followed by clearing the
// session, so the next message starts from a clean slate.
type SettingsFlow struct{}

func (f *SettingsFlow) Type() models.FlowType { return models.FlowTypeSettings }

func (f *SettingsFlow) Start(ctx context.Context, fc *Context) error {
	if !fc.Registered() {
		if err := fc.Reply(ctx, "You need to register before changing settings."); err != nil {
			return err
		}
		return fc.StartFlow(ctx, models.FlowTypeRegistration)
	}
	if err := fc.Sessions.ClearTempData(ctx, fc.Session); err != nil {
		return err
	}
	if err := fc.Sessions.SetFlowStep(ctx, fc.Session, f.Type(), models.StepSettingsMenu); err != nil {
		return err
	}
	return f.promptMenu(ctx, fc)
}

func (f *SettingsFlow) Handle(ctx context.Context, fc *Context, msg models.IncomingMessage) error {
	switch fc.Session.CurrentStep {
	case models.StepSettingsMenu:
		return f.handleMenu(ctx, fc, msg)
	case models.StepSettingsEditName:
		return f.handleEditName(ctx, fc, msg)
	case models.StepSettingsEditLocation:
		return f.handleEditLocation(ctx, fc, msg)
	case models.StepSettingsConfirmDelete:
		return f.handleConfirmDelete(ctx, fc, msg)
	case models.StepSettingsDone:
		return fc.StartFlow(ctx, models.FlowTypeMainMenu)
	default:
		slog.Warn("Settings on unknown step, restarting", "step", fc.Session.CurrentStep, "phone", util.MaskPhone(fc.Phone()))
		return f.Start(ctx, fc)
	}
}

func (f *SettingsFlow) promptMenu(ctx context.Context, fc *Context) error {
	return fc.ReplyButtons(ctx, "Settings — what would you like to change?", []models.Button{
		{ID: settingsEditName, Title: "Change Name"},
		{ID: settingsEditLocation, Title: "Update Location"},
		{ID: settingsDelete, Title: "Delete Account"},
	})
}

func (f *SettingsFlow) handleMenu(ctx context.Context, fc *Context, msg models.IncomingMessage) error {
	choice, ok := settingsTable.Match(msg)
	if !ok {
		return f.promptMenu(ctx, fc)
	}
	switch choice {
	case settingsEditName:
		if err := fc.Sessions.SetStep(ctx, fc.Session, models.StepSettingsEditName); err != nil {
			return err
		}
		return fc.Reply(ctx, "What should I call you instead?")
	case settingsEditLocation:
		if err := fc.Sessions.SetStep(ctx, fc.Session, models.StepSettingsEditLocation); err != nil {
			return err
		}
		return fc.Reply(ctx, "Share your new location (📎 → Location).")
	case settingsDelete:
		if err := fc.Sessions.SetStep(ctx, fc.Session, models.StepSettingsConfirmDelete); err != nil {
			return err
		}
		return fc.ReplyButtons(ctx, "This deactivates your account. Your shop listings and offers will disappear. Are you sure?",
			yesNoButtons("Yes, delete", "No, keep it"))
	default:
		return f.promptMenu(ctx, fc)
	}
}

func (f *SettingsFlow) handleEditName(ctx context.Context, fc *Context, msg models.IncomingMessage) error {
	name, ok := ValidName(msg.TextContent())
	if !ok {
		return fc.Reply(ctx, "Please send your new name as text.")
	}
	if err := fc.Users.UpdateName(ctx, fc.User.ID, name); err != nil {
		return err
	}
	if err := fc.Sessions.SetStep(ctx, fc.Session, models.StepSettingsDone); err != nil {
		return err
	}
	return fc.ReplyButtons(ctx, "Done! I'll call you "+name+" from now on.",
		[]models.Button{{ID: ButtonMainMenu, Title: "Main Menu"}})
}

func (f *SettingsFlow) handleEditLocation(ctx context.Context, fc *Context, msg models.IncomingMessage) error {
	coords := msg.Coordinates()
	if coords == nil {
		return fc.Reply(ctx, "Please share a location (📎 → Location).")
	}
	if err := fc.Users.UpdateLocation(ctx, fc.User.ID, coords.Latitude, coords.Longitude); err != nil {
		return err
	}
	if err := fc.Sessions.SetStep(ctx, fc.Session, models.StepSettingsDone); err != nil {
		return err
	}
	return fc.ReplyButtons(ctx, "Location updated!",
		[]models.Button{{ID: ButtonMainMenu, Title: "Main Menu"}})
}

func (f *SettingsFlow) handleConfirmDelete(ctx context.Context, fc *Context, msg models.IncomingMessage) error {
	choice, ok := yesNoTable.Match(msg)
	if !ok {
		return fc.ReplyButtons(ctx, "Delete your account?", yesNoButtons("Yes, delete", "No, keep it"))
	}
	if choice != ChoiceYes {
		if err := fc.Reply(ctx, "No problem, your account stays."); err != nil {
			return err
		}
		return fc.StartFlow(ctx, models.FlowTypeMainMenu)
	}

	if err := fc.Users.Deactivate(ctx, fc.User.ID); err != nil {
		return err
	}
	if err := fc.Sessions.ClearAndUnlink(ctx, fc.Session); err != nil {
		return err
	}
	fc.User = nil
	return fc.Reply(ctx, "Your account has been deactivated. You can register again anytime. Goodbye! 👋")
}
