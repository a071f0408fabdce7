package flow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/bazaarlink/bazaarbot/internal/models"
	"github.com/bazaarlink/bazaarbot/internal/services"
	"github.com/bazaarlink/bazaarbot/internal/util"
)

// RegistrationFlow collects name, role, shop details for shop owners, and
// location, then creates the user. There is no review step: registration
// completes as soon as the location arrives.
type RegistrationFlow struct{}

func (f *RegistrationFlow) Type() models.FlowType { return models.FlowTypeRegistration }

// Start enters the flow at the name step, dropping any stale temp data.
// Already-registered users are bounced back to the menu.
func (f *RegistrationFlow) Start(ctx context.Context, fc *Context) error {
	if fc.Registered() {
		if err := fc.Reply(ctx, "You are already registered."); err != nil {
			return err
		}
		return fc.StartFlow(ctx, models.FlowTypeMainMenu)
	}
	if err := fc.Sessions.ClearTempData(ctx, fc.Session); err != nil {
		return err
	}
	if err := fc.Sessions.SetFlowStep(ctx, fc.Session, f.Type(), models.StepRegName); err != nil {
		return err
	}
	return fc.Reply(ctx, "Let's get you registered! What is your name?")
}

func (f *RegistrationFlow) Handle(ctx context.Context, fc *Context, msg models.IncomingMessage) error {
	switch fc.Session.CurrentStep {
	case models.StepRegName:
		return f.handleName(ctx, fc, msg)
	case models.StepRegRole:
		return f.handleRole(ctx, fc, msg)
	case models.StepRegShopName:
		return f.handleShopName(ctx, fc, msg)
	case models.StepRegShopCategory:
		return f.handleShopCategory(ctx, fc, msg)
	case models.StepRegLocation:
		return f.handleLocation(ctx, fc, msg)
	case models.StepRegDone:
		return f.handleDone(ctx, fc, msg)
	default:
		slog.Warn("Registration on unknown step, restarting", "step", fc.Session.CurrentStep, "phone", util.MaskPhone(fc.Phone()))
		return f.Start(ctx, fc)
	}
}

func (f *RegistrationFlow) handleName(ctx context.Context, fc *Context, msg models.IncomingMessage) error {
	name, ok := ValidName(msg.TextContent())
	if !ok {
		return fc.Reply(ctx, fmt.Sprintf("Please send your name as text (up to %d characters).", models.MaxNameLength))
	}
	if err := fc.Sessions.MergeTempData(ctx, fc.Session, map[models.DataKey]string{models.DataKeyName: name}); err != nil {
		return err
	}
	if err := fc.Sessions.SetStep(ctx, fc.Session, models.StepRegRole); err != nil {
		return err
	}
	return f.promptRole(ctx, fc)
}

func (f *RegistrationFlow) promptRole(ctx context.Context, fc *Context) error {
	sections := []models.ListSection{{
		Title: "I am a...",
		Rows: []models.Button{
			{ID: string(models.RoleCustomer), Title: "Customer", Description: "I want to buy from local shops"},
			{ID: string(models.RoleShopOwner), Title: "Shop Owner", Description: "I run a shop"},
			{ID: string(models.RoleFishSeller), Title: "Fish Seller", Description: "I sell fresh fish"},
			{ID: string(models.RoleWorker), Title: "Worker", Description: "I offer my labour"},
		},
	}}
	return fc.ReplyList(ctx, fmt.Sprintf("Nice to meet you, %s! What best describes you?", fc.Session.Temp(models.DataKeyName, "")), "Select", sections)
}

func (f *RegistrationFlow) handleRole(ctx context.Context, fc *Context, msg models.IncomingMessage) error {
	value, ok := roleTable.Match(msg)
	if !ok || !models.IsValidRole(models.Role(value)) {
		return f.promptRole(ctx, fc)
	}
	if err := fc.Sessions.MergeTempData(ctx, fc.Session, map[models.DataKey]string{models.DataKeyRole: value}); err != nil {
		return err
	}

	// Shop owners detour through shop details before the location step.
	if models.Role(value) == models.RoleShopOwner {
		if err := fc.Sessions.SetStep(ctx, fc.Session, models.StepRegShopName); err != nil {
			return err
		}
		return fc.Reply(ctx, "What is your shop called?")
	}
	if err := fc.Sessions.SetStep(ctx, fc.Session, models.StepRegLocation); err != nil {
		return err
	}
	return f.promptLocation(ctx, fc)
}

func (f *RegistrationFlow) handleShopName(ctx context.Context, fc *Context, msg models.IncomingMessage) error {
	name, ok := ValidName(msg.TextContent())
	if !ok {
		return fc.Reply(ctx, "Please send your shop's name as text.")
	}
	if err := fc.Sessions.MergeTempData(ctx, fc.Session, map[models.DataKey]string{models.DataKeyShopName: name}); err != nil {
		return err
	}
	if err := fc.Sessions.SetStep(ctx, fc.Session, models.StepRegShopCategory); err != nil {
		return err
	}
	return f.promptShopCategory(ctx, fc)
}

func (f *RegistrationFlow) promptShopCategory(ctx context.Context, fc *Context) error {
	sections := []models.ListSection{{Title: "Categories", Rows: shopCategories}}
	return fc.ReplyList(ctx, "What does your shop sell?", "Select", sections)
}

func (f *RegistrationFlow) handleShopCategory(ctx context.Context, fc *Context, msg models.IncomingMessage) error {
	value, ok := categoryTable.Match(msg)
	if !ok {
		return f.promptShopCategory(ctx, fc)
	}
	if err := fc.Sessions.MergeTempData(ctx, fc.Session, map[models.DataKey]string{models.DataKeyShopCategory: value}); err != nil {
		return err
	}
	if err := fc.Sessions.SetStep(ctx, fc.Session, models.StepRegLocation); err != nil {
		return err
	}
	return f.promptLocation(ctx, fc)
}

func (f *RegistrationFlow) promptLocation(ctx context.Context, fc *Context) error {
	return fc.Reply(ctx, "Last step: share your location. Tap the 📎 attachment icon and choose Location.")
}

func (f *RegistrationFlow) handleLocation(ctx context.Context, fc *Context, msg models.IncomingMessage) error {
	coords := msg.Coordinates()
	if coords == nil {
		return f.promptLocation(ctx, fc)
	}

	role := models.Role(fc.Session.Temp(models.DataKeyRole, ""))
	user, err := fc.Users.Register(ctx, services.RegisterUserInput{
		Phone:        fc.Phone(),
		Name:         fc.Session.Temp(models.DataKeyName, ""),
		Role:         role,
		Latitude:     coords.Latitude,
		Longitude:    coords.Longitude,
		ShopName:     fc.Session.Temp(models.DataKeyShopName, ""),
		ShopCategory: fc.Session.Temp(models.DataKeyShopCategory, ""),
	})
	if errors.Is(err, models.ErrAlreadyExists) {
		if err := fc.Reply(ctx, "This number is already registered."); err != nil {
			return err
		}
		return fc.StartFlow(ctx, models.FlowTypeMainMenu)
	}
	if err != nil {
		return err
	}

	if err := fc.Sessions.LinkUser(ctx, fc.Session, user.ID); err != nil {
		return err
	}
	fc.User = user
	if err := fc.Sessions.ClearTempData(ctx, fc.Session); err != nil {
		return err
	}
	if err := fc.Sessions.SetStep(ctx, fc.Session, models.StepRegDone); err != nil {
		return err
	}

	body := fmt.Sprintf("Welcome aboard, %s! You are registered. 🎉\n\nWhat next?", user.Name)
	return fc.ReplyButtons(ctx, body, []models.Button{
		{ID: ButtonViewMine, Title: "Browse Offers"},
		{ID: ButtonMainMenu, Title: "Main Menu"},
	})
}

func (f *RegistrationFlow) handleDone(ctx context.Context, fc *Context, msg models.IncomingMessage) error {
	choice, ok := whatNextTable.Match(msg)
	if !ok {
		choice = ButtonMainMenu
	}
	if choice == ButtonViewMine {
		return fc.StartFlow(ctx, models.FlowTypeOfferBrowse)
	}
	return fc.StartFlow(ctx, models.FlowTypeMainMenu)
}
