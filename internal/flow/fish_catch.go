package flow

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/bazaarlink/bazaarbot/internal/models"
	"github.com/bazaarlink/bazaarbot/internal/services"
	"github.com/bazaarlink/bazaarbot/internal/util"
)

// FishCatchPostFlow lets a fish seller announce today's catch. The flow
// ends on the location share; there is no review step since catches are
// time-sensitive.
type FishCatchPostFlow struct{}

func (f *FishCatchPostFlow) Type() models.FlowType { return models.FlowTypeFishCatchPost }

func (f *FishCatchPostFlow) Start(ctx context.Context, fc *Context) error {
	if !fc.Registered() || !fc.User.IsFishSeller() {
		if err := fc.Reply(ctx, "Only registered fish sellers can post catches."); err != nil {
			return err
		}
		return fc.StartFlow(ctx, models.FlowTypeMainMenu)
	}
	if err := fc.Sessions.ClearTempData(ctx, fc.Session); err != nil {
		return err
	}
	if err := fc.Sessions.SetFlowStep(ctx, fc.Session, f.Type(), models.StepCatchSpecies); err != nil {
		return err
	}
	return fc.Reply(ctx, "Fresh catch! 🐟 What fish did you catch today?")
}

func (f *FishCatchPostFlow) Handle(ctx context.Context, fc *Context, msg models.IncomingMessage) error {
	switch fc.Session.CurrentStep {
	case models.StepCatchSpecies:
		return f.handleSpecies(ctx, fc, msg)
	case models.StepCatchQuantity:
		return f.handleQuantity(ctx, fc, msg)
	case models.StepCatchPrice:
		return f.handlePrice(ctx, fc, msg)
	case models.StepCatchPhoto:
		return f.handlePhoto(ctx, fc, msg)
	case models.StepCatchLocation:
		return f.handleLocation(ctx, fc, msg)
	case models.StepCatchDone:
		return f.handleDone(ctx, fc, msg)
	default:
		slog.Warn("FishCatchPost on unknown step, restarting", "step", fc.Session.CurrentStep, "phone", util.MaskPhone(fc.Phone()))
		return f.Start(ctx, fc)
	}
}

func (f *FishCatchPostFlow) handleSpecies(ctx context.Context, fc *Context, msg models.IncomingMessage) error {
	species, ok := ValidName(msg.TextContent())
	if !ok {
		return fc.Reply(ctx, "Please send the fish name as text, e.g. \"Pomfret\".")
	}
	if err := fc.Sessions.MergeTempData(ctx, fc.Session, map[models.DataKey]string{models.DataKeySpecies: species}); err != nil {
		return err
	}
	if err := fc.Sessions.SetStep(ctx, fc.Session, models.StepCatchQuantity); err != nil {
		return err
	}
	return fc.Reply(ctx, "How much do you have? E.g. \"15 kg\".")
}

func (f *FishCatchPostFlow) handleQuantity(ctx context.Context, fc *Context, msg models.IncomingMessage) error {
	if _, err := ParseQuantity(msg.TextContent()); err != nil {
		return fc.Reply(ctx, "Send a quantity like \"15 kg\" or \"20 pieces\".")
	}
	if err := fc.Sessions.MergeTempData(ctx, fc.Session, map[models.DataKey]string{models.DataKeyQuantity: msg.TextContent()}); err != nil {
		return err
	}
	if err := fc.Sessions.SetStep(ctx, fc.Session, models.StepCatchPrice); err != nil {
		return err
	}
	return fc.Reply(ctx, "What price per kg, in rupees?")
}

func (f *FishCatchPostFlow) handlePrice(ctx context.Context, fc *Context, msg models.IncomingMessage) error {
	price, err := ParseAmount(msg.TextContent())
	if err != nil {
		return fc.Reply(ctx, "That doesn't look like a valid price. Send a number, e.g. 300.")
	}
	if err := fc.Sessions.MergeTempData(ctx, fc.Session, map[models.DataKey]string{models.DataKeyAmount: FormatAmountValue(price)}); err != nil {
		return err
	}
	if err := fc.Sessions.SetStep(ctx, fc.Session, models.StepCatchPhoto); err != nil {
		return err
	}
	return fc.ReplyButtons(ctx, "Send a photo of the catch, or skip.", []models.Button{skipButton()})
}

func (f *FishCatchPostFlow) handlePhoto(ctx context.Context, fc *Context, msg models.IncomingMessage) error {
	photoURL := ""
	if !IsSkip(msg) {
		if msg.Kind != models.MessageKindImage || msg.MediaID() == "" {
			return fc.ReplyButtons(ctx, "Please send a photo, or skip.", []models.Button{skipButton()})
		}
		result := fc.Media.DownloadAndStore(ctx, msg.MediaID(), "catches")
		if !result.OK {
			slog.Warn("Catch photo download failed", "error", result.Err, "phone", util.MaskPhone(fc.Phone()))
			return fc.ReplyButtons(ctx, "I couldn't save that photo. Send it again, or skip.", []models.Button{skipButton()})
		}
		photoURL = result.Path
	}
	if err := fc.Sessions.MergeTempData(ctx, fc.Session, map[models.DataKey]string{models.DataKeyCatchPhotoURL: photoURL}); err != nil {
		return err
	}
	if err := fc.Sessions.SetStep(ctx, fc.Session, models.StepCatchLocation); err != nil {
		return err
	}
	return fc.Reply(ctx, "Where can buyers find you? Share your location (📎 → Location).")
}

func (f *FishCatchPostFlow) handleLocation(ctx context.Context, fc *Context, msg models.IncomingMessage) error {
	coords := msg.Coordinates()
	if coords == nil {
		return fc.Reply(ctx, "Please share a location so buyers can find you (📎 → Location).")
	}

	sess := fc.Session
	price, err := strconv.ParseFloat(sess.Temp(models.DataKeyAmount, "0"), 64)
	if err != nil {
		return fmt.Errorf("corrupt price in temp data: %w", err)
	}
	catch, err := fc.Catches.Post(ctx, fc.User, services.PostCatchInput{
		Species:   sess.Temp(models.DataKeySpecies, ""),
		Quantity:  sess.Temp(models.DataKeyQuantity, ""),
		Price:     price,
		PhotoURL:  sess.Temp(models.DataKeyCatchPhotoURL, ""),
		Latitude:  coords.Latitude,
		Longitude: coords.Longitude,
	})
	if err != nil {
		return err
	}

	if err := fc.Sessions.ClearTempData(ctx, fc.Session); err != nil {
		return err
	}
	if err := fc.Sessions.SetStep(ctx, fc.Session, models.StepCatchDone); err != nil {
		return err
	}

	body := fmt.Sprintf("Your %s is on the market! 🎉\n\nWhat next?", catch.Species)
	return fc.ReplyButtons(ctx, body, whatNextButtons("Post Another", "Today's Catches"))
}

func (f *FishCatchPostFlow) handleDone(ctx context.Context, fc *Context, msg models.IncomingMessage) error {
	choice, ok := whatNextTable.Match(msg)
	if !ok {
		return fc.StartFlow(ctx, models.FlowTypeMainMenu)
	}
	switch choice {
	case ButtonAgain:
		return f.Start(ctx, fc)
	case ButtonViewMine:
		menu := &MainMenuFlow{}
		if err := menu.sendRecentCatches(ctx, fc); err != nil {
			return err
		}
		return fc.StartFlow(ctx, models.FlowTypeMainMenu)
	default:
		return fc.StartFlow(ctx, models.FlowTypeMainMenu)
	}
}
