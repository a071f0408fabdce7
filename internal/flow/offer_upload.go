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

// validDaysTable resolves how long an offer stays active.
var validDaysTable = Table{
	{Value: "3", Keywords: []string{"3 days", "three days", "3"}},
	{Value: "7", Keywords: []string{"1 week", "week", "7"}},
	{Value: "30", Keywords: []string{"1 month", "month", "30"}},
}

// OfferUploadFlow lets a shop owner post a time-limited offer, with an
// optional photo pulled from an inbound image message.
type OfferUploadFlow struct{}

func (f *OfferUploadFlow) Type() models.FlowType { return models.FlowTypeOfferUpload }

func (f *OfferUploadFlow) Start(ctx context.Context, fc *Context) error {
	if !fc.Registered() || !fc.User.IsShopOwner() {
		if err := fc.Reply(ctx, "Only registered shop owners can upload offers."); err != nil {
			return err
		}
		return fc.StartFlow(ctx, models.FlowTypeMainMenu)
	}
	if err := fc.Sessions.ClearTempData(ctx, fc.Session); err != nil {
		return err
	}
	if err := fc.Sessions.SetFlowStep(ctx, fc.Session, f.Type(), models.StepUploadTitle); err != nil {
		return err
	}
	return fc.Reply(ctx, "Let's post an offer! What are you offering? Send a short title, e.g. \"Fresh mangoes 20% off\".")
}

func (f *OfferUploadFlow) Handle(ctx context.Context, fc *Context, msg models.IncomingMessage) error {
	switch fc.Session.CurrentStep {
	case models.StepUploadTitle:
		return f.handleTitle(ctx, fc, msg)
	case models.StepUploadPrice:
		return f.handlePrice(ctx, fc, msg)
	case models.StepUploadPhoto:
		return f.handlePhoto(ctx, fc, msg)
	case models.StepUploadValidDays:
		return f.handleValidDays(ctx, fc, msg)
	case models.StepUploadReview:
		return f.handleReview(ctx, fc, msg)
	case models.StepUploadDone:
		return f.handleDone(ctx, fc, msg)
	default:
		slog.Warn("OfferUpload on unknown step, restarting", "step", fc.Session.CurrentStep, "phone", util.MaskPhone(fc.Phone()))
		return f.Start(ctx, fc)
	}
}

func (f *OfferUploadFlow) handleTitle(ctx context.Context, fc *Context, msg models.IncomingMessage) error {
	title, ok := ValidName(msg.TextContent())
	if !ok {
		return fc.Reply(ctx, fmt.Sprintf("Please send a title as text (up to %d characters).", models.MaxNameLength))
	}
	if err := fc.Sessions.MergeTempData(ctx, fc.Session, map[models.DataKey]string{models.DataKeyOfferTitle: title}); err != nil {
		return err
	}
	if err := fc.Sessions.SetStep(ctx, fc.Session, models.StepUploadPrice); err != nil {
		return err
	}
	return fc.Reply(ctx, "What is the price in rupees?")
}

func (f *OfferUploadFlow) handlePrice(ctx context.Context, fc *Context, msg models.IncomingMessage) error {
	price, err := ParseAmount(msg.TextContent())
	if err != nil {
		return fc.Reply(ctx, "That doesn't look like a valid price. Send a number, e.g. 150.")
	}
	if err := fc.Sessions.MergeTempData(ctx, fc.Session, map[models.DataKey]string{models.DataKeyOfferPrice: FormatAmountValue(price)}); err != nil {
		return err
	}
	if err := fc.Sessions.SetStep(ctx, fc.Session, models.StepUploadPhoto); err != nil {
		return err
	}
	return fc.ReplyButtons(ctx, "Send a photo of the product, or skip.", []models.Button{skipButton()})
}

func (f *OfferUploadFlow) handlePhoto(ctx context.Context, fc *Context, msg models.IncomingMessage) error {
	photoURL := ""
	if !IsSkip(msg) {
		if msg.Kind != models.MessageKindImage || msg.MediaID() == "" {
			return fc.ReplyButtons(ctx, "Please send a photo, or skip.", []models.Button{skipButton()})
		}
		result := fc.Media.DownloadAndStore(ctx, msg.MediaID(), "offers")
		if !result.OK {
			slog.Warn("Offer photo download failed", "error", result.Err, "phone", util.MaskPhone(fc.Phone()))
			return fc.ReplyButtons(ctx, "I couldn't save that photo. Send it again, or skip.", []models.Button{skipButton()})
		}
		photoURL = result.Path
	}
	if err := fc.Sessions.MergeTempData(ctx, fc.Session, map[models.DataKey]string{models.DataKeyOfferPhotoURL: photoURL}); err != nil {
		return err
	}
	if err := fc.Sessions.SetStep(ctx, fc.Session, models.StepUploadValidDays); err != nil {
		return err
	}
	return f.promptValidDays(ctx, fc)
}

func (f *OfferUploadFlow) promptValidDays(ctx context.Context, fc *Context) error {
	return fc.ReplyButtons(ctx, "How long should this offer stay up?", []models.Button{
		{ID: "3", Title: "3 days"},
		{ID: "7", Title: "1 week"},
		{ID: "30", Title: "1 month"},
	})
}

func (f *OfferUploadFlow) handleValidDays(ctx context.Context, fc *Context, msg models.IncomingMessage) error {
	value, ok := validDaysTable.Match(msg)
	if !ok {
		return f.promptValidDays(ctx, fc)
	}
	if _, err := strconv.Atoi(value); err != nil {
		return f.promptValidDays(ctx, fc)
	}
	if err := fc.Sessions.MergeTempData(ctx, fc.Session, map[models.DataKey]string{models.DataKeyOfferValidDays: value}); err != nil {
		return err
	}
	if err := fc.Sessions.SetStep(ctx, fc.Session, models.StepUploadReview); err != nil {
		return err
	}
	return f.promptReview(ctx, fc)
}

func (f *OfferUploadFlow) promptReview(ctx context.Context, fc *Context) error {
	sess := fc.Session
	photo := "no photo"
	if sess.Temp(models.DataKeyOfferPhotoURL, "") != "" {
		photo = "photo attached"
	}
	body := fmt.Sprintf("Please review your offer:\n\n%s\nPrice: ₹%s\nActive for %s days (%s)",
		sess.Temp(models.DataKeyOfferTitle, "?"),
		sess.Temp(models.DataKeyOfferPrice, "?"),
		sess.Temp(models.DataKeyOfferValidDays, "?"),
		photo)
	return fc.ReplyButtons(ctx, body, reviewButtons())
}

func (f *OfferUploadFlow) handleReview(ctx context.Context, fc *Context, msg models.IncomingMessage) error {
	choice, ok := reviewTable.Match(msg)
	if !ok {
		return f.promptReview(ctx, fc)
	}
	switch choice {
	case ChoiceConfirm:
		return f.create(ctx, fc)
	case ChoiceEdit:
		return f.Start(ctx, fc)
	case ChoiceCancel:
		return fc.StartFlow(ctx, models.FlowTypeMainMenu)
	default:
		return f.promptReview(ctx, fc)
	}
}

func (f *OfferUploadFlow) create(ctx context.Context, fc *Context) error {
	sess := fc.Session
	price, err := strconv.ParseFloat(sess.Temp(models.DataKeyOfferPrice, "0"), 64)
	if err != nil {
		return fmt.Errorf("corrupt price in temp data: %w", err)
	}
	validDays, err := strconv.Atoi(sess.Temp(models.DataKeyOfferValidDays, "7"))
	if err != nil {
		return fmt.Errorf("corrupt validity in temp data: %w", err)
	}

	offer, err := fc.Offers.Create(ctx, fc.User, services.CreateOfferInput{
		Title:     sess.Temp(models.DataKeyOfferTitle, ""),
		Price:     price,
		PhotoURL:  sess.Temp(models.DataKeyOfferPhotoURL, ""),
		ValidDays: validDays,
	})
	if err != nil {
		return err
	}

	if err := fc.Sessions.ClearTempData(ctx, fc.Session); err != nil {
		return err
	}
	if err := fc.Sessions.SetStep(ctx, fc.Session, models.StepUploadDone); err != nil {
		return err
	}

	body := fmt.Sprintf("Your offer \"%s\" is live until %s! 🎉\n\nWhat next?", offer.Title, offer.ValidUntil.Format("2 Jan 2006"))
	return fc.ReplyButtons(ctx, body, whatNextButtons("Post Another", ""))
}

func (f *OfferUploadFlow) handleDone(ctx context.Context, fc *Context, msg models.IncomingMessage) error {
	if choice, ok := whatNextTable.Match(msg); ok && choice == ButtonAgain {
		return f.Start(ctx, fc)
	}
	return fc.StartFlow(ctx, models.FlowTypeMainMenu)
}
