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

// ProductSearchFlow collects a "who has this?" request and broadcasts it:
// every eligible shop's session is seeded into the respond flow. The
// requester's own shop, if any, is excluded by the service layer, which
// also keeps the trigger away from the phone this handler has locked.
type ProductSearchFlow struct{}

func (f *ProductSearchFlow) Type() models.FlowType { return models.FlowTypeProductSearch }

func (f *ProductSearchFlow) Start(ctx context.Context, fc *Context) error {
	if !fc.Registered() {
		if err := fc.Reply(ctx, "You need to register before asking shops for products."); err != nil {
			return err
		}
		return fc.StartFlow(ctx, models.FlowTypeRegistration)
	}
	if err := fc.Sessions.ClearTempData(ctx, fc.Session); err != nil {
		return err
	}
	if err := fc.Sessions.SetFlowStep(ctx, fc.Session, f.Type(), models.StepSearchProduct); err != nil {
		return err
	}
	return fc.Reply(ctx, "What are you looking for? Send the product name, e.g. \"pressure cooker\".")
}

func (f *ProductSearchFlow) Handle(ctx context.Context, fc *Context, msg models.IncomingMessage) error {
	switch fc.Session.CurrentStep {
	case models.StepSearchProduct:
		return f.handleProduct(ctx, fc, msg)
	case models.StepSearchQuantity:
		return f.handleQuantity(ctx, fc, msg)
	case models.StepSearchNotes:
		return f.handleNotes(ctx, fc, msg)
	case models.StepSearchReview:
		return f.handleReview(ctx, fc, msg)
	case models.StepSearchDone:
		return f.handleDone(ctx, fc, msg)
	default:
		slog.Warn("ProductSearch on unknown step, restarting", "step", fc.Session.CurrentStep, "phone", util.MaskPhone(fc.Phone()))
		return f.Start(ctx, fc)
	}
}

func (f *ProductSearchFlow) handleProduct(ctx context.Context, fc *Context, msg models.IncomingMessage) error {
	product, ok := ValidName(msg.TextContent())
	if !ok {
		return fc.Reply(ctx, "Please send the product name as text.")
	}
	if err := fc.Sessions.MergeTempData(ctx, fc.Session, map[models.DataKey]string{models.DataKeyProduct: product}); err != nil {
		return err
	}
	if err := fc.Sessions.SetStep(ctx, fc.Session, models.StepSearchQuantity); err != nil {
		return err
	}
	return fc.ReplyButtons(ctx, "How much do you need? E.g. \"2\" or \"5 kg\", or skip.", []models.Button{skipButton()})
}

func (f *ProductSearchFlow) handleQuantity(ctx context.Context, fc *Context, msg models.IncomingMessage) error {
	quantity := ""
	if !IsSkip(msg) {
		if _, err := ParseQuantity(msg.TextContent()); err != nil {
			return fc.ReplyButtons(ctx, "Send a quantity like \"2\" or \"5 kg\", or skip.", []models.Button{skipButton()})
		}
		quantity = msg.TextContent()
	}
	if err := fc.Sessions.MergeTempData(ctx, fc.Session, map[models.DataKey]string{models.DataKeyQuantity: quantity}); err != nil {
		return err
	}
	if err := fc.Sessions.SetStep(ctx, fc.Session, models.StepSearchNotes); err != nil {
		return err
	}
	return fc.ReplyButtons(ctx, "Anything the shops should know? Brand, size, colour... or skip.", []models.Button{skipButton()})
}

func (f *ProductSearchFlow) handleNotes(ctx context.Context, fc *Context, msg models.IncomingMessage) error {
	notes := ""
	if !IsSkip(msg) {
		text, ok := ValidFreeText(msg.TextContent())
		if !ok || text == "" {
			return fc.ReplyButtons(ctx, fmt.Sprintf("Please send a short note (up to %d characters), or skip.", models.MaxFreeTextLength), []models.Button{skipButton()})
		}
		notes = text
	}
	if err := fc.Sessions.MergeTempData(ctx, fc.Session, map[models.DataKey]string{models.DataKeyNotes: notes}); err != nil {
		return err
	}
	if err := fc.Sessions.SetStep(ctx, fc.Session, models.StepSearchReview); err != nil {
		return err
	}
	return f.promptReview(ctx, fc)
}

func (f *ProductSearchFlow) promptReview(ctx context.Context, fc *Context) error {
	sess := fc.Session
	body := "Ready to ask shops:\n\nProduct: " + sess.Temp(models.DataKeyProduct, "?")
	if q := sess.Temp(models.DataKeyQuantity, ""); q != "" {
		body += "\nQuantity: " + q
	}
	if n := sess.Temp(models.DataKeyNotes, ""); n != "" {
		body += "\nNotes: " + n
	}
	return fc.ReplyButtons(ctx, body, reviewButtons())
}

func (f *ProductSearchFlow) handleReview(ctx context.Context, fc *Context, msg models.IncomingMessage) error {
	choice, ok := reviewTable.Match(msg)
	if !ok {
		return f.promptReview(ctx, fc)
	}
	switch choice {
	case ChoiceConfirm:
		return f.broadcast(ctx, fc)
	case ChoiceEdit:
		return f.Start(ctx, fc)
	case ChoiceCancel:
		return fc.StartFlow(ctx, models.FlowTypeMainMenu)
	default:
		return f.promptReview(ctx, fc)
	}
}

// broadcast creates the request and seeds every eligible shop's session.
func (f *ProductSearchFlow) broadcast(ctx context.Context, fc *Context) error {
	sess := fc.Session
	request, err := fc.Products.CreateRequest(ctx, fc.User, services.CreateRequestInput{
		Product:  sess.Temp(models.DataKeyProduct, ""),
		Quantity: sess.Temp(models.DataKeyQuantity, ""),
		Notes:    sess.Temp(models.DataKeyNotes, ""),
	})
	if err != nil {
		return err
	}

	shops, err := fc.Products.FindEligibleShops(ctx, request)
	if err != nil {
		return err
	}
	for _, shop := range shops {
		fc.Trigger.NotifyLater(ctx, shop.Phone, models.FlowTypeProductRespond, models.StepRespondAwaiting,
			map[models.DataKey]string{models.DataKeyRespondRequestID: request.ID})
	}

	if err := fc.Sessions.ClearTempData(ctx, fc.Session); err != nil {
		return err
	}
	if err := fc.Sessions.SetStep(ctx, fc.Session, models.StepSearchDone); err != nil {
		return err
	}

	var body string
	if len(shops) == 0 {
		body = fmt.Sprintf("I've noted your request for %s, but no shops match it yet. I'll keep it open.\n\nWhat next?", request.Product)
	} else {
		body = fmt.Sprintf("Asked %s about your %s. I'll forward their answers as they come in.\n\nWhat next?",
			pluralShops(len(shops)), request.Product)
	}
	return fc.ReplyButtons(ctx, body, whatNextButtons("Search Again", ""))
}

func pluralShops(n int) string {
	if n == 1 {
		return "1 shop"
	}
	return strconv.Itoa(n) + " shops"
}

func (f *ProductSearchFlow) handleDone(ctx context.Context, fc *Context, msg models.IncomingMessage) error {
	if choice, ok := whatNextTable.Match(msg); ok && choice == ButtonAgain {
		return f.Start(ctx, fc)
	}
	return fc.StartFlow(ctx, models.FlowTypeMainMenu)
}
