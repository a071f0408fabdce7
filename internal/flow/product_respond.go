package flow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/bazaarlink/bazaarbot/internal/models"
	"github.com/bazaarlink/bazaarbot/internal/services"
	"github.com/bazaarlink/bazaarbot/internal/util"
)

// Respond step choice ids.
const (
	respondAvailable  = "available"
	respondOutOfStock = "out_of_stock"
)

// respondTable resolves the have-it question.
var respondTable = Table{
	{Value: respondAvailable, Keywords: []string{"available", "yes", "have", "haan", "hai"}},
	{Value: respondOutOfStock, Keywords: []string{"out of stock", "no", "don't", "nahi"}},
}

// ProductRespondFlow is entered by seeding: when a customer broadcasts a
// product request, each eligible shop's session lands here. Out-of-stock
// answers complete immediately; available ones collect a price and an
// optional note first. There is no review step, answers go straight out.
type ProductRespondFlow struct{}

func (f *ProductRespondFlow) Type() models.FlowType { return models.FlowTypeProductRespond }

// PromptSeeded asks the shop about the requested product right after seeding.
func (f *ProductRespondFlow) PromptSeeded(ctx context.Context, fc *Context) error {
	request, err := fc.Products.GetRequest(ctx, fc.Session.Temp(models.DataKeyRespondRequestID, ""))
	if err != nil {
		return err
	}
	body := fmt.Sprintf("A customer nearby is looking for:\n\n%s", request.Product)
	if request.Quantity != "" {
		body += "\nQuantity: " + request.Quantity
	}
	if request.Notes != "" {
		body += "\nNotes: " + request.Notes
	}
	body += "\n\nDo you have it?"
	return fc.ReplyButtons(ctx, body, []models.Button{
		{ID: respondAvailable, Title: "Yes, I have it"},
		{ID: respondOutOfStock, Title: "Out of stock"},
	})
}

// Start covers landing here without a pending request.
func (f *ProductRespondFlow) Start(ctx context.Context, fc *Context) error {
	if fc.Session.HasTemp(models.DataKeyRespondRequestID) {
		if err := fc.Sessions.SetFlowStep(ctx, fc.Session, f.Type(), models.StepRespondAwaiting); err != nil {
			return err
		}
		return f.PromptSeeded(ctx, fc)
	}
	if err := fc.Reply(ctx, "There is no product request waiting for you."); err != nil {
		return err
	}
	return fc.StartFlow(ctx, models.FlowTypeMainMenu)
}

func (f *ProductRespondFlow) Handle(ctx context.Context, fc *Context, msg models.IncomingMessage) error {
	switch fc.Session.CurrentStep {
	case models.StepRespondAwaiting:
		return f.handleAwaiting(ctx, fc, msg)
	case models.StepRespondPrice:
		return f.handlePrice(ctx, fc, msg)
	case models.StepRespondNote:
		return f.handleNote(ctx, fc, msg)
	case models.StepRespondDone:
		return fc.StartFlow(ctx, models.FlowTypeMainMenu)
	default:
		slog.Warn("ProductRespond on unknown step, restarting", "step", fc.Session.CurrentStep, "phone", util.MaskPhone(fc.Phone()))
		return f.Start(ctx, fc)
	}
}

func (f *ProductRespondFlow) handleAwaiting(ctx context.Context, fc *Context, msg models.IncomingMessage) error {
	choice, ok := respondTable.Match(msg)
	if !ok {
		return fc.ReplyButtons(ctx, "Do you have the product?", []models.Button{
			{ID: respondAvailable, Title: "Yes, I have it"},
			{ID: respondOutOfStock, Title: "Out of stock"},
		})
	}

	if choice == respondOutOfStock {
		return f.submit(ctx, fc, false, 0, "")
	}

	if err := fc.Sessions.SetStep(ctx, fc.Session, models.StepRespondPrice); err != nil {
		return err
	}
	return fc.Reply(ctx, "Great! What price can you offer, in rupees?")
}

func (f *ProductRespondFlow) handlePrice(ctx context.Context, fc *Context, msg models.IncomingMessage) error {
	price, err := ParseAmount(msg.TextContent())
	if err != nil {
		return fc.Reply(ctx, "That doesn't look like a valid price. Send a number, e.g. 150.")
	}
	if err := fc.Sessions.MergeTempData(ctx, fc.Session, map[models.DataKey]string{models.DataKeyRespondPrice: FormatAmountValue(price)}); err != nil {
		return err
	}
	if err := fc.Sessions.SetStep(ctx, fc.Session, models.StepRespondNote); err != nil {
		return err
	}
	return fc.ReplyButtons(ctx, "Any note for the customer? Or skip.", []models.Button{skipButton()})
}

func (f *ProductRespondFlow) handleNote(ctx context.Context, fc *Context, msg models.IncomingMessage) error {
	note := ""
	if !IsSkip(msg) {
		text, ok := ValidFreeText(msg.TextContent())
		if !ok || text == "" {
			return fc.ReplyButtons(ctx, "Please send a short note, or skip.", []models.Button{skipButton()})
		}
		note = text
	}
	price, err := strconv.ParseFloat(fc.Session.Temp(models.DataKeyRespondPrice, "0"), 64)
	if err != nil {
		return fmt.Errorf("corrupt price in temp data: %w", err)
	}
	return f.submit(ctx, fc, true, price, note)
}

// submit records the response and forwards it to the requester.
func (f *ProductRespondFlow) submit(ctx context.Context, fc *Context, available bool, price float64, note string) error {
	requestID := fc.Session.Temp(models.DataKeyRespondRequestID, "")

	shop, err := fc.Users.ShopFor(ctx, fc.User.ID)
	if err != nil {
		return err
	}
	_, err = fc.Products.SubmitResponse(ctx, shop, services.SubmitResponseInput{
		RequestID: requestID,
		Available: available,
		Price:     price,
		Note:      note,
	})
	if errors.Is(err, models.ErrNotFound) || errors.Is(err, models.ErrNotActionable) {
		// Request closed, or this shop already answered.
		if err := fc.Reply(ctx, "This request is already settled. Thanks anyway!"); err != nil {
			return err
		}
		return fc.StartFlow(ctx, models.FlowTypeMainMenu)
	}
	if err != nil {
		return err
	}

	if available {
		request, getErr := fc.Products.GetRequest(ctx, requestID)
		if getErr == nil {
			customerNote := fmt.Sprintf("%s has your %s for %s!", shop.Name, request.Product, formatAmount(price))
			if note != "" {
				customerNote += "\n" + note
			}
			customerNote += fmt.Sprintf("\nReach them on wa.me/%s", shop.Phone)
			if sendErr := fc.Sender.SendText(ctx, request.RequesterPhone, customerNote); sendErr != nil {
				slog.Warn("Failed to notify requester", "error", sendErr, "request", requestID)
			}
		}
	}

	if err := fc.Sessions.ClearTempData(ctx, fc.Session); err != nil {
		return err
	}
	if err := fc.Sessions.SetStep(ctx, fc.Session, models.StepRespondDone); err != nil {
		return err
	}

	body := "Thanks, your answer has been sent to the customer."
	if !available {
		body = "Noted, I've marked it out of stock for you."
	}
	return fc.ReplyButtons(ctx, body, []models.Button{{ID: ButtonMainMenu, Title: "Main Menu"}})
}
