package flow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/bazaarlink/bazaarbot/internal/models"
	"github.com/bazaarlink/bazaarbot/internal/util"
)

// AgreementConfirmFlow is entered by seeding: when someone records an
// agreement, the counterparty's session lands here with the agreement id in
// temp data. It works for counterparties who have never registered, since
// sessions are keyed by phone number alone. "Yes"/"no" text is accepted
// alongside the buttons.
type AgreementConfirmFlow struct{}

func (f *AgreementConfirmFlow) Type() models.FlowType { return models.FlowTypeAgreementConfirm }

// PromptSeeded sends the confirmation request right after seeding.
func (f *AgreementConfirmFlow) PromptSeeded(ctx context.Context, fc *Context) error {
	agreement, err := fc.Agreements.Get(ctx, fc.Session.Temp(models.DataKeyConfirmAgreementID, ""))
	if err != nil {
		return err
	}

	verb := "gave you"
	if agreement.Direction == models.DirectionReceiving {
		verb = "received from you"
	}
	body := fmt.Sprintf("Hello %s! Someone has recorded an agreement with you on BazaarLink:\n\nThey say they %s %s for %s, due %s.\n\nIs this correct?",
		agreement.CounterpartyName, verb, formatAmount(agreement.Amount), agreement.Purpose,
		agreement.DueDate.Format("2 Jan 2006"))
	if agreement.Description != "" {
		body = fmt.Sprintf("%s\nNote: %s", body, agreement.Description)
	}
	return fc.ReplyButtons(ctx, body, yesNoButtons("Confirm", "Decline"))
}

// Start handles a user landing here without a pending agreement (for
// example after a restart wiped temp data): nothing to do but go home.
func (f *AgreementConfirmFlow) Start(ctx context.Context, fc *Context) error {
	if fc.Session.HasTemp(models.DataKeyConfirmAgreementID) {
		if err := fc.Sessions.SetFlowStep(ctx, fc.Session, f.Type(), models.StepConfirmAwaiting); err != nil {
			return err
		}
		return f.PromptSeeded(ctx, fc)
	}
	if err := fc.Reply(ctx, "There is no agreement waiting for your confirmation."); err != nil {
		return err
	}
	return fc.StartFlow(ctx, models.FlowTypeMainMenu)
}

func (f *AgreementConfirmFlow) Handle(ctx context.Context, fc *Context, msg models.IncomingMessage) error {
	switch fc.Session.CurrentStep {
	case models.StepConfirmAwaiting:
		return f.handleAwaiting(ctx, fc, msg)
	case models.StepConfirmDone:
		return f.handleDone(ctx, fc, msg)
	default:
		slog.Warn("AgreementConfirm on unknown step, restarting", "step", fc.Session.CurrentStep, "phone", util.MaskPhone(fc.Phone()))
		return f.Start(ctx, fc)
	}
}

func (f *AgreementConfirmFlow) handleAwaiting(ctx context.Context, fc *Context, msg models.IncomingMessage) error {
	choice, ok := yesNoTable.Match(msg)
	if !ok {
		return fc.ReplyButtons(ctx, "Please confirm or decline the agreement.", yesNoButtons("Confirm", "Decline"))
	}

	id := fc.Session.Temp(models.DataKeyConfirmAgreementID, "")
	var (
		agreement *models.Agreement
		err       error
		outcome   string
	)
	if choice == ChoiceYes {
		agreement, err = fc.Agreements.ConfirmByCounterparty(ctx, id, fc.Phone())
		outcome = "confirmed"
	} else {
		agreement, err = fc.Agreements.DeclineByCounterparty(ctx, id, fc.Phone())
		outcome = "declined"
	}

	switch {
	case errors.Is(err, models.ErrNotFound), errors.Is(err, models.ErrNotActionable):
		// Stale seed or the agreement was already resolved elsewhere.
		if err := fc.Reply(ctx, "This agreement is no longer waiting for you. Nothing to do!"); err != nil {
			return err
		}
		return fc.StartFlow(ctx, models.FlowTypeMainMenu)
	case errors.Is(err, models.ErrNotAuthorized):
		slog.Warn("Confirmation attempt by wrong phone", "agreement", id, "phone", util.MaskPhone(fc.Phone()))
		if err := fc.Reply(ctx, "This agreement is not addressed to your number."); err != nil {
			return err
		}
		return fc.StartFlow(ctx, models.FlowTypeMainMenu)
	case err != nil:
		return err
	}

	// Tell the creator. A plain message, not a seeded flow: nothing is
	// awaited from them.
	creatorNote := fmt.Sprintf("%s %s your agreement of %s (%s).",
		agreement.CounterpartyName, outcome, formatAmount(agreement.Amount), agreement.Purpose)
	if sendErr := fc.Sender.SendText(ctx, agreement.CreatorPhone, creatorNote); sendErr != nil {
		slog.Warn("Failed to notify agreement creator", "error", sendErr, "agreement", agreement.ID)
	}

	if err := fc.Sessions.ClearTempData(ctx, fc.Session); err != nil {
		return err
	}
	if err := fc.Sessions.SetStep(ctx, fc.Session, models.StepConfirmDone); err != nil {
		return err
	}

	body := fmt.Sprintf("Thank you, the agreement is %s.", outcome)
	if fc.Registered() {
		return fc.ReplyButtons(ctx, body+"\n\nWhat next?", []models.Button{
			{ID: ButtonViewMine, Title: "My Agreements"},
			{ID: ButtonMainMenu, Title: "Main Menu"},
		})
	}
	return fc.ReplyButtons(ctx, body+"\n\nWant to see what BazaarLink can do for you?", []models.Button{
		{ID: menuRegister, Title: "Register"},
		{ID: ButtonMainMenu, Title: "Main Menu"},
	})
}

func (f *AgreementConfirmFlow) handleDone(ctx context.Context, fc *Context, msg models.IncomingMessage) error {
	switch msg.SelectionID() {
	case menuRegister:
		return fc.StartFlow(ctx, models.FlowTypeRegistration)
	case ButtonViewMine:
		menu := &MainMenuFlow{}
		if err := menu.sendAgreementList(ctx, fc); err != nil {
			return err
		}
		return fc.StartFlow(ctx, models.FlowTypeMainMenu)
	default:
		return fc.StartFlow(ctx, models.FlowTypeMainMenu)
	}
}
