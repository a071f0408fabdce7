package flow

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/bazaarlink/bazaarbot/internal/models"
	"github.com/bazaarlink/bazaarbot/internal/services"
	"github.com/bazaarlink/bazaarbot/internal/util"
)

// directionTable resolves the giving/receiving question.
var directionTable = Table{
	{Value: string(models.DirectionGiving), Keywords: []string{"giving", "gave", "lent", "diya"}},
	{Value: string(models.DirectionReceiving), Keywords: []string{"receiving", "received", "took", "borrowed", "liya"}},
}

// purposeTable resolves the purpose question.
var purposeTable = Table{
	{Value: "loan", Keywords: []string{"loan", "money", "cash", "udhaar"}},
	{Value: "goods", Keywords: []string{"goods", "items", "saman"}},
	{Value: "services", Keywords: []string{"service", "work", "kaam"}},
	{Value: "other", Keywords: []string{"other"}},
}

// AgreementCreateFlow walks a registered user through recording an IOU with
// a counterparty, then seeds the counterparty's session into the
// confirmation flow. The counterparty need not be registered.
type AgreementCreateFlow struct{}

func (f *AgreementCreateFlow) Type() models.FlowType { return models.FlowTypeAgreementCreate }

// Start enters the flow at the direction step, dropping any stale temp data.
func (f *AgreementCreateFlow) Start(ctx context.Context, fc *Context) error {
	if !fc.Registered() {
		if err := fc.Reply(ctx, "You need to register before recording agreements."); err != nil {
			return err
		}
		return fc.StartFlow(ctx, models.FlowTypeRegistration)
	}
	if err := fc.Sessions.ClearTempData(ctx, fc.Session); err != nil {
		return err
	}
	if err := fc.Sessions.SetFlowStep(ctx, fc.Session, f.Type(), models.StepAgreeDirection); err != nil {
		return err
	}
	return f.promptDirection(ctx, fc)
}

func (f *AgreementCreateFlow) Handle(ctx context.Context, fc *Context, msg models.IncomingMessage) error {
	switch fc.Session.CurrentStep {
	case models.StepAgreeDirection:
		return f.handleDirection(ctx, fc, msg)
	case models.StepAgreeAmount:
		return f.handleAmount(ctx, fc, msg)
	case models.StepAgreeName:
		return f.handleName(ctx, fc, msg)
	case models.StepAgreePhone:
		return f.handlePhone(ctx, fc, msg)
	case models.StepAgreePurpose:
		return f.handlePurpose(ctx, fc, msg)
	case models.StepAgreeDescription:
		return f.handleDescription(ctx, fc, msg)
	case models.StepAgreeDueDate:
		return f.handleDueDate(ctx, fc, msg)
	case models.StepAgreeReview:
		return f.handleReview(ctx, fc, msg)
	case models.StepAgreeDone:
		return f.handleDone(ctx, fc, msg)
	default:
		slog.Warn("AgreementCreate on unknown step, restarting", "step", fc.Session.CurrentStep, "phone", util.MaskPhone(fc.Phone()))
		return f.Start(ctx, fc)
	}
}

func (f *AgreementCreateFlow) promptDirection(ctx context.Context, fc *Context) error {
	return fc.ReplyButtons(ctx, "Let's record an agreement. Did you give, or did you receive?", []models.Button{
		{ID: string(models.DirectionGiving), Title: "I gave"},
		{ID: string(models.DirectionReceiving), Title: "I received"},
	})
}

func (f *AgreementCreateFlow) handleDirection(ctx context.Context, fc *Context, msg models.IncomingMessage) error {
	value, ok := directionTable.Match(msg)
	if !ok {
		return f.promptDirection(ctx, fc)
	}
	if err := fc.Sessions.MergeTempData(ctx, fc.Session, map[models.DataKey]string{models.DataKeyDirection: value}); err != nil {
		return err
	}
	if err := fc.Sessions.SetStep(ctx, fc.Session, models.StepAgreeAmount); err != nil {
		return err
	}
	return fc.Reply(ctx, "How much? Send the amount in rupees, e.g. 20000.")
}

func (f *AgreementCreateFlow) handleAmount(ctx context.Context, fc *Context, msg models.IncomingMessage) error {
	amount, err := ParseAmount(msg.TextContent())
	if err != nil {
		return fc.Reply(ctx, fmt.Sprintf("That doesn't look like a valid amount (1 to %d). Try again, e.g. 20000.", models.MaxAmount))
	}
	if err := fc.Sessions.MergeTempData(ctx, fc.Session, map[models.DataKey]string{models.DataKeyAmount: FormatAmountValue(amount)}); err != nil {
		return err
	}
	if err := fc.Sessions.SetStep(ctx, fc.Session, models.StepAgreeName); err != nil {
		return err
	}
	return fc.Reply(ctx, "Who is the other person? Send their name.")
}

func (f *AgreementCreateFlow) handleName(ctx context.Context, fc *Context, msg models.IncomingMessage) error {
	name, ok := ValidName(msg.TextContent())
	if !ok {
		return fc.Reply(ctx, "Please send the other person's name as text.")
	}
	if err := fc.Sessions.MergeTempData(ctx, fc.Session, map[models.DataKey]string{models.DataKeyCounterpartyName: name}); err != nil {
		return err
	}
	if err := fc.Sessions.SetStep(ctx, fc.Session, models.StepAgreePhone); err != nil {
		return err
	}
	return fc.Reply(ctx, fmt.Sprintf("What is %s's WhatsApp number?", name))
}

func (f *AgreementCreateFlow) handlePhone(ctx context.Context, fc *Context, msg models.IncomingMessage) error {
	phone, err := ParsePhone(msg.TextContent())
	if err != nil {
		return fc.Reply(ctx, "That doesn't look like a phone number. Send digits only, e.g. 9876543210.")
	}
	// An agreement with yourself makes no sense, and the confirmation
	// trigger must never target the phone this handler has locked.
	if phone == fc.Phone() {
		return fc.Reply(ctx, "That's your own number. Send the other person's number.")
	}
	if err := fc.Sessions.MergeTempData(ctx, fc.Session, map[models.DataKey]string{models.DataKeyCounterpartyPhone: phone}); err != nil {
		return err
	}
	if err := fc.Sessions.SetStep(ctx, fc.Session, models.StepAgreePurpose); err != nil {
		return err
	}
	return f.promptPurpose(ctx, fc)
}

func (f *AgreementCreateFlow) promptPurpose(ctx context.Context, fc *Context) error {
	sections := []models.ListSection{{
		Title: "Purpose",
		Rows: []models.Button{
			{ID: "loan", Title: "Loan / Cash"},
			{ID: "goods", Title: "Goods"},
			{ID: "services", Title: "Services / Work"},
			{ID: "other", Title: "Something else"},
		},
	}}
	return fc.ReplyList(ctx, "What is this agreement for?", "Select", sections)
}

func (f *AgreementCreateFlow) handlePurpose(ctx context.Context, fc *Context, msg models.IncomingMessage) error {
	value, ok := purposeTable.Match(msg)
	if !ok {
		return f.promptPurpose(ctx, fc)
	}
	if err := fc.Sessions.MergeTempData(ctx, fc.Session, map[models.DataKey]string{models.DataKeyPurpose: value}); err != nil {
		return err
	}
	if err := fc.Sessions.SetStep(ctx, fc.Session, models.StepAgreeDescription); err != nil {
		return err
	}
	return fc.ReplyButtons(ctx, "Any details to add? Send a short note, or skip.", []models.Button{skipButton()})
}

func (f *AgreementCreateFlow) handleDescription(ctx context.Context, fc *Context, msg models.IncomingMessage) error {
	description := ""
	if !IsSkip(msg) {
		text, ok := ValidFreeText(msg.TextContent())
		if !ok || text == "" {
			return fc.ReplyButtons(ctx, fmt.Sprintf("Please send a short note (up to %d characters), or skip.", models.MaxFreeTextLength), []models.Button{skipButton()})
		}
		description = text
	}
	if err := fc.Sessions.MergeTempData(ctx, fc.Session, map[models.DataKey]string{models.DataKeyDescription: description}); err != nil {
		return err
	}
	if err := fc.Sessions.SetStep(ctx, fc.Session, models.StepAgreeDueDate); err != nil {
		return err
	}
	return f.promptDueDate(ctx, fc)
}

func (f *AgreementCreateFlow) promptDueDate(ctx context.Context, fc *Context) error {
	return fc.ReplyButtons(ctx, "When is it due?", []models.Button{
		{ID: DueOneWeek, Title: "In 1 week"},
		{ID: DueOneMonth, Title: "In 1 month"},
		{ID: DueThreeMonths, Title: "In 3 months"},
	})
}

func (f *AgreementCreateFlow) handleDueDate(ctx context.Context, fc *Context, msg models.IncomingMessage) error {
	value, ok := dueDateTable.Match(msg)
	if !ok {
		return f.promptDueDate(ctx, fc)
	}
	if _, err := DueDateFor(value, time.Now()); err != nil {
		return f.promptDueDate(ctx, fc)
	}
	if err := fc.Sessions.MergeTempData(ctx, fc.Session, map[models.DataKey]string{models.DataKeyDueDate: value}); err != nil {
		return err
	}
	if err := fc.Sessions.SetStep(ctx, fc.Session, models.StepAgreeReview); err != nil {
		return err
	}
	return f.promptReview(ctx, fc)
}

func (f *AgreementCreateFlow) promptReview(ctx context.Context, fc *Context) error {
	sess := fc.Session
	direction := "You gave"
	if sess.Temp(models.DataKeyDirection, "") == string(models.DirectionReceiving) {
		direction = "You received"
	}
	due, _ := DueDateFor(sess.Temp(models.DataKeyDueDate, ""), time.Now())
	body := fmt.Sprintf("Please review:\n\n%s ₹%s\nWith: %s (%s)\nPurpose: %s\nDue: %s",
		direction,
		sess.Temp(models.DataKeyAmount, "?"),
		sess.Temp(models.DataKeyCounterpartyName, "?"),
		sess.Temp(models.DataKeyCounterpartyPhone, "?"),
		sess.Temp(models.DataKeyPurpose, "?"),
		due.Format("2 Jan 2006"))
	if d := sess.Temp(models.DataKeyDescription, ""); d != "" {
		body += "\nNote: " + d
	}
	return fc.ReplyButtons(ctx, body, reviewButtons())
}

func (f *AgreementCreateFlow) handleReview(ctx context.Context, fc *Context, msg models.IncomingMessage) error {
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

// create persists the agreement and opens the confirmation flow on the
// counterparty's session.
func (f *AgreementCreateFlow) create(ctx context.Context, fc *Context) error {
	sess := fc.Session
	amount, err := strconv.ParseFloat(sess.Temp(models.DataKeyAmount, "0"), 64)
	if err != nil {
		return fmt.Errorf("corrupt amount in temp data: %w", err)
	}
	due, err := DueDateFor(sess.Temp(models.DataKeyDueDate, ""), time.Now())
	if err != nil {
		return fmt.Errorf("corrupt due date in temp data: %w", err)
	}

	agreement, err := fc.Agreements.Create(ctx, fc.User, services.CreateAgreementInput{
		Direction:         models.AgreementDirection(sess.Temp(models.DataKeyDirection, "")),
		Amount:            amount,
		CounterpartyName:  sess.Temp(models.DataKeyCounterpartyName, ""),
		CounterpartyPhone: sess.Temp(models.DataKeyCounterpartyPhone, ""),
		Purpose:           sess.Temp(models.DataKeyPurpose, ""),
		Description:       sess.Temp(models.DataKeyDescription, ""),
		DueDate:           due,
	})
	if err != nil {
		return err
	}

	fc.Trigger.NotifyLater(ctx, agreement.CounterpartyPhone, models.FlowTypeAgreementConfirm, models.StepConfirmAwaiting,
		map[models.DataKey]string{models.DataKeyConfirmAgreementID: agreement.ID})

	if err := fc.Sessions.ClearTempData(ctx, fc.Session); err != nil {
		return err
	}
	if err := fc.Sessions.SetStep(ctx, fc.Session, models.StepAgreeDone); err != nil {
		return err
	}

	body := fmt.Sprintf("Done! I've recorded the agreement and asked %s to confirm it.\n\nWhat next?", agreement.CounterpartyName)
	return fc.ReplyButtons(ctx, body, whatNextButtons("New Agreement", "My Agreements"))
}

func (f *AgreementCreateFlow) handleDone(ctx context.Context, fc *Context, msg models.IncomingMessage) error {
	choice, ok := whatNextTable.Match(msg)
	if !ok {
		return fc.ReplyButtons(ctx, "What next?", whatNextButtons("New Agreement", "My Agreements"))
	}
	switch choice {
	case ButtonAgain:
		return f.Start(ctx, fc)
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
