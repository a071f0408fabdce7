package flow

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/bazaarlink/bazaarbot/internal/models"
)

// panicFlow and errorFlow exist to exercise the router's failure paths.
type panicFlow struct{}

func (f *panicFlow) Type() models.FlowType { return models.FlowType("test_panic") }
func (f *panicFlow) Start(ctx context.Context, fc *Context) error {
	panic("start panic")
}
func (f *panicFlow) Handle(ctx context.Context, fc *Context, msg models.IncomingMessage) error {
	panic("handle panic")
}

type errorFlow struct{ err error }

func (f *errorFlow) Type() models.FlowType { return models.FlowType("test_error") }
func (f *errorFlow) Start(ctx context.Context, fc *Context) error {
	return f.err
}
func (f *errorFlow) Handle(ctx context.Context, fc *Context, msg models.IncomingMessage) error {
	return f.err
}

func TestRouterCreatesSessionOnFirstMessage(t *testing.T) {
	deps, st, sender := newTestDeps(t)
	r := NewRouter(deps)

	r.Route(context.Background(), textMsg("1111111111", "hello"))

	sess := getSession(t, st, "1111111111")
	if sess.CurrentFlow != models.FlowTypeMainMenu {
		t.Errorf("fresh session should be at the main menu, got %s", sess.CurrentFlow)
	}
	last := sender.lastTo(t, "1111111111")
	if len(last.Buttons) == 0 {
		t.Error("unregistered user should get the welcome buttons")
	}
}

func TestRouterCanonicalizesSender(t *testing.T) {
	deps, st, _ := newTestDeps(t)
	r := NewRouter(deps)

	r.Route(context.Background(), textMsg("+91 98765-43210", "hi"))

	getSession(t, st, "919876543210")
}

func TestRouterDropsInvalidSender(t *testing.T) {
	deps, _, sender := newTestDeps(t)
	r := NewRouter(deps)

	r.Route(context.Background(), textMsg("not a phone", "hi"))

	if sender.count() != 0 {
		t.Error("messages with an invalid sender should be dropped silently")
	}
}

func TestGlobalNavTokenWinsFromMidFlow(t *testing.T) {
	deps, st, _ := newTestDeps(t)
	registerUser(t, deps, "1111111111", "Ravi", models.RoleCustomer)
	r := NewRouter(deps)

	// Park the session deep inside a flow with accumulated data.
	sess := models.NewSession("1111111111")
	sess.CurrentFlow = models.FlowTypeAgreementCreate
	sess.CurrentStep = models.StepAgreeAmount
	sess.TempData = map[models.DataKey]string{models.DataKeyDirection: "giving"}
	if err := st.SaveSession(*sess); err != nil {
		t.Fatal(err)
	}

	for _, token := range []string{"menu", "CANCEL", " home "} {
		if err := st.SaveSession(*sess); err != nil {
			t.Fatal(err)
		}
		r.Route(context.Background(), textMsg("1111111111", token))

		got := getSession(t, st, "1111111111")
		if got.CurrentFlow != models.FlowTypeMainMenu {
			t.Errorf("token %q: expected main menu, got %s", token, got.CurrentFlow)
		}
		if got.CurrentStep != models.StepNone {
			t.Errorf("token %q: expected no step, got %s", token, got.CurrentStep)
		}
		if len(got.TempData) != 0 {
			t.Errorf("token %q: expected temp data cleared, got %v", token, got.TempData)
		}
	}
}

func TestGlobalNavButtonWins(t *testing.T) {
	deps, st, _ := newTestDeps(t)
	r := NewRouter(deps)

	sess := models.NewSession("1111111111")
	sess.CurrentFlow = models.FlowTypeOfferBrowse
	sess.CurrentStep = models.StepBrowseList
	if err := st.SaveSession(*sess); err != nil {
		t.Fatal(err)
	}

	r.Route(context.Background(), buttonMsg("1111111111", ButtonMainMenu))

	got := getSession(t, st, "1111111111")
	if got.CurrentFlow != models.FlowTypeMainMenu {
		t.Errorf("expected main menu after home button, got %s", got.CurrentFlow)
	}
}

func TestRouterResetsUnknownFlow(t *testing.T) {
	deps, st, _ := newTestDeps(t)
	r := NewRouter(deps)

	sess := models.NewSession("1111111111")
	sess.CurrentFlow = models.FlowType("ghost")
	if err := st.SaveSession(*sess); err != nil {
		t.Fatal(err)
	}

	r.Route(context.Background(), textMsg("1111111111", "hi"))

	got := getSession(t, st, "1111111111")
	if got.CurrentFlow != models.FlowTypeMainMenu {
		t.Errorf("expected reset to main menu, got %s", got.CurrentFlow)
	}
}

func TestRouterRecoversHandlerPanic(t *testing.T) {
	Register(&panicFlow{})
	deps, st, sender := newTestDeps(t)
	r := NewRouter(deps)

	sess := models.NewSession("1111111111")
	sess.CurrentFlow = models.FlowType("test_panic")
	if err := st.SaveSession(*sess); err != nil {
		t.Fatal(err)
	}

	r.Route(context.Background(), textMsg("1111111111", "boom"))

	got := getSession(t, st, "1111111111")
	if got.CurrentFlow != models.FlowTypeMainMenu {
		t.Errorf("expected session reset after panic, got %s", got.CurrentFlow)
	}
	if !strings.Contains(sender.lastTo(t, "1111111111").Body, "something went wrong") {
		t.Error("expected an apology after the panic")
	}
}

func TestRouterApologizesOnHandlerError(t *testing.T) {
	Register(&errorFlow{err: context.DeadlineExceeded})
	deps, st, sender := newTestDeps(t)
	r := NewRouter(deps)

	sess := models.NewSession("1111111111")
	sess.CurrentFlow = models.FlowType("test_error")
	if err := st.SaveSession(*sess); err != nil {
		t.Fatal(err)
	}

	r.Route(context.Background(), textMsg("1111111111", "hi"))

	got := getSession(t, st, "1111111111")
	if got.CurrentFlow != models.FlowTypeMainMenu {
		t.Errorf("expected session reset after handler error, got %s", got.CurrentFlow)
	}
	if !strings.Contains(sender.lastTo(t, "1111111111").Body, "something went wrong") {
		t.Error("expected an apology after the handler error")
	}
}

func TestRunKeepsSamePhoneArrivalOrder(t *testing.T) {
	deps, st, _ := newTestDeps(t)
	r := NewRouter(deps)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	msgs := make(chan models.IncomingMessage, 16)
	done := make(chan struct{})
	go func() {
		defer close(done)
		r.Run(ctx, msgs)
	}()

	// Push a whole registration walk without waiting between messages.
	// Each reply is only valid at the step the previous one produced, so
	// any reordering leaves the walk stuck short of DONE.
	phone := "6666666666"
	msgs <- textMsg(phone, "hi")
	msgs <- buttonMsg(phone, menuRegister)
	msgs <- textMsg(phone, "Ravi")
	msgs <- textMsg(phone, "customer")
	msgs <- locationMsg(phone, 19.07, 72.87)
	close(msgs)
	<-done

	user, err := deps.Users.ByPhone(context.Background(), phone)
	if err != nil || user == nil {
		t.Fatalf("registration walk did not complete: %v", err)
	}
	sess := getSession(t, st, phone)
	if sess.CurrentStep != models.StepRegDone {
		t.Errorf("expected DONE after an in-order walk, got %s/%s", sess.CurrentFlow, sess.CurrentStep)
	}
}

func TestRouterWelcomesBackAfterIdle(t *testing.T) {
	deps, st, sender := newTestDeps(t)
	registerUser(t, deps, "1111111111", "Ravi", models.RoleCustomer)
	r := NewRouter(deps)

	sess := models.NewSession("1111111111")
	sess.CurrentFlow = models.FlowTypeProductSearch
	sess.CurrentStep = models.StepSearchProduct
	sess.UpdatedAt = time.Now().Add(-13 * time.Hour)
	if err := st.SaveSession(*sess); err != nil {
		t.Fatal(err)
	}

	r.Route(context.Background(), textMsg("1111111111", "pressure cooker"))

	found := false
	sender.mu.Lock()
	for _, m := range sender.sent {
		if strings.Contains(m.Body, "Welcome back") {
			found = true
		}
	}
	sender.mu.Unlock()
	if !found {
		t.Error("expected a welcome-back line before the re-prompt")
	}
	// The message itself is still processed normally.
	got := getSession(t, st, "1111111111")
	if got.CurrentStep != models.StepSearchQuantity {
		t.Errorf("expected the flow to advance, got step %s", got.CurrentStep)
	}
}

func TestRouterNoWelcomeBackAtMenu(t *testing.T) {
	deps, st, sender := newTestDeps(t)
	r := NewRouter(deps)

	sess := models.NewSession("1111111111")
	sess.UpdatedAt = time.Now().Add(-48 * time.Hour)
	if err := st.SaveSession(*sess); err != nil {
		t.Fatal(err)
	}

	r.Route(context.Background(), textMsg("1111111111", "hi"))

	sender.mu.Lock()
	defer sender.mu.Unlock()
	for _, m := range sender.sent {
		if strings.Contains(m.Body, "Welcome back") {
			t.Error("sessions idle at the menu should not get a welcome-back line")
		}
	}
}
