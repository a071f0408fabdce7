package flow

import (
	"context"
	"strings"
	"testing"

	"github.com/bazaarlink/bazaarbot/internal/models"
)

func TestRegistrationCustomerEndToEnd(t *testing.T) {
	deps, st, sender := newTestDeps(t)
	r := NewRouter(deps)
	ctx := context.Background()
	phone := "2222222222"

	// First contact lands at the menu; picking Register enters the flow.
	r.Route(ctx, textMsg(phone, "hi"))
	r.Route(ctx, buttonMsg(phone, menuRegister))

	sess := getSession(t, st, phone)
	if sess.CurrentFlow != models.FlowTypeRegistration || sess.CurrentStep != models.StepRegName {
		t.Fatalf("expected registration/NAME, got %s/%s", sess.CurrentFlow, sess.CurrentStep)
	}

	// Invalid input does not advance the step.
	r.Route(ctx, locationMsg(phone, 1, 2))
	sess = getSession(t, st, phone)
	if sess.CurrentStep != models.StepRegName {
		t.Fatalf("invalid input advanced the step to %s", sess.CurrentStep)
	}

	r.Route(ctx, textMsg(phone, "Ravi"))
	sess = getSession(t, st, phone)
	if sess.CurrentStep != models.StepRegRole {
		t.Fatalf("expected ROLE, got %s", sess.CurrentStep)
	}
	if sess.TempData[models.DataKeyName] != "Ravi" {
		t.Errorf("name not accumulated in temp data: %v", sess.TempData)
	}

	// Typed role instead of the list selection.
	r.Route(ctx, textMsg(phone, "customer"))
	sess = getSession(t, st, phone)
	if sess.CurrentStep != models.StepRegLocation {
		t.Fatalf("customers skip shop steps, expected LOCATION, got %s", sess.CurrentStep)
	}

	// Text where a location is required: re-prompt, no advance.
	r.Route(ctx, textMsg(phone, "near the temple"))
	if got := getSession(t, st, phone); got.CurrentStep != models.StepRegLocation {
		t.Fatalf("text should not satisfy the location step, got %s", got.CurrentStep)
	}

	r.Route(ctx, locationMsg(phone, 19.07, 72.87))

	user, err := deps.Users.ByPhone(ctx, phone)
	if err != nil || user == nil {
		t.Fatalf("user not created: %v", err)
	}
	if user.Name != "Ravi" || user.Role != models.RoleCustomer {
		t.Errorf("unexpected user %+v", user)
	}

	sess = getSession(t, st, phone)
	if sess.CurrentStep != models.StepRegDone {
		t.Errorf("expected DONE, got %s", sess.CurrentStep)
	}
	if len(sess.TempData) != 0 {
		t.Errorf("temp data should be cleared after registration: %v", sess.TempData)
	}
	if sess.UserID == nil || *sess.UserID != user.ID {
		t.Error("session not linked to the new user")
	}
	if !strings.Contains(sender.lastTo(t, phone).Body, "Welcome aboard") {
		t.Error("expected the welcome message")
	}
}

func TestRegistrationShopOwnerDetour(t *testing.T) {
	deps, st, _ := newTestDeps(t)
	r := NewRouter(deps)
	ctx := context.Background()
	phone := "3333333333"

	r.Route(ctx, textMsg(phone, "hi"))
	r.Route(ctx, buttonMsg(phone, menuRegister))
	r.Route(ctx, textMsg(phone, "Sunita"))
	r.Route(ctx, textMsg(phone, "dukaan")) // typed Hindi synonym for shop owner

	sess := getSession(t, st, phone)
	if sess.CurrentStep != models.StepRegShopName {
		t.Fatalf("shop owners detour through SHOP_NAME, got %s", sess.CurrentStep)
	}

	r.Route(ctx, textMsg(phone, "Sunita General Store"))
	r.Route(ctx, textMsg(phone, "kirana")) // typed category synonym
	sess = getSession(t, st, phone)
	if sess.CurrentStep != models.StepRegLocation {
		t.Fatalf("expected LOCATION after category, got %s", sess.CurrentStep)
	}

	r.Route(ctx, locationMsg(phone, 19.07, 72.87))

	user, err := deps.Users.ByPhone(ctx, phone)
	if err != nil || user == nil {
		t.Fatalf("user not created: %v", err)
	}
	shop, err := st.GetShopByOwner(user.ID)
	if err != nil || shop == nil {
		t.Fatalf("shop not created: %v", err)
	}
	if shop.Name != "Sunita General Store" || shop.Category != "grocery" {
		t.Errorf("unexpected shop %+v", shop)
	}
}

func TestRegistrationStartIsIdempotent(t *testing.T) {
	deps, st, _ := newTestDeps(t)
	ctx := context.Background()
	phone := "4444444444"

	sess, err := deps.Sessions.Get(ctx, phone)
	if err != nil {
		t.Fatal(err)
	}
	// Leftovers from an abandoned shop-owner run must not survive a fresh Start.
	if err := deps.Sessions.MergeTempData(ctx, sess, map[models.DataKey]string{
		models.DataKeyRole:     string(models.RoleShopOwner),
		models.DataKeyShopName: "Stale Shop",
	}); err != nil {
		t.Fatal(err)
	}
	fc := &Context{Deps: deps, Session: sess}
	f := &RegistrationFlow{}

	if err := f.Start(ctx, fc); err != nil {
		t.Fatal(err)
	}
	if err := f.Start(ctx, fc); err != nil {
		t.Fatal(err)
	}

	got := getSession(t, st, phone)
	if got.CurrentFlow != models.FlowTypeRegistration || got.CurrentStep != models.StepRegName {
		t.Errorf("double Start should land at registration/NAME, got %s/%s", got.CurrentFlow, got.CurrentStep)
	}
	if len(got.TempData) != 0 {
		t.Errorf("Start should drop stale temp data, still holds %v", got.TempData)
	}
}

func TestRegistrationUnknownStepRestartsClean(t *testing.T) {
	deps, st, _ := newTestDeps(t)
	r := NewRouter(deps)
	ctx := context.Background()
	phone := "4444455555"

	// A session parked on a step this build no longer knows, with scratch
	// data from the run that got it there.
	if _, err := deps.Sessions.Seed(ctx, phone, models.FlowTypeRegistration, "OLD_SHOP_STEP", map[models.DataKey]string{
		models.DataKeyRole:     string(models.RoleShopOwner),
		models.DataKeyShopName: "Stale Shop",
	}); err != nil {
		t.Fatal(err)
	}

	r.Route(ctx, textMsg(phone, "hello"))

	sess := getSession(t, st, phone)
	if sess.CurrentFlow != models.FlowTypeRegistration || sess.CurrentStep != models.StepRegName {
		t.Fatalf("expected a restart at registration/NAME, got %s/%s", sess.CurrentFlow, sess.CurrentStep)
	}
	if len(sess.TempData) != 0 {
		t.Errorf("restart kept stale temp data: %v", sess.TempData)
	}
}

func TestRegistrationBouncesRegisteredUser(t *testing.T) {
	deps, st, sender := newTestDeps(t)
	registerUser(t, deps, "5555555555", "Ravi", models.RoleCustomer)
	r := NewRouter(deps)
	ctx := context.Background()

	r.Route(ctx, textMsg("5555555555", "register"))

	sess := getSession(t, st, "5555555555")
	if sess.CurrentFlow == models.FlowTypeRegistration {
		t.Error("registered users must not enter the registration flow")
	}
	found := false
	sender.mu.Lock()
	for _, m := range sender.sent {
		if strings.Contains(m.Body, "already registered") {
			found = true
		}
	}
	sender.mu.Unlock()
	if !found {
		t.Error("expected the already-registered notice")
	}
}
