package flow

import (
	"context"
	"strings"
	"testing"

	"github.com/bazaarlink/bazaarbot/internal/models"
	"github.com/bazaarlink/bazaarbot/internal/services"
)

const sellerPhone = "9331112222"

func TestFishCatchPostEndToEnd(t *testing.T) {
	deps, st, sender := newTestDeps(t)
	registerUser(t, deps, sellerPhone, "Mahesh", models.RoleFishSeller)
	r := NewRouter(deps)
	ctx := context.Background()

	r.Route(ctx, textMsg(sellerPhone, "hi"))
	r.Route(ctx, buttonMsg(sellerPhone, menuPostCatch))

	sess := getSession(t, st, sellerPhone)
	if sess.CurrentFlow != models.FlowTypeFishCatchPost || sess.CurrentStep != models.StepCatchSpecies {
		t.Fatalf("expected fish_catch_post/SPECIES, got %s/%s", sess.CurrentFlow, sess.CurrentStep)
	}

	r.Route(ctx, textMsg(sellerPhone, "Pomfret"))

	// Nonsense quantity re-prompts without advancing.
	r.Route(ctx, textMsg(sellerPhone, "lots"))
	if got := getSession(t, st, sellerPhone); got.CurrentStep != models.StepCatchQuantity {
		t.Fatalf("invalid quantity advanced the step to %s", got.CurrentStep)
	}

	r.Route(ctx, textMsg(sellerPhone, "15 kg"))
	r.Route(ctx, textMsg(sellerPhone, "300"))
	r.Route(ctx, buttonMsg(sellerPhone, ChoiceSkip))

	// The flow ends on the location share, no review step.
	r.Route(ctx, textMsg(sellerPhone, "near the harbour"))
	if got := getSession(t, st, sellerPhone); got.CurrentStep != models.StepCatchLocation {
		t.Fatalf("text should not satisfy the location step, got %s", got.CurrentStep)
	}

	r.Route(ctx, locationMsg(sellerPhone, 18.95, 72.83))

	sess = getSession(t, st, sellerPhone)
	if sess.CurrentStep != models.StepCatchDone {
		t.Fatalf("expected DONE, got %s", sess.CurrentStep)
	}
	if len(sess.TempData) != 0 {
		t.Errorf("temp data should be cleared: %v", sess.TempData)
	}
	if !strings.Contains(sender.lastTo(t, sellerPhone).Body, "Pomfret is on the market") {
		t.Errorf("unexpected confirmation: %q", sender.lastTo(t, sellerPhone).Body)
	}

	catches, err := deps.Catches.ListRecent(ctx, 0)
	if err != nil || len(catches) != 1 {
		t.Fatalf("expected 1 catch, got %d (%v)", len(catches), err)
	}
	c := catches[0]
	if c.Species != "Pomfret" || c.Quantity != "15 kg" || c.Price != 300 {
		t.Errorf("unexpected catch %+v", c)
	}
}

func TestFishCatchPostRejectsNonSeller(t *testing.T) {
	deps, st, _ := newTestDeps(t)
	registerUser(t, deps, sellerPhone, "Ravi", models.RoleCustomer)
	r := NewRouter(deps)
	ctx := context.Background()

	r.Route(ctx, textMsg(sellerPhone, "hi"))
	r.Route(ctx, buttonMsg(sellerPhone, menuPostCatch))

	if sess := getSession(t, st, sellerPhone); sess.CurrentFlow == models.FlowTypeFishCatchPost {
		t.Error("customer should not enter the catch flow")
	}
}

func TestFishMarketListsRecentCatches(t *testing.T) {
	deps, _, sender := newTestDeps(t)
	seller := registerUser(t, deps, sellerPhone, "Mahesh", models.RoleFishSeller)
	r := NewRouter(deps)
	ctx := context.Background()

	if _, err := deps.Catches.Post(ctx, seller, services.PostCatchInput{
		Species: "Pomfret", Quantity: "15 kg", Price: 300,
		Latitude: 18.95, Longitude: 72.83,
	}); err != nil {
		t.Fatal(err)
	}

	// Anyone can browse the fish market, even unregistered phones.
	r.Route(ctx, textMsg(browserPhone, "machli"))

	found := false
	for _, m := range sender.messagesTo(browserPhone) {
		if strings.Contains(m.Body, "Pomfret") {
			found = true
		}
	}
	if !found {
		t.Error("expected the catch in the fish market listing")
	}
}

func TestSettingsEditName(t *testing.T) {
	deps, st, sender := newTestDeps(t)
	registerUser(t, deps, sellerPhone, "Mahesh", models.RoleFishSeller)
	r := NewRouter(deps)
	ctx := context.Background()

	r.Route(ctx, textMsg(sellerPhone, "hi"))
	r.Route(ctx, buttonMsg(sellerPhone, menuSettings))
	r.Route(ctx, buttonMsg(sellerPhone, settingsEditName))
	r.Route(ctx, textMsg(sellerPhone, "Mahesh Koli"))

	if got := getSession(t, st, sellerPhone); got.CurrentStep != models.StepSettingsDone {
		t.Fatalf("expected DONE, got %s", got.CurrentStep)
	}
	user, err := deps.Users.ByPhone(ctx, sellerPhone)
	if err != nil || user == nil {
		t.Fatal("user missing after rename")
	}
	if user.Name != "Mahesh Koli" {
		t.Errorf("name not updated, got %q", user.Name)
	}
	if !strings.Contains(sender.lastTo(t, sellerPhone).Body, "Mahesh Koli") {
		t.Errorf("unexpected reply: %q", sender.lastTo(t, sellerPhone).Body)
	}
}

func TestSettingsUpdateLocation(t *testing.T) {
	deps, _, _ := newTestDeps(t)
	registerUser(t, deps, sellerPhone, "Mahesh", models.RoleFishSeller)
	r := NewRouter(deps)
	ctx := context.Background()

	r.Route(ctx, textMsg(sellerPhone, "hi"))
	r.Route(ctx, buttonMsg(sellerPhone, menuSettings))
	r.Route(ctx, buttonMsg(sellerPhone, settingsEditLocation))
	r.Route(ctx, locationMsg(sellerPhone, 18.52, 73.86))

	user, err := deps.Users.ByPhone(ctx, sellerPhone)
	if err != nil || user == nil {
		t.Fatal("user missing after location update")
	}
	if user.Latitude != 18.52 || user.Longitude != 73.86 {
		t.Errorf("location not updated: %v,%v", user.Latitude, user.Longitude)
	}
}

func TestSettingsDeactivateAccount(t *testing.T) {
	deps, st, sender := newTestDeps(t)
	registerUser(t, deps, sellerPhone, "Mahesh", models.RoleFishSeller)
	r := NewRouter(deps)
	ctx := context.Background()

	r.Route(ctx, textMsg(sellerPhone, "hi"))
	r.Route(ctx, buttonMsg(sellerPhone, menuSettings))
	r.Route(ctx, buttonMsg(sellerPhone, settingsDelete))
	r.Route(ctx, buttonMsg(sellerPhone, ChoiceYes))

	if !strings.Contains(sender.lastTo(t, sellerPhone).Body, "deactivated") {
		t.Errorf("unexpected goodbye: %q", sender.lastTo(t, sellerPhone).Body)
	}

	// Deactivated users look unregistered from then on.
	user, err := deps.Users.ByPhone(ctx, sellerPhone)
	if err != nil {
		t.Fatal(err)
	}
	if user != nil {
		t.Error("deactivated user should not resolve by phone")
	}

	sess := getSession(t, st, sellerPhone)
	if sess.UserID != nil {
		t.Error("session should be unlinked from the user")
	}
	if sess.CurrentFlow != models.FlowTypeMainMenu {
		t.Errorf("session should be reset, got %s", sess.CurrentFlow)
	}
}

func TestSettingsDeactivateThenReRegister(t *testing.T) {
	deps, _, _ := newTestDeps(t)
	old := registerUser(t, deps, sellerPhone, "Mahesh", models.RoleFishSeller)
	r := NewRouter(deps)
	ctx := context.Background()

	r.Route(ctx, textMsg(sellerPhone, "hi"))
	r.Route(ctx, buttonMsg(sellerPhone, menuSettings))
	r.Route(ctx, buttonMsg(sellerPhone, settingsDelete))
	r.Route(ctx, buttonMsg(sellerPhone, ChoiceYes))

	// The goodbye promises they can come back; registering again from the
	// same number must work and revive the old account.
	r.Route(ctx, buttonMsg(sellerPhone, menuRegister))
	r.Route(ctx, textMsg(sellerPhone, "Mahesh Koli"))
	r.Route(ctx, textMsg(sellerPhone, "customer"))
	r.Route(ctx, locationMsg(sellerPhone, 18.95, 72.83))

	user, err := deps.Users.ByPhone(ctx, sellerPhone)
	if err != nil || user == nil {
		t.Fatalf("re-registration after deactivation failed: %v", err)
	}
	if user.Name != "Mahesh Koli" || user.Role != models.RoleCustomer {
		t.Errorf("unexpected user after re-registration: %+v", user)
	}
	if user.ID != old.ID {
		t.Errorf("re-registration should reclaim the old user id %s, got %s", old.ID, user.ID)
	}
}

func TestSettingsKeepAccountOnNo(t *testing.T) {
	deps, _, _ := newTestDeps(t)
	registerUser(t, deps, sellerPhone, "Mahesh", models.RoleFishSeller)
	r := NewRouter(deps)
	ctx := context.Background()

	r.Route(ctx, textMsg(sellerPhone, "hi"))
	r.Route(ctx, buttonMsg(sellerPhone, menuSettings))
	r.Route(ctx, buttonMsg(sellerPhone, settingsDelete))
	r.Route(ctx, buttonMsg(sellerPhone, ChoiceNo))

	user, err := deps.Users.ByPhone(ctx, sellerPhone)
	if err != nil || user == nil {
		t.Fatal("declining must keep the account")
	}
}
