package flow

import (
	"context"
	"strings"
	"testing"

	"github.com/bazaarlink/bazaarbot/internal/models"
)

const (
	requesterPhone = "9221110000"
	shopAPhone     = "9222220000"
	shopBPhone     = "9223330000"
)

// broadcastRequest walks a registered customer through the search flow and
// confirms, then waits for every listed shop session to be seeded.
func broadcastRequest(t *testing.T, r *Router, deps *Deps, shops ...string) {
	t.Helper()
	ctx := context.Background()
	r.Route(ctx, textMsg(requesterPhone, "hi"))
	r.Route(ctx, buttonMsg(requesterPhone, menuSearch))
	r.Route(ctx, textMsg(requesterPhone, "pressure cooker"))
	r.Route(ctx, textMsg(requesterPhone, "2"))
	r.Route(ctx, buttonMsg(requesterPhone, ChoiceSkip))
	r.Route(ctx, buttonMsg(requesterPhone, ChoiceConfirm))

	for _, phone := range shops {
		waitFor(t, func() bool {
			sess, err := deps.Sessions.Get(ctx, phone)
			return err == nil &&
				sess.CurrentFlow == models.FlowTypeProductRespond &&
				sess.CurrentStep == models.StepRespondAwaiting
		})
	}
	// The prompts go out after the seeds; wait for those too.
	for _, phone := range shops {
		waitFor(t, func() bool {
			return len(deps.Sender.(*fakeSender).messagesTo(phone)) > 0
		})
	}
}

func TestProductSearchBroadcast(t *testing.T) {
	deps, st, sender := newTestDeps(t)
	registerUser(t, deps, requesterPhone, "Ravi", models.RoleCustomer)
	registerUser(t, deps, shopAPhone, "Sunita", models.RoleShopOwner)
	registerUser(t, deps, shopBPhone, "Mahesh", models.RoleShopOwner)
	r := NewRouter(deps)

	broadcastRequest(t, r, deps, shopAPhone, shopBPhone)

	if sess := getSession(t, st, requesterPhone); sess.CurrentStep != models.StepSearchDone {
		t.Fatalf("expected DONE, got %s", sess.CurrentStep)
	}
	if !strings.Contains(sender.lastTo(t, requesterPhone).Body, "Asked 2 shops") {
		t.Errorf("unexpected confirmation: %q", sender.lastTo(t, requesterPhone).Body)
	}

	prompt := sender.lastTo(t, shopAPhone)
	if !strings.Contains(prompt.Body, "pressure cooker") || !strings.Contains(prompt.Body, "Do you have it?") {
		t.Errorf("unexpected shop prompt: %q", prompt.Body)
	}
}

func TestProductSearchExcludesOwnShop(t *testing.T) {
	deps, _, sender := newTestDeps(t)
	registerUser(t, deps, requesterPhone, "Ravi", models.RoleShopOwner)
	registerUser(t, deps, shopAPhone, "Sunita", models.RoleShopOwner)
	r := NewRouter(deps)

	broadcastRequest(t, r, deps, shopAPhone)

	// Only the other shop is asked, never the requester's own.
	if !strings.Contains(sender.lastTo(t, requesterPhone).Body, "Asked 1 shop") {
		t.Errorf("unexpected confirmation: %q", sender.lastTo(t, requesterPhone).Body)
	}
}

func TestProductRespondAvailable(t *testing.T) {
	deps, st, sender := newTestDeps(t)
	registerUser(t, deps, requesterPhone, "Ravi", models.RoleCustomer)
	registerUser(t, deps, shopAPhone, "Sunita", models.RoleShopOwner)
	r := NewRouter(deps)
	ctx := context.Background()

	broadcastRequest(t, r, deps, shopAPhone)

	r.Route(ctx, buttonMsg(shopAPhone, respondAvailable))
	r.Route(ctx, textMsg(shopAPhone, "1800"))
	r.Route(ctx, textMsg(shopAPhone, "ISI marked, 5 litre"))

	if sess := getSession(t, st, shopAPhone); sess.CurrentStep != models.StepRespondDone {
		t.Fatalf("expected DONE, got %s", sess.CurrentStep)
	}

	forwarded := sender.lastTo(t, requesterPhone)
	if !strings.Contains(forwarded.Body, "Sunita's Shop has your pressure cooker") {
		t.Errorf("unexpected forwarded answer: %q", forwarded.Body)
	}
	if !strings.Contains(forwarded.Body, "ISI marked, 5 litre") {
		t.Errorf("note missing from forwarded answer: %q", forwarded.Body)
	}
	if !strings.Contains(forwarded.Body, "wa.me/"+shopAPhone) {
		t.Errorf("contact link missing: %q", forwarded.Body)
	}
}

func TestProductRespondOutOfStock(t *testing.T) {
	deps, st, sender := newTestDeps(t)
	registerUser(t, deps, requesterPhone, "Ravi", models.RoleCustomer)
	registerUser(t, deps, shopAPhone, "Sunita", models.RoleShopOwner)
	r := NewRouter(deps)
	ctx := context.Background()

	broadcastRequest(t, r, deps, shopAPhone)
	before := len(sender.messagesTo(requesterPhone))

	r.Route(ctx, buttonMsg(shopAPhone, respondOutOfStock))

	if sess := getSession(t, st, shopAPhone); sess.CurrentStep != models.StepRespondDone {
		t.Fatalf("expected DONE, got %s", sess.CurrentStep)
	}
	if !strings.Contains(sender.lastTo(t, shopAPhone).Body, "out of stock") {
		t.Errorf("unexpected reply: %q", sender.lastTo(t, shopAPhone).Body)
	}
	// Out-of-stock answers are not forwarded to the customer.
	if got := len(sender.messagesTo(requesterPhone)); got != before {
		t.Errorf("customer received %d extra messages", got-before)
	}
}

func TestProductRespondDuplicateAnswer(t *testing.T) {
	deps, st, sender := newTestDeps(t)
	registerUser(t, deps, requesterPhone, "Ravi", models.RoleCustomer)
	registerUser(t, deps, shopAPhone, "Sunita", models.RoleShopOwner)
	r := NewRouter(deps)
	ctx := context.Background()

	broadcastRequest(t, r, deps, shopAPhone)
	requestID := getSession(t, st, shopAPhone).TempData[models.DataKeyRespondRequestID]
	if requestID == "" {
		t.Fatal("seeded session has no request id")
	}

	r.Route(ctx, buttonMsg(shopAPhone, respondOutOfStock))

	// The shop gets re-seeded for the same request and answers again.
	if err := deps.Trigger.Notify(ctx, shopAPhone, models.FlowTypeProductRespond, models.StepRespondAwaiting,
		map[models.DataKey]string{models.DataKeyRespondRequestID: requestID}); err != nil {
		t.Fatal(err)
	}
	r.Route(ctx, buttonMsg(shopAPhone, respondOutOfStock))

	found := false
	for _, m := range sender.messagesTo(shopAPhone) {
		if strings.Contains(m.Body, "already settled") {
			found = true
		}
	}
	if !found {
		t.Error("expected the already-settled notice")
	}
}
