package flow

import (
	"context"
	"strings"
	"testing"

	"github.com/bazaarlink/bazaarbot/internal/models"
	"github.com/bazaarlink/bazaarbot/internal/services"
)

const (
	ownerPhone   = "9112223333"
	browserPhone = "9114445555"
)

// seedOffer posts an offer through the service layer for browse tests.
func seedOffer(t *testing.T, deps *Deps, owner *models.User, title string, price float64) *models.Offer {
	t.Helper()
	offer, err := deps.Offers.Create(context.Background(), owner, services.CreateOfferInput{
		Title:     title,
		Price:     price,
		ValidDays: 7,
	})
	if err != nil {
		t.Fatalf("failed to seed offer: %v", err)
	}
	return offer
}

func TestOfferUploadEndToEnd(t *testing.T) {
	deps, st, sender := newTestDeps(t)
	registerUser(t, deps, ownerPhone, "Sunita", models.RoleShopOwner)
	r := NewRouter(deps)
	ctx := context.Background()

	r.Route(ctx, textMsg(ownerPhone, "hi"))
	r.Route(ctx, buttonMsg(ownerPhone, menuUploadOffer))

	sess := getSession(t, st, ownerPhone)
	if sess.CurrentFlow != models.FlowTypeOfferUpload || sess.CurrentStep != models.StepUploadTitle {
		t.Fatalf("expected offer_upload/TITLE, got %s/%s", sess.CurrentFlow, sess.CurrentStep)
	}

	r.Route(ctx, textMsg(ownerPhone, "Fresh mangoes 20% off"))

	// An unparsable price re-prompts without advancing.
	r.Route(ctx, textMsg(ownerPhone, "cheap"))
	if got := getSession(t, st, ownerPhone); got.CurrentStep != models.StepUploadPrice {
		t.Fatalf("invalid price advanced the step to %s", got.CurrentStep)
	}

	r.Route(ctx, textMsg(ownerPhone, "150"))
	r.Route(ctx, buttonMsg(ownerPhone, ChoiceSkip))

	// Typed validity is matched the same as the buttons.
	r.Route(ctx, textMsg(ownerPhone, "1 week"))

	sess = getSession(t, st, ownerPhone)
	if sess.CurrentStep != models.StepUploadReview {
		t.Fatalf("expected REVIEW, got %s", sess.CurrentStep)
	}
	if sess.TempData[models.DataKeyOfferValidDays] != "7" {
		t.Errorf("validity not normalized to days: %v", sess.TempData)
	}

	r.Route(ctx, buttonMsg(ownerPhone, ChoiceConfirm))

	sess = getSession(t, st, ownerPhone)
	if sess.CurrentStep != models.StepUploadDone {
		t.Fatalf("expected DONE, got %s", sess.CurrentStep)
	}
	if len(sess.TempData) != 0 {
		t.Errorf("temp data should be cleared: %v", sess.TempData)
	}
	if !strings.Contains(sender.lastTo(t, ownerPhone).Body, "is live until") {
		t.Errorf("unexpected confirmation: %q", sender.lastTo(t, ownerPhone).Body)
	}

	offers, err := deps.Offers.ListByCategory(ctx, "grocery")
	if err != nil || len(offers) != 1 {
		t.Fatalf("expected 1 grocery offer, got %d (%v)", len(offers), err)
	}
	if offers[0].Title != "Fresh mangoes 20% off" || offers[0].Price != 150 {
		t.Errorf("unexpected offer %+v", offers[0])
	}
}

func TestOfferUploadRejectsNonOwner(t *testing.T) {
	deps, st, sender := newTestDeps(t)
	registerUser(t, deps, browserPhone, "Ravi", models.RoleCustomer)
	r := NewRouter(deps)
	ctx := context.Background()

	r.Route(ctx, textMsg(browserPhone, "hi"))
	r.Route(ctx, buttonMsg(browserPhone, menuUploadOffer))

	if !strings.Contains(sender.lastTo(t, browserPhone).Body, "shop owners") &&
		!strings.Contains(sender.lastTo(t, browserPhone).Body, "What would you like") {
		t.Errorf("unexpected reply: %q", sender.lastTo(t, browserPhone).Body)
	}
	if sess := getSession(t, st, browserPhone); sess.CurrentFlow == models.FlowTypeOfferUpload {
		t.Error("customer should not enter the upload flow")
	}
}

func TestOfferBrowseEndToEnd(t *testing.T) {
	deps, st, sender := newTestDeps(t)
	owner := registerUser(t, deps, ownerPhone, "Sunita", models.RoleShopOwner)
	registerUser(t, deps, browserPhone, "Ravi", models.RoleCustomer)
	r := NewRouter(deps)
	ctx := context.Background()

	offer := seedOffer(t, deps, owner, "Fresh mangoes", 150)

	r.Route(ctx, textMsg(browserPhone, "hi"))
	r.Route(ctx, buttonMsg(browserPhone, menuBrowseOffers))

	sess := getSession(t, st, browserPhone)
	if sess.CurrentFlow != models.FlowTypeOfferBrowse || sess.CurrentStep != models.StepBrowseCategory {
		t.Fatalf("expected offer_browse/CATEGORY, got %s/%s", sess.CurrentFlow, sess.CurrentStep)
	}

	r.Route(ctx, buttonMsg(browserPhone, "grocery"))

	listing := sender.lastTo(t, browserPhone)
	if len(listing.Sections) != 1 || len(listing.Sections[0].Rows) != 1 {
		t.Fatalf("expected one offer row, got %+v", listing.Sections)
	}
	if listing.Sections[0].Rows[0].ID != offer.ID {
		t.Errorf("row id %q does not match offer %q", listing.Sections[0].Rows[0].ID, offer.ID)
	}

	r.Route(ctx, buttonMsg(browserPhone, offer.ID))

	detail := sender.lastTo(t, browserPhone)
	if !strings.Contains(detail.Body, "Fresh mangoes") || !strings.Contains(detail.Body, "Sunita's Shop") {
		t.Errorf("unexpected detail body: %q", detail.Body)
	}

	r.Route(ctx, buttonMsg(browserPhone, ButtonContact))

	contact := sender.lastTo(t, browserPhone)
	if !strings.Contains(contact.Body, "wa.me/"+ownerPhone) {
		t.Errorf("expected a wa.me link, got %q", contact.Body)
	}
	if got := getSession(t, st, browserPhone); got.CurrentStep != models.StepBrowseDone {
		t.Errorf("expected DONE, got %s", got.CurrentStep)
	}
}

func TestOfferBrowseEmptyCategoryReprompts(t *testing.T) {
	deps, st, sender := newTestDeps(t)
	registerUser(t, deps, browserPhone, "Ravi", models.RoleCustomer)
	r := NewRouter(deps)
	ctx := context.Background()

	r.Route(ctx, textMsg(browserPhone, "hi"))
	r.Route(ctx, buttonMsg(browserPhone, menuBrowseOffers))
	r.Route(ctx, buttonMsg(browserPhone, "electronics"))

	if !strings.Contains(sender.lastTo(t, browserPhone).Body, "No active offers") {
		t.Errorf("unexpected reply: %q", sender.lastTo(t, browserPhone).Body)
	}
	if got := getSession(t, st, browserPhone); got.CurrentStep != models.StepBrowseCategory {
		t.Errorf("empty category should stay on CATEGORY, got %s", got.CurrentStep)
	}
}

func TestOfferBrowseWorksUnregistered(t *testing.T) {
	deps, st, _ := newTestDeps(t)
	owner := registerUser(t, deps, ownerPhone, "Sunita", models.RoleShopOwner)
	seedOffer(t, deps, owner, "Fresh mangoes", 150)
	r := NewRouter(deps)
	ctx := context.Background()

	// A phone with no account can still browse.
	r.Route(ctx, textMsg(browserPhone, "offers"))
	r.Route(ctx, buttonMsg(browserPhone, "grocery"))

	if got := getSession(t, st, browserPhone); got.CurrentStep != models.StepBrowseList {
		t.Errorf("expected LIST, got %s", got.CurrentStep)
	}
}
