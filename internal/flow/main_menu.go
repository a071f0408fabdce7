package flow

import (
	"context"
	"fmt"
	"strings"

	"github.com/bazaarlink/bazaarbot/internal/models"
)

// Main menu selection ids.
const (
	menuRegister     = "register"
	menuBrowseOffers = "browse_offers"
	menuSearch       = "search_product"
	menuUploadOffer  = "upload_offer"
	menuPostCatch    = "post_catch"
	menuFishMarket   = "fish_market"
	menuNewAgreement = "new_agreement"
	menuAgreements   = "my_agreements"
	menuSettings     = "settings"
)

// menuTable resolves typed menu requests ("offers", "fish", ...).
var menuTable = Table{
	{Value: menuRegister, Keywords: []string{"register", "sign up", "signup", "join"}},
	{Value: menuBrowseOffers, Keywords: []string{"offer", "deal", "browse"}},
	{Value: menuSearch, Keywords: []string{"search", "find", "looking for", "need"}},
	{Value: menuUploadOffer, Keywords: []string{"upload", "post offer", "sell"}},
	{Value: menuPostCatch, Keywords: []string{"post catch", "catch", "my fish"}},
	{Value: menuFishMarket, Keywords: []string{"fish", "machli"}},
	{Value: menuNewAgreement, Keywords: []string{"agreement", "iou", "udhaar", "loan", "lend"}},
	{Value: menuAgreements, Keywords: []string{"my agreements", "khata"}},
	{Value: menuSettings, Keywords: []string{"setting", "profile", "account"}},
}

// MainMenuFlow is the default flow every session starts in and returns to.
// It has no steps of its own: every inbound message is a menu selection.
type MainMenuFlow struct{}

func (f *MainMenuFlow) Type() models.FlowType { return models.FlowTypeMainMenu }

// Start sends the role-aware menu.
func (f *MainMenuFlow) Start(ctx context.Context, fc *Context) error {
	if !fc.Registered() {
		body := "Welcome to BazaarLink! I can help you find offers and shops nearby.\n\nRegister to unlock everything."
		return fc.ReplyButtons(ctx, body, []models.Button{
			{ID: menuRegister, Title: "Register"},
			{ID: menuBrowseOffers, Title: "Browse Offers"},
			{ID: menuFishMarket, Title: "Fresh Fish"},
		})
	}

	sections := []models.ListSection{
		{
			Title: "Buy",
			Rows: []models.Button{
				{ID: menuBrowseOffers, Title: "Browse Offers", Description: "Deals from shops near you"},
				{ID: menuSearch, Title: "Find a Product", Description: "Ask shops who has it"},
				{ID: menuFishMarket, Title: "Fresh Fish", Description: "Today's catches"},
			},
		},
	}

	var sell []models.Button
	if fc.User.IsShopOwner() {
		sell = append(sell, models.Button{ID: menuUploadOffer, Title: "Upload Offer", Description: "Post a new deal"})
	}
	if fc.User.IsFishSeller() {
		sell = append(sell, models.Button{ID: menuPostCatch, Title: "Post Catch", Description: "Announce today's catch"})
	}
	if len(sell) > 0 {
		sections = append(sections, models.ListSection{Title: "Sell", Rows: sell})
	}

	sections = append(sections, models.ListSection{
		Title: "Money & Account",
		Rows: []models.Button{
			{ID: menuNewAgreement, Title: "New Agreement", Description: "Record money given or taken"},
			{ID: menuAgreements, Title: "My Agreements"},
			{ID: menuSettings, Title: "Settings"},
		},
	})

	body := fmt.Sprintf("Hi %s! What would you like to do?", fc.User.Name)
	return fc.ReplyList(ctx, body, "Choose", sections)
}

// Handle routes a menu selection to its flow.
func (f *MainMenuFlow) Handle(ctx context.Context, fc *Context, msg models.IncomingMessage) error {
	choice, ok := menuTable.Match(msg)
	if !ok {
		return f.Start(ctx, fc)
	}

	switch choice {
	case menuRegister:
		if fc.Registered() {
			if err := fc.Reply(ctx, "You are already registered."); err != nil {
				return err
			}
			return f.Start(ctx, fc)
		}
		return fc.StartFlow(ctx, models.FlowTypeRegistration)

	case menuBrowseOffers:
		return fc.StartFlow(ctx, models.FlowTypeOfferBrowse)

	case menuSearch:
		if !fc.Registered() {
			return f.requireRegistration(ctx, fc)
		}
		return fc.StartFlow(ctx, models.FlowTypeProductSearch)

	case menuUploadOffer:
		if !fc.User.IsShopOwner() {
			if err := fc.Reply(ctx, "Only registered shop owners can upload offers."); err != nil {
				return err
			}
			return f.Start(ctx, fc)
		}
		return fc.StartFlow(ctx, models.FlowTypeOfferUpload)

	case menuPostCatch:
		if !fc.User.IsFishSeller() {
			if err := fc.Reply(ctx, "Only registered fish sellers can post catches."); err != nil {
				return err
			}
			return f.Start(ctx, fc)
		}
		return fc.StartFlow(ctx, models.FlowTypeFishCatchPost)

	case menuFishMarket:
		if err := f.sendRecentCatches(ctx, fc); err != nil {
			return err
		}
		return f.Start(ctx, fc)

	case menuNewAgreement:
		if !fc.Registered() {
			return f.requireRegistration(ctx, fc)
		}
		return fc.StartFlow(ctx, models.FlowTypeAgreementCreate)

	case menuAgreements:
		if !fc.Registered() {
			return f.requireRegistration(ctx, fc)
		}
		if err := f.sendAgreementList(ctx, fc); err != nil {
			return err
		}
		return f.Start(ctx, fc)

	case menuSettings:
		if !fc.Registered() {
			return f.requireRegistration(ctx, fc)
		}
		return fc.StartFlow(ctx, models.FlowTypeSettings)

	default:
		return f.Start(ctx, fc)
	}
}

// requireRegistration nudges unregistered users into the registration flow.
func (f *MainMenuFlow) requireRegistration(ctx context.Context, fc *Context) error {
	if err := fc.Reply(ctx, "You need to register first. It takes under a minute."); err != nil {
		return err
	}
	return fc.StartFlow(ctx, models.FlowTypeRegistration)
}

// sendAgreementList renders the user's agreements as text.
func (f *MainMenuFlow) sendAgreementList(ctx context.Context, fc *Context) error {
	agreements, err := fc.Agreements.ListForPhone(ctx, fc.Phone())
	if err != nil {
		return err
	}
	if len(agreements) == 0 {
		return fc.Reply(ctx, "You have no agreements yet.")
	}
	var b strings.Builder
	b.WriteString("Your agreements:\n")
	for _, a := range agreements {
		// Direction is recorded from the creator's perspective.
		owed := (a.CreatorPhone == fc.Phone() && a.Direction == models.DirectionGiving) ||
			(a.CreatorPhone != fc.Phone() && a.Direction == models.DirectionReceiving)
		verb := "to receive"
		if !owed {
			verb = "to pay"
		}
		fmt.Fprintf(&b, "\n• %s %s (%s) — %s, due %s [%s]",
			formatAmount(a.Amount), verb, a.CounterpartyName, a.Purpose,
			a.DueDate.Format("2 Jan 2006"), a.Status)
	}
	return fc.Reply(ctx, b.String())
}

// sendRecentCatches renders today's fish catches as text.
func (f *MainMenuFlow) sendRecentCatches(ctx context.Context, fc *Context) error {
	catches, err := fc.Catches.ListRecent(ctx, 0)
	if err != nil {
		return err
	}
	if len(catches) == 0 {
		return fc.Reply(ctx, "No fresh catches posted yet. Check back later!")
	}
	var b strings.Builder
	b.WriteString("Fresh catches:\n")
	for _, c := range catches {
		fmt.Fprintf(&b, "\n🐟 %s — %s, %s", c.Species, c.Quantity, formatAmount(c.Price))
	}
	return fc.Reply(ctx, b.String())
}
