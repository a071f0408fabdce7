package flow

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/bazaarlink/bazaarbot/internal/models"
	"github.com/bazaarlink/bazaarbot/internal/util"
)

// OfferBrowseFlow lets anyone, registered or not, browse active offers by
// category and look up a shop's contact details.
type OfferBrowseFlow struct{}

func (f *OfferBrowseFlow) Type() models.FlowType { return models.FlowTypeOfferBrowse }

func (f *OfferBrowseFlow) Start(ctx context.Context, fc *Context) error {
	if err := fc.Sessions.ClearTempData(ctx, fc.Session); err != nil {
		return err
	}
	if err := fc.Sessions.SetFlowStep(ctx, fc.Session, f.Type(), models.StepBrowseCategory); err != nil {
		return err
	}
	return f.promptCategory(ctx, fc)
}

func (f *OfferBrowseFlow) Handle(ctx context.Context, fc *Context, msg models.IncomingMessage) error {
	switch fc.Session.CurrentStep {
	case models.StepBrowseCategory:
		return f.handleCategory(ctx, fc, msg)
	case models.StepBrowseList:
		return f.handleList(ctx, fc, msg)
	case models.StepBrowseDetail:
		return f.handleDetail(ctx, fc, msg)
	case models.StepBrowseDone:
		if choice, ok := whatNextTable.Match(msg); ok && choice == ButtonAgain {
			return f.Start(ctx, fc)
		}
		return fc.StartFlow(ctx, models.FlowTypeMainMenu)
	default:
		slog.Warn("OfferBrowse on unknown step, restarting", "step", fc.Session.CurrentStep, "phone", util.MaskPhone(fc.Phone()))
		return f.Start(ctx, fc)
	}
}

func (f *OfferBrowseFlow) promptCategory(ctx context.Context, fc *Context) error {
	sections := []models.ListSection{{Title: "Categories", Rows: shopCategories}}
	return fc.ReplyList(ctx, "What are you shopping for?", "Select", sections)
}

func (f *OfferBrowseFlow) handleCategory(ctx context.Context, fc *Context, msg models.IncomingMessage) error {
	category, ok := categoryTable.Match(msg)
	if !ok {
		return f.promptCategory(ctx, fc)
	}
	if err := fc.Sessions.MergeTempData(ctx, fc.Session, map[models.DataKey]string{models.DataKeyOfferCategory: category}); err != nil {
		return err
	}
	return f.showOffers(ctx, fc, category)
}

// showOffers lists active offers for a category and advances to LIST, or
// re-prompts the category when there are none.
func (f *OfferBrowseFlow) showOffers(ctx context.Context, fc *Context, category string) error {
	offers, err := fc.Offers.ListByCategory(ctx, category)
	if err != nil {
		return err
	}
	if len(offers) == 0 {
		if err := fc.Reply(ctx, fmt.Sprintf("No active offers in %s right now. Try another category!", categoryTitle(category))); err != nil {
			return err
		}
		return fc.Sessions.SetStep(ctx, fc.Session, models.StepBrowseCategory)
	}

	rows := make([]models.Button, 0, len(offers))
	for _, o := range offers {
		rows = append(rows, models.Button{
			ID:          o.ID,
			Title:       o.Title,
			Description: fmt.Sprintf("%s · until %s", formatAmount(o.Price), o.ValidUntil.Format("2 Jan")),
		})
	}
	sections := []models.ListSection{{Title: categoryTitle(category), Rows: rows}}
	if err := fc.Sessions.SetStep(ctx, fc.Session, models.StepBrowseList); err != nil {
		return err
	}
	return fc.ReplyList(ctx, "Here's what shops are offering:", "View offer", sections)
}

func (f *OfferBrowseFlow) handleList(ctx context.Context, fc *Context, msg models.IncomingMessage) error {
	offerID := msg.SelectionID()
	if offerID == "" {
		return f.showOffers(ctx, fc, fc.Session.Temp(models.DataKeyOfferCategory, ""))
	}

	offer, err := fc.Offers.Get(ctx, offerID)
	if err != nil {
		// Gone or expired between listing and tapping.
		if err := fc.Reply(ctx, "That offer just expired. Here's the current list:"); err != nil {
			return err
		}
		return f.showOffers(ctx, fc, fc.Session.Temp(models.DataKeyOfferCategory, ""))
	}

	shop, err := fc.Offers.ShopByID(ctx, offer.ShopID)
	if err != nil {
		return err
	}

	// Locally stored photos have no public URL to re-send.
	if strings.HasPrefix(offer.PhotoURL, "http") {
		if imgErr := fc.Sender.SendImage(ctx, fc.Phone(), offer.PhotoURL, offer.Title); imgErr != nil {
			slog.Warn("Failed to send offer photo", "error", imgErr, "offer", offer.ID)
		}
	}

	if err := fc.Sessions.MergeTempData(ctx, fc.Session, map[models.DataKey]string{models.DataKeyOfferID: offer.ID}); err != nil {
		return err
	}
	if err := fc.Sessions.SetStep(ctx, fc.Session, models.StepBrowseDetail); err != nil {
		return err
	}

	body := fmt.Sprintf("%s\n%s at %s\nValid until %s",
		offer.Title, formatAmount(offer.Price), shop.Name, offer.ValidUntil.Format("2 Jan 2006"))
	return fc.ReplyButtons(ctx, body, []models.Button{
		{ID: ButtonContact, Title: "Contact Shop"},
		{ID: ButtonBack, Title: "Back to List"},
		{ID: ButtonMainMenu, Title: "Main Menu"},
	})
}

// detailTable resolves typed replies on the detail step.
var detailTable = Table{
	{Value: ButtonContact, Keywords: []string{"contact", "call", "number"}},
	{Value: ButtonBack, Keywords: []string{"back", "list", "offers"}},
}

func (f *OfferBrowseFlow) handleDetail(ctx context.Context, fc *Context, msg models.IncomingMessage) error {
	choice, ok := detailTable.Match(msg)
	if !ok {
		return fc.Reply(ctx, "Tap one of the buttons, or send \"menu\" to go home.")
	}

	switch choice {
	case ButtonContact:
		offer, err := fc.Offers.Get(ctx, fc.Session.Temp(models.DataKeyOfferID, ""))
		if err != nil {
			if replyErr := fc.Reply(ctx, "That offer is no longer available."); replyErr != nil {
				return replyErr
			}
			return f.showOffers(ctx, fc, fc.Session.Temp(models.DataKeyOfferCategory, ""))
		}
		shop, err := fc.Offers.ShopByID(ctx, offer.ShopID)
		if err != nil {
			return err
		}
		if err := fc.Sessions.SetStep(ctx, fc.Session, models.StepBrowseDone); err != nil {
			return err
		}
		body := fmt.Sprintf("You can reach %s on WhatsApp: wa.me/%s\n\nHappy shopping!", shop.Name, shop.Phone)
		return fc.ReplyButtons(ctx, body, whatNextButtons("Browse More", ""))

	case ButtonBack:
		return f.showOffers(ctx, fc, fc.Session.Temp(models.DataKeyOfferCategory, ""))

	default:
		return fc.StartFlow(ctx, models.FlowTypeMainMenu)
	}
}
