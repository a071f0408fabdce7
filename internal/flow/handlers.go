package flow

import (
	"strconv"
	"strings"

	"github.com/bazaarlink/bazaarbot/internal/models"
)

// Shared button ids used across flows.
const (
	ButtonAgain    = "again"
	ButtonViewMine = "view_mine"
	ButtonBack     = "back"
	ButtonContact  = "contact"
)

// Shop categories offered during registration, offer upload and browsing.
var shopCategories = []models.Button{
	{ID: "grocery", Title: "Grocery"},
	{ID: "vegetables", Title: "Vegetables & Fruits"},
	{ID: "clothing", Title: "Clothing"},
	{ID: "electronics", Title: "Electronics"},
	{ID: "hardware", Title: "Hardware"},
	{ID: "other", Title: "Other"},
}

// categoryTable lets users type a category instead of picking from the list.
var categoryTable = Table{
	{Value: "grocery", Keywords: []string{"grocery", "groceries", "kirana"}},
	{Value: "vegetables", Keywords: []string{"vegetable", "fruit", "sabzi"}},
	{Value: "clothing", Keywords: []string{"cloth", "dress", "kapda"}},
	{Value: "electronics", Keywords: []string{"electronic", "mobile", "phone"}},
	{Value: "hardware", Keywords: []string{"hardware", "tools"}},
	{Value: "other", Keywords: []string{"other", "misc"}},
}

// roleTable resolves typed role names during registration.
var roleTable = Table{
	{Value: string(models.RoleCustomer), Keywords: []string{"customer", "buyer", "grahak"}},
	{Value: string(models.RoleShopOwner), Keywords: []string{"shop", "store", "dukaan", "owner"}},
	{Value: string(models.RoleFishSeller), Keywords: []string{"fish", "machli", "seller"}},
	{Value: string(models.RoleWorker), Keywords: []string{"worker", "labour", "labor", "mazdoor"}},
}

// reviewButtons is the shared confirm/edit/cancel prompt on review steps.
func reviewButtons() []models.Button {
	return []models.Button{
		{ID: ChoiceConfirm, Title: "Confirm"},
		{ID: ChoiceEdit, Title: "Edit"},
		{ID: ChoiceCancel, Title: "Cancel"},
	}
}

// yesNoButtons is the shared confirm/decline prompt.
func yesNoButtons(yesTitle, noTitle string) []models.Button {
	return []models.Button{
		{ID: ChoiceYes, Title: yesTitle},
		{ID: ChoiceNo, Title: noTitle},
	}
}

// skipButton is the affordance on optional steps.
func skipButton() models.Button {
	return models.Button{ID: ChoiceSkip, Title: "Skip"}
}

// whatNextButtons is the fixed terminal-step menu: repeat the flow, view a
// flow-specific list, or go home. viewTitle may be empty to omit the middle
// option.
func whatNextButtons(againTitle, viewTitle string) []models.Button {
	buttons := []models.Button{{ID: ButtonAgain, Title: againTitle}}
	if viewTitle != "" {
		buttons = append(buttons, models.Button{ID: ButtonViewMine, Title: viewTitle})
	}
	return append(buttons, models.Button{ID: ButtonMainMenu, Title: "Main Menu"})
}

// whatNextTable resolves typed answers on terminal steps.
var whatNextTable = Table{
	{Value: ButtonAgain, Keywords: []string{"again", "another", "more", "repeat"}},
	{Value: ButtonViewMine, Keywords: []string{"view", "list", "show", "mine"}},
	{Value: ButtonMainMenu, Keywords: []string{"menu", "home", "main"}},
}

// formatAmount renders a rupee amount for chat output, keeping paise
// only when the amount has them.
func formatAmount(amount float64) string {
	return "₹" + strconv.FormatFloat(amount, 'f', -1, 64)
}

// categoryTitle maps a category id back to its display title.
func categoryTitle(id string) string {
	for _, c := range shopCategories {
		if c.ID == id {
			return c.Title
		}
	}
	if id == "" {
		return id
	}
	return strings.ToUpper(id[:1]) + id[1:]
}
