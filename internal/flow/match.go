package flow

import (
	"strings"

	"github.com/bazaarlink/bazaarbot/internal/models"
)

// Choice is one canonical value and the keywords that select it from free
// text. Keywords are lowercase.
type Choice struct {
	Value    string
	Keywords []string
}

// Table is an ordered synonym table shared by every flow that accepts free
// text where a button or list reply is expected. Structured replies are
// trusted verbatim; free text is scanned in table order and the first
// keyword hit wins, so a given table can never be ambiguous.
type Table []Choice

// Match resolves an inbound message against the table. The second return
// is false when the message carries no structured id and no keyword matches.
func (t Table) Match(msg models.IncomingMessage) (string, bool) {
	if id := msg.SelectionID(); id != "" {
		return id, true
	}
	text := strings.ToLower(strings.TrimSpace(msg.TextContent()))
	if text == "" {
		return "", false
	}
	for _, c := range t {
		for _, kw := range c.Keywords {
			if strings.Contains(text, kw) {
				return c.Value, true
			}
		}
	}
	return "", false
}

// Common canonical values shared across flows.
const (
	ChoiceConfirm = "confirm"
	ChoiceEdit    = "edit"
	ChoiceCancel  = "cancel"
	ChoiceSkip    = "skip"
	ChoiceYes     = "yes"
	ChoiceNo      = "no"
	ChoiceMenu    = "menu"
)

// reviewTable resolves the shared confirm/edit/cancel prompt on review steps.
var reviewTable = Table{
	{Value: ChoiceConfirm, Keywords: []string{"confirm", "yes", "ok", "okay", "haan", "ha"}},
	{Value: ChoiceEdit, Keywords: []string{"edit", "change", "redo"}},
	{Value: ChoiceCancel, Keywords: []string{"cancel", "no", "stop", "nahi"}},
}

// yesNoTable resolves confirm/decline prompts for counterparties, who may
// be unregistered users typing plain text.
var yesNoTable = Table{
	{Value: ChoiceYes, Keywords: []string{"yes", "confirm", "ok", "okay", "haan", "ha", "y"}},
	{Value: ChoiceNo, Keywords: []string{"no", "decline", "reject", "nahi", "n"}},
}

// IsSkip reports whether the message is the skip affordance for an optional
// step: the dedicated skip button or the literal text "skip".
func IsSkip(msg models.IncomingMessage) bool {
	if msg.SelectionID() == ChoiceSkip {
		return true
	}
	return strings.EqualFold(strings.TrimSpace(msg.TextContent()), ChoiceSkip)
}
