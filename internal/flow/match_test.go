package flow

import (
	"testing"

	"github.com/bazaarlink/bazaarbot/internal/models"
)

func TestTableMatchSelectionIDVerbatim(t *testing.T) {
	// Structured ids are trusted as-is, even when the table doesn't know them.
	value, ok := reviewTable.Match(buttonMsg("1234567890", "something_custom"))
	if !ok {
		t.Fatal("expected a match for a structured selection")
	}
	if value != "something_custom" {
		t.Errorf("expected selection id returned verbatim, got %q", value)
	}
}

func TestTableMatchFreeText(t *testing.T) {
	tests := []struct {
		text  string
		want  string
		match bool
	}{
		{"confirm", ChoiceConfirm, true},
		{"  YES  ", ChoiceConfirm, true},
		{"haan", ChoiceConfirm, true},
		{"please change it", ChoiceEdit, true},
		{"nahi", ChoiceCancel, true},
		{"stop", ChoiceCancel, true},
		{"what?", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		value, ok := reviewTable.Match(textMsg("1234567890", tt.text))
		if ok != tt.match {
			t.Errorf("Match(%q): matched=%v, want %v", tt.text, ok, tt.match)
			continue
		}
		if ok && value != tt.want {
			t.Errorf("Match(%q) = %q, want %q", tt.text, value, tt.want)
		}
	}
}

func TestTableMatchFirstHitWins(t *testing.T) {
	// "yes" belongs to confirm, "no" to cancel; a message containing both
	// resolves to whichever choice comes first in the table.
	value, ok := reviewTable.Match(textMsg("1234567890", "yes no"))
	if !ok || value != ChoiceConfirm {
		t.Errorf("expected first table entry to win, got %q (ok=%v)", value, ok)
	}
}

func TestTableMatchLocationOnly(t *testing.T) {
	if _, ok := reviewTable.Match(locationMsg("1234567890", 1, 2)); ok {
		t.Error("expected no match for a message with no text and no selection")
	}
}

func TestIsSkip(t *testing.T) {
	if !IsSkip(buttonMsg("1234567890", ChoiceSkip)) {
		t.Error("skip button should be recognized")
	}
	if !IsSkip(textMsg("1234567890", " Skip ")) {
		t.Error("typed skip should be recognized case-insensitively")
	}
	if IsSkip(textMsg("1234567890", "skipped my lunch")) {
		t.Error("skip must be an exact word, not a substring")
	}
}

func TestYesNoTableHindiSynonyms(t *testing.T) {
	if v, ok := yesNoTable.Match(textMsg("1234567890", "haan")); !ok || v != ChoiceYes {
		t.Errorf("expected haan to mean yes, got %q", v)
	}
	if v, ok := yesNoTable.Match(textMsg("1234567890", "nahi")); !ok || v != ChoiceNo {
		t.Errorf("expected nahi to mean no, got %q", v)
	}
}

func TestMenuTableTypedShortcuts(t *testing.T) {
	tests := []struct {
		text string
		want string
	}{
		{"show me offers", menuBrowseOffers},
		{"i need a pressure cooker", menuSearch},
		{"udhaar", menuNewAgreement},
		{"machli", menuFishMarket},
	}
	for _, tt := range tests {
		value, ok := menuTable.Match(textMsg("1234567890", tt.text))
		if !ok || value != tt.want {
			t.Errorf("menuTable.Match(%q) = %q (ok=%v), want %q", tt.text, value, ok, tt.want)
		}
	}
}

func TestMatchUnsupportedKind(t *testing.T) {
	msg := models.IncomingMessage{From: "1234567890", Kind: models.MessageKindUnsupported}
	if _, ok := yesNoTable.Match(msg); ok {
		t.Error("unsupported messages carry nothing to match")
	}
}
