package flow

import (
	"testing"
	"time"

	"github.com/bazaarlink/bazaarbot/internal/models"
)

func TestParseAmount(t *testing.T) {
	tests := []struct {
		in      string
		want    float64
		wantErr bool
	}{
		{"20000", 20000, false},
		{"₹20,000", 20000, false},
		{"Rs. 500", 500, false},
		{"rs500", 500, false},
		{"INR 1200", 1200, false},
		{" 150 ", 150, false},
		{"1500.50", 1500.50, false},
		{"₹20,000.00", 20000, false},
		{"abc", 0, true},
		{"", 0, true},
		{"0", 0, true},
		{"-50", 0, true},
		{"1e9", 0, true},
		{"NaN", 0, true},
		{"10000001", 0, true},
	}
	for _, tt := range tests {
		got, err := ParseAmount(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ParseAmount(%q) expected error, got %v", tt.in, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseAmount(%q) unexpected error: %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseAmount(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestFormatAmountValue(t *testing.T) {
	if got := FormatAmountValue(20000); got != "20000" {
		t.Errorf("FormatAmountValue(20000) = %q", got)
	}
	if got := FormatAmountValue(1500.5); got != "1500.5" {
		t.Errorf("FormatAmountValue(1500.5) = %q", got)
	}
}

func TestParseAmountMaxBoundary(t *testing.T) {
	if _, err := ParseAmount("10000000"); err != nil {
		t.Errorf("amount equal to the limit should parse: %v", err)
	}
	if _, err := ParseAmount("10000001"); err == nil {
		t.Error("amount above the limit should fail")
	}
	_ = models.MaxAmount
}

func TestParseQuantity(t *testing.T) {
	if got, err := ParseQuantity("5 kg"); err != nil || got != 5 {
		t.Errorf("ParseQuantity(\"5 kg\") = %d, %v", got, err)
	}
	if got, err := ParseQuantity("15"); err != nil || got != 15 {
		t.Errorf("ParseQuantity(\"15\") = %d, %v", got, err)
	}
	if _, err := ParseQuantity("kg"); err == nil {
		t.Error("expected error for quantity with no digits")
	}
	if _, err := ParseQuantity("0 kg"); err == nil {
		t.Error("expected error for zero quantity")
	}
}

func TestParsePhone(t *testing.T) {
	if got, err := ParsePhone("+91 98765-43210"); err != nil || got != "919876543210" {
		t.Errorf("ParsePhone = %q, %v", got, err)
	}
	if got, err := ParsePhone("9876543210"); err != nil || got != "9876543210" {
		t.Errorf("ParsePhone = %q, %v", got, err)
	}
	if _, err := ParsePhone("12345"); err == nil {
		t.Error("expected error for too-short phone")
	}
	if _, err := ParsePhone("1234567890123456"); err == nil {
		t.Error("expected error for too-long phone")
	}
}

func TestDueDateFor(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		option string
		want   time.Time
	}{
		{DueOneWeek, now.AddDate(0, 0, 7)},
		{DueOneMonth, now.AddDate(0, 1, 0)},
		{DueThreeMonths, now.AddDate(0, 3, 0)},
	}
	for _, tt := range tests {
		got, err := DueDateFor(tt.option, now)
		if err != nil {
			t.Errorf("DueDateFor(%q) unexpected error: %v", tt.option, err)
			continue
		}
		if !got.Equal(tt.want) {
			t.Errorf("DueDateFor(%q) = %v, want %v", tt.option, got, tt.want)
		}
	}
	if _, err := DueDateFor("next year", now); err == nil {
		t.Error("expected error for unknown option")
	}
}

func TestDueDateTableTypedPeriods(t *testing.T) {
	if v, ok := dueDateTable.Match(textMsg("1234567890", "one month")); !ok || v != DueOneMonth {
		t.Errorf("expected one month, got %q (ok=%v)", v, ok)
	}
	if v, ok := dueDateTable.Match(textMsg("1234567890", "hafta")); !ok || v != DueOneWeek {
		t.Errorf("expected hafta to mean one week, got %q", v)
	}
}

func TestValidName(t *testing.T) {
	if _, ok := ValidName("  Ravi  "); !ok {
		t.Error("trimmed non-empty name should be valid")
	}
	if name, _ := ValidName("  Ravi  "); name != "Ravi" {
		t.Errorf("expected trimmed name, got %q", name)
	}
	if _, ok := ValidName("   "); ok {
		t.Error("blank name should be invalid")
	}
	long := make([]byte, models.MaxNameLength+1)
	for i := range long {
		long[i] = 'a'
	}
	if _, ok := ValidName(string(long)); ok {
		t.Error("over-length name should be invalid")
	}
}
