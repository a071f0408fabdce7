package flow

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/bazaarlink/bazaarbot/internal/models"
)

var (
	currencyJunkRegex = regexp.MustCompile(`(?i)(₹|rs\.?|rupees?|inr|,|\s)`)
	nonDigitRegex     = regexp.MustCompile(`[^0-9]`)

	// amountRegex keeps ParseFloat's wider grammar (exponents, inf, nan,
	// hex floats) out of money input.
	amountRegex = regexp.MustCompile(`^[0-9]+(\.[0-9]+)?$`)
)

// ParseAmount parses a money amount from user text: currency symbols,
// "Rs"/"INR" prefixes, separators and whitespace are stripped before
// parsing. Decimals such as "1500.50" are accepted. The result must
// satisfy 0 < amount <= models.MaxAmount.
func ParseAmount(text string) (float64, error) {
	cleaned := currencyJunkRegex.ReplaceAllString(strings.TrimSpace(text), "")
	if cleaned == "" || !amountRegex.MatchString(cleaned) {
		return 0, fmt.Errorf("no amount found in %q", text)
	}
	amount, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, fmt.Errorf("not a number: %q", text)
	}
	if amount <= 0 {
		return 0, fmt.Errorf("amount must be positive, got %v", amount)
	}
	if amount > models.MaxAmount {
		return 0, fmt.Errorf("amount %v exceeds limit %d", amount, models.MaxAmount)
	}
	return amount, nil
}

// FormatAmountValue renders a parsed amount back to a stable string for
// temp data, with no trailing zeros.
func FormatAmountValue(amount float64) string {
	return strconv.FormatFloat(amount, 'f', -1, 64)
}

// ParseQuantity parses a positive whole number, tolerating unit suffixes
// such as "5 kg" by reading the leading digits only.
func ParseQuantity(text string) (int64, error) {
	trimmed := strings.TrimSpace(text)
	i := 0
	for i < len(trimmed) && trimmed[i] >= '0' && trimmed[i] <= '9' {
		i++
	}
	if i == 0 {
		return 0, fmt.Errorf("no quantity found in %q", text)
	}
	qty, err := strconv.ParseInt(trimmed[:i], 10, 64)
	if err != nil || qty <= 0 {
		return 0, fmt.Errorf("invalid quantity %q", text)
	}
	return qty, nil
}

// ParsePhone canonicalizes a phone number typed by a user: digits only,
// between 6 and 15 of them.
func ParsePhone(text string) (string, error) {
	digits := nonDigitRegex.ReplaceAllString(text, "")
	if len(digits) < 6 || len(digits) > 15 {
		return "", fmt.Errorf("phone number must be 6-15 digits")
	}
	return digits, nil
}

// Due date option ids offered on the agreement due-date step.
const (
	DueOneWeek     = "1week"
	DueOneMonth    = "1month"
	DueThreeMonths = "3months"
)

// dueDateTable lets users type the period instead of tapping it.
var dueDateTable = Table{
	{Value: DueOneWeek, Keywords: []string{"1week", "1 week", "one week", "week", "hafta"}},
	{Value: DueOneMonth, Keywords: []string{"1month", "1 month", "one month", "month", "mahina"}},
	{Value: DueThreeMonths, Keywords: []string{"3months", "3 months", "three months", "3 mahine"}},
}

// DueDateFor converts a due-date option id into an absolute time.
func DueDateFor(option string, now time.Time) (time.Time, error) {
	switch option {
	case DueOneWeek:
		return now.AddDate(0, 0, 7), nil
	case DueOneMonth:
		return now.AddDate(0, 1, 0), nil
	case DueThreeMonths:
		return now.AddDate(0, 3, 0), nil
	default:
		return time.Time{}, fmt.Errorf("unknown due date option %q", option)
	}
}

// ValidName checks free-text names against length limits.
func ValidName(text string) (string, bool) {
	name := strings.TrimSpace(text)
	if name == "" || len(name) > models.MaxNameLength {
		return "", false
	}
	return name, true
}

// ValidFreeText checks optional descriptions and notes against the length limit.
func ValidFreeText(text string) (string, bool) {
	t := strings.TrimSpace(text)
	if len(t) > models.MaxFreeTextLength {
		return "", false
	}
	return t, true
}
