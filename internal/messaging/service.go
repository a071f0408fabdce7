// Package messaging defines a pluggable message transport abstraction for
// BazaarBot and its WhatsApp and Twilio implementations.
//
// Flows talk to a Sender; the rest of the transport (connection lifecycle,
// inbound event normalization) sits behind Service. Inbound traffic of every
// supported kind arrives on a single channel as models.IncomingMessage, so
// the router never touches provider-specific payloads.
package messaging

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"time"

	"github.com/bazaarlink/bazaarbot/internal/models"
)

// Constants for messaging service configuration
const (
	// DefaultChannelBufferSize defines the default buffer size for the inbound message channel
	DefaultChannelBufferSize = 100
	// DefaultChannelTimeout defines the default timeout for non-blocking channel operations
	DefaultChannelTimeout = 1 * time.Second
)

// ErrServiceStopped is returned when a send is attempted after Stop.
var ErrServiceStopped = errors.New("messaging service stopped")

// phoneNumberRegex matches everything that is not a digit.
var phoneNumberRegex = regexp.MustCompile(`[^0-9]`)

// Sender sends outbound prompts to a recipient. Implementations that cannot
// render interactive prompts natively (Twilio) degrade them to numbered text;
// the option IDs still round-trip because the synonym matcher accepts titles.
type Sender interface {
	// ValidateAndCanonicalizeRecipient validates and canonicalizes a recipient identifier.
	// Returns the canonicalized recipient and an error if validation fails.
	ValidateAndCanonicalizeRecipient(recipient string) (string, error)

	// SendText sends a plain text message.
	SendText(ctx context.Context, to string, body string) error

	// SendButtons sends a quick-reply button prompt (at most three buttons).
	SendButtons(ctx context.Context, to string, body string, buttons []models.Button) error

	// SendList sends a single-select list prompt.
	SendList(ctx context.Context, to string, body string, buttonLabel string, sections []models.ListSection) error

	// SendImage sends an image by URL with an optional caption.
	SendImage(ctx context.Context, to string, url string, caption string) error

	// SendLocation shares a location pin.
	SendLocation(ctx context.Context, to string, lat, lng float64, name string) error
}

// Service is a full message transport: a Sender plus lifecycle management
// and the inbound message stream.
type Service interface {
	Sender

	// Start begins any background processing (e.g., event handling).
	Start(ctx context.Context) error

	// Stop stops background processing and cleans up resources.
	Stop() error

	// Messages returns the channel of normalized inbound messages.
	Messages() <-chan models.IncomingMessage
}

// CanonicalizePhone strips non-digit characters and validates the result.
// Shared by both transport implementations.
func CanonicalizePhone(recipient string) (string, error) {
	if recipient == "" {
		return "", fmt.Errorf("recipient cannot be empty")
	}

	canonical := phoneNumberRegex.ReplaceAllString(recipient, "")
	if canonical == "" {
		return "", fmt.Errorf("invalid phone number: no digits found in recipient %q", recipient)
	}
	if len(canonical) < 6 {
		return "", fmt.Errorf("invalid phone number: %q is too short (minimum 6 digits required)", canonical)
	}

	if canonical != recipient {
		slog.Debug("Canonicalized recipient", "canonical_length", len(canonical))
	}
	return canonical, nil
}
