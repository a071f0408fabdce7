package messaging

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/bazaarlink/bazaarbot/internal/models"
	"github.com/bazaarlink/bazaarbot/internal/twiliowhatsapp"
	"github.com/bazaarlink/bazaarbot/internal/util"
)

// TwilioService implements the Service interface using Twilio API.
//
// Twilio's Go SDK cannot send native WhatsApp buttons or lists, so
// interactive prompts are rendered as numbered text. The option ids of the
// last interactive prompt per recipient are remembered; an inbound reply
// that is just a number is translated back to the id rendered under it, so
// selection still works end to end. Typed option titles are resolved by
// the flows' keyword tables as usual.
type TwilioService struct {
	client   twiliowhatsapp.TwilioWhatsAppSender
	messages chan models.IncomingMessage
	done     chan struct{}
	mu       sync.RWMutex
	stopped  bool
	options  map[string][]string
}

// NewTwilioService creates a new TwilioService with the given client.
func NewTwilioService(client twiliowhatsapp.TwilioWhatsAppSender) *TwilioService {
	return &TwilioService{
		client:   client,
		messages: make(chan models.IncomingMessage, DefaultChannelBufferSize),
		done:     make(chan struct{}),
		options:  make(map[string][]string),
	}
}

// ValidateAndCanonicalizeRecipient validates and canonicalizes a WhatsApp phone number.
func (s *TwilioService) ValidateAndCanonicalizeRecipient(recipient string) (string, error) {
	return CanonicalizePhone(recipient)
}

// Start is a no-op for Twilio; inbound traffic arrives via webhook.
func (s *TwilioService) Start(ctx context.Context) error {
	return nil
}

// Stop closes channels and stops the service
func (s *TwilioService) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return nil
	}
	s.stopped = true
	close(s.done)

	go func() {
		time.Sleep(50 * time.Millisecond)
		close(s.messages)
	}()

	return nil
}

// Messages returns the channel of normalized inbound messages.
func (s *TwilioService) Messages() <-chan models.IncomingMessage {
	return s.messages
}

// SendText sends a plain text message via Twilio. A plain send supersedes
// any earlier numbered prompt, so remembered options are dropped.
func (s *TwilioService) SendText(ctx context.Context, to string, body string) error {
	canonicalTo, err := s.ValidateAndCanonicalizeRecipient(to)
	if err != nil {
		slog.Error("TwilioService SendText validation error", "error", err)
		return err
	}
	s.rememberOptions(canonicalTo, nil)
	return s.send(ctx, canonicalTo, body)
}

// SendButtons renders buttons as a numbered option list in plain text.
func (s *TwilioService) SendButtons(ctx context.Context, to string, body string, buttons []models.Button) error {
	canonicalTo, err := s.ValidateAndCanonicalizeRecipient(to)
	if err != nil {
		slog.Error("TwilioService SendButtons validation error", "error", err)
		return err
	}

	var b strings.Builder
	b.WriteString(body)
	ids := make([]string, 0, len(buttons))
	for i, btn := range buttons {
		fmt.Fprintf(&b, "\n%d. %s", i+1, btn.Title)
		ids = append(ids, btn.ID)
	}
	s.rememberOptions(canonicalTo, ids)
	return s.send(ctx, canonicalTo, b.String())
}

// SendList renders list sections as numbered options in plain text.
// Numbering runs across sections so every row gets a distinct number.
func (s *TwilioService) SendList(ctx context.Context, to string, body string, buttonLabel string, sections []models.ListSection) error {
	canonicalTo, err := s.ValidateAndCanonicalizeRecipient(to)
	if err != nil {
		slog.Error("TwilioService SendList validation error", "error", err)
		return err
	}

	var b strings.Builder
	b.WriteString(body)
	var ids []string
	for _, sec := range sections {
		if sec.Title != "" {
			fmt.Fprintf(&b, "\n\n*%s*", sec.Title)
		}
		for _, row := range sec.Rows {
			ids = append(ids, row.ID)
			fmt.Fprintf(&b, "\n%d. %s", len(ids), row.Title)
			if row.Description != "" {
				fmt.Fprintf(&b, " — %s", row.Description)
			}
		}
	}
	s.rememberOptions(canonicalTo, ids)
	return s.send(ctx, canonicalTo, b.String())
}

// send delivers an already-canonicalized message.
func (s *TwilioService) send(ctx context.Context, canonicalTo string, body string) error {
	s.mu.RLock()
	if s.stopped {
		s.mu.RUnlock()
		return ErrServiceStopped
	}
	s.mu.RUnlock()
	return s.client.SendMessage(ctx, canonicalTo, body)
}

// rememberOptions records the option ids of the latest prompt sent to a
// recipient, in render order. nil forgets them.
func (s *TwilioService) rememberOptions(canonicalTo string, ids []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ids == nil {
		delete(s.options, canonicalTo)
		return
	}
	s.options[canonicalTo] = ids
}

// resolveNumericReply maps a bare-number reply onto the option rendered
// under that number in the recipient's last prompt.
func (s *TwilioService) resolveNumericReply(canonicalFrom, body string) (string, bool) {
	n, err := strconv.Atoi(strings.TrimSpace(body))
	if err != nil {
		return "", false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := s.options[canonicalFrom]
	if n < 1 || n > len(ids) {
		return "", false
	}
	return ids[n-1], true
}

// SendImage sends an image by URL via Twilio media message.
func (s *TwilioService) SendImage(ctx context.Context, to string, url string, caption string) error {
	s.mu.RLock()
	if s.stopped {
		s.mu.RUnlock()
		return ErrServiceStopped
	}
	s.mu.RUnlock()

	canonicalTo, err := s.ValidateAndCanonicalizeRecipient(to)
	if err != nil {
		return err
	}
	return s.client.SendMediaMessage(ctx, canonicalTo, url, caption)
}

// SendLocation shares a location as a maps link (no native pin over Twilio).
func (s *TwilioService) SendLocation(ctx context.Context, to string, lat, lng float64, name string) error {
	body := fmt.Sprintf("%s\nhttps://maps.google.com/?q=%f,%f", name, lat, lng)
	return s.SendText(ctx, to, strings.TrimSpace(body))
}

// WebhookHandler handles inbound Twilio webhook requests.
// It parses incoming messages and emits them into the Messages() channel.
func (s *TwilioService) WebhookHandler(w http.ResponseWriter, r *http.Request) {
	slog.Info("Twilio webhook received")

	if err := r.ParseForm(); err != nil {
		slog.Error("Failed to parse Twilio webhook form", "error", err)
		http.Error(w, "Bad request", http.StatusBadRequest)
		return
	}

	from := strings.TrimPrefix(r.FormValue("From"), "whatsapp:")
	body := r.FormValue("Body")

	canonical, err := s.ValidateAndCanonicalizeRecipient(from)
	if err != nil {
		slog.Warn("Twilio webhook with unusable sender", "error", err)
		http.Error(w, "Missing required fields", http.StatusBadRequest)
		return
	}

	msg := models.IncomingMessage{
		From: canonical,
		Kind: models.MessageKindText,
		Text: body,
		Time: time.Now(),
	}
	if lat, lng, ok := parseTwilioLocation(r); ok {
		msg.Kind = models.MessageKindLocation
		msg.Location = &models.Coordinates{Latitude: lat, Longitude: lng}
	} else if id, ok := s.resolveNumericReply(canonical, body); ok {
		msg.Kind = models.MessageKindButtonReply
		msg.Selection = id
	}

	s.safeEmit(msg)

	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, "OK")
}

// parseTwilioLocation extracts a shared location from webhook form fields.
func parseTwilioLocation(r *http.Request) (lat, lng float64, ok bool) {
	latStr := r.FormValue("Latitude")
	lngStr := r.FormValue("Longitude")
	if latStr == "" || lngStr == "" {
		return 0, 0, false
	}
	if _, err := fmt.Sscanf(latStr, "%f", &lat); err != nil {
		return 0, 0, false
	}
	if _, err := fmt.Sscanf(lngStr, "%f", &lng); err != nil {
		return 0, 0, false
	}
	return lat, lng, true
}

// safeEmit pushes a message into the channel without blocking forever.
func (s *TwilioService) safeEmit(msg models.IncomingMessage) {
	s.mu.RLock()
	stopped := s.stopped
	s.mu.RUnlock()
	if stopped {
		slog.Warn("TwilioService dropping inbound message (service stopped)", "from", util.MaskPhone(msg.From))
		return
	}

	select {
	case s.messages <- msg:
		slog.Debug("TwilioService emitted inbound message", "from", util.MaskPhone(msg.From))
	case <-time.After(DefaultChannelTimeout):
		slog.Warn("TwilioService messages channel blocked, dropping message", "from", util.MaskPhone(msg.From))
	}
}
