package messaging

import (
	"context"
	"log/slog"
	"time"

	"github.com/bazaarlink/bazaarbot/internal/media"
	"github.com/bazaarlink/bazaarbot/internal/models"
	"github.com/bazaarlink/bazaarbot/internal/util"
	"github.com/bazaarlink/bazaarbot/internal/whatsapp"
	"go.mau.fi/whatsmeow/types/events"
)

// WhatsAppService implements Service using the Whatsmeow-based whatsapp client.
type WhatsAppService struct {
	client   *whatsapp.Client
	media    *media.Store
	messages chan models.IncomingMessage
	done     chan struct{}
}

// NewWhatsAppService creates a new WhatsAppService wrapping the given client.
// mediaStore may be nil when inbound media is not needed (tests).
func NewWhatsAppService(client *whatsapp.Client, mediaStore *media.Store) *WhatsAppService {
	return &WhatsAppService{
		client:   client,
		media:    mediaStore,
		messages: make(chan models.IncomingMessage, DefaultChannelBufferSize),
		done:     make(chan struct{}),
	}
}

// Start registers the inbound event handler.
func (s *WhatsAppService) Start(ctx context.Context) error {
	slog.Debug("WhatsAppService Start invoked")

	if s.client == nil || s.client.GetClient() == nil {
		slog.Debug("WhatsAppService no underlying client available, skipping event handling (likely mock)")
		return nil
	}

	s.client.GetClient().AddEventHandler(func(evt interface{}) {
		switch v := evt.(type) {
		case *events.Message:
			s.handleIncomingMessage(v)
		default:
			// Receipts, presence and connection events are not flow input.
		}
	})
	slog.Debug("WhatsAppService event handler registered")
	return nil
}

// Stop stops background processing.
func (s *WhatsAppService) Stop() error {
	slog.Info("WhatsAppService Stop invoked")
	close(s.done)
	close(s.messages)
	slog.Info("WhatsAppService stopped and channel closed")
	return nil
}

// Messages returns the channel of normalized inbound messages.
func (s *WhatsAppService) Messages() <-chan models.IncomingMessage {
	return s.messages
}

// ValidateAndCanonicalizeRecipient validates and canonicalizes a WhatsApp phone number.
func (s *WhatsAppService) ValidateAndCanonicalizeRecipient(recipient string) (string, error) {
	return CanonicalizePhone(recipient)
}

// SendText sends a plain text message.
func (s *WhatsAppService) SendText(ctx context.Context, to string, body string) error {
	canonical, err := s.ValidateAndCanonicalizeRecipient(to)
	if err != nil {
		return err
	}
	if err := s.client.SendMessage(ctx, canonical, body); err != nil {
		slog.Error("WhatsAppService SendText error", "error", err, "to", util.MaskPhone(canonical))
		return err
	}
	return nil
}

// SendButtons sends a quick-reply button prompt.
func (s *WhatsAppService) SendButtons(ctx context.Context, to string, body string, buttons []models.Button) error {
	canonical, err := s.ValidateAndCanonicalizeRecipient(to)
	if err != nil {
		return err
	}
	if err := s.client.SendButtons(ctx, canonical, body, buttons, ""); err != nil {
		slog.Error("WhatsAppService SendButtons error", "error", err, "to", util.MaskPhone(canonical))
		return err
	}
	return nil
}

// SendList sends a single-select list prompt.
func (s *WhatsAppService) SendList(ctx context.Context, to string, body string, buttonLabel string, sections []models.ListSection) error {
	canonical, err := s.ValidateAndCanonicalizeRecipient(to)
	if err != nil {
		return err
	}
	if err := s.client.SendList(ctx, canonical, body, buttonLabel, sections, ""); err != nil {
		slog.Error("WhatsAppService SendList error", "error", err, "to", util.MaskPhone(canonical))
		return err
	}
	return nil
}

// SendImage sends an image by URL with an optional caption.
func (s *WhatsAppService) SendImage(ctx context.Context, to string, url string, caption string) error {
	canonical, err := s.ValidateAndCanonicalizeRecipient(to)
	if err != nil {
		return err
	}
	if err := s.client.SendImage(ctx, canonical, url, caption); err != nil {
		slog.Error("WhatsAppService SendImage error", "error", err, "to", util.MaskPhone(canonical))
		return err
	}
	return nil
}

// SendLocation shares a location pin.
func (s *WhatsAppService) SendLocation(ctx context.Context, to string, lat, lng float64, name string) error {
	canonical, err := s.ValidateAndCanonicalizeRecipient(to)
	if err != nil {
		return err
	}
	if err := s.client.SendLocation(ctx, canonical, lat, lng, name, ""); err != nil {
		slog.Error("WhatsAppService SendLocation error", "error", err, "to", util.MaskPhone(canonical))
		return err
	}
	return nil
}

// handleIncomingMessage normalizes one inbound event and forwards it.
func (s *WhatsAppService) handleIncomingMessage(evt *events.Message) {
	msg, ok := NormalizeEvent(evt, s.media)
	if !ok {
		return
	}

	select {
	case s.messages <- msg:
		slog.Debug("WhatsAppService incoming message forwarded", "from", util.MaskPhone(msg.From), "kind", msg.Kind)
	case <-time.After(DefaultChannelTimeout):
		slog.Warn("WhatsAppService messages channel blocked, dropping message", "from", util.MaskPhone(msg.From), "timeout", DefaultChannelTimeout)
	}
}
