package twiliowhatsapp

import (
	"context"
	"testing"
)

func TestMockClient_SendMessage(t *testing.T) {
	ctx := context.Background()
	mock := NewMockClient()

	err := mock.SendMessage(ctx, "12345", "Hello Test")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(mock.SentMessages) != 1 {
		t.Fatalf("expected 1 message, got %d", len(mock.SentMessages))
	}

	if mock.SentMessages[0].Body != "Hello Test" {
		t.Errorf("expected body %q, got %q", "Hello Test", mock.SentMessages[0].Body)
	}
}

func TestMockClient_SendMediaMessage(t *testing.T) {
	ctx := context.Background()
	mock := NewMockClient()

	err := mock.SendMediaMessage(ctx, "12345", "https://example.com/offer.jpg", "Fresh stock")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(mock.MediaMessages) != 1 {
		t.Fatalf("expected 1 media message, got %d", len(mock.MediaMessages))
	}

	got := mock.MediaMessages[0]
	if got.MediaURL != "https://example.com/offer.jpg" {
		t.Errorf("expected media URL to round-trip, got %q", got.MediaURL)
	}
	if got.Body != "Fresh stock" {
		t.Errorf("expected caption %q, got %q", "Fresh stock", got.Body)
	}
}
