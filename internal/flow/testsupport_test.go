package flow

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/bazaarlink/bazaarbot/internal/messaging"
	"github.com/bazaarlink/bazaarbot/internal/models"
	"github.com/bazaarlink/bazaarbot/internal/services"
	"github.com/bazaarlink/bazaarbot/internal/session"
	"github.com/bazaarlink/bazaarbot/internal/store"
)

// sentMessage is one outbound prompt captured by the fake sender.
type sentMessage struct {
	To       string
	Body     string
	Buttons  []models.Button
	Sections []models.ListSection
	ImageURL string
}

// fakeSender records everything the flows send. Safe for concurrent use
// since deferred triggers send from their own goroutines.
type fakeSender struct {
	mu   sync.Mutex
	sent []sentMessage
}

func (f *fakeSender) record(m sentMessage) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, m)
}

func (f *fakeSender) ValidateAndCanonicalizeRecipient(recipient string) (string, error) {
	return messaging.CanonicalizePhone(recipient)
}

func (f *fakeSender) SendText(ctx context.Context, to, body string) error {
	f.record(sentMessage{To: to, Body: body})
	return nil
}

func (f *fakeSender) SendButtons(ctx context.Context, to, body string, buttons []models.Button) error {
	f.record(sentMessage{To: to, Body: body, Buttons: buttons})
	return nil
}

func (f *fakeSender) SendList(ctx context.Context, to, body, buttonLabel string, sections []models.ListSection) error {
	f.record(sentMessage{To: to, Body: body, Sections: sections})
	return nil
}

func (f *fakeSender) SendImage(ctx context.Context, to, url, caption string) error {
	f.record(sentMessage{To: to, Body: caption, ImageURL: url})
	return nil
}

func (f *fakeSender) SendLocation(ctx context.Context, to string, lat, lng float64, name string) error {
	f.record(sentMessage{To: to, Body: name})
	return nil
}

// last returns the most recent captured message, failing the test if none.
func (f *fakeSender) last(t *testing.T) sentMessage {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.sent) == 0 {
		t.Fatal("no messages sent")
	}
	return f.sent[len(f.sent)-1]
}

// lastTo returns the most recent message sent to phone, failing if none.
func (f *fakeSender) lastTo(t *testing.T, phone string) sentMessage {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.sent) - 1; i >= 0; i-- {
		if f.sent[i].To == phone {
			return f.sent[i]
		}
	}
	t.Fatalf("no messages sent to %s", phone)
	return sentMessage{}
}

// messagesTo returns every message sent to phone, in order.
func (f *fakeSender) messagesTo(phone string) []sentMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []sentMessage
	for _, m := range f.sent {
		if m.To == phone {
			out = append(out, m)
		}
	}
	return out
}

func (f *fakeSender) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

// newTestDeps builds the full handler dependency set over an in-memory store.
func newTestDeps(t *testing.T) (*Deps, *store.InMemoryStore, *fakeSender) {
	t.Helper()
	st := store.NewInMemoryStore()
	sender := &fakeSender{}
	deps := &Deps{
		Sessions:   session.NewManager(st),
		Sender:     sender,
		Users:      services.NewUsers(st),
		Agreements: services.NewAgreements(st),
		Offers:     services.NewOffers(st),
		Products:   services.NewProducts(st),
		Catches:    services.NewCatches(st),
	}
	deps.Trigger = NewTrigger(deps)
	return deps, st, sender
}

// registerUser creates a registered active user through the service layer.
func registerUser(t *testing.T, deps *Deps, phone, name string, role models.Role) *models.User {
	t.Helper()
	in := services.RegisterUserInput{
		Phone:    phone,
		Name:     name,
		Role:     role,
		Latitude: 19.07, Longitude: 72.87,
	}
	if role == models.RoleShopOwner {
		in.ShopName = name + "'s Shop"
		in.ShopCategory = "grocery"
	}
	user, err := deps.Users.Register(context.Background(), in)
	if err != nil {
		t.Fatalf("failed to register user: %v", err)
	}
	return user
}

func textMsg(from, text string) models.IncomingMessage {
	return models.IncomingMessage{From: from, Kind: models.MessageKindText, Text: text, Time: time.Now()}
}

func buttonMsg(from, id string) models.IncomingMessage {
	return models.IncomingMessage{From: from, Kind: models.MessageKindButtonReply, Selection: id, Time: time.Now()}
}

func locationMsg(from string, lat, lng float64) models.IncomingMessage {
	return models.IncomingMessage{From: from, Kind: models.MessageKindLocation, Location: &models.Coordinates{Latitude: lat, Longitude: lng}, Time: time.Now()}
}

// getSession reads a session straight from the store, failing if absent.
func getSession(t *testing.T, st store.Store, phone string) *models.Session {
	t.Helper()
	sess, err := st.GetSession(phone)
	if err != nil {
		t.Fatalf("failed to load session: %v", err)
	}
	if sess == nil {
		t.Fatalf("no session for %s", phone)
	}
	return sess
}

// waitFor polls cond until it holds or the deadline passes. Deferred
// triggers complete asynchronously, so tests that cross sessions need it.
func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met within deadline")
}
