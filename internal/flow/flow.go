// Package flow implements the conversational state machine: one handler per
// flow, a registry keyed by flow type, and the router that serializes
// per-phone processing and dispatches each inbound message to the step the
// session is parked at.
package flow

import (
	"context"
	"log/slog"
	"sync"

	"github.com/bazaarlink/bazaarbot/internal/models"
)

// Handler is one conversational flow. Start enters the flow fresh (sets the
// first step and sends its prompt); Handle processes one inbound message
// dispatched on the session's current step.
//
// Handlers run under the phone's session lock, so they may freely
// read-modify-write the session, but must never call Sessions.WithPhone or
// Sessions.Seed for the phone they are handling.
type Handler interface {
	Type() models.FlowType
	Start(ctx context.Context, fc *Context) error
	Handle(ctx context.Context, fc *Context, msg models.IncomingMessage) error
}

var (
	registryMu sync.RWMutex
	registry   = make(map[models.FlowType]Handler)
)

// Register associates a FlowType with its Handler implementation.
func Register(h Handler) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, exists := registry[h.Type()]; exists {
		slog.Warn("Flow handler re-registered, overwriting", "flow", h.Type())
	}
	registry[h.Type()] = h
}

// Get retrieves the Handler for a given FlowType.
func Get(ft models.FlowType) (Handler, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	h, ok := registry[ft]
	return h, ok
}

// Register default handlers
func init() {
	Register(&MainMenuFlow{})
	Register(&RegistrationFlow{})
	Register(&AgreementCreateFlow{})
	Register(&AgreementConfirmFlow{})
	Register(&OfferBrowseFlow{})
	Register(&OfferUploadFlow{})
	Register(&ProductSearchFlow{})
	Register(&ProductRespondFlow{})
	Register(&FishCatchPostFlow{})
	Register(&SettingsFlow{})
}
