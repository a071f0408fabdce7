package flow

import (
	"context"
	"hash/fnv"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/bazaarlink/bazaarbot/internal/messaging"
	"github.com/bazaarlink/bazaarbot/internal/models"
	"github.com/bazaarlink/bazaarbot/internal/util"
)

const (
	// welcomeBackAfter is how long a session must sit idle mid-flow before
	// the next message gets a welcome-back line ahead of the re-prompt.
	welcomeBackAfter = 12 * time.Hour

	apologyText = "Sorry, something went wrong on our side. Let's start over."
)

// Global navigation tokens win from every step of every flow. Exact match
// on trimmed lowercase text, or the home button id.
var navTokens = map[string]bool{
	"menu":   true,
	"cancel": true,
	"home":   true,
}

// ButtonMainMenu is the shared home button id rendered on terminal prompts.
const ButtonMainMenu = "main_menu"

// Router delivers each inbound message to the handler owning the session's
// current flow, under the phone's session lock.
type Router struct {
	deps *Deps
}

// NewRouter creates a Router over the shared handler dependencies.
func NewRouter(deps *Deps) *Router {
	return &Router{deps: deps}
}

// routeShards is how many dispatch queues Run fans messages out to.
const routeShards = 16

// Run consumes inbound messages until the channel closes or ctx is
// cancelled. Messages fan out to a fixed set of single-writer queues
// keyed by phone, so two messages from the same phone are handled in
// arrival order while different phones proceed in parallel. The per-phone
// session lock still guards against writers outside this loop, such as
// cross-session seeding.
func (r *Router) Run(ctx context.Context, msgs <-chan models.IncomingMessage) {
	slog.Info("Flow router started")

	queues := make([]chan models.IncomingMessage, routeShards)
	var wg sync.WaitGroup
	for i := range queues {
		queues[i] = make(chan models.IncomingMessage, 64)
		wg.Add(1)
		go func(q <-chan models.IncomingMessage) {
			defer wg.Done()
			for m := range q {
				r.Route(ctx, m)
			}
		}(queues[i])
	}
	stop := func(reason string) {
		for _, q := range queues {
			close(q)
		}
		wg.Wait()
		slog.Info("Flow router stopped", "reason", reason)
	}

	for {
		select {
		case <-ctx.Done():
			stop(ctx.Err().Error())
			return
		case msg, ok := <-msgs:
			if !ok {
				stop("message channel closed")
				return
			}
			phone, err := messaging.CanonicalizePhone(msg.From)
			if err != nil {
				slog.Warn("Router dropping message with invalid sender", "error", err)
				continue
			}
			msg.From = phone
			queues[shardFor(phone)] <- msg
		}
	}
}

// shardFor maps a canonical phone onto its dispatch queue.
func shardFor(phone string) int {
	h := fnv.New32a()
	h.Write([]byte(phone))
	return int(h.Sum32() % routeShards)
}

// Route processes one inbound message end to end. It never returns an
// error: every failure is absorbed here by resetting the session to the
// main menu and apologizing, so nothing propagates to the transport.
func (r *Router) Route(ctx context.Context, msg models.IncomingMessage) {
	phone, err := messaging.CanonicalizePhone(msg.From)
	if err != nil {
		slog.Warn("Router dropping message with invalid sender", "error", err)
		return
	}
	msg.From = phone

	_ = r.deps.Sessions.WithPhone(phone, func() error {
		r.routeLocked(ctx, phone, msg)
		return nil
	})
}

// routeLocked runs under the phone's session lock.
func (r *Router) routeLocked(ctx context.Context, phone string, msg models.IncomingMessage) {
	defer func() {
		if rec := recover(); rec != nil {
			slog.Error("Router recovered panic", "panic", rec, "phone", util.MaskPhone(phone))
			r.resetAndApologize(ctx, phone)
		}
	}()

	sess, err := r.deps.Sessions.Get(ctx, phone)
	if err != nil {
		slog.Error("Router failed to load session", "error", err, "phone", util.MaskPhone(phone))
		return
	}
	user, err := r.deps.Users.ByPhone(ctx, phone)
	if err != nil {
		slog.Error("Router failed to load user", "error", err, "phone", util.MaskPhone(phone))
		return
	}

	fc := &Context{Deps: r.deps, Session: sess, User: user}

	idle := time.Since(sess.UpdatedAt)
	if sess.CurrentFlow != models.FlowTypeMainMenu && idle > welcomeBackAfter {
		if err := fc.Reply(ctx, "Welcome back! Picking up where you left off."); err != nil {
			slog.Warn("Router welcome-back send failed", "error", err, "phone", util.MaskPhone(phone))
		}
	}

	if r.isGlobalNav(msg) {
		slog.Debug("Router global navigation", "phone", util.MaskPhone(phone), "from_flow", sess.CurrentFlow)
		if err := fc.StartFlow(ctx, models.FlowTypeMainMenu); err != nil {
			slog.Error("Router global nav failed", "error", err, "phone", util.MaskPhone(phone))
			r.resetAndApologize(ctx, phone)
		}
		return
	}

	h, ok := Get(sess.CurrentFlow)
	if !ok {
		slog.Warn("Router found session on unknown flow, resetting", "flow", sess.CurrentFlow, "phone", util.MaskPhone(phone))
		if err := fc.StartFlow(ctx, models.FlowTypeMainMenu); err != nil {
			r.resetAndApologize(ctx, phone)
		}
		return
	}

	if err := h.Handle(ctx, fc, msg); err != nil {
		slog.Error("Flow handler failed", "error", err, "flow", sess.CurrentFlow, "step", sess.CurrentStep, "phone", util.MaskPhone(phone))
		r.resetAndApologize(ctx, phone)
	}
}

// isGlobalNav reports whether the message is a global navigation token.
func (r *Router) isGlobalNav(msg models.IncomingMessage) bool {
	if msg.SelectionID() == ButtonMainMenu {
		return true
	}
	return navTokens[strings.ToLower(strings.TrimSpace(msg.TextContent()))]
}

// resetAndApologize parks the session at the main menu and tells the user.
// Best effort: by this point something already failed.
func (r *Router) resetAndApologize(ctx context.Context, phone string) {
	if sess, err := r.deps.Sessions.Get(ctx, phone); err == nil {
		if err := r.deps.Sessions.ResetToMainMenu(ctx, sess); err != nil {
			slog.Error("Router failed to reset session", "error", err, "phone", util.MaskPhone(phone))
		}
	}
	if err := r.deps.Sender.SendText(ctx, phone, apologyText); err != nil {
		slog.Error("Router failed to send apology", "error", err, "phone", util.MaskPhone(phone))
	}
}
