// Package session provides the durable per-phone conversation session
// manager, including the per-phone serialization guarantee and the
// cross-session seeding used by notification flows.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/bazaarlink/bazaarbot/internal/models"
	"github.com/bazaarlink/bazaarbot/internal/store"
	"github.com/bazaarlink/bazaarbot/internal/util"
)

// ErrNoActiveFlow is returned by SetStep when the session is parked at the
// main menu, where step changes are meaningless.
var ErrNoActiveFlow = errors.New("no active flow for session")

// Manager performs every read-modify-write of session records. Two inbound
// messages for the same phone must not interleave, so all mutation happens
// under a per-phone mutex; callers that span multiple operations wrap them
// in WithPhone.
type Manager struct {
	store store.Store

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewManager creates a Manager backed by the given store.
func NewManager(st store.Store) *Manager {
	slog.Debug("Creating session Manager")
	return &Manager{store: st, locks: make(map[string]*sync.Mutex)}
}

// phoneLock returns the mutex owning a phone number, creating it on first use.
func (m *Manager) phoneLock(phone string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.locks[phone]
	if !ok {
		l = &sync.Mutex{}
		m.locks[phone] = l
	}
	return l
}

// WithPhone runs fn while holding the phone's lock, making the enclosed
// read-modify-write linearizable with every other caller for that phone.
// fn must not call WithPhone or Seed for the same phone.
func (m *Manager) WithPhone(phone string, fn func() error) error {
	l := m.phoneLock(phone)
	l.Lock()
	defer l.Unlock()
	return fn()
}

// Get returns the session for a phone number, creating and persisting a
// fresh one (main menu, no step, empty temp data) for unseen phones.
func (m *Manager) Get(ctx context.Context, phone string) (*models.Session, error) {
	sess, err := m.store.GetSession(phone)
	if err != nil {
		slog.Error("Session Get failed", "error", err, "phone", util.MaskPhone(phone))
		return nil, err
	}
	if sess != nil {
		return sess, nil
	}
	sess = models.NewSession(phone)
	if err := m.store.SaveSession(*sess); err != nil {
		slog.Error("Session Get initial save failed", "error", err, "phone", util.MaskPhone(phone))
		return nil, err
	}
	slog.Debug("Session created", "phone", util.MaskPhone(phone))
	return sess, nil
}

// SetFlowStep atomically switches flow and step together, so a session
// never momentarily holds a step that belongs to another flow.
func (m *Manager) SetFlowStep(ctx context.Context, sess *models.Session, flow models.FlowType, step models.StepType) error {
	sess.CurrentFlow = flow
	sess.CurrentStep = step
	sess.UpdatedAt = time.Now()
	if err := m.store.SaveSession(*sess); err != nil {
		slog.Error("Session SetFlowStep failed", "error", err, "phone", util.MaskPhone(sess.Phone), "flow", flow, "step", step)
		return err
	}
	slog.Debug("Session flow/step set", "phone", util.MaskPhone(sess.Phone), "flow", flow, "step", step)
	return nil
}

// SetStep changes the step within the current flow only.
func (m *Manager) SetStep(ctx context.Context, sess *models.Session, step models.StepType) error {
	if sess.CurrentFlow == models.FlowTypeMainMenu {
		return fmt.Errorf("set step %s: %w", step, ErrNoActiveFlow)
	}
	sess.CurrentStep = step
	sess.UpdatedAt = time.Now()
	if err := m.store.SaveSession(*sess); err != nil {
		slog.Error("Session SetStep failed", "error", err, "phone", util.MaskPhone(sess.Phone), "step", step)
		return err
	}
	return nil
}

// MergeTempData merges partial into the session's temp data bag.
func (m *Manager) MergeTempData(ctx context.Context, sess *models.Session, partial map[models.DataKey]string) error {
	if sess.TempData == nil {
		sess.TempData = make(map[models.DataKey]string)
	}
	for k, v := range partial {
		sess.TempData[k] = v
	}
	sess.UpdatedAt = time.Now()
	if err := m.store.SaveSession(*sess); err != nil {
		slog.Error("Session MergeTempData failed", "error", err, "phone", util.MaskPhone(sess.Phone))
		return err
	}
	return nil
}

// RemoveTempData deletes one key from the temp data bag.
func (m *Manager) RemoveTempData(ctx context.Context, sess *models.Session, key models.DataKey) error {
	delete(sess.TempData, key)
	sess.UpdatedAt = time.Now()
	return m.store.SaveSession(*sess)
}

// ClearTempData empties the temp data bag.
func (m *Manager) ClearTempData(ctx context.Context, sess *models.Session) error {
	sess.TempData = make(map[models.DataKey]string)
	sess.UpdatedAt = time.Now()
	return m.store.SaveSession(*sess)
}

// ResetToMainMenu parks the session at the main menu with no step and an
// empty temp data bag.
func (m *Manager) ResetToMainMenu(ctx context.Context, sess *models.Session) error {
	sess.CurrentFlow = models.FlowTypeMainMenu
	sess.CurrentStep = models.StepNone
	sess.TempData = make(map[models.DataKey]string)
	sess.UpdatedAt = time.Now()
	if err := m.store.SaveSession(*sess); err != nil {
		slog.Error("Session ResetToMainMenu failed", "error", err, "phone", util.MaskPhone(sess.Phone))
		return err
	}
	slog.Debug("Session reset to main menu", "phone", util.MaskPhone(sess.Phone))
	return nil
}

// LinkUser attaches a registered user id to the session.
func (m *Manager) LinkUser(ctx context.Context, sess *models.Session, userID string) error {
	sess.UserID = &userID
	sess.UpdatedAt = time.Now()
	return m.store.SaveSession(*sess)
}

// ClearAndUnlink resets the session to the main menu and detaches the user
// id. Account deactivation uses this instead of Delete because the caller
// already holds the phone lock.
func (m *Manager) ClearAndUnlink(ctx context.Context, sess *models.Session) error {
	sess.CurrentFlow = models.FlowTypeMainMenu
	sess.CurrentStep = models.StepNone
	sess.TempData = make(map[models.DataKey]string)
	sess.UserID = nil
	sess.UpdatedAt = time.Now()
	if err := m.store.SaveSession(*sess); err != nil {
		slog.Error("Session ClearAndUnlink failed", "error", err, "phone", util.MaskPhone(sess.Phone))
		return err
	}
	return nil
}

// Delete removes the session record. Only the account deletion path calls
// this; everywhere else sessions are reset, never deleted.
func (m *Manager) Delete(ctx context.Context, phone string) error {
	return m.WithPhone(phone, func() error {
		return m.store.DeleteSession(phone)
	})
}

// Seed places the target phone's session directly into the given flow and
// step with the supplied temp data, as one atomic unit under the phone's
// lock. The target phone need not have sent any message. Any in-progress
// flow on that session is overwritten, not merged: notifications win over
// whatever the user was doing.
//
// Callers must not hold the target phone's lock; a flow must never seed the
// phone it is currently handling.
func (m *Manager) Seed(ctx context.Context, phone string, flow models.FlowType, step models.StepType, tempData map[models.DataKey]string) (*models.Session, error) {
	var seeded *models.Session
	err := m.WithPhone(phone, func() error {
		sess, err := m.Get(ctx, phone)
		if err != nil {
			return err
		}
		sess.CurrentFlow = flow
		sess.CurrentStep = step
		sess.TempData = make(map[models.DataKey]string, len(tempData))
		for k, v := range tempData {
			sess.TempData[k] = v
		}
		sess.UpdatedAt = time.Now()
		if err := m.store.SaveSession(*sess); err != nil {
			return err
		}
		seeded = sess
		return nil
	})
	if err != nil {
		slog.Error("Session Seed failed", "error", err, "phone", util.MaskPhone(phone), "flow", flow, "step", step)
		return nil, err
	}
	slog.Info("Session seeded", "phone", util.MaskPhone(phone), "flow", flow, "step", step)
	return seeded, nil
}
