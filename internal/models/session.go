// Package models defines the conversation session record.
package models

import "time"

// Session is the durable per-phone-number conversation record. The phone
// number is the key rather than a user ID so that unregistered
// counterparties can participate in flows before ever registering.
type Session struct {
	Phone       string             `json:"phone"`
	CurrentFlow FlowType           `json:"current_flow"`
	CurrentStep StepType           `json:"current_step"`
	TempData    map[DataKey]string `json:"temp_data,omitempty"`
	UserID      *string            `json:"user_id,omitempty"`
	CreatedAt   time.Time          `json:"created_at"`
	UpdatedAt   time.Time          `json:"updated_at"`
}

// NewSession returns a fresh session parked at the main menu.
func NewSession(phone string) *Session {
	now := time.Now()
	return &Session{
		Phone:       phone,
		CurrentFlow: FlowTypeMainMenu,
		CurrentStep: StepNone,
		TempData:    make(map[DataKey]string),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// Temp returns the temp data value for key, or def when absent.
func (s *Session) Temp(key DataKey, def string) string {
	if s.TempData == nil {
		return def
	}
	if v, ok := s.TempData[key]; ok {
		return v
	}
	return def
}

// HasTemp reports whether key is present in the temp data bag.
func (s *Session) HasTemp(key DataKey) bool {
	if s.TempData == nil {
		return false
	}
	_, ok := s.TempData[key]
	return ok
}
