package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/bazaarlink/bazaarbot/internal/models"
	"github.com/bazaarlink/bazaarbot/internal/store"
	"github.com/bazaarlink/bazaarbot/internal/util"
	"github.com/google/uuid"
)

// CreateAgreementInput carries everything the agreement creation flow
// collects before the review step commits.
type CreateAgreementInput struct {
	Direction         models.AgreementDirection
	Amount            float64
	CounterpartyName  string
	CounterpartyPhone string
	Purpose           string
	Description       string
	DueDate           time.Time
}

// Agreements manages the IOU agreement lifecycle.
type Agreements struct {
	store store.Store
}

// NewAgreements creates an Agreements service backed by the given store.
func NewAgreements(st store.Store) *Agreements {
	return &Agreements{store: st}
}

// Create records a new pending agreement for the creator.
func (s *Agreements) Create(ctx context.Context, creator *models.User, in CreateAgreementInput) (*models.Agreement, error) {
	now := time.Now()
	a := models.Agreement{
		ID:                uuid.NewString(),
		CreatorUserID:     creator.ID,
		CreatorPhone:      creator.Phone,
		CounterpartyName:  in.CounterpartyName,
		CounterpartyPhone: in.CounterpartyPhone,
		Direction:         in.Direction,
		Amount:            in.Amount,
		Purpose:           in.Purpose,
		Description:       in.Description,
		DueDate:           in.DueDate,
		Status:            models.AgreementStatusPending,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := s.store.SaveAgreement(a); err != nil {
		return nil, err
	}
	slog.Info("Agreement created", "agreement_id", a.ID, "creator", util.MaskPhone(a.CreatorPhone), "counterparty", util.MaskPhone(a.CounterpartyPhone))
	return &a, nil
}

// Get returns an agreement by id, or ErrNotFound.
func (s *Agreements) Get(ctx context.Context, id string) (*models.Agreement, error) {
	a, err := s.store.GetAgreement(id)
	if err != nil {
		return nil, err
	}
	if a == nil {
		return nil, models.ErrNotFound
	}
	return a, nil
}

// ConfirmByCounterparty marks a pending agreement confirmed. Registration
// is not required: the counterparty is identified by phone number alone.
// An agreement that is no longer pending returns ErrNotActionable.
func (s *Agreements) ConfirmByCounterparty(ctx context.Context, id, counterpartyPhone string) (*models.Agreement, error) {
	return s.resolve(ctx, id, counterpartyPhone, models.AgreementStatusConfirmed)
}

// DeclineByCounterparty marks a pending agreement declined.
func (s *Agreements) DeclineByCounterparty(ctx context.Context, id, counterpartyPhone string) (*models.Agreement, error) {
	return s.resolve(ctx, id, counterpartyPhone, models.AgreementStatusDeclined)
}

func (s *Agreements) resolve(ctx context.Context, id, counterpartyPhone string, status models.AgreementStatus) (*models.Agreement, error) {
	a, err := s.store.GetAgreement(id)
	if err != nil {
		return nil, err
	}
	if a == nil {
		return nil, models.ErrNotFound
	}
	if a.CounterpartyPhone != counterpartyPhone {
		return nil, models.ErrNotAuthorized
	}
	if a.Status != models.AgreementStatusPending {
		return nil, models.ErrNotActionable
	}
	a.Status = status
	a.UpdatedAt = time.Now()
	if err := s.store.SaveAgreement(*a); err != nil {
		return nil, err
	}
	slog.Info("Agreement resolved", "agreement_id", a.ID, "status", status)
	return a, nil
}

// ListForPhone returns agreements where the phone is either party.
func (s *Agreements) ListForPhone(ctx context.Context, phone string) ([]models.Agreement, error) {
	return s.store.ListAgreementsByPhone(phone)
}
