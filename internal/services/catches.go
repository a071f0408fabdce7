package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/bazaarlink/bazaarbot/internal/models"
	"github.com/bazaarlink/bazaarbot/internal/store"
	"github.com/google/uuid"
)

// DefaultCatchListLimit bounds how many recent catches a browse renders.
const DefaultCatchListLimit = 10

// PostCatchInput carries everything the fish catch flow collects.
type PostCatchInput struct {
	Species   string
	Quantity  string
	Price     float64
	PhotoURL  string
	Latitude  float64
	Longitude float64
}

// Catches manages posted fish catches.
type Catches struct {
	store store.Store
}

// NewCatches creates a Catches service backed by the given store.
func NewCatches(st store.Store) *Catches {
	return &Catches{store: st}
}

// Post records a new catch. Only fish sellers may post.
func (s *Catches) Post(ctx context.Context, seller *models.User, in PostCatchInput) (*models.FishCatch, error) {
	if !seller.IsFishSeller() {
		return nil, models.ErrNotAuthorized
	}
	c := models.FishCatch{
		ID:        uuid.NewString(),
		SellerID:  seller.ID,
		Species:   in.Species,
		Quantity:  in.Quantity,
		Price:     in.Price,
		PhotoURL:  in.PhotoURL,
		Latitude:  in.Latitude,
		Longitude: in.Longitude,
		CreatedAt: time.Now(),
	}
	if err := s.store.SaveFishCatch(c); err != nil {
		return nil, err
	}
	slog.Info("Fish catch posted", "catch_id", c.ID, "species", c.Species)
	return &c, nil
}

// ListRecent returns the most recent catches.
func (s *Catches) ListRecent(ctx context.Context, limit int) ([]models.FishCatch, error) {
	if limit <= 0 {
		limit = DefaultCatchListLimit
	}
	return s.store.ListRecentCatches(limit)
}
