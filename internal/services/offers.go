package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/bazaarlink/bazaarbot/internal/models"
	"github.com/bazaarlink/bazaarbot/internal/store"
	"github.com/google/uuid"
)

// CreateOfferInput carries everything the offer upload flow collects.
type CreateOfferInput struct {
	Title     string
	Price     float64
	PhotoURL  string
	ValidDays int
}

// Offers manages shop offers.
type Offers struct {
	store store.Store
}

// NewOffers creates an Offers service backed by the given store.
func NewOffers(st store.Store) *Offers {
	return &Offers{store: st}
}

// Create records a new offer for the owner's shop. Only shop owners with a
// registered shop may upload.
func (s *Offers) Create(ctx context.Context, owner *models.User, in CreateOfferInput) (*models.Offer, error) {
	if !owner.IsShopOwner() {
		return nil, models.ErrNotAuthorized
	}
	shop, err := s.store.GetShopByOwner(owner.ID)
	if err != nil {
		return nil, err
	}
	if shop == nil {
		return nil, models.ErrNotFound
	}
	now := time.Now()
	o := models.Offer{
		ID:         uuid.NewString(),
		ShopID:     shop.ID,
		Title:      in.Title,
		Price:      in.Price,
		PhotoURL:   in.PhotoURL,
		Category:   shop.Category,
		ValidUntil: now.AddDate(0, 0, in.ValidDays),
		CreatedAt:  now,
	}
	if err := s.store.SaveOffer(o); err != nil {
		return nil, err
	}
	slog.Info("Offer created", "offer_id", o.ID, "shop_id", shop.ID, "category", o.Category)
	return &o, nil
}

// Get returns an offer by id, or ErrNotFound. An expired offer returns
// ErrNotActionable so browse flows can show a "no longer available" message.
func (s *Offers) Get(ctx context.Context, id string) (*models.Offer, error) {
	o, err := s.store.GetOffer(id)
	if err != nil {
		return nil, err
	}
	if o == nil {
		return nil, models.ErrNotFound
	}
	if time.Now().After(o.ValidUntil) {
		return nil, models.ErrNotActionable
	}
	return o, nil
}

// ListByCategory returns unexpired offers in a category, newest first.
func (s *Offers) ListByCategory(ctx context.Context, category string) ([]models.Offer, error) {
	return s.store.ListOffersByCategory(category)
}

// PurgeExpired deletes offers whose validity window has passed. Run
// periodically by the scheduler.
func (s *Offers) PurgeExpired(ctx context.Context) (int, error) {
	n, err := s.store.DeleteExpiredOffers(time.Now())
	if err != nil {
		return 0, err
	}
	if n > 0 {
		slog.Info("Expired offers purged", "count", n)
	}
	return n, nil
}

// ShopByID returns the shop behind an offer, or ErrNotFound.
func (s *Offers) ShopByID(ctx context.Context, shopID string) (*models.Shop, error) {
	shop, err := s.store.GetShopByID(shopID)
	if err != nil {
		return nil, err
	}
	if shop == nil {
		return nil, models.ErrNotFound
	}
	return shop, nil
}
