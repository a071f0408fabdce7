// Package services implements the domain services the flow handlers call at
// terminal and confirmation steps. Every expected business outcome is
// reported as a sentinel error kind from internal/models rather than a
// generic failure, so step handlers can match on the result.
package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/bazaarlink/bazaarbot/internal/models"
	"github.com/bazaarlink/bazaarbot/internal/store"
	"github.com/bazaarlink/bazaarbot/internal/util"
	"github.com/google/uuid"
)

// RegisterUserInput carries everything the registration flow collects.
type RegisterUserInput struct {
	Phone        string
	Name         string
	Role         models.Role
	Latitude     float64
	Longitude    float64
	ShopName     string
	ShopCategory string
}

// Users manages registered users and their shops.
type Users struct {
	store store.Store
}

// NewUsers creates a Users service backed by the given store.
func NewUsers(st store.Store) *Users {
	return &Users{store: st}
}

// ByPhone returns the active user for a phone number, or nil.
func (s *Users) ByPhone(ctx context.Context, phone string) (*models.User, error) {
	return s.store.GetUserByPhone(phone)
}

// Register creates a user, and a shop when the role is shop owner. A phone
// that was deactivated earlier reclaims its old row: same user id, fresh
// profile, active again. Agreements and shops referencing the old id stay
// attached.
func (s *Users) Register(ctx context.Context, in RegisterUserInput) (*models.User, error) {
	if !models.IsValidRole(in.Role) {
		return nil, fmt.Errorf("register user: invalid role %q", in.Role)
	}
	existing, err := s.store.GetUserByPhoneAny(in.Phone)
	if err != nil {
		return nil, err
	}
	if existing != nil && existing.Active {
		return nil, models.ErrAlreadyExists
	}

	now := time.Now()
	user := models.User{
		ID:        uuid.NewString(),
		Phone:     in.Phone,
		Name:      in.Name,
		Role:      in.Role,
		Latitude:  in.Latitude,
		Longitude: in.Longitude,
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if existing != nil {
		user.ID = existing.ID
		user.CreatedAt = existing.CreatedAt
	}
	if err := s.store.SaveUser(user); err != nil {
		return nil, err
	}

	if in.Role == models.RoleShopOwner {
		shop := models.Shop{
			ID:        uuid.NewString(),
			OwnerID:   user.ID,
			Phone:     in.Phone,
			Name:      in.ShopName,
			Category:  in.ShopCategory,
			Latitude:  in.Latitude,
			Longitude: in.Longitude,
			CreatedAt: now,
		}
		// A reclaimed shop owner keeps their shop id so old offers still
		// resolve; the details are overwritten with what they just sent.
		if old, err := s.store.GetShopByOwner(user.ID); err != nil {
			return nil, err
		} else if old != nil {
			shop.ID = old.ID
			shop.CreatedAt = old.CreatedAt
		}
		if err := s.store.SaveShop(shop); err != nil {
			return nil, err
		}
	}

	slog.Info("User registered", "phone", util.MaskPhone(in.Phone), "role", in.Role, "reclaimed", existing != nil)
	return &user, nil
}

// UpdateName changes a user's display name.
func (s *Users) UpdateName(ctx context.Context, userID, name string) error {
	user, err := s.store.GetUserByID(userID)
	if err != nil {
		return err
	}
	if user == nil {
		return models.ErrNotFound
	}
	user.Name = name
	user.UpdatedAt = time.Now()
	return s.store.SaveUser(*user)
}

// UpdateLocation changes a user's stored location.
func (s *Users) UpdateLocation(ctx context.Context, userID string, lat, lng float64) error {
	user, err := s.store.GetUserByID(userID)
	if err != nil {
		return err
	}
	if user == nil {
		return models.ErrNotFound
	}
	user.Latitude = lat
	user.Longitude = lng
	user.UpdatedAt = time.Now()
	return s.store.SaveUser(*user)
}

// Deactivate soft-deletes a user. The caller is responsible for clearing
// the phone's session alongside.
func (s *Users) Deactivate(ctx context.Context, userID string) error {
	user, err := s.store.GetUserByID(userID)
	if err != nil {
		return err
	}
	if user == nil {
		return models.ErrNotFound
	}
	user.Active = false
	user.UpdatedAt = time.Now()
	if err := s.store.SaveUser(*user); err != nil {
		return err
	}
	slog.Info("User deactivated", "phone", util.MaskPhone(user.Phone))
	return nil
}

// ShopFor returns the shop owned by the user, or ErrNotFound.
func (s *Users) ShopFor(ctx context.Context, userID string) (*models.Shop, error) {
	shop, err := s.store.GetShopByOwner(userID)
	if err != nil {
		return nil, err
	}
	if shop == nil {
		return nil, models.ErrNotFound
	}
	return shop, nil
}
