// Package store provides storage backends for BazaarBot.
//
// It includes SQLite and PostgreSQL implementations plus an in-memory store
// used by tests. All backends persist conversation sessions and the domain
// entities the flow handlers reference.
package store

import (
	"strings"
	"time"

	"github.com/bazaarlink/bazaarbot/internal/models"
)

// Opts holds configuration options for store backends.
type Opts struct {
	DSN string
}

// Option defines a configuration option for store backends.
type Option func(*Opts)

// WithDSN sets the database connection string.
func WithDSN(dsn string) Option {
	return func(o *Opts) {
		o.DSN = dsn
	}
}

// DetectDSNType classifies a DSN as "postgres" or "sqlite" so callers can
// pick a backend without a separate driver flag.
func DetectDSNType(dsn string) string {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") ||
		strings.Contains(dsn, "host=") || strings.Contains(dsn, "dbname=") {
		return "postgres"
	}
	return "sqlite"
}

// Store is the persistence contract shared by all backends.
type Store interface {
	// Sessions
	GetSession(phone string) (*models.Session, error)
	SaveSession(session models.Session) error
	DeleteSession(phone string) error
	CountSessionsByFlow() (map[models.FlowType]int, error)

	// Users and shops. GetUserByPhone sees active users only;
	// GetUserByPhoneAny also returns soft-deleted rows so re-registration
	// can reclaim them.
	GetUserByPhone(phone string) (*models.User, error)
	GetUserByPhoneAny(phone string) (*models.User, error)
	GetUserByID(id string) (*models.User, error)
	SaveUser(user models.User) error
	SaveShop(shop models.Shop) error
	GetShopByOwner(ownerID string) (*models.Shop, error)
	GetShopByID(id string) (*models.Shop, error)
	ListShops() ([]models.Shop, error)

	// Agreements
	SaveAgreement(a models.Agreement) error
	GetAgreement(id string) (*models.Agreement, error)
	ListAgreementsByPhone(phone string) ([]models.Agreement, error)

	// Offers
	SaveOffer(o models.Offer) error
	GetOffer(id string) (*models.Offer, error)
	ListOffersByCategory(category string) ([]models.Offer, error)
	DeleteExpiredOffers(cutoff time.Time) (int, error)

	// Product requests and responses
	SaveProductRequest(r models.ProductRequest) error
	GetProductRequest(id string) (*models.ProductRequest, error)
	SaveProductResponse(r models.ProductResponse) error
	ListResponsesByRequest(requestID string) ([]models.ProductResponse, error)
	GetResponseByRequestAndShop(requestID, shopID string) (*models.ProductResponse, error)

	// Fish catches
	SaveFishCatch(c models.FishCatch) error
	ListRecentCatches(limit int) ([]models.FishCatch, error)

	// Close releases the backend's resources.
	Close() error
}
