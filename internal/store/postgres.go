// Package store provides storage backends for BazaarBot.
//
// This file implements the PostgreSQL-backed store.
package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "embed"

	"github.com/bazaarlink/bazaarbot/internal/models"
	_ "github.com/lib/pq"
)

// Database connection pool configuration constants
const (
	// DefaultMaxOpenConns is the default maximum number of open connections to the database
	DefaultMaxOpenConns = 25
	// DefaultMaxIdleConns is the default maximum number of idle connections in the pool
	DefaultMaxIdleConns = 25
	// DefaultConnMaxLifetime is the default maximum amount of time a connection may be reused
	DefaultConnMaxLifetime = 5 * time.Minute
)

//go:embed migrations_postgres.sql
var postgresMigrations string

type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new Postgres store based on provided options.
func NewPostgresStore(opts ...Option) (*PostgresStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewPostgresStore invoked", "DSN_set", cfg.DSN != "")

	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("PostgresStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		slog.Error("Failed to open Postgres connection", "error", err)
		return nil, err
	}

	db.SetMaxOpenConns(DefaultMaxOpenConns)
	db.SetMaxIdleConns(DefaultMaxIdleConns)
	db.SetConnMaxLifetime(DefaultConnMaxLifetime)

	if err := db.Ping(); err != nil {
		slog.Error("Postgres ping failed", "error", err)
		return nil, err
	}

	if _, err := db.Exec(postgresMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("Postgres migrations applied successfully")

	return &PostgresStore{db: db}, nil
}

// Close closes the Postgres database connection.
func (s *PostgresStore) Close() error {
	slog.Debug("Closing Postgres database connection")
	return s.db.Close()
}

// GetSession retrieves the session for a phone number, or nil if absent.
func (s *PostgresStore) GetSession(phone string) (*models.Session, error) {
	row := s.db.QueryRow(`SELECT phone, current_flow, current_step, temp_data, user_id, created_at, updated_at
		FROM sessions WHERE phone = $1`, phone)
	sess, err := scanSession(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		slog.Error("PostgresStore GetSession failed", "error", err)
		return nil, fmt.Errorf("failed to query session: %w", err)
	}
	return sess, nil
}

// SaveSession stores or replaces a session record.
func (s *PostgresStore) SaveSession(session models.Session) error {
	tempJSON, err := marshalTempData(session.TempData)
	if err != nil {
		slog.Error("PostgresStore SaveSession marshal failed", "error", err)
		return err
	}
	var userID interface{}
	if session.UserID != nil {
		userID = *session.UserID
	}
	_, err = s.db.Exec(`INSERT INTO sessions (phone, current_flow, current_step, temp_data, user_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (phone) DO UPDATE SET
			current_flow = EXCLUDED.current_flow,
			current_step = EXCLUDED.current_step,
			temp_data = EXCLUDED.temp_data,
			user_id = EXCLUDED.user_id,
			updated_at = EXCLUDED.updated_at`,
		session.Phone, session.CurrentFlow, session.CurrentStep, nilIfEmpty(tempJSON), userID,
		session.CreatedAt, session.UpdatedAt)
	if err != nil {
		slog.Error("PostgresStore SaveSession failed", "error", err)
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

// DeleteSession removes a session record.
func (s *PostgresStore) DeleteSession(phone string) error {
	_, err := s.db.Exec(`DELETE FROM sessions WHERE phone = $1`, phone)
	if err != nil {
		slog.Error("PostgresStore DeleteSession failed", "error", err)
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// CountSessionsByFlow returns the number of sessions per current flow.
func (s *PostgresStore) CountSessionsByFlow() (map[models.FlowType]int, error) {
	rows, err := s.db.Query(`SELECT current_flow, COUNT(*) FROM sessions GROUP BY current_flow`)
	if err != nil {
		return nil, fmt.Errorf("failed to count sessions: %w", err)
	}
	defer rows.Close()
	counts := make(map[models.FlowType]int)
	for rows.Next() {
		var flow models.FlowType
		var n int
		if err := rows.Scan(&flow, &n); err != nil {
			return nil, err
		}
		counts[flow] = n
	}
	return counts, rows.Err()
}

// GetUserByPhone retrieves an active user by phone number, or nil.
func (s *PostgresStore) GetUserByPhone(phone string) (*models.User, error) {
	row := s.db.QueryRow(`SELECT id, phone, name, role, latitude, longitude, active, created_at, updated_at
		FROM users WHERE phone = $1 AND active = TRUE`, phone)
	u, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query user: %w", err)
	}
	return u, nil
}

// GetUserByPhoneAny retrieves a user by phone number regardless of the
// active flag, or nil.
func (s *PostgresStore) GetUserByPhoneAny(phone string) (*models.User, error) {
	row := s.db.QueryRow(`SELECT id, phone, name, role, latitude, longitude, active, created_at, updated_at
		FROM users WHERE phone = $1`, phone)
	u, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query user: %w", err)
	}
	return u, nil
}

// GetUserByID retrieves a user by id, or nil.
func (s *PostgresStore) GetUserByID(id string) (*models.User, error) {
	row := s.db.QueryRow(`SELECT id, phone, name, role, latitude, longitude, active, created_at, updated_at
		FROM users WHERE id = $1`, id)
	u, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query user: %w", err)
	}
	return u, nil
}

// SaveUser stores or replaces a user record. The upsert keys on id alone;
// writing a second id for an already-registered phone is a constraint
// violation, never a silent replace.
func (s *PostgresStore) SaveUser(user models.User) error {
	_, err := s.db.Exec(`INSERT INTO users (id, phone, name, role, latitude, longitude, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			phone = EXCLUDED.phone,
			name = EXCLUDED.name,
			role = EXCLUDED.role,
			latitude = EXCLUDED.latitude,
			longitude = EXCLUDED.longitude,
			active = EXCLUDED.active,
			updated_at = EXCLUDED.updated_at`,
		user.ID, user.Phone, user.Name, user.Role, user.Latitude, user.Longitude, user.Active,
		user.CreatedAt, user.UpdatedAt)
	if err != nil {
		slog.Error("PostgresStore SaveUser failed", "error", err)
		return fmt.Errorf("failed to save user: %w", err)
	}
	return nil
}

// SaveShop stores or replaces a shop record.
func (s *PostgresStore) SaveShop(shop models.Shop) error {
	_, err := s.db.Exec(`INSERT INTO shops (id, owner_id, phone, name, category, latitude, longitude, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			category = EXCLUDED.category,
			latitude = EXCLUDED.latitude,
			longitude = EXCLUDED.longitude`,
		shop.ID, shop.OwnerID, shop.Phone, shop.Name, shop.Category, shop.Latitude, shop.Longitude, shop.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to save shop: %w", err)
	}
	return nil
}

// GetShopByOwner retrieves the shop owned by a user, or nil.
func (s *PostgresStore) GetShopByOwner(ownerID string) (*models.Shop, error) {
	row := s.db.QueryRow(`SELECT id, owner_id, phone, name, category, latitude, longitude, created_at
		FROM shops WHERE owner_id = $1`, ownerID)
	shop, err := scanShop(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query shop: %w", err)
	}
	return shop, nil
}

// GetShopByID retrieves a shop by id, or nil.
func (s *PostgresStore) GetShopByID(id string) (*models.Shop, error) {
	row := s.db.QueryRow(`SELECT id, owner_id, phone, name, category, latitude, longitude, created_at
		FROM shops WHERE id = $1`, id)
	shop, err := scanShop(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query shop: %w", err)
	}
	return shop, nil
}

// ListShops returns all shops.
func (s *PostgresStore) ListShops() ([]models.Shop, error) {
	rows, err := s.db.Query(`SELECT id, owner_id, phone, name, category, latitude, longitude, created_at FROM shops`)
	if err != nil {
		return nil, fmt.Errorf("failed to query shops: %w", err)
	}
	defer rows.Close()
	var shops []models.Shop
	for rows.Next() {
		shop, err := scanShop(rows)
		if err != nil {
			return nil, err
		}
		shops = append(shops, *shop)
	}
	return shops, rows.Err()
}

// SaveAgreement stores or replaces an agreement record.
func (s *PostgresStore) SaveAgreement(a models.Agreement) error {
	_, err := s.db.Exec(`INSERT INTO agreements
		(id, creator_user_id, creator_phone, counterparty_name, counterparty_phone, direction, amount, purpose, description, due_date, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			updated_at = EXCLUDED.updated_at`,
		a.ID, a.CreatorUserID, a.CreatorPhone, a.CounterpartyName, a.CounterpartyPhone, a.Direction,
		a.Amount, a.Purpose, nilIfEmpty(a.Description), a.DueDate, a.Status, a.CreatedAt, a.UpdatedAt)
	if err != nil {
		slog.Error("PostgresStore SaveAgreement failed", "error", err, "agreement_id", a.ID)
		return fmt.Errorf("failed to save agreement: %w", err)
	}
	return nil
}

// GetAgreement retrieves an agreement by id, or nil.
func (s *PostgresStore) GetAgreement(id string) (*models.Agreement, error) {
	row := s.db.QueryRow(`SELECT id, creator_user_id, creator_phone, counterparty_name, counterparty_phone, direction, amount, purpose, description, due_date, status, created_at, updated_at
		FROM agreements WHERE id = $1`, id)
	a, err := scanAgreement(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query agreement: %w", err)
	}
	return a, nil
}

// ListAgreementsByPhone returns agreements where the phone is either party.
func (s *PostgresStore) ListAgreementsByPhone(phone string) ([]models.Agreement, error) {
	rows, err := s.db.Query(`SELECT id, creator_user_id, creator_phone, counterparty_name, counterparty_phone, direction, amount, purpose, description, due_date, status, created_at, updated_at
		FROM agreements WHERE creator_phone = $1 OR counterparty_phone = $1 ORDER BY created_at DESC`, phone)
	if err != nil {
		return nil, fmt.Errorf("failed to query agreements: %w", err)
	}
	defer rows.Close()
	var agreements []models.Agreement
	for rows.Next() {
		a, err := scanAgreement(rows)
		if err != nil {
			return nil, err
		}
		agreements = append(agreements, *a)
	}
	return agreements, rows.Err()
}

// SaveOffer stores or replaces an offer record.
func (s *PostgresStore) SaveOffer(o models.Offer) error {
	_, err := s.db.Exec(`INSERT INTO offers (id, shop_id, title, price, photo_url, category, valid_until, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO NOTHING`,
		o.ID, o.ShopID, o.Title, o.Price, nilIfEmpty(o.PhotoURL), o.Category, o.ValidUntil, o.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to save offer: %w", err)
	}
	return nil
}

// GetOffer retrieves an offer by id, or nil.
func (s *PostgresStore) GetOffer(id string) (*models.Offer, error) {
	row := s.db.QueryRow(`SELECT id, shop_id, title, price, photo_url, category, valid_until, created_at
		FROM offers WHERE id = $1`, id)
	o, err := scanOffer(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query offer: %w", err)
	}
	return o, nil
}

// ListOffersByCategory returns unexpired offers in a category, newest first.
func (s *PostgresStore) ListOffersByCategory(category string) ([]models.Offer, error) {
	rows, err := s.db.Query(`SELECT id, shop_id, title, price, photo_url, category, valid_until, created_at
		FROM offers WHERE category = $1 AND valid_until > NOW() ORDER BY created_at DESC`, category)
	if err != nil {
		return nil, fmt.Errorf("failed to query offers: %w", err)
	}
	defer rows.Close()
	var offers []models.Offer
	for rows.Next() {
		o, err := scanOffer(rows)
		if err != nil {
			return nil, err
		}
		offers = append(offers, *o)
	}
	return offers, rows.Err()
}

// DeleteExpiredOffers removes offers whose validity ended before cutoff and
// reports how many were deleted.
func (s *PostgresStore) DeleteExpiredOffers(cutoff time.Time) (int, error) {
	res, err := s.db.Exec(`DELETE FROM offers WHERE valid_until < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired offers: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

// SaveProductRequest stores or replaces a product request record.
func (s *PostgresStore) SaveProductRequest(r models.ProductRequest) error {
	_, err := s.db.Exec(`INSERT INTO product_requests (id, requester_id, requester_phone, product, quantity, notes, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET status = EXCLUDED.status`,
		r.ID, r.RequesterID, r.RequesterPhone, r.Product, nilIfEmpty(r.Quantity), nilIfEmpty(r.Notes), r.Status, r.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to save product request: %w", err)
	}
	return nil
}

// GetProductRequest retrieves a product request by id, or nil.
func (s *PostgresStore) GetProductRequest(id string) (*models.ProductRequest, error) {
	row := s.db.QueryRow(`SELECT id, requester_id, requester_phone, product, quantity, notes, status, created_at
		FROM product_requests WHERE id = $1`, id)
	r, err := scanProductRequest(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query product request: %w", err)
	}
	return r, nil
}

// SaveProductResponse stores a shop's response to a request.
func (s *PostgresStore) SaveProductResponse(r models.ProductResponse) error {
	var price interface{}
	if r.Price > 0 {
		price = r.Price
	}
	_, err := s.db.Exec(`INSERT INTO product_responses (id, request_id, shop_id, available, price, note, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		r.ID, r.RequestID, r.ShopID, r.Available, price, nilIfEmpty(r.Note), r.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to save product response: %w", err)
	}
	return nil
}

// ListResponsesByRequest returns responses for a request, oldest first.
func (s *PostgresStore) ListResponsesByRequest(requestID string) ([]models.ProductResponse, error) {
	rows, err := s.db.Query(`SELECT id, request_id, shop_id, available, price, note, created_at
		FROM product_responses WHERE request_id = $1 ORDER BY created_at`, requestID)
	if err != nil {
		return nil, fmt.Errorf("failed to query product responses: %w", err)
	}
	defer rows.Close()
	var responses []models.ProductResponse
	for rows.Next() {
		r, err := scanProductResponse(rows)
		if err != nil {
			return nil, err
		}
		responses = append(responses, *r)
	}
	return responses, rows.Err()
}

// GetResponseByRequestAndShop retrieves a shop's response to a request, or nil.
func (s *PostgresStore) GetResponseByRequestAndShop(requestID, shopID string) (*models.ProductResponse, error) {
	row := s.db.QueryRow(`SELECT id, request_id, shop_id, available, price, note, created_at
		FROM product_responses WHERE request_id = $1 AND shop_id = $2`, requestID, shopID)
	r, err := scanProductResponse(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query product response: %w", err)
	}
	return r, nil
}

// SaveFishCatch stores or replaces a fish catch record.
func (s *PostgresStore) SaveFishCatch(c models.FishCatch) error {
	_, err := s.db.Exec(`INSERT INTO fish_catches (id, seller_id, species, quantity, price, photo_url, latitude, longitude, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO NOTHING`,
		c.ID, c.SellerID, c.Species, c.Quantity, c.Price, nilIfEmpty(c.PhotoURL), c.Latitude, c.Longitude, c.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to save fish catch: %w", err)
	}
	return nil
}

// ListRecentCatches returns the most recent catches.
func (s *PostgresStore) ListRecentCatches(limit int) ([]models.FishCatch, error) {
	rows, err := s.db.Query(`SELECT id, seller_id, species, quantity, price, photo_url, latitude, longitude, created_at
		FROM fish_catches ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query fish catches: %w", err)
	}
	defer rows.Close()
	var catches []models.FishCatch
	for rows.Next() {
		c, err := scanFishCatch(rows)
		if err != nil {
			return nil, err
		}
		catches = append(catches, *c)
	}
	return catches, rows.Err()
}
