// Package store provides storage backends for BazaarBot.
//
// This file implements the SQLite-backed store.
package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "embed"

	"github.com/bazaarlink/bazaarbot/internal/models"
	_ "github.com/mattn/go-sqlite3"
)

// Constants for SQLite store configuration
const (
	// DefaultDirPermissions defines the default permissions for database directories
	DefaultDirPermissions = 0755
)

//go:embed migrations_sqlite.sql
var sqliteMigrations string

type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store with the given DSN.
// The DSN should be a file path to the SQLite database file.
// If the directory doesn't exist, it will be created.
func NewSQLiteStore(opts ...Option) (*SQLiteStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewSQLiteStore invoked", "DSN_set", cfg.DSN != "")

	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("SQLiteStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	dir := filepath.Dir(dsn)
	if err := os.MkdirAll(dir, DefaultDirPermissions); err != nil {
		slog.Error("Failed to create database directory", "error", err, "dir", dir)
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		slog.Error("Failed to open SQLite connection", "error", err)
		return nil, err
	}

	if err := db.Ping(); err != nil {
		slog.Error("SQLite ping failed", "error", err)
		return nil, err
	}

	if _, err := db.Exec(sqliteMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("SQLite migrations applied successfully")

	return &SQLiteStore{db: db}, nil
}

// Close closes the SQLite database connection.
func (s *SQLiteStore) Close() error {
	slog.Debug("Closing SQLite database connection")
	return s.db.Close()
}

// GetSession retrieves the session for a phone number, or nil if absent.
func (s *SQLiteStore) GetSession(phone string) (*models.Session, error) {
	row := s.db.QueryRow(`SELECT phone, current_flow, current_step, temp_data, user_id, created_at, updated_at
		FROM sessions WHERE phone = ?`, phone)
	sess, err := scanSession(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		slog.Error("SQLiteStore GetSession failed", "error", err)
		return nil, fmt.Errorf("failed to query session: %w", err)
	}
	return sess, nil
}

// SaveSession stores or replaces a session record.
func (s *SQLiteStore) SaveSession(session models.Session) error {
	tempJSON, err := marshalTempData(session.TempData)
	if err != nil {
		slog.Error("SQLiteStore SaveSession marshal failed", "error", err)
		return err
	}
	var userID interface{}
	if session.UserID != nil {
		userID = *session.UserID
	}
	_, err = s.db.Exec(`INSERT OR REPLACE INTO sessions (phone, current_flow, current_step, temp_data, user_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		session.Phone, session.CurrentFlow, session.CurrentStep, nilIfEmpty(tempJSON), userID,
		session.CreatedAt, session.UpdatedAt)
	if err != nil {
		slog.Error("SQLiteStore SaveSession failed", "error", err)
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

// DeleteSession removes a session record.
func (s *SQLiteStore) DeleteSession(phone string) error {
	_, err := s.db.Exec(`DELETE FROM sessions WHERE phone = ?`, phone)
	if err != nil {
		slog.Error("SQLiteStore DeleteSession failed", "error", err)
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// CountSessionsByFlow returns the number of sessions per current flow.
func (s *SQLiteStore) CountSessionsByFlow() (map[models.FlowType]int, error) {
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
func (s *SQLiteStore) GetUserByPhone(phone string) (*models.User, error) {
	row := s.db.QueryRow(`SELECT id, phone, name, role, latitude, longitude, active, created_at, updated_at
		FROM users WHERE phone = ? AND active = 1`, phone)
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
func (s *SQLiteStore) GetUserByPhoneAny(phone string) (*models.User, error) {
	row := s.db.QueryRow(`SELECT id, phone, name, role, latitude, longitude, active, created_at, updated_at
		FROM users WHERE phone = ?`, phone)
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
func (s *SQLiteStore) GetUserByID(id string) (*models.User, error) {
	row := s.db.QueryRow(`SELECT id, phone, name, role, latitude, longitude, active, created_at, updated_at
		FROM users WHERE id = ?`, id)
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
func (s *SQLiteStore) SaveUser(user models.User) error {
	_, err := s.db.Exec(`INSERT INTO users (id, phone, name, role, latitude, longitude, active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			phone = excluded.phone,
			name = excluded.name,
			role = excluded.role,
			latitude = excluded.latitude,
			longitude = excluded.longitude,
			active = excluded.active,
			updated_at = excluded.updated_at`,
		user.ID, user.Phone, user.Name, user.Role, user.Latitude, user.Longitude, user.Active,
		user.CreatedAt, user.UpdatedAt)
	if err != nil {
		slog.Error("SQLiteStore SaveUser failed", "error", err)
		return fmt.Errorf("failed to save user: %w", err)
	}
	return nil
}

// SaveShop stores or replaces a shop record.
func (s *SQLiteStore) SaveShop(shop models.Shop) error {
	_, err := s.db.Exec(`INSERT OR REPLACE INTO shops (id, owner_id, phone, name, category, latitude, longitude, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		shop.ID, shop.OwnerID, shop.Phone, shop.Name, shop.Category, shop.Latitude, shop.Longitude, shop.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to save shop: %w", err)
	}
	return nil
}

// GetShopByOwner retrieves the shop owned by a user, or nil.
func (s *SQLiteStore) GetShopByOwner(ownerID string) (*models.Shop, error) {
	row := s.db.QueryRow(`SELECT id, owner_id, phone, name, category, latitude, longitude, created_at
		FROM shops WHERE owner_id = ?`, ownerID)
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
func (s *SQLiteStore) GetShopByID(id string) (*models.Shop, error) {
	row := s.db.QueryRow(`SELECT id, owner_id, phone, name, category, latitude, longitude, created_at
		FROM shops WHERE id = ?`, id)
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
func (s *SQLiteStore) ListShops() ([]models.Shop, error) {
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
func (s *SQLiteStore) SaveAgreement(a models.Agreement) error {
	_, err := s.db.Exec(`INSERT OR REPLACE INTO agreements
		(id, creator_user_id, creator_phone, counterparty_name, counterparty_phone, direction, amount, purpose, description, due_date, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.CreatorUserID, a.CreatorPhone, a.CounterpartyName, a.CounterpartyPhone, a.Direction,
		a.Amount, a.Purpose, nilIfEmpty(a.Description), a.DueDate, a.Status, a.CreatedAt, a.UpdatedAt)
	if err != nil {
		slog.Error("SQLiteStore SaveAgreement failed", "error", err, "agreement_id", a.ID)
		return fmt.Errorf("failed to save agreement: %w", err)
	}
	return nil
}

// GetAgreement retrieves an agreement by id, or nil.
func (s *SQLiteStore) GetAgreement(id string) (*models.Agreement, error) {
	row := s.db.QueryRow(`SELECT id, creator_user_id, creator_phone, counterparty_name, counterparty_phone, direction, amount, purpose, description, due_date, status, created_at, updated_at
		FROM agreements WHERE id = ?`, id)
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
func (s *SQLiteStore) ListAgreementsByPhone(phone string) ([]models.Agreement, error) {
	rows, err := s.db.Query(`SELECT id, creator_user_id, creator_phone, counterparty_name, counterparty_phone, direction, amount, purpose, description, due_date, status, created_at, updated_at
		FROM agreements WHERE creator_phone = ? OR counterparty_phone = ? ORDER BY created_at DESC`, phone, phone)
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
func (s *SQLiteStore) SaveOffer(o models.Offer) error {
	_, err := s.db.Exec(`INSERT OR REPLACE INTO offers (id, shop_id, title, price, photo_url, category, valid_until, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		o.ID, o.ShopID, o.Title, o.Price, nilIfEmpty(o.PhotoURL), o.Category, o.ValidUntil, o.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to save offer: %w", err)
	}
	return nil
}

// GetOffer retrieves an offer by id, or nil.
func (s *SQLiteStore) GetOffer(id string) (*models.Offer, error) {
	row := s.db.QueryRow(`SELECT id, shop_id, title, price, photo_url, category, valid_until, created_at
		FROM offers WHERE id = ?`, id)
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
func (s *SQLiteStore) ListOffersByCategory(category string) ([]models.Offer, error) {
	rows, err := s.db.Query(`SELECT id, shop_id, title, price, photo_url, category, valid_until, created_at
		FROM offers WHERE category = ? AND valid_until > CURRENT_TIMESTAMP ORDER BY created_at DESC`, category)
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
func (s *SQLiteStore) DeleteExpiredOffers(cutoff time.Time) (int, error) {
	res, err := s.db.Exec(`DELETE FROM offers WHERE valid_until < ?`, cutoff)
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
func (s *SQLiteStore) SaveProductRequest(r models.ProductRequest) error {
	_, err := s.db.Exec(`INSERT OR REPLACE INTO product_requests (id, requester_id, requester_phone, product, quantity, notes, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.RequesterID, r.RequesterPhone, r.Product, nilIfEmpty(r.Quantity), nilIfEmpty(r.Notes), r.Status, r.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to save product request: %w", err)
	}
	return nil
}

// GetProductRequest retrieves a product request by id, or nil.
func (s *SQLiteStore) GetProductRequest(id string) (*models.ProductRequest, error) {
	row := s.db.QueryRow(`SELECT id, requester_id, requester_phone, product, quantity, notes, status, created_at
		FROM product_requests WHERE id = ?`, id)
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
func (s *SQLiteStore) SaveProductResponse(r models.ProductResponse) error {
	var price interface{}
	if r.Price > 0 {
		price = r.Price
	}
	_, err := s.db.Exec(`INSERT INTO product_responses (id, request_id, shop_id, available, price, note, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.RequestID, r.ShopID, r.Available, price, nilIfEmpty(r.Note), r.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to save product response: %w", err)
	}
	return nil
}

// ListResponsesByRequest returns responses for a request, oldest first.
func (s *SQLiteStore) ListResponsesByRequest(requestID string) ([]models.ProductResponse, error) {
	rows, err := s.db.Query(`SELECT id, request_id, shop_id, available, price, note, created_at
		FROM product_responses WHERE request_id = ? ORDER BY created_at`, requestID)
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
func (s *SQLiteStore) GetResponseByRequestAndShop(requestID, shopID string) (*models.ProductResponse, error) {
	row := s.db.QueryRow(`SELECT id, request_id, shop_id, available, price, note, created_at
		FROM product_responses WHERE request_id = ? AND shop_id = ?`, requestID, shopID)
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
func (s *SQLiteStore) SaveFishCatch(c models.FishCatch) error {
	_, err := s.db.Exec(`INSERT OR REPLACE INTO fish_catches (id, seller_id, species, quantity, price, photo_url, latitude, longitude, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.SellerID, c.Species, c.Quantity, c.Price, nilIfEmpty(c.PhotoURL), c.Latitude, c.Longitude, c.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to save fish catch: %w", err)
	}
	return nil
}

// ListRecentCatches returns the most recent catches.
func (s *SQLiteStore) ListRecentCatches(limit int) ([]models.FishCatch, error) {
	rows, err := s.db.Query(`SELECT id, seller_id, species, quantity, price, photo_url, latitude, longitude, created_at
		FROM fish_catches ORDER BY created_at DESC LIMIT ?`, limit)
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
