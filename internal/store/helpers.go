package store

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/bazaarlink/bazaarbot/internal/models"
)

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// nilIfEmpty returns nil if s is empty, otherwise returns s.
// Used for nullable database columns.
func nilIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// marshalTempData converts a session temp-data map to its JSON column value.
func marshalTempData(data map[models.DataKey]string) (string, error) {
	if len(data) == 0 {
		return "", nil
	}
	b, err := json.Marshal(data)
	if err != nil {
		return "", fmt.Errorf("marshal temp data: %w", err)
	}
	return string(b), nil
}

// scanSession scans a sessions row.
func scanSession(row rowScanner) (*models.Session, error) {
	var s models.Session
	var tempJSON, userID sql.NullString
	err := row.Scan(&s.Phone, &s.CurrentFlow, &s.CurrentStep, &tempJSON, &userID, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}
	s.TempData = make(map[models.DataKey]string)
	if tempJSON.Valid && tempJSON.String != "" {
		if err := json.Unmarshal([]byte(tempJSON.String), &s.TempData); err != nil {
			// A corrupt bag must not brick the conversation; continue empty.
			s.TempData = make(map[models.DataKey]string)
		}
	}
	if userID.Valid {
		s.UserID = &userID.String
	}
	return &s, nil
}

// scanUser scans a users row.
func scanUser(row rowScanner) (*models.User, error) {
	var u models.User
	err := row.Scan(&u.ID, &u.Phone, &u.Name, &u.Role, &u.Latitude, &u.Longitude, &u.Active, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// scanShop scans a shops row.
func scanShop(row rowScanner) (*models.Shop, error) {
	var s models.Shop
	err := row.Scan(&s.ID, &s.OwnerID, &s.Phone, &s.Name, &s.Category, &s.Latitude, &s.Longitude, &s.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// scanAgreement scans an agreements row.
func scanAgreement(row rowScanner) (*models.Agreement, error) {
	var a models.Agreement
	var description sql.NullString
	err := row.Scan(&a.ID, &a.CreatorUserID, &a.CreatorPhone, &a.CounterpartyName, &a.CounterpartyPhone,
		&a.Direction, &a.Amount, &a.Purpose, &description, &a.DueDate, &a.Status, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	a.Description = description.String
	return &a, nil
}

// scanOffer scans an offers row.
func scanOffer(row rowScanner) (*models.Offer, error) {
	var o models.Offer
	var photoURL sql.NullString
	err := row.Scan(&o.ID, &o.ShopID, &o.Title, &o.Price, &photoURL, &o.Category, &o.ValidUntil, &o.CreatedAt)
	if err != nil {
		return nil, err
	}
	o.PhotoURL = photoURL.String
	return &o, nil
}

// scanProductRequest scans a product_requests row.
func scanProductRequest(row rowScanner) (*models.ProductRequest, error) {
	var r models.ProductRequest
	var quantity, notes sql.NullString
	err := row.Scan(&r.ID, &r.RequesterID, &r.RequesterPhone, &r.Product, &quantity, &notes, &r.Status, &r.CreatedAt)
	if err != nil {
		return nil, err
	}
	r.Quantity = quantity.String
	r.Notes = notes.String
	return &r, nil
}

// scanProductResponse scans a product_responses row.
func scanProductResponse(row rowScanner) (*models.ProductResponse, error) {
	var r models.ProductResponse
	var price sql.NullFloat64
	var note sql.NullString
	err := row.Scan(&r.ID, &r.RequestID, &r.ShopID, &r.Available, &price, &note, &r.CreatedAt)
	if err != nil {
		return nil, err
	}
	r.Price = price.Float64
	r.Note = note.String
	return &r, nil
}

// scanFishCatch scans a fish_catches row.
func scanFishCatch(row rowScanner) (*models.FishCatch, error) {
	var c models.FishCatch
	var photoURL sql.NullString
	err := row.Scan(&c.ID, &c.SellerID, &c.Species, &c.Quantity, &c.Price, &photoURL, &c.Latitude, &c.Longitude, &c.CreatedAt)
	if err != nil {
		return nil, err
	}
	c.PhotoURL = photoURL.String
	return &c, nil
}
