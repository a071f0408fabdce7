// Package models defines the core data structures for BazaarBot.
//
// It includes the domain entities referenced by the flow handlers, which are
// owned and mutated by the services module and shared across modules.
package models

import (
	"errors"
	"time"
)

// Role identifies what a registered user can do.
type Role string

const (
	// RoleCustomer is a regular buyer.
	RoleCustomer Role = "customer"
	// RoleShopOwner runs a shop and can upload offers and answer requests.
	RoleShopOwner Role = "shop_owner"
	// RoleFishSeller can post fish catches.
	RoleFishSeller Role = "fish_seller"
	// RoleWorker offers labor and browses like a customer.
	RoleWorker Role = "worker"
)

// IsValidRole checks if the given role is supported.
func IsValidRole(r Role) bool {
	switch r {
	case RoleCustomer, RoleShopOwner, RoleFishSeller, RoleWorker:
		return true
	default:
		return false
	}
}

// Validation constants for input validation.
const (
	// MaxAmount is the ceiling for any money amount accepted from chat input.
	MaxAmount = 10_000_000
	// MaxNameLength bounds free-text names collected in flows.
	MaxNameLength = 80
	// MaxFreeTextLength bounds descriptions and notes collected in flows.
	MaxFreeTextLength = 500
)

// Error variables for expected business outcomes. Domain services return
// these instead of signaling recoverable conditions through panics, so step
// handlers can match on the kind.
var (
	ErrNotFound      = errors.New("entity not found")
	ErrNotActionable = errors.New("entity no longer actionable")
	ErrNotAuthorized = errors.New("user not allowed to perform this action")
	ErrAlreadyExists = errors.New("entity already exists")
)

// User is a registered participant.
type User struct {
	ID        string    `json:"id"`
	Phone     string    `json:"phone"`
	Name      string    `json:"name"`
	Role      Role      `json:"role"`
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IsShopOwner reports whether the user can upload offers and respond to
// product requests.
func (u *User) IsShopOwner() bool { return u != nil && u.Role == RoleShopOwner }

// IsFishSeller reports whether the user can post fish catches.
func (u *User) IsFishSeller() bool { return u != nil && u.Role == RoleFishSeller }

// IsWorker reports whether the user registered as a worker.
func (u *User) IsWorker() bool { return u != nil && u.Role == RoleWorker }

// AgreementStatus tracks the lifecycle of an IOU agreement.
type AgreementStatus string

const (
	AgreementStatusPending   AgreementStatus = "pending"
	AgreementStatusConfirmed AgreementStatus = "confirmed"
	AgreementStatusDeclined  AgreementStatus = "declined"
	AgreementStatusSettled   AgreementStatus = "settled"
)

// AgreementDirection records who owes whom, from the creator's perspective.
type AgreementDirection string

const (
	// DirectionGiving means the creator gave money/goods to the counterparty.
	DirectionGiving AgreementDirection = "giving"
	// DirectionReceiving means the creator received from the counterparty.
	DirectionReceiving AgreementDirection = "receiving"
)

// Agreement is an IOU between a registered creator and a counterparty who
// is tracked by phone number and may be unregistered.
type Agreement struct {
	ID                string             `json:"id"`
	CreatorUserID     string             `json:"creator_user_id"`
	CreatorPhone      string             `json:"creator_phone"`
	CounterpartyName  string             `json:"counterparty_name"`
	CounterpartyPhone string             `json:"counterparty_phone"`
	Direction         AgreementDirection `json:"direction"`
	Amount            float64            `json:"amount"`
	Purpose           string             `json:"purpose"`
	Description       string             `json:"description,omitempty"`
	DueDate           time.Time          `json:"due_date"`
	Status            AgreementStatus    `json:"status"`
	CreatedAt         time.Time          `json:"created_at"`
	UpdatedAt         time.Time          `json:"updated_at"`
}

// Shop is a registered shop owner's storefront.
type Shop struct {
	ID        string    `json:"id"`
	OwnerID   string    `json:"owner_id"`
	Phone     string    `json:"phone"`
	Name      string    `json:"name"`
	Category  string    `json:"category"`
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	CreatedAt time.Time `json:"created_at"`
}

// Offer is a time-limited deal uploaded by a shop.
type Offer struct {
	ID         string    `json:"id"`
	ShopID     string    `json:"shop_id"`
	Title      string    `json:"title"`
	Price      float64   `json:"price"`
	PhotoURL   string    `json:"photo_url,omitempty"`
	Category   string    `json:"category"`
	ValidUntil time.Time `json:"valid_until"`
	CreatedAt  time.Time `json:"created_at"`
}

// ProductRequestStatus tracks a product request's lifecycle.
type ProductRequestStatus string

const (
	RequestStatusOpen   ProductRequestStatus = "open"
	RequestStatusClosed ProductRequestStatus = "closed"
)

// ProductRequest is a customer's "who has this?" broadcast.
type ProductRequest struct {
	ID             string               `json:"id"`
	RequesterID    string               `json:"requester_id"`
	RequesterPhone string               `json:"requester_phone"`
	Product        string               `json:"product"`
	Quantity       string               `json:"quantity,omitempty"`
	Notes          string               `json:"notes,omitempty"`
	Status         ProductRequestStatus `json:"status"`
	CreatedAt      time.Time            `json:"created_at"`
}

// ProductResponse is one shop's answer to a product request.
type ProductResponse struct {
	ID        string    `json:"id"`
	RequestID string    `json:"request_id"`
	ShopID    string    `json:"shop_id"`
	Available bool      `json:"available"`
	Price     float64   `json:"price,omitempty"`
	Note      string    `json:"note,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// FishCatch is a fish seller's posted catch.
type FishCatch struct {
	ID        string    `json:"id"`
	SellerID  string    `json:"seller_id"`
	Species   string    `json:"species"`
	Quantity  string    `json:"quantity"`
	Price     float64   `json:"price"`
	PhotoURL  string    `json:"photo_url,omitempty"`
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	CreatedAt time.Time `json:"created_at"`
}
