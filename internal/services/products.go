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

// CreateRequestInput carries everything the product search flow collects.
type CreateRequestInput struct {
	Product  string
	Quantity string
	Notes    string
}

// SubmitResponseInput carries a shop's answer to a product request.
type SubmitResponseInput struct {
	RequestID string
	Available bool
	Price     float64
	Note      string
}

// Products manages product requests and shop responses.
type Products struct {
	store store.Store
}

// NewProducts creates a Products service backed by the given store.
func NewProducts(st store.Store) *Products {
	return &Products{store: st}
}

// CreateRequest records a new open product request.
func (s *Products) CreateRequest(ctx context.Context, requester *models.User, in CreateRequestInput) (*models.ProductRequest, error) {
	r := models.ProductRequest{
		ID:             uuid.NewString(),
		RequesterID:    requester.ID,
		RequesterPhone: requester.Phone,
		Product:        in.Product,
		Quantity:       in.Quantity,
		Notes:          in.Notes,
		Status:         models.RequestStatusOpen,
		CreatedAt:      time.Now(),
	}
	if err := s.store.SaveProductRequest(r); err != nil {
		return nil, err
	}
	slog.Info("Product request created", "request_id", r.ID, "requester", util.MaskPhone(r.RequesterPhone))
	return &r, nil
}

// GetRequest returns an open request, ErrNotFound when absent, or
// ErrNotActionable when it has been closed.
func (s *Products) GetRequest(ctx context.Context, id string) (*models.ProductRequest, error) {
	r, err := s.store.GetProductRequest(id)
	if err != nil {
		return nil, err
	}
	if r == nil {
		return nil, models.ErrNotFound
	}
	if r.Status != models.RequestStatusOpen {
		return nil, models.ErrNotActionable
	}
	return r, nil
}

// FindEligibleShops returns the shops a request should be broadcast to.
// The requester's own shop, if any, is excluded so a shop owner never
// responds to their own request. Geographic ranking belongs to a matching
// service, not here.
func (s *Products) FindEligibleShops(ctx context.Context, request *models.ProductRequest) ([]models.Shop, error) {
	shops, err := s.store.ListShops()
	if err != nil {
		return nil, err
	}
	eligible := shops[:0]
	for _, shop := range shops {
		if shop.OwnerID == request.RequesterID {
			continue
		}
		eligible = append(eligible, shop)
	}
	return eligible, nil
}

// SubmitResponse records one shop's answer. A shop that already responded
// to the request gets ErrNotActionable.
func (s *Products) SubmitResponse(ctx context.Context, shop *models.Shop, in SubmitResponseInput) (*models.ProductResponse, error) {
	request, err := s.GetRequest(ctx, in.RequestID)
	if err != nil {
		return nil, err
	}
	existing, err := s.store.GetResponseByRequestAndShop(request.ID, shop.ID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, models.ErrNotActionable
	}
	r := models.ProductResponse{
		ID:        uuid.NewString(),
		RequestID: request.ID,
		ShopID:    shop.ID,
		Available: in.Available,
		Price:     in.Price,
		Note:      in.Note,
		CreatedAt: time.Now(),
	}
	if err := s.store.SaveProductResponse(r); err != nil {
		return nil, err
	}
	slog.Info("Product response submitted", "request_id", request.ID, "shop_id", shop.ID, "available", in.Available)
	return &r, nil
}

// ListResponses returns all responses to a request, oldest first.
func (s *Products) ListResponses(ctx context.Context, requestID string) ([]models.ProductResponse, error) {
	return s.store.ListResponsesByRequest(requestID)
}
