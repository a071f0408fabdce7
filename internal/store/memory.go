// Package store provides storage backends for BazaarBot.
//
// This file implements an in-memory store used by tests and local runs.
package store

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/bazaarlink/bazaarbot/internal/models"
)

// InMemoryStore keeps everything in maps guarded by one mutex. It is safe
// for concurrent use and implements the full Store interface.
type InMemoryStore struct {
	mu         sync.Mutex
	sessions   map[string]models.Session
	users      map[string]models.User
	shops      map[string]models.Shop
	agreements map[string]models.Agreement
	offers     map[string]models.Offer
	requests   map[string]models.ProductRequest
	responses  map[string]models.ProductResponse
	catches    map[string]models.FishCatch
}

// NewInMemoryStore creates an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		sessions:   make(map[string]models.Session),
		users:      make(map[string]models.User),
		shops:      make(map[string]models.Shop),
		agreements: make(map[string]models.Agreement),
		offers:     make(map[string]models.Offer),
		requests:   make(map[string]models.ProductRequest),
		responses:  make(map[string]models.ProductResponse),
		catches:    make(map[string]models.FishCatch),
	}
}

// Close is a no-op for the in-memory store.
func (s *InMemoryStore) Close() error { return nil }

func (s *InMemoryStore) GetSession(phone string) (*models.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[phone]
	if !ok {
		return nil, nil
	}
	cp := sess
	cp.TempData = make(map[models.DataKey]string, len(sess.TempData))
	for k, v := range sess.TempData {
		cp.TempData[k] = v
	}
	return &cp, nil
}

func (s *InMemoryStore) SaveSession(session models.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := session
	cp.TempData = make(map[models.DataKey]string, len(session.TempData))
	for k, v := range session.TempData {
		cp.TempData[k] = v
	}
	s.sessions[session.Phone] = cp
	return nil
}

func (s *InMemoryStore) DeleteSession(phone string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, phone)
	return nil
}

func (s *InMemoryStore) CountSessionsByFlow() (map[models.FlowType]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	counts := make(map[models.FlowType]int)
	for _, sess := range s.sessions {
		counts[sess.CurrentFlow]++
	}
	return counts, nil
}

func (s *InMemoryStore) GetUserByPhone(phone string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Phone == phone && u.Active {
			cp := u
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *InMemoryStore) GetUserByPhoneAny(phone string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Phone == phone {
			cp := u
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *InMemoryStore) GetUserByID(id string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, nil
	}
	cp := u
	return &cp, nil
}

func (s *InMemoryStore) SaveUser(user models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	// Same phone-uniqueness rule the SQL backends enforce with a constraint.
	for id, u := range s.users {
		if u.Phone == user.Phone && id != user.ID {
			return fmt.Errorf("failed to save user: phone already taken by user %s", id)
		}
	}
	s.users[user.ID] = user
	return nil
}

func (s *InMemoryStore) SaveShop(shop models.Shop) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.shops[shop.ID] = shop
	return nil
}

func (s *InMemoryStore) GetShopByOwner(ownerID string) (*models.Shop, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sh := range s.shops {
		if sh.OwnerID == ownerID {
			cp := sh
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *InMemoryStore) GetShopByID(id string) (*models.Shop, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sh, ok := s.shops[id]
	if !ok {
		return nil, nil
	}
	cp := sh
	return &cp, nil
}

func (s *InMemoryStore) ListShops() ([]models.Shop, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	shops := make([]models.Shop, 0, len(s.shops))
	for _, sh := range s.shops {
		shops = append(shops, sh)
	}
	sort.Slice(shops, func(i, j int) bool { return shops[i].CreatedAt.Before(shops[j].CreatedAt) })
	return shops, nil
}

func (s *InMemoryStore) SaveAgreement(a models.Agreement) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.agreements[a.ID] = a
	return nil
}

func (s *InMemoryStore) GetAgreement(id string) (*models.Agreement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.agreements[id]
	if !ok {
		return nil, nil
	}
	cp := a
	return &cp, nil
}

func (s *InMemoryStore) ListAgreementsByPhone(phone string) ([]models.Agreement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var list []models.Agreement
	for _, a := range s.agreements {
		if a.CreatorPhone == phone || a.CounterpartyPhone == phone {
			list = append(list, a)
		}
	}
	sort.Slice(list, func(i, j int) bool { return list[i].CreatedAt.After(list[j].CreatedAt) })
	return list, nil
}

func (s *InMemoryStore) SaveOffer(o models.Offer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.offers[o.ID] = o
	return nil
}

func (s *InMemoryStore) GetOffer(id string) (*models.Offer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.offers[id]
	if !ok {
		return nil, nil
	}
	cp := o
	return &cp, nil
}

func (s *InMemoryStore) ListOffersByCategory(category string) ([]models.Offer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	var list []models.Offer
	for _, o := range s.offers {
		if o.Category == category && o.ValidUntil.After(now) {
			list = append(list, o)
		}
	}
	sort.Slice(list, func(i, j int) bool { return list[i].CreatedAt.After(list[j].CreatedAt) })
	return list, nil
}

func (s *InMemoryStore) DeleteExpiredOffers(cutoff time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id, o := range s.offers {
		if o.ValidUntil.Before(cutoff) {
			delete(s.offers, id)
			n++
		}
	}
	return n, nil
}

func (s *InMemoryStore) SaveProductRequest(r models.ProductRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests[r.ID] = r
	return nil
}

func (s *InMemoryStore) GetProductRequest(id string) (*models.ProductRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.requests[id]
	if !ok {
		return nil, nil
	}
	cp := r
	return &cp, nil
}

func (s *InMemoryStore) SaveProductResponse(r models.ProductResponse) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.responses[r.ID] = r
	return nil
}

func (s *InMemoryStore) ListResponsesByRequest(requestID string) ([]models.ProductResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var list []models.ProductResponse
	for _, r := range s.responses {
		if r.RequestID == requestID {
			list = append(list, r)
		}
	}
	sort.Slice(list, func(i, j int) bool { return list[i].CreatedAt.Before(list[j].CreatedAt) })
	return list, nil
}

func (s *InMemoryStore) GetResponseByRequestAndShop(requestID, shopID string) (*models.ProductResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.responses {
		if r.RequestID == requestID && r.ShopID == shopID {
			cp := r
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *InMemoryStore) SaveFishCatch(c models.FishCatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.catches[c.ID] = c
	return nil
}

func (s *InMemoryStore) ListRecentCatches(limit int) ([]models.FishCatch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := make([]models.FishCatch, 0, len(s.catches))
	for _, c := range s.catches {
		list = append(list, c)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].CreatedAt.After(list[j].CreatedAt) })
	if limit > 0 && len(list) > limit {
		list = list[:limit]
	}
	return list, nil
}
