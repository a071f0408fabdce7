// Package testutil provides common test utilities and helpers for BazaarBot tests.
package testutil

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/bazaarlink/bazaarbot/internal/api"
	"github.com/bazaarlink/bazaarbot/internal/models"
	"github.com/bazaarlink/bazaarbot/internal/store"
)

// NewTestServer creates a test API server backed by an in-memory store.
func NewTestServer() (*api.Server, *store.InMemoryStore) {
	st := store.NewInMemoryStore()
	return api.NewServer(st), st
}

// AssertHTTPStatus checks the HTTP status code and fails the test if it doesn't match.
func AssertHTTPStatus(t *testing.T, expected, actual int, context string) {
	t.Helper()
	if actual != expected {
		t.Errorf("%s: expected status %d, got %d", context, expected, actual)
	}
}

// AssertJSONResponse decodes a JSON response and validates the status field.
func AssertJSONResponse(t *testing.T, rr *httptest.ResponseRecorder, expectedStatus string) map[string]interface{} {
	t.Helper()
	var response map[string]interface{}
	if err := json.NewDecoder(rr.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode JSON response: %v", err)
	}

	if status, ok := response["status"].(string); ok {
		if status != expectedStatus {
			t.Errorf("expected status '%s', got '%s'", expectedStatus, status)
		}
	} else {
		t.Error("response missing or invalid 'status' field")
	}

	return response
}

// CreateHTTPRequest creates an HTTP request with optional JSON body for testing.
func CreateHTTPRequest(t *testing.T, method, url string, body interface{}) *http.Request {
	t.Helper()
	var reqBody *bytes.Buffer
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to marshal request body: %v", err)
		}
		reqBody = bytes.NewBuffer(jsonData)
	} else {
		reqBody = bytes.NewBuffer(nil)
	}

	req, err := http.NewRequest(method, url, reqBody)
	if err != nil {
		t.Fatalf("failed to create HTTP request: %v", err)
	}
	return req
}

// SeedUser stores an active user with the given phone and role and returns it.
func SeedUser(t *testing.T, st store.Store, phone string, role models.Role) *models.User {
	t.Helper()
	now := time.Now()
	u := models.User{
		ID:        uuid.NewString(),
		Phone:     phone,
		Name:      "Test User",
		Role:      role,
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := st.SaveUser(u); err != nil {
		t.Fatalf("failed to seed user: %v", err)
	}
	return &u
}

// SeedShop stores a shop owned by the given user and returns it.
func SeedShop(t *testing.T, st store.Store, owner *models.User, name, category string) *models.Shop {
	t.Helper()
	shop := models.Shop{
		ID:        uuid.NewString(),
		OwnerID:   owner.ID,
		Phone:     owner.Phone,
		Name:      name,
		Category:  category,
		CreatedAt: time.Now(),
	}
	if err := st.SaveShop(shop); err != nil {
		t.Fatalf("failed to seed shop: %v", err)
	}
	return &shop
}

// SeedSession stores a session parked at the given flow and step.
func SeedSession(t *testing.T, st store.Store, phone string, flow models.FlowType, step models.StepType) *models.Session {
	t.Helper()
	sess := models.NewSession(phone)
	sess.CurrentFlow = flow
	sess.CurrentStep = step
	if err := st.SaveSession(*sess); err != nil {
		t.Fatalf("failed to seed session: %v", err)
	}
	return sess
}
