package statusapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestHealthz_ReturnsOK(t *testing.T) {
	router := newRouter(NewTracker(), "test-secret-sixteen-plus")
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var resp response
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Status != "ok" {
		t.Errorf("expected status ok, got %q", resp.Status)
	}
}

func TestProgress_RejectsMissingToken(t *testing.T) {
	router := newRouter(NewTracker(), "test-secret-sixteen-plus")
	req := httptest.NewRequest(http.MethodGet, "/progress", nil)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
}

func TestProgress_AcceptsValidToken(t *testing.T) {
	secret := "test-secret-sixteen-plus"
	tracker := NewTracker()
	tracker.Set("backup", 3, 10)

	token, err := mintToken(secret)
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}

	router := newRouter(tracker, secret)
	req := httptest.NewRequest(http.MethodGet, "/progress", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp response
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	data, ok := resp.Data.(map[string]interface{})
	if !ok {
		t.Fatalf("expected Data to be a map, got %T", resp.Data)
	}
	if data["operation"] != "backup" {
		t.Errorf("expected operation backup, got %v", data["operation"])
	}
}

func TestProgress_RejectsTokenSignedWithWrongSecret(t *testing.T) {
	token, err := mintToken("another-secret-also-long-enough")
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}

	router := newRouter(NewTracker(), "test-secret-sixteen-plus")
	req := httptest.NewRequest(http.MethodGet, "/progress", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
}
