// Vitrine - Promotional Banner Delivery and Engagement Analytics
// Copyright 2026 Vitrine Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/vitrine-app/vitrine

package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/vitrine-app/vitrine/internal/auth"
	"github.com/vitrine-app/vitrine/internal/config"
	"github.com/vitrine-app/vitrine/internal/database"
	"github.com/vitrine-app/vitrine/internal/delivery"
	"github.com/vitrine-app/vitrine/internal/events"
	"github.com/vitrine-app/vitrine/internal/models"
)

// Test fixture: an in-memory catalog, ledger and cache behind the real
// delivery service, served through the real router in header-trust mode.

type stubCatalog struct {
	banners []models.BannerDefinition
}

func (c *stubCatalog) ListActiveCandidates(ctx context.Context, now time.Time) ([]models.BannerDefinition, error) {
	var active []models.BannerDefinition
	for _, b := range c.banners {
		if b.Status == models.BannerStatusActive && b.InWindow(now) {
			active = append(active, b)
		}
	}
	return active, nil
}

func (c *stubCatalog) GetBanner(ctx context.Context, id string) (*models.BannerDefinition, error) {
	for i := range c.banners {
		if c.banners[i].ID == id {
			return &c.banners[i], nil
		}
	}
	return nil, database.ErrBannerNotFound
}

type stubLedger struct {
	records map[string]*models.EngagementRecord
}

func (l *stubLedger) key(userID, bannerID string) string { return userID + "/" + bannerID }

func (l *stubLedger) RecordView(ctx context.Context, userID, bannerID string) (models.EngagementOutcome, *models.EngagementRecord, error) {
	now := time.Now().UTC()
	if rec, ok := l.records[l.key(userID, bannerID)]; ok {
		rec.ViewCount++
		return models.OutcomeAlreadyViewed, rec, nil
	}
	rec := &models.EngagementRecord{
		UserID: userID, BannerID: bannerID,
		ViewedAt: &now, ViewCount: 1,
		CreatedAt: now, UpdatedAt: now,
	}
	l.records[l.key(userID, bannerID)] = rec
	return models.OutcomeCreated, rec, nil
}

func (l *stubLedger) RecordClick(ctx context.Context, userID, bannerID string) (models.EngagementOutcome, *models.EngagementRecord, error) {
	rec, ok := l.records[l.key(userID, bannerID)]
	if !ok {
		return "", nil, database.ErrNoEngagement
	}
	if rec.Clicked {
		return models.OutcomeAlreadyClicked, rec, nil
	}
	now := time.Now().UTC()
	rec.Clicked = true
	rec.ClickedAt = &now
	return models.OutcomeClicked, rec, nil
}

func (l *stubLedger) RecordDismiss(ctx context.Context, userID, bannerID string) (models.EngagementOutcome, *models.EngagementRecord, error) {
	rec, ok := l.records[l.key(userID, bannerID)]
	if !ok {
		return "", nil, database.ErrNoEngagement
	}
	if rec.Dismissed {
		return models.OutcomeAlreadyDismissed, rec, nil
	}
	now := time.Now().UTC()
	rec.Dismissed = true
	rec.DismissedAt = &now
	return models.OutcomeDismissed, rec, nil
}

func (l *stubLedger) GetBannerStats(ctx context.Context, bannerID string, filter models.StatsFilter) (*models.BannerStats, error) {
	return &models.BannerStats{BannerID: bannerID, TotalViews: 10, TotalClicks: 3, CTR: 0.3}, nil
}

type stubCache struct{}

func (stubCache) InCooldown(ctx context.Context, userID string) (bool, error) { return false, nil }
func (stubCache) WasShown(ctx context.Context, userID, bannerID string, repeatable bool) (bool, error) {
	return false, nil
}
func (stubCache) Commit(ctx context.Context, userID, bannerID string, repeatable bool) error {
	return nil
}
func (stubCache) Close() error { return nil }

type stubPinger struct{ err error }

func (p stubPinger) Ping(ctx context.Context) error { return p.err }

func testServer(t *testing.T, catalog *stubCatalog, pingErr error) *httptest.Server {
	t.Helper()

	ledger := &stubLedger{records: make(map[string]*models.EngagementRecord)}
	svc := delivery.NewService(catalog, ledger, stubCache{}, events.NewEmitter(nil), config.DeliveryModeStandard)
	handler := NewHandler(svc, stubPinger{err: pingErr})
	router := NewRouter(handler, auth.NewMiddleware(nil), &config.SecurityConfig{
		AuthMode:          "none",
		RateLimitDisabled: true,
	})

	srv := httptest.NewServer(router.Setup())
	t.Cleanup(srv.Close)
	return srv
}

func doRequest(t *testing.T, method, url string, asUser string) (*http.Response, APIResponse) {
	t.Helper()

	req, err := http.NewRequest(method, url, nil)
	if err != nil {
		t.Fatalf("Failed to build request: %v", err)
	}
	if asUser != "" {
		req.Header.Set("X-User-ID", asUser)
		req.Header.Set("X-User-Role", "member")
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	defer resp.Body.Close()

	var body APIResponse
	if resp.StatusCode != http.StatusNoContent {
		if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
			t.Fatalf("Failed to decode response: %v", err)
		}
	}
	return resp, body
}

func apiBanner(id string) models.BannerDefinition {
	now := time.Now().UTC().Add(-time.Hour)
	return models.BannerDefinition{
		ID: id, Title: id,
		StartAt: now, Priority: 1,
		Status:    models.BannerStatusActive,
		CreatedAt: now, UpdatedAt: now,
	}
}

func TestHealthEndpoints(t *testing.T) {
	srv := testServer(t, &stubCatalog{}, nil)

	resp, body := doRequest(t, http.MethodGet, srv.URL+"/api/v1/health/live", "")
	if resp.StatusCode != http.StatusOK || !body.Success {
		t.Errorf("live = %d success=%v, want 200 true", resp.StatusCode, body.Success)
	}

	resp, _ = doRequest(t, http.MethodGet, srv.URL+"/api/v1/health/ready", "")
	if resp.StatusCode != http.StatusOK {
		t.Errorf("ready = %d, want 200", resp.StatusCode)
	}

	down := testServer(t, &stubCatalog{}, errors.New("db down"))
	resp, body = doRequest(t, http.MethodGet, down.URL+"/api/v1/health/ready", "")
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("ready with dead db = %d, want 503", resp.StatusCode)
	}
	if body.Error == nil || body.Error.Code != ErrCodeServiceUnavailable {
		t.Errorf("Expected SERVICE_UNAVAILABLE error, got %+v", body.Error)
	}
}

func TestBannerForUserEndpoint(t *testing.T) {
	srv := testServer(t, &stubCatalog{banners: []models.BannerDefinition{apiBanner("banner-1")}}, nil)

	// Unauthenticated requests are rejected before reaching the service.
	resp, _ := doRequest(t, http.MethodGet, srv.URL+"/api/v1/banners/for-user", "")
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("Unauthenticated = %d, want 401", resp.StatusCode)
	}

	resp, body := doRequest(t, http.MethodGet, srv.URL+"/api/v1/banners/for-user", "user-1")
	if resp.StatusCode != http.StatusOK || !body.Success {
		t.Fatalf("Status = %d success=%v, want 200 true", resp.StatusCode, body.Success)
	}
	banner, ok := body.Data.(map[string]interface{})
	if !ok || banner["id"] != "banner-1" {
		t.Errorf("Data = %v, want banner-1 payload", body.Data)
	}
}

func TestBannerForUserEndpointNoBanner(t *testing.T) {
	srv := testServer(t, &stubCatalog{}, nil)

	resp, body := doRequest(t, http.MethodGet, srv.URL+"/api/v1/banners/for-user", "user-1")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Status = %d, want 200 (no banner is not an error)", resp.StatusCode)
	}
	if body.Data != nil {
		t.Errorf("Data = %v, want null", body.Data)
	}
}

func TestEngagementEndpoints(t *testing.T) {
	srv := testServer(t, &stubCatalog{banners: []models.BannerDefinition{apiBanner("banner-1")}}, nil)
	base := srv.URL + "/api/v1/banners/banner-1"

	// Click before view: precondition failure.
	resp, body := doRequest(t, http.MethodPost, base+"/click", "user-1")
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("Click before view = %d, want 409", resp.StatusCode)
	}
	if body.Error == nil || body.Error.Code != ErrCodePreconditionFailed {
		t.Errorf("Expected PRECONDITION_FAILED, got %+v", body.Error)
	}

	resp, body = doRequest(t, http.MethodPost, base+"/view", "user-1")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("View = %d, want 200", resp.StatusCode)
	}
	if data := body.Data.(map[string]interface{}); data["action"] != "created" {
		t.Errorf("View action = %v, want created", data["action"])
	}

	resp, body = doRequest(t, http.MethodPost, base+"/click", "user-1")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Click = %d, want 200", resp.StatusCode)
	}
	data := body.Data.(map[string]interface{})
	if data["action"] != "clicked" {
		t.Errorf("Click action = %v, want clicked", data["action"])
	}
	if record, ok := data["record"].(map[string]interface{}); !ok || record["clicked"] != true {
		t.Errorf("Record snapshot missing clicked flag: %v", data["record"])
	}

	resp, body = doRequest(t, http.MethodPost, base+"/click", "user-1")
	if data := body.Data.(map[string]interface{}); resp.StatusCode != http.StatusOK || data["action"] != "already_clicked" {
		t.Errorf("Repeat click = %d/%v, want 200/already_clicked", resp.StatusCode, data["action"])
	}

	resp, body = doRequest(t, http.MethodPost, base+"/dismiss", "user-1")
	if data := body.Data.(map[string]interface{}); resp.StatusCode != http.StatusOK || data["action"] != "dismissed" {
		t.Errorf("Dismiss = %d/%v, want 200/dismissed", resp.StatusCode, data["action"])
	}

	// Unknown banner.
	resp, body = doRequest(t, http.MethodPost, srv.URL+"/api/v1/banners/missing/view", "user-1")
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("Unknown banner = %d, want 404", resp.StatusCode)
	}
	if body.Error == nil || body.Error.Code != ErrCodeNotFound {
		t.Errorf("Expected NOT_FOUND, got %+v", body.Error)
	}
}

func TestStatsEndpoint(t *testing.T) {
	srv := testServer(t, &stubCatalog{banners: []models.BannerDefinition{apiBanner("banner-1")}}, nil)

	resp, body := doRequest(t, http.MethodGet, srv.URL+"/api/v1/banners/banner-1/stats", "user-1")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Stats = %d, want 200", resp.StatusCode)
	}
	data := body.Data.(map[string]interface{})
	if data["ctr"] != 0.3 {
		t.Errorf("CTR = %v, want 0.3", data["ctr"])
	}

	// Range parameters are validated.
	resp, body = doRequest(t, http.MethodGet, srv.URL+"/api/v1/banners/banner-1/stats?from=yesterday", "user-1")
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("Bad from = %d, want 400", resp.StatusCode)
	}
	if body.Error == nil || body.Error.Code != ErrCodeBadRequest {
		t.Errorf("Expected BAD_REQUEST, got %+v", body.Error)
	}

	resp, _ = doRequest(t, http.MethodGet,
		srv.URL+"/api/v1/banners/banner-1/stats?from=2026-08-02T00:00:00Z&to=2026-08-01T00:00:00Z", "user-1")
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("Inverted range = %d, want 400", resp.StatusCode)
	}

	resp, _ = doRequest(t, http.MethodGet,
		srv.URL+"/api/v1/banners/banner-1/stats?from=2026-08-01T00:00:00Z&to=2026-08-02T00:00:00Z", "user-1")
	if resp.StatusCode != http.StatusOK {
		t.Errorf("Valid range = %d, want 200", resp.StatusCode)
	}
}
