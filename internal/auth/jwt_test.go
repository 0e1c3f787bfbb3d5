// Vitrine - Promotional Banner Delivery and Engagement Analytics
// Copyright 2026 Vitrine Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/vitrine-app/vitrine

package auth

import (
	"testing"
	"time"

	"github.com/vitrine-app/vitrine/internal/config"
)

func testSecurityConfig() *config.SecurityConfig {
	return &config.SecurityConfig{
		AuthMode:       "jwt",
		JWTSecret:      "test-secret-that-is-long-enough-for-hs256",
		SessionTimeout: time.Hour,
	}
}

func TestNewJWTManagerRejectsShortSecret(t *testing.T) {
	_, err := NewJWTManager(&config.SecurityConfig{JWTSecret: "short"})
	if err == nil {
		t.Error("Expected error for short secret")
	}
}

func TestTokenRoundTrip(t *testing.T) {
	manager, err := NewJWTManager(testSecurityConfig())
	if err != nil {
		t.Fatalf("NewJWTManager failed: %v", err)
	}

	token, err := manager.GenerateToken("user-1", "moderator")
	if err != nil {
		t.Fatalf("GenerateToken failed: %v", err)
	}

	claims, err := manager.ValidateToken(token)
	if err != nil {
		t.Fatalf("ValidateToken failed: %v", err)
	}
	if claims.UserID != "user-1" || claims.Role != "moderator" {
		t.Errorf("Claims = %s/%s, want user-1/moderator", claims.UserID, claims.Role)
	}
}

func TestValidateTokenRejectsTampering(t *testing.T) {
	manager, err := NewJWTManager(testSecurityConfig())
	if err != nil {
		t.Fatalf("NewJWTManager failed: %v", err)
	}

	token, err := manager.GenerateToken("user-1", "member")
	if err != nil {
		t.Fatalf("GenerateToken failed: %v", err)
	}

	if _, err := manager.ValidateToken(token + "x"); err == nil {
		t.Error("Tampered token must be rejected")
	}
	if _, err := manager.ValidateToken("not-a-token"); err == nil {
		t.Error("Garbage token must be rejected")
	}

	other, err := NewJWTManager(&config.SecurityConfig{
		JWTSecret:      "a-completely-different-secret-of-enough-length",
		SessionTimeout: time.Hour,
	})
	if err != nil {
		t.Fatalf("NewJWTManager failed: %v", err)
	}
	if _, err := other.ValidateToken(token); err == nil {
		t.Error("Token signed with another secret must be rejected")
	}
}

func TestValidateTokenRejectsExpired(t *testing.T) {
	cfg := testSecurityConfig()
	cfg.SessionTimeout = -time.Minute
	manager, err := NewJWTManager(cfg)
	if err != nil {
		t.Fatalf("NewJWTManager failed: %v", err)
	}

	token, err := manager.GenerateToken("user-1", "member")
	if err != nil {
		t.Fatalf("GenerateToken failed: %v", err)
	}
	if _, err := manager.ValidateToken(token); err == nil {
		t.Error("Expired token must be rejected")
	}
}
