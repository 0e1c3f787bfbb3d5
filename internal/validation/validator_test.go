// Vitrine - Promotional Banner Delivery and Engagement Analytics
// Copyright 2026 Vitrine Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/vitrine-app/vitrine

package validation

import (
	"strings"
	"testing"
)

type sampleRequest struct {
	BannerID string `validate:"required,max=64"`
	Kind     string `validate:"required,oneof=view click dismiss"`
	From     string `validate:"omitempty,datetime=2006-01-02T15:04:05Z07:00"`
}

func TestValidateStructPasses(t *testing.T) {
	err := ValidateStruct(&sampleRequest{
		BannerID: "banner-1",
		Kind:     "click",
		From:     "2026-08-01T00:00:00Z",
	})
	if err != nil {
		t.Errorf("Valid struct rejected: %v", err)
	}
}

func TestValidateStructReportsAllFailures(t *testing.T) {
	err := ValidateStruct(&sampleRequest{
		Kind: "tapped",
		From: "yesterday",
	})
	if err == nil {
		t.Fatal("Invalid struct accepted")
	}

	msg := err.Error()
	for _, want := range []string{"BannerID", "Kind", "From"} {
		if !strings.Contains(msg, want) {
			t.Errorf("Error %q does not mention field %s", msg, want)
		}
	}
}

func TestGetValidatorSingleton(t *testing.T) {
	if GetValidator() != GetValidator() {
		t.Error("GetValidator must return the same instance")
	}
}
