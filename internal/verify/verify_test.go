// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package verify

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetectAuth(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    AuthKind
	}{
		{"verification code any case", "Please enter your Verification Code below", AuthTwoFactor},
		{"upper 2FA", "2FA REQUIRED", AuthTwoFactor},
		{"authenticator app", "Open your authenticator app", AuthTwoFactor},
		{"sign in", "Sign In to continue", AuthLogin},
		{"log in", "Please LOG IN", AuthLogin},
		{"login button", "[Login] [Help]", AuthLogin},
		{"form page", "Event Title | Date | Add Description", AuthNone},
		{"empty", "", AuthNone},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DetectAuth(tt.content))
		})
	}
}

func TestNeedsAuthUsesFixedGateSet(t *testing.T) {
	assert.True(t, NeedsAuth("verification code"))
	assert.False(t, NeedsAuth("continue with google"))
}

func TestHasValidationErrors(t *testing.T) {
	assert.True(t, HasValidationErrors("Title is required"))
	assert.True(t, HasValidationErrors("Date can't be blank"))
	assert.False(t, HasValidationErrors("Looks good"))
}

func TestCreated(t *testing.T) {
	isLuma := func(u string) bool { return strings.Contains(u, "lu.ma/") && !strings.Contains(u, "/create") }
	indicators := []string{"Event Name", "Add Event Details"}

	res := Created("AI Workshop · Share · Manage event", "https://lu.ma/abc123", "AI Workshop", isLuma, indicators)
	assert.True(t, res.Passed)
	assert.True(t, res.Signals["url_success"])
	assert.LessOrEqual(t, res.Confidence, 1.0)

	res = Created("Event Name | Add Event Details", "https://lu.ma/create", "AI Workshop", isLuma, indicators)
	assert.False(t, res.Passed)
	assert.False(t, res.Signals["url_success"])

	res = Created("AI Workshop was published. Share it!", "", "AI Workshop", isLuma, indicators)
	assert.True(t, res.Passed, "title + share + confirmation + no form")
	assert.False(t, res.Signals["url_success"])
}

func TestExtractURL(t *testing.T) {
	content := `Done. Created at https://lu.ma/create then redirected to https://lu.ma/xyz789.`
	assert.Equal(t, "https://lu.ma/create", ExtractURL(content, nil))
	assert.Equal(t, "https://lu.ma/xyz789", ExtractURL(content, func(u string) bool { return !strings.Contains(u, "/create") }))
	assert.Empty(t, ExtractURL("no links here", nil))
}
