// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package verify inspects page text returned by the browser agent.
// All matching is case-insensitive substring matching.
package verify

import (
	"regexp"
	"strings"
)

// AuthPatterns gate form filling: any hit means a login wall is showing.
var AuthPatterns = []string{
	"sign in",
	"log in",
	"login",
	"verification code",
	"2fa",
}

// TwoFactorPatterns distinguish a second-factor prompt from a plain login.
var TwoFactorPatterns = []string{
	"verification code",
	"2fa",
	"two-factor",
	"authenticator",
	"enter the code",
	"sms code",
	"security code",
}

// ValidationErrorPatterns indicate the form refused its input.
var ValidationErrorPatterns = []string{
	"required",
	"fix errors",
	"please enter",
	"invalid",
	"can't be blank",
	"must be",
	"is required",
	"please fill",
	"error:",
}

var (
	editWords         = []string{"edit", "manage", "settings"}
	shareWords        = []string{"share", "invite", "copy link"}
	confirmationWords = []string{"created", "published", "live", "success"}
)

// AuthKind classifies an authentication interruption.
type AuthKind int

const (
	AuthNone AuthKind = iota
	AuthLogin
	AuthTwoFactor
)

func (k AuthKind) String() string {
	switch k {
	case AuthLogin:
		return "login"
	case AuthTwoFactor:
		return "two_factor"
	default:
		return "none"
	}
}

func containsAny(content string, patterns []string) bool {
	lower := strings.ToLower(content)
	for _, p := range patterns {
		if strings.Contains(lower, strings.ToLower(p)) {
			return true
		}
	}
	return false
}

// NeedsAuth reports whether the content looks like a login wall.
func NeedsAuth(content string) bool {
	return containsAny(content, AuthPatterns)
}

// NeedsTwoFactor reports whether the content asks for a second factor.
func NeedsTwoFactor(content string) bool {
	return containsAny(content, TwoFactorPatterns)
}

// DetectAuth classifies content. Second-factor markers win over login markers.
func DetectAuth(content string) AuthKind {
	switch {
	case NeedsTwoFactor(content):
		return AuthTwoFactor
	case NeedsAuth(content):
		return AuthLogin
	default:
		return AuthNone
	}
}

// HasValidationErrors reports whether the form shows validation messages.
func HasValidationErrors(content string) bool {
	return containsAny(content, ValidationErrorPatterns)
}

// IsFormPage reports whether any platform form indicator is visible.
func IsFormPage(content string, indicators []string) bool {
	if len(indicators) == 0 {
		return false
	}
	return containsAny(content, indicators)
}

// Result is a multi-signal verdict.
type Result struct {
	Passed      bool            `json:"passed"`
	Signals     map[string]bool `json:"signals"`
	SignalCount int             `json:"signal_count"`
	Confidence  float64         `json:"confidence"`
}

// Created combines URL, title, control and confirmation signals into a
// verdict on whether the event page is showing. A matching URL plus one
// more signal passes; without the URL three signals are needed.
func Created(content, currentURL, title string, isSuccessURL func(string) bool, formIndicators []string) Result {
	lower := strings.ToLower(content)
	signals := map[string]bool{
		"url_success":       isSuccessURL != nil && currentURL != "" && isSuccessURL(currentURL),
		"title_visible":     title != "" && strings.Contains(lower, strings.ToLower(title)),
		"edit_button":       containsAny(content, editWords),
		"share_button":      containsAny(content, shareWords),
		"confirmation_text": containsAny(content, confirmationWords),
		"no_form":           !IsFormPage(content, formIndicators),
	}

	count := 0
	for _, v := range signals {
		if v {
			count++
		}
	}

	res := Result{
		Signals:     signals,
		SignalCount: count,
		Confidence:  float64(count) / float64(len(signals)),
	}
	switch {
	case signals["url_success"] && count >= 2:
		res.Passed = true
		res.Confidence = min(res.Confidence+0.2, 1.0)
	case count >= 3:
		res.Passed = true
	}
	return res
}

var urlPattern = regexp.MustCompile(`https?://[^\s"'<>)\]]+`)

// ExtractURL returns the first URL in content accepted by match, or "".
// A nil match accepts any URL.
func ExtractURL(content string, match func(string) bool) string {
	for _, u := range urlPattern.FindAllString(content, -1) {
		u = strings.TrimRight(u, ".,;:")
		if match == nil || match(u) {
			return u
		}
	}
	return ""
}

// AuthPrompt is the instruction shown to a human after an auth interruption.
func AuthPrompt(kind AuthKind) string {
	if kind == AuthTwoFactor {
		return "Two-factor authentication required. Complete the verification in the live browser, then resume the run."
	}
	return "Login required. Log in to the platform through the live browser, then start the run again."
}
