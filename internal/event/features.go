// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package event

import (
	"fmt"
	"slices"
	"strings"
)

// TicketType selects how attendance is sold or registered.
type TicketType string

const (
	TicketFree     TicketType = "free"
	TicketPaid     TicketType = "paid"
	TicketDonation TicketType = "donation"
	TicketRSVPOnly TicketType = "rsvp_only"
)

// RecurringPattern is the repetition rule for an event series.
type RecurringPattern string

const (
	RecurNone     RecurringPattern = "none"
	RecurDaily    RecurringPattern = "daily"
	RecurWeekly   RecurringPattern = "weekly"
	RecurBiweekly RecurringPattern = "biweekly"
	RecurMonthly  RecurringPattern = "monthly"
	RecurCustom   RecurringPattern = "custom"
)

// Visibility of the listing.
type Visibility string

const (
	VisibilityPublic   Visibility = "public"
	VisibilityPrivate  Visibility = "private"
	VisibilityUnlisted Visibility = "unlisted"
)

// TicketTier is one price point.
type TicketTier struct {
	Name     string  `json:"name" yaml:"name"`
	Price    float64 `json:"price" yaml:"price"`
	Currency string  `json:"currency,omitempty" yaml:"currency,omitempty"`
	Quantity int     `json:"quantity,omitempty" yaml:"quantity,omitempty"`
}

// TicketConfig describes registration.
type TicketConfig struct {
	Type            TicketType   `json:"ticket_type,omitempty" yaml:"type,omitempty"`
	Tiers           []TicketTier `json:"tiers,omitempty" yaml:"tiers,omitempty"`
	Capacity        int          `json:"capacity,omitempty" yaml:"capacity,omitempty"`
	RequireApproval bool         `json:"require_approval,omitempty" yaml:"require_approval,omitempty"`
	Waitlist        bool         `json:"waitlist_enabled,omitempty" yaml:"waitlist,omitempty"`
}

// IsFree reports whether no tier carries a price.
func (t TicketConfig) IsFree() bool {
	if t.Type == "" || t.Type == TicketFree || t.Type == TicketRSVPOnly {
		return true
	}
	for _, tier := range t.Tiers {
		if tier.Price > 0 {
			return false
		}
	}
	return t.Type != TicketPaid
}

// NeedsSetup reports whether the ticket step has anything to do.
func (t TicketConfig) NeedsSetup() bool {
	return !t.IsFree() || t.Capacity > 0 || t.RequireApproval
}

// MinPrice is the cheapest tier, 0 when there are none.
func (t TicketConfig) MinPrice() float64 {
	if len(t.Tiers) == 0 {
		return 0
	}
	m := t.Tiers[0].Price
	for _, tier := range t.Tiers[1:] {
		m = min(m, tier.Price)
	}
	return m
}

// RecurringConfig describes an event series.
type RecurringConfig struct {
	Pattern    RecurringPattern `json:"pattern,omitempty" yaml:"pattern,omitempty"`
	EndDate    string           `json:"end_date,omitempty" yaml:"end_date,omitempty"`
	Count      int              `json:"count,omitempty" yaml:"count,omitempty"`
	DaysOfWeek []string         `json:"days_of_week,omitempty" yaml:"days_of_week,omitempty"`
	Interval   int              `json:"interval,omitempty" yaml:"interval,omitempty"`
}

// IsRecurring reports whether a pattern other than none is set.
func (r RecurringConfig) IsRecurring() bool {
	return r.Pattern != "" && r.Pattern != RecurNone
}

// Describe renders the rule for humans and browser prompts.
func (r RecurringConfig) Describe() string {
	if !r.IsRecurring() {
		return "One-time event"
	}
	var desc string
	switch r.Pattern {
	case RecurDaily:
		desc = "Daily"
	case RecurWeekly:
		desc = "Weekly"
	case RecurBiweekly:
		desc = "Every 2 weeks"
	case RecurMonthly:
		desc = "Monthly"
	case RecurCustom:
		desc = "Custom schedule"
	default:
		desc = "Recurring"
	}
	if r.Interval > 1 && r.Pattern != RecurBiweekly && r.Pattern != RecurCustom {
		unit := strings.TrimSuffix(string(r.Pattern), "ly")
		if r.Pattern == RecurDaily {
			unit = "day"
		}
		desc = fmt.Sprintf("Every %d %ss", r.Interval, unit)
	}
	if len(r.DaysOfWeek) > 0 {
		desc += " on " + strings.Join(r.DaysOfWeek, ", ")
	}
	switch {
	case r.EndDate != "":
		desc += " until " + r.EndDate
	case r.Count > 0:
		desc += fmt.Sprintf(" (%d occurrences)", r.Count)
	}
	return desc
}

// CoHost is an additional organiser invited by email.
type CoHost struct {
	Email string `json:"email" yaml:"email"`
	Name  string `json:"name,omitempty" yaml:"name,omitempty"`
	Role  string `json:"role,omitempty" yaml:"role,omitempty"`
}

// Integrations toggles third-party hooks offered by the platforms.
type Integrations struct {
	Zoom         bool `json:"zoom,omitempty" yaml:"zoom,omitempty"`
	GoogleMeet   bool `json:"google_meet,omitempty" yaml:"google_meet,omitempty"`
	CalendarSync bool `json:"calendar_sync,omitempty" yaml:"calendar_sync,omitempty"`
}

// Any reports whether at least one integration is requested.
func (i Integrations) Any() bool {
	return i.Zoom || i.GoogleMeet || i.CalendarSync
}

// Features groups the optional advanced settings.
type Features struct {
	Tickets      TicketConfig    `json:"tickets,omitzero" yaml:"tickets,omitempty"`
	Recurring    RecurringConfig `json:"recurring,omitzero" yaml:"recurring,omitempty"`
	CoHosts      []CoHost        `json:"cohosts,omitempty" yaml:"cohosts,omitempty"`
	Integrations Integrations    `json:"integrations,omitzero" yaml:"integrations,omitempty"`
	Visibility   Visibility      `json:"visibility,omitempty" yaml:"visibility,omitempty"`
	Tags         []string        `json:"tags,omitempty" yaml:"tags,omitempty"`
}

// Clone returns a deep copy.
func (f Features) Clone() Features {
	out := f
	out.Tickets.Tiers = slices.Clone(f.Tickets.Tiers)
	out.Recurring.DaysOfWeek = slices.Clone(f.Recurring.DaysOfWeek)
	out.CoHosts = slices.Clone(f.CoHosts)
	out.Tags = slices.Clone(f.Tags)
	return out
}
