// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package adapter

import (
	"strings"
	"time"

	"github.com/Coffee-Code-Philly-Accelerator/CCP-Digital-Marketing/internal/resolver"
	"github.com/Coffee-Code-Philly-Accelerator/CCP-Digital-Marketing/internal/state"
)

// Meetup flags fast form interaction as automated traffic.
const meetupDelay = 2 * time.Second

func meetupProfile() profile {
	return profile{
		platform:  Meetup,
		name:      "Meetup",
		createURL: "https://www.meetup.com/create/",
		homeURL:   "https://www.meetup.com",
		loginURL:  "https://www.meetup.com/login/",

		baseDelay: meetupDelay,

		unsupported: map[Feature]string{
			FeatureIntegrations: "Meetup offers no integration settings on the create form",
		},

		targets: map[state.State]resolver.Target{
			state.FillTitle: {
				Name:        "event title",
				TextAnchor:  "Event Title",
				Placeholder: "Event title",
				InputType:   "text",
			},
			state.FillDate: {
				Name:       "date",
				TextAnchor: "Date",
				InputType:  "date",
			},
			state.FillTime: {
				Name:       "start time",
				TextAnchor: "Start time",
			},
			state.FillLocation: {
				Name:        "location",
				TextAnchor:  "Location",
				Placeholder: "Search for a venue",
			},
			state.FillDescription: {
				Name:       "description",
				TextAnchor: "Description",
				AriaRole:   "textbox",
			},
			state.UploadImage: {
				Name:       "featured photo",
				TextAnchor: "Add featured photo",
			},
			state.SetTickets: {
				Name:       "RSVP settings",
				TextAnchor: "RSVP",
				Prompt:     "Open the RSVP settings section",
			},
			state.AddCoHosts: {
				Name:       "event hosts",
				TextAnchor: "Add event host",
			},
			state.SetRecurring: {
				Name:       "repeat",
				TextAnchor: "Repeat",
				Prompt:     "Find the 'Repeat' or 'Recurring event' option near the date",
			},
			state.Submit: {
				Name:       "publish button",
				TextAnchor: "Publish",
				Prompt:     "Find the 'Publish' button at the bottom of the form",
			},
		},
		notes: map[state.State]string{
			state.FillDate:     "Use the date picker; do not type into it faster than one character at a time.",
			state.FillLocation: "The venue field autocompletes. Wait for suggestions and select the first matching venue.",
			state.SetTickets:   "Meetup has no paid tickets here. Only set the attendee (RSVP) limit and approval options.",
		},
		global: "Meetup is sensitive to automation. Pause about 2 seconds between every click and every typed field.",

		postSubmit: "If a confirmation dialog or share dialog appears, dismiss it with 'Done', 'Skip' or the X button. " +
			"Wait for the event page to fully load.",
		indicators: []string{"event details", "what's your event", "create event", "event title", "schedule your event", "event name"},

		successPattern: "meetup.com/*/events/* (excluding /create)",
		isSuccess: func(u string) bool {
			return strings.Contains(u, "meetup.com") &&
				strings.Contains(u, "/events/") &&
				!strings.Contains(u, "/create")
		},
	}
}
