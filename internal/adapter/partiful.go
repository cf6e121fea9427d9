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

func partifulProfile() profile {
	return profile{
		platform:  Partiful,
		name:      "Partiful",
		createURL: "https://partiful.com/create",
		homeURL:   "https://partiful.com/home",
		loginURL:  "https://partiful.com/login",

		baseDelay: 500 * time.Millisecond,
		delays: map[state.State]time.Duration{
			state.FillLocation: time.Second,
		},

		unsupported: map[Feature]string{
			FeatureRecurring: "Partiful has no recurring events",
		},

		targets: map[state.State]resolver.Target{
			state.FillTitle: {
				Name:        "event title",
				TextAnchor:  "Untitled Event",
				Placeholder: "Untitled Event",
				Prompt:      "Click on the large 'Untitled Event' heading at the top of the page",
			},
			state.FillDate: {
				Name:       "date",
				TextAnchor: "Date",
				Prompt:     "Click on the date section to open the date picker",
			},
			state.FillTime: {
				Name:       "time",
				TextAnchor: "Time",
			},
			state.FillLocation: {
				Name:        "location",
				TextAnchor:  "Location",
				Placeholder: "Add location",
			},
			state.FillDescription: {
				Name:       "description",
				TextAnchor: "Description",
				Prompt:     "Find the description or 'Add a description' area below the event details",
			},
			state.UploadImage: {
				Name:       "cover",
				TextAnchor: "Add cover",
			},
			state.SetTickets: {
				Name:       "tickets",
				TextAnchor: "Tickets",
			},
			state.AddCoHosts: {
				Name:       "co-hosts",
				TextAnchor: "Add host",
			},
			state.SetIntegrations: {
				Name:       "privacy and integrations",
				TextAnchor: "Private",
				Prompt:     "Open the event settings panel",
			},
			state.Submit: {
				Name:       "save button",
				TextAnchor: "Create",
				Prompt:     "Find the 'Save' or 'Create' button that publishes the event",
			},
		},
		notes: map[state.State]string{
			state.FillLocation: "Wait 1 second for location suggestions and select the first match.",
		},

		postSubmit: "A share or invite modal usually appears after creation. Close it with the X button, " +
			"'Skip', 'Not now' or 'Done', then wait until the event page URL contains /e/.",
		indicators: []string{"untitled event", "event title", "create party", "create event", "what's the occasion", "party name"},

		successPattern: "partiful.com/e/*",
		isSuccess: func(u string) bool {
			return strings.Contains(u, "partiful.com") && strings.Contains(u, "/e/")
		},

		// The share modal sometimes reappears once.
		attempts: map[state.State]int{
			state.PostSubmit: 2,
		},
	}
}
