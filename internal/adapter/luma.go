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

var lumaExcluded = []string{"/create", "/home", "/login", "/signin", "/signup"}

func lumaProfile() profile {
	return profile{
		platform:  Luma,
		name:      "Luma",
		createURL: "https://lu.ma/create",
		homeURL:   "https://lu.ma/home",
		loginURL:  "https://lu.ma/signin",

		baseDelay: 500 * time.Millisecond,
		delays: map[state.State]time.Duration{
			state.FillDate:     1500 * time.Millisecond,
			state.FillLocation: time.Second,
		},

		targets: map[state.State]resolver.Target{
			state.FillTitle: {
				Name:        "event title",
				CSSSelector: "input[name='title'], input[placeholder*='title' i]",
				TextAnchor:  "Event Title",
				Placeholder: "Event Title",
				NearText:    "What's your event called?",
			},
			state.FillDate: {
				Name:       "start date",
				TextAnchor: "Date",
				NearText:   "When",
				Prompt:     "Click on the date field near 'When' to open the date picker",
			},
			state.FillTime: {
				Name:       "start time",
				TextAnchor: "Start Time",
				NearText:   "When",
			},
			state.FillLocation: {
				Name:        "location",
				Placeholder: "Add Location",
				TextAnchor:  "Add Event Location",
				NearText:    "Where",
			},
			state.FillDescription: {
				Name:        "description",
				CSSSelector: ".ProseMirror, [contenteditable='true']",
				AriaRole:    "textbox",
				TextAnchor:  "Add Description",
			},
			state.UploadImage: {
				Name:       "cover image",
				TextAnchor: "Add Cover",
				Prompt:     "Click the cover image area at the top of the form",
			},
			state.SetTickets: {
				Name:       "tickets",
				TextAnchor: "Tickets",
				Prompt:     "Open the Tickets section of the event options",
			},
			state.AddCoHosts: {
				Name:       "add host",
				TextAnchor: "Add Host",
			},
			state.SetRecurring: {
				Name:       "recurring",
				TextAnchor: "Recurring",
				NearText:   "When",
			},
			state.SetIntegrations: {
				Name:       "integrations",
				TextAnchor: "Virtual Link",
				Prompt:     "Open the event options and find the online meeting or calendar settings",
			},
			state.Submit: {
				Name:       "publish button",
				TextAnchor: "Create Event",
				Prompt:     "Find the 'Create Event' or 'Publish' button at the bottom of the form",
			},
		},
		notes: map[state.State]string{
			state.FillDate: "The date picker animates open. Wait 1.5 seconds after it opens before choosing the date, " +
				"then click outside the picker to close it.",
			state.FillLocation: "Wait 1 second for location suggestions and pick the first suggestion that matches.",
			state.FillDescription: "The description is a rich-text editor. Click inside it before typing.",
		},

		postSubmit: "If a share or invite dialog appears, close it with the X button, 'Skip' or 'Maybe later'. " +
			"Then wait for the event page to finish loading.",
		indicators: []string{"event title", "create event", "what's your event", "add event", "event name"},

		successPattern: "lu.ma/* (excluding /create, /home, /login, /signin, /signup)",
		isSuccess: func(u string) bool {
			if !strings.Contains(u, "lu.ma/") {
				return false
			}
			for _, ex := range lumaExcluded {
				if strings.Contains(u, ex) {
					return false
				}
			}
			return true
		},
	}
}
