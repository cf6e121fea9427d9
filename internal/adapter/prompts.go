// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package adapter

import (
	"fmt"
	"strings"

	"github.com/Coffee-Code-Philly-Accelerator/CCP-Digital-Marketing/internal/event"
	"github.com/Coffee-Code-Philly-Accelerator/CCP-Digital-Marketing/internal/resolver"
	"github.com/Coffee-Code-Philly-Accelerator/CCP-Digital-Marketing/internal/state"
)

var markerRules = []string{
	"If a login or sign-in page is shown instead of the expected page, stop and reply " + MarkerAuthRequired + ".",
	"If the page asks for a verification code or two-factor confirmation, stop and reply " + MarkerTwoFactor + ".",
	"If the element cannot be found after looking carefully, reply " + MarkerNotFound + " and name the element.",
	"When the step is complete, reply " + MarkerStepDone + " and include the current page URL.",
}

// TaskPrompt is the browser task for a single step. It returns "" for
// steps that need no browser work (INIT, terminal states).
func (a *Adapter) TaskPrompt(s state.State, ev event.Data) string {
	body := a.step(s, ev)
	if body == "" {
		return ""
	}
	var b strings.Builder
	if a.p.global != "" {
		b.WriteString(a.p.global)
		b.WriteString("\n\n")
	}
	b.WriteString(body)
	if s != state.CheckDuplicate {
		b.WriteString("\n\n")
		b.WriteString(strings.Join(markerRules, "\n"))
	}
	return b.String()
}

func (a *Adapter) step(s state.State, ev event.Data) string {
	switch s {
	case state.CheckDuplicate:
		return fmt.Sprintf("Go to %s and look at the upcoming events you host. "+
			"If an event titled '%s' on %s already exists, reply %s followed by its URL. "+
			"Otherwise reply %s. Do not create or edit anything.",
			a.HomeURL(), ev.Title, ev.Date, MarkerDuplicate, MarkerNoDuplicate)

	case state.Navigate:
		return fmt.Sprintf("Navigate to %s and wait for the page to fully load. "+
			"Confirm that the %s event creation form is visible.", a.CreateURL(), a.p.name)

	case state.AuthCheck:
		return "Do not click or type anything. Report the visible text of the current page " +
			"and the current page URL."

	case state.FillTitle:
		return a.fill(s, ev.Title)
	case state.FillDate:
		return a.fill(s, ev.Date)
	case state.FillTime:
		return a.fill(s, ev.Time)
	case state.FillLocation:
		return a.fill(s, ev.Location)
	case state.FillDescription:
		return a.fill(s, ev.Description)

	case state.UploadImage:
		return a.withNote(s, resolver.Instruction(a.p.targets[s], resolver.ActionUpload, ev.ImageURL)+
			" Wait until the image preview appears.")
	case state.SetTickets:
		return a.withNote(s, a.ticketsStep(ev.Features.Tickets))
	case state.AddCoHosts:
		return a.withNote(s, a.coHostStep(ev.Features.CoHosts))
	case state.SetRecurring:
		return a.withNote(s, resolver.Instruction(a.p.targets[s], resolver.ActionClick, "")+
			" Configure the repeat rule: "+ev.Features.Recurring.Describe()+".")
	case state.SetIntegrations:
		return a.withNote(s, a.integrationsStep(ev.Features.Integrations))

	case state.VerifyForm:
		return fmt.Sprintf("Without submitting, scroll through the form and check that it shows "+
			"title '%s', date '%s', time '%s' and location '%s', and that no field shows an error. "+
			"If something is missing, reply %s and name the field.",
			ev.Title, ev.Date, ev.Time, ev.Location, MarkerNotFound)

	case state.Submit:
		return resolver.Instruction(a.p.targets[s], resolver.ActionClick, "") +
			" Click it exactly once. Do not click it again even if the page is slow to respond."

	case state.PostSubmit:
		return a.p.postSubmit

	case state.VerifySuccess:
		return "Wait for the page to settle. Reply with the current page URL on its own line " +
			"prefixed with " + MarkerEventURL + " and the event title shown on the page."
	}
	return ""
}

func (a *Adapter) fill(s state.State, value string) string {
	return a.withNote(s, resolver.Instruction(a.p.targets[s], resolver.ActionType, value))
}

func (a *Adapter) withNote(s state.State, text string) string {
	if n := a.p.notes[s]; n != "" {
		return text + " " + n
	}
	return text
}

func (a *Adapter) ticketsStep(t event.TicketConfig) string {
	target := a.p.targets[state.SetTickets]
	parts := []string{resolver.Instruction(target, resolver.ActionClick, "")}
	if a.p.platform != Meetup {
		switch {
		case !t.IsFree() && len(t.Tiers) > 0:
			for _, tier := range t.Tiers {
				currency := tier.Currency
				if currency == "" {
					currency = "USD"
				}
				line := fmt.Sprintf("Add a ticket named '%s' priced %.2f %s", tier.Name, tier.Price, currency)
				if tier.Quantity > 0 {
					line += fmt.Sprintf(" limited to %d", tier.Quantity)
				}
				parts = append(parts, line+".")
			}
		case t.Type != "":
			parts = append(parts, fmt.Sprintf("Set the registration type to %s.", t.Type))
		}
	}
	if t.Capacity > 0 {
		parts = append(parts, fmt.Sprintf("Set the attendee limit to %d.", t.Capacity))
	}
	if t.RequireApproval {
		parts = append(parts, "Turn on approval for new registrations.")
	}
	if t.Waitlist {
		parts = append(parts, "Enable the waitlist.")
	}
	return strings.Join(parts, " ")
}

func (a *Adapter) coHostStep(hosts []event.CoHost) string {
	target := a.p.targets[state.AddCoHosts]
	parts := []string{resolver.Instruction(target, resolver.ActionClick, "")}
	for _, h := range hosts {
		line := "Invite " + h.Email
		if h.Name != "" {
			line += " (" + h.Name + ")"
		}
		parts = append(parts, line+" as a co-host.")
	}
	return strings.Join(parts, " ")
}

func (a *Adapter) integrationsStep(i event.Integrations) string {
	target := a.p.targets[state.SetIntegrations]
	parts := []string{resolver.Instruction(target, resolver.ActionClick, "")}
	if i.Zoom {
		parts = append(parts, "Attach a Zoom meeting.")
	}
	if i.GoogleMeet {
		parts = append(parts, "Attach a Google Meet link.")
	}
	if i.CalendarSync {
		parts = append(parts, "Enable calendar sync.")
	}
	return strings.Join(parts, " ")
}

// Compose joins the steps of plan into one numbered browser task, used when
// a whole run is delegated to a single long-running agent task.
func Compose(a *Adapter, plan []state.State, ev event.Data) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Create a new event on %s.\n", a.p.name)
	if a.p.global != "" {
		b.WriteString(a.p.global)
		b.WriteString("\n")
	}
	b.WriteString("\n")

	n := 0
	for _, s := range plan {
		var text string
		switch s {
		case state.Init, state.AuthCheck:
			continue
		case state.CheckDuplicate:
			text = a.step(s, ev) + " If you replied " + MarkerDuplicate + ", stop here."
		default:
			text = a.step(s, ev)
		}
		if text == "" {
			continue
		}
		n++
		fmt.Fprintf(&b, "STEP %d (%s): %s\n", n, s, text)
	}

	b.WriteString("\n")
	b.WriteString(markerRules[0] + "\n")
	b.WriteString(markerRules[1] + "\n")
	b.WriteString("At the end, reply with the final page URL prefixed with " + MarkerEventURL)
	return b.String()
}
