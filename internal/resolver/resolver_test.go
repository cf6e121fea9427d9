// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package resolver

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolveOrder(t *testing.T) {
	r := New()
	target := Target{
		Name:        "event title",
		CSSSelector: "input[name='title']",
		TextAnchor:  "Event Name",
		AriaLabel:   "Event title",
		Prompt:      "Click the event title input",
	}

	res := r.Resolve(target, "", `<input name="title" class="x">`)
	assert.True(t, res.Found)
	assert.Equal(t, MethodCSS, res.Method)
	assert.Greater(t, res.Confidence, 0.5)

	res = r.Resolve(target, "", "")
	assert.Equal(t, MethodCSS, res.Method)
	assert.Equal(t, 0.7, res.Confidence)
}

func TestResolveFallsThrough(t *testing.T) {
	r := New()

	res := r.Resolve(Target{Name: "date", TextAnchor: "Start Date", InputType: "date"}, "Pick a start date", "")
	assert.Equal(t, MethodTextAnchor, res.Method)
	assert.Equal(t, `input[type="date"]:has-text("Start Date")`, res.Selector)

	res = r.Resolve(Target{Name: "loc", AriaLabel: "Location"}, "", `<div aria-label="Location"></div>`)
	assert.Equal(t, MethodARIA, res.Method)
	assert.Equal(t, `[aria-label="Location"]`, res.Selector)

	res = r.Resolve(Target{Name: "desc", Placeholder: "Tell people"}, "", `<textarea placeholder="Tell people more">`)
	assert.Equal(t, MethodTextAnchor, res.Method)
	assert.Equal(t, 0.75, res.Confidence)

	res = r.Resolve(Target{Name: "img", Prompt: "Click the cover image"}, "", "")
	assert.Equal(t, MethodAI, res.Method)
	assert.Equal(t, "Click the cover image", res.Prompt)

	res = r.Resolve(Target{Name: "ghost"}, "", "")
	assert.False(t, res.Found)
	assert.Equal(t, MethodNone, res.Method)
}

func TestResolvedHint(t *testing.T) {
	assert.Empty(t, Resolved{Method: MethodNone}.Hint())
	assert.Equal(t, "The element was not found last time. Look for the element matching [aria-label=\"Location\"].",
		Resolved{Found: true, Method: MethodARIA, Selector: `[aria-label="Location"]`}.Hint())
	assert.Equal(t, "The element was not found last time. Click the cover image.",
		Resolved{Found: true, Method: MethodAI, Prompt: "Click the cover image."}.Hint())
}

func TestInstruction(t *testing.T) {
	got := Instruction(Target{Name: "title", NearText: "What's your event called?"}, ActionType, "AI Workshop")
	assert.Equal(t, "Find the title field. It should be near text that says 'What's your event called?'. Clear any existing text and type exactly: AI Workshop.", got)

	got = Instruction(Target{Prompt: "Click the Publish button.", PositionHint: "at the bottom right"}, ActionClick, "")
	assert.Equal(t, "Click the Publish button. It should be located at the bottom right. Click on it.", got)
}
