// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package resolver turns an abstract form target ("the event title field")
// into a concrete instruction for the browser agent.
package resolver

import (
	"fmt"
	"regexp"
	"strings"
)

// Method names the strategy that resolved a target.
type Method string

const (
	MethodCSS        Method = "css_selector"
	MethodTextAnchor Method = "text_anchor"
	MethodARIA       Method = "aria"
	MethodAI         Method = "ai_assisted"
	MethodNone       Method = "none"
)

// Action is what the agent should do with a resolved element.
type Action string

const (
	ActionClick  Action = "click"
	ActionType   Action = "type"
	ActionSelect Action = "select"
	ActionUpload Action = "upload"
)

// Target describes one form element with several ways to find it.
// Strategies are tried in the order CSS, text anchor, ARIA, placeholder, AI.
type Target struct {
	Name         string
	CSSSelector  string
	TextAnchor   string
	AriaLabel    string
	AriaRole     string
	Placeholder  string
	InputType    string
	Prompt       string
	NearText     string
	PositionHint string
}

// Resolved is the outcome of Resolve.
type Resolved struct {
	Found      bool
	Method     Method
	Selector   string
	Confidence float64
	Prompt     string
}

// Hint phrases r as a follow-up for an agent that missed the element, or
// "" when nothing was resolved.
func (r Resolved) Hint() string {
	switch {
	case !r.Found:
		return ""
	case r.Selector == "":
		return "The element was not found last time. " + strings.TrimSuffix(r.Prompt, ".") + "."
	default:
		return "The element was not found last time. Look for the element matching " + r.Selector + "."
	}
}

type strategy func(t Target, content, html string) Resolved

// Resolver tries each strategy until one finds the target.
type Resolver struct {
	strategies []strategy
}

// New returns a resolver with the default strategy order.
func New() *Resolver {
	return &Resolver{strategies: []strategy{
		byCSS,
		byTextAnchor,
		byARIA,
		byPlaceholder,
		byAI,
	}}
}

// Resolve finds target in the page. content is the page text (markdown),
// html the optional raw markup.
func (r *Resolver) Resolve(t Target, content, html string) Resolved {
	for _, s := range r.strategies {
		if res := s(t, content, html); res.Found {
			return res
		}
	}
	return Resolved{Method: MethodNone}
}

var selectorWords = regexp.MustCompile(`[\w-]+`)

func byCSS(t Target, _ string, html string) Resolved {
	if t.CSSSelector == "" {
		return Resolved{}
	}
	if html != "" {
		parts := selectorWords.FindAllString(t.CSSSelector, -1)
		hits := 0
		for _, p := range parts {
			if strings.Contains(html, p) {
				hits++
			}
		}
		if len(parts) > 0 {
			confidence := float64(hits) / float64(len(parts))
			if confidence > 0.5 {
				return Resolved{Found: true, Method: MethodCSS, Selector: t.CSSSelector, Confidence: confidence}
			}
		}
	}
	// Without markup the selector is taken on trust.
	return Resolved{Found: true, Method: MethodCSS, Selector: t.CSSSelector, Confidence: 0.7}
}

func byTextAnchor(t Target, content, _ string) Resolved {
	if t.TextAnchor == "" || !strings.Contains(strings.ToLower(content), strings.ToLower(t.TextAnchor)) {
		return Resolved{}
	}
	selector := fmt.Sprintf(`:has-text(%q)`, t.TextAnchor)
	if t.InputType != "" {
		selector = fmt.Sprintf(`input[type=%q]%s`, t.InputType, selector)
	}
	return Resolved{Found: true, Method: MethodTextAnchor, Selector: selector, Confidence: 0.6}
}

func byARIA(t Target, _ string, html string) Resolved {
	if html == "" || (t.AriaLabel == "" && t.AriaRole == "") {
		return Resolved{}
	}
	lower := strings.ToLower(html)
	if t.AriaLabel != "" && strings.Contains(lower, strings.ToLower(fmt.Sprintf(`aria-label=%q`, t.AriaLabel))) {
		return Resolved{Found: true, Method: MethodARIA, Selector: fmt.Sprintf(`[aria-label=%q]`, t.AriaLabel), Confidence: 0.8}
	}
	if t.AriaRole != "" && strings.Contains(lower, strings.ToLower(fmt.Sprintf(`role=%q`, t.AriaRole))) {
		selector := fmt.Sprintf(`[role=%q]`, t.AriaRole)
		if t.AriaLabel != "" {
			selector += fmt.Sprintf(`[aria-label=%q]`, t.AriaLabel)
		}
		return Resolved{Found: true, Method: MethodARIA, Selector: selector, Confidence: 0.7}
	}
	return Resolved{}
}

func byPlaceholder(t Target, _ string, html string) Resolved {
	if t.Placeholder == "" || html == "" || !strings.Contains(strings.ToLower(html), strings.ToLower(t.Placeholder)) {
		return Resolved{}
	}
	return Resolved{
		Found:      true,
		Method:     MethodTextAnchor,
		Selector:   fmt.Sprintf(`input[placeholder*=%q]`, t.Placeholder),
		Confidence: 0.75,
	}
}

func byAI(t Target, _, _ string) Resolved {
	if t.Prompt == "" {
		return Resolved{}
	}
	return Resolved{Found: true, Method: MethodAI, Confidence: 0.5, Prompt: t.Prompt}
}

// Instruction builds the natural-language sentence the browser agent gets
// for acting on t.
func Instruction(t Target, action Action, value string) string {
	var parts []string
	if t.Prompt != "" {
		parts = append(parts, strings.TrimSuffix(t.Prompt, "."))
	} else {
		parts = append(parts, "Find the "+t.Name+" field")
	}
	if t.NearText != "" {
		parts = append(parts, fmt.Sprintf("It should be near text that says '%s'", t.NearText))
	}
	if t.PositionHint != "" {
		parts = append(parts, "It should be located "+t.PositionHint)
	}
	switch action {
	case ActionClick:
		parts = append(parts, "Click on it")
	case ActionType:
		if value != "" {
			parts = append(parts, "Clear any existing text and type exactly: "+value)
		}
	case ActionSelect:
		if value != "" {
			parts = append(parts, "Select the option: "+value)
		}
	case ActionUpload:
		if value != "" {
			parts = append(parts, "Upload the image from this URL: "+value)
		}
	}
	return strings.Join(parts, ". ") + "."
}
