// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package event

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"

	pnet "github.com/Coffee-Code-Philly-Accelerator/CCP-Digital-Marketing/internal/platform/net"
)

var injectionMarkers = regexp.MustCompile(`(?i)\[/?INST\]|<</?SYS>>|<\|(im_start|im_end|system|user|assistant)\|>`)

var delimiterReplacer = strings.NewReplacer(
	"```", "'''",
	"---", "___",
)

// Sanitize returns a copy of d with every free-text field cleaned and
// length-limited and every URL validated.
func Sanitize(d Data) Data {
	out := d.Clone()
	out.Title = SanitizeText(d.Title, MaxTitleLen)
	out.Date = SanitizeText(d.Date, MaxDateLen)
	out.Time = SanitizeText(d.Time, MaxTimeLen)
	out.Location = SanitizeText(d.Location, MaxLocationLen)
	out.Description = SanitizeText(d.Description, MaxDescriptionLen)
	out.ImageURL = SanitizeURL(d.ImageURL)
	for k, v := range out.PlatformDescriptions {
		out.PlatformDescriptions[k] = SanitizeText(v, MaxDescriptionLen)
	}
	for i, c := range out.Features.CoHosts {
		out.Features.CoHosts[i].Name = SanitizeText(c.Name, MaxTitleLen)
		out.Features.CoHosts[i].Email = strings.TrimSpace(c.Email)
	}
	return out
}

// SanitizeText strips control characters (keeping newline and tab), defuses
// prompt delimiters and instruction markers, normalizes apostrophes to
// U+2019 and truncates to maxLen runes.
func SanitizeText(s string, maxLen int) string {
	if s == "" {
		return ""
	}
	s = norm.NFC.String(s)
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' {
			return r
		}
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, s)
	s = delimiterReplacer.Replace(s)
	s = injectionMarkers.ReplaceAllString(s, "")
	s = NormalizeApostrophes(s)
	s = strings.TrimSpace(s)
	if maxLen > 0 && utf8.RuneCountInString(s) > maxLen {
		s = string([]rune(s)[:maxLen])
	}
	return s
}

// NormalizeApostrophes replaces ASCII apostrophes with the typographic
// right single quote so values survive quoting in downstream task strings.
func NormalizeApostrophes(s string) string {
	return strings.ReplaceAll(s, "'", "’")
}

// SanitizeURL returns the trimmed u when it is an absolute http(s) URL
// with a host and no credentials or fragment, otherwise "".
func SanitizeURL(u string) string {
	u = strings.TrimSpace(u)
	if _, ok := pnet.ParseHTTPURL(u); !ok {
		return ""
	}
	return u
}
