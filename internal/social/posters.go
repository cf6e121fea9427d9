// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package social

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// Twitter shortens every link to 23 characters.
const tcoLength = 23

// Limit is the character limit of p.
func Limit(p Platform) int {
	switch p {
	case Twitter:
		return 280
	case LinkedIn:
		return 3000
	case Instagram:
		return 2200
	case Facebook:
		return 63206
	case Discord:
		return 2000
	}
	return 2000
}

// Targets carries the per-platform destinations.
type Targets struct {
	FacebookPageID   string `yaml:"facebook_page_id" json:"facebook_page_id,omitempty"`
	DiscordChannelID string `yaml:"discord_channel_id" json:"discord_channel_id,omitempty"`
}

// Format builds the post for p. It returns ErrMissingRequirement when the
// platform cannot be served.
func Format(p Platform, text string, h Handoff, t Targets) (Post, error) {
	post := Post{Platform: p, ImageURL: h.ImageURL, EventURL: h.EventURL}
	limit := Limit(p)

	switch p {
	case Twitter:
		if h.EventURL != "" {
			post.Content = Truncate(text, limit, tcoLength+2) + "\n\n" + h.EventURL
		} else {
			post.Content = Truncate(text, limit, 0)
		}

	case LinkedIn:
		post.Content = withSuffix(text, rsvp("RSVP: ", h.EventURL), limit)

	case Instagram:
		if h.ImageURL == "" {
			return Post{}, fmt.Errorf("%w: instagram needs an image", ErrMissingRequirement)
		}
		suffix := ""
		if h.EventURL != "" {
			suffix = "\n\nLink in bio: " + h.EventURL
		}
		post.Content = withSuffix(text, suffix, limit)

	case Facebook:
		if t.FacebookPageID == "" {
			return Post{}, fmt.Errorf("%w: no facebook page id", ErrMissingRequirement)
		}
		post.Target = t.FacebookPageID
		post.Content = withSuffix(text, rsvp("RSVP: ", h.EventURL), limit)

	case Discord:
		if t.DiscordChannelID == "" {
			return Post{}, fmt.Errorf("%w: no discord channel id", ErrMissingRequirement)
		}
		post.Target = t.DiscordChannelID
		suffix := rsvp("**RSVP:** ", h.EventURL)
		if h.ImageURL != "" {
			suffix += "\n\n" + h.ImageURL
		}
		post.Content = withSuffix(text, suffix, limit)

	default:
		return Post{}, fmt.Errorf("social: unknown platform %q", p)
	}
	return post, nil
}

// withSuffix keeps suffix intact and truncates the body to make room.
func withSuffix(body, suffix string, limit int) string {
	return Truncate(body, limit, utf8.RuneCountInString(suffix)) + suffix
}

func rsvp(label, url string) string {
	if url == "" {
		return ""
	}
	return "\n\n" + label + url
}

// FallbackCopy is the template text used when no copy was supplied.
func FallbackCopy(p Platform, h Handoff) string {
	base := fmt.Sprintf("%s\n\n%s at %s\n%s", h.Title, h.Date, h.Time, h.Location)
	if d := strings.TrimSpace(h.Description); d != "" {
		base += "\n\n" + d
	}
	switch p {
	case Twitter:
		return fmt.Sprintf("%s: %s at %s, %s", h.Title, h.Date, h.Time, h.Location)
	case Discord:
		return "**" + h.Title + "**\n\n" + base
	}
	return base
}
