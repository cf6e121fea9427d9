// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package social promotes a created event on social platforms. Posting
// itself goes through a Publisher; this package formats, limits and fans
// out.
package social

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

// Platform is a social network.
type Platform string

const (
	Twitter   Platform = "twitter"
	LinkedIn  Platform = "linkedin"
	Instagram Platform = "instagram"
	Facebook  Platform = "facebook"
	Discord   Platform = "discord"
)

// All lists the platforms in announcement order.
var All = []Platform{Twitter, LinkedIn, Instagram, Facebook, Discord}

// ParsePlatform validates a platform name (case-insensitive).
func ParsePlatform(v string) (Platform, error) {
	p := Platform(strings.ToLower(strings.TrimSpace(v)))
	for _, known := range All {
		if p == known {
			return p, nil
		}
	}
	return "", fmt.Errorf("social: unknown platform %q", v)
}

// Status of one post.
type Status string

const (
	StatusSuccess Status = "SUCCESS"
	StatusFailed  Status = "FAILED"
	StatusSkipped Status = "SKIPPED"
)

// Handoff is what the event workflow passes to promotion.
type Handoff struct {
	EventURL    string `json:"event_url"`
	ImageURL    string `json:"image_url"`
	Title       string `json:"event_title"`
	Date        string `json:"event_date"`
	Time        string `json:"event_time"`
	Location    string `json:"event_location"`
	Description string `json:"event_description"`
}

// Post is one formatted message handed to a Publisher.
type Post struct {
	Platform Platform `json:"platform"`
	Content  string   `json:"content"`
	ImageURL string   `json:"image_url,omitempty"`
	EventURL string   `json:"event_url,omitempty"`

	// Target is the Facebook page id or Discord channel id.
	Target string `json:"target,omitempty"`
}

// Receipt identifies a published post.
type Receipt struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// Publisher delivers posts to the social networks.
type Publisher interface {
	Publish(ctx context.Context, p Post) (Receipt, error)
}

// Result is the outcome of one platform.
type Result struct {
	Platform Platform `json:"platform"`
	Status   Status   `json:"status"`
	PostID   string   `json:"post_id,omitempty"`
	PostURL  string   `json:"post_url,omitempty"`
	Message  string   `json:"message,omitempty"`
	Error    string   `json:"error,omitempty"`
}

// ErrMissingRequirement marks a post that cannot be built, such as an
// Instagram post without an image.
var ErrMissingRequirement = errors.New("social: missing requirement")

// Truncate shortens content to limit runes minus reserve, cutting at a word
// boundary when one exists in the second half, and appends "...".
func Truncate(content string, limit, reserve int) string {
	max := limit - reserve
	if max <= 0 {
		return ""
	}
	if utf8.RuneCountInString(content) <= max {
		return content
	}
	if max <= 3 {
		return string([]rune(content)[:max])
	}
	cut := []rune(content)[:max-3]
	s := string(cut)
	if i := strings.LastIndex(s, " "); i >= 0 && utf8.RuneCountInString(s[:i]) > max/2 {
		return strings.TrimRight(s[:i], " ") + "..."
	}
	return s + "..."
}
