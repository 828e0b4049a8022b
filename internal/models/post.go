package models

import "time"

// PostRecord is a single wall post scraped from a profile, group or bot wall.
// It is rebuilt on every scrape and never persisted.
type PostRecord struct {
	ID        string `validate:"required"`
	OriginRef string // set when the post is itself a reshare

	AuthorName       string
	AuthorLink       string
	OriginAuthorName string
	OriginAuthorLink string

	// PublishedAt is zero when unknown or unparseable.
	PublishedAt time.Time

	Likes    int `validate:"gte=0"`
	Reshares int `validate:"gte=0"`
	Views    int `validate:"gte=0"`

	Rating float64
}

// IsReshare reports whether the post points at an original post.
func (p PostRecord) IsReshare() bool {
	return p.OriginRef != ""
}

// Rating returns the engagement score (likes+reshares)/views*100,
// or 0 when there are no views.
func Rating(likes, reshares, views int) float64 {
	if views == 0 {
		return 0.0
	}
	return float64(likes+reshares) / float64(views) * 100
}

// ProfileStats holds the counters shown on the bot's own profile page,
// kept as displayed.
type ProfileStats struct {
	Friends          string
	IncomingRequests string
	UnreadMessages   string
}
