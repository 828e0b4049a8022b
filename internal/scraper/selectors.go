package scraper

import (
	"encoding/json"
	"fmt"
	"os"
)

type SelectorConfig struct {
	Wall    WallSelectors    `json:"wall"`
	Profile ProfileSelectors `json:"profile"`
	Login   LoginSelectors   `json:"login"`
}

type WallSelectors struct {
	Posts        string `json:"posts"`         // e.g., ".wall_posts .post.own"
	SourcePosts  string `json:"source_posts"`  // e.g., ".post.own"
	LastReshare  string `json:"last_reshare"`  // e.g., ".post.own.post_copy"
	CopyModifier string `json:"copy_modifier"` // e.g., ".post_copy"
	AdsMarker    string `json:"ads_marker"`    // e.g., ".wall_marked_as_ads"
	OriginAttr   string `json:"origin_attr"`   // e.g., "data-copy"
	AuthorLink   string `json:"author_link"`   // e.g., ".post_author > a.author"
	OriginAuthor string `json:"origin_author"` // e.g., ".copy_post_author > a.copy_author"
	Date         string `json:"date"`          // e.g., ".post_header .post_date"
	LikeCount    string `json:"like_count"`    // e.g., ".post_like_count._count"
	ReshareCount string `json:"reshare_count"` // e.g., ".post_share_count._count"
	ViewCount    string `json:"view_count"`    // e.g., ".post_views_count._count"
}

type ProfileSelectors struct {
	FriendsCount     string `json:"friends_count"`
	IncomingRequests string `json:"incoming_requests"`
	UnreadMessages   string `json:"unread_messages"`
}

type LoginSelectors struct {
	IPHashInput    string `json:"ip_hash_input"`
	LoginHashInput string `json:"login_hash_input"`
	Language       string `json:"language"` // e.g., "html"
}

// LoadSelectors loads the selector configuration from the specified JSON file.
func LoadSelectors(path string) (SelectorConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return SelectorConfig{}, fmt.Errorf("failed to read selector config file: %w", err)
	}

	return LoadSelectorsFromBytes(data)
}

// LoadSelectorsFromBytes parses selector configuration from raw JSON bytes.
// This supports loading from embedded data via go:embed.
func LoadSelectorsFromBytes(data []byte) (SelectorConfig, error) {
	var config SelectorConfig
	if err := json.Unmarshal(data, &config); err != nil {
		return SelectorConfig{}, fmt.Errorf("failed to parse selector config JSON: %w", err)
	}
	if config.Wall.Posts == "" || config.Wall.Date == "" {
		return SelectorConfig{}, fmt.Errorf("selector config is missing wall selectors")
	}

	return config, nil
}

// DefaultSelectors returns the fallback configuration if no JSON file is loaded.
// The embedded selectors.json should be preferred.
func DefaultSelectors() SelectorConfig {
	return SelectorConfig{
		Wall: WallSelectors{
			Posts:        ".wall_posts .post.own",
			SourcePosts:  ".post.own",
			LastReshare:  ".post.own.post_copy",
			CopyModifier: ".post_copy",
			AdsMarker:    ".wall_marked_as_ads",
			OriginAttr:   "data-copy",
			AuthorLink:   ".post_author > a.author",
			OriginAuthor: ".copy_post_author > a.copy_author",
			Date:         ".post_header .post_date",
			LikeCount:    ".post_like_count._count",
			ReshareCount: ".post_share_count._count",
			ViewCount:    ".post_views_count._count",
		},
		Profile: ProfileSelectors{
			FriendsCount:     "#profile_friends .header_count",
			IncomingRequests: "#l_fr .left_count",
			UnreadMessages:   "#l_msg .left_count",
		},
		Login: LoginSelectors{
			IPHashInput:    `input[name="ip_h"]`,
			LoginHashInput: `input[name="lg_h"]`,
			Language:       "html",
		},
	}
}
