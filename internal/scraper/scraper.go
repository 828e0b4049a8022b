package scraper

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/pauljones0/skynet-bot/internal/models"
	"github.com/pauljones0/skynet-bot/internal/util"
	"golang.org/x/net/html"
)

// Parser turns wall markup into PostRecords. Parsing is best-effort: a
// missing field leaves a zero value and is logged, never returned.
type Parser struct {
	selectors SelectorConfig
	now       func() time.Time
	loc       *time.Location
}

func New(selectors SelectorConfig) *Parser {
	return &Parser{
		selectors: selectors,
		now:       time.Now,
		loc:       time.Local,
	}
}

// Document parses an HTML body. goquery only fails on reader errors, so an
// empty document is returned in that case.
func Document(body string) *goquery.Document {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		slog.Warn("Failed to parse HTML body", "error", err)
		return goquery.NewDocumentFromNode(&html.Node{Type: html.DocumentNode})
	}
	return doc
}

// ParseWallPost extracts a PostRecord from a single post element.
func (p *Parser) ParseWallPost(s *goquery.Selection) models.PostRecord {
	sel := p.selectors.Wall
	var post models.PostRecord
	var parseErrors []string

	// 1. Identity
	if id, exists := s.Attr("id"); exists {
		post.ID = strings.TrimSpace(id)
	} else {
		parseErrors = append(parseErrors, "post id attribute not found")
	}
	if origin, exists := s.Attr(sel.OriginAttr); exists {
		post.OriginRef = strings.TrimSpace(origin)
	}

	// 2. Author
	authorSelection := s.Find(sel.AuthorLink).First()
	authorFound := authorSelection.Length() > 0
	if authorFound {
		post.AuthorName = strings.TrimSpace(authorSelection.Text())
		post.AuthorLink, _ = authorSelection.Attr("href")
	} else {
		parseErrors = append(parseErrors, "author link not found")
	}

	// 3. Origin author, only present on reshares
	originSelection := s.Find(sel.OriginAuthor).First()
	if originSelection.Length() > 0 {
		post.OriginAuthorName = strings.TrimSpace(originSelection.Text())
		post.OriginAuthorLink, _ = originSelection.Attr("href")
	}

	// 4. Published date
	if published, err := p.postDate(s); err == nil {
		post.PublishedAt = published
	} else {
		parseErrors = append(parseErrors, err.Error())
	}

	// 5. Counters
	likes, likesFound := p.counter(s, sel.LikeCount)
	reshares, resharesFound := p.counter(s, sel.ReshareCount)
	views, viewsFound := p.counter(s, sel.ViewCount)
	post.Likes, post.Reshares, post.Views = likes, reshares, views
	if !likesFound {
		parseErrors = append(parseErrors, "like count not found")
	}
	if !resharesFound {
		parseErrors = append(parseErrors, "reshare count not found")
	}
	if !viewsFound {
		parseErrors = append(parseErrors, "view count not found")
	}
	if authorFound && likesFound && resharesFound && viewsFound {
		post.Rating = models.Rating(likes, reshares, views)
	}

	if len(parseErrors) > 0 {
		slog.Warn("Encountered parsing issues for post", "id", post.ID, "count", len(parseErrors), "issues", strings.Join(parseErrors, "; "))
	}
	return post
}

func (p *Parser) postDate(s *goquery.Selection) (time.Time, error) {
	dateSelection := s.Find(p.selectors.Wall.Date).First()
	if dateSelection.Length() == 0 {
		return time.Time{}, fmt.Errorf("post date not found")
	}
	text := strings.TrimSpace(dateSelection.Text())
	published, err := p.ParseDate(text)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse post date %q: %w", text, err)
	}
	return published, nil
}

func (p *Parser) counter(s *goquery.Selection, selector string) (int, bool) {
	countSelection := s.Find(selector).First()
	if countSelection.Length() == 0 {
		return 0, false
	}
	return util.ParseHumanNumber(countSelection.Text()), true
}

// WallPosts parses every post on a profile or bot wall.
func (p *Parser) WallPosts(doc *goquery.Document) []models.PostRecord {
	var posts []models.PostRecord
	doc.Find(p.selectors.Wall.Posts).Each(func(_ int, s *goquery.Selection) {
		posts = append(posts, p.ParseWallPost(s))
	})
	return posts
}

// LatestWallPost returns the first post on a wall.
func (p *Parser) LatestWallPost(doc *goquery.Document) (models.PostRecord, bool) {
	s := doc.Find(p.selectors.Wall.Posts).First()
	if s.Length() == 0 {
		return models.PostRecord{}, false
	}
	return p.ParseWallPost(s), true
}

// SourcePosts parses the original, non-promoted posts of a source wall.
// Reshares and ads are skipped.
func (p *Parser) SourcePosts(doc *goquery.Document) []models.PostRecord {
	sel := p.selectors.Wall
	var posts []models.PostRecord
	doc.Find(sel.SourcePosts).Each(func(_ int, s *goquery.Selection) {
		if s.Is(sel.CopyModifier) || s.Find(sel.AdsMarker).Length() > 0 {
			return
		}
		posts = append(posts, p.ParseWallPost(s))
	})
	return posts
}

// LastReshareTime returns when the wall owner last reshared something, or
// the zero time if there is no reshare or its date cannot be read.
func (p *Parser) LastReshareTime(doc *goquery.Document) time.Time {
	s := doc.Find(p.selectors.Wall.LastReshare).First()
	if s.Length() == 0 {
		return time.Time{}
	}
	published, err := p.postDate(s)
	if err != nil {
		slog.Warn("Failed to read last reshare date", "error", err)
		return time.Time{}
	}
	return published
}

// ProfileStats reads the friend, incoming request and unread message
// counters from the owner's profile page. Missing counters read as "0".
func (p *Parser) ProfileStats(doc *goquery.Document) models.ProfileStats {
	sel := p.selectors.Profile
	text := func(selector string) string {
		s := doc.Find(selector).First()
		if s.Length() == 0 {
			return "0"
		}
		if v := strings.TrimSpace(s.Text()); v != "" {
			return v
		}
		return "0"
	}
	return models.ProfileStats{
		Friends:          text(sel.FriendsCount),
		IncomingRequests: text(sel.IncomingRequests),
		UnreadMessages:   text(sel.UnreadMessages),
	}
}

// LoginTokens are the anti-forgery hidden inputs of the login form.
type LoginTokens struct {
	IPHash    string
	LoginHash string
}

// LoginForm returns the login form tokens. A page carrying them has no
// active session.
func (p *Parser) LoginForm(doc *goquery.Document) (LoginTokens, bool) {
	sel := p.selectors.Login
	ip, ipFound := doc.Find(sel.IPHashInput).First().Attr("value")
	lg, lgFound := doc.Find(sel.LoginHashInput).First().Attr("value")
	if !ipFound || !lgFound {
		return LoginTokens{}, false
	}
	return LoginTokens{IPHash: ip, LoginHash: lg}, true
}

// PageLanguage returns the lang attribute of the root element.
func (p *Parser) PageLanguage(doc *goquery.Document) string {
	lang, _ := doc.Find(p.selectors.Login.Language).First().Attr("lang")
	return strings.ToLower(strings.TrimSpace(lang))
}
