package scraper

import (
	"regexp"
	"strings"

	"github.com/pauljones0/skynet-bot/internal/util"
)

// Markers found in AJAX responses of the platform's Russian UI.
const (
	MarkerSubscribed  = "Вы подписались"
	MarkerFriendAdded = "у Вас в друзьях"
	MarkerPublished   = "Запись отправлена"
	MarkerCaptcha     = "<!>ru"
)

var (
	languageHashRegex = regexp.MustCompile(`lang_id: 0, hash: '([^']+)'}`)
	landingIDRegex    = regexp.MustCompile(`,\n\s+id: ([0-9]+)`)
	loginUIDRegex     = regexp.MustCompile(`"uid":"([0-9]+)"`)
	shareHashRegex    = regexp.MustCompile(`shHash: '([^']+)'`)
	composeHashRegex  = regexp.MustCompile(`\\n\s*hash: '([^']+)',\\n`)
	captchaKeyRegex   = regexp.MustCompile(`<!>2<!>([^<]+)<!>2<!>ru`)
	hasMoreRegex      = regexp.MustCompile(`"has_more":true`)
	offsetRegex       = regexp.MustCompile(`"offset":([0-9]+)`)

	searchButtonRegex = regexp.MustCompile(`<button id="search_sub([0-9]+)"[^>]*this, [0-9]+, '([^']*)', true([^>]*)>Добавить в друзья</button>`)
	acceptButtonRegex = regexp.MustCompile(`<button[^>]*accept_request_[0-9]+[^>]*Friends\.acceptRequest\(([0-9]+), '([^']*)', this\)">Добавить в друзья</button>`)
)

func firstGroup(re *regexp.Regexp, body string) (string, bool) {
	m := re.FindStringSubmatch(body)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// LanguageHash returns the token required by the locale-switch request.
func LanguageHash(body string) (string, bool) { return firstGroup(languageHashRegex, body) }

// LandingAccountID returns the account id embedded in the landing page of
// an active session.
func LandingAccountID(body string) (string, bool) { return firstGroup(landingIDRegex, body) }

// LoginAccountID returns the account id embedded in the login confirmation page.
func LoginAccountID(body string) (string, bool) { return firstGroup(loginUIDRegex, body) }

// ShareHash returns the token issued by the reshare staging step.
func ShareHash(body string) (string, bool) { return firstGroup(shareHashRegex, body) }

// ComposeHash returns the message-compose token embedded in a profile page.
func ComposeHash(body string) (string, bool) { return firstGroup(composeHashRegex, body) }

// CaptchaKey returns the challenge key of an AJAX response that demands a
// CAPTCHA. ok is false when the response carries no challenge.
func CaptchaKey(body string) (key string, ok bool) {
	if !strings.Contains(body, MarkerCaptcha) {
		return "", false
	}
	return firstGroup(captchaKeyRegex, body)
}

// FriendCandidate is an "add friend" control found on a search page.
type FriendCandidate struct {
	ID      string
	Hash    string
	Visible bool
}

// SearchPage is one page of people-search results.
type SearchPage struct {
	Candidates []FriendCandidate
	HasMore    bool
	NextOffset int
}

// Visible returns the candidates whose control is not hidden.
func (p SearchPage) Visible() []FriendCandidate {
	var visible []FriendCandidate
	for _, c := range p.Candidates {
		if c.Visible {
			visible = append(visible, c)
		}
	}
	return visible
}

// FriendSearchPage parses a partial HTML search response.
func FriendSearchPage(body string) SearchPage {
	var page SearchPage
	for _, m := range searchButtonRegex.FindAllStringSubmatch(body, -1) {
		page.Candidates = append(page.Candidates, FriendCandidate{
			ID:      m[1],
			Hash:    m[2],
			Visible: !strings.Contains(m[3], "display: none;"),
		})
	}
	if hasMoreRegex.MatchString(body) {
		if offset, ok := firstGroup(offsetRegex, body); ok {
			page.HasMore = true
			page.NextOffset = util.SafeAtoi(offset)
		}
	}
	return page
}

// IncomingRequests returns the pending friend requests that can be accepted.
func IncomingRequests(body string) []FriendCandidate {
	var requests []FriendCandidate
	for _, m := range acceptButtonRegex.FindAllStringSubmatch(body, -1) {
		requests = append(requests, FriendCandidate{ID: m[1], Hash: m[2], Visible: true})
	}
	return requests
}
