package actions

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/pauljones0/skynet-bot/internal/config"
	"github.com/pauljones0/skynet-bot/internal/notifier"
	"github.com/pauljones0/skynet-bot/internal/scraper"
	"github.com/pauljones0/skynet-bot/internal/session"
)

// --- Mock implementations ---

type postCall struct {
	target string
	form   url.Values
}

type mockSession struct {
	authOK    bool
	authErr   error
	pages     map[string]string
	status    map[string]int
	getErrs   map[string]error
	onPost    func(target string, form url.Values) (string, error)
	gets      []string
	posts     []postCall
	persisted int
}

func newMockSession() *mockSession {
	return &mockSession{
		authOK:  true,
		pages:   make(map[string]string),
		status:  make(map[string]int),
		getErrs: make(map[string]error),
	}
}

func (m *mockSession) EnsureAuthenticated(_ context.Context) (bool, error) {
	return m.authOK, m.authErr
}

func (m *mockSession) Get(_ context.Context, target string) (*session.Response, error) {
	m.gets = append(m.gets, target)
	if err := m.getErrs[target]; err != nil {
		return nil, err
	}
	status := http.StatusOK
	if s, ok := m.status[target]; ok {
		status = s
	}
	return &session.Response{StatusCode: status, Body: m.pages[target]}, nil
}

func (m *mockSession) Post(_ context.Context, target string, form url.Values) (*session.Response, error) {
	m.posts = append(m.posts, postCall{target: target, form: form})
	body := ""
	if m.onPost != nil {
		var err error
		if body, err = m.onPost(target, form); err != nil {
			return nil, err
		}
	}
	return &session.Response{StatusCode: http.StatusOK, Body: body}, nil
}

func (m *mockSession) Persist(_ context.Context) error {
	m.persisted++
	return nil
}

func (m *mockSession) AccountID() string { return "1001" }

type mockSolver struct {
	token string
	err   error
	keys  []string
}

func (m *mockSolver) Solve(_ context.Context, siteKey string) (string, error) {
	m.keys = append(m.keys, siteKey)
	return m.token, m.err
}

type sentMessage struct {
	recipient, hash, message string
}

type mockMessenger struct {
	sent []sentMessage
	err  error
}

func (m *mockMessenger) Send(_ context.Context, recipientID, composeHash, message string) error {
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, sentMessage{recipientID, composeHash, message})
	return nil
}

// --- Fixtures ---

const (
	ownProfile = "/id1001"
	homeGroup  = "/skynet"
	sourceA    = "/club1"
	sourceB    = "/club2"
	siblingBot = "/id2002"
)

var fixedNow = time.Date(2024, time.March, 15, 18, 0, 0, 0, time.Local)

func wallPost(id, origin, date, upstream string, likes, views int) string {
	var b strings.Builder
	b.WriteString(`<div class="post own`)
	if origin != "" {
		fmt.Fprintf(&b, ` post_copy" data-copy="%s"`, origin)
	} else {
		b.WriteString(`"`)
	}
	fmt.Fprintf(&b, ` id="%s">`, id)
	fmt.Fprintf(&b, `<div class="post_header"><div class="post_author"><a class="author" href="/x">X</a></div><span class="post_date">%s</span></div>`, date)
	if upstream != "" {
		fmt.Fprintf(&b, `<div class="copy_post_author"><a class="copy_author" href="%s">Up</a></div>`, upstream)
	}
	fmt.Fprintf(&b, `<span class="post_like_count _count">%d</span><span class="post_share_count _count">0</span><span class="post_views_count _count">%d</span>`, likes, views)
	b.WriteString(`</div>`)
	return b.String()
}

func wall(posts ...string) string {
	return `<html><body><div class="wall_posts">` + strings.Join(posts, "") + `</div></body></html>`
}

func testConfig() *config.Config {
	return &config.Config{
		AdminID:             "777",
		HomeGroup:           homeGroup,
		OwnResharePeriod:    20 * time.Hour,
		RandomResharePeriod: 65 * time.Hour,
		SearchMaxPages:      3,
		Targets: config.Targets{
			Sources:           []string{sourceA, sourceB},
			SiblingBots:       []string{siblingBot},
			Cities:            []string{"1", "2"},
			ExcludedUpstreams: []string{"/buzovaofficial"},
		},
	}
}

func newTestBot(sess *mockSession, solver *mockSolver, messenger *mockMessenger) *Bot {
	b := New(sess, solver, messenger, scraper.New(scraper.DefaultSelectors()), testConfig())
	b.now = func() time.Time { return fixedNow }
	return b
}

func shareResponder(target string, form url.Values) (string, error) {
	if target != "/like.php" {
		return "", nil
	}
	if form.Get("act") == "publish_box" {
		return `{shHash: 'share-token'}`, nil
	}
	if form.Get("hash") == "share-token" {
		return scraper.MarkerPublished, nil
	}
	return "", nil
}

func publishedObjects(sess *mockSession) []string {
	var objects []string
	for _, p := range sess.posts {
		if p.form.Get("act") == "a_do_publish" {
			objects = append(objects, p.form.Get("object"))
		}
	}
	return objects
}

// --- Tests ---

func TestPresence(t *testing.T) {
	sess := newMockSession()
	b := newTestBot(sess, nil, nil)

	ok, err := b.Presence(context.Background())
	if !ok || err != nil {
		t.Fatalf("Presence = (%v, %v)", ok, err)
	}
	if sess.gets[0] != ownProfile {
		t.Errorf("Expected own profile fetch, got %v", sess.gets)
	}
	if sess.persisted != 1 {
		t.Errorf("persisted = %d, want 1", sess.persisted)
	}

	sess.status[ownProfile] = http.StatusServiceUnavailable
	if ok, _ := b.Presence(context.Background()); ok {
		t.Error("Expected failure on non-200 profile")
	}
}

func TestActions_FailFastWhenNotAuthenticated(t *testing.T) {
	sess := newMockSession()
	sess.authOK = false
	b := newTestBot(sess, &mockSolver{}, &mockMessenger{})

	actions := map[string]func(context.Context) (bool, error){
		"presence":    b.Presence,
		"visit":       b.VisitGroup,
		"add":         b.AddFriend,
		"accept":      b.AcceptFriendRequests,
		"stat":        b.SendStat,
		"reshare_own": b.ReshareOwn,
		"reshare_random": func(ctx context.Context) (bool, error) {
			return b.ReshareRandom(ctx, time.Hour)
		},
	}
	for name, action := range actions {
		ok, err := action(context.Background())
		if ok || err != nil {
			t.Errorf("%s = (%v, %v), want (false, nil)", name, ok, err)
		}
	}
	if len(sess.gets) != 0 || len(sess.posts) != 0 {
		t.Errorf("No requests expected, got %v gets and %d posts", sess.gets, len(sess.posts))
	}
}

func TestActions_TransportErrorPropagates(t *testing.T) {
	sess := newMockSession()
	transportErr := errors.New("connection reset")
	sess.getErrs[ownProfile] = transportErr
	b := newTestBot(sess, nil, nil)

	if _, err := b.Presence(context.Background()); !errors.Is(err, transportErr) {
		t.Errorf("Presence error = %v, want transport error", err)
	}

	sess.authErr = transportErr
	if _, err := b.VisitGroup(context.Background()); !errors.Is(err, transportErr) {
		t.Errorf("VisitGroup error = %v, want transport error", err)
	}
}

func TestVisitGroup(t *testing.T) {
	sess := newMockSession()
	b := newTestBot(sess, nil, nil)

	if ok, err := b.VisitGroup(context.Background()); !ok || err != nil {
		t.Fatalf("VisitGroup = (%v, %v)", ok, err)
	}
	if sess.gets[0] != homeGroup {
		t.Errorf("Expected home group fetch, got %v", sess.gets)
	}

	sess.status[homeGroup] = http.StatusNotFound
	if ok, _ := b.VisitGroup(context.Background()); ok {
		t.Error("Expected failure on 404")
	}
}

func TestAcceptFriendRequests(t *testing.T) {
	const requestsPage = "/friends?section=requests"

	t.Run("No pending requests", func(t *testing.T) {
		sess := newMockSession()
		b := newTestBot(sess, nil, nil)
		if ok, err := b.AcceptFriendRequests(context.Background()); !ok || err != nil {
			t.Fatalf("AcceptFriendRequests = (%v, %v)", ok, err)
		}
		if len(sess.posts) != 0 {
			t.Error("Nothing should be posted")
		}
	})

	t.Run("Accepts first", func(t *testing.T) {
		sess := newMockSession()
		sess.pages[requestsPage] = `<button class="flat_button" id="accept_request_5" onclick="Friends.acceptRequest(5, 'acc5', this)">Добавить в друзья</button>` +
			`<button class="flat_button" id="accept_request_6" onclick="Friends.acceptRequest(6, 'acc6', this)">Добавить в друзья</button>`
		sess.onPost = func(string, url.Values) (string, error) { return "Теперь он у Вас в друзьях", nil }
		b := newTestBot(sess, nil, nil)

		if ok, err := b.AcceptFriendRequests(context.Background()); !ok || err != nil {
			t.Fatalf("AcceptFriendRequests = (%v, %v)", ok, err)
		}
		if len(sess.posts) != 1 {
			t.Fatalf("posts = %d, want 1", len(sess.posts))
		}
		form := sess.posts[0].form
		if sess.posts[0].target != "/al_friends.php" || form.Get("mid") != "5" || form.Get("hash") != "acc5" || form.Get("act") != "add" {
			t.Errorf("unexpected accept request %s %v", sess.posts[0].target, form)
		}
		if sess.persisted != 1 {
			t.Errorf("persisted = %d, want 1", sess.persisted)
		}
	})

	t.Run("Unconfirmed", func(t *testing.T) {
		sess := newMockSession()
		sess.pages[requestsPage] = `<button id="accept_request_5" onclick="Friends.acceptRequest(5, 'acc5', this)">Добавить в друзья</button>`
		b := newTestBot(sess, nil, nil)
		if ok, err := b.AcceptFriendRequests(context.Background()); ok || err != nil {
			t.Errorf("AcceptFriendRequests = (%v, %v), want (false, nil)", ok, err)
		}
	})
}

func searchButton(id string, hidden bool) string {
	style := ""
	if hidden {
		style = ` style="display: none;"`
	}
	return fmt.Sprintf(`<button id="search_sub%s" class="flat_button" onclick="Searcher.subscribe(this, %s, 'h%s', true)"%s>Добавить в друзья</button>`, id, id, id, style)
}

func TestAddFriend_PaginatesAndPicksSecondVisible(t *testing.T) {
	sess := newMockSession()
	sess.onPost = func(target string, form url.Values) (string, error) {
		switch target {
		case "/al_search.php":
			if form.Get("offset") == "" {
				return searchButton("9", true) + `{"has_more":true,"offset":20}`, nil
			}
			return searchButton("10", false) + searchButton("11", true) + searchButton("12", false), nil
		case "/al_feed.php":
			return "Вы подписались на обновления", nil
		}
		return "", nil
	}
	b := newTestBot(sess, &mockSolver{}, nil)

	ok, err := b.AddFriend(context.Background())
	if !ok || err != nil {
		t.Fatalf("AddFriend = (%v, %v)", ok, err)
	}
	if sess.gets[0] != "/friends?act=find" {
		t.Errorf("Expected find page first, got %v", sess.gets)
	}
	if len(sess.posts) != 3 {
		t.Fatalf("posts = %d, want 3", len(sess.posts))
	}

	first, second := sess.posts[0].form, sess.posts[1].form
	if first.Has("offset") || first.Has("al_ad") {
		t.Error("First search page must not carry an offset")
	}
	if second.Get("offset") != "20" || second.Get("al_ad") != "0" {
		t.Errorf("Second search page form = %v", second)
	}
	if !slices.Contains([]string{"1", "2"}, first.Get("c[city]")) {
		t.Errorf("city %q not from the target list", first.Get("c[city]"))
	}
	if !slices.Contains(searchStatuses, first.Get("c[status]")) {
		t.Errorf("status %q not allowed", first.Get("c[status]"))
	}
	if first.Get("c[city]") != second.Get("c[city]") || first.Get("c[status]") != second.Get("c[status]") {
		t.Error("City and status must stay fixed across pages")
	}

	request := sess.posts[2].form
	if request.Get("oid") != "12" || request.Get("hash") != "h12" || request.Get("act") != "subscr" {
		t.Errorf("friend request form = %v, want second visible candidate", request)
	}
	if sess.persisted != 1 {
		t.Errorf("persisted = %d, want 1", sess.persisted)
	}
}

func TestAddFriend_SingleCandidate(t *testing.T) {
	sess := newMockSession()
	sess.onPost = func(target string, _ url.Values) (string, error) {
		if target == "/al_search.php" {
			return searchButton("10", false), nil
		}
		return scraper.MarkerSubscribed, nil
	}
	b := newTestBot(sess, &mockSolver{}, nil)

	if ok, _ := b.AddFriend(context.Background()); !ok {
		t.Fatal("Expected success")
	}
	if got := sess.posts[1].form.Get("oid"); got != "10" {
		t.Errorf("oid = %q, want 10", got)
	}
}

func TestAddFriend_CaptchaRetry(t *testing.T) {
	sess := newMockSession()
	sess.onPost = func(target string, form url.Values) (string, error) {
		if target == "/al_search.php" {
			return searchButton("10", false), nil
		}
		if form.Get("recaptcha") == "solved" {
			return scraper.MarkerSubscribed, nil
		}
		return `<!--2<!>0<!>2<!>site-key<!>2<!>ru`, nil
	}
	solver := &mockSolver{token: "solved"}
	b := newTestBot(sess, solver, nil)

	ok, err := b.AddFriend(context.Background())
	if !ok || err != nil {
		t.Fatalf("AddFriend = (%v, %v)", ok, err)
	}
	if len(solver.keys) != 1 || solver.keys[0] != "site-key" {
		t.Errorf("solver keys = %v", solver.keys)
	}
}

func TestAddFriend_CaptchaUnsolved(t *testing.T) {
	sess := newMockSession()
	sess.onPost = func(target string, _ url.Values) (string, error) {
		if target == "/al_search.php" {
			return searchButton("10", false), nil
		}
		return `<!>2<!>site-key<!>2<!>ru`, nil
	}
	b := newTestBot(sess, &mockSolver{err: errors.New("zero balance")}, nil)

	if ok, err := b.AddFriend(context.Background()); ok || err != nil {
		t.Errorf("AddFriend = (%v, %v), want (false, nil)", ok, err)
	}
	if len(sess.posts) != 2 {
		t.Errorf("posts = %d, want 2 (no resubmit)", len(sess.posts))
	}
}

func TestAddFriend_SearchPageLimit(t *testing.T) {
	sess := newMockSession()
	sess.onPost = func(_ string, form url.Values) (string, error) {
		offset, _ := strconv.Atoi(form.Get("offset"))
		return fmt.Sprintf(`{"has_more":true,"offset":%d}`, offset+20), nil
	}
	b := newTestBot(sess, &mockSolver{}, nil)

	if ok, err := b.AddFriend(context.Background()); ok || err != nil {
		t.Errorf("AddFriend = (%v, %v), want (false, nil)", ok, err)
	}
	if len(sess.posts) != 3 {
		t.Errorf("search pages = %d, want the limit of 3", len(sess.posts))
	}
}

func TestSendStat(t *testing.T) {
	sess := newMockSession()
	sess.pages["/id777"] = `cur.wb = {\n    hash: 'compose-token',\n  to: 777}`
	sess.pages[ownProfile] = `<html><body><div id="profile_friends"><span class="header_count">120</span></div>` +
		`<a id="l_fr"><span class="left_count">4</span></a></body></html>`
	messenger := &mockMessenger{}
	b := newTestBot(sess, nil, messenger)

	ok, err := b.SendStat(context.Background())
	if !ok || err != nil {
		t.Fatalf("SendStat = (%v, %v)", ok, err)
	}
	if len(messenger.sent) != 1 {
		t.Fatalf("sent = %d, want 1", len(messenger.sent))
	}
	want := sentMessage{recipient: "777", hash: "compose-token", message: "Привет! 120/4/0"}
	if messenger.sent[0] != want {
		t.Errorf("sent %+v, want %+v", messenger.sent[0], want)
	}
}

func TestSendStat_Failures(t *testing.T) {
	t.Run("No compose token", func(t *testing.T) {
		sess := newMockSession()
		messenger := &mockMessenger{}
		b := newTestBot(sess, nil, messenger)
		if ok, err := b.SendStat(context.Background()); ok || err != nil {
			t.Errorf("SendStat = (%v, %v), want (false, nil)", ok, err)
		}
		if len(messenger.sent) != 0 {
			t.Error("Nothing should be sent")
		}
	})

	t.Run("Rejected", func(t *testing.T) {
		sess := newMockSession()
		sess.pages["/id777"] = `\n hash: 'compose-token',\n`
		b := newTestBot(sess, nil, &mockMessenger{err: fmt.Errorf("%w: status 500", notifier.ErrRejected)})
		if ok, err := b.SendStat(context.Background()); ok || err != nil {
			t.Errorf("SendStat = (%v, %v), want (false, nil)", ok, err)
		}
	})

	t.Run("Transport", func(t *testing.T) {
		sess := newMockSession()
		sess.pages["/id777"] = `\n hash: 'compose-token',\n`
		b := newTestBot(sess, nil, &mockMessenger{err: errors.New("reset")})
		if _, err := b.SendStat(context.Background()); err == nil {
			t.Error("Expected transport error")
		}
	})
}

func TestReshareOwn_TooRecent(t *testing.T) {
	sess := newMockSession()
	sess.pages[ownProfile] = wall(wallPost("post1001_5", "-9_9", "15 мар 2024 в 10:30", "", 1, 10))
	b := newTestBot(sess, nil, nil)

	if ok, err := b.ReshareOwn(context.Background()); ok || err != nil {
		t.Errorf("ReshareOwn = (%v, %v), want (false, nil)", ok, err)
	}
	if slices.Contains(sess.gets, homeGroup) {
		t.Error("Home group must not be fetched while the last reshare is fresh")
	}
}

func TestReshareOwn_AlreadyReshared(t *testing.T) {
	sess := newMockSession()
	sess.pages[ownProfile] = wall(wallPost("post1001_5", "-555_10", "2 года назад", "", 1, 10))
	sess.pages[homeGroup] = wall(wallPost("post-555_10", "", "5 минут назад", "", 5, 50))
	b := newTestBot(sess, nil, nil)

	if ok, err := b.ReshareOwn(context.Background()); !ok || err != nil {
		t.Fatalf("ReshareOwn = (%v, %v), want (true, nil)", ok, err)
	}
	if len(sess.posts) != 0 {
		t.Error("Nothing should be reshared")
	}
}

func TestReshareOwn_ResharesGroupPost(t *testing.T) {
	sess := newMockSession()
	sess.pages[ownProfile] = wall(wallPost("post1001_5", "-9_9", "1 янв 2024 в 10:00", "", 1, 10))
	sess.pages[homeGroup] = wall(wallPost("post-555_11", "", "5 минут назад", "", 5, 50))
	sess.onPost = shareResponder
	b := newTestBot(sess, nil, nil)

	if ok, err := b.ReshareOwn(context.Background()); !ok || err != nil {
		t.Fatalf("ReshareOwn = (%v, %v)", ok, err)
	}
	if objects := publishedObjects(sess); len(objects) != 1 || objects[0] != "wall-555_11" {
		t.Errorf("published = %v, want [wall-555_11]", objects)
	}
	if sess.persisted != 1 {
		t.Errorf("persisted = %d, want 1", sess.persisted)
	}
}

func TestReshareOwn_ExcludedUpstreamDelegates(t *testing.T) {
	sess := newMockSession()
	sess.pages[ownProfile] = wall()
	sess.pages[homeGroup] = wall(wallPost("post-555_12", "-888_1", "5 минут назад", "/buzovaofficial", 5, 50))
	sess.pages[sourceA] = wall(wallPost("post-1_1", "", "5 минут назад", "", 10, 100))
	sess.onPost = shareResponder
	b := newTestBot(sess, nil, nil)

	if ok, err := b.ReshareOwn(context.Background()); !ok || err != nil {
		t.Fatalf("ReshareOwn = (%v, %v)", ok, err)
	}
	if objects := publishedObjects(sess); len(objects) != 1 || objects[0] != "wall-1_1" {
		t.Errorf("published = %v, want the source post", objects)
	}
}

func TestReshareOwn_StagingFails(t *testing.T) {
	sess := newMockSession()
	sess.pages[homeGroup] = wall(wallPost("post-555_11", "", "5 минут назад", "", 5, 50))
	b := newTestBot(sess, nil, nil)

	if ok, err := b.ReshareOwn(context.Background()); ok || err != nil {
		t.Errorf("ReshareOwn = (%v, %v), want (false, nil)", ok, err)
	}
	if len(sess.posts) != 1 {
		t.Errorf("posts = %d, want only the staging request", len(sess.posts))
	}
}

func TestReshareRandom(t *testing.T) {
	sess := newMockSession()
	sess.pages[ownProfile] = wall(wallPost("post1001_5", "-2_5", "2 года назад", "", 1, 10))
	sess.pages[sourceA] = wall(
		wallPost("post-1_1", "", "5 минут назад", "", 90, 100),
		wallPost("post-1_2", "", "5 минут назад", "", 10, 100),
	)
	sess.getErrs[sourceB] = errors.New("timeout")
	sess.pages[siblingBot] = wall(wallPost("post2002_1", "-1_1", "5 минут назад", "", 1, 1))
	sess.onPost = shareResponder
	b := newTestBot(sess, nil, nil)

	ok, err := b.ReshareRandom(context.Background(), 65*time.Hour)
	if !ok || err != nil {
		t.Fatalf("ReshareRandom = (%v, %v)", ok, err)
	}
	if objects := publishedObjects(sess); len(objects) != 1 || objects[0] != "wall-1_2" {
		t.Errorf("published = %v, want [wall-1_2]", objects)
	}
}

func TestReshareRandom_NothingFresh(t *testing.T) {
	sess := newMockSession()
	sess.pages[sourceA] = wall(wallPost("post-1_1", "", "5 минут назад", "", 1, 10))
	sess.pages[ownProfile] = wall(wallPost("post1001_5", "-1_1", "2 года назад", "", 1, 10))
	b := newTestBot(sess, nil, nil)

	if ok, err := b.ReshareRandom(context.Background(), time.Hour); ok || err != nil {
		t.Errorf("ReshareRandom = (%v, %v), want (false, nil)", ok, err)
	}
	if len(sess.posts) != 0 {
		t.Error("Nothing should be reshared")
	}
}

func TestReshareRandom_IntervalGate(t *testing.T) {
	sess := newMockSession()
	sess.pages[ownProfile] = wall(wallPost("post1001_5", "-2_5", "15 мар 2024 в 10:30", "", 1, 10))
	b := newTestBot(sess, nil, nil)

	if ok, _ := b.ReshareRandom(context.Background(), 10*time.Hour); ok {
		t.Error("Expected the 10h interval to block a reshare made 7.5h ago")
	}
	if len(sess.gets) != 1 {
		t.Errorf("gets = %v, want only the own profile", sess.gets)
	}

	sess.onPost = shareResponder
	sess.pages[sourceA] = wall(wallPost("post-1_9", "", "5 минут назад", "", 1, 10))
	if ok, err := b.ReshareRandom(context.Background(), 5*time.Hour); !ok || err != nil {
		t.Errorf("ReshareRandom with 5h interval = (%v, %v), want success", ok, err)
	}
}
