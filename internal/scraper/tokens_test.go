package scraper

import "testing"

func TestTokenExtraction(t *testing.T) {
	tests := []struct {
		name   string
		fn     func(string) (string, bool)
		body   string
		want   string
		wantOK bool
	}{
		{"Language hash", LanguageHash, `onclick="lang({lang_id: 0, hash: 'abc123'})"`, "abc123", true},
		{"Language hash absent", LanguageHash, `<html></html>`, "", false},
		{"Landing account id", LandingAccountID, "var vk = {\n  ts: 1,\n  id: 424242,\n}", "424242", true},
		{"Login account id", LoginAccountID, `parent.onLoginDone({"uid":"777","hash":"x"})`, "777", true},
		{"Share hash", ShareHash, `{shHash: 'sh_9f', other: 1}`, "sh_9f", true},
		{"Compose hash", ComposeHash, `cur.options = {\n  hash: 'cmp42',\n  to: 1}`, "cmp42", true},
		{"Compose hash absent", ComposeHash, `hash: 'nope'`, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := tt.fn(tt.body)
			if ok != tt.wantOK || got != tt.want {
				t.Errorf("got (%q, %v), want (%q, %v)", got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestCaptchaKey(t *testing.T) {
	if key, ok := CaptchaKey(`<!--12<!>3<!>2<!>6LcKey_-<!>2<!>ru`); !ok || key != "6LcKey_-" {
		t.Errorf("CaptchaKey = (%q, %v), want (6LcKey_-, true)", key, ok)
	}
	if _, ok := CaptchaKey(`<!>2<!>key<!>2<!>en`); ok {
		t.Error("Expected no challenge without the ru marker")
	}
	if _, ok := CaptchaKey(MarkerFriendAdded); ok {
		t.Error("Expected no challenge on a success response")
	}
}

func TestFriendSearchPage(t *testing.T) {
	body := `<div>` +
		`<button id="search_sub101" class="flat_button" onclick="Searcher.subscribe(this, 101, 'h101', true)">Добавить в друзья</button>` +
		`<button id="search_sub102" class="flat_button" onclick="Searcher.subscribe(this, 102, 'h102', true)" style="display: none;">Добавить в друзья</button>` +
		`<button id="search_sub103" class="flat_button" onclick="Searcher.subscribe(this, 103, 'h103', true)">Добавить в друзья</button>` +
		`</div>{"has_more":true,"offset":40}`

	page := FriendSearchPage(body)
	if len(page.Candidates) != 3 {
		t.Fatalf("Expected 3 candidates, got %d", len(page.Candidates))
	}
	if page.Candidates[0].ID != "101" || page.Candidates[0].Hash != "h101" {
		t.Errorf("First candidate = %+v", page.Candidates[0])
	}
	if page.Candidates[1].Visible {
		t.Error("Hidden candidate reported visible")
	}
	visible := page.Visible()
	if len(visible) != 2 || visible[1].ID != "103" {
		t.Errorf("Visible = %+v", visible)
	}
	if !page.HasMore || page.NextOffset != 40 {
		t.Errorf("Pagination = %v/%d, want true/40", page.HasMore, page.NextOffset)
	}

	last := FriendSearchPage(`{"has_more":false,"offset":60}`)
	if last.HasMore || len(last.Candidates) != 0 {
		t.Errorf("Expected empty final page, got %+v", last)
	}
}

func TestIncomingRequests(t *testing.T) {
	body := `<button class="flat_button" id="accept_request_5" onclick="Friends.acceptRequest(5, 'acc5', this)">Добавить в друзья</button>` +
		`<button class="flat_button" id="accept_request_6" onclick="Friends.acceptRequest(6, 'acc6', this)">Добавить в друзья</button>`

	got := IncomingRequests(body)
	if len(got) != 2 {
		t.Fatalf("Expected 2 requests, got %d", len(got))
	}
	if got[0].ID != "5" || got[0].Hash != "acc5" {
		t.Errorf("First request = %+v", got[0])
	}
	if len(IncomingRequests(`<div>no requests</div>`)) != 0 {
		t.Error("Expected no requests")
	}
}
