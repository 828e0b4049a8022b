package models

// Session is the durable part of an authenticated identity: the platform's
// cookies (name to value) and the user agent they were issued to.
type Session struct {
	Cookies   map[string]string
	UserAgent string
}

// IsEmpty reports a cold start: nothing was persisted yet.
func (s Session) IsEmpty() bool {
	return len(s.Cookies) == 0 && s.UserAgent == ""
}
