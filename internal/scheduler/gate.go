package scheduler

import "time"

// Kind identifies one action of the bot's repertoire.
type Kind int

const (
	ReshareRandom Kind = iota
	ReshareOwn
	AddFriend
	AcceptFriendRequests
	SendStat
	VisitGroup
	Presence
)

var kindNames = map[Kind]string{
	ReshareRandom:        "reshare_random",
	ReshareOwn:           "reshare_own",
	AddFriend:            "add_friend",
	AcceptFriendRequests: "accept_friend_requests",
	SendStat:             "send_stat",
	VisitGroup:           "visit_group",
	Presence:             "presence",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "unknown"
}

// DefaultCooldowns is the minimum spacing between two runs of each kind.
var DefaultCooldowns = map[Kind]time.Duration{
	Presence:             420 * time.Second,
	AddFriend:            2700 * time.Second,
	AcceptFriendRequests: 1500 * time.Second,
	SendStat:             72000 * time.Second,
	VisitGroup:           25200 * time.Second,
	ReshareOwn:           36000 * time.Second,
	ReshareRandom:        43200 * time.Second,
}

// Gate keeps the last-run time of every kind in memory. A fresh Gate lets
// every kind run once.
type Gate struct {
	cooldowns map[Kind]time.Duration
	lastRun   map[Kind]time.Time
	now       func() time.Time
}

func NewGate(cooldowns map[Kind]time.Duration) *Gate {
	return &Gate{
		cooldowns: cooldowns,
		lastRun:   make(map[Kind]time.Time),
		now:       time.Now,
	}
}

// IsDue reports whether the cooldown of k has elapsed since its last run.
func (g *Gate) IsDue(k Kind) bool {
	last, ok := g.lastRun[k]
	if !ok {
		return true
	}
	return g.now().Sub(last) >= g.cooldowns[k]
}

// MarkRun records that k ran now.
func (g *Gate) MarkRun(k Kind) {
	g.lastRun[k] = g.now()
}
