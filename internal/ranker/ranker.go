// Package ranker picks which candidate post to reshare next.
package ranker

import (
	"log/slog"
	"sort"
	"strings"

	"github.com/pauljones0/skynet-bot/internal/models"
)

// ShortlistSize is how many top-rated candidates take part in the random pick.
const ShortlistSize = 30

// Picker returns a uniform index in [0, n). *rand.Rand from math/rand/v2
// satisfies it.
type Picker interface {
	IntN(n int) int
}

// NormalizeKey reduces a post reference to a comparable identity by dropping
// the type prefix and sign characters, so "post-123_45", "wall-123_45" and
// "123_45" compare equal.
func NormalizeKey(ref string) string {
	key := strings.TrimSpace(ref)
	key = strings.TrimPrefix(key, "post")
	key = strings.TrimPrefix(key, "wall")
	key = strings.ReplaceAll(key, "-", "")
	key = strings.ReplaceAll(key, "+", "")
	return key
}

// candidateKey identifies the content a candidate carries: the original it
// points to, or the candidate itself.
func candidateKey(p models.PostRecord) string {
	if p.OriginRef != "" {
		return NormalizeKey(p.OriginRef)
	}
	return NormalizeKey(p.ID)
}

// SelectBest drops candidates already reshared on any of the published walls,
// sorts the rest by rating and picks one of the top ShortlistSize at random.
// ok is false when nothing is left to pick.
func SelectBest(candidates, published []models.PostRecord, rng Picker) (best models.PostRecord, ok bool) {
	seen := make(map[string]bool, len(published))
	for _, p := range published {
		if key := NormalizeKey(p.OriginRef); key != "" {
			seen[key] = true
		}
	}

	fresh := make([]models.PostRecord, 0, len(candidates))
	for _, c := range candidates {
		key := candidateKey(c)
		if key != "" && seen[key] {
			continue
		}
		fresh = append(fresh, c)
	}
	if len(fresh) == 0 {
		slog.Info("No fresh candidates left after dedup", "candidates", len(candidates), "published", len(published))
		return models.PostRecord{}, false
	}

	sort.SliceStable(fresh, func(i, j int) bool {
		return fresh[i].Rating > fresh[j].Rating
	})
	if len(fresh) > ShortlistSize {
		fresh = fresh[:ShortlistSize]
	}

	return fresh[rng.IntN(len(fresh))], true
}

// AlreadyReshared reports whether target was already reshared on the wall
// formed by posts. A target that is itself a reshare matches on its own id
// as well as on its origin.
func AlreadyReshared(target models.PostRecord, posts []models.PostRecord) bool {
	keys := make([]string, 0, 2)
	for _, ref := range []string{target.ID, target.OriginRef} {
		if key := NormalizeKey(ref); key != "" {
			keys = append(keys, key)
		}
	}
	if len(keys) == 0 {
		return false
	}
	for _, p := range posts {
		origin := NormalizeKey(p.OriginRef)
		if origin == "" {
			continue
		}
		for _, key := range keys {
			if origin == key {
				return true
			}
		}
	}
	return false
}
