// Package recommend turns a mood and a journal history into catalog
// queries, and optionally re-orders the matches by embedding similarity
// to the user's recent context.
package recommend

import (
	"MelodyMind/core/mood"
	"MelodyMind/model"
)

const (
	DefaultLimit = 20
	MaxLimit     = 100

	// HistoryWindow bounds the seed history handed to a ranker.
	HistoryWindow = 20
	// ContextHistory bounds the journal lines folded into the user context.
	ContextHistory = 10
	// JournalLookback is how many entries the service loads per request.
	JournalLookback = 50
)

var genreTable = map[mood.Label][]string{
	mood.Happy:     {"pop"},
	mood.Energetic: {"rock"},
	mood.Sad:       {"acoustic", "indie"},
}

var defaultGenres = []string{"ambient"}

// Request is the input of Recommend. History is most-recent-first.
type Request struct {
	Mood    mood.Label
	History []model.JournalEntry
	Limit   int
}

// Result is the catalog query derived from a Request.
type Result struct {
	Genres      []string
	Limit       int
	SeedHistory []model.JournalEntry
}

// ClampLimit maps non-positive limits to DefaultLimit and caps at MaxLimit.
func ClampLimit(n int) int {
	switch {
	case n <= 0:
		return DefaultLimit
	case n > MaxLimit:
		return MaxLimit
	default:
		return n
	}
}

// GenresFor returns the genres associated with m.
func GenresFor(m mood.Label) []string {
	g, ok := genreTable[m]
	if !ok {
		g = defaultGenres
	}
	out := make([]string, len(g))
	copy(out, g)
	return out
}

// Recommend is pure: it neither reads nor writes any store.
func Recommend(req Request) Result {
	seed := req.History
	if len(seed) > HistoryWindow {
		seed = seed[:HistoryWindow]
	}
	return Result{
		Genres:      GenresFor(req.Mood),
		Limit:       ClampLimit(req.Limit),
		SeedHistory: seed,
	}
}
