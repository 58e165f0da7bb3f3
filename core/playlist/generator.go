// Package playlist builds mood playlists from the song catalog. Selection
// runs a fallback cascade (mood/genre match, then local songs, then any
// song) until the requested size is reached.
package playlist

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"MelodyMind/core/apperr"
	"MelodyMind/core/mood"
	"MelodyMind/core/recommend"
	"MelodyMind/logger"
	"MelodyMind/metrics"
	"MelodyMind/model"
)

const defaultName = "Generated Playlist"

// SongRepository is the catalog view the cascade needs.
type SongRepository interface {
	FindByTags(ctx context.Context, q model.SongQuery, limit int) ([]model.Song, error)
	FindLocal(ctx context.Context, excludeIDs []string, limit int) ([]model.Song, error)
	FindAny(ctx context.Context, excludeIDs []string, limit int) ([]model.Song, error)
}

// PlaylistRepository persists playlists.
type PlaylistRepository interface {
	Create(ctx context.Context, p *model.Playlist) error
	FetchWithItems(ctx context.Context, id string) (*model.Playlist, error)
}

// Shuffler permutes n elements in place through swap.
type Shuffler interface {
	Shuffle(n int, swap func(i, j int))
}

// lockedRand makes a *rand.Rand safe for concurrent Generate calls.
type lockedRand struct {
	mu sync.Mutex
	r  *rand.Rand
}

func (l *lockedRand) Shuffle(n int, swap func(i, j int)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.r.Shuffle(n, swap)
}

// Request describes one generation.
type Request struct {
	UserID      string
	Mood        mood.Label
	Name        string
	Limit       int
	PreferLocal bool
	Rerank      bool
}

// SongSummary is the flattened song view returned with a generated playlist.
type SongSummary struct {
	SongID    string   `json:"song_id"`
	SongTitle string   `json:"song_title"`
	Artist    string   `json:"artist"`
	Album     string   `json:"album"`
	Duration  int      `json:"duration"`
	AudioURL  string   `json:"audio_url"`
	CoverURL  string   `json:"cover_url"`
	MoodTags  []string `json:"mood_tags"`
	Genres    []string `json:"genres"`
	IsLocal   bool     `json:"is_local"`
}

// Generated is a persisted playlist plus its resolved items in order.
type Generated struct {
	Playlist *model.Playlist `json:"playlist"`
	Items    []SongSummary   `json:"items"`
}

// Generator runs the selection cascade and persists the result.
type Generator struct {
	songs     SongRepository
	playlists PlaylistRepository
	shuffler  Shuffler
	ranker    recommend.Ranker
}

// GeneratorOption configures a Generator.
type GeneratorOption func(*Generator)

// WithShuffler replaces the time-seeded default.
func WithShuffler(s Shuffler) GeneratorOption {
	return func(g *Generator) {
		g.shuffler = s
	}
}

// WithRanker enables re-ranking for requests that ask for it.
func WithRanker(r recommend.Ranker) GeneratorOption {
	return func(g *Generator) {
		g.ranker = r
	}
}

func NewGenerator(songs SongRepository, playlists PlaylistRepository, opts ...GeneratorOption) *Generator {
	g := &Generator{
		songs:     songs,
		playlists: playlists,
		shuffler:  &lockedRand{r: rand.New(rand.NewSource(time.Now().UnixNano()))},
		ranker:    recommend.IdentityRanker{},
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Generate selects up to Limit distinct songs for the mood, shuffles them
// and stores the playlist. Finding no songs at all is not an error.
func (g *Generator) Generate(ctx context.Context, req Request) (*Generated, error) {
	if strings.TrimSpace(req.UserID) == "" {
		return nil, apperr.Invalid("user required")
	}
	if !req.Mood.Valid() {
		return nil, apperr.Invalid("unknown mood label %q", req.Mood)
	}
	limit := recommend.ClampLimit(req.Limit)
	name := strings.TrimSpace(req.Name)
	if name == "" {
		name = defaultName
	}

	songs, err := g.selectSongs(ctx, req.Mood, req.PreferLocal, limit)
	if err != nil {
		return nil, err
	}

	g.shuffler.Shuffle(len(songs), func(i, j int) {
		songs[i], songs[j] = songs[j], songs[i]
	})

	if _, identity := g.ranker.(recommend.IdentityRanker); req.Rerank && !identity {
		ranked, err := g.ranker.Rank(ctx, req.Mood, nil, songs)
		if err != nil {
			return nil, fmt.Errorf("rerank playlist: %w", err)
		}
		songs = ranked
	}

	p := model.NewPlaylist(req.UserID,
		fmt.Sprintf("%s - %s", name, req.Mood.Title()),
		fmt.Sprintf("Auto-generated playlist for %s mood", req.Mood),
		string(req.Mood))
	p.Items = make([]model.PlaylistItem, len(songs))
	for i, s := range songs {
		p.Items[i] = model.PlaylistItem{PlaylistID: p.ID, SongID: s.ID, Order: i}
	}

	if err := g.playlists.Create(ctx, p); err != nil {
		return nil, fmt.Errorf("create playlist: %w", err)
	}
	stored, err := g.playlists.FetchWithItems(ctx, p.ID)
	if err != nil {
		return nil, fmt.Errorf("reload playlist: %w", err)
	}

	metrics.PlaylistSize.Observe(float64(len(songs)))
	logger.Info("[Playlist] generated",
		logger.String("userId", req.UserID),
		logger.String("mood", string(req.Mood)),
		logger.Int("songs", len(songs)),
		logger.Bool("preferLocal", req.PreferLocal))

	return &Generated{Playlist: stored, Items: Summaries(stored)}, nil
}

// selectSongs runs the cascade. IDs are unique across tiers and the result
// never exceeds limit.
func (g *Generator) selectSongs(ctx context.Context, m mood.Label, preferLocal bool, limit int) ([]model.Song, error) {
	picked := make([]model.Song, 0, limit)
	seen := make(map[string]struct{}, limit)

	add := func(tier string, batch []model.Song) {
		n := 0
		for _, s := range batch {
			if len(picked) == limit {
				break
			}
			if _, dup := seen[s.ID]; dup {
				continue
			}
			seen[s.ID] = struct{}{}
			picked = append(picked, s)
			n++
		}
		if n > 0 {
			metrics.CascadeSongs.WithLabelValues(tier).Add(float64(n))
		}
	}
	exclude := func() []string {
		ids := make([]string, 0, len(picked))
		for _, s := range picked {
			ids = append(ids, s.ID)
		}
		return ids
	}

	matched, err := g.songs.FindByTags(ctx, model.SongQuery{
		MoodTags:  []string{string(m)},
		Genres:    []string{string(m)},
		LocalOnly: preferLocal,
	}, limit)
	if err != nil {
		return nil, fmt.Errorf("find matching songs: %w", err)
	}
	add("match", matched)

	if preferLocal && len(picked) < limit {
		local, err := g.songs.FindLocal(ctx, exclude(), limit-len(picked))
		if err != nil {
			return nil, fmt.Errorf("find local songs: %w", err)
		}
		add("local", local)
	}

	if len(picked) < limit {
		rest, err := g.songs.FindAny(ctx, exclude(), limit-len(picked))
		if err != nil {
			return nil, fmt.Errorf("find backfill songs: %w", err)
		}
		add("any", rest)
	}

	return picked, nil
}

// Summaries flattens a playlist's items in order. Items whose song is no
// longer in the catalog are skipped.
func Summaries(p *model.Playlist) []SongSummary {
	out := make([]SongSummary, 0, len(p.Items))
	for _, it := range p.Items {
		if it.Song == nil {
			continue
		}
		out = append(out, Summarize(*it.Song))
	}
	return out
}

// Summarize converts one catalog song.
func Summarize(s model.Song) SongSummary {
	tags := []string(s.MoodTags)
	if tags == nil {
		tags = []string{}
	}
	genres := []string(s.Genres)
	if genres == nil {
		genres = []string{}
	}
	return SongSummary{
		SongID:    s.ID,
		SongTitle: s.Title,
		Artist:    s.Artist,
		Album:     s.Album,
		Duration:  s.Duration,
		AudioURL:  model.StreamURL(s.ID),
		CoverURL:  s.CoverURL,
		MoodTags:  tags,
		Genres:    genres,
		IsLocal:   s.IsLocal,
	}
}
