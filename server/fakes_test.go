package server

import (
	"context"
	"errors"
	"io"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"

	"MelodyMind/core/apperr"
	"MelodyMind/core/scanner"
	"MelodyMind/model"
	"MelodyMind/repository"
)

// memStore 所有内存仓库共享的数据
type memStore struct {
	mu         sync.Mutex
	users      map[string]*model.User
	songs      []model.Song
	playlists  map[string]*model.Playlist
	journal    []model.JournalEntry
	detections []model.MoodDetection
	events     []model.AnalyticsEvent
	games      []model.GameSession

	failSongCreate bool
}

func newMemStore() *memStore {
	return &memStore{
		users:     map[string]*model.User{},
		playlists: map[string]*model.Playlist{},
	}
}

func (s *memStore) addSong(title string, local bool, moods, genres []string) model.Song {
	s.mu.Lock()
	defer s.mu.Unlock()
	song := *model.NewSong(title, "Artist", "Album")
	song.IsLocal = local
	song.MoodTags = moods
	song.Genres = genres
	song.CreatedAt = time.Now().Add(time.Duration(len(s.songs)) * time.Second)
	s.songs = append(s.songs, song)
	return song
}

type memUsers struct{ s *memStore }

func (r memUsers) Create(_ context.Context, u *model.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.users {
		if existing.Email == u.Email {
			return repository.ErrDuplicateUser
		}
	}
	cp := *u
	r.s.users[u.ID] = &cp
	return nil
}

func (r memUsers) GetByID(_ context.Context, id string) (*model.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if u, ok := r.s.users[id]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, apperr.ErrNotFound
}

func (r memUsers) GetByEmail(_ context.Context, email string) (*model.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, u := range r.s.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, apperr.ErrNotFound
}

type memSongs struct{ s *memStore }

func (r memSongs) Create(_ context.Context, song *model.Song) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.failSongCreate {
		return errors.New("db down")
	}
	r.s.songs = append(r.s.songs, *song)
	return nil
}

func (r memSongs) Update(_ context.Context, song *model.Song) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for i := range r.s.songs {
		if r.s.songs[i].ID == song.ID {
			r.s.songs[i] = *song
			return nil
		}
	}
	return apperr.ErrNotFound
}

func (r memSongs) FindByID(_ context.Context, id string) (*model.Song, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, song := range r.s.songs {
		if song.ID == id {
			cp := song
			return &cp, nil
		}
	}
	return nil, apperr.ErrNotFound
}

func (r memSongs) FindByTitleArtist(_ context.Context, title, artist string) (*model.Song, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, song := range r.s.songs {
		if strings.EqualFold(song.Title, title) && strings.EqualFold(song.Artist, artist) {
			cp := song
			return &cp, nil
		}
	}
	return nil, apperr.ErrNotFound
}

func overlaps(have model.StringList, want []string) bool {
	for _, w := range want {
		if have.Contains(w) {
			return true
		}
	}
	return false
}

func excluded(id string, ids []string) bool {
	for _, x := range ids {
		if x == id {
			return true
		}
	}
	return false
}

// newest 与 SQL 实现一致：按创建时间倒序
func (r memSongs) newest(limit int, keep func(model.Song) bool) []model.Song {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := []model.Song{}
	for _, song := range r.s.songs {
		if keep(song) {
			out = append(out, song)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func (r memSongs) FindByTags(_ context.Context, q model.SongQuery, limit int) ([]model.Song, error) {
	return r.newest(limit, func(s model.Song) bool {
		if q.LocalOnly && !s.IsLocal {
			return false
		}
		if excluded(s.ID, q.ExcludeIDs) {
			return false
		}
		return overlaps(s.MoodTags, q.MoodTags) || overlaps(s.Genres, q.Genres)
	}), nil
}

func (r memSongs) FindLocal(_ context.Context, ids []string, limit int) ([]model.Song, error) {
	return r.newest(limit, func(s model.Song) bool { return s.IsLocal && !excluded(s.ID, ids) }), nil
}

func (r memSongs) FindAny(_ context.Context, ids []string, limit int) ([]model.Song, error) {
	return r.newest(limit, func(s model.Song) bool { return !excluded(s.ID, ids) }), nil
}

func (r memSongs) List(_ context.Context, limit int) ([]model.Song, error) {
	return r.newest(limit, func(model.Song) bool { return true }), nil
}

func (r memSongs) ListLocal(_ context.Context, limit int) ([]model.Song, error) {
	return r.newest(limit, func(s model.Song) bool { return s.IsLocal }), nil
}

type memPlaylists struct{ s *memStore }

func (r memPlaylists) Create(_ context.Context, p *model.Playlist) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cp := *p
	cp.Items = append([]model.PlaylistItem(nil), p.Items...)
	cp.CreatedAt = time.Now()
	r.s.playlists[p.ID] = &cp
	return nil
}

// resolved 复制歌单并填充 Items.Song
func (r memPlaylists) resolved(p *model.Playlist) *model.Playlist {
	cp := *p
	cp.Items = make([]model.PlaylistItem, len(p.Items))
	for i, it := range p.Items {
		for _, song := range r.s.songs {
			if song.ID == it.SongID {
				s := song
				it.Song = &s
			}
		}
		cp.Items[i] = it
	}
	return &cp
}

func (r memPlaylists) FetchWithItems(_ context.Context, id string) (*model.Playlist, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.playlists[id]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	return r.resolved(p), nil
}

func (r memPlaylists) GetOwned(_ context.Context, id, userID string) (*model.Playlist, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.playlists[id]
	if !ok || p.UserID != userID {
		return nil, apperr.ErrNotFound
	}
	return r.resolved(p), nil
}

func (r memPlaylists) ListByUser(_ context.Context, userID string) ([]model.Playlist, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []model.Playlist
	for _, p := range r.s.playlists {
		if p.UserID == userID {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (r memPlaylists) Update(_ context.Context, p *model.Playlist) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	stored, ok := r.s.playlists[p.ID]
	if !ok || stored.UserID != p.UserID {
		return apperr.ErrNotFound
	}
	stored.Name, stored.Description, stored.MoodLabel, stored.IsPublic = p.Name, p.Description, p.MoodLabel, p.IsPublic
	return nil
}

func (r memPlaylists) Delete(_ context.Context, id, userID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.playlists[id]
	if !ok || p.UserID != userID {
		return apperr.ErrNotFound
	}
	delete(r.s.playlists, id)
	return nil
}

func (r memPlaylists) AddItem(_ context.Context, playlistID, songID string) (*model.PlaylistItem, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.playlists[playlistID]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	item := model.PlaylistItem{PlaylistID: playlistID, SongID: songID, Order: len(p.Items)}
	p.Items = append(p.Items, item)
	return &item, nil
}

type memJournal struct{ s *memStore }

func (r memJournal) Upsert(_ context.Context, e *model.JournalEntry) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	e.Date = model.StartOfDay(e.Date)
	for i := range r.s.journal {
		j := &r.s.journal[i]
		if j.UserID == e.UserID && j.Date.Equal(e.Date) {
			j.MoodLabel, j.Intensity, j.Notes, j.Tags = e.MoodLabel, e.Intensity, e.Notes, e.Tags
			*e = *j
			return nil
		}
	}
	r.s.journal = append(r.s.journal, *e)
	return nil
}

func (r memJournal) GetByID(_ context.Context, id, userID string) (*model.JournalEntry, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, j := range r.s.journal {
		if j.ID == id && j.UserID == userID {
			cp := j
			return &cp, nil
		}
	}
	return nil, apperr.ErrNotFound
}

func (r memJournal) Recent(_ context.Context, userID string, limit int) ([]model.JournalEntry, error) {
	all, _ := r.ListRange(context.Background(), userID, time.Time{}, time.Now().AddDate(1, 0, 0))
	sort.SliceStable(all, func(i, j int) bool { return all[i].Date.After(all[j].Date) })
	if len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

func (r memJournal) ListRange(_ context.Context, userID string, from, to time.Time) ([]model.JournalEntry, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	from, to = model.StartOfDay(from), model.StartOfDay(to)
	var out []model.JournalEntry
	for _, j := range r.s.journal {
		if j.UserID == userID && !j.Date.Before(from) && !j.Date.After(to) {
			out = append(out, j)
		}
	}
	sort.SliceStable(out, func(i, k int) bool { return out[i].Date.Before(out[k].Date) })
	return out, nil
}

func (r memJournal) Count(_ context.Context, userID string) (int64, error) {
	all, _ := r.ListRange(context.Background(), userID, time.Time{}, time.Now().AddDate(1, 0, 0))
	return int64(len(all)), nil
}

func (r memJournal) MoodDistribution(_ context.Context, userID string) ([]model.MoodCount, error) {
	return nil, nil
}

type memMoods struct{ s *memStore }

func (r memMoods) Create(_ context.Context, d *model.MoodDetection) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.detections = append(r.s.detections, *d)
	return nil
}

func (r memMoods) History(_ context.Context, userID string, limit int) ([]model.MoodDetection, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []model.MoodDetection
	for i := len(r.s.detections) - 1; i >= 0 && len(out) < limit; i-- {
		if r.s.detections[i].UserID == userID {
			out = append(out, r.s.detections[i])
		}
	}
	return out, nil
}

func (r memMoods) Count(_ context.Context, userID string) (int64, error) {
	all, _ := r.History(context.Background(), userID, 1<<30)
	return int64(len(all)), nil
}

type memAnalytics struct{ s *memStore }

func (r memAnalytics) Record(_ context.Context, e *model.AnalyticsEvent) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.events = append(r.s.events, *e)
	return nil
}

func (r memAnalytics) Summary(ctx context.Context, userID string) (*model.AnalyticsSummary, error) {
	journal, _ := memJournal(r).Count(ctx, userID)
	moods, _ := memMoods(r).Count(ctx, userID)
	games, _ := memGames(r).Count(ctx, userID)
	return &model.AnalyticsSummary{JournalCount: journal, DetectionCount: moods, GameSessionCount: games}, nil
}

type memGames struct{ s *memStore }

func (r memGames) Create(_ context.Context, g *model.GameSession) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	g.CreatedAt = time.Now().Add(time.Duration(len(r.s.games)) * time.Second)
	r.s.games = append(r.s.games, *g)
	return nil
}

func (r memGames) ListByUser(_ context.Context, userID string, limit int) ([]model.GameSession, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []model.GameSession
	for i := len(r.s.games) - 1; i >= 0 && len(out) < limit; i-- {
		if r.s.games[i].UserID == userID {
			out = append(out, r.s.games[i])
		}
	}
	return out, nil
}

func (r memGames) Stats(_ context.Context, userID string) ([]model.GameStats, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	bySlug := map[string]*model.GameStats{}
	scored := map[string]int{}
	out := []model.GameStats{}
	for _, g := range r.s.games {
		if g.UserID != userID {
			continue
		}
		st, ok := bySlug[g.GameSlug]
		if !ok {
			st = &model.GameStats{GameSlug: g.GameSlug}
			bySlug[g.GameSlug] = st
		}
		st.TotalSessions++
		st.TotalDuration += int64(g.DurationSec)
		if g.Score != nil {
			sum := *g.Score
			if st.AvgScore != nil {
				sum += *st.AvgScore * float64(scored[g.GameSlug])
			}
			scored[g.GameSlug]++
			avg := sum / float64(scored[g.GameSlug])
			st.AvgScore = &avg
		}
	}
	for _, st := range bySlug {
		out = append(out, *st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TotalDuration > out[j].TotalDuration })
	return out, nil
}

func (r memGames) Count(_ context.Context, userID string) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for _, g := range r.s.games {
		if g.UserID == userID {
			n++
		}
	}
	return n, nil
}

// fakeObjects 记录上传与删除
type fakeObjects struct {
	mu       sync.Mutex
	uploaded map[string][]byte
	removed  []string
}

func newFakeObjects() *fakeObjects {
	return &fakeObjects{uploaded: map[string][]byte{}}
}

func (f *fakeObjects) Upload(_ context.Context, key string, r io.Reader, size int64, contentType string) (minio.UploadInfo, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return minio.UploadInfo{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.uploaded[key] = data
	return minio.UploadInfo{Key: key, Size: int64(len(data)), ETag: uuid.NewString()}, nil
}

func (f *fakeObjects) Remove(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.uploaded, key)
	f.removed = append(f.removed, key)
	return nil
}

func (f *fakeObjects) PresignedURL(_ context.Context, key string) (*url.URL, error) {
	return url.Parse("http://objects.test/melodymind/" + key + "?sig=abc")
}

// countingResults 从不命中，只记录失效次数
type countingResults struct {
	mu             sync.Mutex
	userInvalid    int
	catalogInvalid int
}

func (c *countingResults) Get(context.Context, string, string, int, any) (bool, error) {
	return false, nil
}

func (c *countingResults) Set(context.Context, string, string, int, any) error { return nil }

func (c *countingResults) Invalidate(context.Context, string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.userInvalid++
	return nil
}

func (c *countingResults) InvalidateCatalog(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.catalogInvalid++
	return nil
}

type fakeScanner struct{ report scanner.Report }

func (f fakeScanner) Scan(context.Context) (*scanner.Report, error) {
	r := f.report
	return &r, nil
}

// noShuffle 保持候选顺序，方便断言
type noShuffle struct{}

func (noShuffle) Shuffle(int, func(i, j int)) {}
