// Package scanner imports audio files from a local directory into the song
// catalog and can keep watching the directory for new files.
package scanner

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"golang.org/x/sync/errgroup"

	"MelodyMind/core/apperr"
	"MelodyMind/logger"
	"MelodyMind/model"
)

// SongStore is the catalog view the scanner writes through.
type SongStore interface {
	// FindByTitleArtist matches case-insensitively on the exact values and
	// returns apperr.ErrNotFound when there is no such song.
	FindByTitleArtist(ctx context.Context, title, artist string) (*model.Song, error)
	Create(ctx context.Context, song *model.Song) error
	Update(ctx context.Context, song *model.Song) error
}

// Report summarizes one scan.
type Report struct {
	Message string       `json:"message"`
	Songs   []model.Song `json:"songs"`
	Added   int          `json:"added"`
	Updated int          `json:"updated"`
	Failed  int          `json:"failed"`
}

// Scanner imports one directory.
type Scanner struct {
	dir     string
	store   SongStore
	workers int
	locks   keyLocks
}

// keyLocks 按歌曲身份串行化查重和写入，同一首歌的 mp3 和 flac 不会各建一行
type keyLocks struct {
	mu    sync.Mutex
	locks map[string]*keyLock
}

type keyLock struct {
	sync.Mutex
	refs int
}

func (k *keyLocks) lock(key string) (unlock func()) {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = make(map[string]*keyLock)
	}
	l, ok := k.locks[key]
	if !ok {
		l = &keyLock{}
		k.locks[key] = l
	}
	l.refs++
	k.mu.Unlock()

	l.Lock()
	return func() {
		l.Unlock()
		k.mu.Lock()
		if l.refs--; l.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}

// songKey matches the case-insensitive lookup of FindByTitleArtist.
func songKey(title, artist string) string {
	return strings.ToLower(title) + "\x00" + strings.ToLower(artist)
}

func New(dir string, store SongStore, workers int) *Scanner {
	if workers <= 0 {
		workers = 4
	}
	return &Scanner{dir: dir, store: store, workers: workers}
}

// Dir is the scanned directory.
func (s *Scanner) Dir() string {
	return s.dir
}

// Scan imports every audio file at the top level of the directory. A
// missing directory is created. Failing files are logged and skipped.
func (s *Scanner) Scan(ctx context.Context) (*Report, error) {
	if _, err := os.Stat(s.dir); errors.Is(err, os.ErrNotExist) {
		if err := os.MkdirAll(s.dir, 0755); err != nil {
			return nil, fmt.Errorf("create music directory: %w", err)
		}
		logger.Info("[Scanner] music directory created", logger.String("dir", s.dir))
		return &Report{Message: "Music directory created", Songs: []model.Song{}}, nil
	}

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("read music directory: %w", err)
	}
	var files []string
	for _, e := range entries {
		if !e.IsDir() && IsAudioFile(e.Name()) {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)
	if len(files) == 0 {
		return &Report{Message: "No audio files found in music directory", Songs: []model.Song{}}, nil
	}

	results := make([]*model.Song, len(files))
	var added, updated, failed atomic.Int32

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for i, name := range files {
		g.Go(func() error {
			song, created, err := s.importFile(gctx, filepath.Join(s.dir, name))
			if err != nil {
				if ctxErr := gctx.Err(); ctxErr != nil {
					return ctxErr
				}
				failed.Add(1)
				logger.Warn("[Scanner] file skipped", logger.String("file", name), logger.ErrorField(err))
				return nil
			}
			if created {
				added.Add(1)
			} else {
				updated.Add(1)
			}
			results[i] = song
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	report := &Report{
		Added:   int(added.Load()),
		Updated: int(updated.Load()),
		Failed:  int(failed.Load()),
		Songs:   make([]model.Song, 0, len(files)),
	}
	for _, song := range results {
		if song != nil {
			report.Songs = append(report.Songs, *song)
		}
	}
	report.Message = fmt.Sprintf("Successfully processed %d songs", len(report.Songs))
	logger.Info("[Scanner] scan finished",
		logger.String("dir", s.dir),
		logger.Int("added", report.Added),
		logger.Int("updated", report.Updated),
		logger.Int("failed", report.Failed))
	return report, nil
}

// importFile creates or refreshes the catalog row for path. The bool is
// true when a new song was created.
func (s *Scanner) importFile(ctx context.Context, path string) (*model.Song, bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, false, err
	}
	name := filepath.Base(path)
	artist, title := ParseFilename(name)
	moodTags := MoodTags(name, title)
	genres := Genres(name, title)
	mtime := info.ModTime()

	unlock := s.locks.lock(songKey(title, artist))
	defer unlock()

	existing, err := s.store.FindByTitleArtist(ctx, title, artist)
	switch {
	case err == nil:
		existing.IsLocal = true
		if existing.LocalPath == "" {
			existing.LocalPath = path
		}
		existing.FileSize = info.Size()
		existing.LastModified = &mtime
		if len(existing.Genres) == 0 {
			existing.Genres = genres
		}
		if len(existing.MoodTags) == 0 {
			existing.MoodTags = moodTags
		}
		if err := s.store.Update(ctx, existing); err != nil {
			return nil, false, fmt.Errorf("update song: %w", err)
		}
		return existing, false, nil
	case !errors.Is(err, apperr.ErrNotFound):
		return nil, false, fmt.Errorf("lookup song: %w", err)
	}

	song := model.NewSong(title, artist, localAlbum)
	song.Genres = genres
	song.MoodTags = moodTags
	song.LocalPath = path
	song.FileSize = info.Size()
	song.LastModified = &mtime
	song.IsLocal = true
	if err := s.store.Create(ctx, song); err != nil {
		return nil, false, fmt.Errorf("create song: %w", err)
	}
	logger.Debug("[Scanner] song added",
		logger.String("title", title),
		logger.String("artist", artist),
		logger.Strings("moodTags", moodTags))
	return song, true, nil
}

// Watch imports audio files as they appear until ctx is cancelled. A file
// is imported once no write event has arrived for it within settle.
func (s *Scanner) Watch(ctx context.Context, settle time.Duration) error {
	if settle <= 0 {
		settle = 500 * time.Millisecond
	}
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return fmt.Errorf("create music directory: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("创建文件监听器失败: %w", err)
	}
	defer watcher.Close()
	if err := watcher.Add(s.dir); err != nil {
		return fmt.Errorf("监听目录失败: %w", err)
	}
	logger.Info("[Scanner] watching music directory", logger.String("dir", s.dir))

	pending := make(map[string]time.Time)
	ticker := time.NewTicker(settle / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) != 0 && IsAudioFile(event.Name) {
				pending[event.Name] = time.Now()
			}

		case <-ticker.C:
			now := time.Now()
			for path, last := range pending {
				if now.Sub(last) < settle {
					continue // 可能还在写入
				}
				delete(pending, path)
				if _, _, err := s.importFile(ctx, path); err != nil {
					logger.Warn("[Scanner] watched file skipped", logger.String("file", path), logger.ErrorField(err))
				}
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("[Scanner] 文件监听错误", logger.ErrorField(err))
		}
	}
}
