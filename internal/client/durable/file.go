package durable

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	logctx "github.com/pribylovaa/club-portal/internal/pkg/log"
)

// DefaultDebounce — окно склейки событий файловой системы.
const DefaultDebounce = 50 * time.Millisecond

// File — хранилище в JSON-файле. Запись атомарна (временный файл + rename),
// права 0600: в файле лежит refresh-токен.
type File struct {
	path     string
	debounce time.Duration

	mu sync.Mutex
	// last — база наблюдателя: своя запись или то, что прочитал watchLoop.
	// Load её не сдвигает.
	last []byte
}

// NewFile создаёт хранилище по пути path. Каталог создаётся при первой записи.
func NewFile(path string) *File {
	return &File{path: filepath.Clean(path), debounce: DefaultDebounce}
}

// Path возвращает путь к файлу.
func (f *File) Path() string { return f.path }

func (f *File) Load() (Snapshot, error) {
	const op = "client.durable.File.Load"

	raw, err := os.ReadFile(f.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Snapshot{}, nil
		}
		return Snapshot{}, fmt.Errorf("%s: %w", op, err)
	}

	return decode(raw)
}

func (f *File) Save(s Snapshot) error {
	const op = "client.durable.File.Save"

	raw, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	tmp, err := os.CreateTemp(dir, ".state-*.tmp")
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // после успешного rename файла уже нет

	if err := tmp.Chmod(0o600); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("%s: %w", op, err)
	}
	if _, err := tmp.Write(raw); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := os.Rename(tmpName, f.path); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	f.last = raw

	return nil
}

// Watch наблюдает за каталогом файла (rename заменяет inode, поэтому
// наблюдение за самим файлом теряется после первой записи).
// Событие отдаётся, только если содержимое отличается от последнего известного:
// собственные Save и повторная запись того же содержимого не оповещают.
func (f *File) Watch(ctx context.Context) (<-chan struct{}, error) {
	const op = "client.durable.File.Watch"

	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if err := w.Add(dir); err != nil {
		_ = w.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	out := make(chan struct{}, 1)
	go f.watchLoop(ctx, w, out)

	return out, nil
}

func (f *File) watchLoop(ctx context.Context, w *fsnotify.Watcher, out chan<- struct{}) {
	defer close(out)
	defer w.Close()

	lg := logctx.From(ctx)
	name := filepath.Base(f.path)

	var timer *time.Timer
	var fire <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return

		case ev, ok := <-w.Events:
			if !ok {
				return
			}
			if filepath.Base(ev.Name) != name {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) &&
				!ev.Has(fsnotify.Remove) && !ev.Has(fsnotify.Rename) {
				continue
			}
			// Склеиваем серию событий одной записи.
			if timer == nil {
				timer = time.NewTimer(f.debounce)
			} else {
				timer.Reset(f.debounce)
			}
			fire = timer.C

		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			lg.Warn("durable_watch_error", slog.String("err", err.Error()))

		case <-fire:
			fire = nil
			if !f.changed() {
				continue
			}
			select {
			case out <- struct{}{}:
			default:
			}
		}
	}
}

// changed сравнивает содержимое файла с последним известным и запоминает новое.
func (f *File) changed() bool {
	raw, err := os.ReadFile(f.path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return false
		}
		raw = nil
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if bytes.Equal(raw, f.last) {
		return false
	}
	f.last = raw

	return true
}

func decode(raw []byte) (Snapshot, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return Snapshot{}, nil
	}

	var s Snapshot
	if err := json.Unmarshal(raw, &s); err != nil {
		return Snapshot{}, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}

	return s, nil
}

var (
	_ Store   = (*File)(nil)
	_ Watcher = (*File)(nil)
)
