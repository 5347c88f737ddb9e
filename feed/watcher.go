package feed

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/hirosato/petsgram/model"
)

// Loader reads the whole feed from the store.
type Loader func(ctx context.Context) ([]model.Post, error)

// Watcher keeps subscribers up to date with the store. It re-reads on a
// fixed interval and right after Notify, and only calls back when something
// changed.
type Watcher struct {
	load     Loader
	interval time.Duration

	mu      sync.Mutex
	changed chan struct{}
}

func NewWatcher(load Loader, interval time.Duration) *Watcher {
	return &Watcher{
		load:     load,
		interval: interval,
		changed:  make(chan struct{}),
	}
}

// Notify wakes every subscriber. Call it after writing to the store.
func (w *Watcher) Notify() {
	w.mu.Lock()
	close(w.changed)
	w.changed = make(chan struct{})
	w.mu.Unlock()
}

func (w *Watcher) wake() <-chan struct{} {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.changed
}

// Subscribe calls onChange with the current feed, then again after every
// change, until ctx ends or unsubscribe is called. Callbacks run on one
// goroutine per subscription, never concurrently with each other.
func (w *Watcher) Subscribe(ctx context.Context, onChange func([]model.Post), onError func(error)) (unsubscribe func()) {
	ctx, cancel := context.WithCancel(ctx)
	go func() {
		ticker := time.NewTicker(w.interval)
		defer ticker.Stop()

		first := true
		var last string
		for {
			wake := w.wake()
			posts, err := w.load(ctx)
			switch {
			case ctx.Err() != nil:
				return
			case err != nil:
				onError(err)
			default:
				if fp := fingerprint(posts); first || fp != last {
					first = false
					last = fp
					onChange(posts)
				}
			}
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			case <-wake:
			}
		}
	}()
	return cancel
}

// fingerprint covers what can change on a post: its existence and its likers.
func fingerprint(posts []model.Post) string {
	var b strings.Builder
	for _, post := range posts {
		likers := NormalizeLikers(post.LikedBy)
		sort.Strings(likers)
		b.WriteString(post.Id)
		b.WriteByte('@')
		b.WriteString(post.CreatedAt)
		b.WriteByte(':')
		b.WriteString(strings.Join(likers, ","))
		b.WriteByte(';')
	}
	return b.String()
}
