package feed

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hirosato/petsgram/model"
)

func next(t *testing.T, ch <-chan []model.Post) []model.Post {
	t.Helper()
	select {
	case posts := <-ch:
		return posts
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a feed update")
		return nil
	}
}

func TestWatcher_Subscribe(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	w := NewWatcher(store.ListPosts, time.Hour)

	updates := make(chan []model.Post, 10)
	unsubscribe := w.Subscribe(ctx, func(posts []model.Post) { updates <- posts }, func(err error) {
		t.Errorf("unexpected error: %v", err)
	})
	defer unsubscribe()

	if got := next(t, updates); len(got) != 0 {
		t.Errorf("initial feed has %d posts, want 0", len(got))
	}

	if _, err := store.CreatePost(ctx, &model.Post{Title: "Fido"}); err != nil {
		t.Fatal(err)
	}
	w.Notify()
	if got := next(t, updates); len(got) != 1 {
		t.Errorf("feed has %d posts after create, want 1", len(got))
	}

	if err := store.AddLiker(ctx, "post-001", "anonymous"); err != nil {
		t.Fatal(err)
	}
	w.Notify()
	got := next(t, updates)
	if len(got) != 1 || len(got[0].LikedBy) != 1 {
		t.Errorf("feed after like = %+v", got)
	}
}

func TestWatcher_SkipsUnchanged(t *testing.T) {
	store := newMemStore(model.Post{Id: "p1"})
	w := NewWatcher(store.ListPosts, 10*time.Millisecond)

	updates := make(chan []model.Post, 100)
	unsubscribe := w.Subscribe(context.Background(), func(posts []model.Post) { updates <- posts }, func(error) {})
	next(t, updates)

	time.Sleep(100 * time.Millisecond)
	unsubscribe()
	if n := len(updates); n != 0 {
		t.Errorf("got %d updates for an unchanged feed", n)
	}
	store.mu.Lock()
	lists := store.lists
	store.mu.Unlock()
	if lists < 2 {
		t.Errorf("store read %d times, want the watcher to poll", lists)
	}
}

func TestWatcher_ReportsErrors(t *testing.T) {
	boom := errors.New("store down")
	w := NewWatcher(func(context.Context) ([]model.Post, error) { return nil, boom }, time.Hour)

	errs := make(chan error, 1)
	unsubscribe := w.Subscribe(context.Background(), func([]model.Post) {
		t.Error("onChange called on a failing store")
	}, func(err error) { errs <- err })
	defer unsubscribe()

	select {
	case err := <-errs:
		if !errors.Is(err, boom) {
			t.Errorf("onError(%v), want %v", err, boom)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for the error")
	}
}
