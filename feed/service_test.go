package feed

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/hirosato/petsgram/domain"
	"github.com/hirosato/petsgram/model"
	"github.com/hirosato/petsgram/photo"
	"github.com/vincent-petithory/dataurl"
)

var fixedNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func newTestService(t *testing.T, store *memStore, images *memImages, search domain.SearchIndex, anonymousLikes bool) *Service {
	t.Helper()
	svc, err := NewService(store, images, search, Options{
		PollInterval:   time.Hour,
		AnonymousLikes: anonymousLikes,
		ImageCacheSize: 16,
		Now:            func() time.Time { return fixedNow },
	})
	if err != nil {
		t.Fatalf("NewService() error = %v", err)
	}
	return svc
}

func normalizedPNG(t *testing.T, w, h int) *photo.Normalized {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	img.Set(1, 1, color.RGBA{R: 255, A: 255})
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	n, err := photo.Normalize(&buf, "image/png", int64(buf.Len()))
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}
	return n
}

func TestService_Submit(t *testing.T) {
	ctx := context.Background()
	alice := model.Viewer{UserId: "u-alice", Username: "alice"}

	t.Run("stores a normalized post", func(t *testing.T) {
		store, images := newMemStore(), newMemImages()
		search := &memSearch{}
		svc := newTestService(t, store, images, search, true)

		item, err := svc.Submit(ctx, alice, Draft{
			Title:       "Fido",
			Caption:     "good boy",
			Description: "at the park",
			Image:       normalizedPNG(t, 1200, 600),
		})
		if err != nil {
			t.Fatalf("Submit() error = %v", err)
		}

		stored, err := store.GetPost(ctx, item.Id)
		if err != nil {
			t.Fatalf("GetPost() error = %v", err)
		}
		want := model.Post{
			Id:          item.Id,
			Feed:        model.FeedKey,
			UserId:      "u-alice",
			Username:    "alice",
			Title:       "Fido",
			Caption:     "good boy",
			Description: "at the park",
			ImageKey:    stored.ImageKey,
			LikedBy:     []string{},
			Comments:    []string{},
			CreatedAt:   "2024-06-01T12:00:00.000Z",
		}
		if diff := cmp.Diff(want, stored); diff != "" {
			t.Errorf("stored post mismatch (-want +got):\n%s", diff)
		}

		du, err := dataurl.DecodeString(images.objects[stored.ImageKey])
		if err != nil {
			t.Fatalf("stored image is not a data url: %v", err)
		}
		cfg, err := jpeg.DecodeConfig(bytes.NewReader(du.Data))
		if err != nil {
			t.Fatal(err)
		}
		if cfg.Width != 800 || cfg.Height != 400 {
			t.Errorf("stored image = %dx%d, want 800x400", cfg.Width, cfg.Height)
		}
		if item.ImageBase64 == "" || item.Liked || item.LikeCount != 0 {
			t.Errorf("Submit() item = liked %v count %d image %d bytes", item.Liked, item.LikeCount, len(item.ImageBase64))
		}
		if diff := cmp.Diff([]string{item.Id}, search.indexed); diff != "" {
			t.Errorf("indexed posts mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("anonymous author", func(t *testing.T) {
		store := newMemStore()
		svc := newTestService(t, store, newMemImages(), nil, true)
		item, err := svc.Submit(ctx, model.AnonymousViewer(), Draft{Title: "Rex", Image: normalizedPNG(t, 10, 10)})
		if err != nil {
			t.Fatalf("Submit() error = %v", err)
		}
		if item.UserId != model.Anonymous || item.Username != model.Anonymous {
			t.Errorf("author = %q/%q, want anonymous", item.UserId, item.Username)
		}
	})

	t.Run("rejected drafts create nothing", func(t *testing.T) {
		store, images := newMemStore(), newMemImages()
		svc := newTestService(t, store, images, nil, true)
		for _, draft := range []Draft{
			{Title: "", Image: normalizedPNG(t, 10, 10)},
			{Title: "Fido"},
		} {
			if _, err := svc.Submit(ctx, alice, draft); !isValidation(err) {
				t.Errorf("Submit() error = %v, want a validation error", err)
			}
		}
		if len(store.posts) != 0 || len(images.objects) != 0 {
			t.Errorf("rejected drafts left %d posts and %d images", len(store.posts), len(images.objects))
		}
	})

	t.Run("failed create removes the image", func(t *testing.T) {
		store, images := newMemStore(), newMemImages()
		store.createErr = errors.New("throttled")
		svc := newTestService(t, store, images, nil, true)
		_, err := svc.Submit(ctx, alice, Draft{Title: "Fido", Image: normalizedPNG(t, 10, 10)})
		if !errors.Is(err, store.createErr) {
			t.Errorf("Submit() error = %v, want %v", err, store.createErr)
		}
		if len(images.objects) != 0 {
			t.Errorf("%d orphan images left behind", len(images.objects))
		}
	})

	t.Run("failed image upload", func(t *testing.T) {
		store, images := newMemStore(), newMemImages()
		images.addErr = errors.New("bucket gone")
		svc := newTestService(t, store, images, nil, true)
		if _, err := svc.Submit(ctx, alice, Draft{Title: "Fido", Image: normalizedPNG(t, 10, 10)}); !errors.Is(err, images.addErr) {
			t.Errorf("Submit() error = %v, want %v", err, images.addErr)
		}
		if len(store.posts) != 0 {
			t.Error("post created without its image")
		}
	})
}

func TestService_List(t *testing.T) {
	ctx := context.Background()
	images := newMemImages()
	images.objects["k1"] = "data:image/jpeg;base64,AAAA"
	store := newMemStore(
		model.Post{Id: "old", ImageKey: "k1", CreatedAt: "2024-01-01T00:00:00.000Z", LikedBy: []string{"u-alice"}},
		model.Post{Id: "new", ImageKey: "missing", CreatedAt: "2024-02-01T00:00:00.000Z"},
	)
	svc := newTestService(t, store, images, nil, true)
	alice := model.Viewer{UserId: "u-alice"}

	items, err := svc.List(ctx, alice)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if diff := cmp.Diff([]string{"new", "old"}, ids(items)); diff != "" {
		t.Errorf("List() order mismatch (-want +got):\n%s", diff)
	}
	if items[1].ImageBase64 != "data:image/jpeg;base64,AAAA" || !items[1].Liked {
		t.Errorf("old post = image %q liked %v", items[1].ImageBase64, items[1].Liked)
	}
	if items[0].ImageBase64 != "" {
		t.Error("post with a missing image should render without one")
	}

	gets := images.gets
	if _, err := svc.List(ctx, alice); err != nil {
		t.Fatal(err)
	}
	// k1 is cached, only the missing key is fetched again
	if images.gets != gets+1 {
		t.Errorf("image gets = %d, want %d", images.gets, gets+1)
	}
}

func TestService_ToggleLike(t *testing.T) {
	ctx := context.Background()
	store := newMemStore(model.Post{Id: "p1", CreatedAt: "2024-01-01T00:00:00.000Z"})

	t.Run("like and unlike", func(t *testing.T) {
		svc := newTestService(t, store, newMemImages(), nil, true)
		bob := model.Viewer{UserId: "u-bob"}
		item, err := svc.ToggleLike(ctx, bob, "p1")
		if err != nil || !item.Liked || item.LikeCount != 1 {
			t.Fatalf("ToggleLike() = %+v, %v", item, err)
		}
		item, err = svc.ToggleLike(ctx, bob, "p1")
		if err != nil || item.Liked || item.LikeCount != 0 {
			t.Fatalf("ToggleLike() = %+v, %v", item, err)
		}
	})

	t.Run("unknown post", func(t *testing.T) {
		svc := newTestService(t, store, newMemImages(), nil, true)
		if _, err := svc.ToggleLike(ctx, model.AnonymousViewer(), "nope"); !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("ToggleLike() error = %v, want %v", err, domain.ErrNotFound)
		}
	})

	t.Run("anonymous likes disabled", func(t *testing.T) {
		svc := newTestService(t, store, newMemImages(), nil, false)
		if _, err := svc.ToggleLike(ctx, model.AnonymousViewer(), "p1"); !errors.Is(err, domain.ErrUnauthorized) {
			t.Errorf("ToggleLike() error = %v, want %v", err, domain.ErrUnauthorized)
		}
	})
}

func TestNewService_DefaultPollInterval(t *testing.T) {
	store := newMemStore(model.Post{Id: "p1", CreatedAt: "2024-01-01T00:00:00.000Z"})
	svc, err := NewService(store, newMemImages(), nil, Options{ImageCacheSize: 4})
	if err != nil {
		t.Fatalf("NewService() error = %v", err)
	}
	if svc.watcher.interval != DefaultPollInterval {
		t.Errorf("interval = %v, want %v", svc.watcher.interval, DefaultPollInterval)
	}

	updates := make(chan []model.FeedItem, 1)
	unsubscribe := svc.Subscribe(context.Background(), model.AnonymousViewer(), func(items []model.FeedItem) { updates <- items }, func(error) {})
	defer unsubscribe()
	select {
	case items := <-updates:
		if len(items) != 1 {
			t.Errorf("got %d items, want 1", len(items))
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for the live feed")
	}
}

func TestService_Subscribe(t *testing.T) {
	ctx := context.Background()
	store := newMemStore(model.Post{Id: "p1", CreatedAt: "2024-01-01T00:00:00.000Z"})
	svc := newTestService(t, store, newMemImages(), nil, true)
	carol := model.Viewer{UserId: "u-carol"}

	updates := make(chan []model.FeedItem, 10)
	unsubscribe := svc.Subscribe(ctx, carol, func(items []model.FeedItem) { updates <- items }, func(error) {})
	defer unsubscribe()

	wait := func() []model.FeedItem {
		t.Helper()
		select {
		case items := <-updates:
			return items
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for the live feed")
			return nil
		}
	}
	if items := wait(); len(items) != 1 || items[0].Liked {
		t.Fatalf("initial live feed = %+v", items)
	}
	if _, err := svc.ToggleLike(ctx, carol, "p1"); err != nil {
		t.Fatal(err)
	}
	if items := wait(); !items[0].Liked || items[0].LikeCount != 1 {
		t.Errorf("live feed after like = %+v", items)
	}
}

func TestService_Search(t *testing.T) {
	ctx := context.Background()
	store := newMemStore(
		model.Post{Id: "p1", Title: "Fido"},
		model.Post{Id: "p2", Title: "Rex"},
	)

	t.Run("disabled", func(t *testing.T) {
		svc := newTestService(t, store, newMemImages(), nil, true)
		if _, err := svc.Search(ctx, model.AnonymousViewer(), "fido"); !errors.Is(err, ErrSearchDisabled) {
			t.Errorf("Search() error = %v, want %v", err, ErrSearchDisabled)
		}
	})

	t.Run("keeps relevance order and skips stale hits", func(t *testing.T) {
		svc := newTestService(t, store, newMemImages(), &memSearch{hits: []string{"p2", "gone", "p1"}}, true)
		items, err := svc.Search(ctx, model.AnonymousViewer(), "dog")
		if err != nil {
			t.Fatalf("Search() error = %v", err)
		}
		if diff := cmp.Diff([]string{"p2", "p1"}, ids(items)); diff != "" {
			t.Errorf("Search() mismatch (-want +got):\n%s", diff)
		}
	})
}
