package feed

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/hirosato/petsgram/domain"
	"github.com/hirosato/petsgram/model"
	"github.com/hirosato/petsgram/util"
)

var ErrSearchDisabled = errors.New("search is not available")

const searchSize = 20

// DefaultPollInterval is used when Options.PollInterval is not positive.
const DefaultPollInterval = 5 * time.Second

type Options struct {
	// PollInterval defaults to DefaultPollInterval.
	PollInterval   time.Duration
	AnonymousLikes bool
	ImageCacheSize int
	// Now defaults to time.Now.
	Now func() time.Time
}

// Service runs the post flows: submitting, listing, watching, liking and
// searching.
type Service struct {
	posts  domain.PostStore
	images domain.ImageRepository
	search domain.SearchIndex

	anonymousLikes bool
	now            func() time.Time
	cache          *lru.Cache[string, string]
	watcher        *Watcher
}

// NewService wires the stores together. search may be nil.
func NewService(posts domain.PostStore, images domain.ImageRepository, search domain.SearchIndex, opts Options) (*Service, error) {
	cache, err := lru.New[string, string](opts.ImageCacheSize)
	if err != nil {
		return nil, fmt.Errorf("image cache: %w", err)
	}
	s := &Service{
		posts:          posts,
		images:         images,
		search:         search,
		anonymousLikes: opts.AnonymousLikes,
		now:            opts.Now,
		cache:          cache,
	}
	if s.now == nil {
		s.now = time.Now
	}
	interval := opts.PollInterval
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	s.watcher = NewWatcher(s.load, interval)
	return s, nil
}

func imageKey() string {
	return "posts/" + uuid.New().String() + ".jpg"
}

// Submit validates a draft and stores it as a new post.
func (s *Service) Submit(ctx context.Context, viewer model.Viewer, draft Draft) (model.FeedItem, error) {
	log.Printf("EVENT: Submit start")
	defer log.Printf("EVENT: Submit end")

	if err := ValidateDraft(draft); err != nil {
		return model.FeedItem{}, err
	}
	username := viewer.Username
	if viewer.IsAnonymous() || username == "" {
		username = model.Anonymous
	}
	post := model.Post{
		Feed:        model.FeedKey,
		UserId:      viewer.Identity(),
		Username:    username,
		Title:       strings.TrimSpace(draft.Title),
		Caption:     draft.Caption,
		Description: draft.Description,
		ImageKey:    imageKey(),
		LikedBy:     []string{},
		Comments:    []string{},
		CreatedAt:   util.Timestamp(s.now()),
	}

	if err := s.images.Add(ctx, post.ImageKey, draft.Image.DataURL); err != nil {
		return model.FeedItem{}, fmt.Errorf("store image: %w", err)
	}
	id, err := s.posts.CreatePost(ctx, &post)
	if err != nil {
		s.images.Remove(ctx, post.ImageKey)
		return model.FeedItem{}, fmt.Errorf("create post: %w", err)
	}
	post.Id = id
	log.Printf("EVENT: Submitting %s, store done", post.Id)
	s.cache.Add(post.ImageKey, draft.Image.DataURL)

	if s.search != nil {
		if err := s.search.IndexPost(ctx, &post); err != nil {
			log.Printf("feed: index post %s: %v", post.Id, err)
		}
	}
	s.watcher.Notify()

	post.ImageBase64 = draft.Image.DataURL
	return ProjectPost(post, viewer), nil
}

// hydrate fills in the image of each post from object storage. A missing
// image leaves the post without one rather than failing the feed.
func (s *Service) hydrate(ctx context.Context, posts []model.Post) {
	for i := range posts {
		key := posts[i].ImageKey
		if key == "" || posts[i].ImageBase64 != "" {
			continue
		}
		if data, ok := s.cache.Get(key); ok {
			posts[i].ImageBase64 = data
			continue
		}
		data, err := s.images.Get(ctx, key)
		if err != nil {
			log.Printf("feed: load image %s of post %s: %v", key, posts[i].Id, err)
			continue
		}
		s.cache.Add(key, data)
		posts[i].ImageBase64 = data
	}
}

func (s *Service) load(ctx context.Context) ([]model.Post, error) {
	posts, err := s.posts.ListPosts(ctx)
	if err != nil {
		return nil, err
	}
	SortPosts(posts)
	s.hydrate(ctx, posts)
	return posts, nil
}

// List is the one-shot feed.
func (s *Service) List(ctx context.Context, viewer model.Viewer) ([]model.FeedItem, error) {
	posts, err := s.load(ctx)
	if err != nil {
		return nil, fmt.Errorf("list posts: %w", err)
	}
	return Project(posts, viewer), nil
}

func (s *Service) Get(ctx context.Context, viewer model.Viewer, id string) (model.FeedItem, error) {
	post, err := s.posts.GetPost(ctx, id)
	if err != nil {
		return model.FeedItem{}, err
	}
	posts := []model.Post{post}
	s.hydrate(ctx, posts)
	return ProjectPost(posts[0], viewer), nil
}

// Subscribe is the live feed: onChange receives the whole projection on
// every upstream change.
func (s *Service) Subscribe(ctx context.Context, viewer model.Viewer, onChange func([]model.FeedItem), onError func(error)) (unsubscribe func()) {
	view := NewFeed(s.posts, viewer)
	return s.watcher.Subscribe(ctx, func(posts []model.Post) {
		view.Replace(posts)
		onChange(view.Items())
	}, onError)
}

// ToggleLike likes or unlikes a post for the viewer. The returned item
// carries no image.
func (s *Service) ToggleLike(ctx context.Context, viewer model.Viewer, id string) (model.FeedItem, error) {
	if viewer.IsAnonymous() && !s.anonymousLikes {
		return model.FeedItem{}, domain.ErrUnauthorized
	}
	post, err := s.posts.GetPost(ctx, id)
	if err != nil {
		return model.FeedItem{}, err
	}
	view := NewFeed(s.posts, viewer)
	view.Replace([]model.Post{post})
	item, err := view.ToggleLike(ctx, id)
	if err != nil {
		return model.FeedItem{}, err
	}
	s.watcher.Notify()
	return item, nil
}

// Search returns matching posts in relevance order.
func (s *Service) Search(ctx context.Context, viewer model.Viewer, query string) ([]model.FeedItem, error) {
	if s.search == nil {
		return nil, ErrSearchDisabled
	}
	ids, err := s.search.SearchPosts(ctx, query, searchSize)
	if err != nil {
		return nil, fmt.Errorf("search posts: %w", err)
	}
	posts := make([]model.Post, 0, len(ids))
	for _, id := range ids {
		post, err := s.posts.GetPost(ctx, id)
		if errors.Is(err, domain.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		posts = append(posts, post)
	}
	s.hydrate(ctx, posts)
	items := make([]model.FeedItem, len(posts))
	for i := range posts {
		items[i] = ProjectPost(posts[i], viewer)
	}
	return items, nil
}
