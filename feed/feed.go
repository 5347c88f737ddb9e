package feed

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/hirosato/petsgram/domain"
	"github.com/hirosato/petsgram/model"
)

var ErrLikeFailed = errors.New("failed to update like")

type likeStore interface {
	AddLiker(ctx context.Context, postId string, identity string) error
	RemoveLiker(ctx context.Context, postId string, identity string) error
}

// Feed is one viewer's in-memory copy of the feed. Likes are applied to it
// before the store confirms them.
type Feed struct {
	store  likeStore
	viewer model.Viewer

	mu    sync.Mutex
	posts []model.Post
}

func NewFeed(store likeStore, viewer model.Viewer) *Feed {
	return &Feed{store: store, viewer: viewer}
}

// Replace swaps in a fresh snapshot from the store.
func (f *Feed) Replace(posts []model.Post) {
	ordered := make([]model.Post, len(posts))
	for i, post := range posts {
		post.LikedBy = NormalizeLikers(post.LikedBy)
		ordered[i] = post
	}
	SortPosts(ordered)
	f.mu.Lock()
	f.posts = ordered
	f.mu.Unlock()
}

func (f *Feed) Items() []model.FeedItem {
	f.mu.Lock()
	defer f.mu.Unlock()
	items := make([]model.FeedItem, len(f.posts))
	for i := range f.posts {
		items[i] = ProjectPost(f.posts[i], f.viewer)
	}
	return items
}

func (f *Feed) find(postId string) *model.Post {
	for i := range f.posts {
		if f.posts[i].Id == postId {
			return &f.posts[i]
		}
	}
	return nil
}

func setLiker(post *model.Post, identity string, liked bool) {
	likers := make([]string, 0, len(post.LikedBy)+1)
	for _, id := range post.LikedBy {
		if id != identity {
			likers = append(likers, id)
		}
	}
	if liked {
		likers = append(likers, identity)
	}
	post.LikedBy = likers
}

// ToggleLike flips the viewer's like on a post. The local copy changes
// right away; if the store rejects the change the viewer's membership is put
// back the way it was and the error is returned.
func (f *Feed) ToggleLike(ctx context.Context, postId string) (model.FeedItem, error) {
	identity := f.viewer.Identity()

	f.mu.Lock()
	post := f.find(postId)
	if post == nil {
		f.mu.Unlock()
		return model.FeedItem{}, domain.ErrNotFound
	}
	wasLiked := post.HasLiker(identity)
	setLiker(post, identity, !wasLiked)
	f.mu.Unlock()

	var err error
	if wasLiked {
		err = f.store.RemoveLiker(ctx, postId, identity)
	} else {
		err = f.store.AddLiker(ctx, postId, identity)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	// Replace may have run meanwhile, look the post up again
	post = f.find(postId)
	if err != nil {
		log.Printf("feed: toggle like on %s for %s: %v", postId, identity, err)
		if post != nil {
			setLiker(post, identity, wasLiked)
		}
		return model.FeedItem{}, fmt.Errorf("%w: %w", ErrLikeFailed, err)
	}
	if post == nil {
		return model.FeedItem{}, domain.ErrNotFound
	}
	return ProjectPost(*post, f.viewer), nil
}
