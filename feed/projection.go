package feed

import (
	"sort"

	"github.com/hirosato/petsgram/model"
	"github.com/hirosato/petsgram/util"
)

// NormalizeLikers returns the liker set without duplicates, never nil.
// Older records may have no likedBy at all.
func NormalizeLikers(likers []string) []string {
	out := make([]string, 0, len(likers))
	seen := make(map[string]struct{}, len(likers))
	for _, id := range likers {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// newer reports whether a sorts before b in the feed: later CreatedAt first,
// then the larger id.
func newer(a, b *model.Post) bool {
	if a.CreatedAt != b.CreatedAt {
		ta, errA := util.ParseTimestamp(a.CreatedAt)
		tb, errB := util.ParseTimestamp(b.CreatedAt)
		if errA == nil && errB == nil && !ta.Equal(tb) {
			return ta.After(tb)
		}
		if errA != nil || errB != nil {
			return a.CreatedAt > b.CreatedAt
		}
	}
	return a.Id > b.Id
}

// SortPosts orders posts newest first, in place.
func SortPosts(posts []model.Post) {
	sort.SliceStable(posts, func(i, j int) bool {
		return newer(&posts[i], &posts[j])
	})
}

// ProjectPost derives the viewer's like state for one post.
func ProjectPost(post model.Post, viewer model.Viewer) model.FeedItem {
	post.LikedBy = NormalizeLikers(post.LikedBy)
	if post.Comments == nil {
		post.Comments = []string{}
	}
	return model.FeedItem{
		Post:      post,
		Liked:     post.HasLiker(viewer.Identity()),
		LikeCount: len(post.LikedBy),
	}
}

// Project turns stored posts into the ordered feed a viewer sees.
// The input slice is left untouched.
func Project(posts []model.Post, viewer model.Viewer) []model.FeedItem {
	ordered := make([]model.Post, len(posts))
	copy(ordered, posts)
	SortPosts(ordered)
	items := make([]model.FeedItem, len(ordered))
	for i := range ordered {
		items[i] = ProjectPost(ordered[i], viewer)
	}
	return items
}
