package domain

import (
	"context"

	"github.com/hirosato/petsgram/model"
)

// PostStore is the document store holding post records.
type PostStore interface {
	// CreatePost assigns the id and stores the record.
	CreatePost(ctx context.Context, post *model.Post) (string, error)
	GetPost(ctx context.Context, id string) (model.Post, error)
	// ListPosts returns every post, newest first.
	ListPosts(ctx context.Context) ([]model.Post, error)
	// AddLiker and RemoveLiker are set operations: repeating one is a no-op.
	AddLiker(ctx context.Context, postId string, identity string) error
	RemoveLiker(ctx context.Context, postId string, identity string) error
}

// UserStore holds accounts. CreateUser must fail with ErrDuplicateUsername
// when the username is taken, atomically.
type UserStore interface {
	CreateUser(ctx context.Context, user *model.User) error
	GetUserByUsername(ctx context.Context, username string) (model.User, error)
}

type SessionStore interface {
	PutSession(ctx context.Context, session model.Session) error
	GetSession(ctx context.Context, sessionId string) (model.Session, error)
	DeleteSession(ctx context.Context, sessionId string) error
}

// ImageRepository is the object storage holding post images as data URLs.
type ImageRepository interface {
	Add(ctx context.Context, key string, dataURL string) error
	Get(ctx context.Context, key string) (string, error)
	Remove(ctx context.Context, key string)
}

// SearchIndex is an optional full-text index over posts.
type SearchIndex interface {
	IndexPost(ctx context.Context, post *model.Post) error
	SearchPosts(ctx context.Context, query string, size int) ([]string, error)
}
