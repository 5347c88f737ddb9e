package feed

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/hirosato/petsgram/domain"
	"github.com/hirosato/petsgram/model"
)

type memStore struct {
	mu        sync.Mutex
	posts     map[string]model.Post
	next      int
	createErr error
	likeErr   error
	lists     int
}

func newMemStore(posts ...model.Post) *memStore {
	s := &memStore{posts: map[string]model.Post{}}
	for _, p := range posts {
		s.posts[p.Id] = p
	}
	return s
}

func (s *memStore) CreatePost(_ context.Context, post *model.Post) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.createErr != nil {
		return "", s.createErr
	}
	s.next++
	id := fmt.Sprintf("post-%03d", s.next)
	stored := *post
	stored.Id = id
	stored.ImageBase64 = ""
	s.posts[id] = stored
	return id, nil
}

func (s *memStore) GetPost(_ context.Context, id string) (model.Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.posts[id]
	if !ok {
		return model.Post{}, domain.ErrNotFound
	}
	p.LikedBy = append([]string{}, p.LikedBy...)
	return p, nil
}

func (s *memStore) ListPosts(_ context.Context) ([]model.Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lists++
	out := make([]model.Post, 0, len(s.posts))
	for _, p := range s.posts {
		p.LikedBy = append([]string{}, p.LikedBy...)
		out = append(out, p)
	}
	return out, nil
}

func (s *memStore) AddLiker(_ context.Context, id string, identity string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.likeErr != nil {
		return s.likeErr
	}
	p, ok := s.posts[id]
	if !ok {
		return domain.ErrNotFound
	}
	for _, l := range p.LikedBy {
		if l == identity {
			return nil
		}
	}
	p.LikedBy = append(append([]string(nil), p.LikedBy...), identity)
	s.posts[id] = p
	return nil
}

func (s *memStore) RemoveLiker(_ context.Context, id string, identity string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.likeErr != nil {
		return s.likeErr
	}
	p, ok := s.posts[id]
	if !ok {
		return domain.ErrNotFound
	}
	var likers []string
	for _, l := range p.LikedBy {
		if l != identity {
			likers = append(likers, l)
		}
	}
	p.LikedBy = likers
	s.posts[id] = p
	return nil
}

func (s *memStore) setLikeErr(err error) {
	s.mu.Lock()
	s.likeErr = err
	s.mu.Unlock()
}

type memImages struct {
	mu      sync.Mutex
	objects map[string]string
	gets    int
	addErr  error
}

func newMemImages() *memImages {
	return &memImages{objects: map[string]string{}}
}

func (m *memImages) Add(_ context.Context, key string, dataURL string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.addErr != nil {
		return m.addErr
	}
	m.objects[key] = dataURL
	return nil
}

func (m *memImages) Get(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gets++
	data, ok := m.objects[key]
	if !ok {
		return "", errors.New("no such key")
	}
	return data, nil
}

func (m *memImages) Remove(_ context.Context, key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
}

type memSearch struct {
	indexed []string
	hits    []string
}

func (m *memSearch) IndexPost(_ context.Context, post *model.Post) error {
	m.indexed = append(m.indexed, post.Id)
	return nil
}

func (m *memSearch) SearchPosts(_ context.Context, _ string, _ int) ([]string, error) {
	return m.hits, nil
}
