package db

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"

	"github.com/elastic/go-elasticsearch/v7"
	"github.com/elastic/go-elasticsearch/v7/esapi"
	"github.com/hirosato/petsgram/domain"
	"github.com/hirosato/petsgram/model"
)

// Search indexes post text in Elasticsearch.
type Search struct {
	es    *elasticsearch.Client
	index string
}

// NewSearch connects to url. transport may be nil for the default one.
func NewSearch(url string, index string, transport http.RoundTripper) (*Search, error) {
	es, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: []string{url},
		Transport: transport,
	})
	if err != nil {
		return nil, err
	}
	return &Search{es: es, index: index}, nil
}

type searchDocument struct {
	Id          string `json:"id"`
	Username    string `json:"username"`
	Title       string `json:"title"`
	Caption     string `json:"caption"`
	Description string `json:"description"`
	CreatedAt   string `json:"createdAt"`
}

func responseError(res *esapi.Response) error {
	body, _ := io.ReadAll(io.LimitReader(res.Body, 1000))
	return fmt.Errorf("elasticsearch: %s: %s", res.Status(), strings.TrimSpace(string(body)))
}

// Setup creates the index unless it exists.
func (s *Search) Setup(ctx context.Context) error {
	res, err := s.es.Indices.Create(s.index, s.es.Indices.Create.WithContext(ctx))
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.StatusCode == http.StatusBadRequest {
		log.Printf("db: index %s already exists", s.index)
		return nil
	}
	if res.IsError() {
		return responseError(res)
	}
	log.Printf("db: created index %s", s.index)
	return nil
}

func (s *Search) IndexPost(ctx context.Context, post *model.Post) error {
	log.Printf("EVENT: put ES start")
	body, err := json.Marshal(searchDocument{
		Id:          post.Id,
		Username:    post.Username,
		Title:       post.Title,
		Caption:     post.Caption,
		Description: post.Description,
		CreatedAt:   post.CreatedAt,
	})
	if err != nil {
		return err
	}
	req := esapi.IndexRequest{
		Index:      s.index,
		DocumentID: post.Id,
		Body:       bytes.NewReader(body),
	}
	res, err := req.Do(ctx, s.es)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.IsError() {
		return responseError(res)
	}
	log.Printf("EVENT: put ES end")
	return nil
}

type searchResult struct {
	Hits struct {
		Hits []struct {
			Id string `json:"_id"`
		} `json:"hits"`
	} `json:"hits"`
}

// SearchPosts returns the ids of the best matching posts.
func (s *Search) SearchPosts(ctx context.Context, query string, size int) ([]string, error) {
	var buf bytes.Buffer
	q := map[string]interface{}{
		"query": map[string]interface{}{
			"multi_match": map[string]interface{}{
				"query":  query,
				"fields": []string{"title^2", "caption", "description", "username"},
			},
		},
	}
	if err := json.NewEncoder(&buf).Encode(q); err != nil {
		return nil, err
	}
	res, err := s.es.Search(
		s.es.Search.WithContext(ctx),
		s.es.Search.WithIndex(s.index),
		s.es.Search.WithBody(&buf),
		s.es.Search.WithSize(size),
	)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()
	if res.IsError() {
		return nil, responseError(res)
	}
	var result searchResult
	if err := json.NewDecoder(res.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode search result: %w", err)
	}
	ids := make([]string, len(result.Hits.Hits))
	for i, hit := range result.Hits.Hits {
		ids[i] = hit.Id
	}
	return ids, nil
}

var _ domain.SearchIndex = (*Search)(nil)
