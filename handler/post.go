package handler

import (
	"io"
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/hirosato/petsgram/feed"
	"github.com/hirosato/petsgram/model"
	"github.com/hirosato/petsgram/photo"
)

// multipart overhead allowed on top of the image itself
const formSlack = 1 << 20

func (h *Handler) ListPosts(c *gin.Context) {
	items, err := h.posts.List(c.Request.Context(), viewerOf(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, items)
}

// LivePosts streams the feed as server-sent "feed" events: the whole
// projection on connect and again after every change.
func (h *Handler) LivePosts(c *gin.Context) {
	ctx := c.Request.Context()
	updates := make(chan []model.FeedItem, 1)
	failures := make(chan error, 1)

	unsubscribe := h.posts.Subscribe(ctx, viewerOf(c), func(items []model.FeedItem) {
		// only the latest snapshot matters
		for {
			select {
			case updates <- items:
				return
			default:
			}
			select {
			case <-updates:
			default:
			}
		}
	}, func(err error) {
		select {
		case failures <- err:
		default:
		}
	})
	defer unsubscribe()

	c.Header("Cache-Control", "no-cache")
	c.Header("X-Accel-Buffering", "no")
	c.Stream(func(w io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case items := <-updates:
			c.SSEvent("feed", items)
			return true
		case err := <-failures:
			log.Printf("handler: live feed: %v", err)
			c.SSEvent("error", gin.H{"error": "failed to load posts"})
			return true
		}
	})
}

func (h *Handler) SubmitPost(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, photo.MaxUploadBytes+formSlack)

	header, err := c.FormFile("image")
	if err != nil {
		if strings.Contains(err.Error(), "request body too large") {
			writeError(c, photo.ErrTooLarge)
			return
		}
		writeError(c, feed.ErrImageRequired)
		return
	}
	draft := feed.Draft{
		Title:       c.PostForm("title"),
		Caption:     c.PostForm("caption"),
		Description: c.PostForm("description"),
	}
	file, err := header.Open()
	if err != nil {
		writeError(c, photo.ErrUnreadable)
		return
	}
	defer file.Close()

	draft.Image, err = photo.Normalize(file, header.Header.Get("Content-Type"), header.Size)
	if err != nil {
		writeError(c, err)
		return
	}
	item, err := h.posts.Submit(c.Request.Context(), viewerOf(c), draft)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, item)
}

func (h *Handler) GetPost(c *gin.Context) {
	item, err := h.posts.Get(c.Request.Context(), viewerOf(c), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, item)
}

func (h *Handler) ToggleLike(c *gin.Context) {
	item, err := h.posts.ToggleLike(c.Request.Context(), viewerOf(c), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, item)
}

func (h *Handler) SearchPosts(c *gin.Context) {
	query := strings.TrimSpace(c.Query("q"))
	if query == "" {
		c.JSON(http.StatusOK, []model.FeedItem{})
		return
	}
	items, err := h.posts.Search(c.Request.Context(), viewerOf(c), query)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, items)
}
