package handler

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/hirosato/petsgram/account"
	"github.com/hirosato/petsgram/domain"
	"github.com/hirosato/petsgram/feed"
	"github.com/hirosato/petsgram/model"
	"github.com/hirosato/petsgram/session"
)

const viewerKey = "viewer"

type Handler struct {
	posts    *feed.Service
	accounts *account.Service
	sessions *session.Manager
	frontUrl string
}

func New(posts *feed.Service, accounts *account.Service, sessions *session.Manager, frontUrl string) *Handler {
	return &Handler{posts: posts, accounts: accounts, sessions: sessions, frontUrl: frontUrl}
}

// Routes registers every endpoint on r.
func (h *Handler) Routes(r gin.IRouter) {
	r.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message": "pong",
		})
	})

	api := r.Group("/", h.AddCorsHeader, h.ResolveViewer)
	api.POST("/register", h.Register)
	api.POST("/login", h.Login)
	api.POST("/logout", h.Logout)
	api.GET("/me", h.Me)
	api.GET("/posts", h.ListPosts)
	api.GET("/posts/live", h.LivePosts)
	api.GET("/posts/search", h.SearchPosts)
	api.POST("/posts", h.SubmitPost)
	api.GET("/posts/:id", h.GetPost)
	api.POST("/posts/:id/like", h.ToggleLike)

	for _, path := range []string{"/register", "/login", "/logout", "/posts", "/posts/:id/like"} {
		r.OPTIONS(path, h.AddCorsHeader, ServePreflight)
	}
}

func (h *Handler) AddCorsHeader(c *gin.Context) {
	c.Header("Access-Control-Allow-Origin", h.frontUrl)
	c.Header("Access-Control-Allow-Credentials", "true")
	c.Header("Access-Control-Allow-Headers", "content-type")
	c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
}

func ServePreflight(c *gin.Context) {
	c.Status(http.StatusNoContent)
}

// ResolveViewer stores the requesting viewer on the context.
func (h *Handler) ResolveViewer(c *gin.Context) {
	c.Set(viewerKey, h.sessions.Viewer(c.Request))
	c.Next()
}

func viewerOf(c *gin.Context) model.Viewer {
	if v, ok := c.Get(viewerKey); ok {
		return v.(model.Viewer)
	}
	return model.AnonymousViewer()
}

// writeError answers with the status matching err. Backend failures get a
// fixed message; the cause only goes to the log.
func writeError(c *gin.Context, err error) {
	if verr, ok := domain.AsValidation(err); ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": verr.Message})
		return
	}
	switch {
	case errors.Is(err, domain.ErrDuplicateUsername):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrInvalidCredentials), errors.Is(err, domain.ErrUnauthorized):
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "post not found"})
	case errors.Is(err, feed.ErrSearchDisabled):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
	case errors.Is(err, feed.ErrLikeFailed):
		log.Printf("handler: %s %s: %v", c.Request.Method, c.Request.URL.Path, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": feed.ErrLikeFailed.Error()})
	default:
		log.Printf("handler: %s %s: %v", c.Request.Method, c.Request.URL.Path, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "something went wrong, please try again"})
	}
}
