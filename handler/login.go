package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/hirosato/petsgram/account"
	"github.com/hirosato/petsgram/domain"
	"github.com/hirosato/petsgram/model"
)

type credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (h *Handler) Register(c *gin.Context) {
	var reg account.Registration
	if err := c.ShouldBindJSON(&reg); err != nil {
		writeError(c, account.ErrFieldsRequired)
		return
	}
	user, err := h.accounts.Register(c.Request.Context(), reg)
	if err != nil {
		writeError(c, err)
		return
	}
	h.signIn(c, http.StatusCreated, user)
}

func (h *Handler) Login(c *gin.Context) {
	var creds credentials
	if err := c.ShouldBindJSON(&creds); err != nil {
		writeError(c, account.ErrCredentialsRequired)
		return
	}
	user, err := h.accounts.Login(c.Request.Context(), creds.Username, creds.Password)
	if err != nil {
		writeError(c, err)
		return
	}
	h.signIn(c, http.StatusOK, user)
}

func (h *Handler) signIn(c *gin.Context, status int, user model.User) {
	if err := h.sessions.Create(c.Writer, c.Request, user); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(status, user)
}

func (h *Handler) Logout(c *gin.Context) {
	h.sessions.Destroy(c.Writer, c.Request)
	c.Status(http.StatusNoContent)
}

func (h *Handler) Me(c *gin.Context) {
	viewer := viewerOf(c)
	if viewer.IsAnonymous() {
		writeError(c, domain.ErrUnauthorized)
		return
	}
	user, err := h.accounts.Profile(c.Request.Context(), viewer)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}
