package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/quillbin/quillbin/internal/document"
	"github.com/quillbin/quillbin/internal/share"
	"github.com/quillbin/quillbin/pkg/logger"
	"github.com/quillbin/quillbin/pkg/metrics"
)

const defaultListLimit = 20

// DocumentHandler translates HTTP requests into document store calls and
// store errors back into status codes. All access-control context travels
// as an optional bearer token; there are no accounts.
type DocumentHandler struct {
	Store          *document.Store
	ShareSecret    string
	ShareBaseURL   string
	MaxShareExpiry int // minutes
}

// RegisterDocumentRoutes registers the document API under /api.
func RegisterDocumentRoutes(r *gin.Engine, h *DocumentHandler) {
	r.GET("/api/documents", h.ListPublic)
	r.GET("/api/documents/mine", h.ListMine)
	r.POST("/api/documents", h.Create)
	r.GET("/api/documents/:id", h.Get)
	r.PATCH("/api/documents/:id", h.Update)
	r.DELETE("/api/documents/:id", h.Delete)
	r.GET("/api/documents/:id/raw", h.Raw)
	r.GET("/api/documents/:id/versions/:versionId", h.GetVersion)
	r.POST("/api/documents/:id/share", h.IssueShare)
	r.GET("/api/share/:token", h.RedeemShare)
}

// bearerToken extracts an optional 'Bearer <token>' credential. Absence is
// not an error; it just means an anonymous caller.
func bearerToken(c *gin.Context) string {
	auth := c.GetHeader("Authorization")
	const prefix = "Bearer "
	if strings.HasPrefix(auth, prefix) {
		return strings.TrimSpace(auth[len(prefix):])
	}
	return ""
}

// writeStoreError maps the store's error taxonomy onto status codes.
func writeStoreError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, document.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.Is(err, document.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
	case errors.Is(err, document.ErrTooLarge):
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "content too large"})
	case errors.Is(err, document.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		logger.Errorf("document store: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func opOutcome(op string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	metrics.DocumentOps.WithLabelValues(op, outcome).Inc()
}

// Create accepts { title, content } plus an optional owner token and stores
// the document with its first version.
func (h *DocumentHandler) Create(c *gin.Context) {
	var req struct {
		Title   string  `json:"title"`
		Content *string `json:"content"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Content == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "content is required"})
		return
	}

	view, ver, err := h.Store.Create(c.Request.Context(), req.Title, *req.Content, bearerToken(c))
	opOutcome("create", err)
	if err != nil {
		writeStoreError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"document": view, "version": ver})
}

// Update appends a new version to an existing document.
func (h *DocumentHandler) Update(c *gin.Context) {
	var req struct {
		Content *string `json:"content"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Content == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "content is required"})
		return
	}

	view, ver, err := h.Store.Update(c.Request.Context(), c.Param("id"), *req.Content, bearerToken(c))
	opOutcome("update", err)
	if err != nil {
		writeStoreError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"document": view, "version": ver})
}

// Delete removes a document, all its versions and its index entry.
func (h *DocumentHandler) Delete(c *gin.Context) {
	err := h.Store.Delete(c.Request.Context(), c.Param("id"), bearerToken(c))
	opOutcome("delete", err)
	if err != nil {
		writeStoreError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Get returns the sanitized document view.
func (h *DocumentHandler) Get(c *gin.Context) {
	view, ok, err := h.Store.Get(c.Request.Context(), c.Param("id"), bearerToken(c))
	if err != nil {
		writeStoreError(c, err)
		return
	}
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	c.JSON(http.StatusOK, view)
}

// Raw serves plain-text content of the latest version or of ?version=.
// Private documents require the owner token or ?key=<current raw key>.
// ?share= carries a share-link token; it is verified for metrics but grants
// no more than public access, matching the public-only share scope.
func (h *DocumentHandler) Raw(c *gin.Context) {
	if tok := c.Query("share"); tok != "" {
		if p, ok := share.VerifyToken(tok, h.ShareSecret); !ok || p.DocumentID != c.Param("id") {
			metrics.ShareTokensRejected.Inc()
		}
	}

	content, err := h.Store.RawContent(c.Request.Context(), c.Param("id"), c.Query("version"), bearerToken(c), c.Query("key"))
	if err != nil {
		writeStoreError(c, err)
		return
	}
	c.Data(http.StatusOK, "text/plain; charset=utf-8", []byte(content))
}

// GetVersion returns one version's metadata together with its content,
// under the same access rule as Raw.
func (h *DocumentHandler) GetVersion(c *gin.Context) {
	id := c.Param("id")
	versionID := c.Param("versionId")

	// Enforce the raw-access rule first; GetVersion itself is credential-blind.
	if _, err := h.Store.RawContent(c.Request.Context(), id, versionID, bearerToken(c), c.Query("key")); err != nil {
		writeStoreError(c, err)
		return
	}
	ver, ok, err := h.Store.GetVersion(c.Request.Context(), id, versionID)
	if err != nil {
		writeStoreError(c, err)
		return
	}
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	c.JSON(http.StatusOK, ver)
}

func (h *DocumentHandler) list(c *gin.Context, mine bool) {
	limit := defaultListLimit
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be an integer"})
			return
		}
		limit = n
	}
	token := bearerToken(c)

	var (
		page document.Page
		err  error
	)
	if mine {
		if token == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "owner token is required"})
			return
		}
		page, err = h.Store.ListOwner(c.Request.Context(), token, limit, c.Query("cursor"))
	} else {
		page, err = h.Store.ListPublic(c.Request.Context(), token, limit, c.Query("cursor"))
	}
	if err != nil {
		writeStoreError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

// ListPublic pages through public documents, newest touch first.
func (h *DocumentHandler) ListPublic(c *gin.Context) { h.list(c, false) }

// ListMine pages through the caller's documents.
func (h *DocumentHandler) ListMine(c *gin.Context) { h.list(c, true) }

// IssueShare mints a signed, expiring share token for a document. The owner
// may share a private document (redeemable once it is public); anyone may
// mint a link for a public one.
func (h *DocumentHandler) IssueShare(c *gin.Context) {
	var req struct {
		ExpiresInMinutes int `json:"expiresInMinutes"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	id := c.Param("id")
	view, ok, err := h.Store.Get(c.Request.Context(), id, bearerToken(c))
	if err != nil {
		writeStoreError(c, err)
		return
	}
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	if view.IsPrivate && !view.IsOwner {
		c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
		return
	}

	minutes := req.ExpiresInMinutes
	if minutes < 1 {
		minutes = 1
	}
	if minutes > h.MaxShareExpiry {
		minutes = h.MaxShareExpiry
	}
	expiresAt := time.Now().Add(time.Duration(minutes) * time.Minute).UnixMilli()

	token, err := share.CreateToken(share.Payload{DocumentID: id, ExpiresAt: expiresAt}, h.ShareSecret)
	if err != nil {
		logger.Errorf("share token: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	metrics.ShareTokensIssued.Inc()
	c.JSON(http.StatusOK, gin.H{
		"token":     token,
		"url":       h.ShareBaseURL + "/api/documents/" + id + "/raw?share=" + token,
		"expiresAt": expiresAt,
	})
}

// RedeemShare resolves a share token to a document view. Share links are
// public-scope only: a valid token for a document that is (or has become)
// private is rejected the same way as an invalid one.
func (h *DocumentHandler) RedeemShare(c *gin.Context) {
	payload, ok := share.VerifyToken(c.Param("token"), h.ShareSecret)
	if !ok {
		metrics.ShareTokensRejected.Inc()
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	view, ok, err := h.Store.Get(c.Request.Context(), payload.DocumentID, "")
	if err != nil {
		writeStoreError(c, err)
		return
	}
	if !ok || view.IsPrivate {
		metrics.ShareTokensRejected.Inc()
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	c.JSON(http.StatusOK, view)
}
