package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tyburd/mangabot/internal/manga"
	"github.com/tyburd/mangabot/internal/registry"
	"github.com/tyburd/mangabot/internal/store"
	"github.com/tyburd/mangabot/internal/tracker"
)

const (
	requestTimeout = 5 * time.Second
	searchTimeout  = 30 * time.Second
	pollTimeout    = 5 * time.Minute
)

// Tracker is the subscription side of the bot
type Tracker interface {
	Subscribe(ctx context.Context, req tracker.SubscribeRequest) (*tracker.SubscribeResult, error)
	Unsubscribe(ctx context.Context, rawURL, chatID string) error
	Subscriptions(ctx context.Context, chatID string) ([]store.Subscription, error)
	UpdateLastChapter(ctx context.Context, rawURL string, force bool) (*store.LastChapter, error)
	Registry() *registry.Registry
}

// Poller runs an update check on demand
type Poller interface {
	CheckOnce(ctx context.Context) (*tracker.Report, error)
}

// errorStatus maps domain errors onto HTTP statuses
func errorStatus(err error) int {
	switch {
	case errors.Is(err, tracker.ErrUnknownSource), errors.Is(err, tracker.ErrNeedsSearch):
		return http.StatusUnprocessableEntity
	case errors.Is(err, store.ErrSubscriptionExists), errors.Is(err, tracker.ErrPollInProgress):
		return http.StatusConflict
	case errors.Is(err, tracker.ErrSubscriptionNotFound), errors.Is(err, tracker.ErrNoChapters):
		return http.StatusNotFound
	case errors.Is(err, tracker.ErrInvalidChatID), errors.Is(err, store.ErrInvalidOutputFormat):
		return http.StatusBadRequest
	case errors.Is(err, manga.ErrSourceUnavailable), errors.Is(err, manga.ErrUnexpectedFormat):
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func respondError(c *gin.Context, err error) {
	c.JSON(errorStatus(err), gin.H{"error": err.Error()})
}

// ============================================
// AUTH
// ============================================

type AuthHandler struct {
	svc AuthService
}

func NewAuthHandler(svc AuthService) *AuthHandler {
	return &AuthHandler{svc: svc}
}

func (h *AuthHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/token", h.Token)
}

// Token exchanges the admin key for a bearer token
func (h *AuthHandler) Token(c *gin.Context) {
	var req TokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	token, expiresAt, err := h.svc.IssueToken(req.AdminKey)
	if err != nil {
		if errors.Is(err, ErrInvalidAdminKey) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid admin key"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, TokenResponse{AccessToken: token, TokenType: "Bearer", ExpiresAt: expiresAt})
}

// ============================================
// SOURCES
// ============================================

type ClientHandler struct {
	registry *registry.Registry
}

func NewClientHandler(reg *registry.Registry) *ClientHandler {
	return &ClientHandler{registry: reg}
}

func (h *ClientHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/clients", h.List)
	rg.GET("/clients/:name/search", h.Search)
	rg.POST("/resolve", h.Resolve)
}

// List returns the configured source names
func (h *ClientHandler) List(c *gin.Context) {
	clients := h.registry.Clients()
	names := make([]string, 0, len(clients))
	for _, client := range clients {
		names = append(names, client.Name())
	}
	c.JSON(http.StatusOK, gin.H{"clients": names})
}

// Search queries one source and remembers the cards it returns
func (h *ClientHandler) Search(c *gin.Context) {
	client, ok := h.registry.Client(c.Param("name"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown client"})
		return
	}

	page := 1
	if raw := c.Query("page"); raw != "" {
		p, err := strconv.Atoi(raw)
		if err != nil || p < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "page must be a positive integer"})
			return
		}
		page = p
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), searchTimeout)
	defer cancel()

	cards, err := client.Search(ctx, c.Query("q"), page)
	if err != nil {
		respondError(c, err)
		return
	}
	h.registry.Remember(cards...)

	results := make([]CardResponse, 0, len(cards))
	for _, card := range cards {
		results = append(results, FromCard(card))
	}
	c.JSON(http.StatusOK, gin.H{"results": results, "page": page})
}

// Resolve reports which source owns a URL
func (h *ClientHandler) Resolve(c *gin.Context) {
	var req ResolveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	res, ok := h.registry.Resolve(req.URL)
	if !ok {
		respondError(c, tracker.ErrUnknownSource)
		return
	}

	resp := gin.H{"url": res.URL, "client": res.Client.Name(), "known": res.Card != nil}
	if res.Card != nil {
		resp["card"] = FromCard(*res.Card)
	}
	c.JSON(http.StatusOK, resp)
}

// ============================================
// SUBSCRIPTIONS
// ============================================

type SubscriptionHandler struct {
	svc Tracker
}

func NewSubscriptionHandler(svc Tracker) *SubscriptionHandler {
	return &SubscriptionHandler{svc: svc}
}

func (h *SubscriptionHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/subscriptions", h.List)
	rg.POST("/subscriptions", h.Subscribe)
	rg.DELETE("/subscriptions", h.Unsubscribe)
	rg.POST("/last-chapter", h.UpdateLastChapter)
}

// List returns the subscriptions of one chat, or all of them
func (h *SubscriptionHandler) List(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	subs, err := h.svc.Subscriptions(ctx, c.Query("chat_id"))
	if err != nil {
		respondError(c, err)
		return
	}

	items := make([]SubscriptionResponse, 0, len(subs))
	for _, sub := range subs {
		items = append(items, FromSubscription(sub))
	}
	c.JSON(http.StatusOK, gin.H{"subscriptions": items})
}

func (h *SubscriptionHandler) Subscribe(c *gin.Context) {
	var req SubscribeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if req.OutputFormat == "" {
		req.OutputFormat = string(store.OutputPDF)
	}

	// the first chapter listing can be slow on large series
	ctx, cancel := context.WithTimeout(c.Request.Context(), searchTimeout)
	defer cancel()

	res, err := h.svc.Subscribe(ctx, tracker.SubscribeRequest{
		URL:          req.URL,
		ChatID:       req.ChatID,
		OutputFormat: req.OutputFormat,
		Caption:      req.Caption,
		ForceUpdate:  req.ForceUpdate,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, SubscribeResponse{
		Subscription: FromSubscription(*res.Subscription),
		Name:         res.Name,
		LastChapter:  FromLastChapter(res.LastChapter),
	})
}

func (h *SubscriptionHandler) Unsubscribe(c *gin.Context) {
	var req UnsubscribeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	if err := h.svc.Unsubscribe(ctx, req.URL, req.ChatID); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "subscription removed"})
}

// UpdateLastChapter refreshes the stored pointer of a series
func (h *SubscriptionHandler) UpdateLastChapter(c *gin.Context) {
	var req LastChapterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), searchTimeout)
	defer cancel()

	lc, err := h.svc.UpdateLastChapter(ctx, req.URL, req.Force)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, FromLastChapter(lc))
}

// ============================================
// POLL
// ============================================

type PollHandler struct {
	poller Poller
}

func NewPollHandler(poller Poller) *PollHandler {
	return &PollHandler{poller: poller}
}

func (h *PollHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/poll", h.Poll)
}

// Poll runs one update check and returns its report
func (h *PollHandler) Poll(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), pollTimeout)
	defer cancel()

	report, err := h.poller.CheckOnce(ctx)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, FromReport(report))
}
