package api

import (
	"time"

	"github.com/tyburd/mangabot/internal/manga"
	"github.com/tyburd/mangabot/internal/notify"
	"github.com/tyburd/mangabot/internal/store"
	"github.com/tyburd/mangabot/internal/tracker"
)

type TokenRequest struct {
	AdminKey string `json:"admin_key" binding:"required"`
}

type TokenResponse struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresAt   time.Time `json:"expires_at"`
}

type ResolveRequest struct {
	URL string `json:"url" binding:"required"`
}

type SubscribeRequest struct {
	URL          string `json:"url" binding:"required"`
	ChatID       string `json:"chat_id" binding:"required"`
	OutputFormat string `json:"output_format"`
	Caption      string `json:"caption"`
	ForceUpdate  bool   `json:"force_update"`
}

type UnsubscribeRequest struct {
	URL    string `json:"url" binding:"required"`
	ChatID string `json:"chat_id" binding:"required"`
}

type LastChapterRequest struct {
	URL   string `json:"url" binding:"required"`
	Force bool   `json:"force"`
}

type CardResponse struct {
	Client    string `json:"client"`
	Name      string `json:"name"`
	URL       string `json:"url"`
	PublicURL string `json:"public_url"`
	CoverURL  string `json:"cover_url,omitempty"`
}

func FromCard(card manga.Card) CardResponse {
	resp := CardResponse{
		Name:      card.Name,
		URL:       card.URL,
		PublicURL: card.PublicURL(),
		CoverURL:  card.CoverURL,
	}
	if card.Client != nil {
		resp.Client = card.Client.Name()
	}
	return resp
}

type SubscriptionResponse struct {
	URL           string    `json:"url"`
	ChatID        string    `json:"chat_id"`
	OutputFormat  string    `json:"output_format"`
	CustomCaption *string   `json:"custom_caption,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

func FromSubscription(sub store.Subscription) SubscriptionResponse {
	return SubscriptionResponse{
		URL:           sub.URL,
		ChatID:        sub.ChatID,
		OutputFormat:  string(sub.OutputFormat),
		CustomCaption: sub.CustomCaption,
		CreatedAt:     sub.CreatedAt,
	}
}

type LastChapterResponse struct {
	URL        string    `json:"url"`
	ChapterURL string    `json:"chapter_url"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func FromLastChapter(lc *store.LastChapter) *LastChapterResponse {
	if lc == nil {
		return nil
	}
	return &LastChapterResponse{URL: lc.URL, ChapterURL: lc.ChapterURL, UpdatedAt: lc.UpdatedAt}
}

type SubscribeResponse struct {
	Subscription SubscriptionResponse `json:"subscription"`
	Name         string               `json:"name"`
	LastChapter  *LastChapterResponse `json:"last_chapter,omitempty"`
}

type PollResponse struct {
	RunID      string            `json:"run_id"`
	Updated    []string          `json:"updated"`
	NotUpdated []string          `json:"not_updated"`
	Failed     map[string]string `json:"failed"`
	Deliveries []notify.Delivery `json:"deliveries"`
	DurationMS int64             `json:"duration_ms"`
}

func FromReport(r *tracker.Report) PollResponse {
	failed := make(map[string]string, len(r.Failed))
	for u, err := range r.Failed {
		failed[u] = err.Error()
	}
	return PollResponse{
		RunID:      r.RunID,
		Updated:    nonNil(r.Updated),
		NotUpdated: nonNil(r.NotUpdated),
		Failed:     failed,
		Deliveries: nonNil(r.Deliveries),
		DurationMS: r.Duration.Milliseconds(),
	}
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
