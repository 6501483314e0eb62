// Package tracker keeps subscriptions and last chapter pointers up to date
// and runs the periodic update poll.
package tracker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/tyburd/mangabot/internal/manga"
	"github.com/tyburd/mangabot/internal/registry"
	"github.com/tyburd/mangabot/internal/store"
)

var (
	// ErrUnknownSource means no configured adapter owns the URL
	ErrUnknownSource = errors.New("no source handles this url")
	// ErrNeedsSearch means the series is new to the bot and has to be found
	// with a search first, so its protocol URL and name are known
	ErrNeedsSearch = errors.New("series unknown, search for it first")
	// ErrNoChapters means the series has no chapters to point at yet
	ErrNoChapters = errors.New("series has no chapters")
	// ErrSubscriptionNotFound is returned when removing a missing subscription
	ErrSubscriptionNotFound = errors.New("subscription does not exist")
	// ErrInvalidChatID means the chat id is not an integer
	ErrInvalidChatID = errors.New("chat id should be an integer")
)

// Service implements the subscription flows and LastChapter maintenance
type Service struct {
	registry *registry.Registry
	repo     store.Repository
	locks    *SeriesLocks
	logger   *slog.Logger
}

func NewService(reg *registry.Registry, repo store.Repository, locks *SeriesLocks, logger *slog.Logger) *Service {
	if locks == nil {
		locks = NewSeriesLocks()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{registry: reg, repo: repo, locks: locks, logger: logger}
}

// series is a resolved, trackable series
type series struct {
	URL    string
	Name   string
	Client manga.Client
	Card   *manga.Card
}

// resolveSeries maps a user supplied URL to a series the bot can fetch.
// Either a remembered card or a stored name is needed.
func (s *Service) resolveSeries(ctx context.Context, raw string) (series, error) {
	res, ok := s.registry.Resolve(raw)
	if !ok {
		return series{}, fmt.Errorf("%w: %s", ErrUnknownSource, strings.TrimSpace(raw))
	}
	if res.Card != nil {
		return series{URL: res.URL, Name: res.Card.Name, Client: res.Client, Card: res.Card}, nil
	}

	name, err := s.repo.GetMangaName(ctx, res.URL)
	if err != nil {
		return series{}, err
	}
	if name == nil {
		return series{}, fmt.Errorf("%w: %s", ErrNeedsSearch, res.URL)
	}
	return series{URL: res.URL, Name: name.Name, Client: res.Client}, nil
}

// UpdateLastChapter points the series' LastChapter at its newest chapter.
// An existing record is only overwritten when force is set. The returned
// record is the stored one after the call.
func (s *Service) UpdateLastChapter(ctx context.Context, rawURL string, force bool) (*store.LastChapter, error) {
	sr, err := s.resolveSeries(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	return s.refreshLastChapter(ctx, sr, force)
}

func (s *Service) refreshLastChapter(ctx context.Context, sr series, force bool) (*store.LastChapter, error) {
	unlock := s.locks.Lock(sr.URL)
	defer unlock()

	existing, err := s.repo.GetLastChapter(ctx, sr.URL)
	if err != nil {
		return nil, err
	}
	if existing != nil && !force {
		return existing, nil
	}

	latest, ok, err := manga.Latest(sr.Client.IterChapters(ctx, sr.URL, sr.Name))
	if err != nil {
		if errors.Is(err, manga.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrNoChapters, sr.URL)
		}
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoChapters, sr.URL)
	}

	lc := &store.LastChapter{URL: sr.URL, ChapterURL: latest.URL}
	if err := s.repo.PutLastChapter(ctx, lc); err != nil {
		return nil, err
	}
	s.logger.Info("last_chapter_updated", "series", sr.URL, "chapter", latest.URL, "forced", force)
	return lc, nil
}

// SubscribeRequest is the input of Subscribe
type SubscribeRequest struct {
	URL          string
	ChatID       string
	OutputFormat string
	Caption      string
	// ForceUpdate overwrites an existing LastChapter with the newest chapter
	ForceUpdate bool
}

// SubscribeResult describes the created subscription
type SubscribeResult struct {
	Subscription *store.Subscription
	Name         string
	LastChapter  *store.LastChapter
}

// NormalizeCaption maps the "no caption" answers to nil
func NormalizeCaption(caption string) *string {
	caption = strings.TrimSpace(caption)
	switch strings.ToLower(caption) {
	case "", "/skip", "none":
		return nil
	}
	return &caption
}

// Subscribe subscribes a chat to a series. The series' LastChapter is created
// when missing, so the first poll only reports chapters released afterwards.
func (s *Service) Subscribe(ctx context.Context, req SubscribeRequest) (*SubscribeResult, error) {
	sr, err := s.resolveSeries(ctx, req.URL)
	if err != nil {
		return nil, err
	}

	chatID := strings.TrimSpace(req.ChatID)
	if _, err := strconv.ParseInt(chatID, 10, 64); err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidChatID, req.ChatID)
	}
	format, err := store.ParseOutputFormat(req.OutputFormat)
	if err != nil {
		return nil, err
	}

	existing, err := s.repo.GetSubscription(ctx, sr.URL, chatID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, store.ErrSubscriptionExists
	}

	lc, err := s.refreshLastChapter(ctx, sr, req.ForceUpdate)
	if err != nil && !errors.Is(err, ErrNoChapters) {
		return nil, err
	}
	if err != nil {
		s.logger.Warn("subscribe_without_chapters", "series", sr.URL)
	}

	sub := &store.Subscription{
		URL:           sr.URL,
		ChatID:        chatID,
		OutputFormat:  format,
		CustomCaption: NormalizeCaption(req.Caption),
	}
	if err := s.repo.AddSubscription(ctx, sub); err != nil {
		return nil, err
	}

	if err := s.repo.PutMangaName(ctx, &store.MangaName{URL: sr.URL, Name: sr.Name}); err != nil {
		return nil, err
	}

	s.logger.Info("subscription_added", "series", sr.URL, "chat_id", chatID, "format", format)
	return &SubscribeResult{Subscription: sub, Name: sr.Name, LastChapter: lc}, nil
}

// Unsubscribe removes a subscription. Once a series has no subscribers left
// its LastChapter and name are dropped too.
func (s *Service) Unsubscribe(ctx context.Context, rawURL, chatID string) error {
	url := strings.TrimSpace(rawURL)
	if res, ok := s.registry.Resolve(url); ok {
		url = res.URL
	}
	chatID = strings.TrimSpace(chatID)

	sub, err := s.repo.GetSubscription(ctx, url, chatID)
	if err != nil {
		return err
	}
	if sub == nil {
		return ErrSubscriptionNotFound
	}
	if err := s.repo.EraseSubscription(ctx, url, chatID); err != nil {
		return err
	}
	s.logger.Info("subscription_removed", "series", url, "chat_id", chatID)

	unlock := s.locks.Lock(url)
	defer unlock()

	remaining, err := s.repo.SubscriptionsForURL(ctx, url)
	if err != nil {
		return err
	}
	if len(remaining) > 0 {
		return nil
	}
	if err := s.repo.EraseLastChapter(ctx, url); err != nil {
		return err
	}
	return s.repo.EraseMangaName(ctx, url)
}

// Subscriptions lists the subscriptions of one chat, or all of them when
// chatID is empty
func (s *Service) Subscriptions(ctx context.Context, chatID string) ([]store.Subscription, error) {
	if chatID = strings.TrimSpace(chatID); chatID != "" {
		return s.repo.SubscriptionsForChat(ctx, chatID)
	}
	return s.repo.ListSubscriptions(ctx)
}

// Registry exposes the adapters the service resolves against
func (s *Service) Registry() *registry.Registry { return s.registry }
