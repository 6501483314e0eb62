package store

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrSubscriptionExists is returned when a chat is already subscribed to a series
var ErrSubscriptionExists = errors.New("subscription already exists")

// Repository is the persistence collaborator of the tracker. Getters return
// (nil, nil) when the record does not exist.
type Repository interface {
	GetLastChapter(ctx context.Context, url string) (*LastChapter, error)
	PutLastChapter(ctx context.Context, lc *LastChapter) error
	EraseLastChapter(ctx context.Context, url string) error
	ListLastChapters(ctx context.Context, urls []string) ([]LastChapter, error)

	GetSubscription(ctx context.Context, url, chatID string) (*Subscription, error)
	AddSubscription(ctx context.Context, sub *Subscription) error
	EraseSubscription(ctx context.Context, url, chatID string) error
	ListSubscriptions(ctx context.Context) ([]Subscription, error)
	SubscriptionsForURL(ctx context.Context, url string) ([]Subscription, error)
	SubscriptionsForChat(ctx context.Context, chatID string) ([]Subscription, error)
	SubscribedURLs(ctx context.Context) ([]string, error)

	GetMangaName(ctx context.Context, url string) (*MangaName, error)
	PutMangaName(ctx context.Context, name *MangaName) error
	EraseMangaName(ctx context.Context, url string) error
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

// first loads a single row, mapping "no row" to (nil, nil)
func first[T any](ctx context.Context, db *gorm.DB, query string, args ...any) (*T, error) {
	var row T
	err := db.WithContext(ctx).Where(query, args...).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// ============================================
// LAST CHAPTERS
// ============================================

func (r *repository) GetLastChapter(ctx context.Context, url string) (*LastChapter, error) {
	lc, err := first[LastChapter](ctx, r.db, "url = ?", url)
	if err != nil {
		return nil, fmt.Errorf("get last chapter: %w", err)
	}
	return lc, nil
}

func (r *repository) PutLastChapter(ctx context.Context, lc *LastChapter) error {
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "url"}},
			DoUpdates: clause.AssignmentColumns([]string{"chapter_url", "updated_at"}),
		}).
		Create(lc).Error
	if err != nil {
		return fmt.Errorf("put last chapter: %w", err)
	}
	return nil
}

func (r *repository) EraseLastChapter(ctx context.Context, url string) error {
	if err := r.db.WithContext(ctx).Where("url = ?", url).Delete(&LastChapter{}).Error; err != nil {
		return fmt.Errorf("erase last chapter: %w", err)
	}
	return nil
}

func (r *repository) ListLastChapters(ctx context.Context, urls []string) ([]LastChapter, error) {
	var out []LastChapter
	if len(urls) == 0 {
		return out, nil
	}
	if err := r.db.WithContext(ctx).Where("url IN ?", urls).Find(&out).Error; err != nil {
		return nil, fmt.Errorf("list last chapters: %w", err)
	}
	return out, nil
}

// ============================================
// SUBSCRIPTIONS
// ============================================

func (r *repository) GetSubscription(ctx context.Context, url, chatID string) (*Subscription, error) {
	sub, err := first[Subscription](ctx, r.db, "url = ? AND chat_id = ?", url, chatID)
	if err != nil {
		return nil, fmt.Errorf("get subscription: %w", err)
	}
	return sub, nil
}

func (r *repository) AddSubscription(ctx context.Context, sub *Subscription) error {
	err := r.db.WithContext(ctx).Create(sub).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrSubscriptionExists
	}
	if err != nil {
		return fmt.Errorf("add subscription: %w", err)
	}
	return nil
}

func (r *repository) EraseSubscription(ctx context.Context, url, chatID string) error {
	err := r.db.WithContext(ctx).
		Where("url = ? AND chat_id = ?", url, chatID).
		Delete(&Subscription{}).Error
	if err != nil {
		return fmt.Errorf("erase subscription: %w", err)
	}
	return nil
}

func (r *repository) ListSubscriptions(ctx context.Context) ([]Subscription, error) {
	var subs []Subscription
	if err := r.db.WithContext(ctx).Order("url, chat_id").Find(&subs).Error; err != nil {
		return nil, fmt.Errorf("list subscriptions: %w", err)
	}
	return subs, nil
}

func (r *repository) SubscriptionsForURL(ctx context.Context, url string) ([]Subscription, error) {
	var subs []Subscription
	if err := r.db.WithContext(ctx).Where("url = ?", url).Order("chat_id").Find(&subs).Error; err != nil {
		return nil, fmt.Errorf("subscriptions for url: %w", err)
	}
	return subs, nil
}

func (r *repository) SubscriptionsForChat(ctx context.Context, chatID string) ([]Subscription, error) {
	var subs []Subscription
	if err := r.db.WithContext(ctx).Where("chat_id = ?", chatID).Order("url").Find(&subs).Error; err != nil {
		return nil, fmt.Errorf("subscriptions for chat: %w", err)
	}
	return subs, nil
}

func (r *repository) SubscribedURLs(ctx context.Context) ([]string, error) {
	var urls []string
	err := r.db.WithContext(ctx).
		Model(&Subscription{}).
		Distinct("url").
		Order("url").
		Pluck("url", &urls).Error
	if err != nil {
		return nil, fmt.Errorf("subscribed urls: %w", err)
	}
	return urls, nil
}

// ============================================
// MANGA NAMES
// ============================================

func (r *repository) GetMangaName(ctx context.Context, url string) (*MangaName, error) {
	name, err := first[MangaName](ctx, r.db, "url = ?", url)
	if err != nil {
		return nil, fmt.Errorf("get manga name: %w", err)
	}
	return name, nil
}

func (r *repository) PutMangaName(ctx context.Context, name *MangaName) error {
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "url"}},
			DoUpdates: clause.AssignmentColumns([]string{"name"}),
		}).
		Create(name).Error
	if err != nil {
		return fmt.Errorf("put manga name: %w", err)
	}
	return nil
}

func (r *repository) EraseMangaName(ctx context.Context, url string) error {
	if err := r.db.WithContext(ctx).Where("url = ?", url).Delete(&MangaName{}).Error; err != nil {
		return fmt.Errorf("erase manga name: %w", err)
	}
	return nil
}
