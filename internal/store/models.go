package store

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrInvalidOutputFormat is returned for formats other than PDF, CBZ and BOTH
var ErrInvalidOutputFormat = errors.New("invalid output format")

// OutputFormat is the file kind a subscription receives new chapters as
type OutputFormat string

const (
	OutputPDF  OutputFormat = "PDF"
	OutputCBZ  OutputFormat = "CBZ"
	OutputBoth OutputFormat = "BOTH"
)

// ParseOutputFormat accepts pdf, cbz or both in any case
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch f := OutputFormat(strings.ToUpper(strings.TrimSpace(s))); f {
	case OutputPDF, OutputCBZ, OutputBoth:
		return f, nil
	default:
		return "", fmt.Errorf("%w %q, choose PDF, CBZ or BOTH", ErrInvalidOutputFormat, s)
	}
}

// LastChapter is the pointer to the newest chapter seen for a series
type LastChapter struct {
	URL        string `gorm:"primaryKey"`
	ChapterURL string `gorm:"not null"`
	UpdatedAt  time.Time
}

// Subscription delivers one series to one chat
type Subscription struct {
	URL           string       `gorm:"primaryKey"`
	ChatID        string       `gorm:"primaryKey"`
	OutputFormat  OutputFormat `gorm:"not null;default:'PDF'"`
	CustomCaption *string
	CreatedAt     time.Time
}

// MangaName remembers the display name of a subscribed series
type MangaName struct {
	URL  string `gorm:"primaryKey"`
	Name string `gorm:"not null"`
}

// Models lists every table for AutoMigrate
func Models() []any {
	return []any{&LastChapter{}, &Subscription{}, &MangaName{}}
}
