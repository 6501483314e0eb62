// Package manga defines the series/chapter model shared by every source
// adapter and the contract those adapters implement.
package manga

import (
	"context"
	"iter"
)

// Client is implemented by every manga source adapter.
//
// Chapter sequences are always ascending (oldest first) whatever order the
// remote source uses.
type Client interface {
	// Name identifies the adapter instance, e.g. "Comick-en".
	Name() string

	// Search runs a free text search. page is 1-indexed; an empty query may
	// return a default listing.
	Search(ctx context.Context, query string, page int) ([]Card, error)

	// Chapters returns one page of count chapters of a known series.
	Chapters(ctx context.Context, card Card, page, count int) ([]Chapter, error)

	// IterChapters yields the full chapter list of a series known only by URL.
	// Each call fetches again; the caller may stop at any element.
	IterChapters(ctx context.Context, url, name string) iter.Seq2[Chapter, error]

	// ParsePictures turns a raw chapter detail payload into image URLs. A
	// payload the source marked as rejected yields an empty slice, not an error.
	ParsePictures(raw []byte) ([]string, error)

	// Pictures fetches the chapter detail and parses it.
	Pictures(ctx context.Context, chapter Chapter) ([]string, error)

	// ContainsURL reports whether this adapter owns the URL's domain.
	ContainsURL(url string) bool

	// CheckUpdatedURLs classifies every record as updated or not updated.
	CheckUpdatedURLs(ctx context.Context, lastChapters []LastChapter) (UpdateResult, error)

	Cover(ctx context.Context, card Card) ([]byte, error)
	Picture(ctx context.Context, chapter Chapter, url string) ([]byte, error)

	CardURL(card Card) string
	ChapterURL(chapter Chapter) string
}
