package manga

import "strings"

// ============================================
// SERIES AND CHAPTER VALUES
// ============================================

// Card describes a manga series as one source knows it.
// URL is the protocol-facing address used for follow-up requests, PublicURL()
// is the human-facing canonical page. Two cards are the same series iff their
// URLs are equal.
type Card struct {
	Client   Client
	Name     string
	URL      string
	CoverURL string
	Slug     string // source specific, used to build the public URL
}

// PublicURL returns the canonical address a user would see for this series
func (c Card) PublicURL() string {
	if c.Client == nil {
		return c.URL
	}
	return c.Client.CardURL(c)
}

// Same reports whether both cards describe the same series
func (c Card) Same(other Card) bool {
	return c.URL == other.URL
}

// Matches checks an arbitrary user supplied URL against both URL forms.
func (c Card) Matches(u string) bool {
	u = strings.TrimSpace(u)
	if u == "" {
		return false
	}
	return u == c.URL || u == c.PublicURL()
}

// Chapter is a single chapter of a series.
// Pictures stays empty until the chapter detail has been fetched.
type Chapter struct {
	Client   Client
	Title    string
	URL      string // chapter fetch URL
	Manga    Card
	Pictures []string
	Slug     string
}

// PublicURL returns the reader page of the chapter
func (c Chapter) PublicURL() string {
	if c.Client == nil {
		return c.URL
	}
	return c.Client.ChapterURL(c)
}

// LastChapter is the stored pointer to the newest chapter seen for a series.
type LastChapter struct {
	URL        string // series protocol URL
	ChapterURL string
}

// UpdateResult partitions a batch of LastChapter records by update state.
type UpdateResult struct {
	Updated    []string
	NotUpdated []string
}

// Len returns the number of classified series
func (r UpdateResult) Len() int {
	return len(r.Updated) + len(r.NotUpdated)
}

// IsUpdated reports whether url was classified as updated
func (r UpdateResult) IsUpdated(url string) bool {
	for _, u := range r.Updated {
		if u == url {
			return true
		}
	}
	return false
}
