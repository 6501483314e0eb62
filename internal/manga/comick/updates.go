package comick

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/tyburd/mangabot/internal/manga"
	"github.com/tyburd/mangabot/internal/transport"
)

// feedUpdate is the newest chapter id the feed reports for one series
type feedUpdate struct {
	seriesID  string
	chapterID string
}

// CheckUpdatedURLs implements manga.Client.
//
// One page of the "recently updated" feed is fetched and reduced to the
// newest chapter id per series. A record is updated when its URL contains a
// series id from the feed and its stored chapter URL does not contain the
// feed's chapter id. Series missing from the feed are not updated.
func (c *Client) CheckUpdatedURLs(ctx context.Context, lastChapters []manga.LastChapter) (manga.UpdateResult, error) {
	content, err := c.fetcher.Get(ctx, transport.Request{URL: c.updatesURL(), Headers: c.headers()})
	if err != nil {
		return manga.UpdateResult{}, fmt.Errorf("%s update feed: %w", c.name, err)
	}

	entries, err := c.parseFeed(content)
	if err != nil {
		return manga.UpdateResult{}, err
	}

	updates := c.resolveUpdates(ctx, entries, lastChapters)
	return classify(lastChapters, updates), nil
}

// parseFeed decodes the feed, skipping entries that are missing ids. The
// returned entries keep feed order with only the first entry per series.
func (c *Client) parseFeed(content []byte) ([]feedEntry, error) {
	var raw []json.RawMessage
	if err := json.Unmarshal(content, &raw); err != nil {
		return nil, manga.NewFormatError(c.name, "update feed", content, err)
	}

	seen := make(map[string]struct{}, len(raw))
	entries := make([]feedEntry, 0, len(raw))
	for _, item := range raw {
		var e feedEntry
		if err := json.Unmarshal(item, &e); err != nil {
			c.logFeedSkip(item, err.Error())
			continue
		}
		if e.HID == "" || e.Comic == nil || e.Comic.HID == "" {
			c.logFeedSkip(item, "missing hid")
			continue
		}
		// newest first: later entries of the same series are older
		if _, dup := seen[e.Comic.HID]; dup {
			continue
		}
		seen[e.Comic.HID] = struct{}{}
		entries = append(entries, e)
	}
	return entries, nil
}

func (c *Client) logFeedSkip(item []byte, reason string) {
	fe := manga.NewFormatError(c.name, "update feed entry", item, nil)
	c.logger.Warn("feed_entry_skipped", "client", c.name, "reason", reason, "fragment", fe.Fragment)
}

// resolveUpdates turns feed entries into chapter ids. Only series referenced
// by one of the records are resolved, since nothing else can be classified.
func (c *Client) resolveUpdates(ctx context.Context, entries []feedEntry, lastChapters []manga.LastChapter) []feedUpdate {
	relevant := make([]feedEntry, 0, len(entries))
	for _, e := range entries {
		for _, lc := range lastChapters {
			if strings.Contains(lc.URL, e.Comic.HID) {
				relevant = append(relevant, e)
				break
			}
		}
	}

	updates := make([]feedUpdate, len(relevant))
	sem := semaphore.NewWeighted(c.lookupLimit)
	var wg sync.WaitGroup

	for i, e := range relevant {
		updates[i] = feedUpdate{seriesID: e.Comic.HID, chapterID: e.HID}
		if e.Comic.LastChapter == "" || e.Comic.LastChapter == e.Chap {
			continue
		}

		wg.Add(1)
		go func(i int, e feedEntry) {
			defer wg.Done()
			if err := sem.Acquire(ctx, 1); err != nil {
				return
			}
			defer sem.Release(1)

			if id := c.lookupChapterID(ctx, e.Comic.HID, string(e.Comic.LastChapter)); id != "" {
				updates[i].chapterID = id
			}
		}(i, e)
	}
	wg.Wait()

	return updates
}

// lookupChapterID finds the durable id of a chapter label. The feed entry may
// belong to an older chapter than the series' last one, so the label is
// resolved with a single narrow query. Empty means "use the feed's id".
func (c *Client) lookupChapterID(ctx context.Context, seriesID, chap string) string {
	content, err := c.fetcher.Get(ctx, transport.Request{
		URL:     c.labelLookupURL(seriesID, chap),
		Headers: c.headers(),
	})
	if err != nil {
		c.logger.Warn("chapter_lookup_failed", "client", c.name, "series", seriesID, "chap", chap, "error", err)
		return ""
	}

	var resp chapterListResponse
	if err := json.Unmarshal(content, &resp); err != nil {
		fe := manga.NewFormatError(c.name, "chapter lookup", content, err)
		c.logger.Warn("chapter_lookup_failed", "client", c.name, "series", seriesID, "error", fe, "fragment", fe.Fragment)
		return ""
	}
	if len(resp.Chapters) == 0 {
		return ""
	}
	// the oldest upload of a label is the one chaptersFromPage keeps
	return resp.Chapters[len(resp.Chapters)-1].HID
}

// classify partitions the records. Every distinct record URL lands in exactly
// one of the two lists.
func classify(lastChapters []manga.LastChapter, updates []feedUpdate) manga.UpdateResult {
	result := manga.UpdateResult{
		Updated:    []string{},
		NotUpdated: []string{},
	}
	seen := make(map[string]struct{}, len(lastChapters))

	for _, lc := range lastChapters {
		if _, dup := seen[lc.URL]; dup {
			continue
		}
		seen[lc.URL] = struct{}{}

		updated := false
		for _, u := range updates {
			if strings.Contains(lc.URL, u.seriesID) && !strings.Contains(lc.ChapterURL, u.chapterID) {
				updated = true
				break
			}
		}

		if updated {
			result.Updated = append(result.Updated, lc.URL)
		} else {
			result.NotUpdated = append(result.NotUpdated, lc.URL)
		}
	}
	return result
}
