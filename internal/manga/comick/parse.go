package comick

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/tyburd/mangabot/internal/manga"
)

// mangasFromPage maps a search payload to cards. Entries without an id are
// skipped.
func (c *Client) mangasFromPage(page []byte) ([]manga.Card, error) {
	var items []searchItem
	if err := json.Unmarshal(page, &items); err != nil {
		return nil, manga.NewFormatError(c.name, "search", page, err)
	}

	cards := make([]manga.Card, 0, len(items))
	for _, item := range items {
		if item.HID == "" {
			c.logger.Warn("search_item_skipped", "client", c.name, "reason", "missing hid", "title", item.Title)
			continue
		}
		cards = append(cards, manga.Card{
			Client:   c,
			Name:     item.Title,
			URL:      c.seriesURL(item.HID),
			CoverURL: c.coverURL(item),
			Slug:     item.Slug,
		})
	}
	return cards, nil
}

func (c *Client) coverURL(item searchItem) string {
	if len(item.MDCovers) > 0 && item.MDCovers[0].B2Key != "" {
		return c.coversURL.JoinPath(item.MDCovers[0].B2Key).String()
	}
	return item.CoverURL
}

// chaptersFromPage maps a chapter list payload to ascending chapters.
//
// The API lists newest first. Walking it backwards keeps the first upload of
// every chapter label and drops volume-only entries without a title.
func (c *Client) chaptersFromPage(page []byte, card manga.Card) ([]manga.Chapter, error) {
	var resp chapterListResponse
	if err := json.Unmarshal(page, &resp); err != nil {
		return nil, manga.NewFormatError(c.name, "chapter list", page, err)
	}

	seen := make(map[string]struct{}, len(resp.Chapters))
	chapters := make([]manga.Chapter, 0, len(resp.Chapters))

	for i := len(resp.Chapters) - 1; i >= 0; i-- {
		item := resp.Chapters[i]
		if item.HID == "" {
			continue
		}

		title := item.Title
		if item.Chap != "" {
			title = fmt.Sprintf("Chapter %s", item.Chap)
		}
		if title == "" && item.Vol != "" {
			continue
		}
		if _, dup := seen[title]; dup {
			continue
		}
		seen[title] = struct{}{}

		lang := item.Lang
		if lang == "" {
			lang = c.lang
		}

		chapters = append(chapters, manga.Chapter{
			Client: c,
			Title:  title,
			URL:    c.chapterFetchURL(item.HID),
			Manga:  card,
			Slug:   fmt.Sprintf("%s-chapter-%s-%s", item.HID, item.Chap, lang),
		})
	}
	return chapters, nil
}

// ParsePictures implements manga.Client
func (c *Client) ParsePictures(raw []byte) ([]string, error) {
	var resp chapterDetailResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, manga.NewFormatError(c.name, "chapter detail", raw, err)
	}

	if resp.Message != nil {
		return []string{}, nil
	}
	if resp.Chapter == nil {
		return nil, manga.NewFormatError(c.name, "chapter detail", raw, errors.New("missing chapter object"))
	}

	pictures := make([]string, 0, len(resp.Chapter.Images))
	for _, img := range resp.Chapter.Images {
		if img.URL == "" {
			continue
		}
		pictures = append(pictures, img.URL)
	}
	return pictures, nil
}
