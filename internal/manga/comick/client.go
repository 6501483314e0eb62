// Package comick implements manga.Client against the Comick JSON API.
package comick

import (
	"context"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/tyburd/mangabot/internal/manga"
	"github.com/tyburd/mangabot/internal/transport"
)

const (
	defaultAPIURL    = "https://api.comick.app/"
	defaultSiteURL   = "https://comick.app"
	defaultCoversURL = "https://meo.comick.pictures/"

	browserUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:97.0) Gecko/20100101 Firefox/97.0"

	searchLimit       = 20
	chapterListLimit  = 100000
	defaultPageSize   = 20
	defaultLookupConc = 4
)

// Fetcher is the subset of the transport client the adapter needs
type Fetcher interface {
	Get(ctx context.Context, req transport.Request) ([]byte, error)
	Stream(ctx context.Context, req transport.Request) (*http.Response, error)
}

// maxPictureSize bounds a single page download
var maxPictureSize int64 = 32 << 20

// Options configures a Comick client. Zero values use the public endpoints.
type Options struct {
	Name     string
	Language string

	APIURL    string
	SiteURL   string
	CoversURL string

	// LookupConcurrency bounds the secondary chapter lookups made while
	// checking the update feed.
	LookupConcurrency int

	Logger *slog.Logger
}

// Client talks to one language of the Comick API
type Client struct {
	name      string
	lang      string
	apiURL    *url.URL
	siteURL   *url.URL
	coversURL *url.URL

	fetcher     Fetcher
	lookupLimit int64
	logger      *slog.Logger
}

// New creates a Comick client
func New(fetcher Fetcher, opts Options) (*Client, error) {
	if fetcher == nil {
		return nil, fmt.Errorf("%w: comick client needs a fetcher", manga.ErrConfiguration)
	}

	lang := opts.Language
	if lang == "" {
		lang = "en"
	}
	name := opts.Name
	if name == "" {
		name = "Comick"
	}

	apiURL, err := parseBase(opts.APIURL, defaultAPIURL)
	if err != nil {
		return nil, err
	}
	siteURL, err := parseBase(opts.SiteURL, defaultSiteURL)
	if err != nil {
		return nil, err
	}
	coversURL, err := parseBase(opts.CoversURL, defaultCoversURL)
	if err != nil {
		return nil, err
	}

	lookup := opts.LookupConcurrency
	if lookup <= 0 {
		lookup = defaultLookupConc
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		name:        fmt.Sprintf("%s-%s", name, lang),
		lang:        lang,
		apiURL:      apiURL,
		siteURL:     siteURL,
		coversURL:   coversURL,
		fetcher:     fetcher,
		lookupLimit: int64(lookup),
		logger:      logger,
	}, nil
}

func parseBase(raw, fallback string) (*url.URL, error) {
	if raw == "" {
		raw = fallback
	}
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("%w: invalid base url %q", manga.ErrConfiguration, raw)
	}
	if !strings.HasSuffix(u.Path, "/") {
		u.Path += "/"
	}
	return u, nil
}

// Name implements manga.Client
func (c *Client) Name() string { return c.name }

// Language returns the chapter language this client filters on
func (c *Client) Language() string { return c.lang }

// ============================================
// URL BUILDERS
// ============================================

func (c *Client) api(path string, query url.Values) string {
	u := c.apiURL.JoinPath(path)
	if query != nil {
		u.RawQuery = query.Encode()
	}
	return u.String()
}

func (c *Client) seriesURL(hid string) string {
	return c.api("comic/"+hid+"/chapters", url.Values{"lang": {c.lang}})
}

func (c *Client) chapterFetchURL(hid string) string {
	return c.api("chapter/"+hid, url.Values{"tachiyomi": {"true"}})
}

func (c *Client) updatesURL() string {
	return c.api("chapter/", url.Values{
		"page":                  {"1"},
		"order":                 {"new"},
		"tachiyomi":             {"true"},
		"accept_erotic_content": {"true"},
		"lang":                  {c.lang},
	})
}

func (c *Client) labelLookupURL(seriesID, chap string) string {
	return c.api("comic/"+seriesID+"/chapters", url.Values{
		"lang": {c.lang},
		"chap": {chap},
	})
}

// fullListURL asks for the whole chapter list of a series URL at once
func fullListURL(seriesURL string) (string, error) {
	u, err := url.Parse(seriesURL)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set("limit", strconv.Itoa(chapterListLimit))
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// CardURL implements manga.Client: the public comic page
func (c *Client) CardURL(card manga.Card) string {
	if card.Slug == "" {
		return card.URL
	}
	return c.siteURL.JoinPath("comic", card.Slug).String()
}

// ChapterURL implements manga.Client: the public reader page
func (c *Client) ChapterURL(chapter manga.Chapter) string {
	return strings.TrimRight(c.CardURL(chapter.Manga), "/") + "/" + chapter.Slug
}

// ContainsURL implements manga.Client. Both API and site URLs belong to the
// adapter; an API URL carrying a lang parameter only to the adapter of that
// language.
func (c *Client) ContainsURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	if strings.HasPrefix(raw, c.apiURL.String()) {
		lang := u.Query().Get("lang")
		return lang == "" || lang == c.lang
	}
	return u.Host != "" && strings.EqualFold(u.Host, c.siteURL.Host)
}

func (c *Client) headers() map[string]string {
	return map[string]string{
		"User-Agent": browserUserAgent,
		"Referer":    c.apiURL.String(),
	}
}

// ============================================
// CONTRACT OPERATIONS
// ============================================

// Search implements manga.Client
func (c *Client) Search(ctx context.Context, query string, page int) ([]manga.Card, error) {
	if page < 1 {
		page = 1
	}
	q := url.Values{}
	q.Set("type", "comic")
	q.Set("page", strconv.Itoa(page))
	q.Set("limit", strconv.Itoa(searchLimit))
	q.Set("minimum", "1")
	q.Set("tachiyomi", "true")
	q.Set("q", query)
	q.Set("t", "false")

	content, err := c.fetcher.Get(ctx, transport.Request{
		URL:     c.api("v1.0/search", q),
		Headers: c.headers(),
		Cache:   true,
	})
	if err != nil {
		return nil, fmt.Errorf("%s search %q: %w", c.name, query, err)
	}
	return c.mangasFromPage(content)
}

// fetchChapters downloads and parses the full chapter list of a series
func (c *Client) fetchChapters(ctx context.Context, card manga.Card) ([]manga.Chapter, error) {
	listURL, err := fullListURL(card.URL)
	if err != nil {
		return nil, fmt.Errorf("%w: bad series url %q", manga.ErrNotFound, card.URL)
	}

	content, err := c.fetcher.Get(ctx, transport.Request{URL: listURL, Headers: c.headers()})
	if err != nil {
		if transport.IsNotFound(err) {
			return nil, fmt.Errorf("%s chapters of %s: %w", c.name, card.URL, manga.ErrNotFound)
		}
		return nil, fmt.Errorf("%s chapters of %s: %w", c.name, card.URL, err)
	}
	return c.chaptersFromPage(content, card)
}

// Chapters implements manga.Client. Page 1 holds the newest count chapters;
// every page is in ascending order.
func (c *Client) Chapters(ctx context.Context, card manga.Card, page, count int) ([]manga.Chapter, error) {
	if page < 1 {
		page = 1
	}
	if count <= 0 {
		count = defaultPageSize
	}

	all, err := c.fetchChapters(ctx, card)
	if err != nil {
		return nil, err
	}

	end := len(all) - (page-1)*count
	if end <= 0 {
		return []manga.Chapter{}, nil
	}
	start := max(end-count, 0)
	return all[start:end], nil
}

// IterChapters implements manga.Client
func (c *Client) IterChapters(ctx context.Context, seriesURL, name string) iter.Seq2[manga.Chapter, error] {
	return func(yield func(manga.Chapter, error) bool) {
		card := manga.Card{Client: c, Name: name, URL: seriesURL}

		chapters, err := c.fetchChapters(ctx, card)
		if err != nil {
			yield(manga.Chapter{}, err)
			return
		}
		for _, ch := range chapters {
			if !yield(ch, nil) {
				return
			}
		}
	}
}

// Pictures implements manga.Client
func (c *Client) Pictures(ctx context.Context, chapter manga.Chapter) ([]string, error) {
	// never cached: a gated chapter answers with a message until it is released
	content, err := c.fetcher.Get(ctx, transport.Request{
		URL:     chapter.URL,
		Headers: c.headers(),
	})
	if err != nil {
		return nil, fmt.Errorf("%s pictures of %s: %w", c.name, chapter.URL, err)
	}
	return c.ParsePictures(content)
}

// Cover implements manga.Client
func (c *Client) Cover(ctx context.Context, card manga.Card) ([]byte, error) {
	if card.CoverURL == "" {
		return nil, fmt.Errorf("%s cover of %s: %w", c.name, card.Name, manga.ErrNotFound)
	}
	return c.fetcher.Get(ctx, transport.Request{URL: card.CoverURL, Headers: c.headers(), Cache: true})
}

// Picture implements manga.Client. Pages are streamed and capped at
// maxPictureSize.
func (c *Client) Picture(ctx context.Context, _ manga.Chapter, pictureURL string) ([]byte, error) {
	resp, err := c.fetcher.Stream(ctx, transport.Request{URL: pictureURL, Headers: c.headers()})
	if err != nil {
		return nil, fmt.Errorf("%s picture %s: %w", c.name, pictureURL, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPictureSize+1))
	if err != nil {
		return nil, fmt.Errorf("%s picture %s: %w: %v", c.name, pictureURL, manga.ErrSourceUnavailable, err)
	}
	if int64(len(body)) > maxPictureSize {
		return nil, fmt.Errorf("%s picture %s: %w: larger than %d bytes", c.name, pictureURL, manga.ErrUnexpectedFormat, maxPictureSize)
	}
	return body, nil
}

var _ manga.Client = (*Client)(nil)
