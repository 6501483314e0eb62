package export

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"

	"github.com/tyburd/mangabot/internal/manga"
)

const defaultTelegraphAPI = "https://api.telegra.ph/"

// FormPoster is the subset of the transport client used for the Telegraph API
type FormPoster interface {
	PostForm(ctx context.Context, rawURL string, values url.Values, headers map[string]string) ([]byte, error)
}

// TelegraphOptions configures the account pages are created under
type TelegraphOptions struct {
	APIURL     string
	ShortName  string
	AuthorName string
	AuthorURL  string
}

// TelegraphPublisher creates one telegra.ph page per chapter. The account is
// created on first use.
type TelegraphPublisher struct {
	poster FormPoster
	opts   TelegraphOptions

	mu    sync.Mutex
	token string
}

func NewTelegraphPublisher(poster FormPoster, opts TelegraphOptions) *TelegraphPublisher {
	if opts.APIURL == "" {
		opts.APIURL = defaultTelegraphAPI
	}
	if !strings.HasSuffix(opts.APIURL, "/") {
		opts.APIURL += "/"
	}
	if opts.ShortName == "" {
		opts.ShortName = "mangabot"
	}
	return &TelegraphPublisher{poster: poster, opts: opts}
}

// telegraphResponse is the envelope of every Telegraph API method
type telegraphResponse struct {
	OK     bool            `json:"ok"`
	Error  string          `json:"error"`
	Result json.RawMessage `json:"result"`
}

// node is a Telegraph content node. Text nodes are encoded as plain strings.
type node struct {
	Tag      string            `json:"tag"`
	Attrs    map[string]string `json:"attrs,omitempty"`
	Children []any             `json:"children,omitempty"`
}

var allowedTags = map[string]bool{
	"a": true, "aside": true, "b": true, "blockquote": true, "br": true, "code": true,
	"em": true, "figcaption": true, "figure": true, "h3": true, "h4": true, "hr": true,
	"i": true, "iframe": true, "img": true, "li": true, "ol": true, "p": true, "pre": true,
	"s": true, "strong": true, "u": true, "ul": true, "video": true,
}

// Publish implements Publisher
func (p *TelegraphPublisher) Publish(ctx context.Context, chapter manga.Chapter, title string) (string, error) {
	if len(chapter.Pictures) == 0 {
		return "", fmt.Errorf("telegraph: chapter %q has no pictures", chapter.Title)
	}

	nodes, err := htmlToNodes(RenderPictures(chapter.Pictures))
	if err != nil {
		return "", err
	}
	content, err := json.Marshal(nodes)
	if err != nil {
		return "", fmt.Errorf("telegraph: encode content: %w", err)
	}

	token, err := p.accessToken(ctx)
	if err != nil {
		return "", err
	}

	var page struct {
		URL string `json:"url"`
	}
	err = p.call(ctx, "createPage", url.Values{
		"access_token":   {token},
		"title":          {truncate(title, 256)},
		"author_name":    {p.opts.AuthorName},
		"author_url":     {p.opts.AuthorURL},
		"content":        {string(content)},
		"return_content": {"false"},
	}, &page)
	if err != nil {
		return "", err
	}
	return strings.Replace(page.URL, "://telegra.ph", "://te.legra.ph", 1), nil
}

func (p *TelegraphPublisher) accessToken(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.token != "" {
		return p.token, nil
	}

	var account struct {
		AccessToken string `json:"access_token"`
	}
	err := p.call(ctx, "createAccount", url.Values{
		"short_name":  {p.opts.ShortName},
		"author_name": {p.opts.AuthorName},
		"author_url":  {p.opts.AuthorURL},
	}, &account)
	if err != nil {
		return "", err
	}
	if account.AccessToken == "" {
		return "", errors.New("telegraph: createAccount returned no access token")
	}
	p.token = account.AccessToken
	return p.token, nil
}

func (p *TelegraphPublisher) call(ctx context.Context, method string, values url.Values, result any) error {
	body, err := p.poster.PostForm(ctx, p.opts.APIURL+method, values, nil)
	if err != nil {
		return fmt.Errorf("telegraph %s: %w", method, err)
	}

	var resp telegraphResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return manga.NewFormatError("telegraph", method, body, err)
	}
	if !resp.OK {
		return fmt.Errorf("telegraph %s: %s", method, resp.Error)
	}
	if err := json.Unmarshal(resp.Result, result); err != nil {
		return manga.NewFormatError("telegraph", method, resp.Result, err)
	}
	return nil
}

// htmlToNodes converts an HTML fragment to Telegraph nodes. Tags Telegraph
// does not accept are unwrapped, keeping their children.
func htmlToNodes(fragment string) ([]any, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader([]byte("<body>" + fragment + "</body>")))
	if err != nil {
		return nil, fmt.Errorf("telegraph: parse content: %w", err)
	}
	return convertContents(doc.Find("body").Contents()), nil
}

func convertContents(sel *goquery.Selection) []any {
	var out []any
	sel.Each(func(_ int, s *goquery.Selection) {
		switch name := goquery.NodeName(s); name {
		case "#text":
			if text := s.Text(); strings.TrimSpace(text) != "" {
				out = append(out, text)
			}
		case "#comment":
		default:
			children := convertContents(s.Contents())
			if !allowedTags[name] {
				out = append(out, children...)
				return
			}
			n := node{Tag: name, Children: children}
			for _, attr := range []string{"href", "src"} {
				if v, ok := s.Attr(attr); ok {
					if n.Attrs == nil {
						n.Attrs = map[string]string{}
					}
					n.Attrs[attr] = v
				}
			}
			out = append(out, n)
		}
	})
	return out
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
