// Package export publishes chapters as hosted HTML pages.
package export

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"html"
	"strings"
	"unicode"

	"github.com/tyburd/mangabot/internal/manga"
)

// Publisher hosts a chapter page and returns its URL
type Publisher interface {
	Publish(ctx context.Context, chapter manga.Chapter, title string) (string, error)
}

// PageTitle is the title used for a chapter page
func PageTitle(seriesName string, chapter manga.Chapter) string {
	if seriesName == "" {
		seriesName = chapter.Manga.Name
	}
	return seriesName + " - " + chapter.Title
}

// RenderPictures renders one <img> per picture, in order
func RenderPictures(pictures []string) string {
	lines := make([]string, 0, len(pictures))
	for _, p := range pictures {
		lines = append(lines, fmt.Sprintf(`<img src="%s"/>`, html.EscapeString(p)))
	}
	return strings.Join(lines, "\n")
}

// RenderPage renders a standalone HTML document for a chapter
func RenderPage(title string, pictures []string) []byte {
	var b strings.Builder
	b.WriteString("<!DOCTYPE html>\n<html>\n<head>\n<meta charset=\"utf-8\">\n")
	b.WriteString(`<meta name="viewport" content="width=device-width, initial-scale=1">` + "\n")
	fmt.Fprintf(&b, "<title>%s</title>\n", html.EscapeString(title))
	b.WriteString("<style>body{margin:0;background:#111}img{display:block;max-width:100%;margin:0 auto}</style>\n")
	b.WriteString("</head>\n<body>\n")
	b.WriteString(RenderPictures(pictures))
	b.WriteString("\n</body>\n</html>\n")
	return []byte(b.String())
}

// pageKey derives a stable object name for a chapter, so publishing the same
// chapter twice overwrites the first page
func pageKey(title, chapterURL string) string {
	sum := sha256.Sum256([]byte(chapterURL))
	return slugify(title) + "-" + hex.EncodeToString(sum[:6])
}

func slugify(s string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			dash = false
			continue
		}
		if !dash && b.Len() > 0 {
			b.WriteByte('-')
			dash = true
		}
	}
	out := strings.TrimSuffix(b.String(), "-")
	if out == "" {
		return "chapter"
	}
	return out
}
