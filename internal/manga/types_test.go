package manga_test

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/tyburd/mangabot/internal/manga"
)

// publicURLs only answers the URL builders
type publicURLs struct {
	manga.Client
}

func (publicURLs) CardURL(c manga.Card) string { return "https://site.test/comic/" + c.Slug }
func (publicURLs) ChapterURL(c manga.Chapter) string {
	return "https://site.test/comic/" + c.Manga.Slug + "/" + c.Slug
}

func TestCard_URLForms(t *testing.T) {
	card := manga.Card{Client: publicURLs{}, Name: "Solo", URL: "https://api.test/comic/AbC/chapters", Slug: "solo"}

	assert.Equal(t, "https://site.test/comic/solo", card.PublicURL())
	assert.True(t, card.Matches(card.URL))
	assert.True(t, card.Matches(" https://site.test/comic/solo "))
	assert.False(t, card.Matches(""))
	assert.False(t, card.Matches("https://site.test/comic/other"))

	renamed := card
	renamed.Name = "Solo Leveling"
	assert.True(t, card.Same(renamed))

	bare := manga.Card{URL: "https://api.test/x"}
	assert.Equal(t, bare.URL, bare.PublicURL())
}

func TestChapter_PublicURL(t *testing.T) {
	card := manga.Card{Client: publicURLs{}, URL: "u", Slug: "solo"}
	ch := manga.Chapter{Client: publicURLs{}, URL: "https://api.test/chapter/c1", Manga: card, Slug: "c1-chapter-1-en"}
	assert.Equal(t, "https://site.test/comic/solo/c1-chapter-1-en", ch.PublicURL())

	ch.Client = nil
	assert.Equal(t, ch.URL, ch.PublicURL())
}

func TestUpdateResult(t *testing.T) {
	r := manga.UpdateResult{Updated: []string{"a"}, NotUpdated: []string{"b", "c"}}
	assert.Equal(t, 3, r.Len())
	assert.True(t, r.IsUpdated("a"))
	assert.False(t, r.IsUpdated("b"))
}

func TestFormatError(t *testing.T) {
	var syntax *json.SyntaxError
	decodeErr := json.Unmarshal([]byte("{"), &struct{}{})
	assert.True(t, errors.As(decodeErr, &syntax))

	payload := []byte(strings.Repeat("x", 500))
	fe := manga.NewFormatError("Comick-en", "search", payload, decodeErr)

	assert.ErrorIs(t, fe, manga.ErrUnexpectedFormat)
	assert.ErrorAs(t, fe, &syntax)
	assert.Len(t, fe.Fragment, 203)
	assert.True(t, strings.HasSuffix(fe.Fragment, "..."))
	assert.Contains(t, fe.Error(), "Comick-en")

	bare := manga.NewFormatError("Comick-en", "feed", []byte("[]"), nil)
	assert.ErrorIs(t, bare, manga.ErrUnexpectedFormat)
	assert.Equal(t, "[]", bare.Fragment)
}
