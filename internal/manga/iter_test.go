package manga_test

import (
	"errors"
	"iter"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tyburd/mangabot/internal/manga"
)

func seqOf(chapters []manga.Chapter, tail error) iter.Seq2[manga.Chapter, error] {
	return func(yield func(manga.Chapter, error) bool) {
		for _, ch := range chapters {
			if !yield(ch, nil) {
				return
			}
		}
		if tail != nil {
			yield(manga.Chapter{}, tail)
		}
	}
}

func chapters(urls ...string) []manga.Chapter {
	out := make([]manga.Chapter, len(urls))
	for i, u := range urls {
		out[i] = manga.Chapter{URL: u, Title: "Chapter " + u}
	}
	return out
}

func TestCollect(t *testing.T) {
	got, err := manga.Collect(seqOf(chapters("1", "2", "3"), nil))
	require.NoError(t, err)
	assert.Len(t, got, 3)

	boom := errors.New("boom")
	got, err = manga.Collect(seqOf(chapters("1"), boom))
	assert.ErrorIs(t, err, boom)
	assert.Len(t, got, 1)
}

func TestLatest(t *testing.T) {
	latest, ok, err := manga.Latest(seqOf(chapters("1", "2", "3"), nil))
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "3", latest.URL)

	_, ok, err = manga.Latest(seqOf(nil, nil))
	require.NoError(t, err)
	assert.False(t, ok)

	_, ok, err = manga.Latest(seqOf(chapters("1"), manga.ErrSourceUnavailable))
	assert.ErrorIs(t, err, manga.ErrSourceUnavailable)
	assert.False(t, ok)
}

func TestAfter(t *testing.T) {
	all := chapters("1", "2", "3", "4")

	tests := []struct {
		name    string
		pointer string
		want    []string
	}{
		{"middle", "2", []string{"3", "4"}},
		{"newest", "4", nil},
		{"lost pointer delivers only newest", "gone", []string{"4"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got []string
			for _, ch := range manga.After(all, tt.pointer) {
				got = append(got, ch.URL)
			}
			assert.Equal(t, tt.want, got)
		})
	}

	assert.Empty(t, manga.After(nil, "1"))
}
