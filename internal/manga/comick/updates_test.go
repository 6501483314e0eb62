package comick

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tyburd/mangabot/internal/manga"
	"github.com/tyburd/mangabot/internal/transport"
)

func lastChapter(c *Client, seriesID, chapterID string) manga.LastChapter {
	return manga.LastChapter{URL: c.seriesURL(seriesID), ChapterURL: c.chapterFetchURL(chapterID)}
}

func assertPartition(t *testing.T, input []manga.LastChapter, res manga.UpdateResult) {
	t.Helper()
	want := map[string]struct{}{}
	for _, lc := range input {
		want[lc.URL] = struct{}{}
	}

	got := map[string]int{}
	for _, u := range res.Updated {
		got[u]++
	}
	for _, u := range res.NotUpdated {
		got[u]++
	}

	assert.Len(t, got, len(want))
	for u := range want {
		assert.Equal(t, 1, got[u], "url %s must be classified exactly once", u)
	}
}

func TestCheckUpdatedURLs_FeedScenarios(t *testing.T) {
	f := newFakeComick(t)
	f.feed = fixture(t, "feed.json")
	c := newTestAdapter(t, f)

	s1 := lastChapter(c, "S1hid", "C41")
	s2 := lastChapter(c, "S2hid", "B7")
	s3 := lastChapter(c, "S3hid", "F6")

	res, err := c.CheckUpdatedURLs(context.Background(), []manga.LastChapter{s1, s2, s3})
	require.NoError(t, err)

	assert.Equal(t, []string{s1.URL}, res.Updated)
	assert.ElementsMatch(t, []string{s2.URL, s3.URL}, res.NotUpdated)
	assertPartition(t, []manga.LastChapter{s1, s2, s3}, res)

	// S3's feed entry is not its last chapter; the lookup came back empty so
	// the feed's own id was used
	assert.Equal(t, 1, f.count("lookup:S3hid@7"))
}

func TestCheckUpdatedURLs_FirstFeedOccurrenceWins(t *testing.T) {
	f := newFakeComick(t)
	f.feed = fixture(t, "feed.json")
	c := newTestAdapter(t, f)

	// already on the newest chapter; the older duplicate C40 entry must not
	// flag it as updated
	upToDate := lastChapter(c, "S1hid", "C42")

	res, err := c.CheckUpdatedURLs(context.Background(), []manga.LastChapter{upToDate})
	require.NoError(t, err)
	assert.Empty(t, res.Updated)
	assert.Equal(t, []string{upToDate.URL}, res.NotUpdated)
}

func TestCheckUpdatedURLs_SecondaryLookupResolvesLabel(t *testing.T) {
	f := newFakeComick(t)
	f.feed = fixture(t, "feed.json")
	f.lookups["S3hid@7"] = []byte(`{"chapters":[{"hid":"L7new","chap":"7"},{"hid":"L7old","chap":"7"}]}`)
	c := newTestAdapter(t, f)

	stale := lastChapter(c, "S3hid", "F6")
	current := lastChapter(c, "S3hid", "L7old")

	res, err := c.CheckUpdatedURLs(context.Background(), []manga.LastChapter{stale})
	require.NoError(t, err)
	assert.Equal(t, []string{stale.URL}, res.Updated)

	res, err = c.CheckUpdatedURLs(context.Background(), []manga.LastChapter{current})
	require.NoError(t, err)
	assert.Equal(t, []string{current.URL}, res.NotUpdated)
}

func TestCheckUpdatedURLs_LooksUpOnlyTrackedSeries(t *testing.T) {
	f := newFakeComick(t)
	f.feed = fixture(t, "feed.json")
	c := newTestAdapter(t, f)

	_, err := c.CheckUpdatedURLs(context.Background(), []manga.LastChapter{lastChapter(c, "S2hid", "B7")})
	require.NoError(t, err)

	assert.Zero(t, f.count("lookup:S3hid@7"))
	assert.Zero(t, f.count("lookup:S4hid@12"))
	assert.Zero(t, f.count("lookup:S5hid@5.5"))
}

func TestCheckUpdatedURLs_IsIdempotent(t *testing.T) {
	f := newFakeComick(t)
	f.feed = fixture(t, "feed.json")
	c := newTestAdapter(t, f)

	input := []manga.LastChapter{
		lastChapter(c, "S1hid", "C41"),
		lastChapter(c, "S2hid", "B7"),
		lastChapter(c, "S3hid", "X"),
		lastChapter(c, "S4hid", "N9"),
		lastChapter(c, "S5hid", "M5"),
	}

	first, err := c.CheckUpdatedURLs(context.Background(), input)
	require.NoError(t, err)
	second, err := c.CheckUpdatedURLs(context.Background(), input)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assertPartition(t, input, first)
	// the feed is never served from the cache
	assert.Equal(t, 2, f.count("feed"))
}

func TestCheckUpdatedURLs_DuplicateRecordsClassifiedOnce(t *testing.T) {
	f := newFakeComick(t)
	f.feed = fixture(t, "feed.json")
	c := newTestAdapter(t, f)

	lc := lastChapter(c, "S1hid", "C41")
	res, err := c.CheckUpdatedURLs(context.Background(), []manga.LastChapter{lc, lc})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Len())
}

func TestCheckUpdatedURLs_EmptyInput(t *testing.T) {
	f := newFakeComick(t)
	f.feed = fixture(t, "feed.json")
	c := newTestAdapter(t, f)

	res, err := c.CheckUpdatedURLs(context.Background(), nil)
	require.NoError(t, err)
	assert.Zero(t, res.Len())
}

func TestCheckUpdatedURLs_FeedFailures(t *testing.T) {
	t.Run("server error is transient", func(t *testing.T) {
		f := newFakeComick(t)
		f.feedCode = http.StatusServiceUnavailable
		c := newTestAdapter(t, f)

		_, err := c.CheckUpdatedURLs(context.Background(), []manga.LastChapter{lastChapter(c, "S1hid", "C41")})
		require.Error(t, err)
		assert.ErrorIs(t, err, manga.ErrSourceUnavailable)
		assert.True(t, transport.IsTransient(err))
	})

	t.Run("schema drift", func(t *testing.T) {
		f := newFakeComick(t)
		f.feed = []byte(`{"error":"moved"}`)
		c := newTestAdapter(t, f)

		_, err := c.CheckUpdatedURLs(context.Background(), []manga.LastChapter{lastChapter(c, "S1hid", "C41")})
		assert.ErrorIs(t, err, manga.ErrUnexpectedFormat)
	})
}

func TestLabel_Normalizes(t *testing.T) {
	tests := []struct {
		raw  string
		want label
	}{
		{`"42"`, "42"},
		{`42`, "42"},
		{`42.0`, "42"},
		{`5.5`, "5.5"},
		{`null`, ""},
	}
	for _, tt := range tests {
		var l label
		require.NoError(t, l.UnmarshalJSON([]byte(tt.raw)))
		assert.Equal(t, tt.want, l, tt.raw)
	}
}
