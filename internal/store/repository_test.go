package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

type RepositorySuite struct {
	suite.Suite
	repo Repository
	ctx  context.Context
}

func (s *RepositorySuite) SetupTest() {
	db, err := Open("sqlite", filepath.Join(s.T().TempDir(), "mangabot.db"), nil)
	s.Require().NoError(err)
	s.T().Cleanup(func() { _ = Close(db) })

	s.repo = NewRepository(db)
	s.ctx = context.Background()
}

func TestRepositorySuite(t *testing.T) {
	suite.Run(t, new(RepositorySuite))
}

func (s *RepositorySuite) TestLastChapter_MissingIsNil() {
	lc, err := s.repo.GetLastChapter(s.ctx, "https://api.comick.app/comic/nope/chapters")
	s.NoError(err)
	s.Nil(lc)
}

func (s *RepositorySuite) TestLastChapter_Upsert() {
	url := "https://api.comick.app/comic/S1hid/chapters?lang=en"

	s.Require().NoError(s.repo.PutLastChapter(s.ctx, &LastChapter{URL: url, ChapterURL: "chapter/C41"}))
	s.Require().NoError(s.repo.PutLastChapter(s.ctx, &LastChapter{URL: url, ChapterURL: "chapter/C42"}))

	lc, err := s.repo.GetLastChapter(s.ctx, url)
	s.Require().NoError(err)
	s.Require().NotNil(lc)
	s.Equal("chapter/C42", lc.ChapterURL)

	all, err := s.repo.ListLastChapters(s.ctx, []string{url, "other"})
	s.NoError(err)
	s.Len(all, 1)

	s.NoError(s.repo.EraseLastChapter(s.ctx, url))
	lc, err = s.repo.GetLastChapter(s.ctx, url)
	s.NoError(err)
	s.Nil(lc)
}

func (s *RepositorySuite) TestListLastChapters_Empty() {
	all, err := s.repo.ListLastChapters(s.ctx, nil)
	s.NoError(err)
	s.Empty(all)
}

func (s *RepositorySuite) TestSubscription_Lifecycle() {
	caption := "<b>new!</b>"
	sub := &Subscription{URL: "u1", ChatID: "-100", OutputFormat: OutputCBZ, CustomCaption: &caption}

	s.Require().NoError(s.repo.AddSubscription(s.ctx, sub))
	err := s.repo.AddSubscription(s.ctx, &Subscription{URL: "u1", ChatID: "-100", OutputFormat: OutputPDF})
	s.ErrorIs(err, ErrSubscriptionExists)

	got, err := s.repo.GetSubscription(s.ctx, "u1", "-100")
	s.Require().NoError(err)
	s.Require().NotNil(got)
	s.Equal(OutputCBZ, got.OutputFormat)
	s.Require().NotNil(got.CustomCaption)
	s.Equal(caption, *got.CustomCaption)

	s.Require().NoError(s.repo.AddSubscription(s.ctx, &Subscription{URL: "u1", ChatID: "-200", OutputFormat: OutputPDF}))
	s.Require().NoError(s.repo.AddSubscription(s.ctx, &Subscription{URL: "u2", ChatID: "-100", OutputFormat: OutputBoth}))

	urls, err := s.repo.SubscribedURLs(s.ctx)
	s.NoError(err)
	s.Equal([]string{"u1", "u2"}, urls)

	forURL, err := s.repo.SubscriptionsForURL(s.ctx, "u1")
	s.NoError(err)
	s.Len(forURL, 2)

	forChat, err := s.repo.SubscriptionsForChat(s.ctx, "-100")
	s.NoError(err)
	s.Len(forChat, 2)

	s.NoError(s.repo.EraseSubscription(s.ctx, "u1", "-100"))
	got, err = s.repo.GetSubscription(s.ctx, "u1", "-100")
	s.NoError(err)
	s.Nil(got)

	all, err := s.repo.ListSubscriptions(s.ctx)
	s.NoError(err)
	s.Len(all, 2)
}

func (s *RepositorySuite) TestMangaName_Upsert() {
	s.Require().NoError(s.repo.PutMangaName(s.ctx, &MangaName{URL: "u1", Name: "Solo"}))
	s.Require().NoError(s.repo.PutMangaName(s.ctx, &MangaName{URL: "u1", Name: "Solo Leveling"}))

	name, err := s.repo.GetMangaName(s.ctx, "u1")
	s.Require().NoError(err)
	s.Require().NotNil(name)
	s.Equal("Solo Leveling", name.Name)

	s.NoError(s.repo.EraseMangaName(s.ctx, "u1"))
	name, err = s.repo.GetMangaName(s.ctx, "u1")
	s.NoError(err)
	s.Nil(name)
}

func TestParseOutputFormat(t *testing.T) {
	for in, want := range map[string]OutputFormat{"pdf": OutputPDF, " Cbz ": OutputCBZ, "BOTH": OutputBoth} {
		got, err := ParseOutputFormat(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	_, err := ParseOutputFormat("epub")
	assert.ErrorIs(t, err, ErrInvalidOutputFormat)
}

func TestOpen_UnknownDriver(t *testing.T) {
	_, err := Open("mysql", "dsn", nil)
	assert.ErrorContains(t, err, "unsupported")
}
