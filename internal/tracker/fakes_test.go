package tracker

import (
	"context"
	"fmt"
	"iter"
	"strings"
	"sync"

	"github.com/stretchr/testify/mock"

	"github.com/tyburd/mangabot/internal/manga"
	"github.com/tyburd/mangabot/internal/notify"
	"github.com/tyburd/mangabot/internal/store"
)

const fakeAPI = "https://api.fake.test/"

// fakeClient is an in-memory source whose update check compares the stored
// pointer with the real newest chapter
type fakeClient struct {
	mu         sync.Mutex
	chapters   map[string][]manga.Chapter
	pictures   map[string][]string
	pictureErr map[string]error
	checkErrs  []error
	checkCalls int
	listCalls  int
}

func newFakeClient() *fakeClient {
	return &fakeClient{
		chapters:   map[string][]manga.Chapter{},
		pictures:   map[string][]string{},
		pictureErr: map[string]error{},
	}
}

func seriesURL(id string) string { return fakeAPI + "comic/" + id }

func (f *fakeClient) card(id, name string) manga.Card {
	return manga.Card{Client: f, Name: name, URL: seriesURL(id), Slug: strings.ToLower(name)}
}

// addChapters appends n chapters to a series and returns their URLs
func (f *fakeClient) addChapters(id string, n int) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	url := seriesURL(id)
	var urls []string
	for range n {
		num := len(f.chapters[url]) + 1
		chURL := fmt.Sprintf("%schapter/%s-%d", fakeAPI, id, num)
		f.chapters[url] = append(f.chapters[url], manga.Chapter{
			Client: f,
			Title:  fmt.Sprintf("Chapter %d", num),
			URL:    chURL,
			Manga:  manga.Card{Client: f, URL: url},
			Slug:   fmt.Sprintf("%s-chapter-%d", id, num),
		})
		f.pictures[chURL] = []string{chURL + "/1.jpg", chURL + "/2.jpg"}
		urls = append(urls, chURL)
	}
	return urls
}

func (f *fakeClient) Name() string { return "Fake-en" }

func (f *fakeClient) Search(context.Context, string, int) ([]manga.Card, error) { return nil, nil }

func (f *fakeClient) Chapters(context.Context, manga.Card, int, int) ([]manga.Chapter, error) {
	return nil, nil
}

func (f *fakeClient) IterChapters(_ context.Context, url, _ string) iter.Seq2[manga.Chapter, error] {
	return func(yield func(manga.Chapter, error) bool) {
		f.mu.Lock()
		f.listCalls++
		chapters, ok := f.chapters[url]
		chapters = append([]manga.Chapter(nil), chapters...)
		f.mu.Unlock()

		if !ok {
			yield(manga.Chapter{}, manga.ErrNotFound)
			return
		}
		for _, ch := range chapters {
			if !yield(ch, nil) {
				return
			}
		}
	}
}

func (f *fakeClient) ParsePictures([]byte) ([]string, error) { return nil, nil }

func (f *fakeClient) Pictures(_ context.Context, ch manga.Chapter) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.pictureErr[ch.URL]; err != nil {
		return nil, err
	}
	return f.pictures[ch.URL], nil
}

func (f *fakeClient) ContainsURL(url string) bool { return strings.HasPrefix(url, fakeAPI) }

func (f *fakeClient) CheckUpdatedURLs(_ context.Context, lcs []manga.LastChapter) (manga.UpdateResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.checkCalls++
	if len(f.checkErrs) > 0 {
		err := f.checkErrs[0]
		f.checkErrs = f.checkErrs[1:]
		if err != nil {
			return manga.UpdateResult{}, err
		}
	}

	res := manga.UpdateResult{Updated: []string{}, NotUpdated: []string{}}
	for _, lc := range lcs {
		chapters := f.chapters[lc.URL]
		if len(chapters) > 0 && chapters[len(chapters)-1].URL != lc.ChapterURL {
			res.Updated = append(res.Updated, lc.URL)
		} else {
			res.NotUpdated = append(res.NotUpdated, lc.URL)
		}
	}
	return res, nil
}

func (f *fakeClient) Cover(context.Context, manga.Card) ([]byte, error) { return nil, nil }

func (f *fakeClient) Picture(context.Context, manga.Chapter, string) ([]byte, error) { return nil, nil }

func (f *fakeClient) CardURL(c manga.Card) string { return "https://fake.test/comic/" + c.Slug }

func (f *fakeClient) ChapterURL(ch manga.Chapter) string {
	return "https://fake.test/read/" + ch.Slug
}

// recordingNotifier keeps every delivery
type recordingNotifier struct {
	mu         sync.Mutex
	deliveries []notify.Delivery
	failChat   string
}

func (n *recordingNotifier) Deliver(_ context.Context, d notify.Delivery) error {
	if d.ChatID == n.failChat {
		return fmt.Errorf("chat %s unreachable", d.ChatID)
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	n.deliveries = append(n.deliveries, d)
	return nil
}

// stubPublisher returns a page per chapter
type stubPublisher struct {
	mu     sync.Mutex
	titles []string
}

func (p *stubPublisher) Publish(_ context.Context, ch manga.Chapter, title string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.titles = append(p.titles, title)
	return "https://pages.test/" + ch.Slug, nil
}

// mockRepository is a testify mock of store.Repository
type mockRepository struct {
	mock.Mock
}

func (m *mockRepository) GetLastChapter(ctx context.Context, url string) (*store.LastChapter, error) {
	args := m.Called(ctx, url)
	lc, _ := args.Get(0).(*store.LastChapter)
	return lc, args.Error(1)
}

func (m *mockRepository) PutLastChapter(ctx context.Context, lc *store.LastChapter) error {
	return m.Called(ctx, lc).Error(0)
}

func (m *mockRepository) EraseLastChapter(ctx context.Context, url string) error {
	return m.Called(ctx, url).Error(0)
}

func (m *mockRepository) ListLastChapters(ctx context.Context, urls []string) ([]store.LastChapter, error) {
	args := m.Called(ctx, urls)
	lcs, _ := args.Get(0).([]store.LastChapter)
	return lcs, args.Error(1)
}

func (m *mockRepository) GetSubscription(ctx context.Context, url, chatID string) (*store.Subscription, error) {
	args := m.Called(ctx, url, chatID)
	sub, _ := args.Get(0).(*store.Subscription)
	return sub, args.Error(1)
}

func (m *mockRepository) AddSubscription(ctx context.Context, sub *store.Subscription) error {
	return m.Called(ctx, sub).Error(0)
}

func (m *mockRepository) EraseSubscription(ctx context.Context, url, chatID string) error {
	return m.Called(ctx, url, chatID).Error(0)
}

func (m *mockRepository) ListSubscriptions(ctx context.Context) ([]store.Subscription, error) {
	args := m.Called(ctx)
	subs, _ := args.Get(0).([]store.Subscription)
	return subs, args.Error(1)
}

func (m *mockRepository) SubscriptionsForURL(ctx context.Context, url string) ([]store.Subscription, error) {
	args := m.Called(ctx, url)
	subs, _ := args.Get(0).([]store.Subscription)
	return subs, args.Error(1)
}

func (m *mockRepository) SubscriptionsForChat(ctx context.Context, chatID string) ([]store.Subscription, error) {
	args := m.Called(ctx, chatID)
	subs, _ := args.Get(0).([]store.Subscription)
	return subs, args.Error(1)
}

func (m *mockRepository) SubscribedURLs(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)
	urls, _ := args.Get(0).([]string)
	return urls, args.Error(1)
}

func (m *mockRepository) GetMangaName(ctx context.Context, url string) (*store.MangaName, error) {
	args := m.Called(ctx, url)
	name, _ := args.Get(0).(*store.MangaName)
	return name, args.Error(1)
}

func (m *mockRepository) PutMangaName(ctx context.Context, name *store.MangaName) error {
	return m.Called(ctx, name).Error(0)
}

func (m *mockRepository) EraseMangaName(ctx context.Context, url string) error {
	return m.Called(ctx, url).Error(0)
}
var _ manga.Client = (*fakeClient)(nil)

// cancellingPublisher cancels the poll the first time a page is published
type cancellingPublisher struct {
	mu     sync.Mutex
	cancel context.CancelFunc
	first  string
}

func (p *cancellingPublisher) Publish(_ context.Context, ch manga.Chapter, _ string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.first == "" {
		p.first = ch.Manga.URL
		p.cancel()
	}
	return "https://pages.test/" + ch.Slug, nil
}
