package tracker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tyburd/mangabot/internal/export"
	"github.com/tyburd/mangabot/internal/manga"
	"github.com/tyburd/mangabot/internal/notify"
	"github.com/tyburd/mangabot/internal/store"
)

// ErrPollInProgress is returned when a poll is requested while one runs
var ErrPollInProgress = errors.New("a poll is already running")

var errDeliverySkipped = errors.New("delivery skipped")

// PollerConfig tunes the update poll
type PollerConfig struct {
	Interval time.Duration
	Workers  int
	Backoff  Backoff
}

// Report is the outcome of one poll. Every subscribed series ends up in
// exactly one of Updated, NotUpdated and Failed.
type Report struct {
	RunID      string
	Updated    []string
	NotUpdated []string
	Failed     map[string]error
	Deliveries []notify.Delivery
	Duration   time.Duration
}

// FailedURLs returns the failed series in a stable order
func (r *Report) FailedURLs() []string {
	urls := make([]string, 0, len(r.Failed))
	for u := range r.Failed {
		urls = append(urls, u)
	}
	sort.Strings(urls)
	return urls
}

// Poller checks subscribed series for new chapters and delivers them
type Poller struct {
	cfg       PollerConfig
	svc       *Service
	publisher export.Publisher
	notifier  notify.Notifier
	logger    *slog.Logger

	running sync.Mutex
}

func NewPoller(cfg PollerConfig, svc *Service, publisher export.Publisher, notifier notify.Notifier, logger *slog.Logger) *Poller {
	if cfg.Interval <= 0 {
		cfg.Interval = 10 * time.Minute
	}
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	if notifier == nil {
		notifier = notify.NewLogNotifier(logger)
	}
	return &Poller{cfg: cfg, svc: svc, publisher: publisher, notifier: notifier, logger: logger}
}

// Start runs CheckOnce immediately and then on every tick until ctx is done
func (p *Poller) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(p.cfg.Interval)
		defer ticker.Stop()

		p.logger.Info("poller_started", "interval", p.cfg.Interval.String())
		p.runLogged(ctx)

		for {
			select {
			case <-ticker.C:
				p.runLogged(ctx)
			case <-ctx.Done():
				p.logger.Info("poller_stopped")
				return
			}
		}
	}()
}

func (p *Poller) runLogged(ctx context.Context) {
	if _, err := p.CheckOnce(ctx); err != nil && !errors.Is(err, ErrPollInProgress) {
		p.logger.Error("poll_failed", "error", err)
	}
}

// pollRun is the mutable state of one CheckOnce call
type pollRun struct {
	mu     sync.Mutex
	report *Report
}

func (r *pollRun) updated(url string) {
	r.mu.Lock()
	r.report.Updated = append(r.report.Updated, url)
	r.mu.Unlock()
}

func (r *pollRun) notUpdated(urls ...string) {
	r.mu.Lock()
	r.report.NotUpdated = append(r.report.NotUpdated, urls...)
	r.mu.Unlock()
}

func (r *pollRun) fail(url string, err error) {
	r.mu.Lock()
	r.report.Failed[url] = err
	r.mu.Unlock()
}

// settle marks every series that never reported back as failed. Queued
// deliveries are dropped when the poll is cancelled.
func (r *pollRun) settle(urls []string, err error) {
	if err == nil {
		err = errDeliverySkipped
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	done := make(map[string]bool, len(r.report.Updated)+len(r.report.Failed))
	for _, u := range r.report.Updated {
		done[u] = true
	}
	for u := range r.report.Failed {
		done[u] = true
	}
	for _, u := range urls {
		if !done[u] {
			r.report.Failed[u] = err
			done[u] = true
		}
	}
}

func (r *pollRun) delivered(d notify.Delivery) {
	r.mu.Lock()
	r.report.Deliveries = append(r.report.Deliveries, d)
	r.mu.Unlock()
}

// CheckOnce runs one full poll. Failures of single series or adapters are
// reported in the Report; the returned error is only set when the poll could
// not run at all.
func (p *Poller) CheckOnce(ctx context.Context) (*Report, error) {
	if !p.running.TryLock() {
		return nil, ErrPollInProgress
	}
	defer p.running.Unlock()

	started := time.Now()
	run := &pollRun{report: &Report{RunID: uuid.NewString(), Failed: map[string]error{}}}
	logger := p.logger.With("run_id", run.report.RunID)

	urls, err := p.svc.repo.SubscribedURLs(ctx)
	if err != nil {
		return nil, fmt.Errorf("list subscribed series: %w", err)
	}

	records, err := p.lastChapters(ctx, run, urls)
	if err != nil {
		return nil, err
	}

	updated := p.classify(ctx, run, records, logger)

	pool := NewWorkerPool(ctx, p.cfg.Workers, logger)
	pool.Start()
	for _, u := range updated {
		submitted := pool.Submit(func(ctx context.Context) error {
			if err := p.deliverSeries(ctx, run, u, logger); err != nil {
				run.fail(u.record.URL, err)
				logger.Warn("series_delivery_failed", "series", u.record.URL, "error", err)
				return err
			}
			run.updated(u.record.URL)
			return nil
		})
		if !submitted {
			run.fail(u.record.URL, ctx.Err())
		}
	}
	pool.Wait()

	pending := make([]string, 0, len(updated))
	for _, u := range updated {
		pending = append(pending, u.record.URL)
	}
	run.settle(pending, ctx.Err())

	report := run.report
	sort.Strings(report.Updated)
	sort.Strings(report.NotUpdated)
	report.Duration = time.Since(started)

	logger.Info("poll_completed",
		"series", len(urls),
		"updated", len(report.Updated),
		"not_updated", len(report.NotUpdated),
		"failed", len(report.Failed),
		"deliveries", len(report.Deliveries),
		"duration_ms", report.Duration.Milliseconds(),
	)
	return report, nil
}

// lastChapters loads the pointers of every subscribed series, creating the
// ones that are missing. A series without chapters is not updated.
func (p *Poller) lastChapters(ctx context.Context, run *pollRun, urls []string) ([]manga.LastChapter, error) {
	stored, err := p.svc.repo.ListLastChapters(ctx, urls)
	if err != nil {
		return nil, fmt.Errorf("list last chapters: %w", err)
	}
	byURL := make(map[string]store.LastChapter, len(stored))
	for _, lc := range stored {
		byURL[lc.URL] = lc
	}

	records := make([]manga.LastChapter, 0, len(urls))
	for _, u := range urls {
		if lc, ok := byURL[u]; ok {
			records = append(records, manga.LastChapter{URL: lc.URL, ChapterURL: lc.ChapterURL})
			continue
		}

		lc, err := p.svc.UpdateLastChapter(ctx, u, false)
		switch {
		case errors.Is(err, ErrNoChapters):
			run.notUpdated(u)
		case err != nil:
			run.fail(u, err)
		default:
			// just created from the newest chapter, nothing to deliver yet
			run.notUpdated(lc.URL)
		}
	}
	return records, nil
}

// seriesUpdate is one series classified as updated
type seriesUpdate struct {
	record manga.LastChapter
	client manga.Client
}

// classify groups the records by adapter and runs each adapter's batch
// update check, retrying transient failures.
func (p *Poller) classify(ctx context.Context, run *pollRun, records []manga.LastChapter, logger *slog.Logger) []seriesUpdate {
	type group struct {
		client  manga.Client
		records []manga.LastChapter
	}
	groups := map[string]*group{}
	var order []string

	for _, rec := range records {
		res, ok := p.svc.registry.Resolve(rec.URL)
		if !ok {
			run.fail(rec.URL, fmt.Errorf("%w: %s", ErrUnknownSource, rec.URL))
			continue
		}
		name := res.Client.Name()
		g, ok := groups[name]
		if !ok {
			g = &group{client: res.Client}
			groups[name] = g
			order = append(order, name)
		}
		g.records = append(g.records, rec)
	}

	var updates []seriesUpdate
	for _, name := range order {
		g := groups[name]

		var result manga.UpdateResult
		err := p.cfg.Backoff.do(ctx, func() error {
			var err error
			result, err = g.client.CheckUpdatedURLs(ctx, g.records)
			return err
		})
		if err != nil {
			logger.Warn("update_check_failed", "client", name, "series", len(g.records), "error", err)
			for _, rec := range g.records {
				run.fail(rec.URL, err)
			}
			continue
		}

		run.notUpdated(result.NotUpdated...)
		for _, rec := range g.records {
			if result.IsUpdated(rec.URL) {
				updates = append(updates, seriesUpdate{record: rec, client: g.client})
			}
		}
		logger.Debug("update_check_done", "client", name, "updated", len(result.Updated), "not_updated", len(result.NotUpdated))
	}
	return dedupeUpdates(updates)
}

func dedupeUpdates(updates []seriesUpdate) []seriesUpdate {
	seen := make(map[string]struct{}, len(updates))
	out := updates[:0]
	for _, u := range updates {
		if _, dup := seen[u.record.URL]; dup {
			continue
		}
		seen[u.record.URL] = struct{}{}
		out = append(out, u)
	}
	return out
}

// deliverSeries fetches the chapters released after the stored pointer and
// hands them to every subscriber. The pointer advances chapter by chapter so a
// failure leaves the remaining chapters for the next poll.
func (p *Poller) deliverSeries(ctx context.Context, run *pollRun, u seriesUpdate, logger *slog.Logger) error {
	url := u.record.URL
	unlock := p.svc.locks.Lock(url)
	defer unlock()

	// re-read under the lock, an on-demand refresh may have moved it
	lc, err := p.svc.repo.GetLastChapter(ctx, url)
	if err != nil {
		return err
	}
	if lc == nil {
		return fmt.Errorf("last chapter of %s disappeared", url)
	}

	name := url
	if mn, err := p.svc.repo.GetMangaName(ctx, url); err != nil {
		return err
	} else if mn != nil {
		name = mn.Name
	}

	var chapters []manga.Chapter
	err = p.cfg.Backoff.do(ctx, func() error {
		var err error
		chapters, err = manga.Collect(u.client.IterChapters(ctx, url, name))
		return err
	})
	if err != nil {
		return fmt.Errorf("list chapters: %w", err)
	}

	fresh := manga.After(chapters, lc.ChapterURL)
	if len(fresh) == 0 {
		return nil
	}

	subs, err := p.svc.repo.SubscriptionsForURL(ctx, url)
	if err != nil {
		return err
	}

	for _, ch := range fresh {
		if err := p.deliverChapter(ctx, run, u.client, name, ch, subs, logger); err != nil {
			return fmt.Errorf("chapter %s: %w", ch.Title, err)
		}

		lc.ChapterURL = ch.URL
		if err := p.svc.repo.PutLastChapter(ctx, lc); err != nil {
			return err
		}
	}
	logger.Info("series_updated", "series", url, "name", name, "new_chapters", len(fresh), "subscribers", len(subs))
	return nil
}

func (p *Poller) deliverChapter(ctx context.Context, run *pollRun, client manga.Client, name string, ch manga.Chapter, subs []store.Subscription, logger *slog.Logger) error {
	err := p.cfg.Backoff.do(ctx, func() error {
		pics, err := client.Pictures(ctx, ch)
		ch.Pictures = pics
		return err
	})
	if err != nil {
		return fmt.Errorf("pictures: %w", err)
	}
	if len(ch.Pictures) == 0 {
		// the source refuses to serve it; skip rather than block the series
		logger.Warn("chapter_unavailable", "series", ch.Manga.URL, "chapter", ch.URL)
		return nil
	}

	var pageURL string
	if p.publisher != nil {
		pageURL, err = p.publisher.Publish(ctx, ch, export.PageTitle(name, ch))
		if err != nil {
			return fmt.Errorf("export: %w", err)
		}
	}

	for _, sub := range subs {
		d := notify.Delivery{
			RunID:        run.report.RunID,
			ChatID:       sub.ChatID,
			SeriesURL:    sub.URL,
			SeriesName:   name,
			ChapterTitle: ch.Title,
			ChapterURL:   ch.PublicURL(),
			PageURL:      pageURL,
			Pictures:     ch.Pictures,
			OutputFormat: string(sub.OutputFormat),
			Caption:      sub.CustomCaption,
		}
		if err := p.notifier.Deliver(ctx, d); err != nil {
			// a chat that cannot be reached must not hold back the others
			logger.Warn("delivery_failed", "chat_id", sub.ChatID, "series", sub.URL, "error", err)
			continue
		}
		run.delivered(d)
	}
	return nil
}
