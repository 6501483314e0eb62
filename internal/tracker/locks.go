package tracker

import "sync"

// SeriesLocks serializes work on a single series. Entries are reference
// counted and dropped once nobody holds or waits on them, so the map only
// grows with the number of series being worked on concurrently.
type SeriesLocks struct {
	mu      sync.Mutex
	entries map[string]*seriesLock
}

type seriesLock struct {
	mu   sync.Mutex
	refs int
}

func NewSeriesLocks() *SeriesLocks {
	return &SeriesLocks{entries: make(map[string]*seriesLock)}
}

// Lock blocks until the series is free and returns its unlock function
func (l *SeriesLocks) Lock(url string) (unlock func()) {
	l.mu.Lock()
	e, ok := l.entries[url]
	if !ok {
		e = &seriesLock{}
		l.entries[url] = e
	}
	e.refs++
	l.mu.Unlock()

	e.mu.Lock()

	var once sync.Once
	return func() {
		once.Do(func() {
			e.mu.Unlock()

			l.mu.Lock()
			e.refs--
			if e.refs == 0 {
				delete(l.entries, url)
			}
			l.mu.Unlock()
		})
	}
}

// Len returns the number of series currently locked or waited on
func (l *SeriesLocks) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}
