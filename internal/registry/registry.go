// Package registry maps configured source adapters by name and resolves
// arbitrary URLs to the adapter that owns them.
package registry

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/tyburd/mangabot/internal/manga"
	"github.com/tyburd/mangabot/internal/manga/comick"
)

// Spec declares one adapter instance, e.g. "comick:en"
type Spec struct {
	Kind     string
	Language string
}

func (s Spec) String() string { return s.Kind + ":" + s.Language }

// ParseSpecs reads "kind:language" entries. A missing language means "en".
func ParseSpecs(entries []string) ([]Spec, error) {
	specs := make([]Spec, 0, len(entries))
	for _, raw := range entries {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		kind, lang, _ := strings.Cut(raw, ":")
		kind = strings.ToLower(strings.TrimSpace(kind))
		lang = strings.TrimSpace(lang)
		if kind == "" {
			return nil, fmt.Errorf("%w: bad client entry %q", manga.ErrConfiguration, raw)
		}
		if lang == "" {
			lang = "en"
		}
		specs = append(specs, Spec{Kind: kind, Language: lang})
	}
	return specs, nil
}

// Deps are the shared collaborators handed to every adapter factory
type Deps struct {
	Fetcher comick.Fetcher
	Logger  *slog.Logger
}

// Factory builds one adapter from its spec
type Factory func(spec Spec, deps Deps) (manga.Client, error)

var factories = map[string]Factory{
	"comick": func(spec Spec, deps Deps) (manga.Client, error) {
		return comick.New(deps.Fetcher, comick.Options{Language: spec.Language, Logger: deps.Logger})
	},
}

// Kinds lists the adapter kinds Build understands
func Kinds() []string {
	kinds := make([]string, 0, len(factories))
	for k := range factories {
		kinds = append(kinds, k)
	}
	return kinds
}

// Registry is the process-scoped set of active adapters plus the series
// they already produced. It is safe for concurrent use.
type Registry struct {
	clients []manga.Client
	byName  map[string]manga.Client

	mu    sync.RWMutex
	known map[string]manga.Card // both URL forms -> card
}

// Resolution is the outcome of Resolve. Card is nil when only the adapter's
// domain matched: the series is new and has to be found by searching.
type Resolution struct {
	URL    string
	Client manga.Client
	Card   *manga.Card
}

// Build creates the adapters declared in specs
func Build(specs []Spec, deps Deps) (*Registry, error) {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	clients := make([]manga.Client, 0, len(specs))
	for _, spec := range specs {
		factory, ok := factories[spec.Kind]
		if !ok {
			return nil, fmt.Errorf("%w: unknown client kind %q", manga.ErrConfiguration, spec.Kind)
		}
		c, err := factory(spec, deps)
		if err != nil {
			return nil, fmt.Errorf("client %s: %w", spec, err)
		}
		clients = append(clients, c)
	}
	return New(clients...)
}

// New creates a registry from already built adapters
func New(clients ...manga.Client) (*Registry, error) {
	if len(clients) == 0 {
		return nil, fmt.Errorf("%w: no clients configured", manga.ErrConfiguration)
	}
	r := &Registry{
		clients: clients,
		byName:  make(map[string]manga.Client, len(clients)),
		known:   make(map[string]manga.Card),
	}
	for _, c := range clients {
		if _, dup := r.byName[c.Name()]; dup {
			return nil, fmt.Errorf("%w: duplicate client %q", manga.ErrConfiguration, c.Name())
		}
		r.byName[c.Name()] = c
	}
	return r, nil
}

// Client returns the adapter registered under name
func (r *Registry) Client(name string) (manga.Client, bool) {
	c, ok := r.byName[name]
	return c, ok
}

// Clients returns the adapters in configuration order
func (r *Registry) Clients() []manga.Client {
	out := make([]manga.Client, len(r.clients))
	copy(out, r.clients)
	return out
}

// Remember records cards produced by a search so later URLs pointing at
// them resolve to the known series.
func (r *Registry) Remember(cards ...manga.Card) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, card := range cards {
		if card.Client == nil || card.URL == "" {
			continue
		}
		r.known[card.URL] = card
		r.known[card.PublicURL()] = card
	}
}

// Resolve finds the adapter owning raw. A URL matching an already known series
// in either of its forms resolves to the series' protocol URL and card.
func (r *Registry) Resolve(raw string) (Resolution, bool) {
	u := strings.TrimSpace(raw)
	if u == "" {
		return Resolution{}, false
	}

	r.mu.RLock()
	card, ok := r.known[u]
	r.mu.RUnlock()
	if ok && card.Matches(u) {
		return Resolution{URL: card.URL, Client: card.Client, Card: &card}, true
	}

	for _, c := range r.clients {
		if c.ContainsURL(u) {
			return Resolution{URL: u, Client: c}, true
		}
	}
	return Resolution{}, false
}
