// Package foo is an example crawl unit. It walks the naval news index of
// navyrecognition.com and logs the headline of every article it reaches.
package foo

import (
	"context"
	"net/url"
	"strings"
	"sync"

	"github.com/nao1215/harvester/internal/config"
	"github.com/nao1215/harvester/internal/crawler"
	"github.com/nao1215/harvester/internal/model"
)

const (
	// Name is the unit name.
	Name = "foo"

	// StartingAddress is the default seed.
	StartingAddress = "https://navyrecognition.com/index.php/naval-news.html/"

	// Concurrency is the default permit pool size.
	Concurrency = 128
)

// Selectors bound by Register.
const (
	indexLinkSelector = "h3 > a"
	articleSelector   = "p.readmore > a"
	headlineSelector  = ".entry-header > h1"
)

// State collects the headlines seen by the unit.
type State struct {
	mu        sync.Mutex
	headlines []string
}

// Headlines returns the headlines in the order they were processed.
func (s *State) Headlines() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.headlines...)
}

func (s *State) add(title string) {
	s.mu.Lock()
	s.headlines = append(s.headlines, title)
	s.mu.Unlock()
}

// Unit returns the unit definition with a fresh State.
//
// Index pages linked from h3 headings are followed as Index; "read more"
// links are followed as News. The h1 of every News page is logged and
// collected. The unit skips addresses it already visited, since index
// pages link to each other.
func Unit() crawler.Unit[*State] {
	return crawler.Unit[*State]{
		Name:            Name,
		StartingAddress: StartingAddress,
		Concurrency:     Concurrency,
		UserAgent:       config.DefaultUserAgent,
		State:           &State{},
		Revisit:         crawler.SkipVisited,
		Register:        Register,
	}
}

// Register binds the unit's handlers.
func Register(h *crawler.Handlers[*State]) {
	h.OnSelector(indexLinkSelector, follow(model.Index())).
		OnSelector(articleSelector, follow(model.News())).
		OnSelector(headlineSelector, crawler.OnElement(headline, logHeadline))
}

// New builds the unit with overrides applied.
func New(overrides config.UnitConfig, opts ...crawler.Option) (crawler.Runner, error) {
	return crawler.NewCollector(Unit().WithOverrides(overrides), opts...)
}

func follow(pt model.PageType) crawler.ElementHandler[*State] {
	return crawler.OnElement(
		func(vc *crawler.Context[*State], el *crawler.Element) (*url.URL, bool) {
			return vc.ParseHref(el)
		},
		func(ctx context.Context, _ *crawler.Context[*State], c *crawler.Crawler[*State], u *url.URL) {
			_ = c.Visit(ctx, u, pt) //nolint:errcheck // logged and recorded by the crawler
		},
	)
}

func headline(vc *crawler.Context[*State], el *crawler.Element) (string, bool) {
	if vc.PageType.Kind() != model.KindNews {
		return "", false
	}
	title := strings.TrimSpace(el.Text())
	return title, title != ""
}

func logHeadline(_ context.Context, vc *crawler.Context[*State], c *crawler.Crawler[*State], title string) {
	c.Logger().Info("headline", "title", title, "url", vc.CurrentAddress.String())
	vc.State.add(title)
}
