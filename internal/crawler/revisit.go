package crawler

import (
	"fmt"
	"net/url"
	"strings"
	"sync"
)

// RevisitPolicy decides whether an address may be fetched more than once
// during a single crawl.
type RevisitPolicy int

const (
	// AllowRevisit fetches every scheduled address, even repeated ones.
	// Handlers are expected to avoid cycles themselves.
	AllowRevisit RevisitPolicy = iota

	// SkipVisited fetches each normalized address at most once per crawl.
	SkipVisited
)

// String returns the policy name used in configuration files.
func (p RevisitPolicy) String() string {
	switch p {
	case AllowRevisit:
		return "allow"
	case SkipVisited:
		return "skip"
	default:
		return fmt.Sprintf("RevisitPolicy(%d)", int(p))
	}
}

// visitedSet records normalized addresses for SkipVisited.
// It lives only as long as the crawler and is never persisted.
type visitedSet struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

func newVisitedSet() *visitedSet {
	return &visitedSet{seen: make(map[string]struct{})}
}

// add marks u as visited and reports whether it was new.
func (v *visitedSet) add(u *url.URL) bool {
	key := normalizeURL(u)

	v.mu.Lock()
	defer v.mu.Unlock()
	if _, ok := v.seen[key]; ok {
		return false
	}
	v.seen[key] = struct{}{}
	return true
}

// normalizeURL returns the deduplication key for u.
//
// Design decision: the fragment is dropped because it never changes what the
// server returns, and an empty path is the same resource as "/".
// Scheme and host are case-insensitive.
func normalizeURL(u *url.URL) string {
	n := *u
	n.Fragment = ""
	n.RawFragment = ""
	n.Scheme = strings.ToLower(n.Scheme)
	n.Host = strings.ToLower(n.Host)
	if n.Path == "" {
		n.Path = "/"
	}
	return n.String()
}
