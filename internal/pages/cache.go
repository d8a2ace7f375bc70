package pages

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Source supplies the full page set the cache is built from.
type Source interface {
	ListPages(ctx context.Context) ([]Page, error)
}

// CacheOptions configures a Cache.
type CacheOptions struct {
	Source Source
	// Locale drives lower-casing of keys. The zero value behaves like language.Und.
	Locale language.Tag
	Logger *logrus.Logger
}

// Cache maps lower-cased page urls to shared *Page references.
//
// The cache is built from Source on first access and afterwards kept current only
// through Put and Remove. It is safe for concurrent use.
type Cache struct {
	source Source
	locale language.Tag
	logger *logrus.Logger

	group singleflight.Group
	built atomic.Bool

	mu      sync.RWMutex
	entries map[string]*Page
	// keys remembers the key each page id was last stored under so a url
	// change evicts the previous entry.
	keys map[uint]string
}

// NewCache constructs an empty, unbuilt cache.
func NewCache(opts CacheOptions) (*Cache, error) {
	if opts.Source == nil {
		return nil, eris.New("cache source is required")
	}

	return &Cache{
		source:  opts.Source,
		locale:  opts.Locale,
		logger:  opts.Logger,
		entries: make(map[string]*Page),
		keys:    make(map[uint]string),
	}, nil
}

// Normalize lower-cases url using the cache locale.
func (c *Cache) Normalize(url string) string {
	// A Caser is stateful, so one is created per call.
	return cases.Lower(c.locale).String(url)
}

// Content returns the content of the cached page for url.
func (c *Cache) Content(ctx context.Context, url string) (string, error) {
	page, found, err := c.Lookup(ctx, url)
	if err != nil {
		return "", err
	}
	if !found {
		return "", eris.Wrapf(ErrKeyNotFound, "looking up %s", c.Normalize(url))
	}

	return page.Content, nil
}

// Lookup reports whether a page is cached under url and returns it when present.
func (c *Cache) Lookup(ctx context.Context, url string) (*Page, bool, error) {
	key, ok := c.key(url)
	if !ok {
		return nil, false, eris.Wrap(ErrInvalidArgument, emptyURLMessage)
	}

	if err := c.ensureBuilt(ctx); err != nil {
		return nil, false, err
	}

	c.mu.RLock()
	page, found := c.entries[key]
	c.mu.RUnlock()

	return page, found, nil
}

// Put stores page under its normalized url, replacing any previous entry for that
// key and evicting the key the same page was stored under before. Pages without a
// url are only evicted.
func (c *Cache) Put(ctx context.Context, page *Page) error {
	if page == nil {
		return eris.Wrap(ErrInvalidArgument, "page is required")
	}

	if err := c.ensureBuilt(ctx); err != nil {
		return err
	}

	key, ok := c.key(page.URL)

	c.mu.Lock()
	defer c.mu.Unlock()

	if previous, tracked := c.keys[page.ID]; page.ID != 0 && tracked && (!ok || previous != key) {
		c.evictLocked(previous, page)
	}

	if !ok {
		return nil
	}

	c.entries[key] = page
	if page.ID != 0 {
		c.keys[page.ID] = key
	}

	return nil
}

// Remove evicts page from the cache.
func (c *Cache) Remove(page *Page) {
	if page == nil {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if previous, tracked := c.keys[page.ID]; page.ID != 0 && tracked {
		c.evictLocked(previous, page)
	}
	if key, ok := c.key(page.URL); ok {
		c.evictLocked(key, page)
	}
}

// Len returns the number of cached entries.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Built reports whether the initial scan has completed.
func (c *Cache) Built() bool {
	return c.built.Load()
}

func (c *Cache) evictLocked(key string, page *Page) {
	if current, ok := c.entries[key]; ok && (current == page || (page.ID != 0 && current.ID == page.ID)) {
		delete(c.entries, key)
	}
	if c.keys[page.ID] == key {
		delete(c.keys, page.ID)
	}
}

func (c *Cache) key(url string) (string, bool) {
	if strings.TrimSpace(url) == "" {
		return "", false
	}
	return c.Normalize(url), true
}

func (c *Cache) ensureBuilt(ctx context.Context) error {
	if c.built.Load() {
		return nil
	}

	_, err, _ := c.group.Do("build", func() (any, error) {
		if c.built.Load() {
			return nil, nil
		}

		// Waiters share this scan, so one caller's cancellation must not fail it.
		pages, err := c.source.ListPages(context.WithoutCancel(ctx))
		if err != nil {
			c.logError(err, "building page cache")
			return nil, eris.Wrap(err, "building page cache")
		}

		entries := make(map[string]*Page, len(pages))
		keys := make(map[uint]string, len(pages))
		for i := range pages {
			page := &pages[i]
			key, ok := c.key(page.URL)
			if !ok {
				continue
			}
			if _, exists := entries[key]; exists {
				continue
			}
			entries[key] = page
			keys[page.ID] = key
		}

		c.mu.Lock()
		c.entries = entries
		c.keys = keys
		c.mu.Unlock()
		c.built.Store(true)

		if c.logger != nil {
			c.logger.WithFields(logrus.Fields{
				"component": "pages.cache",
				"scanned":   len(pages),
				"cached":    len(entries),
			}).Info("page cache built")
		}

		return nil, nil
	})

	return err
}

func (c *Cache) logError(err error, message string) {
	if c.logger == nil {
		return
	}

	c.logger.WithField("component", "pages.cache").WithField("error", err.Error()).Error(message)
}
