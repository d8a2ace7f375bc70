package pages

import (
	"context"
	"strings"
	"sync"

	"github.com/getsentry/sentry-go"
	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"

	"pagecms/app/internal/messaging"
)

// RepositoryOptions wires a Repository with its collaborators.
type RepositoryOptions struct {
	Store     Store
	Cache     *Cache
	Bus       *messaging.Bus[*Updating]
	Logger    *logrus.Logger
	SentryHub *sentry.Hub
}

// Repository serves page lookups from the store or the url cache and applies
// update notifications to both.
type Repository struct {
	store     Store
	cache     *Cache
	publish   func(ctx context.Context, update *Updating) error
	logger    *logrus.Logger
	sentryHub *sentry.Hub

	editMu sync.Mutex
}

// NewRepository constructs a Repository and subscribes it to opts.Bus when set.
func NewRepository(opts RepositoryOptions) (*Repository, error) {
	if opts.Store == nil {
		return nil, eris.New("page store is required")
	}
	if opts.Cache == nil {
		return nil, eris.New("page cache is required")
	}

	repo := &Repository{
		store:     opts.Store,
		cache:     opts.Cache,
		logger:    opts.Logger,
		sentryHub: opts.SentryHub,
	}

	repo.publish = repo.AcceptMessage
	if opts.Bus != nil {
		opts.Bus.Subscribe(messaging.HandlerFunc[*Updating](repo.AcceptMessage))
		repo.publish = opts.Bus.Publish
	}

	return repo, nil
}

// GetByURL queries the store for an exact, case-sensitive url match, bypassing the cache.
// It returns nil when no page matches.
func (r *Repository) GetByURL(ctx context.Context, url string) (*Page, error) {
	page, err := r.store.GetByURL(ctx, url)
	if err != nil {
		r.recordError(logrus.Fields{"url": url}, err, "retrieving page by url")
		return nil, eris.Wrapf(err, "retrieving page: %s", url)
	}

	return page, nil
}

// GetContentFromCache returns the content of the page cached under url.
func (r *Repository) GetContentFromCache(ctx context.Context, url string) (string, error) {
	return r.cache.Content(ctx, url)
}

// TryGetPageFromCache reports whether url is cached and returns the page when it is.
func (r *Repository) TryGetPageFromCache(ctx context.Context, url string) (*Page, bool, error) {
	return r.cache.Lookup(ctx, url)
}

// AcceptMessage applies an update notification: blank parameters are dropped, the
// page is persisted with an audit entry, then the cache entry is replaced. The
// target is fully updated before it becomes visible in the cache. When persisting
// fails the cache is still updated, so it runs ahead of the store.
func (r *Repository) AcceptMessage(ctx context.Context, update *Updating) error {
	if update == nil || update.Target == nil {
		return eris.Wrap(ErrInvalidArgument, "update notification is required")
	}

	page := update.Target
	page.Parameters = namedParameters(page.Parameters)
	fields := logrus.Fields{"url": page.URL, "page_id": page.ID}

	saved := page.clone()
	saveErr := r.store.Save(ctx, saved, update.Actor)
	if saveErr == nil {
		page.Model = saved.Model
		page.UpdatedBy = saved.UpdatedBy
		page.Parameters = saved.Parameters
	}

	if err := r.cache.Put(ctx, page); err != nil {
		r.recordError(fields, err, "updating page cache")
		return eris.Wrap(err, "updating page cache")
	}

	if saveErr != nil {
		r.recordError(fields, saveErr, "persisting page update")
		return eris.Wrapf(saveErr, "persisting page update: %s", page.URL)
	}

	if r.logger != nil {
		r.logger.WithFields(logrus.Fields{
			"component": "pages.repository",
			"url":       page.URL,
			"page_id":   page.ID,
			"actor":     update.Actor,
		}).Debug("page update accepted")
	}

	return nil
}

// Edit loads the page stored under the exact url, or starts a new one, lets change
// modify it and publishes the result. Edits are serialized, so two edits of a new
// url cannot both create it. created reports whether no page existed before.
func (r *Repository) Edit(ctx context.Context, url, actor string, change func(page *Page)) (page *Page, created bool, err error) {
	if strings.TrimSpace(url) == "" {
		return nil, false, eris.Wrap(ErrInvalidArgument, emptyURLMessage)
	}

	r.editMu.Lock()
	defer r.editMu.Unlock()

	page, err = r.GetByURL(ctx, url)
	if err != nil {
		return nil, false, err
	}
	if page == nil {
		page = &Page{URL: url}
		created = true
	}

	if change != nil {
		change(page)
	}

	if err := r.publish(ctx, &Updating{Target: page, Actor: actor}); err != nil {
		return nil, created, eris.Wrapf(err, "publishing update for %s", url)
	}

	return page, created, nil
}

// Delete removes the page stored under the exact url and evicts it from the cache.
func (r *Repository) Delete(ctx context.Context, url string) error {
	if strings.TrimSpace(url) == "" {
		return eris.Wrap(ErrInvalidArgument, emptyURLMessage)
	}

	page, err := r.store.DeleteByURL(ctx, url)
	if err != nil {
		r.recordError(logrus.Fields{"url": url}, err, "deleting page")
		return eris.Wrapf(err, "deleting page: %s", url)
	}
	if page == nil {
		return eris.Wrapf(ErrPageNotFound, "deleting page: %s", url)
	}

	r.cache.Remove(page)
	return nil
}

// CountPages returns the number of stored pages.
func (r *Repository) CountPages(ctx context.Context) (int64, error) {
	count, err := r.store.CountPages(ctx)
	if err != nil {
		r.recordError(nil, err, "counting pages")
		return 0, eris.Wrap(err, "counting pages")
	}

	return count, nil
}

// Audit returns the audit trail of the page stored under the exact url, oldest first.
func (r *Repository) Audit(ctx context.Context, url string) ([]AuditEntry, error) {
	if strings.TrimSpace(url) == "" {
		return nil, eris.Wrap(ErrInvalidArgument, emptyURLMessage)
	}

	page, err := r.GetByURL(ctx, url)
	if err != nil {
		return nil, err
	}
	if page == nil {
		return nil, eris.Wrapf(ErrPageNotFound, "listing audit for %s", url)
	}

	entries, err := r.store.ListAudit(ctx, page.ID)
	if err != nil {
		r.recordError(logrus.Fields{"url": url, "page_id": page.ID}, err, "listing audit entries")
		return nil, eris.Wrapf(err, "listing audit for %s", url)
	}

	return entries, nil
}

// CacheStatus reports whether the cache has been built and how many entries it holds.
func (r *Repository) CacheStatus() (built bool, entries int) {
	return r.cache.Built(), r.cache.Len()
}

// namedParameters returns the parameters with non-blank names, renumbered.
func namedParameters(params []Parameter) []Parameter {
	kept := make([]Parameter, 0, len(params))
	for _, param := range params {
		if strings.TrimSpace(param.Name) == "" {
			continue
		}
		param.Position = len(kept)
		kept = append(kept, param)
	}

	return kept
}

func (r *Repository) recordError(fields logrus.Fields, err error, message string) {
	if err == nil {
		return
	}

	if r.logger != nil {
		entry := r.logger.WithField("error", err.Error())
		if len(fields) > 0 {
			entry = entry.WithFields(fields)
		}
		entry.Error(message)
	}

	if r.sentryHub != nil {
		r.sentryHub.CaptureException(err)
	}
}
