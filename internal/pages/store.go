package pages

import (
	"context"

	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Store defines persistence operations for pages.
type Store interface {
	GetByURL(ctx context.Context, url string) (*Page, error)
	ListPages(ctx context.Context) ([]Page, error)
	Save(ctx context.Context, page *Page, actor string) error
	DeleteByURL(ctx context.Context, url string) (*Page, error)
	CountPages(ctx context.Context) (int64, error)
	ListAudit(ctx context.Context, pageID uint) ([]AuditEntry, error)
}

// AuditActionDeleted marks the audit entry written when a page is removed.
const AuditActionDeleted = "deleted"

// GormStore persists pages using a Gorm database connection.
type GormStore struct {
	db     *gorm.DB
	logger *logrus.Logger
}

// NewStore constructs a Gorm-backed store implementation.
func NewStore(db *gorm.DB, logger *logrus.Logger) (*GormStore, error) {
	if db == nil {
		return nil, eris.New("gorm DB is required")
	}

	return &GormStore{db: db, logger: logger}, nil
}

var _ Store = (*GormStore)(nil)

// GetByURL returns the first page whose url matches exactly, or nil when none does.
func (s *GormStore) GetByURL(ctx context.Context, url string) (*Page, error) {
	var page Page
	err := s.withParameters(ctx).
		Where("url = ?", url).
		Order("id ASC").
		First(&page).Error
	if err != nil {
		if eris.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		s.logError(logrus.Fields{"url": url}, err, "fetching page by url")
		return nil, eris.Wrapf(err, "fetching page by url: %s", url)
	}

	return &page, nil
}

// ListPages returns every page with its parameters, in insertion order.
func (s *GormStore) ListPages(ctx context.Context) ([]Page, error) {
	var pages []Page

	if err := s.withParameters(ctx).Order("id ASC").Find(&pages).Error; err != nil {
		s.logError(nil, err, "listing pages")
		return nil, eris.Wrap(err, "listing pages")
	}

	return pages, nil
}

// Save inserts or updates the page, replaces its parameters and records an audit entry.
func (s *GormStore) Save(ctx context.Context, page *Page, actor string) error {
	if page == nil {
		return eris.New("page is nil")
	}

	action := AuditActionUpdated
	if page.ID == 0 {
		action = AuditActionCreated
	}
	page.UpdatedBy = actor

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Save(page).Error; err != nil {
			return eris.Wrap(err, "saving page row")
		}

		if err := tx.Where("page_id = ?", page.ID).Delete(&Parameter{}).Error; err != nil {
			return eris.Wrap(err, "clearing page parameters")
		}

		for i := range page.Parameters {
			page.Parameters[i].ID = 0
			page.Parameters[i].PageID = page.ID
			page.Parameters[i].Position = i
		}

		if len(page.Parameters) > 0 {
			if err := tx.Create(&page.Parameters).Error; err != nil {
				return eris.Wrap(err, "inserting page parameters")
			}
		}

		entry := AuditEntry{PageID: page.ID, URL: page.URL, Action: action, Actor: actor}
		if err := tx.Create(&entry).Error; err != nil {
			return eris.Wrap(err, "writing audit entry")
		}

		return nil
	})
	if err != nil {
		s.logError(logrus.Fields{"url": page.URL, "page_id": page.ID}, err, "saving page")
		return eris.Wrapf(err, "saving page: %s", page.URL)
	}

	return nil
}

// DeleteByURL removes the first page matching url exactly and returns it, or nil when none matched.
func (s *GormStore) DeleteByURL(ctx context.Context, url string) (*Page, error) {
	page, err := s.GetByURL(ctx, url)
	if err != nil || page == nil {
		return nil, err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("page_id = ?", page.ID).Delete(&Parameter{}).Error; err != nil {
			return eris.Wrap(err, "deleting page parameters")
		}

		if err := tx.Unscoped().Delete(&Page{}, page.ID).Error; err != nil {
			return eris.Wrap(err, "deleting page row")
		}

		entry := AuditEntry{PageID: page.ID, URL: page.URL, Action: AuditActionDeleted}
		if err := tx.Create(&entry).Error; err != nil {
			return eris.Wrap(err, "writing audit entry")
		}

		return nil
	})
	if err != nil {
		s.logError(logrus.Fields{"url": url, "page_id": page.ID}, err, "deleting page")
		return nil, eris.Wrapf(err, "deleting page: %s", url)
	}

	return page, nil
}

// CountPages returns the number of stored pages.
func (s *GormStore) CountPages(ctx context.Context) (int64, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&Page{}).Count(&count).Error; err != nil {
		s.logError(nil, err, "counting pages")
		return 0, eris.Wrap(err, "counting pages")
	}

	return count, nil
}

// ListAudit returns the audit trail for a page, oldest first.
func (s *GormStore) ListAudit(ctx context.Context, pageID uint) ([]AuditEntry, error) {
	var entries []AuditEntry
	if err := s.db.WithContext(ctx).Where("page_id = ?", pageID).Order("id ASC").Find(&entries).Error; err != nil {
		s.logError(logrus.Fields{"page_id": pageID}, err, "listing audit entries")
		return nil, eris.Wrapf(err, "listing audit entries for page %d", pageID)
	}

	return entries, nil
}

func (s *GormStore) withParameters(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx).Preload("Parameters", func(db *gorm.DB) *gorm.DB {
		return db.Order("position ASC")
	})
}

func (s *GormStore) logError(fields logrus.Fields, err error, message string) {
	if s.logger == nil {
		return
	}

	entry := s.logger.WithField("error", err.Error())
	if len(fields) > 0 {
		entry = entry.WithFields(fields)
	}
	entry.Error(message)
}
