package pages

import (
	"time"

	"gorm.io/gorm"
)

// Page is a content entry addressable by URL.
type Page struct {
	gorm.Model
	URL        string      `gorm:"size:2048;uniqueIndex:idx_pages_url_unique,where:url <> ''"`
	Content    string      `gorm:"type:text;not null"`
	UpdatedBy  string      `gorm:"size:255"`
	Parameters []Parameter `gorm:"foreignKey:PageID;constraint:OnDelete:CASCADE"`
}

func (p *Page) clone() *Page {
	copied := *p
	copied.Parameters = append([]Parameter(nil), p.Parameters...)
	return &copied
}

// TableName defines the table name for the Page model.
func (Page) TableName() string {
	return "pages"
}

// Parameter is a named value attached to a page. Position keeps the list ordered.
type Parameter struct {
	ID       uint   `gorm:"primaryKey"`
	PageID   uint   `gorm:"index;not null"`
	Position int    `gorm:"not null"`
	Name     string `gorm:"size:255"`
	Value    string `gorm:"type:text"`
}

// TableName defines the table name for the Parameter model.
func (Parameter) TableName() string {
	return "page_parameters"
}

// Audit actions recorded for page saves.
const (
	AuditActionCreated = "created"
	AuditActionUpdated = "updated"
)

// AuditEntry records who changed a page and when.
type AuditEntry struct {
	ID        uint   `gorm:"primaryKey"`
	PageID    uint   `gorm:"index;not null"`
	URL       string `gorm:"size:2048"`
	Action    string `gorm:"size:32;not null"`
	Actor     string `gorm:"size:255"`
	CreatedAt time.Time
}

// TableName defines the table name for the AuditEntry model.
func (AuditEntry) TableName() string {
	return "page_audit_entries"
}

// Updating is the notification delivered before a page's persisted state changes.
// Target is shared with cache readers once accepted and must not be changed
// afterwards; load a fresh copy to change it again.
type Updating struct {
	Target *Page
	Actor  string
}
