package database

import (
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	versionColumn  = clause.Column{Name: "version"}
	auditUIDColumn = clause.Column{Name: "audit_uid"}
)

// DefaultOrder sorts audits by ascending version. audit_uid breaks ties so
// rows sharing a version keep insertion order.
func DefaultOrder(db *gorm.DB) *gorm.DB {
	return db.Clauses(clause.OrderBy{Columns: []clause.OrderByColumn{
		{Column: versionColumn},
		{Column: auditUIDColumn},
	}})
}

// Descending replaces any earlier ordering with descending version.
func Descending(db *gorm.DB) *gorm.DB {
	return db.Clauses(clause.OrderBy{Columns: []clause.OrderByColumn{
		{Column: versionColumn, Desc: true, Reorder: true},
		{Column: auditUIDColumn, Desc: true},
	}})
}

func Creates(db *gorm.DB) *gorm.DB  { return WithAction(ActionCreate)(db) }
func Updates(db *gorm.DB) *gorm.DB  { return WithAction(ActionUpdate)(db) }
func Destroys(db *gorm.DB) *gorm.DB { return WithAction(ActionDestroy)(db) }

// WithAction restricts to a single action value.
func WithAction(action string) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("action = ?", action)
	}
}

// UpUntil keeps audits created at or before t.
func UpUntil(t time.Time) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("created_at <= ?", t)
	}
}

// FromVersion keeps audits with version >= v.
func FromVersion(v int) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("version >= ?", v)
	}
}

// ToVersion keeps audits with version <= v.
func ToVersion(v int) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("version <= ?", v)
	}
}

// AuditableFinder keeps audits of one auditable entity.
func AuditableFinder(ref AuditableRef) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("auditable_id = ? AND auditable_type = ?", ref.ID, ref.Type)
	}
}

// AncestorsScope selects every audit of the same auditable with a version up
// to and including this one's. The record itself is part of the result.
func (a *Audit) AncestorsScope(db *gorm.DB) *gorm.DB {
	return db.Scopes(AuditableFinder(a.Auditable()), ToVersion(a.Version))
}

// Ancestors loads the ancestors of a in ascending version order.
func (a *Audit) Ancestors(db *gorm.DB) ([]Audit, error) {
	if err := a.Auditable().Validate(); err != nil {
		return nil, err
	}
	var audits []Audit
	err := db.Model(&Audit{}).Scopes(DefaultOrder, a.AncestorsScope).Find(&audits).Error
	if err != nil {
		return nil, err
	}
	return audits, nil
}
