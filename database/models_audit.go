package database

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Audit actions
const (
	ActionCreate  = "create"
	ActionUpdate  = "update"
	ActionDestroy = "destroy"
)

// Legacy audit_type_ucode values
const (
	AuditTypeCreate  = "CREATE"
	AuditTypeUpdate  = "UPDATE"
	AuditTypeDestroy = "DESTROY"
)

// AuditHooksKey is the gorm setting under which the hook environment is stored.
const AuditHooksKey = "legacyaudit:audit_hooks"

var (
	// ErrSaveSuppressed aborts an audit save while auditing is disabled.
	ErrSaveSuppressed = errors.New("audit save suppressed: auditing is disabled")
	// ErrAuditImmutable is returned for any attempt to update a stored audit.
	ErrAuditImmutable = errors.New("audit records cannot be updated")
	// ErrInvalidAuditable is returned for an auditable reference without type or id.
	ErrInvalidAuditable = errors.New("invalid auditable reference")
)

// AuditHooks is the process state consulted by the Audit save hooks.
type AuditHooks interface {
	Disabled() bool
	CurrentMember(ctx context.Context) *int64
	CurrentQuintessUser(ctx context.Context) *int64
}

// AuditableRef identifies the audited entity by type-name and id.
type AuditableRef struct {
	Type string `json:"auditable_type"`
	ID   int64  `json:"auditable_id"`
}

// NewAuditableRef builds a validated reference.
func NewAuditableRef(typeName string, id int64) (AuditableRef, error) {
	ref := AuditableRef{Type: strings.TrimSpace(typeName), ID: id}
	if err := ref.Validate(); err != nil {
		return AuditableRef{}, err
	}
	return ref, nil
}

// Validate reports ErrInvalidAuditable unless both type and a positive id are set.
func (r AuditableRef) Validate() error {
	if r.Type == "" || r.ID <= 0 {
		return ErrInvalidAuditable
	}
	return nil
}

// Audit is one create/update/destroy event against an auditable entity,
// stored in the legacy "Audit" table.
type Audit struct {
	AuditUID              int64             `gorm:"column:audit_uid;primaryKey;autoIncrement" json:"audit_uid"`
	AuditableID           int64             `gorm:"column:auditable_id;index:idx_audit_auditable" json:"auditable_id"`
	AuditableType         string            `gorm:"column:auditable_type;size:64;index:idx_audit_auditable" json:"auditable_type"`
	Action                string            `gorm:"column:action;size:16" json:"action"`
	ChangeHistory         datatypes.JSONMap `gorm:"column:change_history" json:"change_history"`
	Version               int               `gorm:"column:version;not null;default:0" json:"version"`
	AuditTypeUcode        string            `gorm:"column:audit_type_ucode;size:16" json:"audit_type_ucode"`
	MembershipUID         *int64            `gorm:"column:membership_uid" json:"membership_uid"`
	QuintessEditorUID     *int64            `gorm:"column:quintess_editor_uid" json:"quintess_editor_uid"`
	MemberEditorUID       *int64            `gorm:"column:member_editor_uid" json:"member_editor_uid"`
	MembershipContractUID *int64            `gorm:"column:membership_contract_uid" json:"membership_contract_uid"`
	CreatedAt             time.Time         `gorm:"column:created_at" json:"created_at"`

	Membership         *Membership         `gorm:"foreignKey:MembershipUID;references:MembershipUID" json:"membership,omitempty"`
	QuintessUser       *QuintessUser       `gorm:"foreignKey:QuintessEditorUID;references:QuintessUserUID" json:"quintess_user,omitempty"`
	Member             *Member             `gorm:"foreignKey:MemberEditorUID;references:MemberUID" json:"member,omitempty"`
	MembershipContract *MembershipContract `gorm:"foreignKey:MembershipContractUID;references:MembershipContractUID" json:"membership_contract,omitempty"`
}

// TableName maps Audit onto the legacy table.
func (Audit) TableName() string { return "Audit" }

// Auditable returns the polymorphic reference held by the record.
func (a *Audit) Auditable() AuditableRef {
	return AuditableRef{Type: a.AuditableType, ID: a.AuditableID}
}

// SetAuditable stores ref in the auditable columns.
func (a *Audit) SetAuditable(ref AuditableRef) {
	a.AuditableType = ref.Type
	a.AuditableID = ref.ID
}

// AuditedChanges reads the change_history column. Numbers loaded from the
// database come back as json.Number.
func (a *Audit) AuditedChanges() map[string]any {
	return a.ChangeHistory
}

// SetAuditedChanges writes the change_history column.
func (a *Audit) SetAuditedChanges(changes map[string]any) {
	a.ChangeHistory = datatypes.JSONMap(changes)
}

// User is always nil: the legacy table records editors through
// member_editor_uid and quintess_editor_uid instead.
func (a *Audit) User() any {
	return nil
}

// SetUser discards its argument. See User.
func (a *Audit) SetUser(any) {}

// BeforeSave rejects stored rows, cancels the save while auditing is
// disabled, then fills the legacy classification and editor columns.
func (a *Audit) BeforeSave(tx *gorm.DB) error {
	if a.AuditUID != 0 {
		return ErrAuditImmutable
	}

	env := auditHooksFrom(tx)
	if env != nil && env.Disabled() {
		return ErrSaveSuppressed
	}

	a.fillLegacyColumns()
	if env != nil {
		ctx := tx.Statement.Context
		a.MemberEditorUID = env.CurrentMember(ctx)
		a.QuintessEditorUID = env.CurrentQuintessUser(ctx)
	}
	return nil
}

// BeforeCreate pins the version to 0.
// TODO: derive version from the max version of the auditable once consumers
// stop relying on every row reporting version 0.
func (a *Audit) BeforeCreate(tx *gorm.DB) error {
	a.Version = 0
	return nil
}

// BeforeUpdate rejects updates addressed by condition, such as
// Model(&Audit{}).Where(...).Updates(...), which carry no stored uid.
func (a *Audit) BeforeUpdate(tx *gorm.DB) error {
	return ErrAuditImmutable
}

func (a *Audit) fillLegacyColumns() {
	action := a.Action
	if action == "" {
		action = "nothing"
	}
	switch code := strings.ToUpper(action); code {
	case AuditTypeCreate, AuditTypeUpdate, AuditTypeDestroy:
		a.AuditTypeUcode = code
	}
}

func auditHooksFrom(tx *gorm.DB) AuditHooks {
	v, ok := tx.Get(AuditHooksKey)
	if !ok {
		return nil
	}
	env, _ := v.(AuditHooks)
	return env
}
