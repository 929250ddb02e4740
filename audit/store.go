package audit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"legacyaudit/database"
	"legacyaudit/metrics"
)

var ErrAuditNotFound = errors.New("audit not found")

// MembershipLookup checks member/membership pairings in the legacy schema.
type MembershipLookup interface {
	MemberHasMembership(ctx context.Context, memberUID, membershipUID int64) (bool, error)
}

// Entry is an audit event to record.
type Entry struct {
	Auditable             database.AuditableRef
	Action                string
	Changes               map[string]any
	MembershipUID         *int64
	MembershipContractUID *int64
}

// SaveResult reports the outcome of a save. A suppressed save is a success
// that wrote nothing.
type SaveResult struct {
	Audit      *database.Audit
	Suppressed bool
}

func (r SaveResult) Persisted() bool {
	return r.Audit != nil && !r.Suppressed
}

// ForeignKeyCheck is the outcome of comparing the member and membership held
// in the foreign-key context against MemberMembership.
type ForeignKeyCheck struct {
	Keys       ForeignKeys `json:"keys"`
	Checked    bool        `json:"checked"`
	Consistent bool        `json:"consistent"`
	Err        error       `json:"-"`
}

// Mismatch is true only when a lookup ran and found no pairing.
func (c ForeignKeyCheck) Mismatch() bool {
	return c.Checked && c.Err == nil && !c.Consistent
}

// Query selects audits. Zero fields do not filter.
type Query struct {
	Action      string
	Auditable   *database.AuditableRef
	UpUntil     *time.Time
	FromVersion *int
	ToVersion   *int
	Descending  bool
	Limit       int
}

func (q Query) scopes() []func(*gorm.DB) *gorm.DB {
	scopes := []func(*gorm.DB) *gorm.DB{database.DefaultOrder}
	if q.Descending {
		scopes = append(scopes, database.Descending)
	}
	if q.Action != "" {
		scopes = append(scopes, database.WithAction(q.Action))
	}
	if q.Auditable != nil {
		scopes = append(scopes, database.AuditableFinder(*q.Auditable))
	}
	if q.UpUntil != nil {
		scopes = append(scopes, database.UpUntil(*q.UpUntil))
	}
	if q.FromVersion != nil {
		scopes = append(scopes, database.FromVersion(*q.FromVersion))
	}
	if q.ToVersion != nil {
		scopes = append(scopes, database.ToVersion(*q.ToVersion))
	}
	return scopes
}

// Store records and reads audits. It is also the hook environment the Audit
// model consults on save.
type Store struct {
	db       *gorm.DB
	registry *Registry
	actors   ActorSource
	members  MembershipLookup
}

type Option func(*Store)

// WithActorSource sets who is reported as the editor of new audits.
// The default reads actors attached with WithActors.
func WithActorSource(a ActorSource) Option {
	return func(s *Store) { s.actors = a }
}

// WithMembershipLookup enables the foreign-key consistency check.
func WithMembershipLookup(m MembershipLookup) Option {
	return func(s *Store) { s.members = m }
}

func NewStore(db *gorm.DB, registry *Registry, opts ...Option) *Store {
	if registry == nil {
		registry = NewRegistry()
	}
	s := &Store{registry: registry, actors: ContextActors{}}
	for _, opt := range opts {
		opt(s)
	}
	s.db = db.Set(database.AuditHooksKey, s).Session(&gorm.Session{})
	return s
}

// DB returns the gorm handle carrying this store's hook environment.
// Audits saved through it obey the disabled flag and get editor columns filled.
func (s *Store) DB() *gorm.DB { return s.db }

func (s *Store) Registry() *Registry { return s.registry }

func (s *Store) Disabled() bool { return s.registry.Disabled() }

func (s *Store) CurrentMember(ctx context.Context) *int64 {
	if s.actors == nil {
		return nil
	}
	return s.actors.CurrentMember(ctx)
}

func (s *Store) CurrentQuintessUser(ctx context.Context) *int64 {
	if s.actors == nil {
		return nil
	}
	return s.actors.CurrentQuintessUser(ctx)
}

// Record validates e and saves it as a new audit row.
func (s *Store) Record(ctx context.Context, e Entry) (SaveResult, error) {
	if err := e.Auditable.Validate(); err != nil {
		return SaveResult{}, err
	}
	if s.registry.Disabled() {
		return s.suppressed(e.Auditable), nil
	}

	a := &database.Audit{
		Action:                e.Action,
		MembershipUID:         e.MembershipUID,
		MembershipContractUID: e.MembershipContractUID,
	}
	a.SetAuditable(e.Auditable)
	a.SetAuditedChanges(e.Changes)

	return s.Save(ctx, a)
}

// Save inserts a. Updates of stored audits are rejected by the model.
func (s *Store) Save(ctx context.Context, a *database.Audit) (SaveResult, error) {
	s.fillForeignKeys(ctx, a)

	err := s.db.WithContext(ctx).Create(a).Error
	if errors.Is(err, database.ErrSaveSuppressed) {
		return s.suppressed(a.Auditable()), nil
	}
	if err != nil {
		log.WithError(err).WithFields(log.Fields{
			"auditable_type": a.AuditableType,
			"auditable_id":   a.AuditableID,
			"action":         a.Action,
		}).Error("Failed to create audit")
		return SaveResult{}, fmt.Errorf("failed to create audit: %w", err)
	}

	metrics.AuditsWritten.WithLabelValues(actionLabel(a.Action)).Inc()

	if _, err := s.AddAuditedClass(ctx, a.AuditableType); err != nil {
		log.WithError(err).WithField("auditable_type", a.AuditableType).Warn("Failed to register audited class")
	}

	return SaveResult{Audit: a}, nil
}

func (s *Store) suppressed(ref database.AuditableRef) SaveResult {
	metrics.AuditsSuppressed.Inc()
	log.WithFields(log.Fields{
		"auditable_type": ref.Type,
		"auditable_id":   ref.ID,
	}).Debug("Auditing disabled, audit not written")
	return SaveResult{Suppressed: true}
}

func actionLabel(action string) string {
	switch action {
	case database.ActionCreate, database.ActionUpdate, database.ActionDestroy:
		return action
	}
	return "other"
}

// Find returns audits matching q, ascending by version unless q.Descending.
func (s *Store) Find(ctx context.Context, q Query) ([]database.Audit, error) {
	tx := s.db.WithContext(ctx).Model(&database.Audit{}).Scopes(q.scopes()...)
	if q.Limit > 0 {
		tx = tx.Limit(q.Limit)
	}

	var audits []database.Audit
	if err := tx.Find(&audits).Error; err != nil {
		log.WithError(err).Error("Failed to query audits")
		return nil, fmt.Errorf("failed to query audits: %w", err)
	}
	return audits, nil
}

// ForAuditable returns the history of one auditable entity, narrowed by scopes.
func (s *Store) ForAuditable(ctx context.Context, ref database.AuditableRef, scopes ...func(*gorm.DB) *gorm.DB) ([]database.Audit, error) {
	if err := ref.Validate(); err != nil {
		return nil, err
	}
	all := append([]func(*gorm.DB) *gorm.DB{database.DefaultOrder, database.AuditableFinder(ref)}, scopes...)

	var audits []database.Audit
	if err := s.db.WithContext(ctx).Model(&database.Audit{}).Scopes(all...).Find(&audits).Error; err != nil {
		return nil, fmt.Errorf("failed to query audits: %w", err)
	}
	return audits, nil
}

func (s *Store) Get(ctx context.Context, uid int64) (*database.Audit, error) {
	var a database.Audit
	err := s.db.WithContext(ctx).First(&a, "audit_uid = ?", uid).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrAuditNotFound
	}
	if err != nil {
		log.WithError(err).WithField("audit_uid", uid).Error("Failed to get audit")
		return nil, fmt.Errorf("failed to get audit: %w", err)
	}
	return &a, nil
}

// Ancestors returns every audit of the same auditable with a version up to
// and including the given audit's, the audit itself included.
func (s *Store) Ancestors(ctx context.Context, uid int64) ([]database.Audit, error) {
	a, err := s.Get(ctx, uid)
	if err != nil {
		return nil, err
	}
	audits, err := a.Ancestors(s.db.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("failed to load ancestors of audit %d: %w", uid, err)
	}
	return audits, nil
}

// AuditedClasses lists the distinct auditable type names, loading them from
// the Audit table on first use and from the cache afterwards.
func (s *Store) AuditedClasses(ctx context.Context) ([]string, error) {
	return s.registry.auditedTypes(ctx, s.loadAuditedClasses)
}

func (s *Store) loadAuditedClasses(ctx context.Context) ([]string, error) {
	var names []string
	err := s.db.WithContext(ctx).
		Model(&database.Audit{}).
		Distinct().
		Order("auditable_type ASC").
		Pluck("auditable_type", &names).Error
	if err != nil {
		log.WithError(err).Error("Failed to load audited classes")
		return nil, fmt.Errorf("failed to load audited classes: %w", err)
	}
	return names, nil
}

// AddAuditedClass registers name in the type-name cache. It reports false
// when the name was already known.
func (s *Store) AddAuditedClass(ctx context.Context, name string) (bool, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return false, database.ErrInvalidAuditable
	}
	if _, err := s.AuditedClasses(ctx); err != nil {
		return false, err
	}
	return s.registry.addAuditedType(name), nil
}

// ForeignKeys returns the foreign-key context for ctx together with the
// member/membership consistency check. A failed or mismatched check is
// logged and reported, never returned as an error.
func (s *Store) ForeignKeys(ctx context.Context) (ForeignKeys, ForeignKeyCheck) {
	keys := s.foreignKeys(ctx)
	return keys, s.checkForeignKeys(ctx, keys)
}

// CheckForeignKeys runs only the member/membership consistency check.
func (s *Store) CheckForeignKeys(ctx context.Context) ForeignKeyCheck {
	_, check := s.ForeignKeys(ctx)
	return check
}

func (s *Store) foreignKeys(ctx context.Context) ForeignKeys {
	keys := s.registry.ForeignKeys()
	for k, v := range foreignKeysFrom(ctx) {
		keys[k] = v
	}
	return keys
}

func (s *Store) checkForeignKeys(ctx context.Context, keys ForeignKeys) ForeignKeyCheck {
	check := ForeignKeyCheck{Keys: keys}

	memberUID, okMember := keys.Lookup(KeyMemberUID)
	membershipUID, okMembership := keys.Lookup(KeyMembershipUID)
	if !okMember || !okMembership || s.members == nil {
		return check
	}

	check.Checked = true
	found, err := s.members.MemberHasMembership(ctx, memberUID, membershipUID)
	if err != nil {
		check.Err = err
		log.WithError(err).Warn("Foreign-key context check failed")
		return check
	}

	check.Consistent = found
	if !found {
		metrics.ForeignKeyMismatches.Inc()
		log.WithFields(log.Fields{
			"member_uid":     memberUID,
			"membership_uid": membershipUID,
		}).Warn("Foreign-key context member/membership mismatch")
	}
	return check
}

func (s *Store) fillForeignKeys(ctx context.Context, a *database.Audit) {
	keys := s.foreignKeys(ctx)
	if a.MembershipUID == nil {
		if v, ok := keys.Lookup(KeyMembershipUID); ok {
			a.MembershipUID = &v
		}
	}
	if a.MembershipContractUID == nil {
		if v, ok := keys.Lookup(KeyMembershipContractUID); ok {
			a.MembershipContractUID = &v
		}
	}
}
