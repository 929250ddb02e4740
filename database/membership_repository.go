package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
)

// MembershipRepository runs raw lookups against the legacy membership tables.
type MembershipRepository struct {
	db *sql.DB
}

func NewMembershipRepository(db *sql.DB) *MembershipRepository {
	return &MembershipRepository{db: db}
}

// MemberHasMembership reports whether a MemberMembership row pairs the two uids.
func (r *MembershipRepository) MemberHasMembership(ctx context.Context, memberUID, membershipUID int64) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	query := `SELECT 1 FROM "MemberMembership" WHERE member_uid = $1 AND membership_uid = $2 LIMIT 1`

	var found int
	err := r.db.QueryRowContext(ctx, query, memberUID, membershipUID).Scan(&found)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		log.WithError(err).WithFields(log.Fields{
			"member_uid":     memberUID,
			"membership_uid": membershipUID,
		}).Error("Failed to look up member membership")
		return false, fmt.Errorf("failed to look up member membership: %w", err)
	}
	return true, nil
}
