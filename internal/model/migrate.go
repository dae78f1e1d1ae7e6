package model

import "gorm.io/gorm"

// AutoMigrate runs GORM auto-migration for all models and creates custom indexes.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&Group{},
		&InviteCounter{},
		&JoinEvent{},
	); err != nil {
		return err
	}

	// Reconciliation scans only look at invited joins that were never credited.
	if err := db.Exec(
		"CREATE INDEX IF NOT EXISTS idx_join_events_uncredited " +
			"ON join_events (created_at) WHERE credited = false AND inviter_id IS NOT NULL",
	).Error; err != nil {
		return err
	}

	// Leaderboard rebuilds scan one group's counters.
	return db.Exec(
		"CREATE INDEX IF NOT EXISTS idx_invite_counters_group_count " +
			"ON invite_counters (group_id, invite_count DESC)",
	).Error
}
