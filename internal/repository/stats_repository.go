package repository

import (
	"context"
	"database/sql"

	"github.com/skillwise/auth/internal/model"
)

// StatsRepo reads the per-user aggregate row. The row itself is seeded
// inside the registration transaction (UserRepo.Create).
type StatsRepo struct{ DB *sql.DB }

func NewStatsRepo(db *sql.DB) *StatsRepo { return &StatsRepo{DB: db} }

// GetByUser fetches the stats row for a user.
func (r *StatsRepo) GetByUser(ctx context.Context, userID uint64) (model.UserStats, error) {
	var s model.UserStats
	err := r.DB.QueryRowContext(ctx,
		"SELECT user_id, points, challenges_completed, submissions_count, current_streak, updated_at FROM user_stats WHERE user_id=? LIMIT 1",
		userID).Scan(&s.UserID, &s.Points, &s.ChallengesCompleted, &s.SubmissionsCount, &s.CurrentStreak, &s.UpdatedAt)
	if err == sql.ErrNoRows {
		return model.UserStats{}, ErrNotFound
	}
	return s, err
}
