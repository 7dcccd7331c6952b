package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/kmills/fitbattle-backend/internal/domain"
	"github.com/kmills/fitbattle-backend/internal/repository"
	"gorm.io/gorm"
)

type battleRepository struct {
	db *gorm.DB
}

func NewBattleRepository(db *gorm.DB) *battleRepository {
	return &battleRepository{db: db}
}

func (r *battleRepository) Create(ctx context.Context, battle *domain.Battle) error {
	return r.db.WithContext(ctx).Create(battle).Error
}

func (r *battleRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Battle, error) {
	var battle domain.Battle
	err := r.db.WithContext(ctx).First(&battle, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrBattleNotFound
		}
		return nil, err
	}
	return &battle, nil
}

// Update replaces the stored row only if its version still matches the version
// the battle was loaded at, then bumps the version. A concurrent writer that
// got in first leaves zero rows matching and the caller gets ErrConflict.
func (r *battleRepository) Update(ctx context.Context, battle *domain.Battle) error {
	loadedVersion := battle.Version
	battle.Version = loadedVersion + 1

	res := r.db.WithContext(ctx).
		Model(battle).
		Where("version = ?", loadedVersion).
		Select("*").
		Omit("created_at").
		Updates(battle)
	if res.Error != nil {
		battle.Version = loadedVersion
		return res.Error
	}
	if res.RowsAffected == 0 {
		battle.Version = loadedVersion
		return domain.ErrConflict
	}
	return nil
}

// sortColumns whitelists caller-supplied sort fields against the schema
var sortColumns = map[string]string{
	"createdAt":    "created_at",
	"startDate":    "start_date",
	"endDate":      "end_date",
	"completedAt":  "completed_at",
	"title":        "title",
	"status":       "status",
	"durationDays": "duration_days",
}

func orderClause(filter repository.BattleFilter) string {
	col, ok := sortColumns[filter.SortBy]
	if !ok {
		col = "created_at"
	}
	if filter.SortDesc {
		return col + " DESC"
	}
	return col + " ASC"
}

func applyFilter(q *gorm.DB, filter repository.BattleFilter) *gorm.DB {
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}
	if filter.BattleType != "" {
		q = q.Where("battle_type = ?", filter.BattleType)
	}
	return q
}

func limitOrDefault(limit int) int {
	if limit <= 0 {
		return 20
	}
	return limit
}

func (r *battleRepository) List(ctx context.Context, filter repository.BattleFilter) ([]*domain.Battle, int64, error) {
	q := applyFilter(r.db.WithContext(ctx).Model(&domain.Battle{}), filter)

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var battles []*domain.Battle
	err := q.Order(orderClause(filter)).
		Limit(limitOrDefault(filter.Limit)).
		Offset(filter.Offset).
		Find(&battles).Error
	if err != nil {
		return nil, 0, err
	}
	return battles, total, nil
}

func (r *battleRepository) GetByUserID(ctx context.Context, userID uuid.UUID, filter repository.BattleFilter) ([]*domain.Battle, error) {
	// Spectated battles are part of the user's list; the jsonb containment
	// check hits the spectators column directly.
	spectatorEntry := fmt.Sprintf(`[{"userId":%q}]`, userID)

	q := applyFilter(r.db.WithContext(ctx).Model(&domain.Battle{}), filter).
		Where("creator_id = ? OR opponent_id = ? OR spectators @> ?", userID, userID, spectatorEntry)

	var battles []*domain.Battle
	err := q.Order(orderClause(filter)).
		Limit(limitOrDefault(filter.Limit)).
		Offset(filter.Offset).
		Find(&battles).Error
	if err != nil {
		return nil, err
	}
	return battles, nil
}

func (r *battleRepository) GetCompletedByUserID(ctx context.Context, userID uuid.UUID) ([]*domain.Battle, error) {
	var battles []*domain.Battle
	err := r.db.WithContext(ctx).
		Where("status = ?", domain.BattleStatusCompleted).
		Where("creator_id = ? OR opponent_id = ?", userID, userID).
		Order("completed_at DESC").
		Find(&battles).Error
	if err != nil {
		return nil, err
	}
	return battles, nil
}

func (r *battleRepository) GetActiveEndedBefore(ctx context.Context, cutoff time.Time) ([]*domain.Battle, error) {
	var battles []*domain.Battle
	err := r.db.WithContext(ctx).
		Where("status = ? AND end_date < ?", domain.BattleStatusActive, cutoff).
		Find(&battles).Error
	if err != nil {
		return nil, err
	}
	return battles, nil
}

func (r *battleRepository) GetPendingCreatedBefore(ctx context.Context, cutoff time.Time) ([]*domain.Battle, error) {
	var battles []*domain.Battle
	err := r.db.WithContext(ctx).
		Where("status = ? AND opponent_id IS NULL AND created_at <= ?", domain.BattleStatusPending, cutoff).
		Find(&battles).Error
	if err != nil {
		return nil, err
	}
	return battles, nil
}
