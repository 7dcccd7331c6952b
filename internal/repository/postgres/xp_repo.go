package postgres

import (
	"context"

	"github.com/google/uuid"
	"github.com/kmills/fitbattle-backend/internal/domain"
	"gorm.io/gorm"
)

type xpRepository struct {
	db *gorm.DB
}

func NewXPRepository(db *gorm.DB) *xpRepository {
	return &xpRepository{db: db}
}

func (r *xpRepository) Grant(ctx context.Context, userID uuid.UUID, amount int, reason string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		entry := &domain.XPTransaction{
			ID:     uuid.New(),
			UserID: userID,
			Amount: amount,
			Reason: reason,
		}
		if err := tx.Create(entry).Error; err != nil {
			return err
		}
		return tx.Model(&domain.User{}).
			Where("id = ?", userID).
			UpdateColumn("xp", gorm.Expr("xp + ?", amount)).Error
	})
}

func (r *xpRepository) GetByUserID(ctx context.Context, userID uuid.UUID) ([]*domain.XPTransaction, error) {
	var entries []*domain.XPTransaction
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}
