package service

import (
	"context"

	"github.com/google/uuid"
	"github.com/kmills/fitbattle-backend/internal/domain"
	"github.com/kmills/fitbattle-backend/internal/repository"
)

// RewardService is the XP ledger. Battle flows call Grant as a side effect;
// the battle service decides what a failure means (it logs and moves on).
type RewardService struct {
	xpRepo repository.XPRepository
}

func NewRewardService(xpRepo repository.XPRepository) *RewardService {
	return &RewardService{xpRepo: xpRepo}
}

func (s *RewardService) Grant(ctx context.Context, userID uuid.UUID, amount int, reason string) error {
	return s.xpRepo.Grant(ctx, userID, amount, reason)
}

func (s *RewardService) History(ctx context.Context, userID uuid.UUID) ([]*domain.XPTransaction, error) {
	return s.xpRepo.GetByUserID(ctx, userID)
}
