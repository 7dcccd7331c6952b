package service

import (
	"github.com/kmills/fitbattle-backend/internal/config"
	"github.com/kmills/fitbattle-backend/internal/repository"
)

type Services struct {
	Auth   *AuthService
	Battle *BattleService
	Reward *RewardService
}

func NewServices(repos *repository.Repositories, cfg *config.Config) *Services {
	rewards := NewRewardService(repos.XP)
	return &Services{
		Auth:   NewAuthService(repos.User, repos.Session, cfg),
		Battle: NewBattleService(repos.Battle, repos.User, rewards),
		Reward: rewards,
	}
}
