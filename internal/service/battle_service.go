package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/kmills/fitbattle-backend/internal/domain"
	"github.com/kmills/fitbattle-backend/internal/repository"
	"gorm.io/datatypes"
)

// rewardGranter is the part of the rewards ledger the battle flows depend on.
// Grants are fire-and-forget: a ledger failure is logged, never propagated.
type rewardGranter interface {
	Grant(ctx context.Context, userID uuid.UUID, amount int, reason string) error
}

type BattleService struct {
	battleRepo repository.BattleRepository
	userRepo   repository.UserRepository
	rewards    rewardGranter
}

func NewBattleService(battleRepo repository.BattleRepository, userRepo repository.UserRepository, rewards rewardGranter) *BattleService {
	return &BattleService{
		battleRepo: battleRepo,
		userRepo:   userRepo,
		rewards:    rewards,
	}
}

type CreateBattleInput struct {
	CreatorID            uuid.UUID
	Title                string
	Description          string
	BattleType           domain.BattleType
	DurationDays         int
	Metric               domain.BattleMetric
	CustomMetric         *domain.CustomMetric
	Stakes               json.RawMessage
	Rules                []string
	VerificationRequired bool
	AllowSpectators      bool
}

func (in CreateBattleInput) validate() error {
	if in.Title == "" {
		return fmt.Errorf("%w: title is required", domain.ErrValidation)
	}
	if !domain.ValidBattleType(in.BattleType) {
		return fmt.Errorf("%w: unknown battle type %q", domain.ErrValidation, in.BattleType)
	}
	if in.DurationDays < domain.MinDurationDays || in.DurationDays > domain.MaxDurationDays {
		return fmt.Errorf("%w: durationDays must be between %d and %d",
			domain.ErrValidation, domain.MinDurationDays, domain.MaxDurationDays)
	}
	if !domain.ValidBattleMetric(in.Metric) {
		return fmt.Errorf("%w: unknown metric %q", domain.ErrValidation, in.Metric)
	}
	if in.Metric == domain.MetricCustom && in.CustomMetric == nil {
		return fmt.Errorf("%w: customMetric is required for metric=custom", domain.ErrValidation)
	}
	return nil
}

// CreateBattle persists a new pending battle with empty progress. The
// creator's display name is snapshotted at creation time.
func (s *BattleService) CreateBattle(ctx context.Context, input CreateBattleInput) (*domain.Battle, error) {
	if err := input.validate(); err != nil {
		return nil, err
	}

	creator, err := s.userRepo.GetByID(ctx, input.CreatorID)
	if err != nil {
		return nil, err
	}

	battle := &domain.Battle{
		ID:                   uuid.New(),
		Title:                input.Title,
		Description:          input.Description,
		BattleType:           input.BattleType,
		DurationDays:         input.DurationDays,
		Metric:               input.Metric,
		CustomMetric:         input.CustomMetric,
		CreatorID:            creator.ID,
		CreatorName:          creator.DisplayName,
		Status:               domain.BattleStatusPending,
		Rules:                input.Rules,
		VerificationRequired: input.VerificationRequired,
		AllowSpectators:      input.AllowSpectators,
		CreatorProgress:      domain.BattleProgress{DailyLogs: []domain.DailyLog{}},
		OpponentProgress:     domain.BattleProgress{DailyLogs: []domain.DailyLog{}},
		Spectators:           []domain.Spectator{},
		Updates:              []domain.BattleUpdate{},
	}
	if input.Stakes != nil {
		battle.Stakes = datatypes.JSON(input.Stakes)
	}

	if err := s.battleRepo.Create(ctx, battle); err != nil {
		return nil, err
	}

	return battle, nil
}

// GetBattles returns a filtered, sorted page of battles plus the total count
func (s *BattleService) GetBattles(ctx context.Context, filter repository.BattleFilter) ([]*domain.Battle, int64, error) {
	return s.battleRepo.List(ctx, filter)
}

// GetBattleByID loads a battle and, when a viewer is supplied, annotates the
// transient view-only fields (userRole, canAccept, canUpdate).
func (s *BattleService) GetBattleByID(ctx context.Context, id uuid.UUID, viewerID *uuid.UUID) (*domain.Battle, error) {
	battle, err := s.battleRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if viewerID != nil {
		switch {
		case *viewerID == battle.CreatorID:
			battle.UserRole = "creator"
		case battle.OpponentID != nil && *viewerID == *battle.OpponentID:
			battle.UserRole = "opponent"
		default:
			battle.UserRole = "spectator"
		}

		canAccept, _ := battle.CanAccept(*viewerID)
		canUpdate := battle.IsParticipant(*viewerID) && battle.Status == domain.BattleStatusActive
		battle.ViewerCanAccept = &canAccept
		battle.ViewerCanUpdate = &canUpdate
	}

	return battle, nil
}

// AcceptBattle joins opponentID as the second party and grants the accept
// bonus. The opponent's display name is snapshotted at accept time.
func (s *BattleService) AcceptBattle(ctx context.Context, id, opponentID uuid.UUID) (*domain.Battle, error) {
	opponent, err := s.userRepo.GetByID(ctx, opponentID)
	if err != nil {
		return nil, err
	}

	battle, err := s.battleRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	prev := battle.Status
	if err := battle.Accept(opponent.ID, opponent.DisplayName, time.Now()); err != nil {
		return nil, err
	}
	if err := s.persist(ctx, battle, prev); err != nil {
		return nil, err
	}

	s.grant(ctx, opponent.ID, domain.XPAcceptBonus, "battle accepted: "+battle.Title)

	return battle, nil
}

// SetBaseline records a party's starting measurement. When the second
// baseline lands, the pre-persistence transition check flips the battle to
// active within the same save.
func (s *BattleService) SetBaseline(ctx context.Context, id, userID uuid.UUID, value float64) (*domain.Battle, error) {
	battle, err := s.battleRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	prev := battle.Status
	if err := battle.SetBaseline(userID, value, time.Now()); err != nil {
		return nil, err
	}
	if err := s.persist(ctx, battle, prev); err != nil {
		return nil, err
	}

	return battle, nil
}

// UpdateProgress logs a party's current value and grants the per-update bonus
func (s *BattleService) UpdateProgress(ctx context.Context, id, userID uuid.UUID, value float64, note string) (*domain.Battle, error) {
	battle, err := s.battleRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	prev := battle.Status
	if err := battle.UpdateProgress(userID, value, note, time.Now()); err != nil {
		return nil, err
	}
	if err := s.persist(ctx, battle, prev); err != nil {
		return nil, err
	}

	s.grant(ctx, userID, domain.XPProgressUpdate, "progress logged: "+battle.Title)

	return battle, nil
}

// AddUpdate appends a message to the battle's social feed
func (s *BattleService) AddUpdate(ctx context.Context, id, userID uuid.UUID, updateType domain.UpdateType, message string) (*domain.Battle, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	battle, err := s.battleRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	prev := battle.Status
	if err := battle.AddUpdate(user.ID, user.DisplayName, updateType, message, time.Now()); err != nil {
		return nil, err
	}
	if err := s.persist(ctx, battle, prev); err != nil {
		return nil, err
	}

	return battle, nil
}

// AddSpectator joins userID as an observer, or updates who they support
func (s *BattleService) AddSpectator(ctx context.Context, id, userID uuid.UUID, supportFor *uuid.UUID) (*domain.Battle, error) {
	battle, err := s.battleRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if supportFor != nil && !battle.IsParticipant(*supportFor) {
		return nil, fmt.Errorf("%w: supportFor must be a battle participant", domain.ErrValidation)
	}

	prev := battle.Status
	if err := battle.AddSpectator(userID, supportFor, time.Now()); err != nil {
		return nil, err
	}
	if err := s.persist(ctx, battle, prev); err != nil {
		return nil, err
	}

	return battle, nil
}

// CompleteBattle is the explicit manual completion path, allowed to the two
// parties only. The winner reward is granted on a decisive result; ties award
// nothing.
func (s *BattleService) CompleteBattle(ctx context.Context, id, userID uuid.UUID) (*domain.Battle, error) {
	battle, err := s.battleRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if !battle.IsParticipant(userID) {
		return nil, domain.ErrNotParticipant
	}

	prev := battle.Status
	if err := battle.Complete(time.Now()); err != nil {
		return nil, err
	}
	if err := s.persist(ctx, battle, prev); err != nil {
		return nil, err
	}

	return battle, nil
}

// CancelBattle moves a pending or active battle to cancelled. Only the two
// parties may cancel.
func (s *BattleService) CancelBattle(ctx context.Context, id, userID uuid.UUID) (*domain.Battle, error) {
	battle, err := s.battleRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if !battle.IsParticipant(userID) {
		return nil, domain.ErrNotParticipant
	}

	prev := battle.Status
	if err := battle.Cancel(time.Now()); err != nil {
		return nil, err
	}
	if err := s.persist(ctx, battle, prev); err != nil {
		return nil, err
	}

	return battle, nil
}

// GetUserBattles lists battles the user created, competes in, or spectates
func (s *BattleService) GetUserBattles(ctx context.Context, userID uuid.UUID, filter repository.BattleFilter) ([]*domain.Battle, error) {
	return s.battleRepo.GetByUserID(ctx, userID, filter)
}

// BattleStats aggregates a user's completed battles
type BattleStats struct {
	TotalBattles int     `json:"totalBattles"`
	Wins         int     `json:"wins"`
	Losses       int     `json:"losses"`
	Ties         int     `json:"ties"`
	WinRate      float64 `json:"winRate"`
}

// GetBattleStats scans the user's completed battles and computes the win rate
func (s *BattleService) GetBattleStats(ctx context.Context, userID uuid.UUID) (*BattleStats, error) {
	battles, err := s.battleRepo.GetCompletedByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}

	stats := &BattleStats{TotalBattles: len(battles)}
	for _, b := range battles {
		switch {
		case b.WinnerID != nil && *b.WinnerID == userID:
			stats.Wins++
		case b.Results != nil && b.Results.Tie:
			stats.Ties++
		default:
			stats.Losses++
		}
	}
	if stats.TotalBattles > 0 {
		stats.WinRate = float64(stats.Wins) / float64(stats.TotalBattles) * 100
	}
	return stats, nil
}

// AutoCompleteEnded completes every active battle whose end date has passed.
// Called by the lifecycle sweeper; a conflicting concurrent write is skipped
// and picked up again on the next sweep.
func (s *BattleService) AutoCompleteEnded(ctx context.Context) (int, error) {
	battles, err := s.battleRepo.GetActiveEndedBefore(ctx, time.Now())
	if err != nil {
		return 0, err
	}

	completed := 0
	for _, battle := range battles {
		prev := battle.Status
		// Rows the transition check leaves untouched get no write and no count
		if !domain.EvaluateTransitions(battle, time.Now()) {
			continue
		}
		if err := s.persist(ctx, battle, prev); err != nil {
			if errors.Is(err, domain.ErrConflict) {
				log.Printf("WARN [BattleService.AutoCompleteEnded] battle %s modified concurrently, skipping", battle.ID)
				continue
			}
			return completed, err
		}
		completed++
	}
	return completed, nil
}

// ExpireStaleInvites expires pending battles whose invite was never accepted
// within the TTL
func (s *BattleService) ExpireStaleInvites(ctx context.Context, ttl time.Duration) (int, error) {
	cutoff := time.Now().Add(-ttl)
	battles, err := s.battleRepo.GetPendingCreatedBefore(ctx, cutoff)
	if err != nil {
		return 0, err
	}

	expired := 0
	for _, battle := range battles {
		if err := battle.Expire(time.Now()); err != nil {
			continue
		}
		if err := s.battleRepo.Update(ctx, battle); err != nil {
			if errors.Is(err, domain.ErrConflict) {
				log.Printf("WARN [BattleService.ExpireStaleInvites] battle %s modified concurrently, skipping", battle.ID)
				continue
			}
			return expired, err
		}
		expired++
	}
	return expired, nil
}

// persist runs the pre-save transition check, writes the battle, and grants
// the winner reward when this save is the one that completed the battle.
func (s *BattleService) persist(ctx context.Context, battle *domain.Battle, prev domain.BattleStatus) error {
	domain.EvaluateTransitions(battle, time.Now())

	if err := s.battleRepo.Update(ctx, battle); err != nil {
		return err
	}

	if prev != domain.BattleStatusCompleted && battle.Status == domain.BattleStatusCompleted && battle.WinnerID != nil {
		s.grant(ctx, *battle.WinnerID, domain.XPBattleWin, "battle won: "+battle.Title)
	}
	return nil
}

// grant is fire-and-forget: a ledger failure must never block or reverse a
// battle state change.
func (s *BattleService) grant(ctx context.Context, userID uuid.UUID, amount int, reason string) {
	if err := s.rewards.Grant(ctx, userID, amount, reason); err != nil {
		log.Printf("ERROR [BattleService] failed to grant %d xp to %s: %v", amount, userID, err)
	}
}
