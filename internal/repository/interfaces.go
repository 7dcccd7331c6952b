package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/kmills/fitbattle-backend/internal/domain"
)

type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
	GetByDisplayName(ctx context.Context, displayName string) (*domain.User, error)
	Update(ctx context.Context, user *domain.User) error
}

type SessionRepository interface {
	Create(ctx context.Context, session *domain.UserSession) error
	GetByUserID(ctx context.Context, userID uuid.UUID) (*domain.UserSession, error)
	Delete(ctx context.Context, id uuid.UUID) error
	DeleteByUserID(ctx context.Context, userID uuid.UUID) error
}

// BattleFilter narrows and orders battle list queries
type BattleFilter struct {
	Status     domain.BattleStatus
	BattleType domain.BattleType
	SortBy     string
	SortDesc   bool
	Limit      int
	Offset     int
}

type BattleRepository interface {
	Create(ctx context.Context, battle *domain.Battle) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Battle, error)
	// Update is a compare-and-swap on the battle's version: it fails with
	// domain.ErrConflict if the stored version no longer matches.
	Update(ctx context.Context, battle *domain.Battle) error
	List(ctx context.Context, filter BattleFilter) ([]*domain.Battle, int64, error)
	GetByUserID(ctx context.Context, userID uuid.UUID, filter BattleFilter) ([]*domain.Battle, error)
	GetCompletedByUserID(ctx context.Context, userID uuid.UUID) ([]*domain.Battle, error)
	GetActiveEndedBefore(ctx context.Context, cutoff time.Time) ([]*domain.Battle, error)
	GetPendingCreatedBefore(ctx context.Context, cutoff time.Time) ([]*domain.Battle, error)
}

type XPRepository interface {
	// Grant appends a ledger entry and increments the user's XP total in one
	// transaction.
	Grant(ctx context.Context, userID uuid.UUID, amount int, reason string) error
	GetByUserID(ctx context.Context, userID uuid.UUID) ([]*domain.XPTransaction, error)
}

type Repositories struct {
	User    UserRepository
	Session SessionRepository
	Battle  BattleRepository
	XP      XPRepository
}
