package domain

import (
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// BattleStatus represents the lifecycle state of a battle
type BattleStatus string

const (
	BattleStatusPending   BattleStatus = "pending"
	BattleStatusActive    BattleStatus = "active"
	BattleStatusCompleted BattleStatus = "completed"
	BattleStatusCancelled BattleStatus = "cancelled"
	BattleStatusExpired   BattleStatus = "expired"
)

// IsTerminal returns true for states that permit no further transitions
func (s BattleStatus) IsTerminal() bool {
	return s == BattleStatusCompleted || s == BattleStatusCancelled || s == BattleStatusExpired
}

type BattleType string

const (
	BattleTypeWeightLoss BattleType = "weight_loss"
	BattleTypeMuscleGain BattleType = "muscle_gain"
	BattleTypeEndurance  BattleType = "endurance"
	BattleTypeStrength   BattleType = "strength"
	BattleTypeNutrition  BattleType = "nutrition"
	BattleTypeGeneral    BattleType = "general"
)

var AllBattleTypes = []BattleType{
	BattleTypeWeightLoss,
	BattleTypeMuscleGain,
	BattleTypeEndurance,
	BattleTypeStrength,
	BattleTypeNutrition,
	BattleTypeGeneral,
}

func ValidBattleType(t BattleType) bool {
	for _, bt := range AllBattleTypes {
		if t == bt {
			return true
		}
	}
	return false
}

type BattleMetric string

const (
	MetricWeightPct        BattleMetric = "weight_pct"
	MetricMuscleGain       BattleMetric = "muscle_gain"
	MetricWorkoutFrequency BattleMetric = "workout_frequency"
	MetricNutritionScore   BattleMetric = "nutrition_score"
	MetricStreakDays       BattleMetric = "streak_days"
	MetricCustom           BattleMetric = "custom"
)

var AllBattleMetrics = []BattleMetric{
	MetricWeightPct,
	MetricMuscleGain,
	MetricWorkoutFrequency,
	MetricNutritionScore,
	MetricStreakDays,
	MetricCustom,
}

func ValidBattleMetric(m BattleMetric) bool {
	for _, bm := range AllBattleMetrics {
		if m == bm {
			return true
		}
	}
	return false
}

type UpdateType string

const (
	UpdateTypeProgress      UpdateType = "progress"
	UpdateTypeMilestone     UpdateType = "milestone"
	UpdateTypeTrashTalk     UpdateType = "trash_talk"
	UpdateTypeEncouragement UpdateType = "encouragement"
)

// CustomMetric describes a user-defined metric for battles with metric=custom
type CustomMetric struct {
	Name        string  `json:"name"`
	Unit        string  `json:"unit"`
	TargetValue float64 `json:"targetValue"`
}

// DailyLog is a per-calendar-day progress snapshot, at most one per party per day
type DailyLog struct {
	Date  string  `json:"date"` // "2006-01-02"
	Value float64 `json:"value"`
	Note  string  `json:"note,omitempty"`
}

// BattleProgress holds one party's measurements for the battle metric
type BattleProgress struct {
	Baseline    *float64   `json:"baseline"`
	Current     *float64   `json:"current"`
	Improvement float64    `json:"improvement"`
	LastUpdated *time.Time `json:"lastUpdated"`
	DailyLogs   []DailyLog `json:"dailyLogs"`
}

// BattleResults is the final scoring, written exactly once by the completion transition
type BattleResults struct {
	CreatorScore  float64 `json:"creatorScore"`
	OpponentScore float64 `json:"opponentScore"`
	Margin        float64 `json:"margin"`
	Tie           bool    `json:"tie"`
}

type Spectator struct {
	UserID     uuid.UUID  `json:"userId"`
	JoinedAt   time.Time  `json:"joinedAt"`
	SupportFor *uuid.UUID `json:"supportFor,omitempty"`
}

type BattleUpdate struct {
	Type      UpdateType `json:"type"`
	UserID    uuid.UUID  `json:"userId"`
	UserName  string     `json:"userName"`
	Message   string     `json:"message"`
	Timestamp time.Time  `json:"timestamp"`
}

// MinDurationDays and MaxDurationDays bound the allowed battle length
const (
	MinDurationDays = 1
	MaxDurationDays = 90
)

// Battle is the unit of competition: two users compete over a fixed duration
// on a chosen fitness metric. All state transitions go through the mutators
// below; none of them touch the database.
type Battle struct {
	ID           uuid.UUID     `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	Title        string        `json:"title" gorm:"not null"`
	Description  string        `json:"description"`
	BattleType   BattleType    `json:"battleType" gorm:"type:varchar(20);not null;index"`
	DurationDays int           `json:"durationDays" gorm:"not null"`
	Metric       BattleMetric  `json:"metric" gorm:"type:varchar(30);not null"`
	CustomMetric *CustomMetric `json:"customMetric,omitempty" gorm:"type:jsonb;serializer:json"`

	// Names are snapshotted when the party joins; later display-name changes
	// are intentionally not reflected here.
	CreatorID    uuid.UUID  `json:"creatorId" gorm:"type:uuid;not null;index"`
	CreatorName  string     `json:"creatorName" gorm:"not null"`
	OpponentID   *uuid.UUID `json:"opponentId" gorm:"type:uuid;index"`
	OpponentName string     `json:"opponentName"`

	Status      BattleStatus `json:"status" gorm:"type:varchar(20);not null;default:'pending';index"`
	StartDate   *time.Time   `json:"startDate"`
	EndDate     *time.Time   `json:"endDate"`
	AcceptedAt  *time.Time   `json:"acceptedAt"`
	StartedAt   *time.Time   `json:"startedAt"`
	CompletedAt *time.Time   `json:"completedAt"`

	// Stakes is an opaque payload ({type, value, description}); the engine
	// stores and returns it but never interprets it.
	Stakes datatypes.JSON `json:"stakes,omitempty" gorm:"type:jsonb"`

	CreatorProgress  BattleProgress `json:"creatorProgress" gorm:"type:jsonb;serializer:json"`
	OpponentProgress BattleProgress `json:"opponentProgress" gorm:"type:jsonb;serializer:json"`

	WinnerID   *uuid.UUID     `json:"winner" gorm:"type:uuid"`
	WinnerName string         `json:"winnerName"`
	Results    *BattleResults `json:"results,omitempty" gorm:"type:jsonb;serializer:json"`

	Rules                []string       `json:"rules" gorm:"type:jsonb;serializer:json"`
	VerificationRequired bool           `json:"verificationRequired"`
	AllowSpectators      bool           `json:"allowSpectators" gorm:"not null;default:true"`
	Spectators           []Spectator    `json:"spectators" gorm:"type:jsonb;serializer:json"`
	Updates              []BattleUpdate `json:"updates" gorm:"type:jsonb;serializer:json"`

	// Version is the optimistic-concurrency token; bumped on every persisted
	// mutation. A stale write fails with ErrConflict instead of silently
	// discarding the concurrent one.
	Version int `json:"-" gorm:"not null;default:0"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	// Viewer annotations, populated per-request by the service. Never persisted.
	UserRole        string `json:"userRole,omitempty" gorm:"-"`
	ViewerCanAccept *bool  `json:"canAccept,omitempty" gorm:"-"`
	ViewerCanUpdate *bool  `json:"canUpdate,omitempty" gorm:"-"`
}

func (Battle) TableName() string {
	return "battles"
}

// IsParticipant returns true if userID is the creator or the accepted opponent
func (b *Battle) IsParticipant(userID uuid.UUID) bool {
	if userID == b.CreatorID {
		return true
	}
	return b.OpponentID != nil && *b.OpponentID == userID
}

// progressFor resolves userID to its progress slot, or nil for non-participants
func (b *Battle) progressFor(userID uuid.UUID) *BattleProgress {
	if userID == b.CreatorID {
		return &b.CreatorProgress
	}
	if b.OpponentID != nil && *b.OpponentID == userID {
		return &b.OpponentProgress
	}
	return nil
}

// CanAccept reports whether userID may accept this battle, with a stable
// reason string when it may not.
func (b *Battle) CanAccept(userID uuid.UUID) (bool, string) {
	if b.Status != BattleStatusPending {
		return false, "battle is not pending"
	}
	if b.OpponentID != nil {
		return false, "battle already has an opponent"
	}
	if userID == b.CreatorID {
		return false, "cannot accept your own battle"
	}
	return true, ""
}

// Accept sets the opponent and fixes the competition window. The opponent slot
// is written at most once. Acceptance does not activate the battle; activation
// is gated on both baselines (see EvaluateTransitions).
func (b *Battle) Accept(opponentID uuid.UUID, opponentName string, now time.Time) error {
	if b.Status != BattleStatusPending {
		return fmt.Errorf("%w: cannot accept a %s battle", ErrInvalidState, b.Status)
	}
	if b.OpponentID != nil {
		return ErrAlreadyHasOpponent
	}
	if opponentID == b.CreatorID {
		return fmt.Errorf("%w: cannot accept your own battle", ErrInvalidState)
	}

	end := now.AddDate(0, 0, b.DurationDays)
	b.OpponentID = &opponentID
	b.OpponentName = opponentName
	b.AcceptedAt = &now
	b.StartDate = &now
	b.EndDate = &end
	return nil
}

// SetBaseline records a party's starting measurement. Baselines may only be
// written once an opponent has accepted: either while still pending (the
// writes that trigger activation) or while active.
func (b *Battle) SetBaseline(userID uuid.UUID, value float64, now time.Time) error {
	switch b.Status {
	case BattleStatusActive:
	case BattleStatusPending:
		if b.OpponentID == nil {
			return fmt.Errorf("%w: baseline requires an accepted opponent", ErrInvalidState)
		}
	default:
		return fmt.Errorf("%w: cannot set baseline on a %s battle", ErrInvalidState, b.Status)
	}

	p := b.progressFor(userID)
	if p == nil {
		return ErrNotParticipant
	}

	p.Baseline = &value
	p.LastUpdated = &now
	if p.Current != nil {
		p.Improvement = Improvement(b.Metric, p.Baseline, p.Current)
	}
	return nil
}

// UpdateProgress records a party's current value and upserts today's daily
// log entry. A second write on the same calendar day replaces, not appends.
func (b *Battle) UpdateProgress(userID uuid.UUID, current float64, note string, now time.Time) error {
	if b.Status != BattleStatusActive {
		return fmt.Errorf("%w: cannot log progress on a %s battle", ErrInvalidState, b.Status)
	}

	p := b.progressFor(userID)
	if p == nil {
		return ErrNotParticipant
	}

	p.Current = &current
	p.LastUpdated = &now
	p.Improvement = Improvement(b.Metric, p.Baseline, p.Current)

	day := now.UTC().Format("2006-01-02")
	entry := DailyLog{Date: day, Value: current, Note: note}
	replaced := false
	for i := range p.DailyLogs {
		if p.DailyLogs[i].Date == day {
			p.DailyLogs[i] = entry
			replaced = true
			break
		}
	}
	if !replaced {
		p.DailyLogs = append(p.DailyLogs, entry)
	}
	return nil
}

// Complete scores both parties and declares the winner. The winner must have
// a strictly greater score; equal scores are recorded as an explicit tie.
// Completion is terminal: a second call fails instead of re-scoring.
func (b *Battle) Complete(now time.Time) error {
	if b.Status != BattleStatusActive {
		return fmt.Errorf("%w: cannot complete a %s battle", ErrInvalidState, b.Status)
	}

	creatorScore := b.CreatorProgress.Improvement
	opponentScore := b.OpponentProgress.Improvement

	results := &BattleResults{
		CreatorScore:  creatorScore,
		OpponentScore: opponentScore,
		Margin:        round2(math.Abs(creatorScore - opponentScore)),
	}

	switch {
	case creatorScore > opponentScore:
		b.WinnerID = &b.CreatorID
		b.WinnerName = b.CreatorName
	case opponentScore > creatorScore:
		b.WinnerID = b.OpponentID
		b.WinnerName = b.OpponentName
	default:
		results.Tie = true
	}

	b.Results = results
	b.Status = BattleStatusCompleted
	b.CompletedAt = &now
	return nil
}

// Cancel moves a pending or active battle to the cancelled terminal state
func (b *Battle) Cancel(now time.Time) error {
	if b.Status != BattleStatusPending && b.Status != BattleStatusActive {
		return fmt.Errorf("%w: cannot cancel a %s battle", ErrInvalidState, b.Status)
	}
	b.Status = BattleStatusCancelled
	b.CompletedAt = &now
	return nil
}

// Expire moves a pending battle whose invite was never accepted to expired
func (b *Battle) Expire(now time.Time) error {
	if b.Status != BattleStatusPending {
		return fmt.Errorf("%w: cannot expire a %s battle", ErrInvalidState, b.Status)
	}
	b.Status = BattleStatusExpired
	b.CompletedAt = &now
	return nil
}

// AddUpdate appends to the social feed. When spectators are disallowed only
// the two parties may post.
func (b *Battle) AddUpdate(userID uuid.UUID, userName string, updateType UpdateType, message string, now time.Time) error {
	if !b.AllowSpectators && !b.IsParticipant(userID) {
		return ErrSpectatorsDisallowed
	}
	b.Updates = append(b.Updates, BattleUpdate{
		Type:      updateType,
		UserID:    userID,
		UserName:  userName,
		Message:   message,
		Timestamp: now,
	})
	return nil
}

// AddSpectator upserts a spectator entry keyed by user id; re-joining only
// updates who the spectator is supporting.
func (b *Battle) AddSpectator(userID uuid.UUID, supportFor *uuid.UUID, now time.Time) error {
	if !b.AllowSpectators {
		return ErrSpectatorsDisallowed
	}
	for i := range b.Spectators {
		if b.Spectators[i].UserID == userID {
			b.Spectators[i].SupportFor = supportFor
			return nil
		}
	}
	b.Spectators = append(b.Spectators, Spectator{
		UserID:     userID,
		JoinedAt:   now,
		SupportFor: supportFor,
	})
	return nil
}

// Improvement is the signed percentage change from baseline to current.
// For weight_pct the sign is flipped: the metric is loss-oriented, so a
// weight decrease counts as positive improvement. Missing operands score 0.
func Improvement(metric BattleMetric, baseline, current *float64) float64 {
	if baseline == nil || current == nil || *baseline == 0 {
		return 0
	}
	change := (*current - *baseline) / *baseline * 100
	if metric == MetricWeightPct {
		change = -change
	}
	return round2(change)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
