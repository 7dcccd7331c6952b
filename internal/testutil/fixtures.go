package testutil

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/kmills/fitbattle-backend/internal/domain"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// UserBuilder creates test users with a builder pattern
type UserBuilder struct {
	displayName string
	password    string
}

// NewUserBuilder creates a new UserBuilder with default values
func NewUserBuilder() *UserBuilder {
	return &UserBuilder{
		displayName: fmt.Sprintf("testuser_%s", uuid.New().String()[:8]),
		password:    "testpassword123",
	}
}

// WithDisplayName sets the display name
func (b *UserBuilder) WithDisplayName(name string) *UserBuilder {
	b.displayName = name
	return b
}

// WithPassword sets the password
func (b *UserBuilder) WithPassword(password string) *UserBuilder {
	b.password = password
	return b
}

// Build creates the user in the database and returns the user with the raw password
func (b *UserBuilder) Build(t *testing.T, db *gorm.DB) (*domain.User, string) {
	t.Helper()

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(b.password), bcrypt.DefaultCost)
	if err != nil {
		t.Fatalf("failed to hash password: %v", err)
	}

	user := &domain.User{
		ID:           uuid.New(),
		DisplayName:  b.displayName,
		PasswordHash: string(hashedPassword),
		CreatedAt:    time.Now(),
		UpdatedAt:    time.Now(),
	}

	if err := db.Create(user).Error; err != nil {
		t.Fatalf("failed to create user: %v", err)
	}

	return user, b.password
}

// AuthResponse matches the API auth response
type AuthResponse struct {
	User struct {
		ID          string `json:"id"`
		DisplayName string `json:"displayName"`
	} `json:"user"`
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// BuildAndAuthenticate creates a user via API and returns the user and access token
func (b *UserBuilder) BuildAndAuthenticate(t *testing.T, ts *TestServer) (*domain.User, string) {
	t.Helper()

	reqBody := map[string]string{
		"displayName": b.displayName,
		"password":    b.password,
	}
	body, _ := json.Marshal(reqBody)

	resp, err := http.Post(ts.APIURL("/auth/register"), "application/json", bytes.NewBuffer(body))
	if err != nil {
		t.Fatalf("failed to register user: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status code: %d", resp.StatusCode)
	}

	var authResp AuthResponse
	if err := json.NewDecoder(resp.Body).Decode(&authResp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	userID, _ := uuid.Parse(authResp.User.ID)
	user := &domain.User{
		ID:          userID,
		DisplayName: authResp.User.DisplayName,
	}

	return user, authResp.AccessToken
}

// BattleBuilder creates test battles with a builder pattern
type BattleBuilder struct {
	creator      *domain.User
	opponent     *domain.User
	title        string
	battleType   domain.BattleType
	metric       domain.BattleMetric
	durationDays int
	status       domain.BattleStatus
	allowSpecs   bool
	endDate      *time.Time
	createdAt    *time.Time
}

// NewBattleBuilder creates a new BattleBuilder with default values
func NewBattleBuilder() *BattleBuilder {
	return &BattleBuilder{
		title:        fmt.Sprintf("battle_%s", uuid.New().String()[:8]),
		battleType:   domain.BattleTypeWeightLoss,
		metric:       domain.MetricWeightPct,
		durationDays: 30,
		status:       domain.BattleStatusPending,
		allowSpecs:   true,
	}
}

// WithCreator sets the battle creator
func (b *BattleBuilder) WithCreator(user *domain.User) *BattleBuilder {
	b.creator = user
	return b
}

// WithOpponent sets the accepted opponent
func (b *BattleBuilder) WithOpponent(user *domain.User) *BattleBuilder {
	b.opponent = user
	return b
}

// WithTitle sets the title
func (b *BattleBuilder) WithTitle(title string) *BattleBuilder {
	b.title = title
	return b
}

// WithType sets the battle type
func (b *BattleBuilder) WithType(battleType domain.BattleType) *BattleBuilder {
	b.battleType = battleType
	return b
}

// WithMetric sets the competition metric
func (b *BattleBuilder) WithMetric(metric domain.BattleMetric) *BattleBuilder {
	b.metric = metric
	return b
}

// WithDuration sets the duration in days
func (b *BattleBuilder) WithDuration(days int) *BattleBuilder {
	b.durationDays = days
	return b
}

// WithStatus sets the lifecycle status
func (b *BattleBuilder) WithStatus(status domain.BattleStatus) *BattleBuilder {
	b.status = status
	return b
}

// WithSpectators toggles whether spectators are allowed
func (b *BattleBuilder) WithSpectators(allowed bool) *BattleBuilder {
	b.allowSpecs = allowed
	return b
}

// WithEndDate overrides the end date (for auto-completion tests)
func (b *BattleBuilder) WithEndDate(end time.Time) *BattleBuilder {
	b.endDate = &end
	return b
}

// WithCreatedAt overrides the creation time (for invite-expiry tests)
func (b *BattleBuilder) WithCreatedAt(created time.Time) *BattleBuilder {
	b.createdAt = &created
	return b
}

// Build creates the battle in the database
func (b *BattleBuilder) Build(t *testing.T, db *gorm.DB) *domain.Battle {
	t.Helper()

	if b.creator == nil {
		user, _ := NewUserBuilder().Build(t, db)
		b.creator = user
	}

	battle := &domain.Battle{
		ID:               uuid.New(),
		Title:            b.title,
		BattleType:       b.battleType,
		Metric:           b.metric,
		DurationDays:     b.durationDays,
		CreatorID:        b.creator.ID,
		CreatorName:      b.creator.DisplayName,
		Status:           b.status,
		AllowSpectators:  b.allowSpecs,
		CreatorProgress:  domain.BattleProgress{DailyLogs: []domain.DailyLog{}},
		OpponentProgress: domain.BattleProgress{DailyLogs: []domain.DailyLog{}},
		Spectators:       []domain.Spectator{},
		Updates:          []domain.BattleUpdate{},
		CreatedAt:        time.Now(),
	}

	if b.opponent != nil {
		now := time.Now()
		end := now.AddDate(0, 0, b.durationDays)
		battle.OpponentID = &b.opponent.ID
		battle.OpponentName = b.opponent.DisplayName
		battle.AcceptedAt = &now
		battle.StartDate = &now
		battle.EndDate = &end
	}
	if b.status == domain.BattleStatusActive {
		now := time.Now()
		battle.StartedAt = &now
	}
	if b.endDate != nil {
		battle.EndDate = b.endDate
	}
	if b.createdAt != nil {
		battle.CreatedAt = *b.createdAt
	}

	if err := db.Create(battle).Error; err != nil {
		t.Fatalf("failed to create battle: %v", err)
	}

	return battle
}
