package postgres_test

import (
	"context"
	"testing"

	"github.com/kmills/fitbattle-backend/internal/domain"
	"github.com/kmills/fitbattle-backend/internal/repository/postgres"
	"github.com/kmills/fitbattle-backend/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestXPRepository_Grant(t *testing.T) {
	testDB := testutil.NewTestDB(t)
	repo := postgres.NewXPRepository(testDB.DB)
	ctx := context.Background()

	user, _ := testutil.NewUserBuilder().Build(t, testDB.DB)

	require.NoError(t, repo.Grant(ctx, user.ID, domain.XPAcceptBonus, "battle accepted"))
	require.NoError(t, repo.Grant(ctx, user.ID, domain.XPProgressUpdate, "progress logged"))

	// Total accrues on the user row
	var stored domain.User
	require.NoError(t, testDB.DB.First(&stored, "id = ?", user.ID).Error)
	assert.Equal(t, domain.XPAcceptBonus+domain.XPProgressUpdate, stored.XP)

	// Each grant leaves a ledger entry
	entries, err := repo.GetByUserID(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	for _, entry := range entries {
		assert.Equal(t, user.ID, entry.UserID)
		assert.NotEmpty(t, entry.Reason)
	}
}
