package handlers_test

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/kmills/fitbattle-backend/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type BattleResponse struct {
	ID           string   `json:"id"`
	Title        string   `json:"title"`
	BattleType   string   `json:"battleType"`
	Status       string   `json:"status"`
	CreatorName  string   `json:"creatorName"`
	OpponentName string   `json:"opponentName"`
	Winner       *string  `json:"winner"`
	UserRole     string   `json:"userRole"`
	CanAccept    *bool    `json:"canAccept"`
	CanUpdate    *bool    `json:"canUpdate"`
	Progress     struct {
		Baseline    *float64 `json:"baseline"`
		Current     *float64 `json:"current"`
		Improvement float64  `json:"improvement"`
	} `json:"creatorProgress"`
}

type BattleListResponse struct {
	Battles []BattleResponse `json:"battles"`
	Total   int64            `json:"total"`
}

func createBattle(t *testing.T, ts *testutil.TestServer, token string, body map[string]interface{}) BattleResponse {
	t.Helper()

	req := testutil.CreateAuthenticatedRequest(t, "POST", ts.APIURL("/battles"), body, token)
	resp := testutil.DoRequest(t, req)
	defer resp.Body.Close()

	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var battle BattleResponse
	testutil.AssertJSONResponse(t, resp, &battle)
	return battle
}

func defaultBattleRequest() map[string]interface{} {
	return map[string]interface{}{
		"title":        "Summer Shred",
		"battleType":   "weight_loss",
		"durationDays": 30,
		"metric":       "weight_pct",
	}
}

func TestBattleHandler_Create(t *testing.T) {
	ts := testutil.NewTestServer(t)

	_, token := testutil.NewUserBuilder().
		WithDisplayName("battlecreator").
		BuildAndAuthenticate(t, ts)

	tests := []struct {
		name           string
		token          string
		request        map[string]interface{}
		expectedStatus int
		checkResponse  func(*testing.T, *http.Response)
	}{
		{
			name:           "successful creation",
			token:          token,
			request:        defaultBattleRequest(),
			expectedStatus: http.StatusCreated,
			checkResponse: func(t *testing.T, resp *http.Response) {
				var battle BattleResponse
				testutil.AssertJSONResponse(t, resp, &battle)
				assert.NotEmpty(t, battle.ID)
				assert.Equal(t, "Summer Shred", battle.Title)
				assert.Equal(t, "pending", battle.Status)
				assert.Equal(t, "battlecreator", battle.CreatorName)
			},
		},
		{
			name:  "missing title",
			token: token,
			request: map[string]interface{}{
				"battleType":   "weight_loss",
				"durationDays": 30,
				"metric":       "weight_pct",
			},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:  "duration out of range",
			token: token,
			request: map[string]interface{}{
				"title":        "Marathon year",
				"battleType":   "endurance",
				"durationDays": 365,
				"metric":       "workout_frequency",
			},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "unauthorized request",
			token:          "",
			request:        defaultBattleRequest(),
			expectedStatus: http.StatusUnauthorized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := testutil.CreateAuthenticatedRequest(t, "POST", ts.APIURL("/battles"), tt.request, tt.token)
			resp := testutil.DoRequest(t, req)
			defer resp.Body.Close()

			assert.Equal(t, tt.expectedStatus, resp.StatusCode)
			if tt.checkResponse != nil {
				tt.checkResponse(t, resp)
			}
		})
	}
}

func TestBattleHandler_AcceptFlow(t *testing.T) {
	ts := testutil.NewTestServer(t)

	_, creatorToken := testutil.NewUserBuilder().
		WithDisplayName("creator").
		BuildAndAuthenticate(t, ts)
	_, opponentToken := testutil.NewUserBuilder().
		WithDisplayName("opponent").
		BuildAndAuthenticate(t, ts)
	_, thirdToken := testutil.NewUserBuilder().
		WithDisplayName("latecomer").
		BuildAndAuthenticate(t, ts)

	battle := createBattle(t, ts, creatorToken, defaultBattleRequest())

	acceptURL := ts.APIURL(fmt.Sprintf("/battles/%s/accept", battle.ID))

	// Creator cannot accept their own battle
	req := testutil.CreateAuthenticatedRequest(t, "POST", acceptURL, nil, creatorToken)
	resp := testutil.DoRequest(t, req)
	resp.Body.Close()
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	// Opponent accepts
	req = testutil.CreateAuthenticatedRequest(t, "POST", acceptURL, nil, opponentToken)
	resp = testutil.DoRequest(t, req)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var accepted BattleResponse
	testutil.AssertJSONResponse(t, resp, &accepted)
	assert.Equal(t, "opponent", accepted.OpponentName)
	assert.Equal(t, "pending", accepted.Status)

	// Third user is rejected with a conflict
	req = testutil.CreateAuthenticatedRequest(t, "POST", acceptURL, nil, thirdToken)
	resp2 := testutil.DoRequest(t, req)
	defer resp2.Body.Close()
	assert.Equal(t, http.StatusConflict, resp2.StatusCode)
}

func TestBattleHandler_BaselineAndProgress(t *testing.T) {
	ts := testutil.NewTestServer(t)

	_, creatorToken := testutil.NewUserBuilder().
		WithDisplayName("lifter").
		BuildAndAuthenticate(t, ts)
	_, opponentToken := testutil.NewUserBuilder().
		WithDisplayName("rival").
		BuildAndAuthenticate(t, ts)

	battle := createBattle(t, ts, creatorToken, defaultBattleRequest())

	req := testutil.CreateAuthenticatedRequest(t, "POST",
		ts.APIURL(fmt.Sprintf("/battles/%s/accept", battle.ID)), nil, opponentToken)
	resp := testutil.DoRequest(t, req)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	baselineURL := ts.APIURL(fmt.Sprintf("/battles/%s/baseline", battle.ID))
	progressURL := ts.APIURL(fmt.Sprintf("/battles/%s/progress", battle.ID))

	// Progress before activation is rejected
	req = testutil.CreateAuthenticatedRequest(t, "POST", progressURL,
		map[string]interface{}{"value": 78}, creatorToken)
	resp = testutil.DoRequest(t, req)
	resp.Body.Close()
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	// Both baselines: second one activates the battle
	req = testutil.CreateAuthenticatedRequest(t, "POST", baselineURL,
		map[string]interface{}{"value": 80}, creatorToken)
	resp = testutil.DoRequest(t, req)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	req = testutil.CreateAuthenticatedRequest(t, "POST", baselineURL,
		map[string]interface{}{"value": 90}, opponentToken)
	resp = testutil.DoRequest(t, req)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var active BattleResponse
	testutil.AssertJSONResponse(t, resp, &active)
	assert.Equal(t, "active", active.Status)

	// Progress now lands and reports the improvement
	req = testutil.CreateAuthenticatedRequest(t, "POST", progressURL,
		map[string]interface{}{"value": 78, "note": "two down"}, creatorToken)
	resp2 := testutil.DoRequest(t, req)
	defer resp2.Body.Close()
	require.Equal(t, http.StatusOK, resp2.StatusCode)

	var updated BattleResponse
	testutil.AssertJSONResponse(t, resp2, &updated)
	assert.InDelta(t, 2.5, updated.Progress.Improvement, 0.001)

	// A non-participant cannot post progress
	_, strangerToken := testutil.NewUserBuilder().
		WithDisplayName("stranger").
		BuildAndAuthenticate(t, ts)
	req = testutil.CreateAuthenticatedRequest(t, "POST", progressURL,
		map[string]interface{}{"value": 50}, strangerToken)
	resp3 := testutil.DoRequest(t, req)
	resp3.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp3.StatusCode)
}

func TestBattleHandler_GetAnnotatesViewer(t *testing.T) {
	ts := testutil.NewTestServer(t)

	_, creatorToken := testutil.NewUserBuilder().
		WithDisplayName("owner").
		BuildAndAuthenticate(t, ts)
	_, viewerToken := testutil.NewUserBuilder().
		WithDisplayName("viewer").
		BuildAndAuthenticate(t, ts)

	battle := createBattle(t, ts, creatorToken, defaultBattleRequest())
	getURL := ts.APIURL("/battles/" + battle.ID)

	req := testutil.CreateAuthenticatedRequest(t, "GET", getURL, nil, creatorToken)
	resp := testutil.DoRequest(t, req)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var asCreator BattleResponse
	testutil.AssertJSONResponse(t, resp, &asCreator)
	assert.Equal(t, "creator", asCreator.UserRole)
	require.NotNil(t, asCreator.CanAccept)
	assert.False(t, *asCreator.CanAccept)

	req = testutil.CreateAuthenticatedRequest(t, "GET", getURL, nil, viewerToken)
	resp2 := testutil.DoRequest(t, req)
	defer resp2.Body.Close()
	require.Equal(t, http.StatusOK, resp2.StatusCode)

	var asViewer BattleResponse
	testutil.AssertJSONResponse(t, resp2, &asViewer)
	assert.Equal(t, "spectator", asViewer.UserRole)
	require.NotNil(t, asViewer.CanAccept)
	assert.True(t, *asViewer.CanAccept)

	// Unknown battle
	req = testutil.CreateAuthenticatedRequest(t, "GET",
		ts.APIURL("/battles/00000000-0000-0000-0000-000000000000"), nil, creatorToken)
	resp3 := testutil.DoRequest(t, req)
	resp3.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp3.StatusCode)
}

func TestBattleHandler_ListAndUserBattles(t *testing.T) {
	ts := testutil.NewTestServer(t)

	_, aliceToken := testutil.NewUserBuilder().
		WithDisplayName("alice").
		BuildAndAuthenticate(t, ts)
	_, bobToken := testutil.NewUserBuilder().
		WithDisplayName("bob").
		BuildAndAuthenticate(t, ts)

	createBattle(t, ts, aliceToken, defaultBattleRequest())
	createBattle(t, ts, aliceToken, map[string]interface{}{
		"title":        "Squat city",
		"battleType":   "strength",
		"durationDays": 14,
		"metric":       "workout_frequency",
	})
	createBattle(t, ts, bobToken, map[string]interface{}{
		"title":        "Bob's run club",
		"battleType":   "endurance",
		"durationDays": 21,
		"metric":       "workout_frequency",
	})

	req := testutil.CreateAuthenticatedRequest(t, "GET",
		ts.APIURL("/battles?battleType=strength"), nil, aliceToken)
	resp := testutil.DoRequest(t, req)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var list BattleListResponse
	testutil.AssertJSONResponse(t, resp, &list)
	assert.Equal(t, int64(1), list.Total)
	require.Len(t, list.Battles, 1)
	assert.Equal(t, "Squat city", list.Battles[0].Title)

	// Alice's own battles only
	req = testutil.CreateAuthenticatedRequest(t, "GET",
		ts.APIURL("/users/me/battles"), nil, aliceToken)
	resp2 := testutil.DoRequest(t, req)
	defer resp2.Body.Close()
	require.Equal(t, http.StatusOK, resp2.StatusCode)

	var mine []BattleResponse
	testutil.AssertJSONResponse(t, resp2, &mine)
	assert.Len(t, mine, 2)
}

func TestBattleHandler_CompleteAndStats(t *testing.T) {
	ts := testutil.NewTestServer(t)

	_, creatorToken := testutil.NewUserBuilder().
		WithDisplayName("champ").
		BuildAndAuthenticate(t, ts)
	_, opponentToken := testutil.NewUserBuilder().
		WithDisplayName("runnerup").
		BuildAndAuthenticate(t, ts)

	battle := createBattle(t, ts, creatorToken, map[string]interface{}{
		"title":        "Streak duel",
		"battleType":   "general",
		"durationDays": 7,
		"metric":       "streak_days",
	})

	post := func(path string, body map[string]interface{}, token string) *http.Response {
		req := testutil.CreateAuthenticatedRequest(t, "POST",
			ts.APIURL(fmt.Sprintf("/battles/%s%s", battle.ID, path)), body, token)
		return testutil.DoRequest(t, req)
	}

	resp := post("/accept", nil, opponentToken)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp = post("/baseline", map[string]interface{}{"value": 5}, creatorToken)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp = post("/baseline", map[string]interface{}{"value": 5}, opponentToken)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp = post("/progress", map[string]interface{}{"value": 12}, creatorToken)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp = post("/progress", map[string]interface{}{"value": 8}, opponentToken)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// A spectator cannot force completion
	_, strangerToken := testutil.NewUserBuilder().
		WithDisplayName("heckler").
		BuildAndAuthenticate(t, ts)
	resp = post("/complete", nil, strangerToken)
	resp.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = post("/complete", nil, creatorToken)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var completed BattleResponse
	testutil.AssertJSONResponse(t, resp, &completed)
	assert.Equal(t, "completed", completed.Status)
	require.NotNil(t, completed.Winner)

	// Completing again conflicts
	resp2 := post("/complete", nil, creatorToken)
	resp2.Body.Close()
	assert.Equal(t, http.StatusConflict, resp2.StatusCode)

	// Winner's stats reflect the result
	req := testutil.CreateAuthenticatedRequest(t, "GET",
		ts.APIURL("/users/me/stats"), nil, creatorToken)
	resp3 := testutil.DoRequest(t, req)
	defer resp3.Body.Close()
	require.Equal(t, http.StatusOK, resp3.StatusCode)

	var stats struct {
		TotalBattles int     `json:"totalBattles"`
		Wins         int     `json:"wins"`
		Losses       int     `json:"losses"`
		WinRate      float64 `json:"winRate"`
	}
	testutil.AssertJSONResponse(t, resp3, &stats)
	assert.Equal(t, 1, stats.TotalBattles)
	assert.Equal(t, 1, stats.Wins)
	assert.InDelta(t, 100.0, stats.WinRate, 0.001)
}

func TestBattleHandler_Cancel(t *testing.T) {
	ts := testutil.NewTestServer(t)

	_, creatorToken := testutil.NewUserBuilder().
		WithDisplayName("quitter").
		BuildAndAuthenticate(t, ts)
	_, strangerToken := testutil.NewUserBuilder().
		WithDisplayName("bystander").
		BuildAndAuthenticate(t, ts)

	battle := createBattle(t, ts, creatorToken, defaultBattleRequest())
	cancelURL := ts.APIURL(fmt.Sprintf("/battles/%s/cancel", battle.ID))

	req := testutil.CreateAuthenticatedRequest(t, "POST", cancelURL, nil, strangerToken)
	resp := testutil.DoRequest(t, req)
	resp.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	req = testutil.CreateAuthenticatedRequest(t, "POST", cancelURL, nil, creatorToken)
	resp2 := testutil.DoRequest(t, req)
	defer resp2.Body.Close()
	require.Equal(t, http.StatusOK, resp2.StatusCode)

	var cancelled BattleResponse
	testutil.AssertJSONResponse(t, resp2, &cancelled)
	assert.Equal(t, "cancelled", cancelled.Status)
}
