package server

import (
	"fmt"
	"net/http"
	"testing"

	"tutorx/internal/models"
	"tutorx/internal/service"
	"tutorx/internal/testutil"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRateTutorRecomputesAverage(t *testing.T) {
	env := newTestEnv(t)
	tutor := testutil.CreateTutor(t, env.db, "Ada Tutor", 40)
	first := testutil.CreateUser(t, env.db, "Sam Learner")
	second := testutil.CreateUser(t, env.db, "Riley Learner")

	rate := func(rater *models.User, score float64) service.RateTutorResult {
		status, res := env.do(t, http.MethodPost, "/api/users/rate", fiber.Map{
			"tutorId": tutor.ID,
			"rating":  score,
		}, env.tokenFor(t, rater))
		require.Equal(t, fiber.StatusOK, status, res.Message)
		return decodeData[service.RateTutorResult](t, res)
	}

	rate(first, 3)
	got := rate(second, 3)
	assert.InDelta(t, 3.0, got.Aggregate.Rating, 1e-9)
	assert.Equal(t, 2, got.Aggregate.TotalRatings)

	// Re-rating replaces the earlier score instead of adding a vote.
	got = rate(first, 4)
	assert.InDelta(t, 3.5, got.Aggregate.Rating, 1e-9)
	assert.Equal(t, 2, got.Aggregate.TotalRatings)

	status, res := env.do(t, http.MethodGet, fmt.Sprintf("/api/users/%d/ratings", tutor.ID), nil, "")
	require.Equal(t, fiber.StatusOK, status)
	assert.Len(t, decodeData[[]models.Rating](t, res), 2)

	_, res = env.do(t, http.MethodGet, fmt.Sprintf("/api/users/%d", tutor.ID), nil, "")
	profile := decodeData[models.User](t, res)
	assert.InDelta(t, 3.5, profile.Rating, 1e-9)
	assert.Equal(t, 2, profile.TotalRatings)
}

func TestRateTutorRejectsBadInput(t *testing.T) {
	env := newTestEnv(t)
	tutor := testutil.CreateTutor(t, env.db, "Ada Tutor", 40)
	learner := testutil.CreateUser(t, env.db, "Sam Learner")
	token := env.tokenFor(t, learner)

	tests := []struct {
		name   string
		body   fiber.Map
		token  string
		status int
	}{
		{"score too high", fiber.Map{"tutorId": tutor.ID, "rating": 6}, token, fiber.StatusBadRequest},
		{"score too low", fiber.Map{"tutorId": tutor.ID, "rating": 0.5}, token, fiber.StatusBadRequest},
		{"missing score", fiber.Map{"tutorId": tutor.ID}, token, fiber.StatusBadRequest},
		{"self rating", fiber.Map{"tutorId": tutor.ID, "rating": 5}, env.tokenFor(t, tutor), fiber.StatusBadRequest},
		{"unknown tutor", fiber.Map{"tutorId": 9999, "rating": 4}, token, fiber.StatusNotFound},
		{"anonymous", fiber.Map{"tutorId": tutor.ID, "rating": 4}, "", fiber.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, res := env.do(t, http.MethodPost, "/api/users/rate", tt.body, tt.token)
			assert.Equal(t, tt.status, status, res.Message)
			assert.False(t, res.Success)
		})
	}
}

func TestFollowEndpoints(t *testing.T) {
	env := newTestEnv(t)
	tutor := testutil.CreateTutor(t, env.db, "Ada Tutor", 40)
	fan := testutil.CreateUser(t, env.db, "Sam Learner")
	token := env.tokenFor(t, fan)
	path := fmt.Sprintf("/api/users/%d/follow", tutor.ID)

	steps := []struct {
		method        string
		wantFollowing bool
		wantFollowers int
	}{
		{http.MethodPost, true, 1},
		{http.MethodPost, false, 0},
		{http.MethodPut, true, 1},
		{http.MethodPut, true, 1},
	}
	for i, step := range steps {
		status, res := env.do(t, step.method, path, nil, token)
		require.Equal(t, fiber.StatusOK, status, "step %d: %s", i, res.Message)
		got := decodeData[followResponse](t, res)
		assert.Equal(t, step.wantFollowing, got.Following, "step %d", i)
		assert.Equal(t, step.wantFollowers, got.Followers, "step %d", i)
	}

	status, res := env.do(t, http.MethodGet, fmt.Sprintf("/api/users/%d/followers", tutor.ID), nil, "")
	require.Equal(t, fiber.StatusOK, status)
	followers := decodeData[[]models.User](t, res)
	require.Len(t, followers, 1)
	assert.Equal(t, fan.ID, followers[0].ID)

	_, res = env.do(t, http.MethodGet, fmt.Sprintf("/api/users/%d/following", fan.ID), nil, "")
	following := decodeData[[]models.User](t, res)
	require.Len(t, following, 1)
	assert.Equal(t, tutor.ID, following[0].ID)

	_, res = env.do(t, http.MethodGet, fmt.Sprintf("/api/users/%d", tutor.ID), nil, token)
	assert.True(t, decodeData[models.User](t, res).IsFollowing)

	status, res = env.do(t, http.MethodDelete, path, nil, token)
	require.Equal(t, fiber.StatusOK, status)
	assert.False(t, decodeData[followResponse](t, res).Following)

	status, _ = env.do(t, http.MethodPost, fmt.Sprintf("/api/users/%d/follow", fan.ID), nil, token)
	assert.Equal(t, fiber.StatusBadRequest, status)

	status, _ = env.do(t, http.MethodPost, "/api/users/9999/follow", nil, token)
	assert.Equal(t, fiber.StatusNotFound, status)
}

func TestFavoriteEndpoints(t *testing.T) {
	env := newTestEnv(t)
	tutor := testutil.CreateTutor(t, env.db, "Ada Tutor", 40)
	viewer := testutil.CreateUser(t, env.db, "Sam Learner")
	token := env.tokenFor(t, viewer)
	path := fmt.Sprintf("/api/users/favorite/%d", tutor.ID)

	status, res := env.do(t, http.MethodPost, path, nil, token)
	require.Equal(t, fiber.StatusOK, status, res.Message)
	assert.Equal(t, true, decodeData[map[string]bool](t, res)["isFavorite"])

	status, res = env.do(t, http.MethodGet, "/api/users/favorites", nil, token)
	require.Equal(t, fiber.StatusOK, status)
	favorites := decodeData[[]models.User](t, res)
	require.Len(t, favorites, 1)
	assert.Equal(t, tutor.ID, favorites[0].ID)
	assert.True(t, favorites[0].IsFavorite)

	_, res = env.do(t, http.MethodPost, path, nil, token)
	assert.Equal(t, false, decodeData[map[string]bool](t, res)["isFavorite"])

	_, res = env.do(t, http.MethodGet, "/api/users/favorites", nil, token)
	assert.Empty(t, decodeData[[]models.User](t, res))

	status, _ = env.do(t, http.MethodGet, "/api/users/favorites", nil, "")
	assert.Equal(t, fiber.StatusUnauthorized, status)
}

func TestListTutorsFilters(t *testing.T) {
	env := newTestEnv(t)
	cheap := testutil.CreateTutor(t, env.db, "Cheap Tutor", 20)
	pricey := testutil.CreateTutor(t, env.db, "Pricey Tutor", 90)
	testutil.CreateUser(t, env.db, "Not A Tutor")

	status, res := env.do(t, http.MethodGet, "/api/users/tutors", nil, "")
	require.Equal(t, fiber.StatusOK, status, res.Message)
	all := decodeData[[]models.User](t, res)
	assert.Len(t, all, 2)
	for _, u := range all {
		assert.True(t, u.IsTutor)
	}

	_, res = env.do(t, http.MethodGet, "/api/users/tutors?maxRate=50", nil, "")
	filtered := decodeData[[]models.User](t, res)
	require.Len(t, filtered, 1)
	assert.Equal(t, cheap.ID, filtered[0].ID)

	_, res = env.do(t, http.MethodGet, "/api/users/tutors?q=Pricey", nil, "")
	byName := decodeData[[]models.User](t, res)
	require.Len(t, byName, 1)
	assert.Equal(t, pricey.ID, byName[0].ID)

	status, res = env.do(t, http.MethodGet, "/api/users/tutors?minRating=high", nil, "")
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, "Invalid minRating", res.Message)
}

func TestUpdateProfile(t *testing.T) {
	env := newTestEnv(t)
	user := testutil.CreateUser(t, env.db, "Sam Learner")
	token := env.tokenFor(t, user)

	status, res := env.do(t, http.MethodPut, "/api/users/profile", fiber.Map{
		"bio":        "Learning calculus",
		"isTutor":    true,
		"hourlyRate": 35,
		"subjects":   "calculus",
	}, token)
	require.Equal(t, fiber.StatusOK, status, res.Message)
	updated := decodeData[models.User](t, res)
	assert.Equal(t, "Learning calculus", updated.Bio)
	assert.True(t, updated.IsTutor)
	require.NotNil(t, updated.HourlyRate)
	assert.InDelta(t, 35.0, *updated.HourlyRate, 1e-9)
	assert.Equal(t, "Sam Learner", updated.Name)

	status, _ = env.do(t, http.MethodPut, "/api/users/profile", fiber.Map{"name": " "}, token)
	assert.Equal(t, fiber.StatusBadRequest, status)
}

func TestGetUserNotFound(t *testing.T) {
	env := newTestEnv(t)

	status, res := env.do(t, http.MethodGet, "/api/users/9999", nil, "")
	assert.Equal(t, fiber.StatusNotFound, status)
	assert.Equal(t, models.CodeNotFound, res.Code)

	status, res = env.do(t, http.MethodGet, "/api/users/abc", nil, "")
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, "Invalid ID", res.Message)
}
