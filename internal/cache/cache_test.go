package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type cachedUser struct {
	ID   uint   `json:"id"`
	Name string `json:"name"`
}

func setupRedis(t *testing.T) *miniredis.Miniredis {
	t.Helper()
	mr := miniredis.RunT(t)
	SetClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { SetClient(nil) })
	return mr
}

func TestAside_MissThenHit(t *testing.T) {
	mr := setupRedis(t)
	ctx := context.Background()

	calls := 0
	fetch := func(dest *cachedUser) func() error {
		return func() error {
			calls++
			*dest = cachedUser{ID: 9, Name: "Tutor"}
			return nil
		}
	}

	var first cachedUser
	require.NoError(t, Aside(ctx, UserKey(9), &first, time.Minute, fetch(&first)))
	assert.Equal(t, "Tutor", first.Name)
	assert.True(t, mr.Exists("user:9"))

	var second cachedUser
	require.NoError(t, Aside(ctx, UserKey(9), &second, time.Minute, fetch(&second)))
	assert.Equal(t, first, second)
	assert.Equal(t, 1, calls)
}

func TestAside_FetchErrorNotCached(t *testing.T) {
	mr := setupRedis(t)
	boom := errors.New("db down")

	var dest cachedUser
	err := Aside(context.Background(), UserKey(1), &dest, time.Minute, func() error { return boom })
	assert.ErrorIs(t, err, boom)
	assert.False(t, mr.Exists("user:1"))
}

func TestAside_NoClientFallsThrough(t *testing.T) {
	SetClient(nil)
	var dest cachedUser
	err := Aside(context.Background(), UserKey(2), &dest, time.Minute, func() error {
		dest.ID = 2
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, uint(2), dest.ID)
}

func TestInvalidateTutor_BumpsDirectoryVersion(t *testing.T) {
	mr := setupRedis(t)
	ctx := context.Background()

	before := TutorsKey(ctx, "q=math")
	require.NoError(t, SetJSON(ctx, RatingsKey(9), []int{1}, time.Minute))

	InvalidateTutor(ctx, 9)

	after := TutorsKey(ctx, "q=math")
	assert.NotEqual(t, before, after)
	assert.Equal(t, "tutors:v1:q=math", after)
	assert.False(t, mr.Exists("ratings:tutor:9"))
}
