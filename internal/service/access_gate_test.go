package service

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"inviterank/tracker/internal/repository"
)

func TestAccessGate_ThresholdReached(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.registry.Register(ctx, 1, "group")
	require.NoError(t, err)
	_, err = f.registry.SetThreshold(ctx, 1, 3)
	require.NoError(t, err)

	f.invite(t, 1, 10, 21, "x")
	f.invite(t, 1, 10, 22, "y")

	v, err := f.gate.Evaluate(ctx, 1, 10, false)
	require.NoError(t, err)
	assert.False(t, v.Allowed)
	assert.Equal(t, ReasonBelowThreshold, v.Reason)
	assert.Equal(t, int64(2), v.Count)
	assert.Equal(t, int64(1), v.Remaining)

	f.invite(t, 1, 10, 23, "z")

	v, err = f.gate.Evaluate(ctx, 1, 10, false)
	require.NoError(t, err)
	assert.True(t, v.Allowed)
	assert.Equal(t, ReasonThresholdMet, v.Reason)
	assert.Equal(t, int64(0), v.Remaining)
}

func TestAccessGate_ZeroThresholdDisablesGating(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.registry.Register(ctx, 1, "group")
	require.NoError(t, err)
	_, err = f.registry.SetThreshold(ctx, 1, 5)
	require.NoError(t, err)
	_, err = f.registry.SetThreshold(ctx, 1, 0)
	require.NoError(t, err)

	for _, user := range []int64{10, 11, 12} {
		v, err := f.gate.Evaluate(ctx, 1, user, false)
		require.NoError(t, err)
		assert.True(t, v.Allowed)
		assert.Equal(t, ReasonGatingDisabled, v.Reason)
	}
}

func TestAccessGate_UnknownGroupIsOpen(t *testing.T) {
	f := newFixture(t)

	v, err := f.gate.Evaluate(context.Background(), 404, 10, false)
	require.NoError(t, err)
	assert.True(t, v.Allowed)
	assert.Equal(t, ReasonGatingDisabled, v.Reason)
}

func TestAccessGate_AdministratorBypassesThreshold(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.registry.Register(ctx, 1, "group")
	require.NoError(t, err)
	_, err = f.registry.SetThreshold(ctx, 1, 100)
	require.NoError(t, err)

	v, err := f.gate.Evaluate(ctx, 1, 10, true)
	require.NoError(t, err)
	assert.True(t, v.Allowed)
	assert.Equal(t, ReasonAdministrator, v.Reason)
}

func TestAccessGate_OnceAllowedStaysAllowed(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.registry.Register(ctx, 1, "group")
	require.NoError(t, err)
	_, err = f.registry.SetThreshold(ctx, 1, 2)
	require.NoError(t, err)

	allowed := false
	for i := 0; i < 6; i++ {
		f.invite(t, 1, 10, int64(100+i), fmt.Sprintf("m-%d", i))
		v, err := f.gate.Evaluate(ctx, 1, 10, false)
		require.NoError(t, err)
		if allowed {
			assert.True(t, v.Allowed, "verdict regressed after invite %d", i)
		}
		allowed = v.Allowed
	}
	assert.True(t, allowed)
}

func TestAccessGate_StoreFailureIsReported(t *testing.T) {
	flaky := &flakyInviteRepository{
		InviteRepository: repository.NewMemoryInviteRepository(),
		getCounterErr:    errors.New("pool exhausted"),
	}
	f := newFixture(t, withInviteRepository(flaky))
	ctx := context.Background()

	_, err := f.registry.Register(ctx, 1, "group")
	require.NoError(t, err)
	_, err = f.registry.SetThreshold(ctx, 1, 1)
	require.NoError(t, err)

	_, err = f.gate.Evaluate(ctx, 1, 10, false)
	assert.ErrorIs(t, err, ErrStoreUnavailable)
}
