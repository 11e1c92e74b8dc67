package slft_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/RevenueScotland/sets-online-portal-sub000/internal/returns/slft"
	"github.com/RevenueScotland/sets-online-portal-sub000/internal/returns/slft/mocks"
	"github.com/RevenueScotland/sets-online-portal-sub000/pkg/platform/circuit"
)

func TestGuardedSubmitterRecovers(t *testing.T) {
	ctrl := gomock.NewController(t)
	sub := mocks.NewMockSubmitter(ctrl)
	ret := slft.NewReturn(sites)
	gomock.InOrder(
		sub.EXPECT().Submit(gomock.Any(), ret).Return(slft.Receipt{}, errors.New("503")),
		sub.EXPECT().Submit(gomock.Any(), ret).Return(slft.Receipt{Reference: ret.Reference}, nil),
	)

	now := time.Date(2025, 7, 1, 10, 0, 0, 0, time.UTC)
	breaker := circuit.New("slft_submitter",
		circuit.WithFailureThreshold(1),
		circuit.WithCooldown(time.Minute),
		circuit.WithClock(func() time.Time { return now }),
	)
	guarded := slft.NewGuardedSubmitter(sub, breaker)

	_, err := guarded.Submit(context.Background(), ret)
	require.Error(t, err)
	_, err = guarded.Submit(context.Background(), ret)
	require.ErrorIs(t, err, circuit.ErrOpen)

	now = now.Add(time.Minute)
	receipt, err := guarded.Submit(context.Background(), ret)
	require.NoError(t, err)
	assert.Equal(t, ret.Reference, receipt.Reference)
	assert.False(t, breaker.IsOpen())
}
