package usecase_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/iho/betledger/internal/adapter/repository/memory"
	"github.com/iho/betledger/internal/domain"
	"github.com/iho/betledger/internal/infrastructure/metrics"
	"github.com/iho/betledger/internal/usecase"
	"github.com/iho/betledger/internal/usecase/mocks"
)

func newAttribution(t *testing.T, sink usecase.AttributionSink, store usecase.AttributionStore) (*usecase.AttributionUseCase, *memory.Store, *metrics.Metrics) {
	t.Helper()
	s := memory.NewStore()
	m := metrics.NewWithRegistry(prometheus.NewRegistry())
	uc := usecase.NewAttributionUseCase(sink, store, s.Entries(), s.Users(), mocks.NewMockClock(testNow), usecase.AttributionConfig{
		MaxAttempts:     3,
		AttemptTimeout:  50 * time.Millisecond,
		DefaultCampaign: "organic-default",
		DefaultPageURL:  "https://bet.example.com",
	}, m, zerolog.Nop())
	return uc, s, m
}

func TestAttributionResolve_Tiers(t *testing.T) {
	ctx := context.Background()

	t.Run("entry params win", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		store := mocks.NewMockAttributionStore(ctrl)
		uc, _, _ := newAttribution(t, nil, store)

		params, source := uc.Resolve(ctx, &domain.LedgerEntry{
			AttributionParams: domain.AttributionParams{UTMSource: "tiktok", IP: "10.1.1.1"},
		})
		assert.Equal(t, domain.AttributionSourceEntry, source)
		assert.Equal(t, "tiktok", params.UTMSource)
	})

	t.Run("record for the creation address", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		store := mocks.NewMockAttributionStore(ctrl)
		store.EXPECT().Get(gomock.Any(), "10.1.1.2").Return(&domain.AttributionRecord{
			IP:     "10.1.1.2",
			Params: domain.AttributionParams{UTMSource: "kwai"},
		}, nil)
		uc, _, _ := newAttribution(t, nil, store)

		params, source := uc.Resolve(ctx, &domain.LedgerEntry{
			Metadata: domain.Metadata{domain.MetaClientIP: "10.1.1.2"},
		})
		assert.Equal(t, domain.AttributionSourceIP, source)
		assert.Equal(t, "kwai", params.UTMSource)
		assert.Equal(t, "10.1.1.2", params.IP)
	})

	t.Run("static default", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		store := mocks.NewMockAttributionStore(ctrl)
		store.EXPECT().Get(gomock.Any(), "10.1.1.3").Return(nil, domain.ErrNotFound)
		uc, _, _ := newAttribution(t, nil, store)

		params, source := uc.Resolve(ctx, &domain.LedgerEntry{
			AttributionParams: domain.AttributionParams{IP: "10.1.1.3"},
		})
		assert.Equal(t, domain.AttributionSourceDefault, source)
		assert.Equal(t, "direct", params.UTMSource)
		assert.Equal(t, "organic", params.UTMMedium)
		assert.Equal(t, "organic-default", params.UTMCampaign)
		assert.Equal(t, "https://bet.example.com", params.PageURL)
		assert.Equal(t, "direct", params.Referrer)
	})

	t.Run("store errors fall through to default", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		store := mocks.NewMockAttributionStore(ctrl)
		store.EXPECT().Get(gomock.Any(), "10.1.1.4").Return(nil, errors.New("redis down"))
		uc, _, _ := newAttribution(t, nil, store)

		_, source := uc.Resolve(ctx, &domain.LedgerEntry{
			Metadata: domain.Metadata{domain.MetaClientIP: "10.1.1.4"},
		})
		assert.Equal(t, domain.AttributionSourceDefault, source)
	})
}

func TestAttributionDeliver_RetriesThenSucceeds(t *testing.T) {
	ctrl := gomock.NewController(t)
	sink := mocks.NewMockAttributionSink(ctrl)
	gomock.InOrder(
		sink.EXPECT().SendEvent(gomock.Any(), gomock.Any()).Return(errors.New("timeout")),
		sink.EXPECT().SendEvent(gomock.Any(), gomock.Any()).Return(nil),
	)
	uc, _, m := newAttribution(t, sink, nil)

	out := uc.Deliver(context.Background(), domain.AttributionEventPurchase, &domain.LedgerEntry{ID: "e1"}, &domain.UserAccount{ID: "u1"})

	assert.True(t, out.Success)
	assert.Equal(t, 2, out.Attempts)
	assert.NoError(t, out.Err)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.AttributionDelivery.WithLabelValues("purchase", "success")))
}

func TestAttributionDeliver_BoundedAttempts(t *testing.T) {
	ctrl := gomock.NewController(t)
	sink := mocks.NewMockAttributionSink(ctrl)
	sink.EXPECT().SendEvent(gomock.Any(), gomock.Any()).Return(errors.New("500")).Times(3)
	uc, _, m := newAttribution(t, sink, nil)

	out := uc.Deliver(context.Background(), domain.AttributionEventPurchase, &domain.LedgerEntry{ID: "e1"}, &domain.UserAccount{ID: "u1"})

	assert.False(t, out.Success)
	assert.Equal(t, 3, out.Attempts)
	assert.ErrorIs(t, out.Err, domain.ErrAttributionDelivery)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.AttributionDelivery.WithLabelValues("purchase", "failure")))

	md := out.Metadata()
	assert.Equal(t, false, md[domain.MetaAttributionSuccess])
	assert.Equal(t, 3, md[domain.MetaAttributionAttempts])
}

func TestAttributionDeliver_AttemptTimeout(t *testing.T) {
	ctrl := gomock.NewController(t)
	sink := mocks.NewMockAttributionSink(ctrl)
	sink.EXPECT().SendEvent(gomock.Any(), gomock.Any()).DoAndReturn(func(ctx context.Context, _ usecase.AttributionEvent) error {
		<-ctx.Done()
		return ctx.Err()
	}).Times(3)
	uc, _, _ := newAttribution(t, sink, nil)

	start := time.Now()
	out := uc.Deliver(context.Background(), domain.AttributionEventPixGenerated, &domain.LedgerEntry{ID: "e1"}, nil)

	assert.False(t, out.Success)
	assert.ErrorIs(t, out.Err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestAttributionSaveForIP(t *testing.T) {
	ctx := context.Background()
	uc, _, _ := newAttribution(t, nil, memory.NewAttributionStore())

	_, err := uc.SaveForIP(ctx, "  ", domain.AttributionParams{UTMSource: "x"})
	assert.ErrorIs(t, err, domain.ErrValidation)

	rec, err := uc.SaveForIP(ctx, "192.0.2.1", domain.AttributionParams{UTMSource: "facebook", FBClid: "abc"})
	require.NoError(t, err)
	assert.Equal(t, testNow.Add(domain.AttributionRecordTTL), rec.ExpiresAt)

	got, err := uc.GetForIP(ctx, "192.0.2.1")
	require.NoError(t, err)
	assert.Equal(t, "abc", got.Params.FBClid)
	assert.Equal(t, "192.0.2.1", got.Params.IP)

	_, err = uc.GetForIP(ctx, "192.0.2.2")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
