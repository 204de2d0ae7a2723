package sendlog

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dripline/internal/config"
	"dripline/internal/constants"
	"dripline/internal/logger"
)

type fakeRepository struct {
	keys    map[string]bool
	markErr error
	calls   []string
}

func newFakeRepository() *fakeRepository {
	return &fakeRepository{keys: make(map[string]bool)}
}

func (f *fakeRepository) MarkSent(ctx context.Context, key string, value interface{}, ttl time.Duration) (bool, error) {
	f.calls = append(f.calls, key)
	if f.markErr != nil {
		return false, f.markErr
	}
	if f.keys[key] {
		return false, nil
	}
	f.keys[key] = true
	return true, nil
}

func (f *fakeRepository) GetLogSize(ctx context.Context, prefix string) (int, error) {
	return len(f.keys), nil
}

func newTestService(repo Repository, onRedisError string) *Service {
	svc := NewService(repo, config.SendLogConfig{
		TTLSeconds:   0,
		OnRedisError: onRedisError,
	}, logger.NopLogger())
	return svc
}

func TestCheckAndMark_FirstSend(t *testing.T) {
	repo := newFakeRepository()
	svc := newTestService(repo, constants.FallbackDeny)
	defer svc.StopLogSizeUpdater()

	first, err := svc.CheckAndMark(context.Background(), "camp-1", "member-1")
	require.NoError(t, err)
	assert.True(t, first)
}

func TestCheckAndMark_DuplicateSend(t *testing.T) {
	repo := newFakeRepository()
	svc := newTestService(repo, constants.FallbackDeny)
	defer svc.StopLogSizeUpdater()

	ctx := context.Background()
	first, err := svc.CheckAndMark(ctx, "camp-1", "member-1")
	require.NoError(t, err)
	require.True(t, first)

	second, err := svc.CheckAndMark(ctx, "camp-1", "member-1")
	require.NoError(t, err)
	assert.False(t, second)
}

func TestCheckAndMark_DistinctCampaignsIndependent(t *testing.T) {
	repo := newFakeRepository()
	svc := newTestService(repo, constants.FallbackDeny)
	defer svc.StopLogSizeUpdater()

	ctx := context.Background()
	_, err := svc.CheckAndMark(ctx, "camp-1", "member-1")
	require.NoError(t, err)

	first, err := svc.CheckAndMark(ctx, "camp-2", "member-1")
	require.NoError(t, err)
	assert.True(t, first)
}

func TestCheckAndMark_KeyFormat(t *testing.T) {
	repo := newFakeRepository()
	svc := newTestService(repo, constants.FallbackDeny)
	defer svc.StopLogSizeUpdater()

	_, err := svc.CheckAndMark(context.Background(), "camp-1", "member-1")
	require.NoError(t, err)

	require.Len(t, repo.calls, 1)
	assert.Equal(t, constants.CacheKeyPrefixSent+"camp-1:member-1", repo.calls[0])
}

func TestCheckAndMark_RedisErrorDeny(t *testing.T) {
	repo := newFakeRepository()
	repo.markErr = errors.New("connection refused")
	svc := newTestService(repo, constants.FallbackDeny)
	defer svc.StopLogSizeUpdater()

	first, err := svc.CheckAndMark(context.Background(), "camp-1", "member-1")
	require.Error(t, err)
	assert.False(t, first)
}

func TestCheckAndMark_RedisErrorAllow(t *testing.T) {
	repo := newFakeRepository()
	repo.markErr = errors.New("connection refused")
	svc := newTestService(repo, constants.FallbackAllow)
	defer svc.StopLogSizeUpdater()

	first, err := svc.CheckAndMark(context.Background(), "camp-1", "member-1")
	require.NoError(t, err)
	assert.True(t, first)
}

type fakeRecords struct {
	sent map[string]bool
}

func (f *fakeRecords) RecordSend(ctx context.Context, rec *SendRecord) error { return nil }

func (f *fakeRecords) WasSent(ctx context.Context, campaignID, memberID string) (bool, error) {
	return f.sent[campaignID+":"+memberID], nil
}

func (f *fakeRecords) CountSent(ctx context.Context, campaignID string) (int, error) {
	return len(f.sent), nil
}

func TestCheckAndMark_DurableRecordBlocksResend(t *testing.T) {
	repo := newFakeRepository()
	records := &fakeRecords{sent: map[string]bool{"camp-1:member-1": true}}
	svc := NewService(repo, config.SendLogConfig{OnRedisError: constants.FallbackDeny},
		logger.NopLogger(), WithDurableRecords(records))
	defer svc.StopLogSizeUpdater()

	ctx := context.Background()
	first, err := svc.CheckAndMark(ctx, "camp-1", "member-1")
	require.NoError(t, err)
	assert.False(t, first)

	first, err = svc.CheckAndMark(ctx, "camp-1", "member-2")
	require.NoError(t, err)
	assert.True(t, first)
}

func TestCheckAndMark_CancelledContext(t *testing.T) {
	repo := newFakeRepository()
	svc := newTestService(repo, constants.FallbackDeny)
	defer svc.StopLogSizeUpdater()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := svc.CheckAndMark(ctx, "camp-1", "member-1")
	require.Error(t, err)
	assert.Empty(t, repo.calls)
}
