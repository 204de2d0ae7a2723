package integration

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dripline/internal/constants"
	"dripline/internal/sendlog"
)

func TestSendLogRepository_MarkSentOnce(t *testing.T) {
	infra := SetupTestInfraWithOptions(t, false, false, true)
	repo := sendlog.NewRepository(infra.RedisClient)
	ctx := context.Background()

	first, err := repo.MarkSent(ctx, "sent:camp-1:member-1", "1", 0)
	require.NoError(t, err)
	assert.True(t, first)

	second, err := repo.MarkSent(ctx, "sent:camp-1:member-1", "1", 0)
	require.NoError(t, err)
	assert.False(t, second)
}

func TestSendLogRepository_TTLExpires(t *testing.T) {
	infra := SetupTestInfraWithOptions(t, false, false, true)
	repo := sendlog.NewRepository(infra.RedisClient)
	ctx := context.Background()

	first, err := repo.MarkSent(ctx, "sent:camp-ttl:member-1", "1", 500*time.Millisecond)
	require.NoError(t, err)
	require.True(t, first)

	time.Sleep(700 * time.Millisecond)

	again, err := repo.MarkSent(ctx, "sent:camp-ttl:member-1", "1", 500*time.Millisecond)
	require.NoError(t, err)
	assert.True(t, again)
}

func TestSendLogRepository_GetLogSize(t *testing.T) {
	infra := SetupTestInfraWithOptions(t, false, false, true)
	repo := sendlog.NewRepository(infra.RedisClient)
	ctx := context.Background()

	for _, member := range []string{"m1", "m2", "m3"} {
		_, err := repo.MarkSent(ctx, "sent:camp-size:"+member, "1", 0)
		require.NoError(t, err)
	}

	size, err := repo.GetLogSize(ctx, "sent:camp-size:")
	require.NoError(t, err)
	assert.Equal(t, 3, size)
}

func TestSendLogService_EndToEnd(t *testing.T) {
	infra := SetupTestInfraWithOptions(t, false, false, true)
	repo := sendlog.NewRepository(infra.RedisClient)
	svc := sendlog.NewService(repo, createTestSendLogConfig(), createTestLogger())
	defer svc.StopLogSizeUpdater()

	ctx := context.Background()

	first, err := svc.CheckAndMark(ctx, "camp-e2e", "member-1")
	require.NoError(t, err)
	assert.True(t, first)

	second, err := svc.CheckAndMark(ctx, "camp-e2e", "member-1")
	require.NoError(t, err)
	assert.False(t, second)

	otherCampaign, err := svc.CheckAndMark(ctx, "camp-other", "member-1")
	require.NoError(t, err)
	assert.True(t, otherCampaign)
}

func TestSendRecordRepository_RecordAndQuery(t *testing.T) {
	infra := SetupTestInfraWithOptions(t, true, false, false)
	records := sendlog.NewPostgresRecordRepository(infra.PostgresDB)
	ctx := context.Background()

	rec := &sendlog.SendRecord{
		CampaignID: "11111111-1111-1111-1111-111111111111",
		MemberID:   "member-1",
		Email:      "alice@example.com",
		MessageID:  "msg-1",
		SentAt:     time.Now().UTC(),
	}
	require.NoError(t, records.RecordSend(ctx, rec))

	sent, err := records.WasSent(ctx, rec.CampaignID, "member-1")
	require.NoError(t, err)
	assert.True(t, sent)

	sent, err = records.WasSent(ctx, rec.CampaignID, "member-2")
	require.NoError(t, err)
	assert.False(t, sent)

	count, err := records.CountSent(ctx, rec.CampaignID)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestSendLogService_DurableFallback(t *testing.T) {
	infra := SetupTestInfraWithOptions(t, true, false, true)
	repo := sendlog.NewRepository(infra.RedisClient)
	records := sendlog.NewPostgresRecordRepository(infra.PostgresDB)
	svc := sendlog.NewService(repo, createTestSendLogConfig(), createTestLogger(),
		sendlog.WithDurableRecords(records))
	defer svc.StopLogSizeUpdater()

	ctx := context.Background()
	campaignID := "22222222-2222-2222-2222-222222222222"

	require.NoError(t, records.RecordSend(ctx, &sendlog.SendRecord{
		CampaignID: campaignID,
		MemberID:   "member-1",
		Email:      "alice@example.com",
		MessageID:  "msg-1",
		SentAt:     time.Now().UTC(),
	}))

	// Redis has no marker but the durable log does.
	first, err := svc.CheckAndMark(ctx, campaignID, "member-1")
	require.NoError(t, err)
	assert.False(t, first)

	first, err = svc.CheckAndMark(ctx, campaignID, "member-2")
	require.NoError(t, err)
	assert.True(t, first)

	// Key prefix matches what the service writes.
	size, err := repo.GetLogSize(ctx, constants.CacheKeyPrefixSent+campaignID+":")
	require.NoError(t, err)
	assert.Equal(t, 2, size)
}
