package jobs

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"zephyrm-backend/internal/config"
	"zephyrm-backend/internal/domain"
	"zephyrm-backend/internal/metrics"
	"zephyrm-backend/internal/repository/memory"
)

const testYAML = `
server:
  port: 8080
database:
  driver: memory
jwt:
  secret: "0123456789abcdef0123456789abcdef"
scheduler:
  settled_job_retention_days: 7
  read_notification_retention_days: 14
`

type countingWaker struct{ n int }

func (w *countingWaker) Wake() { w.n++ }

var t0 = time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)

func newRunner(t *testing.T, waker Waker) (*JobRunner, *memory.Store) {
	t.Helper()
	cfg, err := config.Parse([]byte(testYAML))
	require.NoError(t, err)
	store := memory.NewStore(func() time.Time { return t0 })
	jr := NewJobRunner(Repositories{
		Jobs:          store.JobRepository,
		Assets:        store.AssetRepository,
		Notifications: store.NotificationRepository,
	}, waker, cfg, metrics.New())
	return jr, store
}

func TestPurgeSettledJobs(t *testing.T) {
	jr, store := newRunner(t, nil)
	ctx := context.Background()

	for _, j := range []domain.ScheduledJob{
		{ID: "fired", EventID: 1},
		{ID: "cancelled", EventID: 2},
		{ID: "pending", EventID: 3},
	} {
		j.FireTime = t0.Add(time.Hour)
		j.Status = domain.JobStatusScheduled
		require.NoError(t, store.JobRepository.Create(ctx, &j))
	}
	require.NoError(t, store.JobRepository.Claim(ctx, "fired"))
	_, err := store.JobRepository.CancelByEvent(ctx, 2)
	require.NoError(t, err)

	// Inside retention nothing goes.
	jr.now = func() time.Time { return t0.Add(6 * 24 * time.Hour) }
	jr.PurgeSettledJobs()
	_, err = store.JobRepository.GetByID(ctx, "fired")
	require.NoError(t, err)

	jr.now = func() time.Time { return t0.Add(8 * 24 * time.Hour) }
	jr.PurgeSettledJobs()

	for _, id := range []string{"fired", "cancelled"} {
		_, err := store.JobRepository.GetByID(ctx, id)
		assert.ErrorIs(t, err, domain.ErrNotFound, id)
	}
	_, err = store.JobRepository.GetByID(ctx, "pending")
	assert.NoError(t, err)
}

func TestPurgeReadNotifications(t *testing.T) {
	jr, store := newRunner(t, nil)
	ctx := context.Background()

	read := &domain.Notification{UserID: 1, Title: "old"}
	unread := &domain.Notification{UserID: 1, Title: "pending"}
	require.NoError(t, store.NotificationRepository.Create(ctx, read))
	require.NoError(t, store.NotificationRepository.Create(ctx, unread))
	require.NoError(t, store.NotificationRepository.MarkRead(ctx, read.ID))

	jr.now = func() time.Time { return t0.Add(15 * 24 * time.Hour) }
	jr.PurgeReadNotifications()

	left, err := store.NotificationRepository.ListByUser(ctx, 1)
	require.NoError(t, err)
	require.Len(t, left, 1)
	assert.Equal(t, "pending", left[0].Title)
}

func TestAuditAssets_FlagsWithoutRepair(t *testing.T) {
	jr, store := newRunner(t, nil)
	ctx := context.Background()
	uid := int32(4)

	good := &domain.Asset{Title: "ok", State: domain.AssetStateFree}
	holderless := &domain.Asset{Title: "legacy loan", State: domain.AssetStateOnLoan}
	stray := &domain.Asset{Title: "legacy user", State: domain.AssetStateBroken, UserID: &uid}
	for _, a := range []*domain.Asset{good, holderless, stray} {
		require.NoError(t, store.AssetRepository.Create(ctx, a))
	}

	res, err := jr.auditAssets(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Scanned)
	require.Len(t, res.Inconsistent, 2)
	assert.Equal(t, holderless.ID, res.Inconsistent[0].ID)
	assert.Equal(t, stray.ID, res.Inconsistent[1].ID)

	jr.AuditAssetConsistency()
	after, err := store.AssetRepository.GetByID(ctx, stray.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.AssetStateBroken, after.State)
	require.NotNil(t, after.UserID)
}

func TestSweepReminders(t *testing.T) {
	w := &countingWaker{}
	jr, _ := newRunner(t, w)
	jr.SweepReminders()
	assert.Equal(t, 1, w.n)

	noLoop, _ := newRunner(t, nil)
	assert.NotPanics(t, noLoop.SweepReminders)
}

func TestRunWithRecovery_SurvivesPanic(t *testing.T) {
	jr, _ := newRunner(t, nil)
	assert.NotPanics(t, func() {
		jr.runWithRecovery("boom", func(ctx context.Context) error {
			panic("unexpected")
		})
	})
}

func TestRunAll(t *testing.T) {
	w := &countingWaker{}
	jr, _ := newRunner(t, w)
	jr.RunAll()
	assert.Equal(t, 1, w.n)
}
