package scheduler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"zephyrm-backend/internal/config"
	"zephyrm-backend/internal/jobs"
	"zephyrm-backend/internal/repository/memory"
)

func TestScheduler_RegistersMaintenanceJobs(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	cfg, err := config.Parse([]byte(`
server:
  port: 8080
database:
  driver: memory
jwt:
  secret: "0123456789abcdef0123456789abcdef"
`))
	require.NoError(t, err)

	store := memory.NewStore(nil)
	runner := jobs.NewJobRunner(jobs.Repositories{
		Jobs:          store.JobRepository,
		Assets:        store.AssetRepository,
		Notifications: store.NotificationRepository,
	}, nil, cfg, nil)

	s := NewScheduler(runner)
	assert.True(t, s.IsRunning())
	assert.Len(t, s.cron.Entries(), 4)

	s.Start()
	s.Stop()
}

func TestScheduler_SkipsInvalidCronExpression(t *testing.T) {
	cfg, err := config.Parse([]byte(`
server:
  port: 8080
database:
  driver: memory
jwt:
  secret: "0123456789abcdef0123456789abcdef"
scheduler:
  audit_assets: "not a cron spec"
`))
	require.NoError(t, err)

	store := memory.NewStore(nil)
	runner := jobs.NewJobRunner(jobs.Repositories{
		Jobs:          store.JobRepository,
		Assets:        store.AssetRepository,
		Notifications: store.NotificationRepository,
	}, nil, cfg, nil)

	s := NewScheduler(runner)
	assert.Len(t, s.cron.Entries(), 3)
}
