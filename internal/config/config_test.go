package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const minimalYAML = `
server:
  port: 8080
database:
  driver: memory
jwt:
  secret: "0123456789abcdef0123456789abcdef"
`

func TestParse_Defaults(t *testing.T) {
	cfg, err := Parse([]byte(minimalYAML))
	require.NoError(t, err)

	assert.Equal(t, 30, cfg.Scheduler.ReminderLeadMinutes)
	assert.Equal(t, 30*time.Minute, cfg.ReminderLead())
	assert.Equal(t, "none", cfg.SMTP.Provider)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "text", cfg.Log.Format)
	assert.Equal(t, 64, cfg.Realtime.SendBuffer)
	assert.Equal(t, "0 0 2 * * *", cfg.Scheduler.PurgeSettledJobs)
	assert.Equal(t, ":8080", cfg.GetServerAddress())
}

func TestParse_EnvOverrides(t *testing.T) {
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")

	cfg, err := Parse([]byte(minimalYAML))
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "redis://localhost:6379/0", cfg.Redis.URL)
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{
			name: "short secret",
			yaml: "server: {port: 80}\ndatabase: {driver: memory}\njwt: {secret: short}\n",
			want: "at least 32 characters",
		},
		{
			name: "postgres without host",
			yaml: "server: {port: 80}\ndatabase: {driver: postgres, user: u, database: d}\njwt: {secret: \"0123456789abcdef0123456789abcdef\"}\n",
			want: "database host is required",
		},
		{
			name: "unknown mail provider",
			yaml: "server: {port: 80}\ndatabase: {driver: memory}\nsmtp: {provider: pigeon}\njwt: {secret: \"0123456789abcdef0123456789abcdef\"}\n",
			want: "unsupported mail provider",
		},
		{
			name: "bad port",
			yaml: "server: {port: 0}\n",
			want: "invalid server port",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestGetSecurityLevel(t *testing.T) {
	assert.Equal(t, SecurityPublic, GetSecurityLevel("GET", "/health"))
	assert.Equal(t, SecurityAdmin, GetSecurityLevel("PUT", "/requests/{id}"))
	assert.Equal(t, SecurityAccess, GetSecurityLevel("GET", "/unknown"))
}
