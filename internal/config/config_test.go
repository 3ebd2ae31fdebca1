package config

import (
	"bytes"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validViper(t *testing.T) *viper.Viper {
	t.Helper()
	v := NewViper()
	v.Set("account.username", "me@example.com")
	v.Set("account.password", "hunter2")
	v.Set("booking.deadline", "2024-09-30")
	v.Set("booking.reference", "48123456")
	v.Set("booking.resources", []string{"94", "95"})
	return v
}

func TestFromViper_Defaults(t *testing.T) {
	cfg, err := FromViper(validViper(t))
	require.NoError(t, err)

	assert.Equal(t, "en-ca", cfg.Booking.Locale)
	assert.True(t, cfg.Booking.RejectFirstPage)
	assert.Equal(t, ModeCalendar, cfg.Availability.Mode)
	assert.Equal(t, 5*time.Minute, cfg.Scheduler.Backoff)
	assert.Equal(t, 5*time.Second, cfg.Timeouts.Element)
	assert.Equal(t, 100*time.Millisecond, cfg.Timeouts.Probe)
	assert.Equal(t, 2*time.Minute, cfg.Timeouts.Calendar)
	assert.True(t, cfg.Browser.Headless)
	assert.Equal(t, 2078, cfg.Browser.ViewportWidth)
	assert.Equal(t, 1479, cfg.Browser.ViewportHeight)
	assert.Equal(t, "apptsched", cfg.Logger.ServiceName)
	assert.Equal(t, []string{"94", "95"}, cfg.Booking.Resources)
	assert.Equal(t, time.Date(2024, 9, 30, 0, 0, 0, 0, time.Local), cfg.Booking.DeadlineDate())
	assert.Equal(t, "https://ais.usvisa-info.com/en-ca/niv", cfg.Booking.BaseURL())
}

func TestFromViper_YAML(t *testing.T) {
	v := NewViper()
	v.SetConfigType("yaml")
	yaml := []byte(`
account:
  username: me@example.com
  password: secret
booking:
  deadline: "2025-01-15"
  reference: "777"
  resources: ["89"]
  group: true
scheduler:
  backoff: 90s
notify:
  channel: telegram
  token: "123:abc"
  chat_id: 42
`)
	require.NoError(t, v.ReadConfig(bytes.NewReader(yaml)))

	cfg, err := FromViper(v)
	require.NoError(t, err)
	assert.True(t, cfg.Booking.Group)
	assert.Equal(t, 90*time.Second, cfg.Scheduler.Backoff)
	assert.Equal(t, int64(42), cfg.Notify.ChatID)
	assert.Equal(t, ChannelTelegram, cfg.Notify.Channel)
}

func TestFromViper_Env(t *testing.T) {
	t.Setenv("APPTSCHED_ACCOUNT_PASSWORD", "from-env")
	t.Setenv("APPTSCHED_SCHEDULER_MAX_CYCLES", "3")

	cfg, err := FromViper(validViper(t))
	require.NoError(t, err)
	// Explicit Set wins over the environment.
	assert.Equal(t, "hunter2", cfg.Account.Password)
	assert.Equal(t, 3, cfg.Scheduler.MaxCycles)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(v *viper.Viper)
		wantErr string
	}{
		{"missing credentials", func(v *viper.Viper) { v.Set("account.password", "") }, "account.username and account.password are required"},
		{"missing deadline", func(v *viper.Viper) { v.Set("booking.deadline", "") }, "booking.deadline is required"},
		{"bad deadline", func(v *viper.Viper) { v.Set("booking.deadline", "30/09/2024") }, "booking.deadline"},
		{"no resources", func(v *viper.Viper) { v.Set("booking.resources", []string{}) }, "at least one resource"},
		{"blank resource", func(v *viper.Viper) { v.Set("booking.resources", []string{"94", " "}) }, "booking.resources[1] is empty"},
		{"bad mode", func(v *viper.Viper) { v.Set("availability.mode", "guess") }, "availability.mode"},
		{"zero backoff", func(v *viper.Viper) { v.Set("scheduler.backoff", "0s") }, "scheduler.backoff"},
		{"negative cycles", func(v *viper.Viper) { v.Set("scheduler.max_cycles", -1) }, "scheduler.max_cycles"},
		{"unknown channel", func(v *viper.Viper) { v.Set("notify.channel", "sms") }, "notify.channel"},
		{"telegram without chat", func(v *viper.Viper) {
			v.Set("notify.channel", "telegram")
			v.Set("notify.token", "t")
		}, "notify.chat_id"},
		{"pushbullet without token", func(v *viper.Viper) { v.Set("notify.channel", "pushbullet") }, "notify.token"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := validViper(t)
			tt.mutate(v)
			_, err := FromViper(v)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
