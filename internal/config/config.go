package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment override,
// e.g. APPTSCHED_ACCOUNT_PASSWORD.
const EnvPrefix = "APPTSCHED"

// DeadlineLayout is the accepted format of booking.deadline.
const DeadlineLayout = "2006-01-02"

// Availability modes.
const (
	ModeCalendar = "calendar"
	ModeAPI      = "api"
	ModeBoth     = "both"
)

// Notification channels.
const (
	ChannelNone       = ""
	ChannelPushbullet = "pushbullet"
	ChannelTelegram   = "telegram"
)

// Config is built once at start-up and passed by value afterwards.
type Config struct {
	Account      AccountConfig      `mapstructure:"account"`
	Booking      BookingConfig      `mapstructure:"booking"`
	Availability AvailabilityConfig `mapstructure:"availability"`
	Scheduler    SchedulerConfig    `mapstructure:"scheduler"`
	Timeouts     TimeoutsConfig     `mapstructure:"timeouts"`
	Browser      BrowserConfig      `mapstructure:"browser"`
	Notify       NotifyConfig       `mapstructure:"notify"`
	Database     DatabaseConfig     `mapstructure:"database"`
	Status       StatusConfig       `mapstructure:"status"`
	Logger       LoggerConfig       `mapstructure:"logger"`
}

type AccountConfig struct {
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

type BookingConfig struct {
	// Deadline is the latest acceptable appointment date, YYYY-MM-DD.
	Deadline  string   `mapstructure:"deadline"`
	Reference string   `mapstructure:"reference"`
	Resources []string `mapstructure:"resources"`
	Locale    string   `mapstructure:"locale"`
	Host      string   `mapstructure:"host"`
	Group     bool     `mapstructure:"group"`
	// RejectFirstPage refuses a slot found without paging the calendar,
	// since its month cannot be told apart from the current one.
	RejectFirstPage bool `mapstructure:"reject_first_page"`

	deadline time.Time
}

// DeadlineDate returns the parsed deadline. Only valid after Validate.
func (b BookingConfig) DeadlineDate() time.Time { return b.deadline }

// BaseURL is the locale-scoped root of the booking site.
func (b BookingConfig) BaseURL() string {
	return fmt.Sprintf("https://%s/%s/niv", b.Host, b.Locale)
}

type AvailabilityConfig struct {
	Mode string `mapstructure:"mode"`
}

type SchedulerConfig struct {
	Backoff   time.Duration `mapstructure:"backoff"`
	MaxCycles int           `mapstructure:"max_cycles"`
}

type TimeoutsConfig struct {
	Element    time.Duration `mapstructure:"element"`
	Probe      time.Duration `mapstructure:"probe"`
	Calendar   time.Duration `mapstructure:"calendar"`
	Navigation time.Duration `mapstructure:"navigation"`
}

type BrowserConfig struct {
	Headless       bool     `mapstructure:"headless"`
	ViewportWidth  int      `mapstructure:"viewport_width"`
	ViewportHeight int      `mapstructure:"viewport_height"`
	Args           []string `mapstructure:"args"`
}

type NotifyConfig struct {
	Channel    string  `mapstructure:"channel"`
	Token      string  `mapstructure:"token"`
	ChatID     int64   `mapstructure:"chat_id"`
	Endpoint   string  `mapstructure:"endpoint"`
	RatePerSec float64 `mapstructure:"rate_per_sec"`
	RetryMax   int     `mapstructure:"retry_max"`
}

type DatabaseConfig struct {
	URL string `mapstructure:"url"`
}

type StatusConfig struct {
	ListenAddr string `mapstructure:"listen_addr"`
}

type LoggerConfig struct {
	Level       string `mapstructure:"level"`
	Format      string `mapstructure:"format"`
	ServiceName string `mapstructure:"service_name"`
	LogFile     string `mapstructure:"log_file"`
	MaxSize     int    `mapstructure:"max_size"`
	MaxBackups  int    `mapstructure:"max_backups"`
	MaxAge      int    `mapstructure:"max_age"`
	Compress    bool   `mapstructure:"compress"`
}

// SetDefaults registers every default value on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("account.username", "")
	v.SetDefault("account.password", "")

	v.SetDefault("booking.deadline", "")
	v.SetDefault("booking.reference", "")
	v.SetDefault("booking.resources", []string{})
	v.SetDefault("booking.locale", "en-ca")
	v.SetDefault("booking.host", "ais.usvisa-info.com")
	v.SetDefault("booking.group", false)
	v.SetDefault("booking.reject_first_page", true)

	v.SetDefault("availability.mode", ModeCalendar)

	v.SetDefault("scheduler.backoff", "5m")
	v.SetDefault("scheduler.max_cycles", 0)

	v.SetDefault("timeouts.element", "5s")
	v.SetDefault("timeouts.probe", "100ms")
	v.SetDefault("timeouts.calendar", "2m")
	v.SetDefault("timeouts.navigation", "30s")

	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.viewport_width", 2078)
	v.SetDefault("browser.viewport_height", 1479)
	v.SetDefault("browser.args", []string{})

	v.SetDefault("notify.channel", ChannelNone)
	v.SetDefault("notify.token", "")
	v.SetDefault("notify.chat_id", 0)
	v.SetDefault("notify.endpoint", "https://api.pushbullet.com/v2/pushes")
	v.SetDefault("notify.rate_per_sec", 1.0)
	v.SetDefault("notify.retry_max", 2)

	v.SetDefault("database.url", "")
	v.SetDefault("status.listen_addr", "")

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.service_name", "apptsched")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 50)
	v.SetDefault("logger.max_backups", 3)
	v.SetDefault("logger.max_age", 14)
	v.SetDefault("logger.compress", true)
}

// NewViper returns a viper instance with defaults and environment binding.
func NewViper() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// FromViper unmarshals and validates the configuration held by v.
func FromViper(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks required fields and sane values, and parses the deadline.
func (c *Config) Validate() error {
	var errs []error
	if c.Account.Username == "" || c.Account.Password == "" {
		errs = append(errs, errors.New("account.username and account.password are required"))
	}
	if err := c.Booking.validate(); err != nil {
		errs = append(errs, err)
	}
	switch c.Availability.Mode {
	case ModeCalendar, ModeAPI, ModeBoth:
	default:
		errs = append(errs, fmt.Errorf("availability.mode must be one of calendar, api, both (got %q)", c.Availability.Mode))
	}
	if c.Scheduler.Backoff <= 0 {
		errs = append(errs, errors.New("scheduler.backoff must be a positive duration"))
	}
	if c.Scheduler.MaxCycles < 0 {
		errs = append(errs, errors.New("scheduler.max_cycles must not be negative"))
	}
	if c.Timeouts.Element <= 0 || c.Timeouts.Probe <= 0 || c.Timeouts.Calendar <= 0 || c.Timeouts.Navigation <= 0 {
		errs = append(errs, errors.New("timeouts must be positive durations"))
	}
	if c.Browser.ViewportWidth <= 0 || c.Browser.ViewportHeight <= 0 {
		errs = append(errs, errors.New("browser viewport must be positive"))
	}
	if err := c.Notify.validate(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (b *BookingConfig) validate() error {
	if b.Deadline == "" {
		return errors.New("booking.deadline is required")
	}
	d, err := time.ParseInLocation(DeadlineLayout, b.Deadline, time.Local)
	if err != nil {
		return fmt.Errorf("booking.deadline: %w", err)
	}
	b.deadline = d
	if b.Reference == "" {
		return errors.New("booking.reference is required")
	}
	if len(b.Resources) == 0 {
		return errors.New("booking.resources must list at least one resource id")
	}
	for i, r := range b.Resources {
		if strings.TrimSpace(r) == "" {
			return fmt.Errorf("booking.resources[%d] is empty", i)
		}
	}
	if b.Locale == "" || b.Host == "" {
		return errors.New("booking.locale and booking.host are required")
	}
	return nil
}

func (n NotifyConfig) validate() error {
	switch n.Channel {
	case ChannelNone:
		return nil
	case ChannelPushbullet:
		if n.Token == "" || n.Endpoint == "" {
			return errors.New("notify.token and notify.endpoint are required for pushbullet")
		}
	case ChannelTelegram:
		if n.Token == "" || n.ChatID == 0 {
			return errors.New("notify.token and notify.chat_id are required for telegram")
		}
	default:
		return fmt.Errorf("notify.channel must be pushbullet, telegram or empty (got %q)", n.Channel)
	}
	if n.RatePerSec <= 0 {
		return errors.New("notify.rate_per_sec must be positive")
	}
	if n.RetryMax < 0 {
		return errors.New("notify.retry_max must not be negative")
	}
	return nil
}
