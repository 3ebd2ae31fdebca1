package notify

import (
	"fmt"

	"github.com/example/appt-scheduler/internal/config"
)

// NewChannel returns the configured push channel, or nil when none is set.
func NewChannel(cfg config.NotifyConfig) (Channel, error) {
	switch cfg.Channel {
	case config.ChannelNone:
		return nil, nil
	case config.ChannelPushbullet:
		return NewPushChannel(cfg.Endpoint, cfg.Token), nil
	case config.ChannelTelegram:
		tc, err := NewTelegramChannel(cfg.Token, cfg.ChatID, "")
		if err != nil {
			return nil, err
		}
		return tc, nil
	default:
		return nil, fmt.Errorf("unknown notification channel %q", cfg.Channel)
	}
}
