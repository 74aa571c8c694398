package notify

import (
	"time"

	"github.com/timmy/immiframe/internal/config"
)

const shoutrrrTimeout = 10 * time.Second

// FromConfig builds the enabled sinks. hass may be nil when the Home
// Assistant sink is disabled.
func FromConfig(cfg config.NotifyConfig, hass TextSetter) (*Multi, error) {
	var sinks []Sink

	if cfg.HomeAssistant.Enabled && hass != nil {
		sinks = append(sinks, NewHomeAssistantSink(hass, cfg.HomeAssistant.EntityID))
	}
	if cfg.MQTT.Enabled {
		sinks = append(sinks, NewMQTTSink(cfg.MQTT))
	}
	if len(cfg.Shoutrrr.URLs) > 0 {
		s, err := NewShoutrrrSink(cfg.Shoutrrr.URLs, shoutrrrTimeout)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, s)
	}

	return NewMulti(sinks...), nil
}
