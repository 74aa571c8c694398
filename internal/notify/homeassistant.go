package notify

import "context"

// TextSetter sets the value of a Home Assistant input_text entity.
type TextSetter interface {
	SetInputText(ctx context.Context, entityID, value string) error
}

// HomeAssistantSink writes the theme into an input_text helper so dashboards
// can show it next to the photos.
type HomeAssistantSink struct {
	client   TextSetter
	entityID string
}

func NewHomeAssistantSink(client TextSetter, entityID string) *HomeAssistantSink {
	return &HomeAssistantSink{client: client, entityID: entityID}
}

func (s *HomeAssistantSink) Name() string { return "home_assistant" }

func (s *HomeAssistantSink) Notify(ctx context.Context, n *Notification) error {
	return s.client.SetInputText(ctx, s.entityID, n.Theme)
}
