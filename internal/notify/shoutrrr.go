package notify

import (
	"context"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/nicholas-fedor/shoutrrr"
	stypes "github.com/nicholas-fedor/shoutrrr/pkg/types"
)

type shoutrrrSender interface {
	Send(message string, params *stypes.Params) []error
}

// ShoutrrrSink sends the summary to any shoutrrr service URL (ntfy, Gotify,
// Telegram, Discord, ...).
type ShoutrrrSink struct {
	sender shoutrrrSender
}

// NewShoutrrrSink validates the URLs and builds one sender for all of them.
func NewShoutrrrSink(urls []string, timeout time.Duration) (*ShoutrrrSink, error) {
	if len(urls) == 0 {
		return nil, fmt.Errorf("at least one shoutrrr URL is required")
	}
	sender, err := shoutrrr.CreateSender(urls...)
	if err != nil {
		// the raw error may echo a URL with credentials
		return nil, fmt.Errorf("invalid shoutrrr URL configuration")
	}
	if timeout > 0 {
		sender.Timeout = timeout
	}
	sender.SetLogger(log.New(io.Discard, "", 0))
	return &ShoutrrrSink{sender: sender}, nil
}

func (s *ShoutrrrSink) Name() string { return "shoutrrr" }

func (s *ShoutrrrSink) Notify(_ context.Context, n *Notification) error {
	params := stypes.Params{}
	params.SetTitle("immiframe")

	for _, err := range s.sender.Send(n.Message(), &params) {
		if err != nil {
			return fmt.Errorf("shoutrrr send failed: %w", err)
		}
	}
	return nil
}
