package eventsource

import (
	"context"
	"fmt"
	"time"

	"github.com/wekker/wekker/internal/config"
)

// NewFromConfig builds the configured event source.
func NewFromConfig(ctx context.Context, cfg config.Source, horizon time.Duration) (EventSource, error) {
	switch cfg.Type {
	case "google":
		return NewGoogleSource(ctx, GoogleCredentials{
			ClientID:     cfg.Google.ClientId,
			ClientSecret: cfg.Google.ClientSecret,
			RefreshToken: cfg.Google.RefreshToken,
		}, horizon)
	case "ics":
		feeds := make([]Feed, 0, len(cfg.ICS))
		for _, feed := range cfg.ICS {
			feeds = append(feeds, Feed{ID: feed.Id, URL: feed.Url})
		}
		return NewICSSource(feeds, horizon), nil
	}
	return nil, fmt.Errorf("unknown event source type: %q", cfg.Type)
}
