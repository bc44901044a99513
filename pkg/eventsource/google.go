package eventsource

import (
	"context"
	"fmt"
	"sort"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"
)

// GoogleCredentials holds the OAuth material for the Google Calendar source.
// The refresh token is expected to be provisioned out of band.
type GoogleCredentials struct {
	ClientID     string
	ClientSecret string
	RefreshToken string
}

// GoogleSource reads upcoming events from Google Calendar.
type GoogleSource struct {
	service *gcal.Service
	horizon time.Duration
}

func NewGoogleSource(ctx context.Context, creds GoogleCredentials, horizon time.Duration) (*GoogleSource, error) {
	oauthConfig := &oauth2.Config{
		ClientID:     creds.ClientID,
		ClientSecret: creds.ClientSecret,
		Endpoint:     google.Endpoint,
		Scopes:       []string{gcal.CalendarReadonlyScope},
	}
	tokenSource := oauthConfig.TokenSource(ctx, &oauth2.Token{RefreshToken: creds.RefreshToken})

	service, err := gcal.NewService(ctx, option.WithTokenSource(tokenSource))
	if err != nil {
		err := fmt.Errorf("unable to create Google Calendar client: %v", err)
		log.Error(err)
		return nil, err
	}
	return &GoogleSource{service: service, horizon: horizon}, nil
}

func (s *GoogleSource) UpcomingEvents(ctx context.Context, calendarIDs []string, from time.Time) ([]Event, error) {
	until := from.Add(s.horizon)

	events := make([]Event, 0, 10)
	for _, calendarID := range calendarIDs {
		googleEvents, err := s.service.Events.List(calendarID).
			TimeMin(from.Format(time.RFC3339)).
			TimeMax(until.Format(time.RFC3339)).
			SingleEvents(true).
			OrderBy("startTime").
			Context(ctx).
			Do()
		if err != nil {
			err := fmt.Errorf("unable to retrieve events from calendar %s: %w", calendarID, ErrUnavailable)
			log.Errorf("Google Calendar list failed for %s: %v", calendarID, err)
			return nil, err
		}

		for _, item := range googleEvents.Items {
			if item.Status == "cancelled" {
				continue
			}
			// All-day entries carry a Date instead of a DateTime.
			if item.Start == nil || item.Start.DateTime == "" {
				continue
			}
			startTime, err := time.Parse(time.RFC3339, item.Start.DateTime)
			if err != nil {
				log.Warnf("skipping event %s with unparsable start time %q", item.Id, item.Start.DateTime)
				continue
			}
			if !startTime.After(from) {
				continue
			}
			events = append(events, Event{
				ID:         item.Id,
				Title:      item.Summary,
				StartTime:  startTime,
				CalendarID: calendarID,
			})
		}
	}

	sort.Slice(events, func(i, j int) bool {
		return events[i].StartTime.Before(events[j].StartTime)
	})
	return events, nil
}

// ListCalendars enumerates the calendars visible to the authenticated account.
func (s *GoogleSource) ListCalendars(ctx context.Context) ([]CalendarItem, error) {
	calendars, err := s.service.CalendarList.List().Context(ctx).Do()
	if err != nil {
		err := fmt.Errorf("unable to retrieve calendars from Google Calendar: %v", err)
		log.Error(err)
		return nil, err
	}
	var items []CalendarItem
	for _, cal := range calendars.Items {
		items = append(items, CalendarItem{
			ID:      cal.Id,
			Summary: cal.Summary,
		})
	}
	return items, nil
}
