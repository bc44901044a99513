package eventsource

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"
	log "github.com/sirupsen/logrus"
	"github.com/teambition/rrule-go"
)

// Feed is a single ICS subscription. Its Id doubles as the calendar id
// reported on events.
type Feed struct {
	ID  string
	URL string
}

// ICSSource reads upcoming events from subscribed ICS feeds. Recurring
// events are expanded inside the horizon; each occurrence gets a stable id
// derived from the event UID and the occurrence start.
type ICSSource struct {
	client  *http.Client
	feeds   []Feed
	horizon time.Duration
}

func NewICSSource(feeds []Feed, horizon time.Duration) *ICSSource {
	return &ICSSource{
		client:  &http.Client{Timeout: 15 * time.Second},
		feeds:   feeds,
		horizon: horizon,
	}
}

func (s *ICSSource) UpcomingEvents(ctx context.Context, calendarIDs []string, from time.Time) ([]Event, error) {
	selected := make(map[string]bool, len(calendarIDs))
	for _, id := range calendarIDs {
		selected[id] = true
	}
	until := from.Add(s.horizon)

	events := make([]Event, 0, 10)
	for _, feed := range s.feeds {
		if !selected[feed.ID] {
			continue
		}
		body, err := s.fetch(ctx, feed)
		if err != nil {
			return nil, err
		}
		feedEvents, err := parseFeed(feed, body, from, until)
		if err != nil {
			return nil, err
		}
		events = append(events, feedEvents...)
	}

	sort.Slice(events, func(i, j int) bool {
		return events[i].StartTime.Before(events[j].StartTime)
	})
	return events, nil
}

// ListCalendars reports the configured feeds; the feed id doubles as summary
// since ICS subscriptions carry no display name of their own.
func (s *ICSSource) ListCalendars(ctx context.Context) ([]CalendarItem, error) {
	items := make([]CalendarItem, 0, len(s.feeds))
	for _, feed := range s.feeds {
		items = append(items, CalendarItem{ID: feed.ID, Summary: feed.ID})
	}
	return items, nil
}

func (s *ICSSource) fetch(ctx context.Context, feed Feed) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feed.URL, nil)
	if err != nil {
		return "", fmt.Errorf("invalid ICS url for feed %s: %w", feed.ID, err)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		err := fmt.Errorf("fetching feed %s failed: %w", feed.ID, ErrUnavailable)
		log.Errorf("ICS fetch failed for feed %s: %v", feed.ID, err)
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("feed %s returned status %d: %w", feed.ID, resp.StatusCode, ErrUnavailable)
		log.Error(err)
		return "", err
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading feed %s failed: %w", feed.ID, ErrUnavailable)
	}
	return string(body), nil
}

func parseFeed(feed Feed, body string, from, until time.Time) ([]Event, error) {
	cal, err := ical.ParseCalendar(strings.NewReader(body))
	if err != nil {
		err := fmt.Errorf("parsing feed %s failed: %w", feed.ID, err)
		log.Error(err)
		return nil, err
	}

	events := make([]Event, 0, 10)
	for _, ve := range cal.Events() {
		parsed, err := parseVEvent(feed, ve, from, until)
		if err != nil {
			// A malformed VEVENT does not poison the rest of the feed.
			log.Warnf("skipping malformed event in feed %s: %v", feed.ID, err)
			continue
		}
		events = append(events, parsed...)
	}
	return events, nil
}

func parseVEvent(feed Feed, ve *ical.VEvent, from, until time.Time) ([]Event, error) {
	uidProp := ve.GetProperty(ical.ComponentPropertyUniqueId)
	if uidProp == nil || uidProp.Value == "" {
		return nil, fmt.Errorf("missing UID")
	}
	uid := uidProp.Value

	if isAllDay(ve) {
		return nil, nil
	}

	start, err := ve.GetStartAt()
	if err != nil {
		return nil, fmt.Errorf("event %s has no usable DTSTART: %w", uid, err)
	}

	title := ""
	if p := ve.GetProperty(ical.ComponentPropertySummary); p != nil {
		title = p.Value
	}

	rruleProp := ve.GetProperty(ical.ComponentPropertyRrule)
	if rruleProp == nil || rruleProp.Value == "" {
		if !start.After(from) || start.After(until) {
			return nil, nil
		}
		return []Event{{
			ID:         uid,
			Title:      title,
			StartTime:  start,
			CalendarID: feed.ID,
		}}, nil
	}

	return expandRecurring(feed, ve, uid, title, start, rruleProp.Value, from, until)
}

func expandRecurring(feed Feed, ve *ical.VEvent, uid, title string, start time.Time, rawRRule string, from, until time.Time) ([]Event, error) {
	r, err := rrule.StrToRRule(rawRRule)
	if err != nil {
		return nil, fmt.Errorf("event %s has unparsable RRULE %q: %w", uid, rawRRule, err)
	}
	r.DTStart(start)

	var set rrule.Set
	set.RRule(r)
	for _, ex := range exDates(ve, start.Location()) {
		set.ExDate(ex)
	}

	occurrences := set.Between(from.In(start.Location()), until.In(start.Location()), true)

	events := make([]Event, 0, len(occurrences))
	for _, occStart := range occurrences {
		if !occStart.After(from) {
			continue
		}
		events = append(events, Event{
			// One id per concrete occurrence, stable across fetches.
			ID:         uid + "#" + occStart.UTC().Format(time.RFC3339),
			Title:      title,
			StartTime:  occStart,
			CalendarID: feed.ID,
		})
	}
	return events, nil
}

// isAllDay reports whether DTSTART carries a date-only value.
func isAllDay(ve *ical.VEvent) bool {
	dtStartProp := ve.GetProperty(ical.ComponentPropertyDtStart)
	if dtStartProp == nil {
		return false
	}
	if params := dtStartProp.ICalParameters; params != nil {
		if vs, ok := params["VALUE"]; ok && len(vs) > 0 && strings.EqualFold(vs[0], "DATE") {
			return true
		}
	}
	return !strings.Contains(dtStartProp.Value, "T")
}

// exDates collects EXDATE values, aligned with the event's own location.
func exDates(ve *ical.VEvent, loc *time.Location) []time.Time {
	var out []time.Time
	for _, p := range ve.GetProperties(ical.ComponentPropertyExdate) {
		for _, part := range strings.Split(p.Value, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			if t, err := parseICSTime(part, loc); err == nil {
				out = append(out, t.In(loc))
			}
		}
	}
	return out
}

// parseICSTime parses basic DATE / DATE-TIME / UTC forms.
func parseICSTime(v string, loc *time.Location) (time.Time, error) {
	if strings.HasSuffix(v, "Z") {
		return time.Parse("20060102T150405Z", v)
	}
	if strings.Contains(v, "T") {
		return time.ParseInLocation("20060102T150405", v, loc)
	}
	return time.ParseInLocation("20060102", v, loc)
}
