package calendar

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/hackgods/voice-appointment-engine/internal/slot"
)

// Reminders attached to every booked event.
const (
	emailReminderMinutes = 24 * 60
	popupReminderMinutes = 10
)

// GoogleProvider talks to a single Google calendar. It has no conditional insert,
// so double-booking protection relies on the engine's day lock.
type GoogleProvider struct {
	svc        *gcal.Service
	calendarID string
	loc        *time.Location
}

// NewGoogleProvider builds the client from opts, typically
// option.WithCredentialsFile for a service account.
func NewGoogleProvider(ctx context.Context, calendarID string, loc *time.Location, opts ...option.ClientOption) (*GoogleProvider, error) {
	if calendarID == "" {
		calendarID = "primary"
	}
	if loc == nil {
		loc = time.Local
	}
	svc, err := gcal.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create google calendar service: %w", err)
	}
	return &GoogleProvider{svc: svc, calendarID: calendarID, loc: loc}, nil
}

func (p *GoogleProvider) ListEventsForDay(ctx context.Context, day time.Time) ([]Event, error) {
	from, to := slot.DayBounds(day.In(p.loc))

	var (
		result    []Event
		pageToken string
	)
	for {
		call := p.svc.Events.List(p.calendarID).
			TimeMin(from.Format(time.RFC3339)).
			TimeMax(to.Format(time.RFC3339)).
			SingleEvents(true).
			OrderBy("startTime").
			Context(ctx)
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}
		page, err := call.Do()
		if err != nil {
			return nil, fmt.Errorf("list google events: %w", err)
		}
		for _, item := range page.Items {
			result = append(result, p.fromGoogle(item))
		}
		if page.NextPageToken == "" {
			return result, nil
		}
		pageToken = page.NextPageToken
	}
}

func (p *GoogleProvider) CreateEvent(ctx context.Context, ev Event) (string, error) {
	if !ev.HasBounds() || !ev.End.After(ev.Start) {
		return "", fmt.Errorf("create event: invalid interval %s - %s", ev.Start, ev.End)
	}

	created, err := p.svc.Events.Insert(p.calendarID, p.toGoogle(ev)).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("insert google event: %w", err)
	}
	return created.Id, nil
}

func (p *GoogleProvider) DeleteEvent(ctx context.Context, id string) error {
	err := p.svc.Events.Delete(p.calendarID, id).Context(ctx).Do()
	if err == nil {
		return nil
	}
	var gerr *googleapi.Error
	if errors.As(err, &gerr) && (gerr.Code == http.StatusNotFound || gerr.Code == http.StatusGone) {
		return ErrEventNotFound
	}
	return fmt.Errorf("delete google event: %w", err)
}

func (p *GoogleProvider) toGoogle(ev Event) *gcal.Event {
	g := &gcal.Event{
		Summary:     ev.Title,
		Description: ev.Description,
		Location:    ev.Location,
		Start: &gcal.EventDateTime{
			DateTime: ev.Start.In(p.loc).Format(time.RFC3339),
			TimeZone: p.loc.String(),
		},
		End: &gcal.EventDateTime{
			DateTime: ev.End.In(p.loc).Format(time.RFC3339),
			TimeZone: p.loc.String(),
		},
		Reminders: &gcal.EventReminders{
			UseDefault: false,
			Overrides: []*gcal.EventReminder{
				{Method: "email", Minutes: emailReminderMinutes},
				{Method: "popup", Minutes: popupReminderMinutes},
			},
			ForceSendFields: []string{"UseDefault"},
		},
	}
	if ev.AttendeeEmail != "" {
		g.Attendees = []*gcal.EventAttendee{{Email: ev.AttendeeEmail}}
	}
	return g
}

// fromGoogle leaves Start or End zero when the item carries no dateTime
// (all-day events), which callers treat as unbounded and skip.
func (p *GoogleProvider) fromGoogle(item *gcal.Event) Event {
	ev := Event{
		ID:          item.Id,
		Title:       item.Summary,
		Description: item.Description,
		Location:    item.Location,
	}
	if item.Start != nil && item.Start.DateTime != "" {
		if t, err := time.Parse(time.RFC3339, item.Start.DateTime); err == nil {
			ev.Start = t.In(p.loc)
		}
	}
	if item.End != nil && item.End.DateTime != "" {
		if t, err := time.Parse(time.RFC3339, item.End.DateTime); err == nil {
			ev.End = t.In(p.loc)
		}
	}
	if len(item.Attendees) > 0 && item.Attendees[0] != nil {
		ev.AttendeeEmail = item.Attendees[0].Email
	}
	return ev
}
