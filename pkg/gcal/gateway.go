// Package gcal is the remote calendar gateway: a thin, error-classifying
// wrapper over the Google Calendar API.
package gcal

import (
	"context"
	"log"
	"time"

	"google.golang.org/api/calendar/v3"
)

// Gateway is the calendar surface the sync engine consumes. The concrete
// implementation is remote, slow and rate-limited; all calls are
// synchronous round-trips.
type Gateway interface {
	Insert(ctx context.Context, calendarID string, ev *calendar.Event) (*calendar.Event, error)
	Update(ctx context.Context, calendarID, eventID string, ev *calendar.Event) (*calendar.Event, error)
	List(ctx context.Context, calendarID string, from time.Time) ([]*calendar.Event, error)
	Delete(ctx context.Context, calendarID, eventID string) error
}

// Client implements Gateway over an authenticated *calendar.Service.
type Client struct {
	srv *calendar.Service
}

// NewClient wraps an authenticated calendar service.
func NewClient(srv *calendar.Service) *Client {
	return &Client{srv: srv}
}

func (c *Client) Insert(ctx context.Context, calendarID string, ev *calendar.Event) (*calendar.Event, error) {
	created, err := c.srv.Events.Insert(calendarID, ev).Context(ctx).Do()
	if err != nil {
		return nil, classify(err)
	}
	return created, nil
}

func (c *Client) Update(ctx context.Context, calendarID, eventID string, ev *calendar.Event) (*calendar.Event, error) {
	updated, err := c.srv.Events.Update(calendarID, eventID, ev).Context(ctx).Do()
	if err != nil {
		return nil, classify(err)
	}
	return updated, nil
}

// List fetches events, following pagination. A zero from lists everything.
func (c *Client) List(ctx context.Context, calendarID string, from time.Time) ([]*calendar.Event, error) {
	var out []*calendar.Event
	pageToken := ""
	for {
		call := c.srv.Events.List(calendarID).SingleEvents(true).Context(ctx)
		if !from.IsZero() {
			call = call.TimeMin(from.Format(time.RFC3339))
		}
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}
		page, err := call.Do()
		if err != nil {
			return nil, classify(err)
		}
		out = append(out, page.Items...)
		if page.NextPageToken == "" {
			return out, nil
		}
		pageToken = page.NextPageToken
	}
}

func (c *Client) Delete(ctx context.Context, calendarID, eventID string) error {
	if err := c.srv.Events.Delete(calendarID, eventID).Context(ctx).Do(); err != nil {
		return classify(err)
	}
	return nil
}

// Wipe deletes every event on a calendar, pacing deletes to stay under the
// API's write quota. It returns the number of events removed. The caller is
// responsible for resetting the sync map afterwards, since the stored event
// IDs no longer reference anything.
func Wipe(ctx context.Context, gw Gateway, calendarID string, progress func(done, total int)) (int, error) {
	events, err := gw.List(ctx, calendarID, time.Time{})
	if err != nil {
		return 0, err
	}
	deleted := 0
	for _, ev := range events {
		if err := ctx.Err(); err != nil {
			return deleted, err
		}
		if err := gw.Delete(ctx, calendarID, ev.Id); err != nil {
			log.Printf("Warning: could not delete event %s: %v", ev.Id, err)
			continue
		}
		deleted++
		if progress != nil {
			progress(deleted, len(events))
		}
		time.Sleep(100 * time.Millisecond)
	}
	return deleted, nil
}
