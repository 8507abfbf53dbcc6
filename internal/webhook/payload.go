package webhook

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/mattjoyce/contentful-listener/internal/events"
)

type payload struct {
	Sys    json.RawMessage `json:"sys"`
	Fields json.RawMessage `json:"fields"`
}

type sysMeta struct {
	ID          *string `json:"id"`
	Space       *link   `json:"space"`
	ContentType *link   `json:"contentType"`
}

type link struct {
	Sys *struct {
		ID *string `json:"id"`
	} `json:"sys"`
}

// BuildEvent parses a delivery body and maps it onto an events.Event.
// All failures wrap ErrMalformedPayload.
func BuildEvent(body []byte, topic Topic, webhookName string) (events.Event, error) {
	var p payload
	if err := json.Unmarshal(body, &p); err != nil {
		return events.Event{}, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	if isNull(p.Sys) {
		return events.Event{}, fmt.Errorf("%w: missing sys", ErrMalformedPayload)
	}

	var sys sysMeta
	if err := json.Unmarshal(p.Sys, &sys); err != nil {
		return events.Event{}, fmt.Errorf("%w: sys: %v", ErrMalformedPayload, err)
	}
	if sys.ID == nil {
		return events.Event{}, fmt.Errorf("%w: missing sys.id", ErrMalformedPayload)
	}
	if sys.Space == nil || sys.Space.Sys == nil || sys.Space.Sys.ID == nil {
		return events.Event{}, fmt.Errorf("%w: missing sys.space.sys.id", ErrMalformedPayload)
	}

	ev := events.Event{
		ID:          *sys.ID,
		Kind:        topic.Kind,
		Origin:      topic.Origin,
		Space:       *sys.Space.Sys.ID,
		Sys:         p.Sys,
		WebhookName: webhookName,
	}

	if sys.ContentType != nil {
		if sys.ContentType.Sys == nil {
			return events.Event{}, fmt.Errorf("%w: sys.contentType has no sys", ErrMalformedPayload)
		}
		if sys.ContentType.Sys.ID != nil {
			ev.ContentType = *sys.ContentType.Sys.ID
		}
	}

	if !isNull(p.Fields) {
		dec := json.NewDecoder(bytes.NewReader(p.Fields))
		dec.UseNumber()
		if err := dec.Decode(&ev.Fields); err != nil {
			return events.Event{}, fmt.Errorf("%w: fields: %v", ErrMalformedPayload, err)
		}
	}

	return ev, nil
}

func isNull(raw json.RawMessage) bool {
	return len(raw) == 0 || bytes.Equal(raw, []byte("null"))
}
