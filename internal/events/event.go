package events

import "encoding/json"

// Event is the normalized form of one Contentful webhook delivery.
type Event struct {
	ContentType string          `json:"contentType,omitempty"`
	Fields      map[string]any  `json:"fields"`
	ID          string          `json:"id"`
	Kind        string          `json:"kind"`
	Origin      string          `json:"origin"`
	Space       string          `json:"space"`
	Sys         json.RawMessage `json:"sys"`
	WebhookName string          `json:"webhookName,omitempty"`
}

// Event names produced by the actions Contentful currently sends. Any other
// derived name is still dispatched; these exist so subscribers don't have to
// spell them out.
const (
	Create    = "create"
	Save      = "save"
	AutoSave  = "autoSave"
	Archive   = "archive"
	Unarchive = "unarchive"
	Publish   = "publish"
	Unpublish = "unpublish"
	Delete    = "delete"
)

var known = map[string]bool{
	Create: true, Save: true, AutoSave: true, Archive: true,
	Unarchive: true, Publish: true, Unpublish: true, Delete: true,
}

// Known reports whether name is one of the event names above.
func Known(name string) bool {
	return known[name]
}
