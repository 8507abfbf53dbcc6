package webhook

import (
	"errors"
	"time"

	"github.com/mattjoyce/contentful-listener/internal/events"
)

//go:generate mockgen -destination=mocks/mock_emitter.go -package=mocks github.com/mattjoyce/contentful-listener/internal/webhook Emitter

// Emitter receives what the gateway produces. *events.Bus implements it.
type Emitter interface {
	Emit(name string, ev events.Event)
	EmitError(err error)
}

// FailurePolicy decides what a malformed payload does to the listener.
type FailurePolicy string

const (
	// FailFast commits 200, emits the failure on the error channel and halts
	// the listener.
	FailFast FailurePolicy = "fail_fast"

	// Reject answers 400 and keeps serving. Nothing is emitted.
	Reject FailurePolicy = "reject"
)

// Config holds webhook server configuration.
type Config struct {
	Listen string

	// Auth is the shared secret for Basic authorization. Empty means open.
	Auth string

	// MaxBodySize is the maximum allowed request body size in bytes (default: 1MB)
	MaxBodySize int64

	// BodyReadTimeout bounds how long one delivery may take to upload its body.
	BodyReadTimeout time.Duration

	FailurePolicy FailurePolicy
}

// Header names and the only accepted media type.
const (
	MediaType         = "application/vnd.contentful.management.v1+json"
	TopicHeader       = "X-Contentful-Topic"
	WebhookNameHeader = "X-Contentful-Webhook-Name"
	DeliveryIDHeader  = "X-Delivery-Id"
)

// Default values
const (
	DefaultListen          = "127.0.0.1:8081"
	DefaultMaxBodySize     = 1048576 // 1 MB
	DefaultBodyReadTimeout = 10 * time.Second
)

var (
	ErrMissingTopic     = errors.New("missing topic header")
	ErrMalformedTopic   = errors.New("malformed topic header")
	ErrMalformedPayload = errors.New("malformed webhook payload")

	// ErrHalted is returned by Start after a malformed payload stopped the
	// listener under the FailFast policy.
	ErrHalted = errors.New("webhook listener halted")
)

// ErrorResponse is the JSON response for rejected deliveries.
type ErrorResponse struct {
	Error string `json:"error"`
}
