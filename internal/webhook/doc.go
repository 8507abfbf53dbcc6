// Package webhook receives Contentful webhook deliveries and re-emits them as
// named events.
//
// The gateway wraps an http.Server and sends every method and path to a single
// handler. Each delivery becomes at most one events.Event, dispatched under a
// name derived from the action segment of the topic header.
//
// # Request Flow
//
//  1. Content-Type must be exactly application/vnd.contentful.management.v1+json (else 406)
//  2. With a shared secret configured, Authorization must be "Basic base64(secret)" (else 401)
//  3. X-Contentful-Topic is split into origin, kind and action (else 400)
//  4. Body is read under MaxBodySize (else 413) and BodyReadTimeout (else 408/400)
//  5. Body is parsed and dispatched, subject to the failure policy
//
// # Failure Policy
//
// FailFast is the default: the sender gets 200 before the body is parsed, and
// a malformed body is emitted on the error channel and halts the listener.
// Only the first malformed body is reported, and no event is dispatched once a
// halt has begun. Start then returns an error wrapping ErrHalted. Reject
// answers 400 and keeps serving.
//
// # Event Names
//
// The action segment has its first "_x" pair rewritten to "X": auto_save
// becomes autoSave, publish stays publish.
//
// # Configuration
//
// Configured in the webhook section of config.yaml:
//
//	webhook:
//	  listen: "127.0.0.1:8081"
//	  auth: ${CONTENTFUL_WEBHOOK_SECRET}
//	  max_body_size: 1MB
//	  body_read_timeout: 10s
//	  failure_policy: fail_fast
//
// # Example Usage
//
//	bus := events.NewBus()
//	bus.On(events.Publish, func(ev events.Event) { ... })
//	bus.OnError(func(err error) { ... })
//
//	server := webhook.New(webhook.Config{Auth: secret}, bus, logger)
//	if err := server.Start(ctx); err != nil {
//		log.Fatal(err)
//	}
package webhook
