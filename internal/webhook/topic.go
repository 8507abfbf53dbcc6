package webhook

import (
	"fmt"
	"strings"
)

// Topic is the parsed X-Contentful-Topic header, e.g. "ContentManagement.Entry.publish".
type Topic struct {
	Origin string
	Kind   string
	Event  string
}

// ParseTopic splits a topic header into its three segments. Segments past the
// third are ignored.
func ParseTopic(header string) (Topic, error) {
	if header == "" {
		return Topic{}, ErrMissingTopic
	}

	parts := strings.SplitN(header, ".", 4)
	if len(parts) < 3 {
		return Topic{}, fmt.Errorf("%w: %q has %d segments, want 3", ErrMalformedTopic, header, len(parts))
	}
	for i, p := range parts[:3] {
		if p == "" {
			return Topic{}, fmt.Errorf("%w: %q has empty segment %d", ErrMalformedTopic, header, i)
		}
	}

	return Topic{Origin: parts[0], Kind: parts[1], Event: parts[2]}, nil
}

// EventName upper-cases the first lowercase ASCII letter that follows an
// underscore and drops that underscore. Only the first match is rewritten:
// "auto_save" becomes "autoSave", "a_b_c" becomes "aB_c".
func EventName(action string) string {
	for i := 0; i+1 < len(action); i++ {
		c := action[i+1]
		if action[i] == '_' && c >= 'a' && c <= 'z' {
			return action[:i] + string(c-'a'+'A') + action[i+2:]
		}
	}
	return action
}

// Name returns the dispatch key for t.
func (t Topic) Name() string {
	return EventName(t.Event)
}
