// Package notifications pushes batch results to an ntfy topic.
//
// When notifications.ntfy_topic is empty NewService returns a no-op, so
// callers never need to check whether delivery is configured.
package notifications
