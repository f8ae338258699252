// Package notify delivers availability events to webhook targets: Slack,
// Microsoft Teams, or any generic HTTP endpoint.
//
// A Notifier is an availability.Observer. Applied events are queued without
// blocking the actor and delivered in order by Run; delivery failures are
// logged and never reach the update path.
package notify
