// Package notifications delivers pipeline milestones via pluggable notifiers.
//
// The default implementation publishes to ntfy using the topic configured in
// config.toml and gracefully degrades to a no-op when no topic is set.
// Per-category toggles and a dedup window keep repeated batch summaries from
// flooding the subscriber. Attach wires the service to the event bus so the
// daemon's pipeline never talks to the notifier directly.
//
// Extend this package if you need alternative transports; all pipeline code
// depends only on the simple Service interface.
package notifications
