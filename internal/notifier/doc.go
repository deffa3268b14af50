// Package notifier turns matched rules into desktop notifications.
//
// Build renders one rule into a Payload. The Dispatcher hands payloads to a
// Sink at a bounded rate and keeps one notification per rule on screen by
// passing the id the Sink assigned last time as ReplacesID.
//
// # Identity
//
// Tracker remembers the first id the Sink returned for each rule name. The
// entry lives until the rule disappears from the configuration; a rule that
// comes back later gets a fresh notification.
//
// # Sinks
//
// DBusSink talks to org.freedesktop.Notifications on the session bus.
package notifier
