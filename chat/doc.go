// Package chat holds the normalized chat event model and the in-memory event log.
//
// The log (Store) is the API process's record of everything the bot forwarded:
//   - Append stamps a monotonic receipt time and adds the event to the tail.
//   - Query returns a windowed, optionally channel-filtered view in arrival
//     order. The window is located by binary search on receipt time.
//
// The log is deliberately in-memory and unbounded; it is lost on restart.
// Deduplication is a display concern (see Dedup), not a storage one.
package chat
