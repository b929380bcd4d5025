// Package snippets maintains the client-side view of a user's snippet
// collection: the summary listing, the category index derived from it,
// the currently selected detail record, and the persisted last-viewed
// pointer.
//
// Every operation consults a session gate before touching the network
// and fails with codelet.ErrUnauthenticated when no valid token exists.
// Writes go through the server first; the in-memory state is only
// reconciled after the server confirms, so a failed request leaves the
// local view untouched.
//
// Selection is guarded by a generation counter: when a newer Select
// starts before an older one's response arrives, the older result is
// discarded with ErrStale. The detail pane therefore always shows the
// most recently requested snippet, never a late straggler.
package snippets
