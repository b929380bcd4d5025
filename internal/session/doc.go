// Package session owns the access-token lifecycle for clet.
//
// # State machine
//
// A client session moves through four states:
//
//	anonymous --login success--> authenticated
//	anonymous --login failure--> anonymous (error surfaced)
//	authenticated --expiry check fails--> expired
//	expired --refresh success--> authenticated
//	expired --refresh failure--> anonymous (token cleared)
//	authenticated --logout--> anonymous
//
// The initial state is authenticated when a non-expired token is found in
// the preference store at startup, anonymous otherwise.
//
// # Expiry checking
//
// Validity is decided locally, with no network call: the token's exp claim
// is decoded (unverified, signature checking is the server's concern) and
// compared to the current time. A token that cannot be decoded, or that
// carries no expiry claim, is treated as expired. This check runs at every
// protected action via Manager.ValidToken, which is the gate the snippet
// layer passes through before touching the network.
//
// # Persistence
//
// The token lives in a prefs.Store, never in package-level state, so tests
// run against an in-memory store and the manager stays free of globals.
// Logout destroys the local session before attempting the best-effort
// server-side invalidation; a server failure there is surfaced to the
// caller for logging but cannot keep the user logged in.
package session
