// Package codelet provides an HTTP client for the Codelet snippet API.
//
// # Overview
//
// This is the pure data layer of clet: it issues requests, decodes JSON,
// and folds every failure into a small closed error taxonomy. It performs
// no navigation, holds no collection state, and never redirects; those
// decisions belong to the session and UI layers.
//
// # Endpoints
//
// Account:
//
//   - POST /api/v1/register: create an account (no session established)
//   - POST /api/v1/login: credentials → access token + refresh cookie
//   - GET  /api/v1/refresh: refresh cookie → new access token
//   - POST /api/v1/logout: best-effort server-side invalidation
//   - GET  /api/v1/username: display name for the header
//   - POST /api/v1/update/password: change password
//
// Snippets (bearer-protected unless noted):
//
//   - GET    /api/v1/user/small/snippets?page=1&limit=100: summaries
//   - GET    /api/v1/user/snippets/{id}: full record
//   - POST   /api/v1/user/snippets: create
//   - PUT    /api/v1/user/snippets/{id}: update
//   - DELETE /api/v1/user/snippets/{id}: delete
//   - GET    /api/v1/public/snippets?page&limit: public feed (no auth)
//
// # Authorization convention
//
// The Authorization header carries the raw access token with no scheme
// prefix. That is what the server middleware parses; a "Bearer " prefix
// would fail validation.
//
// # Error taxonomy
//
// All request methods return nil or an *APIError matching exactly one of
// the package sentinels (ErrUnauthenticated, ErrInvalidCredentials,
// ErrAlreadyExists, ErrRateLimited, ErrNotFound, ErrUnavailable,
// ErrMalformed). Use errors.Is to classify. Network failures map to
// ErrUnavailable; undecodable bodies map to ErrMalformed.
//
// The listing endpoints report an empty account as 404; the client folds
// that into an empty slice because "no snippets yet" is a valid state,
// distinct from any transport or auth failure.
//
// # Refresh cookie
//
// Login responses set an HTTP-only refresh cookie. The client's cookie jar
// retains it for the lifetime of the process so that Refresh can mint a
// new access token without re-prompting for credentials.
package codelet
