// Package app wires clet together: configuration, preferences, the
// Codelet API client, the session manager, the snippet store, and the
// terminal UI.
package app
