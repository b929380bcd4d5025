// Package ui implements the clet terminal interface with Bubble Tea.
//
// The root Model owns one screen at a time: the login and signup forms,
// the two-pane browse view (snippet list plus detail), the snippet
// editor, the delete confirmation, the change-password form, and the
// public feed. All network work runs in tea.Cmd closures against the
// session and snippet layers; Update folds their result messages back
// into the model.
//
// Protected operations that come back unauthenticated get one silent
// refresh attempt before the user is dropped back on the login screen.
// Inline errors dismiss themselves after a few seconds.
package ui
