// Package tui renders a live view of one suite run with Bubble Tea.
//
// The model follows the run's tracker snapshots and the logging channel.
// Keys: c cancels the run, y copies a summary to the clipboard, l toggles the
// log pane and q quits. Quitting a running suite cancels it first and waits
// for the restore to finish.
package tui
