// Package integration exercises the search layer end to end: a Maildir is
// parsed, indexed, embedded, followed by the watcher and searched.
package integration
