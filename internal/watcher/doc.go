// Package watcher keeps the search index in step with a mail directory.
//
// A HybridWatcher reports message file changes under the root. It uses
// fsnotify and falls back to polling where fsnotify cannot be created.
// Rapid changes to one file are coalesced by a Debouncer. A Syncer applies
// each batch to the indexing coordinator: new and changed files are parsed
// and indexed, removed files are dropped from the index.
//
// Maildir delivery writes into tmp/ and then renames into new/, and a flag
// change renames a file inside cur/. Files under tmp/ are never reported,
// and a rename shows up as a delete of the old name plus a create of the
// new one.
package watcher
