// Package logging configures slog for mailsearch.
//
// The CLI logs to stderr at warn level by default. With --debug, or whenever
// the MCP server runs, JSON logs go to a size-rotated file under
// ~/.mailsearch/logs/ so that stdout stays free for the protocol stream.
package logging
