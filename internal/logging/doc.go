// Package logging provides structured JSON logging with file rotation for
// ragindexd. Records are written to ~/.ragindex/logs/server.log and mirrored
// to stderr. The default level is info; the --debug flag lowers it to debug.
package logging
