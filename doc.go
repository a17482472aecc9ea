// Package peribus implements a Plan 9-style synthetic file server: a
// 9P2000 connection dispatcher that exposes a tree of in-process
// synthetic files (package fs) to clients over TCP or Unix sockets.
//
// The server itself owns no domain knowledge -- agents, shells, and
// scene state are wired in by a caller building a tree of fs.File values
// (see cmd/peribusd for a complete example). The 9P2000 semantics --
// per-connection fid tables, concurrent per-request dispatch so a
// blocked read on one file never blocks a write to another, and Tflush
// cancellation -- live in package conn; this root package holds the
// module-level sentinel errors that conn reports to clients.
package peribus
