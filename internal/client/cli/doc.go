// Package cli provides the interactive gophauth command-line client.
//
// It wires configuration, the local session store and the identity API into
// a REPL. A session saved by a previous run is resumed on start, and a
// background watcher pings the server to show online/offline status.
//
// Commands cover local signup and login, email verification by code or
// link, availability checks, social login with its completion step, and
// profile updates.
//
// The REPL is started via App.Run(ctx), which blocks until the user exits.
package cli
