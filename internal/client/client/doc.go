// Package client contains the client side of the identity API.
//
// # Overview
//
// The package provides:
//  1. A transport-agnostic contract (see the Client interface) covering
//     signup, login, refresh, email verification, availability checks, the
//     OAuth2 flow and profile calls.
//  2. A gRPC implementation (see GRPCClient) that attaches the access token
//     through an interceptor, refreshes the pair once when the server reports
//     it invalid, and maps gRPC status codes to sentinel errors.
//  3. Local persistence bootstrap (InitDatabase, RunMigrations) wiring an
//     SQLite file and applying embedded goose migrations.
//
// # Error Handling
//
// Callers match with errors.Is: ErrUnavailable, ErrUnauthorized,
// ErrRejected (the server refused the request, message attached) and
// ErrNotLoggedIn.
package client
