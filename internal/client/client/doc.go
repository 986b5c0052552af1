// Package client is the gRPC client of the credkeeper auth service.
//
// GRPCClient keeps the current token pair in memory, attaches the access
// token to every call and, when the server reports that the access token
// has expired, refreshes the pair once and retries the call. Status codes
// are mapped to the sentinel errors in errors.go.
package client
