// Package credctl implements the credctl administration tool: a cobra
// command tree that talks to the credential server over gRPC, plus a few
// offline helpers (token minting and blob hashing).
package credctl
