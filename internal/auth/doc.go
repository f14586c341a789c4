// Package auth supplies the bearer credential for backend requests and
// decodes the authenticated identity it carries.
//
// # Token lookup
//
// Tokens resolves the JWT in priority order:
//
//  1. The configured environment variable (default STAKEHOLDER_CHAT_TOKEN)
//  2. auth.token from the config file
//  3. auth.token_file (re-read on every request)
//
// Tokens satisfies api.TokenSource.
//
// # Identity
//
// ParseIdentity reads the sub, email and exp claims without verifying the
// signature. The subject scopes per-user client state such as the calendar
// link; it is never used to make an authorization decision.
package auth
