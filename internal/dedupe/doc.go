// Package dedupe provides a TTL-bounded set used to accept a one-shot value
// (such as an authorization code delivered by a browser redirect) only once.
package dedupe
