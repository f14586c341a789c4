// Package api is the HTTP transport for the stakeholder chat backend.
//
// # Envelope
//
// Every endpoint answers with the same wrapper:
//
//	{"success": true, "message": "...", "translation": "...", "data": {...}}
//
// A request fails when the HTTP status is not 2xx or when success is anything
// other than true, regardless of status. Failures are returned as *Error whose
// Message prefers translation, then message, then a generic fallback.
//
// # Network failures
//
// When no response is received (connection refused, context canceled) the
// returned *Error has StatusCode 0 and the transport error in Cause:
//
//	if api.IsNetworkError(err) { ... }
//	if api.IsCanceled(err) { ... }
//
// # Retries
//
// The client never retries. Callers decide what to do with a failure.
//
// # Usage
//
//	client := api.New("https://api.example.edu",
//	    api.WithTokenSource(tokens),
//	    api.WithRateLimit(5, 2),
//	)
//	resp, err := client.SendMessage(ctx, api.SendMessageRequest{...})
package api
