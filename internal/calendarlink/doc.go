// Package calendarlink links the student's external calendar from inside a
// conversation.
//
// # Flow
//
//	idle -> awaiting_completion -> exchanging -> done
//	          |                       |
//	          +--> idle (error) <-----+
//
// Initiate builds the consent URL (offline access, forced consent prompt),
// subscribes to the relay bus for the configured origin, and opens the page
// through a WindowOpener. The callback page posts either auth-success with a
// code or auth-error. A success is exchanged with the backend and followed by
// a milestone sync for the current assignment.
//
// Every exit path (success, error, Close) unsubscribes from the bus, closes
// the window if still open and clears the pending flag.
//
// # Known limitation
//
// If the user closes the consent page without finishing, no message arrives
// and the handshake stays awaiting_completion until Close. There is no
// timeout.
//
// # Link state
//
// The tri-state unlinked/linking/linked is persisted under
// calendar_link_<identity> so it survives restarts.
package calendarlink
