// Package conversation implements the conversation session engine: the
// client-side owner of one student/stakeholder chat.
//
// # Engine
//
// An Engine is created when a conversation is entered and closed when it is
// left. It holds the full message list, a display window over its newest
// messages, the input buffer, and two independent flags (sending and
// loading history).
//
//	eng := conversation.NewEngine(conversation.Config{
//	    AssignmentID: "a1",
//	    SessionID:    sessionID,
//	    Transport:    apiClient,
//	    Gate:         gate,
//	})
//	defer eng.Close()
//
//	eng.LoadHistory(ctx)
//	if err := eng.Send(ctx, "When is the first deliverable due?"); err != nil {
//	    // the optimistic message has already been rolled back
//	}
//
// # Display window
//
// After history loads the last InitialWindow messages are visible. LoadMore
// reveals PageSize older ones. A successful send grows the window by exactly
// ExchangeSize so the new user/assistant pair is always fully visible. The
// window never exceeds the number of messages.
//
// # Sending
//
// Send appends the user message and clears the input before any network
// call. A newer Send cancels the older one; the older call's late result is
// discarded and its optimistic message stays. When the current send fails the
// optimistic message is removed by ID and the error is returned. Submit is
// the button-press variant that does nothing while a send is in flight.
//
// # Events
//
// Subscribe yields side-channel events: diagrams, calendar_link_requested,
// calendar_linked and send_failed.
package conversation
