// ABOUTME: Typed chat, milestone and calendar-link endpoints of the backend API
// ABOUTME: Request/response shapes mirror the server's JSON field names

package api

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
)

// SendMessageRequest is the body of POST /chat/send-message.
type SendMessageRequest struct {
	AssignmentID string `json:"assignment_id"`
	Message      string `json:"message"`
	SessionID    string `json:"session_id"`
}

// Diagram is a diagram produced by the stakeholder during a conversation.
type Diagram struct {
	ID          string `json:"id,omitempty"`
	Code        string `json:"code"`
	Description string `json:"description,omitempty"`
	CreatedAt   string `json:"created_at,omitempty"`
}

// SendMessageResponse is the data of a successful send.
type SendMessageResponse struct {
	AIResponse           string         `json:"ai_response"`
	ConversationID       string         `json:"conversation_id"`
	Metadata             map[string]any `json:"metadata,omitempty"`
	Diagrams             []Diagram      `json:"diagrams,omitempty"`
	GoogleCalendarLinked bool           `json:"google_calendar_linked,omitempty"`
	NeedsGoogleAuth      bool           `json:"needs_google_auth,omitempty"`
}

// HistoryMessage is one stored message as returned by GET /chat/messages.
type HistoryMessage struct {
	MessageID string `json:"message_id"`
	Role      string `json:"role"`
	Content   string `json:"content"`
	Timestamp string `json:"timestamp"`
}

// MessagesResponse is the data of GET /chat/messages.
type MessagesResponse struct {
	ConversationID string           `json:"conversation_id"`
	Messages       []HistoryMessage `json:"messages"`
	HasMore        bool             `json:"has_more"`
}

// GetMessagesParams selects a page of history. Zero Limit and empty Before
// request the full history.
type GetMessagesParams struct {
	AssignmentID string
	SessionID    string
	Limit        int
	Before       string
}

// Milestone is a scheduled deliverable for an assignment.
type Milestone struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	DueDate     string `json:"due_date,omitempty"`
	Status      string `json:"status,omitempty"`
}

// SyncResult is the data of POST /chat/sync-milestones/{id}.
type SyncResult struct {
	SyncedCount int `json:"synced_count,omitempty"`
}

// StatusResponse is the data of GET /chat/status/{id}.
type StatusResponse struct {
	GoogleCalendarLinked bool   `json:"google_calendar_linked"`
	CurrentAgent         string `json:"current_agent,omitempty"`
}

// LinkResponse is the data of POST /users/google-auth.
type LinkResponse struct {
	Linked bool   `json:"linked,omitempty"`
	Email  string `json:"email,omitempty"`
}

// SendMessage posts a user message and returns the stakeholder's reply.
func (c *Client) SendMessage(ctx context.Context, req SendMessageRequest) (*SendMessageResponse, error) {
	var resp SendMessageResponse
	if err := c.Post(ctx, "/chat/send-message", req, true, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// GetMessages fetches conversation history for an assignment and session.
func (c *Client) GetMessages(ctx context.Context, params GetMessagesParams) (*MessagesResponse, error) {
	q := url.Values{}
	q.Set("assignment_id", params.AssignmentID)
	q.Set("session_id", params.SessionID)
	if params.Limit > 0 {
		q.Set("limit", strconv.Itoa(params.Limit))
	}
	if params.Before != "" {
		q.Set("before", params.Before)
	}

	var resp MessagesResponse
	if err := c.Get(ctx, "/chat/messages?"+q.Encode(), true, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// GetDiagrams lists diagrams stored for an assignment.
func (c *Client) GetDiagrams(ctx context.Context, assignmentID string) ([]Diagram, error) {
	var resp struct {
		Diagrams []Diagram `json:"diagrams"`
	}
	if err := c.Get(ctx, fmt.Sprintf("/chat/diagrams/%s", url.PathEscape(assignmentID)), true, &resp); err != nil {
		return nil, err
	}
	return resp.Diagrams, nil
}

// GetMilestones lists milestones for an assignment.
func (c *Client) GetMilestones(ctx context.Context, assignmentID string) ([]Milestone, error) {
	var resp struct {
		Milestones []Milestone `json:"milestones"`
	}
	if err := c.Get(ctx, fmt.Sprintf("/chat/milestones/%s", url.PathEscape(assignmentID)), true, &resp); err != nil {
		return nil, err
	}
	return resp.Milestones, nil
}

// SyncMilestones pushes an assignment's milestones to the linked calendar.
func (c *Client) SyncMilestones(ctx context.Context, assignmentID string) (*SyncResult, error) {
	var resp SyncResult
	if err := c.Post(ctx, fmt.Sprintf("/chat/sync-milestones/%s", url.PathEscape(assignmentID)), nil, true, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// LinkGoogleAuth stores an authorization code against the authenticated user.
func (c *Client) LinkGoogleAuth(ctx context.Context, code string) (*LinkResponse, error) {
	body := map[string]string{"code": code}
	var resp LinkResponse
	if err := c.Post(ctx, "/users/google-auth", body, true, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// GetStatus reports calendar link state and the active agent for a session.
func (c *Client) GetStatus(ctx context.Context, assignmentID, sessionID string) (*StatusResponse, error) {
	endpoint := fmt.Sprintf("/chat/status/%s?session_id=%s", url.PathEscape(assignmentID), url.QueryEscape(sessionID))

	var resp StatusResponse
	if err := c.Get(ctx, endpoint, true, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
