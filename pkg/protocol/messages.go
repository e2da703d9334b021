package protocol

// Envelope wraps all control plane messages. Exactly one field is set.
type Envelope struct {
	// Requests (client -> server)
	JoinRequest       *JoinRequest       `json:"join_request,omitempty"`
	SendRequest       *SendRequest       `json:"send_request,omitempty"`
	UserListRequest   *UserListRequest   `json:"user_list_request,omitempty"`
	UserCountRequest  *UserCountRequest  `json:"user_count_request,omitempty"`
	MessageLogRequest *MessageLogRequest `json:"message_log_request,omitempty"`
	Ping              *Ping              `json:"ping,omitempty"`

	// Responses (server -> client, one per request)
	JoinResponse       *JoinResponse       `json:"join_response,omitempty"`
	SendResponse       *SendResponse       `json:"send_response,omitempty"`
	UserListResponse   *UserListResponse   `json:"user_list_response,omitempty"`
	UserCountResponse  *UserCountResponse  `json:"user_count_response,omitempty"`
	MessageLogResponse *MessageLogResponse `json:"message_log_response,omitempty"`
	Pong               *Pong               `json:"pong,omitempty"`
	ErrorResponse      *ErrorResponse      `json:"error_response,omitempty"`

	// Events (server -> client, unsolicited). Events carry no state on
	// purpose: they are cache-invalidation signals, and a receiving client
	// re-queries the authoritative snapshot instead of trusting any
	// event-carried data.
	UserListUpdated  *UserListUpdatedEvent  `json:"user_list_updated,omitempty"`
	UserCountChanged *UserCountChangedEvent `json:"user_count_changed,omitempty"`
	NewMessage       *NewMessageEvent       `json:"new_message,omitempty"`
}

// IsEvent reports whether the envelope is an unsolicited push event.
func (e *Envelope) IsEvent() bool {
	return e.UserListUpdated != nil || e.UserCountChanged != nil || e.NewMessage != nil
}

// ----- Join handshake -----

type JoinRequest struct {
	Username string `json:"username"`
}

type JoinResponse struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
}

// ----- Messaging -----

type SendRequest struct {
	Content string `json:"content"`
}

type SendResponse struct {
	Message MessageInfo `json:"message"`
}

// MessageInfo is the wire form of a stored message.
type MessageInfo struct {
	Username string `json:"username"`
	Content  string `json:"content"`
	Sequence uint64 `json:"sequence"`
	SentAt   int64  `json:"sent_at"` // unix seconds
}

// ----- Queries -----

type UserListRequest struct{}

type UserListResponse struct {
	Usernames []string `json:"usernames"` // join order
}

type UserCountRequest struct{}

type UserCountResponse struct {
	Count int `json:"count"`
}

type MessageLogRequest struct{}

type MessageLogResponse struct {
	Messages []MessageInfo `json:"messages"` // ascending sequence
}

// ----- Events -----

type UserListUpdatedEvent struct{}

type UserCountChangedEvent struct{}

type NewMessageEvent struct{}

// ----- Generic -----

type ErrorResponse struct {
	Code    int32  `json:"code"`
	Message string `json:"message"`
}

type Ping struct {
	Timestamp int64 `json:"timestamp"`
}

type Pong struct {
	Timestamp int64 `json:"timestamp"`
}
