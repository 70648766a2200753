package model

// User is the authenticated identity of the person running the client.
type User struct {
	ID    string `json:"_id"`
	Email string `json:"email"`
}

// OutboundNotification is the body accepted by the notification
// delivery endpoint.
type OutboundNotification struct {
	UserID  string         `json:"userId" validate:"required"`
	Type    string         `json:"type" validate:"required"`
	Title   string         `json:"title" validate:"required"`
	Message string         `json:"message"`
	Data    ContactPayload `json:"data"`
}
