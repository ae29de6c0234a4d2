package rest

import (
	"time"

	"github.com/vovakirdan/storefront-realtime-go/realtime"
)

// Authentication types

// User is the storefront account returned with a token pair.
type User struct {
	ID         string `json:"id"`
	Email      string `json:"email"`
	FirstName  string `json:"first_name"`
	LastName   string `json:"last_name"`
	Phone      string `json:"phone"`
	IsActive   bool   `json:"is_active"`
	IsVerified bool   `json:"is_verified"`
}

// AuthResponse is returned by the token refresh endpoint.
type AuthResponse struct {
	User         User   `json:"user"`
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// Chat types

// Owner says which side of an order chat wrote a message.
type Owner string

const (
	OwnerUser  Owner = "user"
	OwnerAdmin Owner = "admin"
)

// Thread is the chat conversation attached to one order.
type Thread struct {
	ThreadID  string    `json:"thread_id"`
	OrderID   string    `json:"order_id"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Message is one chat line.
type Message struct {
	MessageID      string    `json:"message_id"`
	ThreadID       string    `json:"thread_id"`
	MessageContent string    `json:"message_content"`
	Owner          Owner     `json:"owner"`
	CreatedAt      time.Time `json:"created_at"`
	HasMedia       bool      `json:"has_media"`
}

// MessagesResponse is one page of thread history, oldest first.
type MessagesResponse struct {
	Messages []Message `json:"messages"`
	Total    int       `json:"total"`
	Skip     int       `json:"skip"`
	Take     int       `json:"take"`
}

// Attachment is an optional media file sent with a message.
type Attachment struct {
	Filename    string
	ContentType string
	Data        []byte
}

// CreateMessageRequest is the body of a new chat message.
// With Media set it is sent as multipart form data.
type CreateMessageRequest struct {
	ThreadID       string      `json:"thread_id"`
	MessageContent string      `json:"message_content"`
	Owner          Owner       `json:"owner"`
	Media          *Attachment `json:"-"`
}

// Admin broadcast types

// NotificationRequest is an admin broadcast. Target is "all" or "admin".
type NotificationRequest struct {
	Title   string            `json:"title"`
	Message string            `json:"message"`
	Type    realtime.Severity `json:"type"`
	Target  string            `json:"target"`
}

// NotificationResponse echoes the stored broadcast.
type NotificationResponse struct {
	Message      string                         `json:"message"`
	Notification realtime.BroadcastNotification `json:"notification"`
}

// ErrorResponse represents an API error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Detail  string `json:"detail"`
}
