// Package channels defines the shared contract of the chat platform
// connectors that carry menus to recipients and staff.
package channels

import (
	"context"
	"errors"
	"time"
)

// Errors returned by channel implementations.
var (
	ErrChannelDisconnected = errors.New("channel is not connected")
	ErrNotFound            = errors.New("not found on the platform")
)

// Channel is a chat platform connection.
type Channel interface {
	// Name returns the channel identifier (e.g. "discord").
	Name() string

	// Connect establishes the connection to the messaging platform.
	Connect(ctx context.Context) error

	// Disconnect gracefully closes the connection.
	Disconnect() error

	// IsConnected returns true if the channel is connected.
	IsConnected() bool

	// Health returns the channel health status.
	Health() HealthStatus
}

// HealthStatus describes a channel connection.
type HealthStatus struct {
	Connected   bool      `json:"connected"`
	LastEventAt time.Time `json:"last_event_at,omitempty"`
	ErrorCount  int       `json:"error_count"`
}
