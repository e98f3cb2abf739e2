package menu

import (
	"context"

	"github.com/jholhewres/threadrouter/pkg/threadrouter/settings"
)

// Transport renders menus and moves threads. Implementations may block on
// network I/O; every call receives a context.
type Transport interface {
	// SendDisplay sends a new menu message to the recipient.
	SendDisplay(ctx context.Context, recipientID string, d Display) (MessageRef, error)

	// UpdateDisplay replaces the content of a menu message.
	UpdateDisplay(ctx context.Context, ref MessageRef, d Display) error

	// DeleteDisplay removes a menu message.
	DeleteDisplay(ctx context.Context, ref MessageRef) error

	// AttachInputSymbol adds a selectable symbol to a menu message.
	AttachInputSymbol(ctx context.Context, ref MessageRef, symbol string) error

	// ClearInputSymbols removes the symbols the bot attached.
	ClearInputSymbols(ctx context.Context, ref MessageRef) error

	// MoveThread moves the thread channel under destinationID.
	MoveThread(ctx context.Context, channelID, destinationID string) error

	// SendNotification posts content to the thread channel, pinging mentionText.
	SendNotification(ctx context.Context, channelID, mentionText, content string) error
}

// Directory answers questions about destinations and mention targets.
type Directory interface {
	// LookupDestination reports whether the destination still exists.
	LookupDestination(ctx context.Context, destinationID string) (bool, error)

	// ResolveMention renders a mention target. An empty string means the
	// target no longer exists.
	ResolveMention(ctx context.Context, target settings.MentionTarget) (string, error)
}
