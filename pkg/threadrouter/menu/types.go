// Package menu implements the category routing menu: one interactive menu
// per freshly opened thread, torn down exactly once when the recipient picks
// a category, the menu times out, the thread is closed or staff replies.
//
// The Router receives lifecycle and input events, the Registry holds the
// single active Menu per thread, and each Menu delegates presentation to a
// Strategy (Reactive symbols or a Selection list).
package menu

import (
	"errors"
	"fmt"
	"time"

	"github.com/jholhewres/threadrouter/pkg/threadrouter/settings"
)

// Errors.
var (
	ErrMenuExists   = errors.New("a menu is already registered for this thread")
	ErrNoCategories = errors.New("menu needs at least one category")
	ErrNoRecipient  = errors.New("thread has no recipient")
)

// Thread describes the conversation a menu is attached to.
type Thread struct {
	// ID is the thread key. In the Discord modmail model it equals the
	// recipient's user id.
	ID string `json:"id"`

	// ChannelID is the staff-side channel moved under the chosen category.
	ChannelID string `json:"channel_id"`

	// RecipientIDs are the users on the other end of the thread.
	RecipientIDs []string `json:"recipient_ids"`

	// ContactInitiated is true when staff opened the thread themselves.
	ContactInitiated bool `json:"contact_initiated"`

	// GenesisMessageID is the thread's own opening log message in ChannelID.
	GenesisMessageID string `json:"genesis_message_id,omitempty"`
}

// Recipient returns the first recipient id, or "".
func (t Thread) Recipient() string {
	if len(t.RecipientIDs) == 0 {
		return ""
	}
	return t.RecipientIDs[0]
}

// MessageRef identifies a message on the transport.
type MessageRef struct {
	ChannelID string `json:"channel_id"`
	MessageID string `json:"message_id"`
}

// IsZero reports whether the reference is empty.
func (r MessageRef) IsZero() bool { return r.MessageID == "" }

// ThreadReady is emitted when a new thread finished opening.
type ThreadReady struct {
	Thread     Thread
	Initiating MessageRef
}

// Input is a raw selection signal from the recipient.
type Input struct {
	// UserID is who produced the input.
	UserID string

	// MessageID is the message the input was made on (reaction target).
	MessageID string

	// ComponentID is the interactive component id (selection menus).
	ComponentID string

	// Value is the reaction symbol or the selected option value.
	Value string
}

// Option maps one input key to a category.
type Option struct {
	Key         string `json:"key"`
	CategoryID  string `json:"category_id"`
	Label       string `json:"label"`
	Description string `json:"description,omitempty"`
}

// Display is the transport-agnostic content of a menu message.
type Display struct {
	// Description is the body text.
	Description string

	// Options are rendered as list entries when ComponentID is set.
	Options []Option

	// ComponentID is the selection component id; empty for reactive menus.
	ComponentID string

	// Placeholder is shown by an empty selection component.
	Placeholder string

	// Terminal marks the final "moved" state; interactive parts are removed.
	Terminal bool
}

// State is the lifecycle state of a menu.
type State int32

const (
	StateBuilding State = iota
	StateActive
	StateDisbanding
	StateDisbanded
)

func (s State) String() string {
	switch s {
	case StateBuilding:
		return "building"
	case StateActive:
		return "active"
	case StateDisbanding:
		return "disbanding"
	case StateDisbanded:
		return "disbanded"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Reason records why a menu was disbanded.
type Reason string

const (
	ReasonSelected  Reason = "selected"
	ReasonTimeout   Reason = "timeout"
	ReasonClosed    Reason = "closed"
	ReasonReplied   Reason = "replied"
	ReasonSwept     Reason = "swept"
	ReasonDiscarded Reason = "discarded"
)

// Info is a read-only view of a menu for status endpoints.
type Info struct {
	ThreadID   string     `json:"thread_id"`
	ChannelID  string     `json:"channel_id"`
	Variant    string     `json:"variant"`
	State      string     `json:"state"`
	Display    MessageRef `json:"display"`
	Initiating MessageRef `json:"initiating"`
	Options    []Option   `json:"options"`
	CreatedAt  time.Time  `json:"created_at"`
}

// ConfigSource provides the live menu configuration.
type ConfigSource interface {
	Snapshot() settings.Configuration
}
