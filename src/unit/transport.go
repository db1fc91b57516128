package unit

import (
	"context"
	"errors"

	"github.com/stake-plus/catchfleet/src/store"
)

var (
	ErrStopped            = errors.New("unit stopped")
	ErrNotReady           = errors.New("session not ready")
	ErrChannelUnavailable = errors.New("command channel unavailable")
	ErrUnknownCommand     = errors.New("unknown command")
	ErrMissingMarketID    = errors.New("no market id given and none configured")
)

// LoginError reports that the chat session could not be established.
type LoginError struct {
	Err error
}

func (e *LoginError) Error() string { return "login failed: " + e.Err.Error() }

func (e *LoginError) Unwrap() error { return e.Err }

// Message is an inbound chat message as seen by the classifier.
type Message struct {
	ID        string
	ChannelID string
	GuildID   string
	AuthorID  string
	Content   string
	Embeds    []Embed
	Buttons   []Button
}

type Embed struct {
	Title       string
	Description string
	Fields      []EmbedField
}

type EmbedField struct {
	Name  string
	Value string
}

// Button is an interactive component attached to a message.
type Button struct {
	Label    string
	CustomID string
}

// Reaction is a reaction added to a message.
type Reaction struct {
	MessageID string
	ChannelID string
	UserID    string
	Emoji     string
}

// EventSink receives transport events. Implementations must not block.
type EventSink interface {
	HandleReady(selfID, tag string)
	HandleMessage(m Message)
	HandleReaction(r Reaction)
}

// Transport is one authenticated real-time chat session.
type Transport interface {
	// Open establishes the session and starts delivering events to sink.
	Open(ctx context.Context, sink EventSink) error
	Close() error
	Ready() bool
	HasChannel(channelID string) bool
	// Send posts content to a channel and returns the new message id.
	Send(ctx context.Context, channelID, content string) (string, error)
	Click(ctx context.Context, m Message, b Button) error
}

// TransportFactory builds a fresh transport for an account.
type TransportFactory func(acct store.Account) (Transport, error)

// Store is the slice of the account/log store a unit writes to.
type Store interface {
	GetAccount(ctx context.Context, id uint) (*store.Account, error)
	UpdateAccount(ctx context.Context, id uint, changes store.Changes) (*store.Account, error)
	AppendLog(ctx context.Context, accountID *uint, level store.Level, content string) error
}
