// Package push delivers notifications to user devices.
package push

import (
	"context"
)

// Kind is the outcome of a delivery attempt to one token.
type Kind int

const (
	KindDelivered Kind = iota
	// KindTransient failures (quota, unavailable, network) may succeed later.
	KindTransient
	// KindPermanent failures mean the token is dead.
	KindPermanent
)

func (k Kind) String() string {
	switch k {
	case KindDelivered:
		return "delivered"
	case KindTransient:
		return "transient"
	case KindPermanent:
		return "permanent"
	}
	return "unknown"
}

// Message is a platform neutral push payload.
type Message struct {
	Title string
	Body  string
	Data  map[string]string
	// Badge sets the iOS app icon badge when non-nil.
	Badge *int
}

// Result reports the delivery outcome for one token.
type Result struct {
	Token string
	Kind  Kind
	Err   error
}

// Sender delivers a message to a set of device tokens.
type Sender interface {
	Send(ctx context.Context, tokens []string, msg Message) ([]Result, error)
}
