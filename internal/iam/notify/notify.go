// Copyright (c) 2026 Arcanum. All rights reserved.
// Author: dev@arcanum.gg

/*
Package notify defines the outbound message-delivery boundary.

SMS and email delivery are external collaborators: the core hands them a
destination and a payload and moves on. Delivery failure never rolls back
the state that produced the message (a generated OTP stays valid), but it is
surfaced to the caller so transports can report it.
*/
package notify

import (
	"context"
	"log/slog"
)

// Channel selects the delivery medium.
type Channel string

const (
	ChannelSMS   Channel = "sms"
	ChannelEmail Channel = "email"
)

// Sender is the fire-and-forget delivery collaborator.
type Sender interface {
	// Send delivers the payload to the destination over the channel.
	Send(ctx context.Context, channel Channel, destination, payload string) error
}

// # Test & Development Implementations

// Discard is a Sender that drops all messages. Used in tests.
type Discard struct{}

// Send implements [Sender] by doing nothing.
func (Discard) Send(context.Context, Channel, string, string) error { return nil }

// Log is a Sender that writes messages to the structured logger instead of
// delivering them. It is the development default until a real SMS/email
// gateway is configured.
type Log struct {
	Logger *slog.Logger
}

// Send implements [Sender] by logging the message.
func (sender *Log) Send(ctx context.Context, channel Channel, destination, payload string) error {
	sender.Logger.InfoContext(ctx, "notify_message",
		slog.String("channel", string(channel)),
		slog.String("destination", destination),
		slog.String("payload", payload),
	)
	return nil
}
