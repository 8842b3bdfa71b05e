// Package channel provides an in-memory Go channel transport.
// Every subscription receives its own copy of each message, which makes it a
// faithful fanout stand-in for tests and local development.
package channel

import (
	"context"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"

	"github.com/electsolve/outagewire/transport"
)

// TransportName is the name used to register this transport.
const TransportName = "channel"

// OutputBuffer is the per-subscription buffer size.
const OutputBuffer = 64

// Factory allows overriding the channel creation for testing.
var Factory = func(cfg gochannel.Config, logger watermill.LoggerAdapter) (message.Publisher, message.Subscriber) {
	pubSub := gochannel.NewGoChannel(cfg, logger)
	return pubSub, pubSub
}

func init() {
	Register()
}

// Register registers the channel transport with the default registry.
func Register() {
	transport.RegisterWithCapabilities(TransportName, Build, transport.ChannelCapabilities)
}

// Build creates a new Go channel transport. Messages are not persisted, so a
// subscription only sees what is published after it subscribed.
func Build(ctx context.Context, cfg transport.Config, logger watermill.LoggerAdapter) (*transport.Transport, error) {
	pub, sub := Factory(gochannel.Config{
		OutputChannelBuffer: OutputBuffer,
		Persistent:          false,
	}, logger)

	return &transport.Transport{
		Publisher: pub,
		// The queue name has no meaning in memory; each Subscribe call on the
		// shared pub/sub already yields an independent output channel.
		NewSubscriber: func(string) (message.Subscriber, error) {
			return transport.SharedSubscriber{Subscriber: sub}, nil
		},
	}, nil
}

// Capabilities returns the capabilities of this transport.
func Capabilities() transport.Capabilities {
	return transport.ChannelCapabilities
}
