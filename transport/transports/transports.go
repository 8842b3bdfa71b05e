// Package transports imports all built-in transports for auto-registration.
// Import this package to have all transports registered with the default registry.
package transports

import (
	// Import all transports for side-effect registration
	_ "github.com/electsolve/outagewire/transport/aws"
	_ "github.com/electsolve/outagewire/transport/channel"
	_ "github.com/electsolve/outagewire/transport/kafka"
	_ "github.com/electsolve/outagewire/transport/nats"
	_ "github.com/electsolve/outagewire/transport/rabbitmq"
)
