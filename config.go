package webtransport

import "time"

// Config carries the construction-time options for a Session. The zero
// value is a valid client-role config with datagram contexts disabled.
type Config struct {
	// Role is which side of the extended CONNECT this session is on.
	Role Role

	// AttemptToUseDatagramContexts opts into the datagram context
	// registration handshake. Only meaningful for RoleClient: a server
	// always learns whether contexts are in use from the first
	// registration it receives.
	AttemptToUseDatagramContexts bool

	// MaxDatagramTimeInQueue bounds how long an outgoing datagram may sit
	// queued before the platform drops it as stale. Zero means no expiry,
	// matching the platform's own default.
	MaxDatagramTimeInQueue time.Duration

	// Visitor receives session lifecycle and stream/datagram
	// notifications. A NoopVisitor is installed if nil.
	Visitor Visitor
}

func (c Config) visitor() Visitor {
	if c.Visitor == nil {
		return NoopVisitor{}
	}
	return c.Visitor
}
