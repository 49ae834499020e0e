package webtransport

import "github.com/slusnys/webtransport/internal/utils"

var datagramLog = utils.DefaultLogger.WithPrefix("datagram")

// OnHttp3Datagram delivers an HTTP/3 datagram addressed to contextID (nil
// for the contextless form) to the visitor. The incoming context id is
// expected to equal the adopted one, but this is not enforced: a mismatch
// is only logged at debug level and the payload is still delivered,
// preserving the assertion-only behavior of the implementation this
// package is modeled on (see DESIGN.md's Open Questions entry on this
// point).
func (s *Session) OnHttp3Datagram(contextID *uint64, payload []byte) {
	if s.contextIsKnown && contextID != nil && *contextID != s.contextID {
		datagramLog.Debugf("delivering datagram for unexpected context %d, adopted context is %d", *contextID, s.contextID)
	}
	s.metrics.datagramsReceived.Inc()
	s.visitor.OnDatagramReceived(payload)
}

// OnContextReceived implements the server-side REGISTER_DATAGRAM_CONTEXT
// / REGISTER_DATAGRAM_NO_CONTEXT validation of the datagram context
// handshake, in the order laid out by the protocol this package
// implements:
//
//  1. streamID must be the connect stream's own id.
//  2. format must be FormatTypeWebTransport.
//  3. additionalData must be empty.
//  4. the first accepted registration adopts contextID.
//  5. a later registration for a different context id is dropped.
//  6. a second registration for the adopted context id is a protocol
//     violation.
//
// contextID is nil for REGISTER_DATAGRAM_NO_CONTEXT.
func (s *Session) OnContextReceived(streamID StreamID, contextID *uint64, format FormatType, additionalData []byte) error {
	if streamID != s.id {
		datagramLog.Debugf("dropping datagram context registration on stream %d, not the connect stream %d", streamID, s.id)
		return nil
	}
	if format != FormatTypeWebTransport {
		datagramLog.Debugf("dropping datagram context registration with unexpected format %#x", uint64(format))
		return nil
	}
	if len(additionalData) != 0 {
		s.connectStream.ResetStream(CodeBadApplicationPayload)
		return ErrBadContextPayload
	}

	id := uint64(0)
	if contextID != nil {
		id = *contextID
	}

	if !s.contextIsKnown {
		s.contextID = id
		s.contextIsKnown = true
	} else if id != s.contextID {
		datagramLog.Debugf("dropping datagram context registration for %d, adopted context is %d", id, s.contextID)
		return nil
	}

	if s.role != RoleServer {
		return nil
	}
	if s.contextCurrentlyRegistered {
		s.connectStream.ResetStream(CodeStreamCancelled)
		return ErrDuplicateContextRegistration
	}
	s.connectStream.RegisterDatagramContext(id)
	s.contextCurrentlyRegistered = true
	return nil
}

// OnContextClosed handles a CLOSE_DATAGRAM_CONTEXT capsule for the
// adopted context on the connect stream. A context close is always
// treated as a terminal peer protocol violation: WebTransport never
// closes a context mid-session.
func (s *Session) OnContextClosed(streamID StreamID, contextID uint64) error {
	if streamID != s.id || !s.contextIsKnown || contextID != s.contextID {
		return nil
	}
	s.connectStream.ResetStream(CodeBadApplicationPayload)
	return ErrBadContextPayload
}
