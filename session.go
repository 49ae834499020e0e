package webtransport

import "time"

// webTransportUniStreamType is the fixed stream-type tag that opens
// every WebTransport unidirectional stream's preamble, ahead of the
// session id. Value per the IETF draft's HTTP/3 unidirectional stream
// type registry.
const webTransportUniStreamType = 0x54

// Session is one WebTransport session multiplexed onto an HTTP/3
// connection's extended CONNECT. It is not safe for concurrent use: all
// methods must be invoked from the single I/O goroutine that owns the
// connect stream, per the cooperative scheduling model the rest of this
// package assumes.
type Session struct {
	id            StreamID
	role          Role
	connectStream ConnectStream
	streams       StreamSource
	visitor       Visitor
	metrics       *Metrics

	ready         bool
	closeSent     bool
	closeReceived bool
	closeNotified bool
	errorCode     uint32
	errorMessage  string

	associated       map[StreamID]struct{}
	incomingBidi     []StreamID
	incomingUniQueue []StreamID
	boundStreams     map[StreamID]*BoundStream

	contextIsKnown             bool
	contextID                  uint64
	contextCurrentlyRegistered bool

	attemptToUseDatagramContexts bool
}

// NewSession constructs a Session bound to connectStream, whose
// StreamID is the session id. streams resolves and opens data streams
// on the underlying QUIC connection; cfg.Visitor (or NoopVisitor) is
// installed immediately. If cfg opts into datagram contexts on the
// client side, NewSession writes the initial REGISTER_DATAGRAM_CONTEXT
// capsule before returning, and an error from that write is returned
// rather than leaving the session half set up.
func NewSession(connectStream ConnectStream, streams StreamSource, cfg Config, metrics *Metrics) (*Session, error) {
	if metrics == nil {
		metrics = NewMetrics(nil)
	}
	s := &Session{
		id:                           connectStream.StreamID(),
		role:                         cfg.Role,
		connectStream:                connectStream,
		streams:                      streams,
		visitor:                      cfg.visitor(),
		metrics:                      metrics,
		associated:                   make(map[StreamID]struct{}),
		boundStreams:                 make(map[StreamID]*BoundStream),
		attemptToUseDatagramContexts: cfg.AttemptToUseDatagramContexts,
	}
	if cfg.MaxDatagramTimeInQueue > 0 {
		connectStream.SetDatagramMaxTimeInQueue(cfg.MaxDatagramTimeInQueue)
	}
	if s.role == RoleClient {
		// Every client knows its context from construction, even if it
		// never opts into the registration handshake: the default
		// context id is 0, decided locally with no capsule required.
		s.contextID = 0
		s.contextIsKnown = true
		if s.attemptToUseDatagramContexts {
			s.contextCurrentlyRegistered = true
			capsule := Capsule{
				Type:  CapsuleTypeRegisterDatagramContext,
				Value: EncodeRegisterDatagramContext(s.contextID, FormatTypeWebTransport, nil),
			}
			if err := connectStream.WriteCapsule(capsule); err != nil {
				return nil, err
			}
			connectStream.RegisterDatagramContext(s.contextID)
		}
	}
	metrics.sessionsOpened.Inc()
	return s, nil
}

// ID is the session's identifier: the QUIC stream id of its connect
// stream.
func (s *Session) ID() StreamID { return s.id }

// Role reports whether this session is on the client or server side of
// the extended CONNECT.
func (s *Session) Role() Role { return s.role }

// IsReady reports whether HeadersReceived has accepted the session.
func (s *Session) IsReady() bool { return s.ready }

// AssociateStream records id as belonging to this session. If id was
// locally initiated (per the platform's direction predicate) there is
// nothing further to do: the application already holds the stream
// handle it created. Otherwise id is queued for AcceptIncoming{Bi,
// Uni}directionalStream and the visitor is notified.
func (s *Session) AssociateStream(id StreamID, direction StreamDirection) {
	s.associated[id] = struct{}{}
	if s.streams.IsOutgoingStreamID(id, s.role) {
		kind := "bidi"
		if direction == StreamUnidirectional {
			kind = "uni"
		}
		s.metrics.streamsAssociated.WithLabelValues(kind, "outgoing").Inc()
		return
	}
	switch direction {
	case StreamBidirectional:
		s.incomingBidi = append(s.incomingBidi, id)
		s.metrics.streamsAssociated.WithLabelValues("bidi", "incoming").Inc()
		s.visitor.OnIncomingBidirectionalStreamAvailable()
	case StreamUnidirectional:
		s.incomingUniQueue = append(s.incomingUniQueue, id)
		s.metrics.streamsAssociated.WithLabelValues("uni", "incoming").Inc()
		s.visitor.OnIncomingUnidirectionalStreamAvailable()
	}
}

// AcceptIncomingBidirectionalStream pops the next queued incoming
// bidirectional stream id and resolves it through the platform,
// skipping any id that was reset before the application polled for it.
// The returned stream is wrapped so that a subsequent OnStreamReset or
// OnStreamStopSending dispatched by the platform reaches the visitor
// with a translated WebTransport error code.
func (s *Session) AcceptIncomingBidirectionalStream() (*BoundStream, bool) {
	return s.acceptFrom(&s.incomingBidi)
}

// AcceptIncomingUnidirectionalStream is the unidirectional counterpart
// of AcceptIncomingBidirectionalStream.
func (s *Session) AcceptIncomingUnidirectionalStream() (*BoundStream, bool) {
	return s.acceptFrom(&s.incomingUniQueue)
}

func (s *Session) acceptFrom(queue *[]StreamID) (*BoundStream, bool) {
	for len(*queue) > 0 {
		id := (*queue)[0]
		*queue = (*queue)[1:]
		stream, ok := s.streams.ResolveStream(id)
		if !ok {
			continue
		}
		return s.wrap(stream), true
	}
	return nil, false
}

// wrap installs a BoundStream for stream, tracked by stream id so that
// OnStreamReset and OnStreamStopSending can later dispatch to it.
func (s *Session) wrap(stream DataStream) *BoundStream {
	bound := NewBoundStream(stream, s)
	s.boundStreams[stream.StreamID()] = bound
	return bound
}

// OnStreamReset delivers a RESET_STREAM received on a bound data stream
// to its wrapper, which translates the code and forwards it to the
// visitor. It is a no-op if id does not currently name an accepted or
// opened stream, matching the original implementation's per-stream
// OnStreamReset dispatch.
func (s *Session) OnStreamReset(id StreamID, code HTTP3ErrorCode) {
	if bound, ok := s.boundStreams[id]; ok {
		bound.OnStreamReset(code)
	}
}

// OnStreamStopSending is the STOP_SENDING counterpart of OnStreamReset.
func (s *Session) OnStreamStopSending(id StreamID, code HTTP3ErrorCode) {
	if bound, ok := s.boundStreams[id]; ok {
		bound.OnStopSending(code)
	}
}

// CanOpenNextOutgoingBidiStream reports whether flow control currently
// permits opening another outgoing bidirectional stream.
func (s *Session) CanOpenNextOutgoingBidiStream() bool {
	return s.streams.CanOpenNextOutgoingBidiStream()
}

// CanOpenNextOutgoingUniStream is the unidirectional counterpart of
// CanOpenNextOutgoingBidiStream.
func (s *Session) CanOpenNextOutgoingUniStream() bool {
	return s.streams.CanOpenNextOutgoingUniStream()
}

// OpenOutgoingBidiStream requests a new outgoing bidirectional stream
// and associates it with this session. It returns a nil stream and a nil
// error if flow control currently blocks opening one.
func (s *Session) OpenOutgoingBidiStream() (*BoundStream, error) {
	if s.closeNotified {
		return nil, ErrSessionClosed
	}
	if !s.CanOpenNextOutgoingBidiStream() {
		return nil, nil
	}
	stream, err := s.streams.OpenOutgoingBidiStream()
	if err != nil || stream == nil {
		return nil, err
	}
	s.AssociateStream(stream.StreamID(), StreamBidirectional)
	return s.wrap(stream), nil
}

// OpenOutgoingUniStream is the unidirectional counterpart of
// OpenOutgoingBidiStream.
func (s *Session) OpenOutgoingUniStream() (*BoundStream, error) {
	if s.closeNotified {
		return nil, ErrSessionClosed
	}
	if !s.CanOpenNextOutgoingUniStream() {
		return nil, nil
	}
	stream, err := s.streams.OpenOutgoingUniStream()
	if err != nil || stream == nil {
		return nil, err
	}
	s.AssociateStream(stream.StreamID(), StreamUnidirectional)
	return s.wrap(stream), nil
}

// SendOrQueueDatagram hands payload to the connect stream's HTTP/3
// datagram path, tagged with this session's adopted context id if one
// was registered.
func (s *Session) SendOrQueueDatagram(payload []byte) error {
	if s.closeNotified {
		return ErrSessionClosed
	}
	err := s.connectStream.SendDatagram(s.datagramContextPtr(), payload)
	if err == nil {
		s.metrics.datagramsSent.Inc()
	}
	return err
}

// GetMaxDatagramSize reports the largest payload SendOrQueueDatagram
// can currently carry without fragmentation.
func (s *Session) GetMaxDatagramSize() int {
	return s.connectStream.MaxDatagramSize(s.datagramContextPtr())
}

// SetDatagramMaxTimeInQueue bounds how long an outgoing datagram may sit
// queued before the platform drops it as stale.
func (s *Session) SetDatagramMaxTimeInQueue(d time.Duration) {
	s.connectStream.SetDatagramMaxTimeInQueue(d)
}

// FlushScope opens a packet-flush scope on the session's connect
// stream, letting a unidirectional stream's preamble write coalesce
// into the same QUIC packet as application data that follows it. It
// makes *Session satisfy FlushScopeOpener.
func (s *Session) FlushScope() FlushScope {
	return s.connectStream.FlushScope()
}

// datagramContextPtr reports the context id to tag outgoing datagrams
// with, or nil for the contextless form. It keys off
// contextCurrentlyRegistered rather than contextIsKnown: a client
// always knows its context id from construction (see NewSession), but
// must still only tag datagrams once contexts are actually in use with
// the peer, on pain of sending a contexted datagram the peer never
// agreed to receive.
func (s *Session) datagramContextPtr() *uint64 {
	if !s.contextCurrentlyRegistered {
		return nil
	}
	id := s.contextID
	return &id
}
