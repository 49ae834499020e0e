package webtransport

import "time"

// StreamID identifies a QUIC stream. A session's own id is the StreamID of
// its connect stream.
type StreamID = uint64

// Role distinguishes which side of the extended CONNECT a session is on.
type Role int

const (
	// RoleClient is the endpoint that issued the extended CONNECT request.
	RoleClient Role = iota
	// RoleServer is the endpoint that accepted it.
	RoleServer
)

func (r Role) String() string {
	if r == RoleServer {
		return "server"
	}
	return "client"
}

// StreamDirection distinguishes bidirectional from unidirectional streams,
// independent of who may write to a unidirectional stream.
type StreamDirection int

const (
	StreamBidirectional StreamDirection = iota
	StreamUnidirectional
)

// FlushScope coalesces the writes issued while it is open into the
// fewest QUIC packets the platform can manage, and commits them when
// closed. The in-memory test platform implements it as a no-op: it is
// enough to exercise call ordering, but not packet coalescing, which is
// an intentional test-only simplification.
type FlushScope interface {
	Close() error
}

// ConnectStream is the non-owning handle to the HTTP/3 bidirectional stream
// that carried the extended CONNECT establishing a session. The core never
// takes ownership of it: the connect stream outlives the Session by
// construction, and the Session is torn down in response to the stream's
// own closing notification, not the other way around.
type ConnectStream interface {
	StreamID() StreamID

	// WriteCapsule writes one capsule's wire encoding to the connect
	// stream's body, under a packet-flush scope so it coalesces with any
	// write that immediately follows (in particular, the FIN sent right
	// after a CLOSE_WEBTRANSPORT_SESSION capsule).
	WriteCapsule(c Capsule) error

	// WriteFin sends an empty FIN with no capsule.
	WriteFin() error

	// ResetStream resets the connect stream itself, used for peer protocol
	// violations discovered on the datagram-context registration path.
	ResetStream(code HTTP3ErrorCode)

	// SendDatagram and MaxDatagramSize delegate to the connect stream's
	// HTTP/3 datagram transmission, tagged with the given context id (nil
	// for the contextless form).
	SendDatagram(contextID *uint64, payload []byte) error
	MaxDatagramSize(contextID *uint64) int
	SetDatagramMaxTimeInQueue(d time.Duration)

	// RegisterDatagramContext and UnregisterDatagramContext install and
	// remove the local registration for a context id. A client that opts
	// into datagram contexts registers its own context at construction; a
	// server registers the context id it adopts from the client's
	// registration. Either side unregisters when the connect stream closes.
	RegisterDatagramContext(contextID uint64)
	UnregisterDatagramContext(contextID uint64)

	// FlushScope opens a packet-flush scope; the caller must Close it
	// once done issuing the writes it wants coalesced.
	FlushScope() FlushScope
}

// DataStream is a QUIC stream associated with a session (bidirectional, or
// the send/receive half of a unidirectional stream). It is used for the
// terminal reset performed on every associated stream when the connect
// stream tears down, and for the resets and stop-sendings the application
// issues through a BoundStream.
type DataStream interface {
	StreamID() StreamID
	ResetStream(code HTTP3ErrorCode)
	StopSending(code HTTP3ErrorCode)
}

// RawDataStream is a DataStream the core can also write raw bytes to. The
// send side of a unidirectional stream needs exactly this much of the
// platform, ahead of emitting its preamble: everything else about
// framing the application's payload belongs to the platform, not the
// core.
type RawDataStream interface {
	DataStream
	Write(b []byte) (int, error)
	WriteFin() error
}

// StreamSource is the subset of the underlying QUIC connection the
// SessionFacade needs in order to accept, open, and resolve streams. A
// real platform keys these by stream id and the negotiated QUIC version;
// the core never interprets stream id bits itself.
type StreamSource interface {
	// IsOutgoingStreamID reports whether id was locally initiated.
	IsOutgoingStreamID(id StreamID, role Role) bool

	// ResolveStream looks up a previously-announced stream id. It returns
	// ok=false if the stream was reset between being announced and being
	// polled for.
	ResolveStream(id StreamID) (DataStream, bool)

	CanOpenNextOutgoingBidiStream() bool
	CanOpenNextOutgoingUniStream() bool

	// OpenOutgoingBidiStream and OpenOutgoingUniStream return an error only
	// for platform failures; a flow-control block is reported by returning
	// a nil stream and a nil error.
	OpenOutgoingBidiStream() (DataStream, error)
	OpenOutgoingUniStream() (DataStream, error)

	// TakeBufferedStreams returns, and clears, any data streams that
	// arrived tagged with sessionID before that session existed or had
	// reached the ready state. A platform buffers these keyed by the
	// session id carried in each stream's own association (the preamble
	// for a unidirectional stream, the analogous association for a
	// bidirectional one) because such a stream can be delivered before
	// the extended CONNECT response or request headers that make a
	// session ready have themselves arrived.
	TakeBufferedStreams(sessionID StreamID) []BufferedStream
}

// BufferedStream pairs a data stream that arrived for a session before
// that session was ready to receive it with the direction it was
// opened in.
type BufferedStream struct {
	Stream    DataStream
	Direction StreamDirection
}
