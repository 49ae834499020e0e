package webtransport

import (
	"bytes"

	"github.com/slusnys/webtransport/internal/utils"
	"github.com/slusnys/webtransport/quicvarint"
)

var streamLog = utils.DefaultLogger.WithPrefix("stream")

// SendUnidirectionalStream is the send-side half of the unidirectional
// stream preamble protocol. It is constructed knowing the session id up
// front and must emit the preamble before any application payload.
type SendUnidirectionalStream struct {
	sessionID           StreamID
	stream              RawDataStream
	flusher             FlushScopeOpener
	needsToSendPreamble bool
}

// FlushScopeOpener opens a packet-flush scope around the preamble
// write. It is the connect stream of the session the unidirectional
// stream belongs to; unidirectional streams have no flush scope of
// their own, since coalescing is a property of the connection, not of
// an individual stream.
type FlushScopeOpener interface {
	FlushScope() FlushScope
}

// NewSendUnidirectionalStream wraps stream, which must belong to
// sessionID, to prepend the WebTransport unidirectional preamble ahead
// of the first write. flusher opens the packet-flush scope the preamble
// write runs under, so it can coalesce with the caller's first payload
// write.
func NewSendUnidirectionalStream(sessionID StreamID, stream RawDataStream, flusher FlushScopeOpener) *SendUnidirectionalStream {
	return &SendUnidirectionalStream{sessionID: sessionID, stream: stream, flusher: flusher, needsToSendPreamble: true}
}

// WritePreamble emits the two-varint preamble, the unidirectional
// stream-type tag followed by the session id, under a packet-flush
// scope. When the preamble is sent by Write, Write keeps a scope open
// across both the preamble and the first payload so the two can
// coalesce.
// Calling it more than once is a programming error: it returns
// ErrDuplicatePreamble and resets the stream with CodeInternalError,
// since a stream that emitted half a preamble twice cannot be trusted
// to carry a coherent byte stream any further.
func (s *SendUnidirectionalStream) WritePreamble() error {
	if !s.needsToSendPreamble {
		s.stream.ResetStream(CodeInternalError)
		return ErrDuplicatePreamble
	}
	s.needsToSendPreamble = false

	scope := s.flusher.FlushScope()
	defer scope.Close()

	b := quicvarint.Append(nil, webTransportUniStreamType)
	b = quicvarint.Append(b, s.sessionID)
	_, err := s.stream.Write(b)
	return err
}

// Write sends payload on the stream, emitting the preamble first if it
// has not been sent yet.
func (s *SendUnidirectionalStream) Write(payload []byte) (int, error) {
	if s.needsToSendPreamble {
		scope := s.flusher.FlushScope()
		defer scope.Close()
		if err := s.WritePreamble(); err != nil {
			return 0, err
		}
	}
	return s.stream.Write(payload)
}

// Close sends FIN, emitting the preamble first if a zero-length stream
// is being closed without ever writing application payload.
func (s *SendUnidirectionalStream) Close() error {
	if s.needsToSendPreamble {
		if err := s.WritePreamble(); err != nil {
			return err
		}
	}
	return s.stream.WriteFin()
}

// receiveUnidirectionalStream is the receive-side half: it discovers its
// session id from the preamble rather than being constructed with one.
type receiveUnidirectionalStream struct {
	buf       bytes.Buffer
	sessionID StreamID
	bound     bool
}

// onDataAvailable attempts to parse the session id varint62 from the front
// of data already buffered plus any newly-delivered chunk. It reports
// three outcomes matching the receive-side table of the unidirectional
// stream preamble protocol:
//
//   - bound=true: the full varint62 was present; sessionID is set and
//     rest holds any payload bytes following the preamble in this call.
//   - bound=false, fin=false: incomplete; the caller should retry on the
//     next data-available notification. The chunk is kept buffered for
//     that retry.
//   - bound=false, fin=true: incomplete and the stream has already seen
//     FIN; the caller should drop the stream without associating it.
func (r *receiveUnidirectionalStream) onDataAvailable(chunk []byte, streamFin bool) (rest []byte, bound bool, fin bool) {
	if r.bound {
		return chunk, true, false
	}
	r.buf.Write(chunk)
	id, n, err := quicvarint.Parse(r.buf.Bytes())
	if err != nil {
		if streamFin {
			streamLog.Debugf("dropping unidirectional stream closed before its preamble could be parsed")
			return nil, false, true
		}
		return nil, false, false
	}
	r.sessionID = id
	r.bound = true
	leftover := append([]byte(nil), r.buf.Bytes()[n:]...)
	r.buf.Reset()
	return leftover, true, false
}

// SessionByID looks up a session owning the given id, for resolving a
// unidirectional stream's preamble to the session that should receive
// it. A connection-wide session table implements this.
type SessionByID func(id StreamID) (*Session, bool)

// ReceiveUnidirectionalStream is the receive-side unidirectional stream
// adapter: it owns a receiveUnidirectionalStream's preamble parsing and,
// once the session id is known, associates streamID with the resolved
// session exactly once.
type ReceiveUnidirectionalStream struct {
	streamID StreamID
	lookup   SessionByID
	inner    receiveUnidirectionalStream
	session  *Session
	dropped  bool
}

// NewReceiveUnidirectionalStream constructs the receive-side adapter for
// a newly-opened incoming unidirectional stream with id streamID.
func NewReceiveUnidirectionalStream(streamID StreamID, lookup SessionByID) *ReceiveUnidirectionalStream {
	return &ReceiveUnidirectionalStream{streamID: streamID, lookup: lookup}
}

// OnDataAvailable feeds newly-received bytes through preamble parsing.
// Once bound, it returns the application payload and ready=true on
// every call, including this one. Before binding, it returns
// ready=false; the caller should retry on the next data-available
// notification unless Dropped reports true, in which case the preamble
// never arrived before FIN and the stream should be torn down without
// ever being associated with a session.
func (r *ReceiveUnidirectionalStream) OnDataAvailable(chunk []byte, streamFin bool) (payload []byte, ready bool) {
	if r.session != nil {
		return chunk, true
	}
	rest, bound, fin := r.inner.onDataAvailable(chunk, streamFin)
	if !bound {
		r.dropped = fin
		return nil, false
	}
	session, ok := r.lookup(r.inner.sessionID)
	if !ok {
		r.dropped = true
		return nil, false
	}
	r.session = session
	session.AssociateStream(r.streamID, StreamUnidirectional)
	return rest, true
}

// Dropped reports whether the stream's preamble never fully arrived
// before FIN, or resolved to an unknown session; in either case the
// caller should tear the stream down without associating it.
func (r *ReceiveUnidirectionalStream) Dropped() bool { return r.dropped }

// OnStreamReset delivers a RESET_STREAM received on the underlying
// unidirectional stream to the resolved session's visitor, translating
// the HTTP/3 error code back to a WebTransport one. It is a no-op if
// the preamble has not yet resolved a session: a stream reset before
// its session id is known carries no WebTransport stream identity to
// report against.
func (r *ReceiveUnidirectionalStream) OnStreamReset(code HTTP3ErrorCode) {
	if r.session == nil {
		return
	}
	r.session.visitor.OnResetStreamReceived(Http3ErrorToWebTransportOrDefault(code))
}

// OnStopSending is the STOP_SENDING counterpart of OnStreamReset.
func (r *ReceiveUnidirectionalStream) OnStopSending(code HTTP3ErrorCode) {
	if r.session == nil {
		return
	}
	r.session.visitor.OnStopSendingReceived(Http3ErrorToWebTransportOrDefault(code))
}

// BoundStream is the application-facing handle to a QUIC stream
// (bidirectional, or the bound handle of a unidirectional one) once it
// is associated with a session and handed out via Accept*/Open*. It
// translates the WebTransport-level stream error codes the application
// deals with into the underlying HTTP/3 error code space, in both
// directions: on Reset/StopSending going out, and on OnStreamReset/
// OnStopSending coming in from the platform. It shares one translation
// across both stream kinds, the way the implementation this package is
// modeled on applies it uniformly regardless of stream direction.
type BoundStream struct {
	stream  DataStream
	session *Session
}

// NewBoundStream wraps stream as a member of session.
func NewBoundStream(stream DataStream, session *Session) *BoundStream {
	return &BoundStream{stream: stream, session: session}
}

// StreamID is the wrapped stream's id.
func (b *BoundStream) StreamID() StreamID { return b.stream.StreamID() }

// Reset resets the stream with code, translated to the HTTP/3 error
// space via WebTransportErrorToHTTP3.
func (b *BoundStream) Reset(code StreamErrorCode) {
	b.stream.ResetStream(WebTransportErrorToHTTP3(code))
}

// StopSending requests the peer stop sending on the stream, with code
// translated the same way as Reset.
func (b *BoundStream) StopSending(code StreamErrorCode) {
	b.stream.StopSending(WebTransportErrorToHTTP3(code))
}

// OnStreamReset delivers a RESET_STREAM received on the wrapped stream
// to the session's visitor, translating its HTTP/3 error code back to a
// WebTransport stream error code via Http3ErrorToWebTransportOrDefault.
func (b *BoundStream) OnStreamReset(code HTTP3ErrorCode) {
	b.session.visitor.OnResetStreamReceived(Http3ErrorToWebTransportOrDefault(code))
}

// OnStopSending is the STOP_SENDING counterpart of OnStreamReset.
func (b *BoundStream) OnStopSending(code HTTP3ErrorCode) {
	b.session.visitor.OnStopSendingReceived(Http3ErrorToWebTransportOrDefault(code))
}
