package webtransport

import (
	"strconv"
	"strings"

	"github.com/quic-go/qpack"

	"github.com/slusnys/webtransport/internal/utils"
)

var sessionLog = utils.DefaultLogger.WithPrefix("session")

// HeadersReceived transitions the session to ready once the extended
// CONNECT response (client) or request (server) headers have been
// accepted. Clients additionally require a 2xx status; a non-2xx or
// missing status is a benign divergence and is dropped silently, the
// session remaining not-ready. On success it fires OnSessionReady, then
// drains any data streams the platform buffered for this session's id
// before it reached the ready state, associating each in turn.
func (s *Session) HeadersReceived(headers []qpack.HeaderField) {
	if s.role == RoleClient && !hasSuccessStatus(headers) {
		return
	}
	s.ready = true
	s.metrics.sessionsReady.Inc()
	s.visitor.OnSessionReady(headers)
	for _, buffered := range s.streams.TakeBufferedStreams(s.id) {
		s.AssociateStream(buffered.Stream.StreamID(), buffered.Direction)
	}
}

func hasSuccessStatus(headers []qpack.HeaderField) bool {
	for _, h := range headers {
		if h.Name != ":status" {
			continue
		}
		code, err := strconv.Atoi(h.Value)
		return err == nil && code >= 200 && code < 300
	}
	return false
}

// CloseSession initiates a local close. It is a bug check, returning
// ErrDoubleClose, if called more than once on the same session. If the
// peer's close already arrived, the peer's error wins: close_sent is
// still marked true but no capsule is emitted and the locally-passed
// code/message are discarded, matching the wire-observable behavior of
// the close race.
func (s *Session) CloseSession(code uint32, message string) error {
	if s.closeSent {
		return ErrDoubleClose
	}
	s.closeSent = true
	if s.closeReceived {
		return nil
	}
	s.errorCode = code
	s.errorMessage = message
	s.metrics.sessionsClosedLocally.Inc()

	scope := s.connectStream.FlushScope()
	defer scope.Close()

	capsule := Capsule{Type: CapsuleTypeCloseWebTransportSession, Value: EncodeCloseWebTransportSession(code, message)}
	if err := s.connectStream.WriteCapsule(capsule); err != nil {
		return err
	}
	return s.connectStream.WriteFin()
}

// CloseSessionWithFinOnlyForTests marks close_sent and sends a bare FIN,
// bypassing the CLOSE_WEBTRANSPORT_SESSION capsule. It exists only to
// let tests exercise the OnConnectStreamFinReceived path from the other
// side without round-tripping a capsule.
func (s *Session) CloseSessionWithFinOnlyForTests() error {
	if s.closeSent {
		return ErrDoubleClose
	}
	s.closeSent = true
	return s.connectStream.WriteFin()
}

// OnCloseReceived records a CLOSE_WEBTRANSPORT_SESSION capsule from the
// peer. It is a bug check, returning ErrDuplicateCloseReceived, if
// called more than once. If the local side already closed first, the
// locally recorded error is kept, no FIN is echoed, and no close
// notification fires here (OnConnectStreamClosing will fire it later).
// Otherwise the peer's code/message are adopted, an empty FIN is sent in
// acknowledgement, and the close-notification step runs.
func (s *Session) OnCloseReceived(code uint32, message string) error {
	if s.closeReceived {
		return ErrDuplicateCloseReceived
	}
	s.closeReceived = true
	if s.closeSent {
		return nil
	}
	s.errorCode = code
	s.errorMessage = message
	if err := s.connectStream.WriteFin(); err != nil {
		return err
	}
	s.maybeNotifyClose()
	return nil
}

// OnConnectStreamFinReceived handles a FIN on the connect stream that
// arrived without a preceding CLOSE_WEBTRANSPORT_SESSION capsule. If the
// capsule already arrived first (capsule-then-FIN), this is a no-op. Here
// close_received is set; if close_sent is already true the locally
// recorded error is kept, the FIN is not echoed, and no notification
// fires here. Otherwise the default error (0, empty message) is
// recorded, an empty FIN is sent back, and the close-notification step
// runs.
func (s *Session) OnConnectStreamFinReceived() error {
	if s.closeReceived {
		return nil
	}
	s.closeReceived = true
	if s.closeSent {
		return nil
	}
	s.errorCode = 0
	s.errorMessage = ""
	if err := s.connectStream.WriteFin(); err != nil {
		return err
	}
	s.maybeNotifyClose()
	return nil
}

// OnConnectStreamClosing tears the session down in response to the
// underlying connect stream closing. Every data stream still associated
// with the session is reset with CodeSessionGone; an in-progress
// datagram context registration is unregistered; then the
// close-notification step runs.
//
// The associated set is snapshotted and cleared before resets are
// issued, because ResetStream may re-enter the platform synchronously,
// which can call back into the session; callbacks observing associated
// must see it already empty.
func (s *Session) OnConnectStreamClosing() {
	sessionLog.Debugf("session %d connect stream closing (%s)", s.id, s.closeSummary())

	snapshot := make([]StreamID, 0, len(s.associated))
	for id := range s.associated {
		snapshot = append(snapshot, id)
	}
	s.associated = make(map[StreamID]struct{})

	for _, id := range snapshot {
		stream, ok := s.streams.ResolveStream(id)
		if !ok {
			continue
		}
		stream.ResetStream(CodeSessionGone)
	}

	if s.contextCurrentlyRegistered {
		s.connectStream.UnregisterDatagramContext(s.contextID)
		s.contextCurrentlyRegistered = false
	}

	s.maybeNotifyClose()
}

// maybeNotifyClose fires OnSessionClosed exactly once per session,
// gated by close_notified.
func (s *Session) maybeNotifyClose() {
	if s.closeNotified {
		return
	}
	s.closeNotified = true
	s.metrics.sessionsClosed.Inc()
	s.visitor.OnSessionClosed(s.errorCode, s.errorMessage)
}

// closeSummary renders the session's current close state for logging;
// unexported, used only by the package's own debug log lines.
func (s *Session) closeSummary() string {
	var b strings.Builder
	b.WriteString("sent=")
	b.WriteString(strconv.FormatBool(s.closeSent))
	b.WriteString(" received=")
	b.WriteString(strconv.FormatBool(s.closeReceived))
	b.WriteString(" notified=")
	b.WriteString(strconv.FormatBool(s.closeNotified))
	return b.String()
}
