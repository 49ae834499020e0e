package webtransport

import "github.com/quic-go/qpack"

// Visitor is the capability set an application implements to observe a
// Session. It is installed at construction with a no-op default and
// replaced by the owner once it has somewhere to route callbacks; see
// NoopVisitor. All methods are invoked from the single I/O goroutine that
// owns the session and must not block.
type Visitor interface {
	// OnSessionReady fires once, when the extended CONNECT response (client)
	// or request (server) headers have been accepted.
	OnSessionReady(headers []qpack.HeaderField)

	// OnSessionClosed fires exactly once per session, whenever the session
	// transitions to its terminal closed state, carrying whichever side's
	// error/message won the close race.
	OnSessionClosed(code uint32, message string)

	// OnIncomingBidirectionalStreamAvailable fires whenever AssociateStream
	// appends a new id to the incoming bidirectional queue.
	OnIncomingBidirectionalStreamAvailable()

	// OnIncomingUnidirectionalStreamAvailable fires whenever AssociateStream
	// appends a new id to the incoming unidirectional queue.
	OnIncomingUnidirectionalStreamAvailable()

	// OnDatagramReceived delivers the payload of an HTTP/3 datagram
	// addressed to this session's datagram context.
	OnDatagramReceived(payload []byte)

	// OnCanCreateNewOutgoingBidirectionalStream and
	// OnCanCreateNewOutgoingUnidirectionalStream report that flow control
	// has relaxed enough to open another stream of the given kind. Session
	// never invokes them: it has no entry point that forwards such a
	// signal from the platform.
	OnCanCreateNewOutgoingBidirectionalStream()
	OnCanCreateNewOutgoingUnidirectionalStream()

	// OnResetStreamReceived and OnStopSendingReceived fire on a bound
	// WebTransport stream (bidirectional or unidirectional) when the peer
	// resets or stops sending on it, carrying the decoded WebTransport
	// stream error code.
	OnResetStreamReceived(code StreamErrorCode)
	OnStopSendingReceived(code StreamErrorCode)
}

// NoopVisitor is a Visitor whose methods all do nothing. It is installed on
// every Session at construction time.
type NoopVisitor struct{}

var _ Visitor = NoopVisitor{}

func (NoopVisitor) OnSessionReady([]qpack.HeaderField)          {}
func (NoopVisitor) OnSessionClosed(uint32, string)              {}
func (NoopVisitor) OnIncomingBidirectionalStreamAvailable()     {}
func (NoopVisitor) OnIncomingUnidirectionalStreamAvailable()    {}
func (NoopVisitor) OnDatagramReceived([]byte)                   {}
func (NoopVisitor) OnCanCreateNewOutgoingBidirectionalStream()  {}
func (NoopVisitor) OnCanCreateNewOutgoingUnidirectionalStream() {}
func (NoopVisitor) OnResetStreamReceived(StreamErrorCode)       {}
func (NoopVisitor) OnStopSendingReceived(StreamErrorCode)       {}
