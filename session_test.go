package webtransport

import (
	"testing"
	"time"

	"github.com/quic-go/qpack"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/slusnys/webtransport/platformtest"
)

type recordingVisitor struct {
	NoopVisitor
	readyHeaders  []qpack.HeaderField
	readyCount    int
	closedCount   int
	closedCode    uint32
	closedMessage string
	lastResetCode       StreamErrorCode
	lastStopSendingCode StreamErrorCode
	datagrams           [][]byte
}

func (v *recordingVisitor) OnResetStreamReceived(code StreamErrorCode) {
	v.lastResetCode = code
}

func (v *recordingVisitor) OnStopSendingReceived(code StreamErrorCode) {
	v.lastStopSendingCode = code
}

func (v *recordingVisitor) OnDatagramReceived(payload []byte) {
	v.datagrams = append(v.datagrams, payload)
}

func (v *recordingVisitor) OnSessionReady(headers []qpack.HeaderField) {
	v.readyCount++
	v.readyHeaders = headers
}

func (v *recordingVisitor) OnSessionClosed(code uint32, message string) {
	v.closedCount++
	v.closedCode = code
	v.closedMessage = message
}

func newTestSession(t *testing.T, role Role) (*Session, *platformtest.ConnectStream, *platformtest.StreamSource, *recordingVisitor) {
	t.Helper()
	cs := platformtest.NewConnectStream(4)
	ss := platformtest.NewStreamSource()
	v := &recordingVisitor{}
	s, err := NewSession(cs, ss, Config{Role: role, Visitor: v}, nil)
	require.NoError(t, err)
	return s, cs, ss, v
}

func serverHeaders() []qpack.HeaderField {
	return []qpack.HeaderField{{Name: ":method", Value: "CONNECT"}}
}

func clientHeaders(status string) []qpack.HeaderField {
	return []qpack.HeaderField{{Name: ":status", Value: status}}
}

// Local close races peer close; the peer's error must not win over an
// already-sent local close, and OnSessionClosed must fire exactly once,
// carrying the locally recorded values, only once OnConnectStreamClosing
// actually tears the session down.
func TestCloseRace_LocalFirst(t *testing.T) {
	s, cs, _, v := newTestSession(t, RoleClient)
	s.HeadersReceived(clientHeaders("200"))
	require.Equal(t, 1, v.readyCount)

	require.NoError(t, s.CloseSession(17, "bye"))
	require.Len(t, cs.CloseCalls, 1)
	require.Equal(t, CloseCall{Code: 17, Message: "bye"}, cs.CloseCalls[0])

	require.NoError(t, s.OnCloseReceived(9, "srv"))
	require.Equal(t, 0, v.closedCount, "no notification until the connect stream actually closes")
	require.Equal(t, 1, cs.FinSent, "no echo FIN beyond the one the local close already sent")

	s.OnConnectStreamClosing()
	require.Equal(t, 1, v.closedCount)
	require.Equal(t, uint32(17), v.closedCode)
	require.Equal(t, "bye", v.closedMessage)
}

// The same local-first close race as TestCloseRace_LocalFirst, but
// driven by two goroutines handed off through a channel and joined with
// errgroup, rather than by calling the two methods back-to-back inline.
// The handoff still serializes the two calls, since the session is not
// safe for concurrent use, but exercises the race as two independent
// actors taking turns rather than as a single call stack, and confirms
// the outcome doesn't depend on which stack frame made the calls.
func TestCloseRaceViaErrgroup(t *testing.T) {
	s, cs, _, v := newTestSession(t, RoleClient)
	s.HeadersReceived(clientHeaders("200"))

	localDone := make(chan struct{})
	var g errgroup.Group
	g.Go(func() error {
		defer close(localDone)
		return s.CloseSession(17, "bye")
	})
	g.Go(func() error {
		<-localDone
		return s.OnCloseReceived(9, "srv")
	})
	require.NoError(t, g.Wait())

	require.Len(t, cs.CloseCalls, 1)
	require.Equal(t, CloseCall{Code: 17, Message: "bye"}, cs.CloseCalls[0])
	require.Equal(t, 0, v.closedCount, "no notification until the connect stream actually closes")

	s.OnConnectStreamClosing()
	require.Equal(t, 1, v.closedCount)
	require.Equal(t, uint32(17), v.closedCode)
}

// Peer sends a bare FIN with no capsule.
func TestFinOnlyNoCapsule(t *testing.T) {
	s, cs, _, v := newTestSession(t, RoleClient)
	s.HeadersReceived(clientHeaders("200"))

	require.NoError(t, s.OnConnectStreamFinReceived())
	require.Equal(t, 1, cs.FinSent)
	require.Equal(t, 1, v.closedCount)
	require.Equal(t, uint32(0), v.closedCode)
	require.Equal(t, "", v.closedMessage)
}

func TestCapsuleThenFinIsNoop(t *testing.T) {
	s, cs, _, v := newTestSession(t, RoleServer)
	require.NoError(t, s.OnCloseReceived(9, "srv"))
	require.Equal(t, 1, v.closedCount)
	require.Equal(t, 1, cs.FinSent)

	require.NoError(t, s.OnConnectStreamFinReceived())
	require.Equal(t, 1, v.closedCount, "capsule already closed the session; FIN must not re-notify")
	require.Equal(t, 1, cs.FinSent)
}

func TestDoubleCloseIsRejected(t *testing.T) {
	s, _, _, _ := newTestSession(t, RoleClient)
	require.NoError(t, s.CloseSession(1, "a"))
	require.ErrorIs(t, s.CloseSession(2, "b"), ErrDoubleClose)
}

func TestDuplicateCloseReceivedIsRejected(t *testing.T) {
	s, _, _, _ := newTestSession(t, RoleClient)
	require.NoError(t, s.OnCloseReceived(1, "a"))
	require.ErrorIs(t, s.OnCloseReceived(2, "b"), ErrDuplicateCloseReceived)
}

// OnSessionReady precedes OnSessionClosed whenever both fire.
func TestReadyPrecedesClosed(t *testing.T) {
	s, _, _, v := newTestSession(t, RoleServer)
	s.HeadersReceived(serverHeaders())
	require.Equal(t, 1, v.readyCount)
	require.Equal(t, 0, v.closedCount)

	require.NoError(t, s.OnCloseReceived(0, ""))
	require.Equal(t, 1, v.readyCount)
	require.Equal(t, 1, v.closedCount)
}

// Client headers without a 2xx status are a benign divergence: the
// session stays not-ready and no visitor call fires.
func TestClientRejectsNon2xxStatus(t *testing.T) {
	s, _, _, v := newTestSession(t, RoleClient)
	s.HeadersReceived(clientHeaders("404"))
	require.False(t, s.IsReady())
	require.Equal(t, 0, v.readyCount)
}

// A stream reset between being announced and being polled for is
// skipped rather than surfaced to the caller.
func TestAcceptSkipsResetStreams(t *testing.T) {
	s, _, ss, _ := newTestSession(t, RoleServer)

	first := platformtest.NewDataStream(8)
	second := platformtest.NewDataStream(12)
	ss.Add(first, false)
	ss.Add(second, false)

	s.AssociateStream(first.StreamID(), StreamBidirectional)
	s.AssociateStream(second.StreamID(), StreamBidirectional)
	require.Len(t, s.incomingBidi, 2)

	ss.Remove(first.StreamID())

	got, ok := s.AcceptIncomingBidirectionalStream()
	require.True(t, ok)
	require.Equal(t, second.StreamID(), got.StreamID())

	_, ok = s.AcceptIncomingBidirectionalStream()
	require.False(t, ok)
}

// Outgoing streams are never queued for the application to accept; the
// caller already holds the handle it created.
func TestAssociateOutgoingStreamDoesNotQueue(t *testing.T) {
	s, _, ss, v := newTestSession(t, RoleClient)
	stream := platformtest.NewDataStream(4)
	ss.Add(stream, true)

	s.AssociateStream(stream.StreamID(), StreamBidirectional)
	_, ok := s.AcceptIncomingBidirectionalStream()
	require.False(t, ok)
	require.Equal(t, 0, v.readyCount) // sanity: visitor untouched by this path
}

// OnConnectStreamClosing resets every associated stream exactly once and
// notifies close exactly once, even though ResetStream re-entrantly
// could in principle call back into the session.
func TestConnectStreamClosingResetsAssociatedStreams(t *testing.T) {
	s, cs, ss, v := newTestSession(t, RoleServer)
	a := platformtest.NewDataStream(8)
	b := platformtest.NewDataStream(12)
	ss.Add(a, false)
	ss.Add(b, false)
	s.AssociateStream(a.StreamID(), StreamBidirectional)
	s.AssociateStream(b.StreamID(), StreamUnidirectional)

	s.OnConnectStreamClosing()

	require.NotNil(t, a.ResetCode)
	require.Equal(t, CodeSessionGone, *a.ResetCode)
	require.NotNil(t, b.ResetCode)
	require.Equal(t, CodeSessionGone, *b.ResetCode)
	require.Equal(t, 1, v.closedCount)
	require.Empty(t, cs.CloseCalls)

	// A second call must not reset anything again or re-notify.
	s.OnConnectStreamClosing()
	require.Equal(t, 1, v.closedCount)
}

func TestOpenOutgoingStreamsAssociateAndRespectFlowControl(t *testing.T) {
	s, _, ss, _ := newTestSession(t, RoleClient)

	bidi, err := s.OpenOutgoingBidiStream()
	require.NoError(t, err)
	require.NotNil(t, bidi)

	ss.CanOpenBidi = false
	blocked, err := s.OpenOutgoingBidiStream()
	require.NoError(t, err)
	require.Nil(t, blocked)

	uni, err := s.OpenOutgoingUniStream()
	require.NoError(t, err)
	require.NotNil(t, uni)
}

func TestSendOrQueueDatagramUsesAdoptedContext(t *testing.T) {
	cs := platformtest.NewConnectStream(4)
	ss := platformtest.NewStreamSource()
	s, err := NewSession(cs, ss, Config{Role: RoleClient, AttemptToUseDatagramContexts: true}, nil)
	require.NoError(t, err)

	require.NoError(t, s.SendOrQueueDatagram([]byte("hi")))
	require.Len(t, cs.Datagrams, 1)
	require.NotNil(t, cs.DatagramCtxs[0])
	require.Equal(t, uint64(0), *cs.DatagramCtxs[0])

	require.Len(t, cs.Capsules, 1)
	require.Equal(t, CapsuleTypeRegisterDatagramContext, cs.Capsules[0].Type)
	require.True(t, cs.Registered[0])
}

// A data stream that arrived tagged with a session's id before that
// session reached the ready state is drained and associated as soon as
// HeadersReceived makes it ready.
func TestHeadersReceivedDrainsBufferedStreams(t *testing.T) {
	s, _, ss, v := newTestSession(t, RoleServer)

	early := platformtest.NewDataStream(8)
	ss.BufferStream(s.ID(), early, StreamUnidirectional)
	require.Equal(t, 0, v.readyCount)

	s.HeadersReceived(serverHeaders())
	require.Equal(t, 1, v.readyCount)
	require.Len(t, s.incomingUniQueue, 1)
	require.Equal(t, early.StreamID(), s.incomingUniQueue[0])

	// A second HeadersReceived call (e.g. a retried request) finds
	// nothing left buffered.
	s.HeadersReceived(serverHeaders())
	require.Len(t, s.incomingUniQueue, 1)
}

func TestGetMaxDatagramSizeReadsThroughConnectStream(t *testing.T) {
	s, _, _, _ := newTestSession(t, RoleClient)
	require.Equal(t, 1200, s.GetMaxDatagramSize())
}

func TestSetDatagramMaxTimeInQueueForwardsToConnectStream(t *testing.T) {
	s, cs, _, _ := newTestSession(t, RoleClient)
	s.SetDatagramMaxTimeInQueue(5 * time.Second)
	require.Equal(t, 1, cs.MaxTimeInQ)
}

// CloseSessionWithFinOnlyForTests lets a test drive the peer side of a
// close race with a bare FIN, bypassing the capsule the facade's normal
// CloseSession always sends alongside it.
func TestCloseSessionWithFinOnlyForTests(t *testing.T) {
	s, cs, _, v := newTestSession(t, RoleClient)
	s.HeadersReceived(clientHeaders("200"))

	require.NoError(t, s.CloseSessionWithFinOnlyForTests())
	require.Equal(t, 1, cs.FinSent)
	require.Empty(t, cs.CloseCalls)
	require.ErrorIs(t, s.CloseSessionWithFinOnlyForTests(), ErrDoubleClose)

	require.NoError(t, s.OnCloseReceived(9, "srv"))
	require.Equal(t, 0, v.closedCount, "no notification until the connect stream actually closes")

	s.OnConnectStreamClosing()
	require.Equal(t, 1, v.closedCount)
	require.Equal(t, uint32(0), v.closedCode, "local close carried no code of its own")
}

func TestFacadeRejectsUseAfterClose(t *testing.T) {
	s, _, _, _ := newTestSession(t, RoleClient)
	s.OnConnectStreamClosing()

	_, err := s.OpenOutgoingBidiStream()
	require.ErrorIs(t, err, ErrSessionClosed)

	err = s.SendOrQueueDatagram([]byte("x"))
	require.ErrorIs(t, err, ErrSessionClosed)
}
