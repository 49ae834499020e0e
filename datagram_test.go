package webtransport

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/slusnys/webtransport/platformtest"
)

func newServerSessionForDatagram(t *testing.T) (*Session, *platformtest.ConnectStream) {
	t.Helper()
	cs := platformtest.NewConnectStream(4)
	ss := platformtest.NewStreamSource()
	s, err := NewSession(cs, ss, Config{Role: RoleServer}, nil)
	require.NoError(t, err)
	return s, cs
}

func uint64Ptr(v uint64) *uint64 { return &v }

// The second registration for the same context id is a protocol error,
// reset with STREAM_CANCELLED.
func TestDuplicateContextRegistration(t *testing.T) {
	s, cs := newServerSessionForDatagram(t)

	err := s.OnContextReceived(s.ID(), uint64Ptr(4), FormatTypeWebTransport, nil)
	require.NoError(t, err)
	require.True(t, cs.Registered[4])
	require.Nil(t, cs.ResetCode)

	err = s.OnContextReceived(s.ID(), uint64Ptr(4), FormatTypeWebTransport, nil)
	require.ErrorIs(t, err, ErrDuplicateContextRegistration)
	require.NotNil(t, cs.ResetCode)
	require.Equal(t, CodeStreamCancelled, *cs.ResetCode)
}

func TestContextRegistrationWrongStreamIsDropped(t *testing.T) {
	s, cs := newServerSessionForDatagram(t)
	err := s.OnContextReceived(s.ID()+1, uint64Ptr(4), FormatTypeWebTransport, nil)
	require.NoError(t, err)
	require.False(t, s.contextIsKnown)
	require.Nil(t, cs.ResetCode)
}

func TestContextRegistrationBadFormatIsDropped(t *testing.T) {
	s, cs := newServerSessionForDatagram(t)
	err := s.OnContextReceived(s.ID(), uint64Ptr(4), FormatType(0x1), nil)
	require.NoError(t, err)
	require.False(t, s.contextIsKnown)
	require.Nil(t, cs.ResetCode)
}

func TestContextRegistrationNonEmptyPayloadResets(t *testing.T) {
	s, cs := newServerSessionForDatagram(t)
	err := s.OnContextReceived(s.ID(), uint64Ptr(4), FormatTypeWebTransport, []byte{0x01})
	require.ErrorIs(t, err, ErrBadContextPayload)
	require.NotNil(t, cs.ResetCode)
	require.Equal(t, CodeBadApplicationPayload, *cs.ResetCode)
}

func TestContextRegistrationDifferentIDIsDropped(t *testing.T) {
	s, cs := newServerSessionForDatagram(t)
	require.NoError(t, s.OnContextReceived(s.ID(), uint64Ptr(4), FormatTypeWebTransport, nil))

	err := s.OnContextReceived(s.ID(), uint64Ptr(9), FormatTypeWebTransport, nil)
	require.NoError(t, err)
	require.Nil(t, cs.ResetCode)
	require.Equal(t, uint64(4), s.contextID)
}

// A CLOSE_DATAGRAM_CONTEXT for the adopted context is always treated as
// a terminal peer protocol violation.
func TestContextCloseIsAlwaysTerminal(t *testing.T) {
	s, cs := newServerSessionForDatagram(t)
	require.NoError(t, s.OnContextReceived(s.ID(), uint64Ptr(4), FormatTypeWebTransport, nil))

	err := s.OnContextClosed(s.ID(), 4)
	require.ErrorIs(t, err, ErrBadContextPayload)
	require.NotNil(t, cs.ResetCode)
	require.Equal(t, CodeBadApplicationPayload, *cs.ResetCode)
}

func TestOnHttp3DatagramDeliversPayload(t *testing.T) {
	s, _ := newServerSessionForDatagram(t)
	v := &recordingVisitor{}
	s.visitor = v

	require.NoError(t, s.OnContextReceived(s.ID(), uint64Ptr(4), FormatTypeWebTransport, nil))
	s.OnHttp3Datagram(uint64Ptr(4), []byte("payload"))
	require.Equal(t, [][]byte{[]byte("payload")}, v.datagrams)
}
