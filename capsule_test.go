package webtransport

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCapsuleRoundTrip(t *testing.T) {
	c := Capsule{Type: CapsuleTypeCloseWebTransportSession, Value: []byte("bye")}
	encoded := WriteCapsule(nil, c)

	decoded, err := ReadCapsule(bytes.NewReader(encoded))
	require.NoError(t, err)
	require.Equal(t, c, decoded)
}

func TestReadCapsuleIncompleteValue(t *testing.T) {
	full := WriteCapsule(nil, Capsule{Type: CapsuleTypeCloseWebTransportSession, Value: []byte("longer message")})
	_, err := ReadCapsule(bytes.NewReader(full[:len(full)-3]))
	require.Error(t, err)
}

func TestCloseWebTransportSessionCapsuleCodec(t *testing.T) {
	value := EncodeCloseWebTransportSession(17, "bye")
	code, message, err := DecodeCloseWebTransportSession(value)
	require.NoError(t, err)
	require.Equal(t, uint32(17), code)
	require.Equal(t, "bye", message)
}

func TestRegisterDatagramContextCapsuleCodec(t *testing.T) {
	value := EncodeRegisterDatagramContext(9, FormatTypeWebTransport, nil)
	decoded, err := DecodeRegisterDatagramContext(value)
	require.NoError(t, err)
	require.Equal(t, RegisterDatagramContextPayload{ContextID: 9, FormatType: FormatTypeWebTransport, FormatAdditionalData: []byte{}}, decoded)
}

func TestRegisterDatagramNoContextCapsuleCodec(t *testing.T) {
	value := EncodeRegisterDatagramNoContext(FormatTypeWebTransport, nil)
	decoded, err := DecodeRegisterDatagramNoContext(value)
	require.NoError(t, err)
	require.Equal(t, RegisterDatagramNoContextPayload{FormatType: FormatTypeWebTransport, FormatAdditionalData: []byte{}}, decoded)
}

func TestCloseDatagramContextCapsuleCodec(t *testing.T) {
	value := EncodeCloseDatagramContext(9, 2, []byte("info"))
	decoded, err := DecodeCloseDatagramContext(value)
	require.NoError(t, err)
	require.Equal(t, CloseDatagramContextPayload{ContextID: 9, CloseCode: 2, CloseInfo: []byte("info")}, decoded)
}

func TestCapsuleTypeStringers(t *testing.T) {
	require.Equal(t, "CLOSE_WEBTRANSPORT_SESSION", CapsuleTypeCloseWebTransportSession.String())
	require.Equal(t, "REGISTER_DATAGRAM_CONTEXT", CapsuleTypeRegisterDatagramContext.String())
	require.Contains(t, CapsuleType(0x9999).String(), "0x")
}
