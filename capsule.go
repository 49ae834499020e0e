package webtransport

import (
	"bytes"
	"fmt"
	"io"

	"github.com/slusnys/webtransport/quicvarint"
)

// CapsuleType identifies the kind of a length-prefixed capsule record
// carried over a connect stream's body.
//
// https://www.ietf.org/archive/id/draft-ietf-webtrans-http3-07.html#name-capsules
type CapsuleType uint64

const (
	CapsuleTypeCloseWebTransportSession  CapsuleType = 0x2843
	CapsuleTypeRegisterDatagramContext   CapsuleType = 0x00
	CapsuleTypeRegisterDatagramNoContext CapsuleType = 0x03
	CapsuleTypeCloseDatagramContext      CapsuleType = 0x01
)

func (t CapsuleType) String() string {
	switch t {
	case CapsuleTypeCloseWebTransportSession:
		return "CLOSE_WEBTRANSPORT_SESSION"
	case CapsuleTypeRegisterDatagramContext:
		return "REGISTER_DATAGRAM_CONTEXT"
	case CapsuleTypeRegisterDatagramNoContext:
		return "REGISTER_DATAGRAM_NO_CONTEXT"
	case CapsuleTypeCloseDatagramContext:
		return "CLOSE_DATAGRAM_CONTEXT"
	default:
		return fmt.Sprintf("%#x", uint64(t))
	}
}

// FormatType identifies the datagram flow a registered context carries.
// WebTransport only ever registers its own format.
type FormatType uint64

const FormatTypeWebTransport FormatType = 0xff7c00

// Capsule is a decoded capsule record: a type tag plus its raw value
// bytes. Callers downcast by Type before interpreting Value.
type Capsule struct {
	Type  CapsuleType
	Value []byte
}

// WriteCapsule appends the length-prefixed encoding of c to b.
func WriteCapsule(b []byte, c Capsule) []byte {
	b = quicvarint.Append(b, uint64(c.Type))
	b = quicvarint.Append(b, uint64(len(c.Value)))
	return append(b, c.Value...)
}

// ReadCapsule parses one capsule from the front of r, returning its type
// and value. It returns io.ErrUnexpectedEOF if the header is present but
// the value is not yet fully buffered; callers should retry once more
// bytes arrive rather than treating that as a fatal error.
func ReadCapsule(r *bytes.Reader) (Capsule, error) {
	typ, err := quicvarint.Read(r)
	if err != nil {
		return Capsule{}, err
	}
	length, err := quicvarint.Read(r)
	if err != nil {
		return Capsule{}, err
	}
	if uint64(r.Len()) < length {
		return Capsule{}, io.ErrUnexpectedEOF
	}
	value := make([]byte, length)
	if _, err := io.ReadFull(r, value); err != nil {
		return Capsule{}, err
	}
	return Capsule{Type: CapsuleType(typ), Value: value}, nil
}

// EncodeCloseWebTransportSession builds the value of a
// CLOSE_WEBTRANSPORT_SESSION capsule: a 32-bit error code followed by a
// UTF-8 error message, with no length prefix on the message (it runs to
// the end of the capsule value).
func EncodeCloseWebTransportSession(code uint32, message string) []byte {
	b := make([]byte, 4, 4+len(message))
	b[0] = byte(code >> 24)
	b[1] = byte(code >> 16)
	b[2] = byte(code >> 8)
	b[3] = byte(code)
	return append(b, message...)
}

// DecodeCloseWebTransportSession parses the value of a
// CLOSE_WEBTRANSPORT_SESSION capsule.
func DecodeCloseWebTransportSession(value []byte) (code uint32, message string, err error) {
	if len(value) < 4 {
		return 0, "", fmt.Errorf("webtransport: close capsule too short: %d bytes", len(value))
	}
	code = uint32(value[0])<<24 | uint32(value[1])<<16 | uint32(value[2])<<8 | uint32(value[3])
	return code, string(value[4:]), nil
}

// RegisterDatagramContextPayload is the decoded value of a
// REGISTER_DATAGRAM_CONTEXT capsule.
type RegisterDatagramContextPayload struct {
	ContextID            uint64
	FormatType           FormatType
	FormatAdditionalData []byte
}

// EncodeRegisterDatagramContext builds a REGISTER_DATAGRAM_CONTEXT value.
func EncodeRegisterDatagramContext(contextID uint64, format FormatType, additional []byte) []byte {
	b := quicvarint.Append(nil, contextID)
	b = quicvarint.Append(b, uint64(format))
	return append(b, additional...)
}

// DecodeRegisterDatagramContext parses a REGISTER_DATAGRAM_CONTEXT value.
func DecodeRegisterDatagramContext(value []byte) (RegisterDatagramContextPayload, error) {
	r := bytes.NewReader(value)
	contextID, err := quicvarint.Read(r)
	if err != nil {
		return RegisterDatagramContextPayload{}, err
	}
	format, err := quicvarint.Read(r)
	if err != nil {
		return RegisterDatagramContextPayload{}, err
	}
	rest := make([]byte, r.Len())
	_, _ = io.ReadFull(r, rest)
	return RegisterDatagramContextPayload{
		ContextID:            contextID,
		FormatType:           FormatType(format),
		FormatAdditionalData: rest,
	}, nil
}

// RegisterDatagramNoContextPayload is the decoded value of a
// REGISTER_DATAGRAM_NO_CONTEXT capsule: identical to the context-bearing
// form but without a context id.
type RegisterDatagramNoContextPayload struct {
	FormatType           FormatType
	FormatAdditionalData []byte
}

// EncodeRegisterDatagramNoContext builds a REGISTER_DATAGRAM_NO_CONTEXT
// value.
func EncodeRegisterDatagramNoContext(format FormatType, additional []byte) []byte {
	b := quicvarint.Append(nil, uint64(format))
	return append(b, additional...)
}

// DecodeRegisterDatagramNoContext parses a REGISTER_DATAGRAM_NO_CONTEXT
// value.
func DecodeRegisterDatagramNoContext(value []byte) (RegisterDatagramNoContextPayload, error) {
	r := bytes.NewReader(value)
	format, err := quicvarint.Read(r)
	if err != nil {
		return RegisterDatagramNoContextPayload{}, err
	}
	rest := make([]byte, r.Len())
	_, _ = io.ReadFull(r, rest)
	return RegisterDatagramNoContextPayload{FormatType: FormatType(format), FormatAdditionalData: rest}, nil
}

// CloseDatagramContextPayload is the decoded value of a
// CLOSE_DATAGRAM_CONTEXT capsule.
type CloseDatagramContextPayload struct {
	ContextID uint64
	CloseCode uint64
	CloseInfo []byte
}

// EncodeCloseDatagramContext builds a CLOSE_DATAGRAM_CONTEXT value.
func EncodeCloseDatagramContext(contextID, closeCode uint64, info []byte) []byte {
	b := quicvarint.Append(nil, contextID)
	b = quicvarint.Append(b, closeCode)
	return append(b, info...)
}

// DecodeCloseDatagramContext parses a CLOSE_DATAGRAM_CONTEXT value.
func DecodeCloseDatagramContext(value []byte) (CloseDatagramContextPayload, error) {
	r := bytes.NewReader(value)
	contextID, err := quicvarint.Read(r)
	if err != nil {
		return CloseDatagramContextPayload{}, err
	}
	closeCode, err := quicvarint.Read(r)
	if err != nil {
		return CloseDatagramContextPayload{}, err
	}
	info := make([]byte, r.Len())
	_, _ = io.ReadFull(r, info)
	return CloseDatagramContextPayload{ContextID: contextID, CloseCode: closeCode, CloseInfo: info}, nil
}
