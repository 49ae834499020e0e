package webtransport

// StreamErrorCode is a WebTransport stream error code, as seen by the
// application: RESET_STREAM and STOP_SENDING on a WebTransport stream carry
// one of these in their one-byte wire form.
type StreamErrorCode = uint8

// HTTP3ErrorCode is the 62-bit error code space that carries a
// StreamErrorCode across the underlying QUIC/HTTP3 stream reset.
type HTTP3ErrorCode = uint64

// first and last bound the HTTP/3 error code range reserved for mapped
// WebTransport stream errors. Codes evenly spaced by 0x1f starting at 0x21
// within this range are GREASE codepoints and are never produced by encode
// or accepted by decode.
const (
	firstMappedHTTP3Error HTTP3ErrorCode = 0x52e4a40fa8db
	lastMappedHTTP3Error  HTTP3ErrorCode = 0x52e4a40fa9e2

	defaultStreamError StreamErrorCode = 0

	greaseOffset = 0x21
	greaseStride = 0x1f
)

// WebTransportErrorToHTTP3 maps a WebTransport stream error code onto the
// HTTP/3 error code space, skipping the GREASE codepoints reserved by the
// spec so that the mapping and its inverse, Http3ErrorToWebTransport, agree
// on every accepted value.
func WebTransportErrorToHTTP3(e StreamErrorCode) HTTP3ErrorCode {
	code := uint64(e)
	return firstMappedHTTP3Error + code + code/0x1e
}

// Http3ErrorToWebTransport decodes an HTTP/3 error code produced by
// WebTransportErrorToHTTP3 back into a WebTransport stream error code. It
// rejects codes outside the mapped range and GREASE codepoints within it.
func Http3ErrorToWebTransport(h HTTP3ErrorCode) (StreamErrorCode, bool) {
	if h < firstMappedHTTP3Error || h > lastMappedHTTP3Error {
		return 0, false
	}
	if (h-greaseOffset)%greaseStride == 0 {
		return 0, false
	}
	shifted := h - firstMappedHTTP3Error
	result := shifted - shifted/greaseStride
	return StreamErrorCode(result), true
}

// Http3ErrorToWebTransportOrDefault is Http3ErrorToWebTransport, returning
// defaultStreamError instead of an ok=false for codes it cannot map. Used
// on the stream-reset and stop-sending delivery paths, where some visitor
// notification must still be produced even for an error code the peer
// invented.
func Http3ErrorToWebTransportOrDefault(h HTTP3ErrorCode) StreamErrorCode {
	e, ok := Http3ErrorToWebTransport(h)
	if !ok {
		return defaultStreamError
	}
	return e
}

// IsGreaseHTTP3Error reports whether h falls on a GREASE codepoint within
// the mapped range, i.e. would be rejected by Http3ErrorToWebTransport for
// that reason rather than for being out of range. It exists to let tests
// exercise the GREASE-exclusion branch directly.
func IsGreaseHTTP3Error(h HTTP3ErrorCode) bool {
	return (h-greaseOffset)%greaseStride == 0
}
