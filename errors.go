package webtransport

import "errors"

// Sentinel errors returned or wrapped by the session core. Callers should
// use errors.Is against these rather than comparing error strings.
var (
	// ErrDoubleClose is returned when CloseSession is called more than once
	// on the same session.
	ErrDoubleClose = errors.New("webtransport: CloseSession called more than once")

	// ErrDuplicateCloseReceived is returned when OnCloseReceived is called
	// more than once on the same session.
	ErrDuplicateCloseReceived = errors.New("webtransport: OnCloseReceived called more than once")

	// ErrDuplicatePreamble is returned when a send-side unidirectional
	// stream is asked to write its preamble a second time.
	ErrDuplicatePreamble = errors.New("webtransport: unidirectional stream preamble already sent")

	// ErrDuplicateContextRegistration is returned when a server receives a
	// second REGISTER_DATAGRAM_CONTEXT for a context ID it already
	// registered locally.
	ErrDuplicateContextRegistration = errors.New("webtransport: duplicate datagram context registration")

	// ErrBadContextPayload is returned when a peer sends a datagram
	// context registration with non-empty format-additional-data, or
	// closes a context unexpectedly.
	ErrBadContextPayload = errors.New("webtransport: bad application payload on datagram context")

	// ErrSessionClosed is returned by OpenOutgoingBidiStream,
	// OpenOutgoingUniStream and SendOrQueueDatagram once the session's
	// close has been notified to the visitor.
	ErrSessionClosed = errors.New("webtransport: session is closed")
)
