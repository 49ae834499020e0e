package webtransport

// Distinguished application error codes the core passes to
// ConnectStream.ResetStream / DataStream.ResetStream. They are opaque
// integers from the core's point of view; a platform binding them to a
// concrete QUIC stack maps each onto its own application-error-code space
// (e.g. quiche's QuicResetStreamError) when issuing the reset on the wire.
const (
	// CodeSessionGone is applied to every data stream still associated
	// with a session when that session's connect stream tears down.
	CodeSessionGone HTTP3ErrorCode = 0x2944

	// CodeBadApplicationPayload is applied to the connect stream on a
	// peer protocol violation: non-empty format-additional-data on a
	// datagram context registration, or an unexpected context close.
	CodeBadApplicationPayload HTTP3ErrorCode = 0x2945

	// CodeStreamCancelled is applied to the connect stream when the peer
	// attempts to register a datagram context id a second time.
	CodeStreamCancelled HTTP3ErrorCode = 0x2946

	// CodeInternalError is applied when local misuse of the core is
	// detected at a point where the only recovery is tearing down the
	// offending stream, such as re-emitting a unidirectional preamble.
	CodeInternalError HTTP3ErrorCode = 0x2947
)
