// Package webtransport implements the session core of WebTransport over
// HTTP/3: the per-session state machine, the unidirectional stream preamble
// protocol, datagram context bookkeeping, and the stream-error-code mapping
// between WebTransport and HTTP/3. It does not implement HTTP/3 framing,
// QUIC transport, or the extended CONNECT handshake itself; those are
// supplied by the platform contract in platform.go.
package webtransport
