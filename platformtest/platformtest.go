// Package platformtest is an in-memory implementation of the platform
// contract (webtransport.ConnectStream, DataStream, RawDataStream,
// StreamSource, FlushScope), for exercising the session core without a
// real QUIC connection. It records every call it receives so tests can
// assert on them directly, rather than reimplementing wire encoding.
package platformtest

import (
	"errors"
	"sync"
	"time"

	wt "github.com/slusnys/webtransport"
)

// FlushScope is the no-op packet-flush scope this package hands out. It
// is sufficient to exercise call ordering but not packet coalescing,
// which a real platform would provide.
type FlushScope struct{}

// Close implements wt.FlushScope.
func (FlushScope) Close() error { return nil }

// CloseCall records one CLOSE_WEBTRANSPORT_SESSION-shaped capsule
// observed by WriteCapsule, decoded for convenient assertions.
type CloseCall struct {
	Code    uint32
	Message string
}

// ConnectStream is a fake wt.ConnectStream. The zero value is usable;
// SendDatagramErr and WriteCapsuleErr can be set to inject failures.
type ConnectStream struct {
	mu sync.Mutex

	id StreamID

	Capsules     []wt.Capsule
	CloseCalls   []CloseCall
	FinSent      int
	ResetCode    *wt.HTTP3ErrorCode
	Datagrams    [][]byte
	DatagramCtxs []*uint64
	Registered   map[uint64]bool
	MaxTimeInQ   int // number of SetDatagramMaxTimeInQueue calls

	WriteCapsuleErr error
	SendDatagramErr error
}

// StreamID is a type alias kept local to avoid importing wt just for
// the id type in field declarations above more than once.
type StreamID = wt.StreamID

// NewConnectStream builds a fake connect stream with the given id.
func NewConnectStream(id StreamID) *ConnectStream {
	return &ConnectStream{id: id, Registered: make(map[uint64]bool)}
}

func (c *ConnectStream) StreamID() StreamID { return c.id }

func (c *ConnectStream) WriteCapsule(capsule wt.Capsule) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.WriteCapsuleErr != nil {
		return c.WriteCapsuleErr
	}
	c.Capsules = append(c.Capsules, capsule)
	if capsule.Type == wt.CapsuleTypeCloseWebTransportSession {
		code, msg, err := wt.DecodeCloseWebTransportSession(capsule.Value)
		if err != nil {
			return err
		}
		c.CloseCalls = append(c.CloseCalls, CloseCall{Code: code, Message: msg})
	}
	return nil
}

func (c *ConnectStream) WriteFin() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.FinSent++
	return nil
}

func (c *ConnectStream) ResetStream(code wt.HTTP3ErrorCode) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ResetCode = &code
}

func (c *ConnectStream) SendDatagram(contextID *uint64, payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.SendDatagramErr != nil {
		return c.SendDatagramErr
	}
	c.Datagrams = append(c.Datagrams, payload)
	c.DatagramCtxs = append(c.DatagramCtxs, contextID)
	return nil
}

func (c *ConnectStream) MaxDatagramSize(contextID *uint64) int { return 1200 }

func (c *ConnectStream) SetDatagramMaxTimeInQueue(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.MaxTimeInQ++
}

func (c *ConnectStream) RegisterDatagramContext(contextID uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Registered == nil {
		c.Registered = make(map[uint64]bool)
	}
	c.Registered[contextID] = true
}

func (c *ConnectStream) UnregisterDatagramContext(contextID uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.Registered, contextID)
}

func (c *ConnectStream) FlushScope() wt.FlushScope { return FlushScope{} }

// DataStream is a fake wt.DataStream / wt.RawDataStream.
type DataStream struct {
	mu sync.Mutex

	id StreamID

	Written   []byte
	FinSent   bool
	ResetCode *wt.HTTP3ErrorCode
	StopCode  *wt.HTTP3ErrorCode
	WriteErr  error
}

// NewDataStream builds a fake data stream with the given id.
func NewDataStream(id StreamID) *DataStream {
	return &DataStream{id: id}
}

func (d *DataStream) StreamID() StreamID { return d.id }

func (d *DataStream) ResetStream(code wt.HTTP3ErrorCode) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.ResetCode = &code
}

func (d *DataStream) StopSending(code wt.HTTP3ErrorCode) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.StopCode = &code
}

func (d *DataStream) Write(b []byte) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.WriteErr != nil {
		return 0, d.WriteErr
	}
	d.Written = append(d.Written, b...)
	return len(b), nil
}

func (d *DataStream) WriteFin() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.FinSent = true
	return nil
}

// StreamSource is a fake wt.StreamSource. Outgoing reports whether an id
// was locally initiated; Streams resolves ids to fake DataStreams
// previously registered with Add. Opening a new outgoing stream
// allocates the next id from NextOutgoingBidi/NextOutgoingUni.
type StreamSource struct {
	mu sync.Mutex

	Outgoing map[StreamID]bool
	Streams  map[StreamID]wt.DataStream
	Buffered map[StreamID][]wt.BufferedStream

	CanOpenBidi bool
	CanOpenUni  bool

	NextOutgoingBidi StreamID
	NextOutgoingUni  StreamID

	OpenBidiErr error
	OpenUniErr  error
}

// NewStreamSource builds an empty fake stream source with flow control
// open by default.
func NewStreamSource() *StreamSource {
	return &StreamSource{
		Outgoing:    make(map[StreamID]bool),
		Streams:     make(map[StreamID]wt.DataStream),
		Buffered:    make(map[StreamID][]wt.BufferedStream),
		CanOpenBidi: true,
		CanOpenUni:  true,
	}
}

// BufferStream simulates stream arriving for sessionID before that
// session reached the ready state, for exercising HeadersReceived's
// drain of buffered streams.
func (s *StreamSource) BufferStream(sessionID StreamID, stream wt.DataStream, direction wt.StreamDirection) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Streams[stream.StreamID()] = stream
	s.Buffered[sessionID] = append(s.Buffered[sessionID], wt.BufferedStream{Stream: stream, Direction: direction})
}

func (s *StreamSource) TakeBufferedStreams(sessionID StreamID) []wt.BufferedStream {
	s.mu.Lock()
	defer s.mu.Unlock()
	buffered := s.Buffered[sessionID]
	delete(s.Buffered, sessionID)
	return buffered
}

// Add registers stream as resolvable by id, marking it outgoing if
// outgoing is true.
func (s *StreamSource) Add(stream wt.DataStream, outgoing bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Streams[stream.StreamID()] = stream
	s.Outgoing[stream.StreamID()] = outgoing
}

// Remove simulates a stream being reset between being announced and
// being polled for: ResolveStream will report it missing thereafter.
func (s *StreamSource) Remove(id StreamID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.Streams, id)
}

func (s *StreamSource) IsOutgoingStreamID(id StreamID, role wt.Role) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Outgoing[id]
}

func (s *StreamSource) ResolveStream(id StreamID) (wt.DataStream, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stream, ok := s.Streams[id]
	return stream, ok
}

func (s *StreamSource) CanOpenNextOutgoingBidiStream() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.CanOpenBidi
}

func (s *StreamSource) CanOpenNextOutgoingUniStream() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.CanOpenUni
}

func (s *StreamSource) OpenOutgoingBidiStream() (wt.DataStream, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.OpenBidiErr != nil {
		return nil, s.OpenBidiErr
	}
	id := s.NextOutgoingBidi
	s.NextOutgoingBidi++
	stream := NewDataStream(id)
	s.Streams[id] = stream
	s.Outgoing[id] = true
	return stream, nil
}

func (s *StreamSource) OpenOutgoingUniStream() (wt.DataStream, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.OpenUniErr != nil {
		return nil, s.OpenUniErr
	}
	id := s.NextOutgoingUni
	s.NextOutgoingUni++
	stream := NewDataStream(id)
	s.Streams[id] = stream
	s.Outgoing[id] = true
	return stream, nil
}

// ErrInjected is a sentinel error tests can inject via OpenBidiErr etc.
var ErrInjected = errors.New("platformtest: injected failure")
