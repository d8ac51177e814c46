// Package transfer moves one file over one TCP connection. The sender half-closes its
// write side at end of file; the receiver reads until end-of-stream.
package transfer

import (
	"errors"
	"io"
	"sync"
	"sync/atomic"
)

// bufferSize is the read and write buffer used on both ends of the stream.
const bufferSize = 64 * 1024

// DefaultOutput is where a receiver writes when no output path is given.
const DefaultOutput = "out.bin"

// Failure kinds. Returned errors wrap one of these and the underlying cause.
var (
	ErrInvalidInput = errors.New("invalid input file")
	ErrConnect      = errors.New("connect to peer failed")
	ErrBind         = errors.New("bind listener failed")
	ErrAccept       = errors.New("accept connection failed")
	ErrTransfer     = errors.New("transfer failed")
)

// State is the lifecycle position of a session.
type State int32

const (
	StateIdle State = iota
	StateConnecting
	StateTransferring
	StateClosed
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateTransferring:
		return "transferring"
	case StateClosed:
		return "closed"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// session is the state shared by Sender and Receiver. A session runs once.
type session struct {
	// ID identifies the session in logs.
	ID    string
	state atomic.Int32
	bytes atomic.Int64
	once  sync.Once
}

// State reports the current lifecycle state.
func (s *session) State() State { return State(s.state.Load()) }

// Bytes reports how many payload bytes have moved so far.
func (s *session) Bytes() int64 { return s.bytes.Load() }

func (s *session) set(st State) { s.state.Store(int32(st)) }

// begin moves Idle to Connecting. It fails for a session that already ran.
func (s *session) begin() error {
	started := false
	s.once.Do(func() { started = true })
	if !started {
		return errors.New("transfer session already used")
	}
	s.set(StateConnecting)
	return nil
}

// fail records the terminal Failed state and returns err unchanged.
func (s *session) fail(err error) error {
	s.set(StateFailed)
	return err
}

// countingWriter adds every successful write to n.
type countingWriter struct {
	w io.Writer
	n *atomic.Int64
}

func (c countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n.Add(int64(n))
	return n, err
}
