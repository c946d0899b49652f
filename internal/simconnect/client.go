package simconnect

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"syscall"
	"time"
)

const (
	// closeWriteTimeout bounds the best-effort CLOSE message on shutdown.
	closeWriteTimeout   = 500 * time.Millisecond
	// defaultWriteTimeout applies when Config.Timeout is unset.
	defaultWriteTimeout = 5 * time.Second
)

// Config holds SimConnect client configuration.
type Config struct {
	Host    string
	Port    int
	Timeout time.Duration
	AppName string
}

// ConnectionState represents the client's connection lifecycle.
type ConnectionState int32

const (
	StateDisconnected ConnectionState = iota
	StateConnecting
	StateConnected
)

// Client manages a TCP connection to SimConnect. It implements Transport.
type Client struct {
	config Config
	conn   net.Conn
	state  atomic.Int32
	mu     sync.Mutex
	nextID atomic.Uint32
}

// NewClient creates a new SimConnect client.
func NewClient(cfg Config) *Client {
	c := &Client{config: cfg}
	c.state.Store(int32(StateDisconnected))
	return c
}

// Dialer returns a DialFunc that opens a new Client for every connection attempt.
func Dialer(cfg Config) DialFunc {
	return func(ctx context.Context) (Transport, error) {
		c := NewClient(cfg)
		if err := c.Connect(ctx); err != nil {
			return nil, err
		}
		return c, nil
	}
}

// State returns the current connection state.
func (c *Client) State() ConnectionState {
	return ConnectionState(c.state.Load())
}

// Connect establishes a TCP connection and sends the OPEN message.
func (c *Client) Connect(ctx context.Context) error {
	addr := net.JoinHostPort(c.config.Host, fmt.Sprint(c.config.Port))
	dialer := net.Dialer{Timeout: c.config.Timeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("simconnect dial %s: %w", addr, classifyDialError(err))
	}
	if err := c.connectWithConn(ctx, conn); err != nil {
		_ = conn.Close()
		return err
	}
	return nil
}

// classifyDialError tags refused and timed out dials with ErrConnectionRefused
// and ErrTimeout, keeping the original error in the chain.
func classifyDialError(err error) error {
	var netErr net.Error
	switch {
	case errors.Is(err, syscall.ECONNREFUSED):
		return fmt.Errorf("%w: %w", ErrConnectionRefused, err)
	case errors.As(err, &netErr) && netErr.Timeout():
		return fmt.Errorf("%w: %w", ErrTimeout, err)
	default:
		return err
	}
}

// connectWithConn performs the connection handshake on an existing net.Conn.
// This is separated from Connect to allow testing with net.Pipe().
func (c *Client) connectWithConn(ctx context.Context, conn net.Conn) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("simconnect connect: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.state.Store(int32(StateConnecting))
	c.conn = conn

	// OPEN payload: null-terminated app name
	appNameBytes := append([]byte(c.config.AppName), 0)
	if err := c.sendMessageLocked(MsgOpen, appNameBytes, c.writeTimeout()); err != nil {
		c.conn = nil
		c.state.Store(int32(StateDisconnected))
		return fmt.Errorf("simconnect open: %w", err)
	}

	c.state.Store(int32(StateConnected))
	return nil
}

// Close sends a CLOSE message and shuts down the TCP connection.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return nil
	}

	// Best-effort CLOSE; the peer may already be gone.
	_ = c.sendMessageLocked(MsgClose, nil, min(closeWriteTimeout, c.writeTimeout()))

	err := c.conn.Close()
	c.conn = nil
	c.state.Store(int32(StateDisconnected))
	return err
}

// sendMessage sends a framed message (header + payload) over the connection.
// Thread-safe: acquires the mutex.
func (c *Client) sendMessage(msgType uint32, payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sendMessageLocked(msgType, payload, c.writeTimeout())
}

// sendMessageLocked sends a message; caller must hold c.mu. The write fails
// if the peer does not accept it within timeout, so a stalled peer never
// holds c.mu indefinitely.
func (c *Client) sendMessageLocked(msgType uint32, payload []byte, timeout time.Duration) error {
	if c.conn == nil {
		return ErrNotConnected
	}
	if err := c.conn.SetWriteDeadline(time.Now().Add(timeout)); err != nil {
		return fmt.Errorf("set write deadline: %w", err)
	}

	id := c.nextID.Add(1)
	frame := append(EncodeHeader(msgType, id, len(payload)), payload...)
	if _, err := c.conn.Write(frame); err != nil {
		return fmt.Errorf("write message: %w", err)
	}
	return nil
}

func (c *Client) writeTimeout() time.Duration {
	if c.config.Timeout > 0 {
		return c.config.Timeout
	}
	return defaultWriteTimeout
}

// ReadNext reads the next complete framed message from the SimConnect connection.
func (c *Client) ReadNext() (Header, []byte, error) {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return Header{}, nil, ErrNotConnected
	}
	return readMessage(conn)
}

// readMessage reads a complete framed message from r.
func readMessage(r io.Reader) (Header, []byte, error) {
	headerBuf := make([]byte, HeaderSize)
	if _, err := io.ReadFull(r, headerBuf); err != nil {
		return Header{}, nil, fmt.Errorf("read header: %w", err)
	}

	h, err := DecodeHeader(headerBuf)
	if err != nil {
		return Header{}, nil, err
	}

	payloadSize := h.Size - HeaderSize
	if payloadSize == 0 {
		return h, nil, nil
	}

	payload := make([]byte, payloadSize)
	if _, err := io.ReadFull(r, payload); err != nil {
		return Header{}, nil, fmt.Errorf("read payload: %w", err)
	}
	return h, payload, nil
}

// AddToDataDefinition sends an ADD_TO_DATA_DEFINITION message to register
// a SimVar with the given definition ID.
func (c *Client) AddToDataDefinition(defID uint32, simvar SimVarDef) error {
	// Payload layout:
	//   defID        uint32 (4 bytes)
	//   varName      null-terminated string (variable length)
	//   unitName     null-terminated string (variable length)
	//   dataType     uint32 (4 bytes)
	varName := append([]byte(simvar.Name), 0)
	unitName := append([]byte(simvar.Unit), 0)

	payload := make([]byte, 0, 4+len(varName)+len(unitName)+4)
	payload = binary.LittleEndian.AppendUint32(payload, defID)
	payload = append(payload, varName...)
	payload = append(payload, unitName...)
	payload = binary.LittleEndian.AppendUint32(payload, uint32(simvar.DataType)) //nolint:gosec // DataType is a small enum value, conversion is safe

	return c.sendMessage(MsgAddToDataDef, payload)
}

// RequestDataOnSimObject asks for data on one object, sent at the given period.
func (c *Client) RequestDataOnSimObject(requestID, defID, objectID uint32, period Period) error {
	// Payload layout:
	//   requestID    uint32
	//   defID        uint32
	//   objectID     uint32
	//   period       uint32
	//   flags        uint32
	payload := make([]byte, 0, 20)
	payload = binary.LittleEndian.AppendUint32(payload, requestID)
	payload = binary.LittleEndian.AppendUint32(payload, defID)
	payload = binary.LittleEndian.AppendUint32(payload, objectID)
	payload = binary.LittleEndian.AppendUint32(payload, uint32(period))
	payload = binary.LittleEndian.AppendUint32(payload, 0)

	return c.sendMessage(MsgRequestData, payload)
}

// RequestDataOnSimObjectType asks once for data on every object of a type
// within radius meters of the user aircraft.
func (c *Client) RequestDataOnSimObjectType(requestID, defID, radius, objectType uint32) error {
	payload := make([]byte, 0, 16)
	payload = binary.LittleEndian.AppendUint32(payload, requestID)
	payload = binary.LittleEndian.AppendUint32(payload, defID)
	payload = binary.LittleEndian.AppendUint32(payload, radius)
	payload = binary.LittleEndian.AppendUint32(payload, objectType)

	return c.sendMessage(MsgRequestDataByType, payload)
}

// SubscribeToSystemEvent subscribes eventID to the named system event.
func (c *Client) SubscribeToSystemEvent(eventID uint32, name string) error {
	payload := make([]byte, 0, 4+len(name)+1)
	payload = binary.LittleEndian.AppendUint32(payload, eventID)
	payload = append(payload, name...)
	payload = append(payload, 0)

	return c.sendMessage(MsgSubscribeSystemEvent, payload)
}

// RequestSystemState asks for the named system state.
func (c *Client) RequestSystemState(requestID uint32, state string) error {
	payload := make([]byte, 0, 4+len(state)+1)
	payload = binary.LittleEndian.AppendUint32(payload, requestID)
	payload = append(payload, state...)
	payload = append(payload, 0)

	return c.sendMessage(MsgRequestSystemState, payload)
}
