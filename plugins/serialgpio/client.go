package serialgpio

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/tarm/serial"

	"github.com/GeVanCo/pi4j-v2/config"
	"github.com/GeVanCo/pi4j-v2/digital"
)

const (
	// defaultCommandTimeout bounds the wait for a command response.
	defaultCommandTimeout = 2 * time.Second

	// readChunk is how much the read loop pulls off the port at a time.
	// Lines are short; one chunk usually holds several.
	readChunk = 256
)

// Port is the serial transport the client drives. *serial.Port satisfies
// it; tests substitute an in-memory fake.
type Port interface {
	io.ReadWriteCloser
}

// Logger is the logging surface the client needs.
type Logger interface {
	Error(msg string, args ...any)
	Warn(msg string, args ...any)
}

// Client speaks the line protocol over a serial port.
//
// Thread safety: all methods are safe for concurrent use. Commands are
// serialized internally; event watches are invoked on the read goroutine.
//
// There is no automatic reopen: a vanished adapter usually re-enumerates
// under a fresh device path, so recovery is left to the operator.
type Client struct {
	port    Port
	timeout time.Duration

	// One command in flight at a time; the pending command owns resp.
	cmdMu sync.Mutex
	resp  chan string

	connMu    sync.RWMutex
	connected bool

	// Per-address event watches
	watchMu sync.RWMutex
	watches map[int]func(digital.State)

	logger   Logger
	loggerMu sync.RWMutex

	done chan struct{}
	stop sync.Once
	wg   sync.WaitGroup
}

// Open opens the configured serial port and starts the read loop.
func Open(cfg config.SerialConfig) (*Client, error) {
	port, err := serial.OpenPort(&serial.Config{
		Name:        cfg.Port,
		Baud:        cfg.Baud,
		ReadTimeout: time.Duration(cfg.ReadTimeout) * time.Millisecond,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrOpenFailed, cfg.Port, err)
	}
	return newClient(port, defaultCommandTimeout), nil
}

// newClient wires a client over an already-open port.
func newClient(port Port, timeout time.Duration) *Client {
	c := &Client{
		port:      port,
		timeout:   timeout,
		resp:      make(chan string, 1),
		connected: true,
		watches:   make(map[int]func(digital.State)),
		done:      make(chan struct{}),
	}
	c.wg.Add(1)
	go c.readLoop()
	return c
}

// ModeOut claims a pin as an output.
func (c *Client) ModeOut(addr int) error {
	line, err := c.command(formatModeOut(addr))
	if err != nil {
		return err
	}
	return checkAck(line)
}

// ModeIn claims a pin as an input with the given bias.
func (c *Client) ModeIn(addr int, pull digital.Pull) error {
	line, err := c.command(formatModeIn(addr, pull))
	if err != nil {
		return err
	}
	return checkAck(line)
}

// Set drives an output pin to the given level.
func (c *Client) Set(addr int, s digital.State) error {
	line, err := c.command(formatSet(addr, s))
	if err != nil {
		return err
	}
	return checkAck(line)
}

// Get samples a pin.
func (c *Client) Get(addr int) (digital.State, error) {
	line, err := c.command(formatGet(addr))
	if err != nil {
		return digital.Unknown, err
	}
	if strings.HasPrefix(line, respErr) {
		return digital.Unknown, checkAck(line)
	}
	got, s, err := parseState(line)
	if err != nil {
		return digital.Unknown, err
	}
	if got != addr {
		return digital.Unknown, fmt.Errorf("%w: state for pin %d, asked for pin %d", ErrCommandFailed, got, addr)
	}
	return s, nil
}

// Watch registers fn for EVENT lines on addr, replacing any previous
// watch. fn runs on the read goroutine and must not block.
func (c *Client) Watch(addr int, fn func(digital.State)) {
	c.watchMu.Lock()
	c.watches[addr] = fn
	c.watchMu.Unlock()
}

// Unwatch removes the watch for addr.
func (c *Client) Unwatch(addr int) {
	c.watchMu.Lock()
	delete(c.watches, addr)
	c.watchMu.Unlock()
}

// command writes one line and waits for its response line.
func (c *Client) command(verb string) (string, error) {
	if !c.IsConnected() {
		return "", ErrNotConnected
	}

	c.cmdMu.Lock()
	defer c.cmdMu.Unlock()

	// Drop a stale response left behind by a timed-out predecessor.
	select {
	case <-c.resp:
	default:
	}

	if _, err := c.port.Write([]byte(verb + "\n")); err != nil {
		c.handleDisconnect()
		return "", fmt.Errorf("%w: write %q: %w", ErrCommandFailed, verb, err)
	}

	select {
	case line := <-c.resp:
		return line, nil
	case <-time.After(c.timeout):
		return "", fmt.Errorf("%w: no response to %q within %v", ErrCommandTimeout, verb, c.timeout)
	case <-c.done:
		return "", ErrNotConnected
	}
}

// readLoop splits the incoming byte stream into lines and routes them.
// A timed-out read surfaces as io.EOF on serial ports, so EOF alone does
// not end the loop; only Close or a hard read error does.
func (c *Client) readLoop() {
	defer c.wg.Done()

	buf := make([]byte, readChunk)
	var pending []byte

	for {
		select {
		case <-c.done:
			return
		default:
		}

		n, err := c.port.Read(buf)
		if n > 0 {
			pending = append(pending, buf[:n]...)
			for {
				idx := bytes.IndexByte(pending, '\n')
				if idx < 0 {
					break
				}
				line := strings.TrimRight(string(pending[:idx]), "\r")
				pending = pending[idx+1:]
				if line != "" {
					c.handleLine(line)
				}
			}
		}
		if err != nil {
			if c.isClosed() {
				return
			}
			if errors.Is(err, io.EOF) {
				continue
			}
			c.logError("serial read failed", err)
			c.handleDisconnect()
			return
		}
	}
}

// handleLine routes one received line: events to their watch, everything
// else to the pending command.
func (c *Client) handleLine(line string) {
	if addr, s, ok := parseEvent(line); ok {
		c.dispatchEvent(addr, s)
		return
	}

	select {
	case c.resp <- line:
	default:
		c.logWarn("dropping unsolicited response", "line", line)
	}
}

// dispatchEvent invokes the watch for addr, if any. Panics in the watch
// are recovered and logged so the read loop survives.
func (c *Client) dispatchEvent(addr int, s digital.State) {
	c.watchMu.RLock()
	fn := c.watches[addr]
	c.watchMu.RUnlock()

	if fn == nil {
		return
	}

	defer func() {
		if r := recover(); r != nil {
			c.logError("event watch panic", fmt.Errorf("pin %d: %v", addr, r))
		}
	}()
	fn(s)
}

func (c *Client) handleDisconnect() {
	c.connMu.Lock()
	c.connected = false
	c.connMu.Unlock()
}

func (c *Client) isClosed() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

// IsConnected reports whether the port is usable.
func (c *Client) IsConnected() bool {
	c.connMu.RLock()
	defer c.connMu.RUnlock()
	return c.connected
}

// Close stops the read loop and closes the port. Safe to call multiple
// times.
func (c *Client) Close() error {
	c.stop.Do(func() { close(c.done) })
	c.handleDisconnect()

	// Closing the port unblocks a pending read.
	if c.port != nil {
		c.port.Close()
	}

	c.wg.Wait()
	return nil
}

// SetLogger sets the logger for read-loop diagnostics. Pass nil to
// disable logging.
func (c *Client) SetLogger(logger Logger) {
	c.loggerMu.Lock()
	c.logger = logger
	c.loggerMu.Unlock()
}

func (c *Client) logError(msg string, err error) {
	c.loggerMu.RLock()
	logger := c.logger
	c.loggerMu.RUnlock()

	if logger != nil {
		logger.Error(msg, "error", err)
	}
}

func (c *Client) logWarn(msg string, args ...any) {
	c.loggerMu.RLock()
	logger := c.logger
	c.loggerMu.RUnlock()

	if logger != nil {
		logger.Warn(msg, args...)
	}
}
