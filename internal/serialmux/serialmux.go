// Package serialmux drives the aim-command link to the gimbal controller.
//
// A SerialMux owns one serial port: outbound commands are serialised
// through SendCommand, inbound lines (acknowledgements and gimbal feedback)
// fan out to subscribers. AimPublisher turns pipeline frame results into
// aim lines and is the pipeline's PublishSink for the link.
package serialmux

import (
	"bufio"
	"context"
	crand "crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"tailscale.com/tsweb"

	"github.com/banshee-data/autoaim/internal/httputil"
)

var ErrWriteFailed = errors.New("failed to write to serial port")

// SerialMux multiplexes a single serial port between one writer path and
// many line subscribers.
type SerialMux[T SerialPorter] struct {
	port         T
	subscribers  map[string]chan string
	subscriberMu sync.Mutex
	commandMu    sync.Mutex
	closing      bool
	closingMu    sync.Mutex

	lastMu      sync.Mutex
	lastCommand string
	lastInbound string
	feedback    Feedback
}

// SerialMuxInterface is implemented by SerialMux and DisabledSerialMux.
type SerialMuxInterface interface {
	// Subscribe returns a channel of inbound lines and its ID.
	Subscribe() (string, chan string)
	Unsubscribe(string)
	SendCommand(string) error
	// Monitor reads lines until ctx is done or the port fails.
	Monitor(context.Context) error
	Close() error
	// Status reports the last command written and the last line read.
	Status() LinkStatus
	AttachAdminRoutes(*tsweb.DebugHandler)
}

// LinkStatus is the admin view of the link.
type LinkStatus struct {
	Enabled     bool     `json:"enabled"`
	LastCommand string   `json:"last_command,omitempty"`
	LastInbound string   `json:"last_inbound,omitempty"`
	Feedback    Feedback `json:"feedback"`
	Subscribers int      `json:"subscribers"`
}

// NewSerialMux wraps port.
func NewSerialMux[T SerialPorter](port T) *SerialMux[T] {
	return &SerialMux[T]{
		port:        port,
		subscribers: make(map[string]chan string),
	}
}

// randomID returns 8 random bytes hex encoded.
func randomID() string {
	b := make([]byte, 8)
	crand.Read(b)
	return hex.EncodeToString(b)
}

func (s *SerialMux[T]) Subscribe() (string, chan string) {
	id := randomID()
	ch := make(chan string, 16)
	s.subscriberMu.Lock()
	defer s.subscriberMu.Unlock()
	s.subscribers[id] = ch
	return id, ch
}

// Unsubscribe closes and removes a subscriber.
func (s *SerialMux[T]) Unsubscribe(id string) {
	s.subscriberMu.Lock()
	defer s.subscriberMu.Unlock()
	if ch, ok := s.subscribers[id]; ok {
		close(ch)
		delete(s.subscribers, id)
	}
}

// SendCommand writes one newline-terminated command.
func (s *SerialMux[T]) SendCommand(command string) error {
	if !strings.HasSuffix(command, "\n") {
		command += "\n"
	}
	s.commandMu.Lock()
	n, err := s.port.Write([]byte(command))
	s.commandMu.Unlock()
	if err != nil {
		return err
	}
	if n != len(command) {
		return ErrWriteFailed
	}

	s.lastMu.Lock()
	s.lastCommand = strings.TrimSuffix(command, "\n")
	s.lastMu.Unlock()
	return nil
}

// Monitor reads lines from the port, records gimbal feedback, and fans
// every line out to subscribers without blocking on slow readers.
func (s *SerialMux[T]) Monitor(ctx context.Context) error {
	scan := bufio.NewScanner(s.port)

	lineChan := make(chan string)
	scanErrChan := make(chan error, 1)

	// Scan blocks on the port, so it runs apart from the cancellation loop.
	go func() {
		defer close(lineChan)
		for scan.Scan() {
			select {
			case lineChan <- scan.Text():
			case <-ctx.Done():
				return
			}
		}
		if err := scan.Err(); err != nil {
			select {
			case scanErrChan <- err:
			case <-ctx.Done():
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case err := <-scanErrChan:
			if s.isClosing() {
				return nil
			}
			return err

		case line, ok := <-lineChan:
			if !ok {
				select {
				case err := <-scanErrChan:
					if !s.isClosing() {
						return err
					}
				default:
				}
				return nil
			}
			if s.isClosing() {
				return nil
			}
			s.record(line)

			s.subscriberMu.Lock()
			for _, ch := range s.subscribers {
				select {
				case ch <- line:
				default:
				}
			}
			s.subscriberMu.Unlock()
		}
	}
}

func (s *SerialMux[T]) record(line string) {
	s.lastMu.Lock()
	defer s.lastMu.Unlock()
	s.lastInbound = line
	if err := s.feedback.Apply(line); err != nil {
		logf("serial: %v", err)
	}
}

func (s *SerialMux[T]) isClosing() bool {
	s.closingMu.Lock()
	defer s.closingMu.Unlock()
	return s.closing
}

// Status implements SerialMuxInterface.
func (s *SerialMux[T]) Status() LinkStatus {
	s.subscriberMu.Lock()
	n := len(s.subscribers)
	s.subscriberMu.Unlock()

	s.lastMu.Lock()
	defer s.lastMu.Unlock()
	return LinkStatus{
		Enabled:     true,
		LastCommand: s.lastCommand,
		LastInbound: s.lastInbound,
		Feedback:    s.feedback,
		Subscribers: n,
	}
}

// Close closes every subscriber and the port.
func (s *SerialMux[T]) Close() error {
	s.closingMu.Lock()
	s.closing = true
	s.closingMu.Unlock()

	s.subscriberMu.Lock()
	for id, ch := range s.subscribers {
		close(ch)
		delete(s.subscribers, id)
	}
	s.subscriberMu.Unlock()
	return s.port.Close()
}

// AttachAdminRoutes mounts link status, a raw command endpoint, and an SSE
// tail of inbound lines on the debug handler.
func (s *SerialMux[T]) AttachAdminRoutes(debug *tsweb.DebugHandler) {
	debug.HandleFunc("serial", "aim link status", func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteJSONOK(w, s.Status())
	})

	debug.HandleSilentFunc("serial-send", func(w http.ResponseWriter, r *http.Request) {
		if !httputil.RequireMethod(w, r, http.MethodPost) {
			return
		}
		command := strings.TrimSpace(r.FormValue("command"))
		if command == "" {
			httputil.BadRequest(w, "missing command")
			return
		}
		if err := s.SendCommand(command); err != nil {
			httputil.InternalServerError(w, fmt.Sprintf("write command: %v", err))
			return
		}
		httputil.WriteJSONOK(w, map[string]string{"written": command})
	})

	debug.HandleSilentFunc("serial-tail", func(w http.ResponseWriter, r *http.Request) {
		serveTail(w, r, s)
	})
}
