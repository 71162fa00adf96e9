package serialmux

import (
	"context"
	"net/http"
	"sync"

	"tailscale.com/tsweb"

	"github.com/banshee-data/autoaim/internal/httputil"
)

// DisabledSerialMux stands in when no aim link is configured. Commands are
// accepted and dropped; subscribers are tracked so Close unblocks them.
type DisabledSerialMux struct {
	mu          sync.Mutex
	subscribers map[string]chan string
	closing     bool
	sent        int
}

var (
	_ SerialMuxInterface = (*DisabledSerialMux)(nil)
	_ SerialMuxInterface = (*SerialMux[SerialPorter])(nil)
)

func NewDisabledSerialMux() *DisabledSerialMux {
	return &DisabledSerialMux{subscribers: make(map[string]chan string)}
}

func (d *DisabledSerialMux) Subscribe() (string, chan string) {
	id := randomID()
	ch := make(chan string)

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closing {
		close(ch)
		return id, ch
	}
	d.subscribers[id] = ch
	return id, ch
}

func (d *DisabledSerialMux) Unsubscribe(id string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if ch, ok := d.subscribers[id]; ok {
		close(ch)
		delete(d.subscribers, id)
	}
}

func (d *DisabledSerialMux) SendCommand(string) error {
	d.mu.Lock()
	d.sent++
	d.mu.Unlock()
	return nil
}

func (d *DisabledSerialMux) Monitor(ctx context.Context) error {
	<-ctx.Done()
	return ctx.Err()
}

func (d *DisabledSerialMux) Status() LinkStatus {
	d.mu.Lock()
	defer d.mu.Unlock()
	return LinkStatus{Subscribers: len(d.subscribers)}
}

func (d *DisabledSerialMux) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closing {
		return nil
	}
	d.closing = true
	for id, ch := range d.subscribers {
		close(ch)
		delete(d.subscribers, id)
	}
	return nil
}

func (d *DisabledSerialMux) AttachAdminRoutes(debug *tsweb.DebugHandler) {
	debug.HandleFunc("serial", "aim link status (disabled)", func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteJSONOK(w, d.Status())
	})
}
