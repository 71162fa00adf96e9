package serialmux

import (
	"fmt"
	"net/http"

	"github.com/banshee-data/autoaim/internal/httputil"
	"github.com/banshee-data/autoaim/internal/monitoring"
)

func logf(format string, args ...interface{}) {
	monitoring.Logf(format, args...)
}

type subscriber interface {
	Subscribe() (string, chan string)
	Unsubscribe(string)
}

// serveTail streams inbound lines as server-sent events until the client
// goes away or the link closes.
func serveTail(w http.ResponseWriter, r *http.Request, s subscriber) {
	if !httputil.RequireMethod(w, r, http.MethodGet) {
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		httputil.InternalServerError(w, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	id, c := s.Subscribe()
	defer s.Unsubscribe(id)

	w.Write([]byte(": ping\n\n"))
	flusher.Flush()

	for {
		select {
		case payload, ok := <-c:
			if !ok {
				return
			}
			if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ClassifyPayload(payload), payload); err != nil {
				return
			}
			flusher.Flush()
		case <-r.Context().Done():
			return
		}
	}
}
