package admin

import (
	"fmt"
	"net/http"

	"tailscale.com/tsweb"

	"github.com/banshee-data/autoaim/internal/aim/l4tracker"
	"github.com/banshee-data/autoaim/internal/aim/pipeline"
	"github.com/banshee-data/autoaim/internal/config"
	"github.com/banshee-data/autoaim/internal/httputil"
	"github.com/banshee-data/autoaim/internal/monitoring"
	"github.com/banshee-data/autoaim/internal/serialmux"
	"github.com/banshee-data/autoaim/internal/storage/sqlite"
	"github.com/banshee-data/autoaim/internal/version"
)

// LastResulter is satisfied by *pipeline.Pipeline.
type LastResulter interface {
	Last() *pipeline.FrameResult
}

// Routes gathers what the debug pages show. Tracker is required; the rest
// are mounted only when set.
type Routes struct {
	Tracker  *l4tracker.Tracker
	Pipeline LastResulter
	Tuning   *config.TuningConfig
	Health   *Health
	DB       *sqlite.DB
	Link     serialmux.SerialMuxInterface
}

// TrackerStatus is the body of /debug/tracker.
type TrackerStatus struct {
	Snapshot  l4tracker.Snapshot `json:"snapshot"`
	LastFrame *FrameSummary      `json:"last_frame,omitempty"`
}

// FrameSummary is the light view of the most recent frame.
type FrameSummary struct {
	Frame     uint64 `json:"frame"`
	Timestamp int64  `json:"timestamp_ns"`
	Lights    int    `json:"lights"`
	Plates    int    `json:"plates"`
}

// Attach mounts the debug routes on mux.
func (rt Routes) Attach(mux *http.ServeMux) (*tsweb.DebugHandler, error) {
	if rt.Tracker == nil {
		return nil, fmt.Errorf("admin: tracker is required")
	}
	debug := tsweb.Debugger(mux)

	debug.HandleFunc("tracker", "Tracker state and last frame (JSON)", rt.handleTracker)
	debug.HandleFunc("tracker-debug", "Matcher and tracker internals of the last frame (JSON)", rt.handleTrackerDebug)
	debug.HandleSilentFunc("tracker-reset", rt.handleTrackerReset)
	debug.HandleFunc("version", "Build version (JSON)", func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteJSONOK(w, version.Current())
	})

	if rt.Tuning != nil {
		debug.HandleFunc("tuning", "Effective tuning configuration (JSON)", func(w http.ResponseWriter, r *http.Request) {
			httputil.WriteJSONOK(w, rt.Tuning)
		})
	}
	if rt.Health != nil {
		debug.HandleFunc("health", "gRPC health statuses (JSON)", rt.handleHealth)
	}
	if rt.DB != nil {
		if err := rt.DB.AttachAdminRoutes(debug); err != nil {
			return nil, err
		}
	}
	if rt.Link != nil {
		rt.Link.AttachAdminRoutes(debug)
	}
	return debug, nil
}

func (rt Routes) handleTracker(w http.ResponseWriter, r *http.Request) {
	st := TrackerStatus{Snapshot: rt.Tracker.Snapshot()}
	if rt.Pipeline != nil {
		if last := rt.Pipeline.Last(); last != nil {
			st.LastFrame = &FrameSummary{
				Frame:     last.Frame,
				Timestamp: last.Timestamp.UnixNano(),
				Lights:    last.Lights,
				Plates:    last.Plates,
			}
		}
	}
	httputil.WriteJSONOK(w, st)
}

func (rt Routes) handleTrackerDebug(w http.ResponseWriter, r *http.Request) {
	if rt.Pipeline == nil {
		httputil.NotFound(w, "no pipeline attached")
		return
	}
	last := rt.Pipeline.Last()
	if last == nil || last.Debug == nil {
		httputil.NotFound(w, "no debug frame recorded; run with debug collection enabled")
		return
	}
	httputil.WriteJSONOK(w, last.Debug)
}

func (rt Routes) handleTrackerReset(w http.ResponseWriter, r *http.Request) {
	if !httputil.RequireMethod(w, r, http.MethodPost) {
		return
	}
	rt.Tracker.Reset()
	monitoring.Logf("[admin] tracker reset by operator")
	httputil.WriteJSONOK(w, rt.Tracker.Snapshot())
}

func (rt Routes) handleHealth(w http.ResponseWriter, r *http.Request) {
	out := make(map[string]string, 2)
	for _, svc := range []string{"", TrackerService} {
		status, err := rt.Health.Status(r.Context(), svc)
		if err != nil {
			httputil.InternalServerError(w, err.Error())
			return
		}
		name := svc
		if name == "" {
			name = "process"
		}
		out[name] = status.String()
	}
	httputil.WriteJSONOK(w, out)
}
