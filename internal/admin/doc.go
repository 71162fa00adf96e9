// Package admin exposes the running aimer to operators.
//
// HTTP debug routes are mounted under /debug/ with tailscale.com/tsweb and
// are reachable only from loopback or the tailnet. A gRPC health service
// reports the process as SERVING while the pipeline runs and the tracker
// service as SERVING only while a target is held in TRACKING.
package admin
