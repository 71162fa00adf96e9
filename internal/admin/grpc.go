package admin

import (
	"fmt"
	"net"
	"sync"
	"sync/atomic"

	"google.golang.org/grpc"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/banshee-data/autoaim/internal/monitoring"
)

// GRPCServer serves the health service.
type GRPCServer struct {
	addr     string
	health   *Health
	server   *grpc.Server
	listener net.Listener
	running  atomic.Bool
	wg       sync.WaitGroup
}

// NewGRPCServer prepares a server for addr; Start binds it.
func NewGRPCServer(addr string, h *Health) *GRPCServer {
	return &GRPCServer{addr: addr, health: h}
}

// Start binds the listener and serves in the background.
func (g *GRPCServer) Start() error {
	if g.running.Load() {
		return fmt.Errorf("grpc server already running")
	}
	lis, err := net.Listen("tcp", g.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", g.addr, err)
	}
	g.listener = lis
	g.server = grpc.NewServer()
	healthpb.RegisterHealthServer(g.server, g.health.Server())
	g.running.Store(true)

	g.wg.Add(1)
	go func() {
		defer g.wg.Done()
		monitoring.Logf("[admin] gRPC health listening on %s", lis.Addr())
		if err := g.server.Serve(lis); err != nil && g.running.Load() {
			monitoring.Logf("[admin] gRPC server error: %v", err)
		}
	}()
	return nil
}

// Addr is the bound address, useful when addr asked for port 0.
func (g *GRPCServer) Addr() string {
	if g.listener == nil {
		return g.addr
	}
	return g.listener.Addr().String()
}

// Stop drains in-flight calls and waits for Serve to return.
func (g *GRPCServer) Stop() {
	if !g.running.Swap(false) {
		return
	}
	g.health.Shutdown()
	g.server.GracefulStop()
	g.wg.Wait()
	monitoring.Logf("[admin] gRPC server stopped")
}
