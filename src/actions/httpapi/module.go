package httpapi

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"time"

	"github.com/stake-plus/catchfleet/src/actions/core"
)

var _ core.Module = (*Module)(nil)

const shutdownTimeout = 10 * time.Second

// Module serves the control surface.
type Module struct {
	srv  *http.Server
	done chan struct{}
}

func NewModule(addr string, handler http.Handler) *Module {
	return &Module{
		srv: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}
}

func (m *Module) Name() string { return "http" }

// Start binds the listener synchronously so address errors surface here.
func (m *Module) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", m.srv.Addr)
	if err != nil {
		return err
	}
	m.done = make(chan struct{})
	go func() {
		defer close(m.done)
		log.Printf("http: listening on %s", ln.Addr())
		if err := m.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("http: serve: %v", err)
		}
	}()
	return nil
}

func (m *Module) Stop(ctx context.Context) {
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := m.srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("http: shutdown: %v", err)
	}
	if m.done != nil {
		<-m.done
	}
}
