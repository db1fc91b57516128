package actions

import (
	"context"
	"fmt"
	"log"
	"net/http"

	fleetmodule "github.com/stake-plus/catchfleet/src/actions/fleet"
	httpmodule "github.com/stake-plus/catchfleet/src/actions/httpapi"
	"github.com/stake-plus/catchfleet/src/fleet"
)

// Deps is what the long-running modules are built from.
type Deps struct {
	Supervisor *fleet.Supervisor
	Handler    http.Handler
	Addr       string
	// Restore restarts previously live accounts when the fleet module starts.
	Restore bool
}

// StartAll wires the fleet and the control surface and starts them. The
// fleet goes first so the API never serves against an unrestored registry.
func StartAll(ctx context.Context, deps Deps) (*Manager, error) {
	if deps.Supervisor == nil {
		return nil, fmt.Errorf("actions: supervisor is required")
	}
	mgr := NewManager(fleetmodule.NewModule(deps.Supervisor, deps.Restore))

	if deps.Handler != nil {
		if err := mgr.Add(httpmodule.NewModule(deps.Addr, deps.Handler)); err != nil {
			return nil, fmt.Errorf("actions: add http module: %w", err)
		}
	} else {
		log.Printf("actions: http module disabled")
	}

	if err := mgr.Start(ctx); err != nil {
		return nil, err
	}
	return mgr, nil
}
