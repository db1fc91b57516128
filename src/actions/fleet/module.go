package fleet

import (
	"context"
	"fmt"

	"github.com/stake-plus/catchfleet/src/actions/core"
	"github.com/stake-plus/catchfleet/src/fleet"
)

var _ core.Module = (*Module)(nil)

// Module restores the fleet on start and stops every unit on shutdown.
type Module struct {
	supervisor *fleet.Supervisor
	restore    bool
}

func NewModule(sup *fleet.Supervisor, restore bool) *Module {
	return &Module{supervisor: sup, restore: restore}
}

func (m *Module) Name() string { return "fleet" }

func (m *Module) Start(ctx context.Context) error {
	if !m.restore {
		return nil
	}
	if _, err := m.supervisor.RestoreOnBoot(ctx); err != nil {
		return fmt.Errorf("restore: %w", err)
	}
	return nil
}

func (m *Module) Stop(ctx context.Context) {
	m.supervisor.StopAll(ctx)
}
