package installer

import (
	"context"
	"errors"
	"fmt"
	"strings"

	domain "github.com/richqaq/pastemd-packager/internal/domain/installer"
	"github.com/richqaq/pastemd-packager/internal/logger"
)

// ErrResidue is returned when uninstall leaves anything behind.
var ErrResidue = errors.New("uninstall left residue")

// Simulation is the outcome of Simulate.
type Simulation struct {
	History []domain.State
	Residue []string
}

// Simulate installs d with every task selected, starts the application so it
// holds its files and writes user data, upgrades over the running instance and
// uninstalls. Any residue afterwards is reported as ErrResidue.
func Simulate(ctx context.Context, d *domain.Descriptor) (*Simulation, error) {
	m := domain.NewMemoryMachine()
	l := domain.NewLifecycle(d, m)

	tasks := make([]string, 0, len(d.Tasks))
	for _, t := range d.Tasks {
		tasks = append(tasks, t.Name)
	}

	run := func() {
		m.StartProcess(d.App.ExeName)
		m.CreateDir(d.UserDataDir())
	}

	steps := []struct {
		name string
		do   func() error
	}{
		{name: "install", do: func() error { return l.Install(ctx, tasks...) }},
		{name: "upgrade", do: func() error {
			run()

			return l.Install(ctx)
		}},
		{name: "uninstall", do: func() error {
			run()

			return l.Uninstall(ctx)
		}},
	}

	sim := &Simulation{}

	for _, s := range steps {
		if err := s.do(); err != nil {
			sim.History = l.History()

			return sim, fmt.Errorf("%s: %w", s.name, err)
		}

		logger.DebugKV(ctx, "Lifecycle step completed", "step", s.name, "state", l.State())
	}

	sim.History = l.History()
	sim.Residue = m.Residue()

	if len(sim.Residue) > 0 {
		return sim, fmt.Errorf("%w: %s", ErrResidue, strings.Join(sim.Residue, "; "))
	}

	return sim, nil
}
