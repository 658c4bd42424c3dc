package stager

import (
	"context"
	"fmt"
	"os"

	"github.com/mitchellh/go-ps"
)

// Terminator stops running processes by executable name.
type Terminator interface {
	TerminateByName(ctx context.Context, name string) (int, error)
}

// ProcessTerminator kills processes found through the OS process table.
type ProcessTerminator struct{}

// TerminateByName kills every process except the current one whose executable
// equals name and returns how many were killed.
func (ProcessTerminator) TerminateByName(_ context.Context, name string) (int, error) {
	processList, err := ps.Processes()
	if err != nil {
		return 0, fmt.Errorf("list processes: %w", err)
	}

	thisProcessID := os.Getpid()
	killed := 0

	for _, process := range processList {
		if process.Pid() == thisProcessID || process.Executable() != name {
			continue
		}

		runningProcess, findErr := os.FindProcess(process.Pid())
		if findErr != nil {
			return killed, fmt.Errorf("find process %d: %w", process.Pid(), findErr)
		}

		if killErr := runningProcess.Kill(); killErr != nil {
			return killed, fmt.Errorf("kill process %d: %w", process.Pid(), killErr)
		}

		killed++
	}

	return killed, nil
}
