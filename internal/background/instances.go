package background

import (
	"fmt"

	"github.com/shirou/gopsutil/v3/process"
)

// FindOtherInstances scans the process table for other processes named
// executableName, excluding currentPID. The daemon's commands do not
// call it.
func FindOtherInstances(executableName string, currentPID int32) ([]int32, error) {
	processes, err := process.Processes()
	if err != nil {
		return nil, fmt.Errorf("background: could not list processes: %w", err)
	}

	var found []int32
	for _, p := range processes {
		if p.Pid == currentPID {
			continue
		}
		name, err := p.Name()
		if err != nil {
			continue
		}
		if name == executableName {
			found = append(found, p.Pid)
		}
	}
	return found, nil
}
