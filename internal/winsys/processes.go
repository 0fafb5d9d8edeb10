package winsys

import (
	"strings"

	"github.com/shirou/gopsutil/v3/process"

	"github.com/blackwell-systems/themetool/internal/patcher"
)

// RunningProcess is a live process whose image name is a patcher target.
type RunningProcess struct {
	Target patcher.Target
	PID    int32
}

// processLister is replaced in tests.
var processLister = process.Processes

// RunningTargets lists running processes whose name matches one of targets.
// Hooks only take effect for processes started after installation, so these
// are the processes that still run without the shim.
func RunningTargets(targets []patcher.Target) ([]RunningProcess, error) {
	procs, err := processLister()
	if err != nil {
		return nil, err
	}

	var out []RunningProcess
	for _, p := range procs {
		name, err := p.Name()
		if err != nil {
			continue
		}
		for _, t := range targets {
			if strings.EqualFold(name, string(t)) {
				out = append(out, RunningProcess{Target: t, PID: p.Pid})
				break
			}
		}
	}
	return out, nil
}
