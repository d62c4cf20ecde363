// Package infra implements infrastructure concerns (process snapshots,
// filesystem helpers).
package infra

import (
	"github.com/shirou/gopsutil/v3/process"

	"github.com/veilguard/veilguard/internal/domain"
)

// ProcessScannerImpl implements domain.ProcessScanner using gopsutil.
type ProcessScannerImpl struct{}

// NewProcessScanner creates a new process scanner.
func NewProcessScanner() domain.ProcessScanner {
	return &ProcessScannerImpl{}
}

// Snapshot returns pid -> name for every visible process. Processes
// that exit mid-scan are skipped.
func (ps *ProcessScannerImpl) Snapshot() (map[int32]string, error) {
	procs, err := process.Processes()
	if err != nil {
		return nil, err
	}

	snapshot := make(map[int32]string, len(procs))
	for _, p := range procs {
		name, err := p.Name()
		if err != nil {
			continue // Process may have exited
		}
		snapshot[p.Pid] = name
	}
	return snapshot, nil
}

// Ensure ProcessScannerImpl implements domain.ProcessScanner.
var _ domain.ProcessScanner = (*ProcessScannerImpl)(nil)
