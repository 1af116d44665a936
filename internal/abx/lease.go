package abx

import (
	"errors"
	"sync"
)

// ErrRunInProgress is returned when a second ingestion run is requested
// for a backup that already has one in flight. Without this guard the
// second run would re-truncate the artifact tables mid-write and corrupt
// the first run's output.
var ErrRunInProgress = errors.New("ingestion run already in progress for backup")

// leaseTable grants at most one in-process ingestion lease per backup.
// Cross-process exclusivity is out of scope: runs are dispatched by a
// single worker process.
type leaseTable struct {
	mu   sync.Mutex
	held map[string]bool
}

func newLeaseTable() *leaseTable {
	return &leaseTable{held: make(map[string]bool)}
}

// acquire takes the lease for backupID, or returns ErrRunInProgress if it
// is already held. The returned release function must be called exactly
// once when the run ends.
func (lt *leaseTable) acquire(backupID string) (release func(), err error) {
	lt.mu.Lock()
	defer lt.mu.Unlock()

	if lt.held[backupID] {
		return nil, ErrRunInProgress
	}
	lt.held[backupID] = true

	return func() {
		lt.mu.Lock()
		defer lt.mu.Unlock()
		delete(lt.held, backupID)
	}, nil
}
