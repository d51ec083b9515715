package ncclpg

import (
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/gocollective/ncclpg/collective"
)

const abortedCommKeyPrefix = "NCCLABORTEDCOMM:"

// watchdogLoop is the background task spawned by New and joined by Close:
// it polls every cached communicator for asynchronous errors and fans
// aborts out across ranks through the store.
func (pg *ProcessGroup) watchdogLoop() {
	defer close(pg.watchdogDone)
	for {
		pg.watchdogTick()
		select {
		case <-pg.watchdogStop:
			return
		case <-time.After(pg.opts.WatchdogSleep):
		}
	}
}

func (pg *ProcessGroup) watchdogTick() {
	type snapshot struct {
		id      string
		bundle  []collective.Communicator
		errs    bool
		aborted bool
	}

	pg.mu.Lock()
	snapshots := make([]snapshot, 0, len(pg.idToCommMap))
	for id, bundle := range pg.idToCommMap {
		s := snapshot{id: id, bundle: bundle, aborted: pg.abortedComms[id]}
		for _, c := range bundle {
			if err := c.CheckAsyncError(); err != nil {
				s.errs = true
				break
			}
		}
		snapshots = append(snapshots, s)
	}
	pg.mu.Unlock()

	if !pg.opts.BlockingWait {
		return
	}

	locallyAborted := make(map[string]bool)
	var abortErr error
	for _, s := range snapshots {
		if !s.errs || s.aborted {
			continue
		}
		for _, c := range s.bundle {
			if err := c.Abort(); err != nil {
				abortErr = multierr.Append(abortErr, err)
			}
		}
		pg.markAbortedID(s.id)
		locallyAborted[s.id] = true
	}
	if abortErr != nil {
		pg.log.Warn("errors aborting communicators after async error", zap.Error(abortErr))
	}

	for id := range locallyAborted {
		if err := pg.store.Set(abortedCommKeyPrefix+id, nil); err != nil {
			pg.log.Warn("failed to publish local communicator abort", zap.String("id", id), zap.Error(err))
		}
	}

	for _, s := range snapshots {
		if locallyAborted[s.id] || s.aborted {
			continue
		}
		key := abortedCommKeyPrefix + s.id
		if err := pg.store.Wait([]string{key}, pg.opts.WaitForAbortTimeout); err != nil {
			continue
		}
		for _, c := range s.bundle {
			_ = c.Abort()
		}
		pg.markAbortedID(s.id)
	}
}

// markAborted records a communicator id as locally aborted.
func (pg *ProcessGroup) markAborted(id collective.UniqueID) {
	pg.markAbortedID(id.HexString())
}

func (pg *ProcessGroup) markAbortedID(id string) {
	pg.mu.Lock()
	pg.abortedComms[id] = true
	pg.mu.Unlock()
}
