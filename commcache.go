package ncclpg

import (
	"strconv"

	"github.com/gocollective/ncclpg/collective"
	"github.com/gocollective/ncclpg/device"
	"github.com/gocollective/ncclpg/ncclerr"
	"go.uber.org/zap"
)

// getComm does keyed creation/reuse of a per-device-set communicator
// bundle, rendezvousing a fresh backend unique-id through the store the
// first time a device set is seen.
func (pg *ProcessGroup) getComm(key string, devices []int) ([]collective.Communicator, error) {
	if key == "" {
		return nil, ncclerr.New(ncclerr.InvalidArgument, "device-set key is empty")
	}

	pg.mu.Lock()
	for _, idx := range devices {
		pg.usedDeviceIdxs[idx] = true
	}
	if bundle, ok := pg.devCommMap[key]; ok {
		pg.mu.Unlock()
		return bundle, nil
	}
	pg.mu.Unlock()

	id, err := pg.broadcastUniqueID()
	if err != nil {
		return nil, err
	}

	worldSize := pg.size * pg.numDevices
	bundle := make([]collective.Communicator, len(devices))
	streams := make([]device.Stream, len(devices))

	if err := pg.backend.GroupStart(); err != nil {
		return nil, ncclerr.Wrap(ncclerr.BackendError, err, "group start")
	}
	groupErr := func() error {
		for i, idx := range devices {
			if err := pg.runtime.WithDevice(idx, func() error {
				worldRank := pg.rank*pg.numDevices + i
				comm, err := pg.backend.CreateCommunicator(worldSize, worldRank, id)
				if err != nil {
					return ncclerr.Wrap(ncclerr.BackendError, err, "create communicator for device %d", idx)
				}
				bundle[i] = comm
				s, err := pg.runtime.NewStream(idx)
				if err != nil {
					return ncclerr.Wrap(ncclerr.BackendError, err, "draw stream for device %d", idx)
				}
				streams[i] = s
				return nil
			}); err != nil {
				return err
			}
		}
		return nil
	}()
	if err := pg.backend.GroupEnd(); err != nil && groupErr == nil {
		groupErr = ncclerr.Wrap(ncclerr.BackendError, err, "group end")
	}
	if groupErr != nil {
		return nil, groupErr
	}

	events := make([]device.Event, len(devices))
	for i := range devices {
		e, err := pg.runtime.NewEvent()
		if err != nil {
			return nil, ncclerr.Wrap(ncclerr.BackendError, err, "allocate event for device %d", devices[i])
		}
		events[i] = e
	}

	pg.mu.Lock()
	pg.devCommMap[key] = bundle
	pg.streamMap[key] = streams
	pg.eventMap[key] = events
	for _, c := range bundle {
		pg.idToCommMap[c.ID().HexString()] = bundle
	}
	pg.mu.Unlock()

	pg.log.Debug("created communicator bundle", zap.String("key", key), zap.Int("devices", len(devices)))
	return bundle, nil
}

// broadcastUniqueID has rank 0 generate a fresh backend unique-id and
// publish it under a monotonically increasing store key; other ranks
// block-read that key.
func (pg *ProcessGroup) broadcastUniqueID() (collective.UniqueID, error) {
	pg.mu.Lock()
	counterKey := strconv.FormatInt(pg.commCounter, 10)
	pg.commCounter++
	pg.mu.Unlock()

	if pg.rank == 0 {
		id, err := pg.backend.NewUniqueID()
		if err != nil {
			return collective.UniqueID{}, ncclerr.Wrap(ncclerr.BackendError, err, "generate unique id")
		}
		if err := pg.store.Set(counterKey, id[:]); err != nil {
			return collective.UniqueID{}, ncclerr.Wrap(ncclerr.InvalidState, err, "publish unique id under key %q", counterKey)
		}
		return id, nil
	}

	if err := pg.store.Wait([]string{counterKey}, pg.opts.OpTimeout); err != nil {
		return collective.UniqueID{}, ncclerr.Wrap(ncclerr.TimedOut, err, "await rank 0's unique id under key %q", counterKey)
	}
	raw, err := pg.store.Get(counterKey)
	if err != nil {
		return collective.UniqueID{}, ncclerr.Wrap(ncclerr.InvalidState, err, "read unique id under key %q", counterKey)
	}
	if len(raw) != collective.UniqueIDBytes {
		return collective.UniqueID{}, ncclerr.New(ncclerr.InvalidState, "unique id payload is %d bytes, expected %d", len(raw), collective.UniqueIDBytes)
	}
	var id collective.UniqueID
	copy(id[:], raw)
	return id, nil
}
