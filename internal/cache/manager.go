package cache

import (
	"sync"

	"github.com/vexfs-project/vexfs-core/internal/block"
	"github.com/vexfs-project/vexfs-core/internal/clock"
	"github.com/vexfs-project/vexfs-core/internal/types"
	"github.com/vexfs-project/vexfs-core/internal/vexerrors"
)

// WriteMode selects whether WriteBlock writes through to the device
// immediately or defers to periodic Sync.
type WriteMode int

const (
	WriteThrough WriteMode = iota
	WriteBack
)

// Manager wraps a Discipline with write-mode semantics and periodic
// sync, matching the cache's write-through/write-back contract.
type Manager struct {
	mu           sync.Mutex
	disc         Discipline
	marker       dirtyMarker
	device       block.Device
	clock        clock.Clock
	mode         WriteMode
	syncInterval uint64
	lastSync     uint64
}

// NewManager constructs a Manager over an Adaptive discipline by
// default, matching the engine's top-level cache configuration.
func NewManager(dev block.Device, c clock.Clock, maxEntries int, mode WriteMode, syncIntervalSeconds uint64) *Manager {
	adaptive := NewAdaptive(maxEntries)
	return &Manager{
		disc:         adaptive,
		marker:       adaptive,
		device:       dev,
		clock:        c,
		mode:         mode,
		syncInterval: syncIntervalSeconds,
	}
}

func (m *Manager) now() uint64 { return uint64(m.clock.Now().Unix()) }

// ReadBlock serves block from cache, falling back to the device on a
// miss and populating the cache with the result.
func (m *Manager) ReadBlock(b types.BlockNumber) ([]byte, error) {
	now := m.now()
	if data, ok := m.disc.Get(b, now); ok {
		return data, nil
	}
	data, err := m.device.ReadBlock(b)
	if err != nil {
		return nil, err
	}
	_ = m.disc.Insert(b, data, now)
	return data, nil
}

// WriteBlock writes data for block b. In write-through mode this method
// writes the device itself and then inserts the entry as Clean; in
// write-back mode the entry is marked Dirty and only reaches the device
// at the next Sync.
func (m *Manager) WriteBlock(b types.BlockNumber, data []byte) error {
	now := m.now()
	switch m.mode {
	case WriteThrough:
		if err := m.device.WriteBlock(b, data); err != nil {
			return err
		}
		return m.disc.Insert(b, data, now)
	default:
		return m.marker.MarkDirty(b, data, now)
	}
}

// Sync drains every dirty entry to the device. It is invoked
// periodically (every syncInterval seconds), on explicit request, and
// at unmount.
func (m *Manager) Sync() error {
	for _, wb := range m.disc.FlushDirty() {
		if err := m.device.WriteBlock(wb.Block, wb.Data); err != nil {
			return err
		}
	}
	m.mu.Lock()
	m.lastSync = m.now()
	m.mu.Unlock()
	return nil
}

// NeedsMaintenance reports whether enough time has elapsed since the
// last Sync that a background worker should run one.
func (m *Manager) NeedsMaintenance() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now() >= m.lastSync+m.syncInterval
}

// Invalidate removes block from the cache without writing it back,
// returning CacheDirty if the entry held unflushed data.
func (m *Manager) Invalidate(b types.BlockNumber) error {
	e, ok := m.disc.Remove(b)
	if ok && e.State == types.CacheDirty {
		return vexerrors.New(vexerrors.KindCacheDirty, "invalidated entry held unflushed data")
	}
	return nil
}

// Stats reports the underlying discipline's observable statistics.
func (m *Manager) Stats() types.CacheStats { return m.disc.Stats() }
