package devicegroup

import (
	"time"

	"github.com/equiptrack/maintsync/internal/model"
)

// Status is the loading state of the cache.
type Status int

const (
	// StatusChecking is the state before Boot has looked at the persisted blob.
	StatusChecking Status = iota
	// StatusLoadingNew means nothing usable is cached and a fetch is running.
	StatusLoadingNew
	// StatusReady means groups are available, from cache or network.
	StatusReady
	// StatusError means nothing is available and the last fetch failed.
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusChecking:
		return "checking"
	case StatusLoadingNew:
		return "loading"
	case StatusReady:
		return "ready"
	case StatusError:
		return "error"
	default:
		return "unknown"
	}
}

// Freshness says where the in-memory groups came from.
type Freshness int

const (
	// FreshnessMissing means there are no groups at all.
	FreshnessMissing Freshness = iota
	// FreshnessStale means the groups were read from the persisted blob and have
	// not been revalidated.
	FreshnessStale
	// FreshnessFresh means the groups came from the network in this process.
	FreshnessFresh
)

func (f Freshness) String() string {
	switch f {
	case FreshnessStale:
		return "stale"
	case FreshnessFresh:
		return "fresh"
	default:
		return "missing"
	}
}

// Snapshot is a consistent view of the cache.
type Snapshot struct {
	Status    Status
	Freshness Freshness
	Groups    []model.DeviceGroup
	// Err is the last refresh failure, cleared by the next success.
	Err      error
	SyncedAt time.Time
}

// FromCache reports whether the groups are the unrevalidated persisted copy.
func (s Snapshot) FromCache() bool {
	return s.Freshness == FreshnessStale
}

// ScanResult is what a QR-code lookup resolves to.
type ScanResult struct {
	Group   string
	Device  model.DeviceRow
	History []model.HistoryRow
}
