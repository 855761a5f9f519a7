// Package host is the adapter boundary to the embedding process. The
// pipeline never depends on how it is loaded: the host (or a test harness)
// drives it through the Notifier interface, one call per occurrence.
package host

import (
	"errors"

	"geyserRelay/internal/event"
)

// ErrUnsupportedVersion reports an upstream schema version the adapter
// cannot normalize. It is the only error category surfaced back to the
// host; broker and consumer failures never cross this boundary.
var ErrUnsupportedVersion = errors.New("unsupported upstream schema version")

// Notifier receives the four host notification operations. Implementations
// must return promptly: the host invokes these synchronously from its own
// threads and must never be blocked on downstream consumers.
type Notifier interface {
	NotifyAccount(info AccountInfoVersions, slot uint64, isStartup bool) error
	NotifySlotStatus(slot uint64, parentSlot uint64, commitment event.CommitmentLevel) error
	NotifyTransaction(info TransactionInfoVersions, slot uint64) error
	NotifyBlockMeta(info BlockInfoVersions) error
}
