// Package reconcile decides, record by record, what happens when a batch of
// client case versions meets the server's current state: accept, drop, or
// accept with a merged clock. The engine performs no I/O and holds no
// locks; the caller supplies a consistent snapshot of server clocks and
// commits the result atomically.
package reconcile

import (
	"github.com/google/uuid"

	"casesync/internal/clock"
	"casesync/internal/server/models"
)

// Engine applies the reconciliation policy. The server device identifier is
// explicit configuration, fixed at startup; it is used only to assign the
// default clock to records that never touched a real device tick.
type Engine struct {
	serverDeviceID string
}

// NewEngine returns an engine stamping default clocks with serverDeviceID.
func NewEngine(serverDeviceID string) *Engine {
	return &Engine{serverDeviceID: serverDeviceID}
}

// Reconcile returns the subsequence of batch that should be committed,
// given serverClocks, a snapshot of the stored clock for every GUID in the
// batch that already exists on the server.
//
// Per record R with stored counterpart S:
//   - R Before S: the server already holds a causally newer version. R is
//     dropped from the output; this is routine, not an error.
//   - S Before R: R causally dominates and is accepted as-is.
//   - Concurrent: R is accepted, but its clock is first merged with S's so
//     the committed state dominates both branches. The client payload wins
//     on content; only the clock is merged.
//   - Equal: idempotent re-send, accepted unchanged.
//
// A record with no stored counterpart is a pure insert. Any record whose
// clock is still empty after the rules above gets the default server clock.
//
// Accepted records have their clocks rewritten in place.
func (e *Engine) Reconcile(batch []*models.Case, serverClocks map[uuid.UUID]clock.VectorClock) []*models.Case {
	out := make([]*models.Case, 0, len(batch))

	for _, r := range batch {
		if r.Clock == nil {
			r.Clock = clock.New()
		}
		if serverClock, ok := serverClocks[r.GUID]; ok {
			switch r.Clock.Compare(serverClock) {
			case clock.Before:
				// Stored case is more recent, do not let R overwrite it.
				continue
			case clock.After, clock.Equal:
				// Client version dominates or is a re-send; keep as-is.
			case clock.Concurrent:
				merged := serverClock.Clone()
				merged.Merge(r.Clock)
				r.Clock = merged
			}
		}
		if r.Clock.IsEmpty() {
			r.Clock = clock.Default(e.serverDeviceID)
		}
		out = append(out, r)
	}

	return out
}
