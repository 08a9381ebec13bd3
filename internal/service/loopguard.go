package service

import (
	"time"

	"github.com/finledger/calsync/internal/models"
)

// LoopGuard suppresses echo syncs. After the engine writes to one side, that
// side's change hooks fire as if a user had made the edit; without
// suppression every completed sync would trigger the next one indefinitely.
type LoopGuard struct {
	window time.Duration
	now    func() time.Time
}

func NewLoopGuard(window time.Duration) *LoopGuard {
	return &LoopGuard{window: window, now: time.Now}
}

// ShouldSkip reports whether a sync in the given direction is an echo of the
// engine's own recent write: the mapping's last change was authored by the
// side this sync would write to, within the guard window. A genuine edit
// arriving later than the window syncs normally.
func (g *LoopGuard) ShouldSkip(m *models.SyncMapping, direction models.SyncDirection) bool {
	if m == nil {
		return false
	}

	destination := models.SyncSourceRemote
	if direction == models.SyncDirectionFromRemote {
		destination = models.SyncSourceInternal
	}
	if m.SyncSource != destination {
		return false
	}

	return g.now().Sub(m.LastModifiedAt) < g.window
}
