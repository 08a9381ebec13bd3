package service

import "time"

// Winner identifies which side's change survives a conflicting write.
type Winner string

const (
	RemoteWins Winner = "remote_wins"
	LocalWins  Winner = "local_wins"
)

// ResolveConflict applies last-write-wins to a pair of modification times.
// A tie goes to the remote side, so both replicas settle on the same state
// regardless of where the tie is observed.
func ResolveConflict(localModifiedAt, remoteModifiedAt time.Time) Winner {
	if remoteModifiedAt.Before(localModifiedAt) {
		return LocalWins
	}
	return RemoteWins
}
