package service

import "time"

// ToRemoteResult reports one outbound sync unit.
type ToRemoteResult struct {
	Success       bool   `json:"success"`
	RemoteEventID string `json:"remoteEventId,omitempty"`
	Deleted       bool   `json:"deleted,omitempty"`
	Skipped       bool   `json:"skipped,omitempty"`
	Reason        string `json:"reason,omitempty"`
}

// FromRemoteResult reports one inbound sync unit.
type FromRemoteResult struct {
	Success         bool   `json:"success"`
	InternalEventID string `json:"internalEventId,omitempty"`
	Created         bool   `json:"created,omitempty"`
	Updated         bool   `json:"updated,omitempty"`
	Deleted         bool   `json:"deleted,omitempty"`
	Skipped         bool   `json:"skipped,omitempty"`
	Reason          string `json:"reason,omitempty"`
}

// FullSyncResult summarizes one reconciliation pass. Processed counts
// inbound units applied, Pushed counts outbound creations; failed units land
// in Errors without aborting the pass.
type FullSyncResult struct {
	Success   bool `json:"success"`
	Processed int  `json:"processed"`
	Pushed    int  `json:"pushed"`
	Errors    int  `json:"errors"`
}

// IncrementalSyncResult summarizes one cursor-driven pass. CursorInvalid set
// means the stored cursor was missing or rejected and the caller must run a
// full sync to re-establish it.
type IncrementalSyncResult struct {
	Success       bool `json:"success"`
	Processed     int  `json:"processed"`
	Errors        int  `json:"errors"`
	CursorInvalid bool `json:"cursorInvalid,omitempty"`
}

// ChannelInfo describes the active push channel after a renewal.
type ChannelInfo struct {
	ChannelID  string    `json:"channelId"`
	ResourceID string    `json:"resourceId"`
	ExpiresAt  time.Time `json:"expiresAt"`
}
