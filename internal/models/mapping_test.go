package models

import "testing"

func TestSyncStatus_Constants(t *testing.T) {
	tests := []struct {
		name     string
		status   SyncStatus
		expected string
	}{
		{"synced", SyncStatusSynced, "synced"},
		{"pending", SyncStatusPending, "pending"},
		{"error", SyncStatusError, "error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if string(tt.status) != tt.expected {
				t.Errorf("Expected %s, got %s", tt.expected, tt.status)
			}
		})
	}
}

func TestSyncSource_Constants(t *testing.T) {
	tests := []struct {
		name     string
		source   SyncSource
		expected string
	}{
		{"internal", SyncSourceInternal, "internal"},
		{"remote", SyncSourceRemote, "remote"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if string(tt.source) != tt.expected {
				t.Errorf("Expected %s, got %s", tt.expected, tt.source)
			}
		})
	}
}

func TestSyncDirection_Constants(t *testing.T) {
	tests := []struct {
		name      string
		direction SyncDirection
		expected  string
	}{
		{"to_remote", SyncDirectionToRemote, "to_remote"},
		{"from_remote", SyncDirectionFromRemote, "from_remote"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if string(tt.direction) != tt.expected {
				t.Errorf("Expected %s, got %s", tt.expected, tt.direction)
			}
		})
	}
}
