package models

import "time"

// SyncMetadata describes the last successful refresh of a mirrored collection.
type SyncMetadata struct {
	LastSync    time.Time `json:"lastSync"`
	RecordCount int       `json:"recordCount"`
}
