package models

import "time"

type MovementKind string

const (
	MovementIn     MovementKind = "in"
	MovementOut    MovementKind = "out"
	MovementAdjust MovementKind = "adjust"
	MovementSale   MovementKind = "sale"
)

type Movement struct {
	ID        int          `json:"id"`
	Code      string       `json:"code"`
	Delta     int          `json:"delta"`
	Kind      MovementKind `json:"kind"`
	Reason    string       `json:"reason,omitempty"`
	CreatedAt time.Time    `json:"created_at"`
}
