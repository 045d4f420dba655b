package models

import (
	"time"
)

// RoomRecord is the durable trace of a room. The live game session lives in
// memory; this record exists so codes stay unique across restarts and so a
// host can reactivate their latest room.
type RoomRecord struct {
	Code       string    `json:"code"`
	HostUserID int64     `json:"host_user_id"`
	CreatedAt  time.Time `json:"created_at"`
}
