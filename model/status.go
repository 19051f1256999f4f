package model

import "time"

// Status is the live snapshot pushed to dashboard listeners.
type Status struct {
	Running       bool      `json:"running"`
	Username      string    `json:"username,omitempty"`
	Guilds        int       `json:"guilds"`
	StartedAt     time.Time `json:"startedAt,omitempty"`
	UptimeSeconds int64     `json:"uptimeSeconds"`
	PendingBans   int       `json:"pendingBans"`
	WarnedUsers   int       `json:"warnedUsers"`
	MemoryMB      uint64    `json:"memoryMb"`
	CPUPercent    float64   `json:"cpuPercent"`
	Goroutines    int       `json:"goroutines"`
	Timestamp     time.Time `json:"timestamp"`
}
