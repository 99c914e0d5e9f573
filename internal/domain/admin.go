package domain

import "time"

// DeadLetterStats summarizes the dead-letter stream and its consumer groups.
type DeadLetterStats struct {
	Stream string            `json:"stream"`
	Length int64             `json:"length"`
	Groups []DeadLetterGroup `json:"groups"`
}

// DeadLetterGroup holds information about a replay consumer group.
type DeadLetterGroup struct {
	Name            string `json:"name"`
	Consumers       int64  `json:"consumers"`
	Pending         int64  `json:"pending"`
	LastDeliveredID string `json:"last_delivered_id"`
}

// PendingDeadLetter is a delivered entry that has not been acknowledged yet.
type PendingDeadLetter struct {
	ID         string        `json:"id"`
	Consumer   string        `json:"consumer"`
	Idle       time.Duration `json:"idle_ns"`
	RetryCount int64         `json:"retry_count"`
}
