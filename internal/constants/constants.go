package constants

import "time"

// Context and session keys
const (
	ContextKeyUserID = "user_id"
	ContextKeyActor  = "actor"
)

// Auth limits
const (
	MinPasswordLength = 8
)

// Task field limits
const (
	MaxTitleLength       = 255
	MaxDescriptionLength = 1000
	MaxSearchLength      = 255
)

// Pagination defaults
const (
	MinPageSize     = 1
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// TaskRetentionWindow is how long a task is kept before the periodic sweep
// removes it, counted from creation.
const TaskRetentionWindow = 30 * 24 * time.Hour
