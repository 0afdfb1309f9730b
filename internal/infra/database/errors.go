package database

import "fmt"

// Sentinel errors shared by the in-memory and Postgres store
// implementations.
var (
	ErrMessageNotFound    = fmt.Errorf("cached message not found")
	ErrSentRecordNotFound = fmt.Errorf("sent record not found")
	ErrPromptNotFound     = fmt.Errorf("prompt template not found")
)
