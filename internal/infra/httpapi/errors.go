package httpapi

import "fmt"

var (
	errMissingPersonKey = fmt.Errorf("person_key is required")
	errEmptyMessage     = fmt.Errorf("message text must not be empty")
	errBadPromptID      = fmt.Errorf("prompt id is required")
)
