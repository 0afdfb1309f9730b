package prompt

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// DefaultTemplate is the prompt the store is seeded with when empty.
const DefaultTemplate = `It looks like {employee_name} has a birthday coming up on {birthday_date}. Write a witty POSITIVE slack message that mentions something POSITIVE or HAPPY that happened on their birthday in history, and end it with "and also {employee_name} was born. Happy Birthday {employee_name}!"

Make sure the historical fact is:
- Genuinely positive and uplifting
- Interesting and engaging
- Appropriate for a workplace setting
- Not controversial or sensitive

The message should be:
- Warm and celebratory
- Professional but fun
- About 2-3 sentences total
- Ready to post directly to Slack`

// Template is one versioned prompt. Exactly one template is active at
// any time; activation is an explicit, auditable operation.
type Template struct {
	ID          string
	Text        string
	Description string
	CreatedAt   time.Time
	Active      bool
}

// Render substitutes the person and date placeholders.
func (t *Template) Render(displayName string, date time.Time) string {
	text := strings.ReplaceAll(t.Text, "{employee_name}", displayName)
	return strings.ReplaceAll(text, "{birthday_date}", date.Format("January 02"))
}

// ValidateText rejects template text missing the required
// placeholders.
func ValidateText(text string) error {
	for _, placeholder := range []string{"{employee_name}", "{birthday_date}"} {
		if !strings.Contains(text, placeholder) {
			return fmt.Errorf("template must contain the %s placeholder", placeholder)
		}
	}
	return nil
}

// Repository is the prompt version store.
type Repository interface {
	Create(ctx context.Context, t *Template) error
	GetActive(ctx context.Context) (*Template, error)
	Get(ctx context.Context, id string) (*Template, error)
	// Activate atomically deactivates the current template and
	// activates the one with the given id.
	Activate(ctx context.Context, id string) error
	List(ctx context.Context) ([]*Template, error)
}
