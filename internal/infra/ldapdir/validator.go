package ldapdir

import (
	"context"
	"fmt"

	"birthday_notification_bot/internal/domain/birthday"

	"github.com/go-ldap/ldap/v3"
)

// Validator checks display names against the company directory by
// searching for uid=first.last under the configured base.
type Validator struct {
	serverURL  string
	searchBase string
}

func NewValidator(serverURL, searchBase string) *Validator {
	return &Validator{serverURL: serverURL, searchBase: searchBase}
}

// Validate dials per lookup; the validation cache above this keeps it
// to one lookup per person per refresh cycle.
func (v *Validator) Validate(ctx context.Context, displayName string) (bool, error) {
	uid := birthday.PersonKey(displayName)

	conn, err := ldap.DialURL(v.serverURL)
	if err != nil {
		return false, fmt.Errorf("ldap dial failed: %w", err)
	}
	defer conn.Close()

	req := ldap.NewSearchRequest(
		v.searchBase,
		ldap.ScopeWholeSubtree, ldap.NeverDerefAliases, 0, 0, false,
		fmt.Sprintf("(uid=%s)", ldap.EscapeFilter(uid)),
		[]string{"uid"},
		nil,
	)

	result, err := conn.SearchWithPaging(req, 1)
	if err != nil {
		return false, fmt.Errorf("ldap search failed for %s: %w", uid, err)
	}
	return len(result.Entries) > 0, nil
}
