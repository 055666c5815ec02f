package core

import (
	"fmt"
	"sort"
	"strings"
)

// ValidationError rejects a request before any write occurs: required fields
// missing on create, or an empty payload on update.
type ValidationError struct {
	Resource string
	Missing  []string
	Reason   string
}

func (e ValidationError) Error() string {
	if len(e.Missing) > 0 {
		missing := append([]string(nil), e.Missing...)
		sort.Strings(missing)
		return fmt.Sprintf("Missing required fields: %s", strings.Join(missing, ", "))
	}
	if e.Reason != "" {
		return e.Reason
	}
	return "invalid request"
}

// NotFoundError reports that no record matched the identifier. No side
// effect has occurred.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Resource, e.ID)
}
