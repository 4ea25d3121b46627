package service

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/helpline-hq/support-desk/internal/domain"
)

// Fields a single update may change. closed_at is derived from status and never accepted.
var singleUpdateFields = map[string]struct{}{
	"subject":               {},
	"description":           {},
	"priority":              {},
	"status":                {},
	"channel":               {},
	"contact_id":            {},
	"account_id":            {},
	"assigned_team_id":      {},
	"assigned_user_id":      {},
	"first_response_due_at": {},
	"resolution_due_at":     {},
}

// Fields a bulk update may change.
var bulkUpdateFields = map[string]struct{}{
	"status":           {},
	"priority":         {},
	"assigned_user_id": {},
	"assigned_team_id": {},
}

// filterTicketChanges keeps the allowed fields of raw and converts their values to the
// column types. Fields outside allowed are dropped.
func filterTicketChanges(raw map[string]any, allowed map[string]struct{}) (map[string]any, error) {
	fields := make(map[string]any, len(raw))
	for _, name := range sortedKeys(raw) {
		if _, ok := allowed[name]; !ok {
			continue
		}
		value, err := normalizeTicketField(name, raw[name])
		if err != nil {
			return nil, err
		}
		fields[name] = value
	}
	return fields, nil
}

type fieldError struct {
	field  string
	reason string
}

func (e *fieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.field, e.reason)
}

func normalizeTicketField(name string, value any) (any, error) {
	switch name {
	case "subject":
		s, ok := value.(string)
		if !ok || strings.TrimSpace(s) == "" {
			return nil, &fieldError{field: name, reason: "must be a non-empty string"}
		}
		return strings.TrimSpace(s), nil
	case "description":
		if value == nil {
			return "", nil
		}
		s, ok := value.(string)
		if !ok {
			return nil, &fieldError{field: name, reason: "must be a string"}
		}
		return strings.TrimSpace(s), nil
	case "channel":
		s, _ := asString(value)
		if !validChannel(s) {
			return nil, &fieldError{field: name, reason: "must be one of web, email, form"}
		}
		return s, nil
	case "priority":
		s, _ := asString(value)
		priority := domain.TicketPriority(s)
		if !priority.Valid() {
			return nil, &fieldError{field: name, reason: "must be one of low, medium, high, urgent"}
		}
		return priority, nil
	case "status":
		s, _ := asString(value)
		status := domain.TicketStatus(s)
		if !status.Valid() {
			return nil, &fieldError{field: name, reason: "must be one of new, open, pending, resolved, closed"}
		}
		return status, nil
	case "contact_id", "account_id", "assigned_team_id", "assigned_user_id":
		if value == nil {
			return nil, nil
		}
		s, ok := asString(value)
		if !ok {
			return nil, &fieldError{field: name, reason: "must be a uuid or null"}
		}
		if _, err := uuid.Parse(s); err != nil {
			return nil, &fieldError{field: name, reason: "must be a uuid or null"}
		}
		return s, nil
	case "first_response_due_at", "resolution_due_at":
		switch v := value.(type) {
		case nil:
			return nil, nil
		case time.Time:
			return v, nil
		case string:
			t, err := time.Parse(time.RFC3339, v)
			if err != nil {
				return nil, &fieldError{field: name, reason: "must be an RFC3339 timestamp or null"}
			}
			return t, nil
		}
		return nil, &fieldError{field: name, reason: "must be an RFC3339 timestamp or null"}
	}
	return nil, &fieldError{field: name, reason: "is not updatable"}
}

func asString(value any) (string, bool) {
	switch v := value.(type) {
	case string:
		return v, true
	case *string:
		if v == nil {
			return "", false
		}
		return *v, true
	case domain.TicketStatus:
		return string(v), true
	case domain.TicketPriority:
		return string(v), true
	}
	return "", false
}

func validChannel(channel string) bool {
	switch channel {
	case domain.ChannelWeb, domain.ChannelEmail, domain.ChannelForm:
		return true
	}
	return false
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func statusStrings(statuses []domain.TicketStatus) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}

func sameStringPtr(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
