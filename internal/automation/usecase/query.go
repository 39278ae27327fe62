package usecase

import (
	"strings"

	"inboxflow/internal/automation/domain"
)

const unreadQuery = "is:unread"

// BuildQuery translates a sender filter into Gmail search syntax.
// The result only narrows the candidate set; MatchesSender has the final say.
func BuildQuery(filter *domain.TriggerFilter) string {
	if filter == nil {
		return ""
	}
	value := strings.TrimSpace(filter.Value)
	if value == "" {
		return ""
	}
	if filter.Bare {
		return "from:" + value
	}

	switch filter.Operator {
	case domain.OperatorEndsWith:
		return "from:@" + strings.TrimPrefix(value, "@")
	case domain.OperatorEquals, domain.OperatorContains:
		return "from:" + value
	default:
		return ""
	}
}

// UnreadQuery is the full candidate query for a trigger filter
func UnreadQuery(filter *domain.TriggerFilter) string {
	if q := BuildQuery(filter); q != "" {
		return unreadQuery + " " + q
	}
	return unreadQuery
}
