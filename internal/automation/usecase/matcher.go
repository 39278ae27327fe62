package usecase

import (
	"regexp"
	"strings"

	"inboxflow/internal/automation/domain"
)

var angleAddress = regexp.MustCompile(`<([^>]+)>`)

// ExtractAddress returns the bare, lower-cased address of a From header.
// "Name <addr>" yields addr; anything else is used as-is.
func ExtractAddress(header string) string {
	if m := angleAddress.FindStringSubmatch(header); m != nil {
		return strings.ToLower(strings.TrimSpace(m[1]))
	}
	return strings.ToLower(strings.TrimSpace(header))
}

// MatchesSender evaluates a sender filter against a From header.
// An empty header means the header was absent.
func MatchesSender(senderHeader string, filter *domain.TriggerFilter) bool {
	if filter == nil {
		return true
	}
	if strings.TrimSpace(senderHeader) == "" {
		return false
	}

	address := ExtractAddress(senderHeader)
	value := strings.ToLower(strings.TrimSpace(filter.Value))

	if filter.Bare {
		return address == value
	}

	switch filter.Operator {
	case domain.OperatorEquals:
		return address == value
	case domain.OperatorEndsWith:
		return strings.HasSuffix(address, value)
	case domain.OperatorContains:
		return strings.Contains(address, value)
	default:
		return false
	}
}

// MatchesTrigger reports whether an automation's trigger accepts an event of
// the given type sent by senderHeader
func MatchesTrigger(automation *domain.Automation, triggerType, senderHeader string) bool {
	if automation.Trigger.Type != triggerType {
		return false
	}
	return MatchesSender(senderHeader, automation.Trigger.From)
}

// SelectMatching narrows a user's automations to the active ones that accept
// the event. The input order is preserved.
func SelectMatching(automations []*domain.Automation, triggerType, senderHeader string) []*domain.Automation {
	matched := make([]*domain.Automation, 0, len(automations))
	for _, a := range automations {
		if a.Status != domain.StatusActive {
			continue
		}
		if MatchesTrigger(a, triggerType, senderHeader) {
			matched = append(matched, a)
		}
	}
	return matched
}
