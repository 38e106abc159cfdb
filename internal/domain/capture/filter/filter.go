// Package filter decides which raw OS events are worth parsing.
package filter

import (
	"strings"

	"github.com/Gibo2706/BudgetTrackerV2-sub000/internal/domain/capture/rules"
	"github.com/Gibo2706/BudgetTrackerV2-sub000/internal/domain/common"
)

// Reason explains a filter decision.
type Reason string

const (
	ReasonAccepted       Reason = "accepted"
	ReasonUnknownPackage Reason = "unknown_package"
	ReasonUnknownSender  Reason = "unknown_sender"
	ReasonEmptyText      Reason = "empty_text"
)

// EventFilter is a pure predicate over NotificationEvents.
type EventFilter struct {
	tables *rules.Tables
}

func New(tables *rules.Tables) *EventFilter {
	return &EventFilter{tables: tables}
}

// Allow reports whether the event comes from a whitelisted app and, for SMS, a known bank sender.
func (f *EventFilter) Allow(event common.NotificationEvent) bool {
	return f.Check(event) == ReasonAccepted
}

// Check is Allow with the rejection reason attached.
func (f *EventFilter) Check(event common.NotificationEvent) Reason {
	if !f.tables.IsWhitelistedPackage(strings.TrimSpace(event.SourcePackage)) {
		return ReasonUnknownPackage
	}
	if event.SourceKind == common.SourceSMS || f.tables.IsSMSPackage(strings.TrimSpace(event.SourcePackage)) {
		if !f.knownSender(event.Title) {
			return ReasonUnknownSender
		}
	}
	if strings.TrimSpace(event.FullText()) == "" {
		return ReasonEmptyText
	}
	return ReasonAccepted
}

func (f *EventFilter) knownSender(title string) bool {
	title = strings.ToLower(title)
	if title == "" {
		return false
	}
	for _, sender := range f.tables.SMSSenders() {
		if strings.Contains(title, sender) {
			return true
		}
	}
	return false
}
