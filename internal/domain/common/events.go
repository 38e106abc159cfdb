package common

import (
	"fmt"
	"strings"
	"time"
)

// SourceKind identifies which OS channel delivered an event.
type SourceKind string

const (
	SourceNotification SourceKind = "notification"
	SourceSMS          SourceKind = "sms"
)

// Paired returns the channel a bank may use to announce the same real event.
func (k SourceKind) Paired() SourceKind {
	if k == SourceSMS {
		return SourceNotification
	}
	return SourceSMS
}

// ParseSourceKind accepts the canonical names plus a few spellings used by clients.
func ParseSourceKind(raw string) (SourceKind, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "notification", "push", "":
		return SourceNotification, nil
	case "sms", "text":
		return SourceSMS, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownSource, raw)
	}
}

// NotificationEvent is a raw push notification or SMS as handed over by the platform.
type NotificationEvent struct {
	SourcePackage string
	Title         string
	Text          string
	PostTimestamp int64 // unix milliseconds
	SourceKind    SourceKind
}

// PostedAt converts the platform timestamp into a time.Time.
func (e NotificationEvent) PostedAt() time.Time {
	return time.UnixMilli(e.PostTimestamp)
}

// FullText is the title and body joined the way every parsing stage sees them.
func (e NotificationEvent) FullText() string {
	title := strings.TrimSpace(e.Title)
	text := strings.TrimSpace(e.Text)
	switch {
	case title == "":
		return text
	case text == "":
		return title
	default:
		return title + " " + text
	}
}
