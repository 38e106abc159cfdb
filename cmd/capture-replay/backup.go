package main

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/Gibo2706/BudgetTrackerV2-sub000/internal/domain/common"
)

// smsInbox is the "type" attribute value of received messages in SMS Backup & Restore exports.
const smsInbox = "1"

// backupMessage is one <sms/> element of an SMS Backup & Restore export.
type backupMessage struct {
	Address     string `xml:"address,attr"`
	Date        string `xml:"date,attr"`
	Type        string `xml:"type,attr"`
	Body        string `xml:"body,attr"`
	ContactName string `xml:"contact_name,attr"`
}

// backupReader streams <sms> elements without loading the whole export.
type backupReader struct {
	dec       *xml.Decoder
	pkg       string
	since     time.Time
	skipped   int
	malformed int
}

func newBackupReader(r io.Reader, smsPackage string, since time.Time) *backupReader {
	return &backupReader{dec: xml.NewDecoder(r), pkg: smsPackage, since: since}
}

// Next returns the next received message as an event. It returns io.EOF when the export is exhausted.
func (b *backupReader) Next() (common.NotificationEvent, error) {
	for {
		tok, err := b.dec.Token()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return common.NotificationEvent{}, io.EOF
			}
			return common.NotificationEvent{}, fmt.Errorf("failed to read backup: %w", err)
		}

		start, ok := tok.(xml.StartElement)
		if !ok || start.Name.Local != "sms" {
			continue
		}

		var msg backupMessage
		if err := b.dec.DecodeElement(&msg, &start); err != nil {
			return common.NotificationEvent{}, fmt.Errorf("failed to decode sms element: %w", err)
		}

		event, ok := b.toEvent(msg)
		if !ok {
			continue
		}
		return event, nil
	}
}

func (b *backupReader) toEvent(msg backupMessage) (common.NotificationEvent, bool) {
	if msg.Type != "" && msg.Type != smsInbox {
		b.skipped++
		return common.NotificationEvent{}, false
	}

	millis, err := strconv.ParseInt(msg.Date, 10, 64)
	if err != nil || millis <= 0 {
		b.malformed++
		return common.NotificationEvent{}, false
	}
	if !b.since.IsZero() && time.UnixMilli(millis).Before(b.since) {
		b.skipped++
		return common.NotificationEvent{}, false
	}

	title := msg.Address
	if msg.ContactName != "" && msg.ContactName != "(Unknown)" {
		title = msg.ContactName + " " + msg.Address
	}

	return common.NotificationEvent{
		SourcePackage: b.pkg,
		Title:         title,
		Text:          msg.Body,
		PostTimestamp: millis,
		SourceKind:    common.SourceSMS,
	}, true
}
