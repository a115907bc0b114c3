// Argus - Real-Time Security Log Monitoring and Analysis
// Copyright 2026 Argus Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/argus-monitor/argus

// Package parser turns raw log lines into structured events. Patterns
// are tried in order and the first structural match wins; a line that
// matches nothing still yields an event with the raw line as message.
// Parsing never drops data and one bad line never aborts its batch.
package parser

import (
	"regexp"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/argus-monitor/argus/internal/models"
)

// Parser converts raw lines into ParsedEvents.
type Parser struct {
	syslogRe *regexp.Regexp
	isoRe    *regexp.Regexp
}

// New builds a parser with the built-in pattern set.
func New() *Parser {
	return &Parser{
		// RFC3164: "Jan  2 15:04:05 host prog[pid]: message"
		syslogRe: regexp.MustCompile(`^([A-Z][a-z]{2}\s+\d{1,2}\s\d{2}:\d{2}:\d{2})\s+(\S+)\s+([^:\[\s]+)(?:\[(\d+)\])?:\s*(.*)$`),
		// ISO-prefixed: "2026-01-02T15:04:05Z ..." or "2026-01-02 15:04:05 ..."
		isoRe: regexp.MustCompile(`^(\d{4}-\d{2}-\d{2}[T ]\d{2}:\d{2}:\d{2}(?:\.\d+)?(?:Z|[+-]\d{2}:?\d{2})?)\s+(.*)$`),
	}
}

// ParseLine converts one line into an event. ingestedAt is the fallback
// timestamp when the line carries none; seq preserves intra-source line
// order downstream.
func (p *Parser) ParseLine(line, source string, rawLogID uuid.UUID, ingestedAt time.Time, seq int64) *models.ParsedEvent {
	ev := &models.ParsedEvent{
		ID:        uuid.New(),
		RawLogID:  rawLogID,
		Source:    source,
		Message:   line,
		Category:  models.CategoryUnknown,
		ParsedAt:  time.Now().UTC(),
		Sequence:  seq,
		Timestamp: ingestedAt,
	}

	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		p.flagInferred(ev)
		setMeta(ev, models.ParseFallbackKey, "true")
		return ev
	}

	matched := false
	switch {
	case trimmed[0] == '{':
		matched = p.parseJSON(trimmed, ev)
	}
	if !matched {
		matched = p.parseSyslog(trimmed, ev)
	}
	if !matched {
		matched = p.parseISO(trimmed, ev)
	}
	if !matched {
		// Structural fallback: the raw line stays as the message, the
		// timestamp is inferred from ingestion time, and the category
		// stays unknown.
		p.flagInferred(ev)
		setMeta(ev, models.ParseFallbackKey, "true")
		return ev
	}

	ev.Category = Categorize(source, ev.Message, metaValue(ev, "program"))
	return ev
}

// ParseLines converts a batch of lines, assigning consecutive sequence
// numbers starting at baseSeq.
func (p *Parser) ParseLines(lines []string, source string, rawLogID uuid.UUID, ingestedAt time.Time, baseSeq int64) []*models.ParsedEvent {
	events := make([]*models.ParsedEvent, 0, len(lines))
	for i, line := range lines {
		events = append(events, p.ParseLine(line, source, rawLogID, ingestedAt, baseSeq+int64(i)))
	}
	return events
}

func (p *Parser) parseSyslog(line string, ev *models.ParsedEvent) bool {
	m := p.syslogRe.FindStringSubmatch(line)
	if m == nil {
		return false
	}

	// RFC3164 timestamps carry no year; assume the ingestion year and
	// step back one when that would land the event in the future.
	ts, err := time.Parse(time.Stamp, m[1])
	if err == nil {
		ts = ts.AddDate(ev.Timestamp.Year(), 0, 0)
		if ts.After(ev.Timestamp.Add(24 * time.Hour)) {
			ts = ts.AddDate(-1, 0, 0)
		}
		ev.Timestamp = ts.UTC()
	} else {
		p.flagInferred(ev)
	}

	ev.Message = m[5]
	setMeta(ev, "host", m[2])
	setMeta(ev, "program", m[3])
	if m[4] != "" {
		setMeta(ev, "pid", m[4])
	}
	// The program becomes the event source; the feed the line came from
	// stays reachable in metadata.
	setMeta(ev, models.FeedKey, ev.Source)
	ev.Source = m[3]
	return true
}

func (p *Parser) parseISO(line string, ev *models.ParsedEvent) bool {
	m := p.isoRe.FindStringSubmatch(line)
	if m == nil {
		return false
	}
	if ts, ok := parseTimestamp(m[1]); ok {
		ev.Timestamp = ts
	} else {
		p.flagInferred(ev)
	}
	ev.Message = m[2]
	return true
}

func (p *Parser) parseJSON(line string, ev *models.ParsedEvent) bool {
	var data map[string]any
	if err := json.Unmarshal([]byte(line), &data); err != nil {
		return false
	}

	msg, ok := strField(data, "message", "msg")
	if !ok {
		return false
	}
	ev.Message = msg

	if v, ok := strField(data, "timestamp", "time", "ts"); ok {
		if ts, parsed := parseTimestamp(v); parsed {
			ev.Timestamp = ts
		} else {
			p.flagInferred(ev)
		}
	} else {
		p.flagInferred(ev)
	}
	if v, ok := strField(data, "level", "severity"); ok {
		setMeta(ev, "level", strings.ToLower(v))
	}
	if v, ok := strField(data, "host", "hostname"); ok {
		setMeta(ev, "host", v)
	}
	if v, ok := strField(data, "source", "app", "service"); ok {
		setMeta(ev, models.FeedKey, ev.Source)
		ev.Source = v
	}
	return true
}

func (p *Parser) flagInferred(ev *models.ParsedEvent) {
	setMeta(ev, models.TimestampInferredKey, "true")
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
}

func parseTimestamp(s string) (time.Time, bool) {
	for _, layout := range timestampLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts.UTC(), true
		}
	}
	return time.Time{}, false
}

func setMeta(ev *models.ParsedEvent, key, value string) {
	if ev.Metadata == nil {
		ev.Metadata = make(map[string]string)
	}
	ev.Metadata[key] = value
}

func metaValue(ev *models.ParsedEvent, key string) string {
	if ev.Metadata == nil {
		return ""
	}
	return ev.Metadata[key]
}

func strField(data map[string]any, keys ...string) (string, bool) {
	for _, k := range keys {
		if v, ok := data[k]; ok {
			if s, ok := v.(string); ok && s != "" {
				return s, true
			}
		}
	}
	return "", false
}
