// Argus - Real-Time Security Log Monitoring and Analysis
// Copyright 2026 Argus Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/argus-monitor/argus

package models

import "fmt"

// Category classifies a parsed event by the subsystem that produced it.
// The set is closed; CategoryUnknown is the default for anything that does
// not match, never an error.
type Category string

const (
	CategoryAuthentication Category = "authentication"
	CategoryNetwork        Category = "network"
	CategorySystem         Category = "system"
	CategoryApplication    Category = "application"
	CategorySecurity       Category = "security"
	CategoryKernel         Category = "kernel"
	CategoryUnknown        Category = "unknown"
)

// Categories lists every valid category in a stable order.
func Categories() []Category {
	return []Category{
		CategoryAuthentication,
		CategoryNetwork,
		CategorySystem,
		CategoryApplication,
		CategorySecurity,
		CategoryKernel,
		CategoryUnknown,
	}
}

// Valid reports whether c is a member of the closed category set.
func (c Category) Valid() bool {
	switch c {
	case CategoryAuthentication, CategoryNetwork, CategorySystem,
		CategoryApplication, CategorySecurity, CategoryKernel, CategoryUnknown:
		return true
	}
	return false
}

// ParseCategory converts a string to a Category, returning CategoryUnknown
// for anything outside the closed set.
func ParseCategory(s string) Category {
	c := Category(s)
	if c.Valid() {
		return c
	}
	return CategoryUnknown
}

// SourceStatus is the lifecycle state of a monitored log source.
type SourceStatus string

const (
	// SourceInactive means the source is registered but has not completed
	// a successful read cycle yet.
	SourceInactive SourceStatus = "inactive"

	// SourceActive means the watcher is reading the source.
	SourceActive SourceStatus = "active"

	// SourceError means the last read cycle failed; the watcher retries on
	// its next poll.
	SourceError SourceStatus = "error"

	// SourceDisabled means monitoring is stopped. Terminal until re-enabled.
	SourceDisabled SourceStatus = "disabled"
)

// Valid reports whether s is a known source status.
func (s SourceStatus) Valid() bool {
	switch s {
	case SourceInactive, SourceActive, SourceError, SourceDisabled:
		return true
	}
	return false
}

// ParseSourceStatus converts a string to a SourceStatus.
func ParseSourceStatus(s string) (SourceStatus, error) {
	st := SourceStatus(s)
	if !st.Valid() {
		return "", fmt.Errorf("unknown source status %q", s)
	}
	return st, nil
}

// AnalysisOrigin identifies which path produced a severity verdict.
type AnalysisOrigin string

const (
	// OriginAI means the external scoring service produced the verdict.
	OriginAI AnalysisOrigin = "ai"

	// OriginFallback means the deterministic rule-based scorer produced the
	// verdict after the external call was exhausted.
	OriginFallback AnalysisOrigin = "fallback"
)

// Valid reports whether o is a known analysis origin.
func (o AnalysisOrigin) Valid() bool {
	return o == OriginAI || o == OriginFallback
}

// NotificationStatus is the delivery state of one notification attempt.
// Transitions are monotonic: pending -> sent, or pending -> (one retry) ->
// sent | failed. A record never leaves a terminal state.
type NotificationStatus string

const (
	NotificationPending NotificationStatus = "pending"
	NotificationSent    NotificationStatus = "sent"
	NotificationFailed  NotificationStatus = "failed"
)

// Valid reports whether n is a known notification status.
func (n NotificationStatus) Valid() bool {
	switch n {
	case NotificationPending, NotificationSent, NotificationFailed:
		return true
	}
	return false
}

// Terminal reports whether no further transition can occur.
func (n NotificationStatus) Terminal() bool {
	return n == NotificationSent || n == NotificationFailed
}
