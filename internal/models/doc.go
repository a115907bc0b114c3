// Argus - Real-Time Security Log Monitoring and Analysis
// Copyright 2026 Argus Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/argus-monitor/argus

// Package models defines the data structures that flow through the Argus
// pipeline: monitored log sources, raw ingested text, parsed events,
// severity analysis results, delivery records, and the API response
// envelope shared by every HTTP endpoint.
package models
