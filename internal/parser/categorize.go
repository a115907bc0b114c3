// Argus - Real-Time Security Log Monitoring and Analysis
// Copyright 2026 Argus Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/argus-monitor/argus

package parser

import (
	"strings"

	"github.com/argus-monitor/argus/internal/models"
)

// categoryRule maps message keywords to a category. Rules are evaluated
// in order; the first hit wins.
type categoryRule struct {
	category models.Category
	keywords []string
}

// Ordered so the more specific security signals win over generic system
// noise that mentions the same words.
var messageRules = []categoryRule{
	{models.CategoryAuthentication, []string{
		"failed password", "authentication failure", "invalid user",
		"accepted password", "accepted publickey", "session opened",
		"session closed", "sudo", "pam_unix", "login", "logout",
		"ssh", "auth",
	}},
	{models.CategorySecurity, []string{
		"denied", "unauthorized", "forbidden", "intrusion", "malware",
		"attack", "exploit", "violation", "blocked", "firewall",
		"selinux", "apparmor", "audit",
	}},
	{models.CategoryKernel, []string{
		"kernel", "oom", "out of memory", "segfault", "panic",
		"hardware error", "cpu", "mce:",
	}},
	{models.CategoryNetwork, []string{
		"connection", "network", "dhcp", "dns", "tcp", "udp",
		"socket", "interface", "route", "packet", "eth0", "link up",
		"link down",
	}},
	{models.CategorySystem, []string{
		"systemd", "service", "daemon", "cron", "mount", "disk",
		"reboot", "shutdown", "started", "stopped", "restarted",
	}},
	{models.CategoryApplication, []string{
		"http", "request", "response", "api", "database", "query",
		"exception", "stack trace", "nginx", "apache",
	}},
}

// programHints maps syslog program names straight to a category.
var programHints = map[string]models.Category{
	"sshd":           models.CategoryAuthentication,
	"sudo":           models.CategoryAuthentication,
	"login":          models.CategoryAuthentication,
	"su":             models.CategoryAuthentication,
	"kernel":         models.CategoryKernel,
	"systemd":        models.CategorySystem,
	"cron":           models.CategorySystem,
	"crond":          models.CategorySystem,
	"auditd":         models.CategorySecurity,
	"firewalld":      models.CategorySecurity,
	"networkmanager": models.CategoryNetwork,
	"dhclient":       models.CategoryNetwork,
	"named":          models.CategoryNetwork,
	"nginx":          models.CategoryApplication,
	"apache2":        models.CategoryApplication,
}

// sourceHints keys on substrings of the source name.
var sourceHints = []struct {
	substr   string
	category models.Category
}{
	{"auth", models.CategoryAuthentication},
	{"secure", models.CategoryAuthentication},
	{"kern", models.CategoryKernel},
	{"audit", models.CategorySecurity},
	{"firewall", models.CategorySecurity},
	{"net", models.CategoryNetwork},
}

// Categorize maps a message into the closed category set. Deterministic:
// the same inputs always land on the same category, and anything that
// matches no rule is CategoryUnknown.
func Categorize(source, message, program string) models.Category {
	if program != "" {
		if c, ok := programHints[strings.ToLower(program)]; ok {
			return c
		}
	}

	lower := strings.ToLower(message)
	for _, rule := range messageRules {
		for _, kw := range rule.keywords {
			if strings.Contains(lower, kw) {
				return rule.category
			}
		}
	}

	lowerSource := strings.ToLower(source)
	for _, hint := range sourceHints {
		if strings.Contains(lowerSource, hint.substr) {
			return hint.category
		}
	}

	return models.CategoryUnknown
}
