package ircrunner

import (
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strings"
	"time"
)

const (
	dropSummaryInterval = 5 * time.Second
	dropSampleMaxLen    = 96
	dropChannelMaxLen   = 32
)

var (
	oauthTokenRe = regexp.MustCompile(`(?i)oauth:[^\s;]+`)
	longTokenRe  = regexp.MustCompile(`[A-Za-z0-9+/_=\-]{24,}`)
)

type ircSummary struct {
	command string
	channel string
	sample  string
}

type dropReasonSummary struct {
	total       int
	byCommand   map[string]int
	sampleByCmd map[string]string
}

// dropLogger batches decode/parse-drop reporting into periodic summaries
// instead of logging every dropped line, so a malformed or unrecognized
// stream doesn't flood output.
type dropLogger struct {
	verbose  bool
	interval time.Duration
	nextEmit time.Time
	reasons  map[string]*dropReasonSummary
}

func newDropLogger(now time.Time, verbose bool, interval time.Duration) *dropLogger {
	if interval <= 0 {
		interval = dropSummaryInterval
	}
	return &dropLogger{
		verbose:  verbose,
		interval: interval,
		nextEmit: now.Add(interval),
		reasons:  make(map[string]*dropReasonSummary),
	}
}

func (d *dropLogger) note(now time.Time, reason, rawLine string) {
	if d == nil {
		return
	}
	summary := summarizeIRC(rawLine)
	if d.verbose {
		slog.Debug("ircrunner: dropped message",
			"reason", reason,
			"command", summary.command,
			"channel", summary.channel,
			"sample", summary.sample,
		)
	}

	entry := d.reasons[reason]
	if entry == nil {
		entry = &dropReasonSummary{
			byCommand:   make(map[string]int),
			sampleByCmd: make(map[string]string),
		}
		d.reasons[reason] = entry
	}
	entry.total++
	entry.byCommand[summary.command]++
	if _, ok := entry.sampleByCmd[summary.command]; !ok {
		entry.sampleByCmd[summary.command] = summary.sample
	}

	if now.After(d.nextEmit) || now.Equal(d.nextEmit) {
		d.flush(now)
	}
}

func (d *dropLogger) flush(now time.Time) {
	if d == nil {
		return
	}
	if len(d.reasons) == 0 {
		d.nextEmit = now.Add(d.interval)
		return
	}
	for _, reason := range sortedKeys(d.reasons) {
		rs := d.reasons[reason]
		if rs == nil || rs.total == 0 {
			continue
		}
		slog.Info("ircrunner: dropped_"+reason,
			"total", rs.total,
			"commands", formatCommandCounts(rs.byCommand),
		)
	}
	clear(d.reasons)
	d.nextEmit = now.Add(d.interval)
}

func summarizeIRC(rawLine string) ircSummary {
	line := strings.TrimSpace(rawLine)
	if line == "" {
		return ircSummary{command: "UNKNOWN"}
	}
	if strings.HasPrefix(line, "@") {
		idx := strings.IndexByte(line, ' ')
		if idx == -1 {
			return ircSummary{command: "UNKNOWN", sample: sanitizeAndTruncate(line, dropSampleMaxLen)}
		}
		line = strings.TrimSpace(line[idx+1:])
	}
	if strings.HasPrefix(line, ":") {
		idx := strings.IndexByte(line, ' ')
		if idx == -1 {
			return ircSummary{command: "UNKNOWN", sample: sanitizeAndTruncate(line, dropSampleMaxLen)}
		}
		line = strings.TrimSpace(line[idx+1:])
	}
	if line == "" {
		return ircSummary{command: "UNKNOWN"}
	}
	cmd := line
	rest := ""
	if idx := strings.IndexByte(line, ' '); idx != -1 {
		cmd = line[:idx]
		rest = strings.TrimSpace(line[idx+1:])
	}
	cmd = strings.ToUpper(cmd)

	channel := ""
	for _, part := range strings.Fields(rest) {
		if strings.HasPrefix(part, "#") {
			channel = part
			break
		}
	}

	return ircSummary{
		command: cmd,
		channel: sanitizeAndTruncate(channel, dropChannelMaxLen),
		sample:  sanitizeAndTruncate(rest, dropSampleMaxLen),
	}
}

func sanitizeAndTruncate(s string, max int) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	s = strings.ReplaceAll(s, "\r", " ")
	s = strings.ReplaceAll(s, "\n", " ")
	s = strings.Join(strings.Fields(s), " ")

	upper := strings.ToUpper(s)
	if strings.HasPrefix(upper, "PASS ") || upper == "PASS" {
		s = "PASS [REDACTED]"
	}
	s = oauthTokenRe.ReplaceAllString(s, "oauth:[REDACTED]")
	s = longTokenRe.ReplaceAllStringFunc(s, func(v string) string {
		if strings.HasPrefix(v, "#") {
			return v
		}
		return "[REDACTED]"
	})

	if max <= 0 || len(s) <= max {
		return s
	}
	if max <= 3 {
		return s[:max]
	}
	return s[:max-3] + "..."
}

func formatCommandCounts(counts map[string]int) string {
	if len(counts) == 0 {
		return "{}"
	}
	parts := make([]string, 0, len(counts))
	for _, cmd := range sortedKeys(counts) {
		parts = append(parts, fmt.Sprintf("%s:%d", cmd, counts[cmd]))
	}
	return "{" + strings.Join(parts, " ") + "}"
}

func sortedKeys[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
