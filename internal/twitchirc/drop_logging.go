package twitchirc

import (
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strings"

	"golang.org/x/time/rate"
)

const (
	dropSampleMaxLen  = 96
	dropChannelMaxLen = 32
)

var (
	oauthTokenRe = regexp.MustCompile(`(?i)oauth:[^\s;]+`)
	longTokenRe  = regexp.MustCompile(`[A-Za-z0-9+/_=\-]{24,}`)
)

type lineSummary struct {
	command string
	channel string
	sample  string
}

type dropReasonSummary struct {
	total        int
	firstLine    int
	byCommand    map[string]int
	sampleByCmd  map[string]string
	channelByCmd map[string]string
}

// DropLogger reports lines that failed to convert. Every drop is counted;
// the per-line warning is emitted for the first drop and then every Nth
// one so a badly broken log does not flood stderr.
type DropLogger struct {
	logger  *slog.Logger
	verbose *rate.Sometimes
	reasons map[string]*dropReasonSummary
}

func NewDropLogger(logger *slog.Logger, every int) *DropLogger {
	if logger == nil {
		logger = slog.Default()
	}
	if every < 1 {
		every = 1
	}
	return &DropLogger{
		logger:  logger,
		verbose: &rate.Sometimes{Every: every},
		reasons: make(map[string]*dropReasonSummary),
	}
}

// Note records a dropped line. lineNo is 1-based.
func (d *DropLogger) Note(lineNo int, reason, rawLine string, err error) {
	if d == nil {
		return
	}
	raw := strings.TrimRight(rawLine, "\r\n")
	d.verbose.Do(func() {
		d.logger.Warn("twitchirc: dropped line",
			"line", lineNo,
			"reason", reason,
			"err", err,
			"raw", raw,
		)
	})

	summary := summarizeLine(raw)
	entry := d.reasons[reason]
	if entry == nil {
		entry = &dropReasonSummary{
			firstLine:    lineNo,
			byCommand:    make(map[string]int),
			sampleByCmd:  make(map[string]string),
			channelByCmd: make(map[string]string),
		}
		d.reasons[reason] = entry
	}

	entry.total++
	entry.byCommand[summary.command]++
	if _, ok := entry.sampleByCmd[summary.command]; !ok {
		entry.sampleByCmd[summary.command] = summary.sample
	}
	if _, ok := entry.channelByCmd[summary.command]; !ok {
		entry.channelByCmd[summary.command] = summary.channel
	}
}

// Totals returns the number of drops per reason since the last Flush.
func (d *DropLogger) Totals() map[string]int {
	out := make(map[string]int, len(d.reasons))
	for reason, rs := range d.reasons {
		out[reason] = rs.total
	}
	return out
}

// Flush logs one summary record per drop reason and resets the counts.
func (d *DropLogger) Flush() {
	if d == nil || len(d.reasons) == 0 {
		return
	}
	for _, reason := range sortedKeys(d.reasons) {
		rs := d.reasons[reason]
		if rs == nil || rs.total == 0 {
			continue
		}
		d.logger.Info("twitchirc: dropped_"+reason,
			"total", rs.total,
			"first_line", rs.firstLine,
			"commands", formatCommandCounts(rs.byCommand),
			"samples", formatCommandSamples(rs.sampleByCmd, rs.channelByCmd),
		)
	}
	clear(d.reasons)
}

// summarizeLine pulls the IRC command, channel and a short text sample out
// of a logged line without trusting its shape.
func summarizeLine(rawLine string) lineSummary {
	line := strings.TrimSpace(rawLine)
	if line == "" {
		return lineSummary{command: "UNKNOWN"}
	}

	_, rest, ok := strings.Cut(line, " :")
	if !ok {
		return lineSummary{
			command: "UNKNOWN",
			sample:  sanitizeAndTruncate(line, dropSampleMaxLen),
		}
	}

	// rest is "prefix COMMAND #channel :text"; the prefix is optional.
	fields := strings.Fields(rest)
	if len(fields) > 0 && strings.ContainsAny(fields[0], "!.") {
		fields = fields[1:]
	}
	if len(fields) == 0 {
		return lineSummary{command: "UNKNOWN"}
	}
	cmd := strings.ToUpper(fields[0])
	if strings.HasPrefix(cmd, ":") || strings.HasPrefix(cmd, "#") {
		cmd = "UNKNOWN"
	}

	channel := ""
	for _, part := range fields {
		if strings.HasPrefix(part, "#") {
			channel = part
			break
		}
	}

	sample := ""
	if idx := strings.Index(rest, " :"); idx != -1 {
		sample = strings.TrimSpace(rest[idx+2:])
	}
	if sample == "" {
		sample = channel
	}

	return lineSummary{
		command: cmd,
		channel: sanitizeAndTruncate(channel, dropChannelMaxLen),
		sample:  sanitizeAndTruncate(sample, dropSampleMaxLen),
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

func formatCommandSamples(samples map[string]string, channels map[string]string) string {
	if len(samples) == 0 {
		return "{}"
	}
	parts := make([]string, 0, len(samples))
	for _, cmd := range sortedKeys(samples) {
		sample := samples[cmd]
		channel := channels[cmd]
		if channel != "" {
			parts = append(parts, cmd+":'"+channel+" "+sample+"'")
			continue
		}
		parts = append(parts, cmd+":'"+sample+"'")
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
