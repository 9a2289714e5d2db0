package annotations

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
)

// OutputFormatter formats events for human-readable display.
type OutputFormatter struct {
	useColor bool
	writer   io.Writer
}

// NewOutputFormatter creates a formatter with color support detection.
func NewOutputFormatter(w io.Writer) *OutputFormatter {
	if w == nil {
		w = os.Stdout
	}

	// Auto-detect color support
	useColor := false
	if f, ok := w.(*os.File); ok {
		useColor = isTerminal(f.Fd())
	}

	return &OutputFormatter{
		useColor: useColor,
		writer:   w,
	}
}

// NewPlainFormatter creates a formatter that never emits color codes.
func NewPlainFormatter(w io.Writer) *OutputFormatter {
	f := NewOutputFormatter(w)
	f.useColor = false
	return f
}

// Handle implements the Handler interface - prints events as they occur
func (f *OutputFormatter) Handle(event Event) {
	output := f.Format(event)
	if output != "" {
		fmt.Fprintln(f.writer, output)
	}
}

// Format converts an event to a human-readable string.
func (f *OutputFormatter) Format(event Event) string {
	latency := f.formatLatency(event.Latency)

	switch event.Name {
	case QueryInvoked:
		return fmt.Sprintf("%s Query: %s", latency, truncateQuery(stringOf(event.Data["query"])))

	case QueryComplete:
		if success, _ := event.Data["success"].(bool); !success {
			return fmt.Sprintf("%s %s Query failed: %v",
				latency,
				f.colorize("✗", color.FgRed),
				event.Data["error"])
		}
		return fmt.Sprintf("%s %s Query done with %s (%s)",
			latency,
			f.colorize("===", color.FgGreen),
			f.colorizeCount("rows", intOf(event.Data["rows.count"])),
			f.cacheOutcome(event.Data["cache.hit"]))

	case PlanCacheHit:
		return fmt.Sprintf("%s %s plan %s, %s rebound",
			latency,
			f.colorize("cache hit", color.FgGreen),
			shortID(event.Data["plan.id"]),
			f.colorizeCount("slots", intOf(event.Data["slots.count"])))

	case PlanCacheMiss:
		return fmt.Sprintf("%s %s digest %016x",
			latency,
			f.colorize("cache miss", color.FgYellow),
			event.Data["digest"])

	case PlanCompiled:
		return fmt.Sprintf("%s Compiled plan %s: %s",
			latency,
			shortID(event.Data["plan.id"]),
			f.colorize(truncateQuery(stringOf(event.Data["plan.text"])), color.FgCyan))

	case PlanCacheInserted:
		return fmt.Sprintf("%s Cached plan %s (%s resident)",
			latency,
			shortID(event.Data["plan.id"]),
			f.colorizeCount("plans", intOf(event.Data["cache.size"])))

	case StageComplete:
		return fmt.Sprintf("%s %s",
			latency,
			f.RenderStage(stringOf(event.Data["stage"]), intOf(event.Data["input.size"]), intOf(event.Data["output.size"])))

	case ErrorQueryBinding:
		return fmt.Sprintf("%s %s cannot bind %v to @%s of plan %s: %v",
			latency,
			f.colorize("⚠️", color.FgYellow),
			event.Data["value"],
			event.Data["slot"],
			shortID(event.Data["plan.id"]),
			event.Data["error"])

	case ErrorQueryInternal, ErrorBackend:
		return fmt.Sprintf("%s %s %s: %v",
			latency,
			f.colorize("✗", color.FgRed),
			event.Name,
			event.Data["error"])

	default:
		// Generic format for unknown events
		return fmt.Sprintf("%s %s %v", latency, event.Name, event.Data)
	}
}

// RenderStage renders an execution stage as Stage(name) on X rows → Y rows
func (f *OutputFormatter) RenderStage(stage string, in, out int) string {
	if !f.useColor {
		return fmt.Sprintf("Stage(%s) on %d rows → %d rows", stage, in, out)
	}
	return fmt.Sprintf("%s%s%s on %s%s%s",
		color.BlueString("Stage("),
		color.CyanString(stage),
		color.BlueString(")"),
		f.colorizeCount("rows", in),
		color.YellowString(" → "),
		f.colorizeCount("rows", out))
}

func (f *OutputFormatter) cacheOutcome(hit interface{}) string {
	if b, _ := hit.(bool); b {
		return f.colorize("cached plan", color.FgGreen)
	}
	return f.colorize("fresh plan", color.FgYellow)
}

// formatLatency formats a duration as [XXXms] or [XXXµs] with color coding.
func (f *OutputFormatter) formatLatency(d time.Duration) string {
	// Use microseconds for sub-millisecond durations
	if d < time.Millisecond {
		s := fmt.Sprintf("[%dµs]", d.Microseconds())
		if !f.useColor {
			return s
		}
		return color.GreenString(s)
	}

	// Use floating-point milliseconds to preserve precision
	ms := float64(d.Microseconds()) / 1000.0
	s := fmt.Sprintf("[%.1fms]", ms)

	if !f.useColor {
		return s
	}

	switch {
	case ms < 50:
		return color.GreenString(s)
	case ms < 200:
		return color.YellowString(s)
	default:
		return color.RedString(s)
	}
}

// colorizeCount formats a count with a label, using color based on the label type.
func (f *OutputFormatter) colorizeCount(label string, count int) string {
	text := fmt.Sprintf("%d %s", count, label)

	if !f.useColor {
		return text
	}

	switch strings.ToLower(label) {
	case "rows":
		return color.MagentaString(text)
	case "slots":
		return color.CyanString(text)
	case "plans":
		return color.BlueString(text)
	default:
		return text
	}
}

// colorize applies color if enabled.
func (f *OutputFormatter) colorize(text string, attrs ...color.Attribute) string {
	if !f.useColor {
		return text
	}
	return color.New(attrs...).Sprint(text)
}

// truncateQuery shortens long queries for display.
func truncateQuery(query string) string {
	// Remove extra whitespace
	query = strings.Join(strings.Fields(query), " ")

	const maxLen = 100
	if len(query) <= maxLen {
		return query
	}

	return query[:maxLen-3] + "..."
}

// shortID renders the first block of a plan id
func shortID(v interface{}) string {
	s := stringOf(v)
	if i := strings.IndexByte(s, '-'); i > 0 {
		return s[:i]
	}
	return s
}

func stringOf(v interface{}) string {
	switch s := v.(type) {
	case string:
		return s
	case fmt.Stringer:
		return s.String()
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

func intOf(v interface{}) int {
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	default:
		return 0
	}
}

// ConsoleHandler creates a handler that prints formatted events to stdout.
func ConsoleHandler() Handler {
	return NewOutputFormatter(os.Stdout).Handle
}

// isTerminal checks if the file descriptor is a terminal.
func isTerminal(fd uintptr) bool {
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
