package logging

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
)

// followInterval is how often Follow polls the log file for new lines.
const followInterval = 100 * time.Millisecond

// maxLineSize bounds a single log line.
const maxLineSize = 1024 * 1024

// LogEntry is one parsed JSON log line.
type LogEntry struct {
	Time    time.Time
	Level   string
	Msg     string
	Attrs   map[string]any
	Raw     string // original line
	IsValid bool   // false when the line is not JSON
}

// ViewerConfig configures the log viewer.
type ViewerConfig struct {
	Level   string         // minimum level (debug, info, warn, error)
	Pattern *regexp.Regexp // raw-line filter
	NoColor bool
}

// Viewer reads, filters and formats log files written by Setup.
type Viewer struct {
	config ViewerConfig
	out    io.Writer
	levels map[string]lipgloss.Style
}

// NewViewer creates a viewer that prints to out.
func NewViewer(cfg ViewerConfig, out io.Writer) *Viewer {
	r := lipgloss.NewRenderer(out)
	return &Viewer{
		config: cfg,
		out:    out,
		levels: map[string]lipgloss.Style{
			"DEBUG": r.NewStyle().Foreground(lipgloss.Color("8")),
			"INFO":  r.NewStyle().Foreground(lipgloss.Color("2")),
			"WARN":  r.NewStyle().Foreground(lipgloss.Color("3")),
			"ERROR": r.NewStyle().Foreground(lipgloss.Color("1")).Bold(true),
		},
	}
}

// LogFiles returns path and its rotated backups in chronological order,
// oldest backup first. Missing files are left out.
func LogFiles(path string) []string {
	w := &RotatingWriter{path: path}
	var files []string
	for _, n := range w.backupNumbers() {
		files = append(files, fmt.Sprintf("%s.%d", path, n))
	}
	if _, err := os.Stat(path); err == nil {
		files = append(files, path)
	}
	return files
}

// Tail returns the last n matching entries across files, read in order.
func (v *Viewer) Tail(files []string, n int) ([]LogEntry, error) {
	if len(files) == 0 {
		return nil, fmt.Errorf("no log files found")
	}
	var entries []LogEntry
	for _, path := range files {
		if err := v.scan(path, func(entry LogEntry) {
			entries = append(entries, entry)
			if n > 0 && len(entries) > 2*n {
				entries = append(entries[:0], entries[len(entries)-n:]...)
			}
		}); err != nil {
			return nil, err
		}
	}
	if n > 0 && len(entries) > n {
		entries = entries[len(entries)-n:]
	}
	return entries, nil
}

func (v *Viewer) scan(path string, emit func(LogEntry)) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer func() { _ = file.Close() }()

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)
	for scanner.Scan() {
		entry := ParseLine(scanner.Text())
		if v.matches(entry) {
			emit(entry)
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read log file: %w", err)
	}
	return nil
}

// Follow sends entries appended to path until ctx is done. When the writer
// rotates the file, Follow reopens the new file from its start.
func (v *Viewer) Follow(ctx context.Context, path string, entries chan<- LogEntry) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer func() { _ = file.Close() }()
	if _, err := file.Seek(0, io.SeekEnd); err != nil {
		return fmt.Errorf("failed to seek to end: %w", err)
	}

	reader := bufio.NewReader(file)
	ticker := time.NewTicker(followInterval)
	defer ticker.Stop()

	var partial string
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		for {
			chunk, err := reader.ReadString('\n')
			partial += chunk
			if err != nil {
				break
			}
			line := strings.TrimSuffix(partial, "\n")
			partial = ""
			if line == "" {
				continue
			}
			if entry := ParseLine(line); v.matches(entry) {
				select {
				case entries <- entry:
				case <-ctx.Done():
					return nil
				}
			}
		}

		if rotated(file, path) {
			next, err := os.Open(path)
			if err != nil {
				continue
			}
			_ = file.Close()
			file = next
			reader.Reset(file)
			partial = ""
		}
	}
}

// rotated reports whether path no longer names the open file.
func rotated(file *os.File, path string) bool {
	current, err := os.Stat(path)
	if err != nil {
		return false
	}
	open, err := file.Stat()
	if err != nil {
		return true
	}
	return !os.SameFile(open, current)
}

// ParseLine parses one JSON log line. Lines that are not JSON come back
// with IsValid false and only Raw set.
func ParseLine(line string) LogEntry {
	entry := LogEntry{Raw: line}

	var data map[string]any
	if err := json.Unmarshal([]byte(line), &data); err != nil {
		return entry
	}
	entry.IsValid = true

	if t, ok := data["time"].(string); ok {
		if parsed, err := time.Parse(time.RFC3339Nano, t); err == nil {
			entry.Time = parsed
		}
	}
	entry.Level, _ = data["level"].(string)
	entry.Msg, _ = data["msg"].(string)

	entry.Attrs = make(map[string]any, len(data))
	for k, val := range data {
		switch k {
		case "time", "level", "msg":
		default:
			entry.Attrs[k] = val
		}
	}
	return entry
}

func (v *Viewer) matches(entry LogEntry) bool {
	if v.config.Level != "" && entry.IsValid {
		if LevelFromString(entry.Level) < LevelFromString(v.config.Level) {
			return false
		}
	}
	if v.config.Pattern != nil && !v.config.Pattern.MatchString(entry.Raw) {
		return false
	}
	return true
}

// FormatEntry renders entry as "15:04:05.000 LEVEL msg key=value ...".
// Attributes are sorted by key.
func (v *Viewer) FormatEntry(entry LogEntry) string {
	if !entry.IsValid {
		return entry.Raw
	}

	keys := make([]string, 0, len(entry.Attrs))
	for k := range entry.Attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(entry.Time.Format("15:04:05.000"))
	b.WriteByte(' ')
	b.WriteString(v.formatLevel(entry.Level))
	b.WriteByte(' ')
	b.WriteString(entry.Msg)
	for _, k := range keys {
		fmt.Fprintf(&b, " %s=%v", k, entry.Attrs[k])
	}
	return b.String()
}

func (v *Viewer) formatLevel(level string) string {
	label := strings.ToUpper(level)
	if len(label) > 5 {
		label = label[:5]
	}
	padded := fmt.Sprintf("%-5s", label)
	style, ok := v.levels[label]
	if v.config.NoColor || !ok {
		return padded
	}
	return style.Render(padded)
}

// Print writes entries to the viewer's output, one per line.
func (v *Viewer) Print(entries []LogEntry) {
	for _, entry := range entries {
		_, _ = fmt.Fprintln(v.out, v.FormatEntry(entry))
	}
}
