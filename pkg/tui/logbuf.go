package tui

import (
	"bytes"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
)

// LogBuffer collects log output for the in-app log pane. It is safe for
// concurrent writers.
type LogBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func NewLogBuffer() *LogBuffer {
	return &LogBuffer{}
}

func (b *LogBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

// Tail returns the last n lines.
func (b *LogBuffer) Tail(n int) []string {
	b.mu.Lock()
	s := b.buf.String()
	b.mu.Unlock()

	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	if len(lines) == 1 && lines[0] == "" {
		return nil
	}
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return lines
}

// NewLogger returns a logger writing styled lines into b.
func NewLogger(b *LogBuffer, level log.Level) *log.Logger {
	logger := log.NewWithOptions(b, log.Options{
		ReportTimestamp: true,
		TimeFormat:      "15:04:05",
		Level:           level,
	})
	logger.SetStyles(&log.Styles{
		Timestamp: subtleStyle,
		Caller:    lipgloss.NewStyle().Faint(true),
		Prefix:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7D56F4")),
		Message:   lipgloss.NewStyle().Foreground(lipgloss.Color("#FAFAFA")),
		Key:       lipgloss.NewStyle().Foreground(lipgloss.Color("#874BFD")),
		Value:     lipgloss.NewStyle().Foreground(lipgloss.Color("#FAFAFA")),
		Separator: lipgloss.NewStyle().Faint(true),
		Levels: map[log.Level]lipgloss.Style{
			log.DebugLevel: subtleStyle.SetString("DEBUG"),
			log.InfoLevel:  infoStyle.SetString("INFO"),
			log.WarnLevel:  warnStyle.SetString("WARN"),
			log.ErrorLevel: errStyle.SetString("ERROR"),
		},
		Keys:   map[string]lipgloss.Style{},
		Values: map[string]lipgloss.Style{},
	})
	return logger
}
