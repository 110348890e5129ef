package services

import (
	"strings"
	"sync"
	"time"
)

// DefaultConsoleLines is the console history length kept in memory.
const DefaultConsoleLines = 1000

// LineBroadcaster pushes console lines to live subscribers.
type LineBroadcaster interface {
	BroadcastLine(line string)
}

// ConsoleService is the log sink hosts write console output to. It keeps a
// bounded history and forwards each line to live subscribers.
type ConsoleService struct {
	mu          sync.RWMutex
	lines       []string
	max         int
	broadcaster LineBroadcaster
	now         func() time.Time
}

// NewConsoleService creates a console sink. broadcaster may be nil.
func NewConsoleService(maxLines int, broadcaster LineBroadcaster) *ConsoleService {
	if maxLines <= 0 {
		maxLines = DefaultConsoleLines
	}
	return &ConsoleService{
		lines:       make([]string, 0, maxLines),
		max:         maxLines,
		broadcaster: broadcaster,
		now:         time.Now,
	}
}

// WriteLine implements host.LogSink. Lines from the "stderr" source are
// tagged as errors; blank lines are dropped.
func (c *ConsoleService) WriteLine(source, line string) {
	line = strings.TrimSpace(strings.TrimRight(line, "\r\n"))
	if line == "" {
		return
	}
	if source == "stderr" {
		line = "[ERROR] " + line
	}
	stamped := "[" + c.now().Format("15:04:05.000") + "] " + line

	c.mu.Lock()
	c.lines = append(c.lines, stamped)
	if over := len(c.lines) - c.max; over > 0 {
		c.lines = append(c.lines[:0], c.lines[over:]...)
	}
	c.mu.Unlock()

	if c.broadcaster != nil {
		c.broadcaster.BroadcastLine(stamped)
	}
}

// History returns a copy of the buffered lines, oldest first.
func (c *ConsoleService) History() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]string(nil), c.lines...)
}
