package server

import (
	"regexp"
	"strings"
	"sync"
	"time"
)

// ansiColor matches the colour escapes of the log formatter
var ansiColor = regexp.MustCompile("\x1b\\[[0-9;]*m")

// ConsoleMessage is one captured log line
type ConsoleMessage struct {
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// Console captures log output for the web console. It keeps the most recent
// messages and fans new ones out to subscribers without ever blocking the writer.
type Console struct {
	mu          sync.Mutex
	history     []ConsoleMessage
	limit       int
	subscribers map[chan ConsoleMessage]struct{}
	partial     string
}

// NewConsole creates a console that remembers up to limit messages
func NewConsole(limit int) *Console {
	return &Console{
		limit:       limit,
		subscribers: make(map[chan ConsoleMessage]struct{}),
	}
}

// Write implements io.Writer so the console can be used as a log sink.
// Output is split into lines; an unterminated tail waits for the next write.
func (c *Console) Write(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	text := c.partial + string(p)
	lines := strings.Split(text, "\n")
	c.partial = lines[len(lines)-1]

	for _, line := range lines[:len(lines)-1] {
		line = ansiColor.ReplaceAllString(strings.TrimRight(line, "\r"), "")
		if line == "" {
			continue
		}
		c.publish(ConsoleMessage{Message: line, Timestamp: time.Now()})
	}
	return len(p), nil
}

func (c *Console) publish(msg ConsoleMessage) {
	c.history = append(c.history, msg)
	if over := len(c.history) - c.limit; over > 0 {
		c.history = append(c.history[:0], c.history[over:]...)
	}

	for ch := range c.subscribers {
		select {
		case ch <- msg:
		default:
			// Subscriber is behind, drop the message
		}
	}
}

// Messages returns a copy of the remembered messages, oldest first
func (c *Console) Messages() []ConsoleMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]ConsoleMessage(nil), c.history...)
}

// Subscribe returns a channel receiving every new message and a function
// that unsubscribes and closes it.
func (c *Console) Subscribe(buffer int) (<-chan ConsoleMessage, func()) {
	ch := make(chan ConsoleMessage, buffer)
	c.mu.Lock()
	c.subscribers[ch] = struct{}{}
	c.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.subscribers, ch)
			c.mu.Unlock()
			close(ch)
		})
	}
}
