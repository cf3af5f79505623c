package logger

import (
	"os"

	"github.com/sirupsen/logrus"
)

// Logger wraps a logrus logger whose records are mirrored onto an event Bus
// so that dashboards and log shippers can subscribe without a global emitter.
type Logger struct {
	*logrus.Logger
	bus *Bus
}

// New creates a logger for the given environment. Production gets JSON
// output; everything else gets human-readable text with debug enabled.
func New(environment string) *Logger {
	l := logrus.New()
	l.SetOutput(os.Stdout)

	if environment == "production" {
		l.SetFormatter(&logrus.JSONFormatter{})
		l.SetLevel(logrus.InfoLevel)
	} else {
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
		l.SetLevel(logrus.DebugLevel)
	}

	bus := NewBus()
	l.AddHook(&busHook{bus: bus})

	return &Logger{Logger: l, bus: bus}
}

// Events returns the bus carrying this logger's records.
func (l *Logger) Events() *Bus {
	return l.bus
}

// Close shuts down the event bus. Idempotent.
func (l *Logger) Close() {
	l.bus.Close()
}

// busHook forwards every logrus entry to the event bus.
type busHook struct {
	bus *Bus
}

func (h *busHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

func (h *busHook) Fire(entry *logrus.Entry) error {
	ctx := make(map[string]interface{}, len(entry.Data))
	for k, v := range entry.Data {
		ctx[k] = v
	}
	h.bus.Publish(Event{
		Timestamp: entry.Time,
		Level:     entry.Level.String(),
		Message:   entry.Message,
		Context:   ctx,
	})
	return nil
}
