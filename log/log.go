// Package log provides a structured logger with 4 levels. Log events are
// handed to a Writer that decides where and how they are written.
package log

import (
	"fmt"
	"reflect"
	"runtime"
	"runtime/debug"
	"strings"
	"time"

	"github.com/datarhei/relay/encoding/json"
)

// Level represents a log level
type Level uint

const (
	Lsilent Level = 0
	Lerror  Level = 1
	Lwarn   Level = 2
	Linfo   Level = 3
	Ldebug  Level = 4
)

var levelNames = []string{"SILENT", "ERROR", "WARN", "INFO", "DEBUG"}

func (level Level) String() string {
	if level > Ldebug {
		return "UNKNOWN"
	}

	return levelNames[level]
}

func (level Level) MarshalJSON() ([]byte, error) {
	return json.Marshal(level.String())
}

// ParseLevel returns the level for a name like "debug" or "WARN".
func ParseLevel(name string) (Level, error) {
	for i, n := range levelNames {
		if strings.EqualFold(n, name) {
			return Level(i), nil
		}
	}

	return Lsilent, fmt.Errorf("unknown log level '%s'", name)
}

type Fields map[string]interface{}

// Logger is the interface for writing log messages.
//
// A message is written by selecting a level and calling Log, e.g.
// logger.Info().WithField("path", path).Log("publishing").
// Without a selected level, Log writes with the debug level.
type Logger interface {
	// WithOutput returns a Logger that writes to w.
	WithOutput(w Writer) Logger

	// WithComponent returns a Logger for the given component.
	WithComponent(component string) Logger

	WithField(key string, value interface{}) Logger
	WithFields(fields Fields) Logger
	WithError(err error) Logger

	// Log writes the message according to fmt.Printf.
	Log(format string, args ...interface{})

	Debug() Logger
	Info() Logger
	Warn() Logger
	Error() Logger

	// Write implements io.Writer. Each call is logged as one message.
	Write(p []byte) (int, error)

	Close()
}

type logger struct {
	output     Writer
	component  string
	modulePath string
}

// New returns a Logger for the component. It discards all messages until an
// output is set with WithOutput.
func New(component string) Logger {
	l := &logger{
		component: component,
	}

	if info, ok := debug.ReadBuildInfo(); ok {
		l.modulePath = info.Path
	}

	return l
}

func (l *logger) Close() {
	if l.output != nil {
		l.output.Close()
	}
}

func (l *logger) clone() *logger {
	return &logger{
		output:     l.output,
		component:  l.component,
		modulePath: l.modulePath,
	}
}

func (l *logger) WithOutput(w Writer) Logger {
	clone := l.clone()
	clone.output = w

	return clone
}

func (l *logger) WithComponent(component string) Logger {
	clone := l.clone()
	clone.component = component

	return clone
}

func (l *logger) WithField(key string, value interface{}) Logger {
	return newEvent(l).WithField(key, value)
}

func (l *logger) WithFields(f Fields) Logger {
	return newEvent(l).WithFields(f)
}

func (l *logger) WithError(err error) Logger {
	return newEvent(l).WithError(err)
}

func (l *logger) Log(format string, args ...interface{}) {
	newEvent(l).log(2, format, args...)
}

func (l *logger) Debug() Logger { return newEvent(l).Debug() }
func (l *logger) Info() Logger  { return newEvent(l).Info() }
func (l *logger) Warn() Logger  { return newEvent(l).Warn() }
func (l *logger) Error() Logger { return newEvent(l).Error() }

func (l *logger) Write(p []byte) (int, error) {
	return newEvent(l).Write(p)
}

// Event is a single log message.
type Event struct {
	logger *logger

	Time      time.Time `json:"ts"`
	Level     Level     `json:"level"`
	Component string    `json:"component"`
	Caller    string    `json:"caller,omitempty"`
	Message   string    `json:"message,omitempty"`

	Data Fields `json:"data,omitempty"`
}

func newEvent(l *logger) *Event {
	return &Event{
		logger:    l,
		Component: l.component,
		Data:      Fields{},
	}
}

func (e *Event) clone() *Event {
	data := make(Fields, len(e.Data))
	for k, v := range e.Data {
		data[k] = v
	}

	return &Event{
		logger:    e.logger,
		Time:      e.Time,
		Level:     e.Level,
		Component: e.Component,
		Caller:    e.Caller,
		Message:   e.Message,
		Data:      data,
	}
}

func (e *Event) Close() {
	e.logger.Close()
}

func (e *Event) WithOutput(w Writer) Logger {
	return e.logger.WithOutput(w)
}

func (e *Event) WithComponent(component string) Logger {
	clone := e.clone()
	clone.Component = component

	return clone
}

func (e *Event) WithField(key string, value interface{}) Logger {
	return e.WithFields(Fields{key: value})
}

// WithFields adds the fields to the event. Functions can't be serialized and
// are replaced by a note.
func (e *Event) WithFields(f Fields) Logger {
	clone := e.clone()

	for k, v := range f {
		if t := reflect.TypeOf(v); t != nil && t.Kind() == reflect.Func {
			clone.Data[k] = "<func>"
			continue
		}

		clone.Data[k] = v
	}

	return clone
}

func (e *Event) WithError(err error) Logger {
	if err == nil {
		return e
	}

	return e.WithField("error", err)
}

func (e *Event) withLevel(level Level) Logger {
	clone := e.clone()
	clone.Level = level

	return clone
}

func (e *Event) Debug() Logger { return e.withLevel(Ldebug) }
func (e *Event) Info() Logger  { return e.withLevel(Linfo) }
func (e *Event) Warn() Logger  { return e.withLevel(Lwarn) }
func (e *Event) Error() Logger { return e.withLevel(Lerror) }

func (e *Event) Log(format string, args ...interface{}) {
	e.log(2, format, args...)
}

func (e *Event) log(depth int, format string, args ...interface{}) {
	if e.logger == nil || e.logger.output == nil {
		return
	}

	n := e.clone()
	n.logger = nil
	n.Time = time.Now()

	if _, file, line, ok := runtime.Caller(depth); ok {
		n.Caller = fmt.Sprintf("%s:%d", strings.TrimPrefix(file, e.logger.modulePath), line)
	}

	if n.Level == Lsilent {
		n.Level = Ldebug
	}

	if len(args) == 0 {
		n.Message = format
	} else {
		n.Message = fmt.Sprintf(format, args...)
	}

	e.logger.output.Write(n)
}

func (e *Event) Write(p []byte) (int, error) {
	e.log(2, "%s", strings.TrimSpace(string(p)))

	return len(p), nil
}
