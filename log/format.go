package log

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/datarhei/relay/encoding/json"
)

type Formatter interface {
	Bytes(e *Event) []byte
	String(e *Event) string
}

type jsonFormatter struct{}

func NewJSONFormatter() Formatter {
	return &jsonFormatter{}
}

func (f *jsonFormatter) Bytes(e *Event) []byte {
	data := map[string]interface{}{}

	for k, v := range e.Data {
		if err, ok := v.(error); ok {
			v = err.Error()
		}
		data[k] = v
	}

	data["ts"] = e.Time
	data["level"] = e.Level.String()
	data["component"] = e.Component

	if len(e.Caller) != 0 {
		data["caller"] = e.Caller
	}

	if len(e.Message) != 0 {
		data["message"] = e.Message
	}

	b, err := json.Marshal(data)
	if err != nil {
		b, _ = json.Marshal(map[string]string{"message": e.Message, "error": err.Error()})
	}

	return append(b, '\n')
}

func (f *jsonFormatter) String(e *Event) string {
	return string(f.Bytes(e))
}

type consoleFormatter struct {
	color bool
}

func NewConsoleFormatter(useColor bool) Formatter {
	return &consoleFormatter{
		color: useColor,
	}
}

var levelColors = map[Level]string{
	Ldebug: "\033[35m",
	Linfo:  "\033[34m",
	Lwarn:  "\033[33m",
	Lerror: "\033[31m",
}

func (f *consoleFormatter) Bytes(e *Event) []byte {
	return []byte(f.String(e))
}

func (f *consoleFormatter) String(e *Event) string {
	var sb strings.Builder

	level := e.Level.String()
	if color, ok := levelColors[e.Level]; ok && f.color {
		level = color + level + "\033[0m"
	}

	sb.WriteString(f.kv("ts", e.Time.UTC().Format(time.RFC3339)))
	sb.WriteString(" ")
	sb.WriteString(f.kv("level", level))
	sb.WriteString(" ")
	sb.WriteString(f.kv("component", strconv.Quote(e.Component)))

	if len(e.Message) != 0 {
		sb.WriteString(" ")
		sb.WriteString(f.kv("msg", strconv.Quote(e.Message)))
	}

	keys := make([]string, 0, len(e.Data))
	for key := range e.Data {
		keys = append(keys, key)
	}

	sort.Strings(keys)

	for _, key := range keys {
		sb.WriteString(" ")
		sb.WriteString(f.kv(key, f.value(e.Data[key])))
	}

	sb.WriteString("\n")

	return sb.String()
}

func (f *consoleFormatter) value(v interface{}) string {
	switch val := v.(type) {
	case bool:
		return strconv.FormatBool(val)
	case string:
		return strconv.Quote(val)
	case error:
		return strconv.Quote(val.Error())
	case fmt.Stringer:
		return strconv.Quote(val.String())
	}

	data, err := json.Marshal(v)
	if err != nil {
		return strconv.Quote(err.Error())
	}

	return string(data)
}

func (f *consoleFormatter) kv(key, value string) string {
	if !f.color {
		return key + "=" + value
	}

	if key == "error" {
		value = "\033[31m" + value + "\033[0m"
	}

	return "\033[90m" + key + "=\033[0m" + value
}
