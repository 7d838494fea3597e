package logger

import (
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Field is one structured key/value attached to a log entry.
type Field struct {
	key   string
	value interface{}
	addTo func(e *zerolog.Event)
}

// Key returns the field name.
func (f Field) Key() string { return f.key }

// Value returns the value as it is sent to the collector.
func (f Field) Value() interface{} { return f.value }

func String(key, value string) Field {
	return Field{key: key, value: value, addTo: func(e *zerolog.Event) { e.Str(key, value) }}
}

func Int(key string, value int) Field {
	return Field{key: key, value: value, addTo: func(e *zerolog.Event) { e.Int(key, value) }}
}

func Int64(key string, value int64) Field {
	return Field{key: key, value: value, addTo: func(e *zerolog.Event) { e.Int64(key, value) }}
}

func Float64(key string, value float64) Field {
	return Field{key: key, value: value, addTo: func(e *zerolog.Event) { e.Float64(key, value) }}
}

func Bool(key string, value bool) Field {
	return Field{key: key, value: value, addTo: func(e *zerolog.Event) { e.Bool(key, value) }}
}

// Duration is logged in milliseconds.
func Duration(key string, value time.Duration) Field {
	return Int64(key, value.Milliseconds())
}

func Strings(key string, value []string) Field {
	return String(key, strings.Join(value, ", "))
}

func Any(key string, value interface{}) Field {
	return Field{key: key, value: value, addTo: func(e *zerolog.Event) { e.Interface(key, value) }}
}

func Error(err error) Field {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	return Field{key: "error", value: msg, addTo: func(e *zerolog.Event) { e.Err(err) }}
}
