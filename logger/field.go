package logger

import (
	"strconv"
	"time"
)

// Field is a key/value pair printed after the message of every line from a
// logger made with WithFields.
type Field interface {
	Key() string
	String() string
}

type Fields []Field

type field struct {
	key   string
	value string
}

func (f field) Key() string    { return f.key }
func (f field) String() string { return f.value }

func StringField(key, value string) Field {
	return field{key: key, value: value}
}

func IntField(key string, value int) Field {
	return field{key: key, value: strconv.Itoa(value)}
}

// DurationField rounds to the millisecond.
func DurationField(key string, value time.Duration) Field {
	return field{key: key, value: value.Round(time.Millisecond).String()}
}
