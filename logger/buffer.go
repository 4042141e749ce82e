package logger

import (
	"fmt"
	"strings"
	"sync"
)

// Buffer is a Logger for tests. Every message is kept in Messages as
// "[level] message key=value...". Loggers made with WithFields write to the
// Buffer they came from.
type Buffer struct {
	mu       sync.Mutex
	Messages []string

	root   *Buffer
	fields Fields
}

// NewBuffer returns a Buffer with an empty, non-nil Messages.
func NewBuffer() *Buffer {
	return &Buffer{Messages: []string{}}
}

func (b *Buffer) record(level Level, format string, v ...any) {
	var line strings.Builder
	fmt.Fprintf(&line, "[%s] ", strings.ToLower(level.String()))
	fmt.Fprintf(&line, format, v...)
	for _, f := range b.fields {
		fmt.Fprintf(&line, " %s=%s", f.Key(), f.String())
	}

	root := b
	if b.root != nil {
		root = b.root
	}
	root.mu.Lock()
	defer root.mu.Unlock()
	root.Messages = append(root.Messages, line.String())
}

func (b *Buffer) Debug(format string, v ...any)  { b.record(DEBUG, format, v...) }
func (b *Buffer) Error(format string, v ...any)  { b.record(ERROR, format, v...) }
func (b *Buffer) Fatal(format string, v ...any)  { b.record(FATAL, format, v...) }
func (b *Buffer) Notice(format string, v ...any) { b.record(NOTICE, format, v...) }
func (b *Buffer) Warn(format string, v ...any)   { b.record(WARN, format, v...) }
func (b *Buffer) Info(format string, v ...any)   { b.record(INFO, format, v...) }

func (b *Buffer) WithFields(fields ...Field) Logger {
	root := b
	if b.root != nil {
		root = b.root
	}
	return &Buffer{
		root:   root,
		fields: append(append(Fields{}, b.fields...), fields...),
	}
}

func (b *Buffer) SetLevel(level Level) {}

func (b *Buffer) Level() Level {
	return DEBUG
}
