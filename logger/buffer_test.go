package logger_test

import (
	"testing"
	"time"

	"github.com/actionkit/actionkit/logger"
	"github.com/stretchr/testify/assert"
)

func TestBuffer(t *testing.T) {
	l := logger.NewBuffer()
	l.Info("hello %s", "world")
	func(x logger.Logger) {
		x.Debug("foo bar")
	}(l)
	assert.Equal(t, []string{
		"[info] hello world",
		"[debug] foo bar",
	}, l.Messages)
}

func TestBufferWithFields(t *testing.T) {
	l := logger.NewBuffer()
	child := l.WithFields(logger.StringField("scanner", "trivy"))
	child.WithFields(
		logger.IntField("findings", 3),
		logger.DurationField("took", 1500*time.Microsecond),
	).Warn("found things")
	l.Info("no fields")

	assert.Equal(t, []string{
		"[warn] found things scanner=trivy findings=3 took=2ms",
		"[info] no fields",
	}, l.Messages)
}
