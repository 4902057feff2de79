package log_test

import (
	"bytes"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"github.com/yeisme/dataviz/pkg/log"
)

func TestGinWriterSplitsLines(t *testing.T) {
	var buf bytes.Buffer
	l := zerolog.New(&buf)

	w := log.NewGinWriter(&l, zerolog.WarnLevel)
	n, err := w.Write([]byte("[GIN-debug] GET /\n\n[GIN-debug] POST /upload\n"))

	assert.NoError(t, err)
	assert.Equal(t, 44, n)
	assert.Equal(t, 2, bytes.Count(buf.Bytes(), []byte(`"level":"warn"`)))
	assert.Contains(t, buf.String(), `"message":"[GIN-debug] POST /upload"`)
	assert.Contains(t, buf.String(), `"source":"gin"`)
}

func TestGinWriterClampsFatal(t *testing.T) {
	var buf bytes.Buffer
	l := zerolog.New(&buf)

	_, _ = log.NewGinWriter(&l, zerolog.FatalLevel).Write([]byte("boom"))

	assert.Contains(t, buf.String(), `"level":"error"`)
}

func TestSetLevelFallsBackToInfo(t *testing.T) {
	prev := zerolog.GlobalLevel()
	t.Cleanup(func() { zerolog.SetGlobalLevel(prev) })

	log.SetLevel("DEBUG")
	assert.Equal(t, zerolog.DebugLevel, zerolog.GlobalLevel())

	log.SetLevel("loud")
	assert.Equal(t, zerolog.InfoLevel, zerolog.GlobalLevel())
}
