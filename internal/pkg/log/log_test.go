package log

import (
	"bytes"
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zerolog.DebugLevel, parseLevel("debug"))
	assert.Equal(t, zerolog.WarnLevel, parseLevel(" WARNING "))
	assert.Equal(t, zerolog.Disabled, parseLevel("off"))
	assert.Equal(t, zerolog.InfoLevel, parseLevel(""))
	assert.Equal(t, zerolog.InfoLevel, parseLevel("verbose"))
}

func TestCtx_FallsBackToGlobal(t *testing.T) {
	l := zerolog.Nop()
	ctx := WithLogger(context.Background(), l)

	assert.Equal(t, zerolog.Disabled, Ctx(ctx).GetLevel())
	assert.Equal(t, L().GetLevel(), Ctx(context.Background()).GetLevel())
}

func TestNew_WritesToOutput(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: "info", ServiceName: "prwatch-mcp", Output: &buf})

	l.Info().Str(FieldKey, "BITBUCKET_PR:web:1").Msg("hello")
	l.Debug().Msg("filtered")

	out := buf.String()
	assert.Contains(t, out, `"service":"prwatch-mcp"`)
	assert.Contains(t, out, `"key":"BITBUCKET_PR:web:1"`)
	assert.NotContains(t, out, "filtered")
}
