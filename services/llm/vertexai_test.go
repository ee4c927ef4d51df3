package llmsvc

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NaveenRoman/AI-TUTor/core"
	"github.com/NaveenRoman/AI-TUTor/core/tutor"
)

func TestNewVertexAnswerer_Disabled(t *testing.T) {
	va, err := NewVertexAnswerer(context.Background(), &core.Config{})
	require.NoError(t, err)
	assert.Nil(t, va)
	assert.NoError(t, va.Close())
}

func TestBuildPrompt(t *testing.T) {
	prompt := buildPrompt("what is a pointer?", "A pointer holds an address.", tutor.ModeProgram, "c")
	assert.Contains(t, prompt, "Question: what is a pointer?")
	assert.Contains(t, prompt, "A pointer holds an address.")
	assert.Contains(t, prompt, modeInstructions[tutor.ModeProgram])
	assert.Contains(t, prompt, "Programming language: c.")

	prompt = buildPrompt("q", "x", tutor.ModeAuto, "")
	assert.NotContains(t, prompt, "Programming language")
}

func TestVertexAnswerer_Answer(t *testing.T) {
	tests := []struct {
		name    string
		out     string
		err     error
		want    string
		wantErr bool
	}{
		{name: "trimmed answer", out: "  A pointer stores an address.\n", want: "A pointer stores an address."},
		{name: "empty answer", out: "   ", wantErr: true},
		{name: "model error", err: errors.New("quota exceeded"), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var prompt string
			va := &VertexAnswerer{generate: func(_ context.Context, p string) (string, error) {
				prompt = p
				return tt.out, tt.err
			}}

			got, err := va.Answer(context.Background(), "what is a pointer?", "extract", tutor.ModeAuto, "")
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Contains(t, prompt, "what is a pointer?")
		})
	}
}
