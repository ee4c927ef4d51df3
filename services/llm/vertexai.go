package llmsvc

import (
	"context"
	"fmt"
	"strings"

	"cloud.google.com/go/vertexai/genai"
	"github.com/pkg/errors"

	"github.com/NaveenRoman/AI-TUTor/core"
	"github.com/NaveenRoman/AI-TUTor/core/tutor"
)

var modeInstructions = map[string]string{
	tutor.ModeFullTopic: "Explain the whole topic step by step, with a short example.",
	tutor.ModeProgram:   "Answer with a small, complete program and explain it briefly.",
	tutor.ModeDiagnose:  "Find the bug in the student's code, explain it and show the fix.",
}

// VertexAnswerer rewrites the extracts found by the tutor into answers with a Gemini model.
type VertexAnswerer struct {
	client   *genai.Client
	model    *genai.GenerativeModel
	generate func(ctx context.Context, prompt string) (string, error)
}

var _ tutor.Answerer = (*VertexAnswerer)(nil)

// NewVertexAnswerer returns nil when no Vertex AI project is configured: the tutor then answers with the
// raw extracts.
func NewVertexAnswerer(ctx context.Context, conf *core.Config) (*VertexAnswerer, error) {
	if conf.VertexAI.Project == "" {
		return nil, nil
	}
	client, err := genai.NewClient(ctx, conf.VertexAI.Project, conf.VertexAI.Location)
	if err != nil {
		return nil, errors.Wrap(err, "creating vertex ai client")
	}

	model := client.GenerativeModel(conf.VertexAI.Model)
	model.SetTemperature(0.3)
	model.SetMaxOutputTokens(1024)

	va := &VertexAnswerer{client: client, model: model}
	va.generate = va.generateContent
	return va, nil
}

func (va *VertexAnswerer) generateContent(ctx context.Context, prompt string) (string, error) {
	resp, err := va.model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", errors.Wrap(err, "generating content")
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", errors.New("no response candidates returned")
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			sb.WriteString(string(text))
		}
	}
	return sb.String(), nil
}

func (va *VertexAnswerer) Answer(ctx context.Context, question, extract, mode, language string) (string, error) {
	answer, err := va.generate(ctx, buildPrompt(question, extract, mode, language))
	if err != nil {
		return "", err
	}
	answer = strings.TrimSpace(answer)
	if answer == "" {
		return "", errors.New("empty answer")
	}
	return answer, nil
}

func (va *VertexAnswerer) Close() error {
	if va == nil || va.client == nil {
		return nil
	}
	return va.client.Close()
}

func buildPrompt(question, extract, mode, language string) string {
	var sb strings.Builder
	sb.WriteString("You are a patient programming tutor for college students preparing for placements.\n")
	sb.WriteString("Answer only from the study material below. If it does not cover the question, say so.\n")
	if instr, ok := modeInstructions[mode]; ok {
		sb.WriteString(instr + "\n")
	}
	if language != "" {
		fmt.Fprintf(&sb, "Programming language: %s.\n", language)
	}
	fmt.Fprintf(&sb, "\nStudy material:\n%s\n\nQuestion: %s\n", extract, question)
	return sb.String()
}
