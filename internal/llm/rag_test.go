package llm

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/fyerfyer/multimodal-rag/internal/document"
	"github.com/fyerfyer/multimodal-rag/internal/models"
)

func evidenceFor(source string, page int, content string, headers ...string) document.Evidence {
	meta := document.Metadata{Source: source, Page: page, Extra: map[string]string{}}
	keys := []string{document.MetaHeader1, document.MetaHeader2, document.MetaHeader3}
	for i, h := range headers {
		meta.Extra[keys[i]] = h
	}
	return document.Evidence{
		Chunk: document.Chunk{
			Document:  document.Document{Content: content, Metadata: meta},
			ChunkHash: document.ContentHash(content),
		},
	}
}

func TestSynthesizeNoEvidence(t *testing.T) {
	client := &MockClient{}
	synth := NewSynthesizer(client)

	result, err := synth.Synthesize(context.Background(), "anything?", nil)
	require.NoError(t, err)
	assert.Equal(t, NoEvidenceAnswer, result.Answer)
	assert.Empty(t, result.Sources)
	client.AssertNotCalled(t, "Chat", mock.Anything, mock.Anything)
}

func TestSynthesizeWithEvidence(t *testing.T) {
	evidence := []document.Evidence{
		evidenceFor("report.pdf", 4, "GDP grew 3.1% in 2023.", "Economy", "Growth"),
		evidenceFor("report.pdf", 4, "Second chunk on the same page."),
		evidenceFor("report.pdf", 7, "Inflation eased\nto 2.4%."),
	}

	client := &MockClient{}
	client.On("Chat", mock.Anything, mock.MatchedBy(func(msgs []Message) bool {
		if len(msgs) != 2 || msgs[0].Role != RoleSystem || msgs[1].Role != RoleUser {
			return false
		}
		system := msgs[0].Content
		return strings.Contains(system, "[Page X]") &&
			strings.Contains(system, "--- SOURCE: report.pdf | Page: 4 | Section: Economy > Growth ---\nGDP grew 3.1% in 2023.") &&
			strings.Contains(system, "--- SOURCE: report.pdf | Page: 7 | Section:  ---") &&
			msgs[1].Content == "What was GDP growth?"
	})).Return(&Response{Text: "GDP grew 3.1% [Page 4]."}, nil).Once()

	synth := NewSynthesizer(client)
	result, err := synth.Synthesize(context.Background(), "What was GDP growth?", evidence)
	require.NoError(t, err)

	assert.Equal(t, "GDP grew 3.1% [Page 4].", result.Answer)
	require.Len(t, result.Sources, 2)
	assert.Equal(t, 4, result.Sources[0].Page)
	assert.Equal(t, "GDP grew 3.1% in 2023.", result.Sources[0].Preview)
	assert.Equal(t, 7, result.Sources[1].Page)
	assert.Equal(t, "Inflation eased to 2.4%.", result.Sources[1].Preview)
	client.AssertExpectations(t)
}

func TestSynthesizeCitesPage(t *testing.T) {
	content := "Real GDP growth is projected at 2% for 2025. The outlook depends on exports and investment."
	evidence := []document.Evidence{evidenceFor("report.pdf", 3, content)}

	client := &MockClient{}
	client.On("Chat", mock.Anything, mock.MatchedBy(func(msgs []Message) bool {
		return len(msgs) == 2 &&
			strings.Contains(msgs[0].Content, "--- SOURCE: report.pdf | Page: 3 |") &&
			strings.Contains(msgs[0].Content, content)
	})).Return(&Response{Text: "Real GDP growth is projected at 2% for 2025 [Page 3]."}, nil).Once()

	result, err := NewSynthesizer(client).Synthesize(context.Background(), "What is the 2025 GDP growth projection?", evidence)
	require.NoError(t, err)

	assert.Contains(t, result.Answer, "2%")
	assert.Contains(t, result.Answer, "[Page 3]")
	assert.Equal(t, []document.SourceRef{{Source: "report.pdf", Page: 3, Preview: content}}, result.Sources)
	client.AssertExpectations(t)
}

func TestSynthesizeFailure(t *testing.T) {
	client := &MockClient{}
	client.On("Chat", mock.Anything, mock.Anything).Return(nil, errors.New("boom"))

	synth := NewSynthesizer(client)
	_, err := synth.Synthesize(context.Background(), "q", []document.Evidence{evidenceFor("a.txt", 1, "text")})
	require.Error(t, err)
	assert.True(t, models.IsStage(err, models.StageSynthesis))
}

func TestFormatContext(t *testing.T) {
	ctx := FormatContext([]document.Evidence{
		evidenceFor("a.md", 1, "alpha", "Intro"),
		evidenceFor("b.md", 2, "beta"),
	})
	assert.Equal(t,
		"--- SOURCE: a.md | Page: 1 | Section: Intro ---\nalpha\n\n--- SOURCE: b.md | Page: 2 | Section:  ---\nbeta",
		ctx)
}

func TestSynthesizerOptions(t *testing.T) {
	synth := NewSynthesizer(&MockClient{},
		WithTemplate("ctx: {{.Context}}"),
		WithAnswerMaxTokens(64),
		WithAnswerTemperature(0.3),
	)
	assert.Equal(t, "ctx: {{.Context}}", synth.config.Template)
	assert.Equal(t, 64, synth.config.MaxTokens)
	assert.Equal(t, float32(0.3), synth.config.Temperature)
}
