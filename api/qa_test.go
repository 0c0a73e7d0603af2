package api

import (
	"bytes"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/fyerfyer/multimodal-rag/api/model"
	"github.com/fyerfyer/multimodal-rag/internal/llm"
)

func newQARequest(body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/api/qa", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestQABeforeIndexing(t *testing.T) {
	env := setupTestEnv(t)

	w := perform(env, newQARequest(`{"question":"What was GDP growth?"}`))
	require.Equal(t, http.StatusOK, w.Code)

	var data model.QAResponse
	decode(t, w, &data)
	assert.Equal(t, model.NoIndexAnswer, data.Answer)
	assert.False(t, data.Indexed)
	assert.Empty(t, data.Sources)
	env.LLM.AssertNotCalled(t, "Chat", mock.Anything, mock.Anything)
}

func TestQAInvalidQuestion(t *testing.T) {
	env := setupTestEnv(t)

	for _, body := range []string{`{}`, `{"question":"   "}`, `not json`} {
		w := perform(env, newQARequest(body))
		assert.Equal(t, http.StatusBadRequest, w.Code, body)
	}
}

func TestQAAnswerWithSources(t *testing.T) {
	env := setupTestEnv(t)

	w := perform(env, newUploadRequest(t, []uploadFile{
		{name: "Economy Report.txt", content: "GDP growth reached 3.1% in 2023, driven by exports."},
		{name: "weather.txt", content: "Heavy rain is expected along the coast."},
	}, nil))
	require.Equal(t, http.StatusOK, w.Code)

	env.LLM.On("Chat", mock.Anything, mock.MatchedBy(isRewrite)).
		Return(&llm.Response{Text: "GDP growth 2023"}, nil).Once()
	env.LLM.On("Chat", mock.Anything, mock.MatchedBy(isAnswer)).
		Return(&llm.Response{Text: "GDP grew 3.1% in 2023 [Page 1]."}, nil).Once()

	w = perform(env, newQARequest(`{"question":"What was GDP growth in 2023?"}`))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var data model.QAResponse
	decode(t, w, &data)
	assert.True(t, data.Indexed)
	assert.Equal(t, "GDP grew 3.1% in 2023 [Page 1].", data.Answer)
	require.Len(t, data.Sources, 1)
	assert.Equal(t, "economy_report.txt", data.Sources[0].Source)
	assert.Equal(t, 1, data.Sources[0].Page)

	// 缓存命中
	w = perform(env, newQARequest(`{"question":"what was GDP growth in 2023?"}`))
	require.Equal(t, http.StatusOK, w.Code)
	env.LLM.AssertExpectations(t)
}

func TestQASynthesisFailure(t *testing.T) {
	env := setupTestEnv(t)

	w := perform(env, newUploadRequest(t, []uploadFile{{name: "economy.txt", content: "GDP growth reached 3.1%."}}, nil))
	require.Equal(t, http.StatusOK, w.Code)

	env.LLM.On("Chat", mock.Anything, mock.MatchedBy(isRewrite)).Return(nil, errors.New("rate limited"))
	env.LLM.On("Chat", mock.Anything, mock.MatchedBy(isAnswer)).Return(nil, errors.New("model overloaded"))

	w = perform(env, newQARequest(`{"question":"GDP?"}`))
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Contains(t, decode(t, w, nil).Message, "synthesis")
}
