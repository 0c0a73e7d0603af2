package services

import (
	"context"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/fyerfyer/multimodal-rag/internal/cache"
	"github.com/fyerfyer/multimodal-rag/internal/document"
	"github.com/fyerfyer/multimodal-rag/internal/llm"
	"github.com/fyerfyer/multimodal-rag/internal/models"
	"github.com/fyerfyer/multimodal-rag/internal/textnorm"
	"github.com/fyerfyer/multimodal-rag/internal/vectordb"
)

// QAService 问答服务
// 打开索引，检索证据，再生成带引用的答案
type QAService struct {
	gateway     *vectordb.Gateway
	retrieval   *RetrievalPipeline
	synthesizer *llm.Synthesizer
	answers     *cache.AnswerCache
	logger      *logrus.Logger
}

// QAOption 问答服务配置选项
type QAOption func(*QAService)

// WithAnswerCache 设置答案缓存
func WithAnswerCache(answers *cache.AnswerCache) QAOption {
	return func(s *QAService) {
		s.answers = answers
	}
}

// WithQALogger 设置日志记录器
func WithQALogger(logger *logrus.Logger) QAOption {
	return func(s *QAService) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewQAService 创建问答服务
func NewQAService(gateway *vectordb.Gateway, retrieval *RetrievalPipeline, synthesizer *llm.Synthesizer, opts ...QAOption) *QAService {
	s := &QAService{
		gateway:     gateway,
		retrieval:   retrieval,
		synthesizer: synthesizer,
		logger:      logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Answer 回答问题
// 索引不存在时返回带ErrIndexNotFound的IndexError
func (s *QAService) Answer(ctx context.Context, question string) (*document.QueryResult, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, models.NewInputError("question", models.ErrEmptyQuestion)
	}

	handle, err := s.gateway.Open(ctx)
	if err != nil {
		return nil, err
	}
	if handle == nil {
		return nil, models.NewIndexError(s.gateway.Collection(), models.ErrIndexNotFound)
	}

	log := s.logger.WithField("question", textnorm.ShortenPreview(question, 80))

	key := cache.AnswerKey(handle.Collection(), handle.Count(), question)
	if s.answers != nil {
		cached, found, err := s.answers.Get(ctx, key)
		if err != nil {
			log.WithError(err).Warn("Failed to read answer cache")
		} else if found {
			log.Debug("Answer served from cache")
			return cached, nil
		}
	}

	evidence, err := s.retrieval.Retrieve(ctx, question, handle)
	if err != nil {
		log.WithError(err).Error("Retrieval failed")
		return nil, err
	}

	result, err := s.synthesizer.Synthesize(ctx, question, evidence)
	if err != nil {
		log.WithError(err).Error("Answer synthesis failed")
		return nil, err
	}

	if s.answers != nil {
		if err := s.answers.Set(ctx, key, result); err != nil {
			log.WithError(err).Warn("Failed to write answer cache")
		}
	}

	log.WithFields(logrus.Fields{
		"evidence": len(evidence),
		"sources":  len(result.Sources),
	}).Info("Question answered")
	return result, nil
}
