package models

import (
	"errors"
	"fmt"
)

var (
	// ErrDocumentNotFound 文件记录不存在
	ErrDocumentNotFound = errors.New("document not found")

	// ErrInvalidDocumentStatus 无效的文件状态
	ErrInvalidDocumentStatus = errors.New("invalid document status")

	// ErrEmptyUpload 上传文件集合为空
	ErrEmptyUpload = errors.New("no files uploaded")

	// ErrUnsupportedFileType 不支持的文件类型
	ErrUnsupportedFileType = errors.New("unsupported file type")

	// ErrIndexNotFound 配置位置上不存在索引，需要先上传并索引文档
	ErrIndexNotFound = errors.New("index not found, please index documents first")

	// ErrEmptyChunks 构建索引时没有任何分块
	ErrEmptyChunks = errors.New("no chunks to index")

	// ErrNothingToIndex 所有文件都没有产出可索引的内容
	ErrNothingToIndex = errors.New("no new data to index")

	// ErrEmptyQuestion 问题为空
	ErrEmptyQuestion = errors.New("question cannot be empty")
)

// Stage 管道阶段，用于错误分类
type Stage string

const (
	StageInput     Stage = "input"
	StageParse     Stage = "parse"
	StageIndex     Stage = "index"
	StageRewrite   Stage = "rewrite"
	StageSearch    Stage = "search"
	StageRerank    Stage = "rerank"
	StageSynthesis Stage = "synthesis"
)

// PipelineError 带阶段标记的管道错误
// Subject 是出错的对象，例如文件名或集合名
type PipelineError struct {
	Stage   Stage
	Subject string
	Err     error
}

// Error 实现error接口
func (e *PipelineError) Error() string {
	if e.Subject != "" {
		return fmt.Sprintf("%s error (%s): %v", e.Stage, e.Subject, e.Err)
	}
	return fmt.Sprintf("%s error: %v", e.Stage, e.Err)
}

// Unwrap 返回底层错误
func (e *PipelineError) Unwrap() error {
	return e.Err
}

// NewInputError 输入校验错误，在任何处理开始前返回
func NewInputError(subject string, err error) error {
	return &PipelineError{Stage: StageInput, Subject: subject, Err: err}
}

// NewParseError 单个文件解析失败
func NewParseError(file string, err error) error {
	return &PipelineError{Stage: StageParse, Subject: file, Err: err}
}

// NewIndexError 索引构建或加载失败
func NewIndexError(collection string, err error) error {
	return &PipelineError{Stage: StageIndex, Subject: collection, Err: err}
}

// NewSearchError 向量检索失败
func NewSearchError(collection string, err error) error {
	return &PipelineError{Stage: StageSearch, Subject: collection, Err: err}
}

// NewRerankError 重排序失败
func NewRerankError(err error) error {
	return &PipelineError{Stage: StageRerank, Err: err}
}

// NewSynthesisError 答案生成失败
func NewSynthesisError(err error) error {
	return &PipelineError{Stage: StageSynthesis, Err: err}
}

// StageOf 返回错误链中第一个PipelineError的阶段
func StageOf(err error) (Stage, bool) {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.Stage, true
	}
	return "", false
}

// IsStage 判断错误是否属于指定阶段
func IsStage(err error, stage Stage) bool {
	s, ok := StageOf(err)
	return ok && s == stage
}
