package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/fyerfyer/multimodal-rag/internal/cache"
	"github.com/fyerfyer/multimodal-rag/internal/document"
	"github.com/fyerfyer/multimodal-rag/internal/models"
	"github.com/fyerfyer/multimodal-rag/internal/repository"
	"github.com/fyerfyer/multimodal-rag/internal/textnorm"
	"github.com/fyerfyer/multimodal-rag/internal/vectordb"
	"github.com/fyerfyer/multimodal-rag/pkg/storage"
	"github.com/fyerfyer/multimodal-rag/pkg/taskqueue"
)

// UploadFile 一个待处理的上传文件
type UploadFile struct {
	Name string
	Data []byte
}

// IngestOptions 索引选项
type IngestOptions struct {
	Force   bool // 重新处理已索引过的相同文件
	Rebuild bool // 清空集合后重建
}

// FileOutcome 单个文件的处理结果
type FileOutcome struct {
	FileID   string            `json:"file_id,omitempty"`
	FileName string            `json:"file_name"`
	Source   string            `json:"source"`
	Status   models.FileStatus `json:"status"`
	Pages    int               `json:"pages"`
	Chunks   int               `json:"chunks"`
	Error    string            `json:"error,omitempty"`
}

// IngestReport 一次索引操作的汇总
type IngestReport struct {
	Collection string        `json:"collection"`
	Files      []FileOutcome `json:"files"`
	Indexed    int           `json:"indexed"`
	Skipped    int           `json:"skipped"`
	Failed     int           `json:"failed"`
	Chunks     int           `json:"chunks"`
	Vectors    int           `json:"vectors"`
}

func (r *IngestReport) add(outcome FileOutcome) {
	r.Files = append(r.Files, outcome)
	switch outcome.Status {
	case models.FileStatusIndexed:
		r.Indexed++
		r.Chunks += outcome.Chunks
	case models.FileStatusSkipped:
		r.Skipped++
	case models.FileStatusFailed:
		r.Failed++
	}
}

// IngestService 文档索引服务
// 负责校验、保存、解析、分块并写入向量索引，单个文件失败不影响其他文件
type IngestService struct {
	router       *document.Router
	chunker      *document.Chunker
	gateway      *vectordb.Gateway
	store        storage.Storage
	files        repository.FileRepository
	answers      *cache.AnswerCache
	queue        taskqueue.Queue
	parseTimeout time.Duration
	logger       *logrus.Logger
}

// IngestOption 索引服务配置选项
type IngestOption func(*IngestService)

// WithStorage 设置上传文件存储，异步索引需要
func WithStorage(store storage.Storage) IngestOption {
	return func(s *IngestService) {
		s.store = store
	}
}

// WithFileRepository 设置文件登记仓储，用于跳过重复上传
func WithFileRepository(files repository.FileRepository) IngestOption {
	return func(s *IngestService) {
		s.files = files
	}
}

// WithIngestAnswerCache 重建索引后清空答案缓存
func WithIngestAnswerCache(answers *cache.AnswerCache) IngestOption {
	return func(s *IngestService) {
		s.answers = answers
	}
}

// WithParseTimeout 设置单个文件的解析超时
func WithParseTimeout(timeout time.Duration) IngestOption {
	return func(s *IngestService) {
		if timeout > 0 {
			s.parseTimeout = timeout
		}
	}
}

// WithIngestLogger 设置日志记录器
func WithIngestLogger(logger *logrus.Logger) IngestOption {
	return func(s *IngestService) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewIngestService 创建索引服务
func NewIngestService(router *document.Router, chunker *document.Chunker, gateway *vectordb.Gateway, opts ...IngestOption) *IngestService {
	s := &IngestService{
		router:       router,
		chunker:      chunker,
		gateway:      gateway,
		parseTimeout: 2 * time.Minute,
		logger:       logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Collection 目标集合名称
func (s *IngestService) Collection() string {
	return s.gateway.Collection()
}

// Validate 在任何处理开始前校验上传集合
func (s *IngestService) Validate(files []UploadFile) error {
	if len(files) == 0 {
		return models.NewInputError("", models.ErrEmptyUpload)
	}
	for _, f := range files {
		if err := document.ValidateFilename(f.Name); err != nil {
			return err
		}
	}
	return nil
}

// Ingest 同步处理一批上传文件
// 所有文件都没有产出分块时返回ErrNothingToIndex，报告仍然有效
func (s *IngestService) Ingest(ctx context.Context, files []UploadFile, opts IngestOptions) (*IngestReport, error) {
	if err := s.Validate(files); err != nil {
		return nil, err
	}

	report := &IngestReport{Collection: s.Collection()}
	pending, err := s.register(ctx, files, opts, report)
	if err != nil {
		return report, err
	}
	return report, s.process(ctx, pending, opts, report)
}

// pendingFile 已登记、等待解析的文件
type pendingFile struct {
	id     string
	name   string
	source string
	data   []byte
}

// register 保存文件并写入登记表，已索引的相同文件直接记为跳过
// 重建会清空集合，此时不做重复检查
func (s *IngestService) register(ctx context.Context, files []UploadFile, opts IngestOptions, report *IngestReport) ([]pendingFile, error) {
	force := opts.Force || opts.Rebuild
	pending := make([]pendingFile, 0, len(files))
	for _, f := range files {
		name := filepath.Base(f.Name)
		source := textnorm.SanitizeFilename(name)
		checksum := storage.Checksum(f.Data)

		if s.files != nil && !force {
			existing, err := s.files.FindIndexed(s.Collection(), source, checksum)
			if err == nil {
				s.logger.WithFields(logrus.Fields{
					"file":     name,
					"existing": existing.ID,
				}).Info("File already indexed, skipping")
				skipped := s.newRecord(uuid.New().String(), name, source, checksum, int64(len(f.Data)))
				skipped.Status = models.FileStatusSkipped
				if err := s.files.Create(skipped); err != nil {
					return nil, fmt.Errorf("failed to record skipped file: %w", err)
				}
				report.add(FileOutcome{FileID: skipped.ID, FileName: name, Source: source, Status: models.FileStatusSkipped})
				continue
			}
			if !errors.Is(err, models.ErrDocumentNotFound) {
				return nil, fmt.Errorf("failed to check file registry: %w", err)
			}
		}

		id := uuid.New().String()
		storagePath := ""
		if s.store != nil {
			info, err := s.store.Save(ctx, bytes.NewReader(f.Data), name)
			if err != nil {
				return nil, fmt.Errorf("failed to store %s: %w", name, err)
			}
			id = info.ID
			storagePath = info.Path
		}

		if s.files != nil {
			record := s.newRecord(id, name, source, checksum, int64(len(f.Data)))
			record.StoragePath = storagePath
			if err := s.files.Create(record); err != nil {
				return nil, fmt.Errorf("failed to register %s: %w", name, err)
			}
		}
		pending = append(pending, pendingFile{id: id, name: name, source: source, data: f.Data})
	}
	return pending, nil
}

func (s *IngestService) newRecord(id, name, source, checksum string, size int64) *models.IngestedFile {
	return &models.IngestedFile{
		ID:          id,
		FileName:    name,
		Source:      source,
		Checksum:    checksum,
		ContentType: string(document.DetectContentType(name)),
		FileSize:    size,
		Collection:  s.Collection(),
		Status:      models.FileStatusUploaded,
	}
}

// process 解析、分块并写入索引
func (s *IngestService) process(ctx context.Context, pending []pendingFile, opts IngestOptions, report *IngestReport) error {
	var (
		allChunks []document.Chunk
		parsed    []FileOutcome
	)

	for _, f := range pending {
		log := s.logger.WithFields(logrus.Fields{"file": f.name, "file_id": f.id})
		s.setStatus(f.id, models.FileStatusProcessing, "")

		docs, err := s.parse(ctx, f)
		if err == nil && len(docs) == 0 {
			err = models.NewParseError(f.name, errors.New("no content extracted"))
		}
		if err != nil {
			log.WithError(err).Error("Failed to parse file")
			s.setStatus(f.id, models.FileStatusFailed, err.Error())
			report.add(FileOutcome{FileID: f.id, FileName: f.name, Source: f.source, Status: models.FileStatusFailed, Error: err.Error()})
			continue
		}

		chunks := s.chunker.Chunk(docs)
		log.WithFields(logrus.Fields{
			"pages":  len(docs),
			"chunks": len(chunks),
		}).Info("File parsed and chunked")

		if len(chunks) == 0 {
			msg := "no chunks produced"
			s.setStatus(f.id, models.FileStatusFailed, msg)
			report.add(FileOutcome{FileID: f.id, FileName: f.name, Source: f.source, Status: models.FileStatusFailed, Error: msg})
			continue
		}
		allChunks = append(allChunks, chunks...)
		parsed = append(parsed, FileOutcome{
			FileID:   f.id,
			FileName: f.name,
			Source:   f.source,
			Status:   models.FileStatusIndexed,
			Pages:    len(docs),
			Chunks:   len(chunks),
		})
	}

	if len(allChunks) == 0 {
		s.logger.WithField("files", len(pending)).Warn("No chunks to index")
		return models.NewIndexError(s.Collection(), models.ErrNothingToIndex)
	}

	build := s.gateway.Build
	if opts.Rebuild {
		build = s.gateway.Rebuild
	}
	handle, err := build(ctx, allChunks)
	if err != nil {
		s.logger.WithError(err).WithField("chunks", len(allChunks)).Error("Index build failed")
		for _, outcome := range parsed {
			s.setStatus(outcome.FileID, models.FileStatusFailed, err.Error())
			outcome.Status = models.FileStatusFailed
			outcome.Error = err.Error()
			report.add(outcome)
		}
		return err
	}

	for _, outcome := range parsed {
		if s.files != nil {
			if err := s.files.MarkIndexed(outcome.FileID, outcome.Pages, outcome.Chunks); err != nil {
				s.logger.WithError(err).WithField("file_id", outcome.FileID).Warn("Failed to mark file indexed")
			}
		}
		report.add(outcome)
	}
	report.Vectors = handle.Count()

	if opts.Rebuild {
		s.markRemoved(parsed)
	}
	if opts.Rebuild && s.answers != nil {
		if err := s.answers.Clear(ctx); err != nil {
			s.logger.WithError(err).Warn("Failed to clear answer cache after rebuild")
		}
	}

	s.logger.WithFields(logrus.Fields{
		"collection": report.Collection,
		"indexed":    report.Indexed,
		"failed":     report.Failed,
		"skipped":    report.Skipped,
		"chunks":     report.Chunks,
		"vectors":    report.Vectors,
	}).Info("Ingest completed")
	return nil
}

// markRemoved 重建后，其余已索引文件的内容已被清出集合
func (s *IngestService) markRemoved(kept []FileOutcome) {
	if s.files == nil {
		return
	}
	ids := make([]string, len(kept))
	for i, outcome := range kept {
		ids[i] = outcome.FileID
	}
	removed, err := s.files.MarkRemoved(s.Collection(), ids)
	if err != nil {
		s.logger.WithError(err).Warn("Failed to mark replaced files after rebuild")
		return
	}
	if removed > 0 {
		s.logger.WithField("files", removed).Info("Files removed from collection by rebuild")
	}
}

// parse 带超时解析单个文件
func (s *IngestService) parse(ctx context.Context, f pendingFile) ([]document.Document, error) {
	ctx, cancel := context.WithTimeout(ctx, s.parseTimeout)
	defer cancel()
	return s.router.Parse(ctx, f.data, f.name)
}

// setStatus 更新登记表状态，失败只记录日志
func (s *IngestService) setStatus(id string, status models.FileStatus, msg string) {
	if s.files == nil {
		return
	}
	if err := s.files.UpdateStatus(id, status, msg); err != nil {
		s.logger.WithError(err).WithFields(logrus.Fields{
			"file_id": id,
			"status":  status,
		}).Warn("Failed to update file status")
	}
}

// ListFiles 分页列出已登记的文件
func (s *IngestService) ListFiles(ctx context.Context, offset, limit int, filter repository.FileFilter) ([]*models.IngestedFile, int64, error) {
	if s.files == nil {
		return []*models.IngestedFile{}, 0, nil
	}
	return s.files.WithContext(ctx).List(offset, limit, filter)
}

// GetFile 获取单个文件记录
func (s *IngestService) GetFile(ctx context.Context, id string) (*models.IngestedFile, error) {
	if s.files == nil {
		return nil, models.ErrDocumentNotFound
	}
	return s.files.WithContext(ctx).GetByID(id)
}

// Stats 返回集合统计信息
func (s *IngestService) Stats(ctx context.Context) (vectordb.Stats, error) {
	return s.gateway.Stats(ctx)
}
