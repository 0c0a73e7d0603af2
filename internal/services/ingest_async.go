package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/fyerfyer/multimodal-rag/internal/models"
	"github.com/fyerfyer/multimodal-rag/pkg/storage"
	"github.com/fyerfyer/multimodal-rag/pkg/taskqueue"
)

// ErrAsyncDisabled 未启用异步索引
var ErrAsyncDisabled = errors.New("async indexing is not enabled")

// EnableAsync 启用异步索引
// 上传文件先保存到存储并登记，索引任务由队列的工作者串行执行
func (s *IngestService) EnableAsync(queue taskqueue.Queue) error {
	if s.store == nil || s.files == nil {
		return errors.New("async indexing requires upload storage and file registry")
	}
	s.queue = queue
	s.logger.Info("Async indexing enabled")
	return nil
}

// AsyncEnabled 是否启用了异步索引
func (s *IngestService) AsyncEnabled() bool {
	return s.queue != nil
}

// Submit 校验并登记文件，然后提交一个索引任务
// 所有文件都被跳过时不创建任务，返回空任务ID
func (s *IngestService) Submit(ctx context.Context, files []UploadFile, opts IngestOptions) (string, *IngestReport, error) {
	if s.queue == nil {
		return "", nil, ErrAsyncDisabled
	}
	if err := s.Validate(files); err != nil {
		return "", nil, err
	}

	report := &IngestReport{Collection: s.Collection()}
	pending, err := s.register(ctx, files, opts, report)
	if err != nil {
		return "", report, err
	}
	if len(pending) == 0 {
		return "", report, nil
	}

	ids := make([]string, len(pending))
	for i, f := range pending {
		ids[i] = f.id
		report.Files = append(report.Files, FileOutcome{
			FileID:   f.id,
			FileName: f.name,
			Source:   f.source,
			Status:   models.FileStatusUploaded,
		})
	}

	taskID, err := s.queue.Enqueue(ctx, taskqueue.TaskIndexFiles, s.Collection(), &taskqueue.IndexFilesPayload{
		FileIDs:    ids,
		Collection: s.Collection(),
		Rebuild:    opts.Rebuild,
		Force:      opts.Force,
	})
	if err != nil {
		return "", report, fmt.Errorf("failed to submit index task: %w", err)
	}
	if err := s.files.AttachTask(ids, taskID); err != nil {
		s.logger.WithError(err).WithField("task_id", taskID).Warn("Failed to attach task to files")
	}

	s.logger.WithFields(logrus.Fields{
		"task_id": taskID,
		"files":   len(ids),
	}).Info("Index task submitted")
	return taskID, report, nil
}

// ProcessTask 执行索引任务，实现taskqueue.Handler
func (s *IngestService) ProcessTask(ctx context.Context, task *taskqueue.Task) (interface{}, error) {
	var payload taskqueue.IndexFilesPayload
	if err := taskqueue.UnmarshalPayload(task.Payload, &payload); err != nil {
		return nil, err
	}
	if len(payload.FileIDs) == 0 {
		return nil, taskqueue.ErrInvalidPayload
	}
	if payload.Collection != "" && payload.Collection != s.Collection() {
		return nil, fmt.Errorf("task targets collection %q, service serves %q", payload.Collection, s.Collection())
	}

	report := &IngestReport{Collection: s.Collection()}
	pending := make([]pendingFile, 0, len(payload.FileIDs))
	for _, id := range payload.FileIDs {
		record, err := s.files.WithContext(ctx).GetByID(id)
		if err != nil {
			s.logger.WithError(err).WithField("file_id", id).Error("Indexed file record missing")
			report.add(FileOutcome{FileID: id, Status: models.FileStatusFailed, Error: err.Error()})
			continue
		}
		data, err := storage.ReadAll(ctx, s.store, id)
		if err != nil {
			s.logger.WithError(err).WithField("file_id", id).Error("Failed to load stored file")
			s.setStatus(id, models.FileStatusFailed, err.Error())
			report.add(FileOutcome{FileID: id, FileName: record.FileName, Source: record.Source, Status: models.FileStatusFailed, Error: err.Error()})
			continue
		}
		pending = append(pending, pendingFile{id: id, name: record.FileName, source: record.Source, data: data})
	}

	if err := s.process(ctx, pending, IngestOptions{Force: payload.Force, Rebuild: payload.Rebuild}, report); err != nil {
		return report, err
	}
	return report, nil
}

// TaskStatus 查询索引任务状态
func (s *IngestService) TaskStatus(ctx context.Context, taskID string) (*taskqueue.TaskInfo, error) {
	if s.queue == nil {
		return nil, ErrAsyncDisabled
	}
	task, err := s.queue.GetTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	return taskqueue.NewTaskInfo(task), nil
}
