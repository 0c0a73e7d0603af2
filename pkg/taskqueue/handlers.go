package taskqueue

import (
	"context"
	"errors"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"
)

// HandlerFunc 函数形式的任务处理器
type HandlerFunc func(ctx context.Context, task *Task) (interface{}, error)

// ProcessTask 实现Handler接口
func (f HandlerFunc) ProcessTask(ctx context.Context, task *Task) (interface{}, error) {
	return f(ctx, task)
}

// wrap 把Handler包装为asynq处理函数
// asynq任务的载荷是任务ID，状态变化写回任务记录并发布通知
func (w *RedisWorker) wrap(h Handler) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		taskID := string(t.Payload())
		log := w.logger.WithFields(logrus.Fields{"task_id": taskID, "task_type": t.Type()})

		task, err := w.queue.GetTask(ctx, taskID)
		if err != nil {
			log.WithError(err).Error("Failed to get task info")
			if errors.Is(err, ErrTaskNotFound) {
				return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
			}
			return err
		}

		w.setStatus(ctx, log, taskID, StatusProcessing, nil, "")
		log.Info("Task processing started")

		result, err := h.ProcessTask(ctx, task)
		if err != nil {
			if errors.Is(err, ErrInvalidPayload) || !willRetry(ctx) {
				w.setStatus(ctx, log, taskID, StatusFailed, result, err.Error())
				log.WithError(err).Error("Task failed")
				if errors.Is(err, ErrInvalidPayload) {
					return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
				}
				return err
			}
			// 还有重试机会，回到等待状态
			w.setStatus(ctx, log, taskID, StatusPending, result, err.Error())
			log.WithError(err).Warn("Task failed, will retry")
			return err
		}

		w.setStatus(ctx, log, taskID, StatusCompleted, result, "")
		log.Info("Task completed")
		return nil
	}
}

func (w *RedisWorker) setStatus(ctx context.Context, log *logrus.Entry, taskID string, status TaskStatus, result interface{}, errMsg string) {
	if err := w.queue.UpdateTaskStatus(ctx, taskID, status, result, errMsg); err != nil {
		log.WithError(err).WithField("status", status).Error("Failed to update task status")
		return
	}
	if err := w.queue.NotifyTaskUpdate(ctx, taskID); err != nil {
		log.WithError(err).Debug("Failed to notify task update")
	}
}

// willRetry asynq是否还会重试当前任务
func willRetry(ctx context.Context) bool {
	retried, ok := asynq.GetRetryCount(ctx)
	if !ok {
		return false
	}
	maxRetry, ok := asynq.GetMaxRetry(ctx)
	if !ok {
		return false
	}
	return retried < maxRetry
}
