package llm

import (
	"context"
	"time"
)

// doWithRetry 调用失败时按线性退避重试，上下文取消立即返回
func doWithRetry(ctx context.Context, maxRetries int, call func(ctx context.Context) error) error {
	var err error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if err = call(ctx); err == nil {
			return nil
		}
		if attempt == maxRetries || ctx.Err() != nil {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(attempt+1) * 500 * time.Millisecond):
		}
	}
	return err
}
