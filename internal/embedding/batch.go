package embedding

import (
	"context"
	"fmt"
	"sync"

	"github.com/gammazero/workerpool"
)

// BatchProcessor 批量向量化处理器
// 把大量文本切成小批次并行调用嵌入客户端，结果与输入顺序一一对应
type BatchProcessor struct {
	client     Client
	batchSize  int
	maxWorkers int
}

// NewBatchProcessor 创建新的批处理器
func NewBatchProcessor(client Client, batchSize int, maxWorkers int) *BatchProcessor {
	if batchSize <= 0 {
		batchSize = 16
	}
	if maxWorkers <= 0 {
		maxWorkers = 4
	}

	return &BatchProcessor{
		client:     client,
		batchSize:  batchSize,
		maxWorkers: maxWorkers,
	}
}

// Process 处理一批文本
// 空文本不会发送给模型，对应位置返回nil
func (p *BatchProcessor) Process(ctx context.Context, texts []string) ([][]float32, error) {
	results := make([][]float32, len(texts))
	if len(texts) == 0 {
		return results, nil
	}

	// 记录非空文本在原切片中的位置
	positions := make([]int, 0, len(texts))
	filtered := make([]string, 0, len(texts))
	for i, text := range texts {
		if text == "" {
			continue
		}
		positions = append(positions, i)
		filtered = append(filtered, text)
	}
	if len(filtered) == 0 {
		return results, nil
	}

	wp := workerpool.New(p.maxWorkers)
	var (
		mu       sync.Mutex
		firstErr error
	)

	for start := 0; start < len(filtered); start += p.batchSize {
		end := start + p.batchSize
		if end > len(filtered) {
			end = len(filtered)
		}
		start, end := start, end

		wp.Submit(func() {
			if ctx.Err() != nil {
				mu.Lock()
				if firstErr == nil {
					firstErr = ctx.Err()
				}
				mu.Unlock()
				return
			}

			vectors, err := p.client.EmbedBatch(ctx, filtered[start:end])

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if firstErr == nil {
					firstErr = fmt.Errorf("batch starting at %d failed: %w", start, err)
				}
				return
			}
			if len(vectors) != end-start {
				if firstErr == nil {
					firstErr = fmt.Errorf("batch starting at %d returned %d vectors for %d texts", start, len(vectors), end-start)
				}
				return
			}
			for j, vec := range vectors {
				results[positions[start+j]] = vec
			}
		})
	}

	wp.StopWait()

	if firstErr != nil {
		return nil, firstErr
	}
	return results, nil
}
