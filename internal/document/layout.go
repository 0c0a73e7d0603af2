package document

import (
	"context"
	"errors"
	"strings"

	"github.com/fyerfyer/multimodal-rag/internal/textnorm"
)

// ParsedImage 版面解析服务识别出的图片
type ParsedImage struct {
	ID      string `json:"id"`
	Caption string `json:"caption"`
	OCR     string `json:"ocr"`
}

// ParsedPage 版面解析服务返回的一页内容
type ParsedPage struct {
	Text   string        `json:"text"`
	Tables []string      `json:"tables,omitempty"`
	Images []ParsedImage `json:"images,omitempty"`
}

// PageExtractor 外部版面解析服务
type PageExtractor interface {
	ExtractPages(ctx context.Context, data []byte, filename string) ([]ParsedPage, error)
}

// LayoutParser 通过外部版面/视觉解析服务处理PDF和图片
type LayoutParser struct {
	extractor PageExtractor
}

// NewLayoutParser 创建版面解析器
func NewLayoutParser(extractor PageExtractor) *LayoutParser {
	return &LayoutParser{extractor: extractor}
}

// Parse 每个返回页生成一个文档
// 表格转换为管道表格，图片转换为带标题和OCR文本的图片块
func (p *LayoutParser) Parse(ctx context.Context, data []byte, filename string) ([]Document, error) {
	if p.extractor == nil {
		return nil, errors.New("layout extractor uninitialized")
	}

	pages, err := p.extractor.ExtractPages(ctx, data, filename)
	if err != nil {
		return nil, err
	}

	contents := make([]string, len(pages))
	for i, page := range pages {
		blocks := []string{page.Text}
		for _, table := range page.Tables {
			blocks = append(blocks, textnorm.SanitizeTableMarkdown(table))
		}
		for _, img := range page.Images {
			blocks = append(blocks, textnorm.FormatImageBlock(img.ID, img.Caption, img.OCR))
		}
		contents[i] = strings.Join(blocks, "\n\n")
	}

	return pagesToDocuments(contents, filename, DetectContentType(filename)), nil
}
