package document

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/fyerfyer/multimodal-rag/internal/models"
	"github.com/fyerfyer/multimodal-rag/internal/textnorm"
)

// Parser 文档解析器接口
// 负责把上传文件的字节内容解析为按页组织的文档
type Parser interface {
	// Parse 解析文件内容，filename用于确定文档类型和来源标识
	Parse(ctx context.Context, data []byte, filename string) ([]Document, error)
}

// ContentType 表示文档的内容类型
type ContentType string

const (
	// PDF 文档类型
	PDF ContentType = "pdf"
	// Image 图片类型，只能由外部版面解析服务处理
	Image ContentType = "image"
	// Markdown 文档类型
	Markdown ContentType = "markdown"
	// PlainText 纯文本类型
	PlainText ContentType = "plaintext"
	// Unknown 未知类型
	Unknown ContentType = "unknown"
)

// ErrNoLayoutParser 没有配置外部版面解析服务时无法处理图片
var ErrNoLayoutParser = errors.New("no layout parser configured for this file type")

// AllowedExtensions 允许上传的文件扩展名
var AllowedExtensions = []string{".pdf", ".png", ".jpg", ".jpeg", ".txt", ".md"}

// DetectContentType 根据文件扩展名检测内容类型，大小写不敏感
func DetectContentType(filename string) ContentType {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf":
		return PDF
	case ".png", ".jpg", ".jpeg":
		return Image
	case ".md", ".markdown":
		return Markdown
	case ".txt":
		return PlainText
	default:
		return Unknown
	}
}

// ValidateFilename 检查文件类型是否受支持
func ValidateFilename(filename string) error {
	if DetectContentType(filename) == Unknown {
		return models.NewInputError(filename, fmt.Errorf("%w: %q, allowed: %s",
			models.ErrUnsupportedFileType, filepath.Ext(filename), strings.Join(AllowedExtensions, " ")))
	}
	return nil
}

// Router 按文件类型分发到对应解析器
// PDF和图片优先交给外部版面解析服务，未配置时PDF使用本地解析
type Router struct {
	layout   Parser
	pdf      Parser
	markdown Parser
	text     Parser
}

// NewRouter 创建解析路由，layout可以为nil
func NewRouter(layout Parser) *Router {
	return &Router{
		layout:   layout,
		pdf:      NewPDFParser(),
		markdown: NewMarkdownParser(),
		text:     NewPlainTextParser(),
	}
}

// HasLayoutParser 是否配置了外部版面解析服务
func (r *Router) HasLayoutParser() bool {
	return r.layout != nil
}

// Parse 解析单个文件
// 不支持的类型返回InputError，解析失败返回ParseError
func (r *Router) Parse(ctx context.Context, data []byte, filename string) ([]Document, error) {
	if err := ValidateFilename(filename); err != nil {
		return nil, err
	}

	var parser Parser
	switch DetectContentType(filename) {
	case PlainText:
		parser = r.text
	case Markdown:
		parser = r.markdown
	case PDF:
		parser = r.pdf
		if r.layout != nil {
			parser = r.layout
		}
	case Image:
		if r.layout == nil {
			return nil, models.NewParseError(filename, ErrNoLayoutParser)
		}
		parser = r.layout
	}

	docs, err := parser.Parse(ctx, data, filename)
	if err != nil {
		return nil, models.NewParseError(filename, err)
	}
	return docs, nil
}

// baseMetadata 解析器生成文档时共用的元数据
func baseMetadata(filename string, page int, contentType ContentType) Metadata {
	return Metadata{
		Source: textnorm.SanitizeFilename(filepath.Base(filename)),
		Page:   page,
		Extra: map[string]string{
			MetaOriginalFilename: filepath.Base(filename),
			MetaContentType:      string(contentType),
		},
	}
}

// pagesToDocuments 规范化每一页内容，跳过空页，页码为页的位置加1
func pagesToDocuments(pages []string, filename string, contentType ContentType) []Document {
	docs := make([]Document, 0, len(pages))
	for i, page := range pages {
		content := textnorm.Normalize(page)
		if content == "" {
			continue
		}
		docs = append(docs, Document{
			Content:  content,
			Metadata: baseMetadata(filename, i+1, contentType),
		})
	}
	return docs
}
