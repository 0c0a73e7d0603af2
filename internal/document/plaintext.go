package document

import (
	"context"
	"strings"
)

// PlainTextParser 纯文本解析器，不经过外部解析服务
type PlainTextParser struct{}

// NewPlainTextParser 创建一个新的纯文本解析器
func NewPlainTextParser() Parser {
	return &PlainTextParser{}
}

// Parse 按UTF-8解码并丢弃非法字节，整个文件作为第1页
func (p *PlainTextParser) Parse(_ context.Context, data []byte, filename string) ([]Document, error) {
	text := strings.ToValidUTF8(string(data), "")
	return pagesToDocuments([]string{text}, filename, PlainText), nil
}
