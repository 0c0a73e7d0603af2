package document

import (
	"context"
	"strings"

	"github.com/gomarkdown/markdown/ast"
	"github.com/gomarkdown/markdown/parser"
)

// MarkdownParser Markdown文档解析器
// 解析成AST后重新输出为规范的Markdown，保留标题结构供分块使用
type MarkdownParser struct{}

// NewMarkdownParser 创建新的Markdown解析器
func NewMarkdownParser() Parser {
	return &MarkdownParser{}
}

// Parse 解析Markdown内容，整个文件作为第1页
func (p *MarkdownParser) Parse(_ context.Context, data []byte, filename string) ([]Document, error) {
	extensions := parser.CommonExtensions | parser.AutoHeadingIDs
	doc := parser.NewWithExtensions(extensions).Parse(data)

	return pagesToDocuments([]string{renderMarkdownText(doc)}, filename, Markdown), nil
}

// renderMarkdownText 把AST输出为文本
// Setext标题统一转成ATX标题，表格行用竖线分隔，代码块原样保留
func renderMarkdownText(root ast.Node) string {
	var b strings.Builder

	ast.WalkFunc(root, func(node ast.Node, entering bool) ast.WalkStatus {
		switch n := node.(type) {
		case *ast.Heading:
			if entering {
				b.WriteString("\n\n" + strings.Repeat("#", n.Level) + " ")
			} else {
				b.WriteString("\n\n")
			}
		case *ast.Paragraph:
			if !entering {
				b.WriteString("\n\n")
			}
		case *ast.ListItem:
			if entering {
				b.WriteString("\n- ")
			}
		case *ast.List:
			if !entering {
				b.WriteString("\n\n")
			}
		case *ast.CodeBlock:
			b.WriteString("\n```\n")
			b.Write(n.Literal)
			if !strings.HasSuffix(string(n.Literal), "\n") {
				b.WriteString("\n")
			}
			b.WriteString("```\n\n")
			return ast.SkipChildren
		case *ast.TableRow:
			if !entering {
				b.WriteString("\n")
			}
		case *ast.TableCell:
			if !entering {
				b.WriteString(" | ")
			}
		case *ast.Softbreak, *ast.Hardbreak:
			b.WriteString("\n")
		case *ast.Text:
			b.Write(n.Literal)
		case *ast.Code:
			b.WriteString("`")
			b.Write(n.Literal)
			b.WriteString("`")
		case *ast.HTMLSpan:
			// 行内HTML标签丢弃
		}
		return ast.GoToNext
	})

	return b.String()
}
