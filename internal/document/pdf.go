package document

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

var pageFileNumber = regexp.MustCompile(`(\d+)\.txt$`)

// PDFParser 本地PDF解析器
// 用pdfcpu导出每页的内容流，再从文本绘制指令中提取文字
type PDFParser struct{}

// NewPDFParser 创建一个新的PDF解析器
func NewPDFParser() Parser {
	return &PDFParser{}
}

// Parse 解析PDF，每页生成一个文档，空页被跳过
func (p *PDFParser) Parse(ctx context.Context, data []byte, filename string) ([]Document, error) {
	tmpDir, err := os.MkdirTemp("", "pdfcpu_extract_")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	inFile := filepath.Join(tmpDir, "input.pdf")
	if err := os.WriteFile(inFile, data, 0o600); err != nil {
		return nil, fmt.Errorf("failed to write temp pdf: %w", err)
	}

	outDir := filepath.Join(tmpDir, "pages")
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output dir: %w", err)
	}

	conf := model.NewDefaultConfiguration()
	if err := api.ExtractContentFile(inFile, outDir, nil, conf); err != nil {
		return nil, fmt.Errorf("failed to extract content from PDF: %w", err)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(outDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read extracted content dir: %w", err)
	}

	type pageFile struct {
		number int
		path   string
	}
	var files []pageFile
	for _, e := range entries {
		m := pageFileNumber.FindStringSubmatch(e.Name())
		if m == nil {
			continue
		}
		n, _ := strconv.Atoi(m[1])
		files = append(files, pageFile{number: n, path: filepath.Join(outDir, e.Name())})
	}
	// 按页码数值排序，避免page_10排在page_2前面
	sort.Slice(files, func(i, j int) bool { return files[i].number < files[j].number })

	if len(files) == 0 {
		return nil, fmt.Errorf("no content streams found in PDF")
	}

	last := files[len(files)-1].number
	pages := make([]string, last)
	for _, f := range files {
		raw, err := os.ReadFile(f.path)
		if err != nil {
			return nil, fmt.Errorf("failed to read page %d: %w", f.number, err)
		}
		if f.number >= 1 {
			pages[f.number-1] = extractStreamText(string(raw))
		}
	}

	docs := pagesToDocuments(pages, filename, PDF)
	if len(docs) == 0 {
		return nil, fmt.Errorf("no text content found in PDF")
	}
	return docs, nil
}

// extractStreamText 从PDF内容流中提取文字
// 只处理字面量字符串和Tj/TJ/'/"绘制指令，换行由文本定位指令推断
func extractStreamText(stream string) string {
	var (
		out     strings.Builder
		pending strings.Builder
	)

	i := 0
	for i < len(stream) {
		c := stream[i]
		switch {
		case c == '(':
			s, next := readLiteralString(stream, i)
			pending.WriteString(s)
			i = next
		case c == '[' || c == ']' || isPDFSpace(c):
			i++
		default:
			start := i
			for i < len(stream) && !isPDFSpace(stream[i]) && stream[i] != '(' && stream[i] != '[' && stream[i] != ']' {
				i++
			}
			switch stream[start:i] {
			case "Tj", "TJ":
				out.WriteString(pending.String())
				pending.Reset()
			case "'", `"`:
				out.WriteString("\n")
				out.WriteString(pending.String())
				pending.Reset()
			case "Td", "TD", "T*", "ET":
				out.WriteString("\n")
			}
		}
	}
	return strings.ToValidUTF8(out.String(), "")
}

// readLiteralString 读取从start开始的字面量字符串，返回内容和结束后的位置
func readLiteralString(s string, start int) (string, int) {
	var b strings.Builder
	depth := 0
	i := start
	for i < len(s) {
		c := s[i]
		switch c {
		case '\\':
			if i+1 >= len(s) {
				return b.String(), len(s)
			}
			i++
			switch e := s[i]; e {
			case 'n':
				b.WriteByte('\n')
			case 'r':
				b.WriteByte('\r')
			case 't':
				b.WriteByte('\t')
			case 'b', 'f':
			case '\n':
				// 续行
			default:
				if e >= '0' && e <= '7' {
					j := i
					for j < len(s) && j < i+3 && s[j] >= '0' && s[j] <= '7' {
						j++
					}
					v, _ := strconv.ParseUint(s[i:j], 8, 8)
					b.WriteByte(byte(v))
					i = j
					continue
				}
				b.WriteByte(e)
			}
			i++
		case '(':
			if depth > 0 {
				b.WriteByte(c)
			}
			depth++
			i++
		case ')':
			depth--
			if depth == 0 {
				return b.String(), i + 1
			}
			b.WriteByte(c)
			i++
		default:
			b.WriteByte(c)
			i++
		}
	}
	return b.String(), i
}

func isPDFSpace(c byte) bool {
	return c == ' ' || c == '\n' || c == '\r' || c == '\t' || c == '\f' || c == 0
}
