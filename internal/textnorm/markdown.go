package textnorm

import (
	"fmt"
	"regexp"
	"strings"
)

// MaxOCRLength 图片块中保留的OCR字符数上限
const MaxOCRLength = 300

// DefaultPreviewLimit 预览文本默认长度
const DefaultPreviewLimit = 200

var (
	multiSpace     = regexp.MustCompile(`\s{2,}`)
	cellGap        = regexp.MustCompile(`[\t ]{2,}`)
	tableSeparator = regexp.MustCompile(`^\|\s*[-:]+\s*(\|\s*[-:]+\s*)+\|?$`)
	doubleNewline  = regexp.MustCompile(`\n{2,}`)
	whitespaceRun  = regexp.MustCompile(`\s+`)
)

// SanitizeTableMarkdown 把用空格对齐的表格文本转换成管道表格
// 前10行中没有出现连续空白时认为不是表格，原样返回
func SanitizeTableMarkdown(md string) string {
	if md == "" {
		return ""
	}
	lines := strings.Split(md, "\n")
	if len(lines) < 2 {
		return md
	}

	tableLike := false
	for _, ln := range lines[:min(10, len(lines))] {
		if multiSpace.MatchString(ln) {
			tableLike = true
			break
		}
	}
	if !tableLike {
		return md
	}

	out := make([]string, 0, len(lines)+1)
	for _, ln := range lines {
		if !multiSpace.MatchString(ln) {
			out = append(out, ln)
			continue
		}
		row := strings.TrimSpace(cellGap.ReplaceAllString(ln, " | "))
		row = strings.Trim(row, "| ")
		out = append(out, "| "+row+" |")
	}

	if strings.HasPrefix(out[0], "|") && (len(out) == 1 || !tableSeparator.MatchString(out[1])) {
		cols := strings.Split(strings.Trim(out[0], "| "), "|")
		seps := make([]string, len(cols))
		for i := range cols {
			seps[i] = "---"
		}
		sep := "| " + strings.Join(seps, " | ") + " |"
		out = append(out[:1], append([]string{sep}, out[1:]...)...)
	}
	return strings.Join(out, "\n")
}

// FormatImageBlock 生成图片的Markdown描述块，包含可选的标题和OCR文本
func FormatImageBlock(imageID, caption, ocrText string) string {
	if imageID == "" {
		imageID = "image"
	}
	parts := []string{fmt.Sprintf("![image](%s)", imageID)}

	if c := strings.TrimSpace(caption); c != "" {
		parts = append(parts, "**Caption:** "+c)
	}
	if txt := strings.TrimSpace(ocrText); txt != "" {
		txt = doubleNewline.ReplaceAllString(txt, "\n")
		parts = append(parts, "**OCR:** "+truncateRunes(txt, MaxOCRLength))
	}
	return strings.TrimSpace(strings.Join(parts, "\n\n"))
}

// ShortenPreview 压缩空白并截断文本，用于日志和命令行展示
func ShortenPreview(text string, limit int) string {
	if text == "" {
		return ""
	}
	if limit <= 0 {
		limit = DefaultPreviewLimit
	}
	s := strings.TrimSpace(whitespaceRun.ReplaceAllString(text, " "))
	if len([]rune(s)) <= limit {
		return s
	}
	return strings.TrimRight(truncateRunes(s, limit), " ") + "…"
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
