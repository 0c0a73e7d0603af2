// Package textnorm 提供文本规范化工具
// 解析器输出的Markdown在分块之前都要经过Normalize处理
package textnorm

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

var (
	headingNoSpace = regexp.MustCompile(`(?m)^(#{1,6})([^\s#])`)
	blankLineRun   = regexp.MustCompile(`\n{3,}`)
)

// Normalize 规范化Markdown文本
//   - Unicode NFC组合
//   - 删除NUL字符
//   - 标题标记后缺少空格时补一个空格（"##Title" -> "## Title"）
//   - 三个及以上连续换行压缩为两个
//   - 去除每行行尾空白，并去除首尾空白
//
// 该函数不会失败，空输入返回空字符串
func Normalize(raw string) string {
	if raw == "" {
		return ""
	}

	text := norm.NFC.String(raw)
	text = strings.ReplaceAll(text, "\x00", "")
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = headingNoSpace.ReplaceAllString(text, "$1 $2")
	text = blankLineRun.ReplaceAllString(text, "\n\n")

	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRightFunc(line, unicode.IsSpace)
	}

	return strings.TrimSpace(strings.Join(lines, "\n"))
}
