package textnorm

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// DefaultFilename 清洗后为空时使用的文件名
const DefaultFilename = "file"

var (
	unsafeFilenameChars = regexp.MustCompile(`[^A-Za-z0-9_\-.]`)
	filenameSpace       = regexp.MustCompile(`\s`)
)

// SanitizeFilename 生成安全的文件名，用作文档来源标识
// NFKD分解后丢弃非ASCII字符，每个空白字符替换为下划线，
// 只保留字母数字、下划线、连字符和点，最后转小写
func SanitizeFilename(name string) string {
	if name == "" {
		return DefaultFilename
	}

	t := transform.Chain(norm.NFKD, runes.Remove(runes.Predicate(func(r rune) bool {
		return r > unicode.MaxASCII
	})))
	folded, _, err := transform.String(t, name)
	if err != nil {
		return DefaultFilename
	}

	folded = strings.TrimSpace(folded)
	folded = filenameSpace.ReplaceAllString(folded, "_")
	folded = strings.ToLower(unsafeFilenameChars.ReplaceAllString(folded, ""))
	if folded == "" {
		return DefaultFilename
	}
	return folded
}
