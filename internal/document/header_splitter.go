package document

import (
	"regexp"
	"strings"
)

// 结尾的#序列前必须有空白，"# C#"的标题文本是"C#"
var atxHeading = regexp.MustCompile(`^(#{1,6})[ \t]+(.*?)(?:[ \t]+#+)?[ \t]*$`)

// Section 按标题切分得到的章节
type Section struct {
	Content string
	Headers map[string]string // Header 1..Header 3
}

// HeaderSplitter 按Markdown 1~3级标题切分文本
// 标题行保留在章节内容中，代码块内的#行不会被当成标题
type HeaderSplitter struct {
	maxLevel int
}

// NewHeaderSplitter 创建标题分割器
func NewHeaderSplitter() *HeaderSplitter {
	return &HeaderSplitter{maxLevel: len(headerKeys)}
}

// Split 切分文本
// 每个章节的标题元数据包含从1级到当前最深层级的所有键，中间缺失的层级为空字符串
func (s *HeaderSplitter) Split(text string) []Section {
	var (
		sections []Section
		lines    []string
		active   = make([]string, s.maxLevel)
		depth    int
		inFence  bool
		fence    string
	)

	flush := func() {
		content := strings.TrimSpace(strings.Join(lines, "\n"))
		lines = lines[:0]
		if content == "" {
			return
		}
		headers := make(map[string]string, depth)
		for i := 0; i < depth; i++ {
			headers[headerKeys[i]] = active[i]
		}
		sections = append(sections, Section{Content: content, Headers: headers})
	}

	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)

		if marker := fenceMarker(trimmed); marker != "" {
			if !inFence {
				inFence, fence = true, marker
			} else if marker == fence {
				inFence = false
			}
			lines = append(lines, line)
			continue
		}

		if !inFence {
			if m := atxHeading.FindStringSubmatch(trimmed); m != nil && len(m[1]) <= s.maxLevel {
				flush()
				level := len(m[1])
				active[level-1] = m[2]
				for i := level; i < s.maxLevel; i++ {
					active[i] = ""
				}
				depth = level
			}
		}
		lines = append(lines, line)
	}
	flush()

	return sections
}

func fenceMarker(line string) string {
	switch {
	case strings.HasPrefix(line, "```"):
		return "```"
	case strings.HasPrefix(line, "~~~"):
		return "~~~"
	default:
		return ""
	}
}
