package textnorm

import (
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestNormalize 测试Markdown规范化
func TestNormalize(t *testing.T) {
	t.Run("heading spacing and blank lines", func(t *testing.T) {
		assert.Equal(t, "## Title\n\nBody", Normalize("##Title\n\n\n\nBody  "))
	})

	t.Run("empty input", func(t *testing.T) {
		assert.Equal(t, "", Normalize(""))
		assert.Equal(t, "", Normalize("   \n\n  "))
	})

	t.Run("nul characters removed", func(t *testing.T) {
		assert.Equal(t, "abc", Normalize("a\x00b\x00c"))
	})

	t.Run("existing heading space untouched", func(t *testing.T) {
		assert.Equal(t, "# Title\n###### Deep", Normalize("# Title\n######Deep"))
	})

	t.Run("nfc composition", func(t *testing.T) {
		// e + 组合重音符 -> é
		assert.Equal(t, "café", Normalize("café"))
	})

	t.Run("trailing whitespace per line", func(t *testing.T) {
		assert.Equal(t, "line one\nline two", Normalize("line one   \nline two\t\t\n"))
	})
}

// TestSanitizeFilename 测试文件名清洗
func TestSanitizeFilename(t *testing.T) {
	cases := map[string]string{
		"Report Final (v2).PDF": "report_final_v2.pdf",
		"Café Menu.txt":         "cafe_menu.txt",
		"":                      "file",
		"报告.pdf":                ".pdf",
		"中文":                    "file",
		"  spaced  name.md  ":   "spaced__name.md",
		"tab\tand\nline.txt":    "tab_and_line.txt",
		"Q1 Report (Final).PDF": "q1_report_final.pdf",
	}
	for input, expected := range cases {
		assert.Equal(t, expected, SanitizeFilename(input), "input %q", input)
	}

	safe := regexp.MustCompile(`^[a-z0-9_\-.]+$`)
	for _, input := range []string{"Q1 Report (Final).PDF", "Ünïcödé Fïlé.md", "\t\n"} {
		assert.Regexp(t, safe, SanitizeFilename(input), "input %q", input)
	}
}

// TestSanitizeTableMarkdown 测试表格转换
func TestSanitizeTableMarkdown(t *testing.T) {
	t.Run("space aligned table", func(t *testing.T) {
		in := "Name    Value\nGDP     7.2%\nCPI     2.1%"
		out := SanitizeTableMarkdown(in)
		lines := strings.Split(out, "\n")
		assert.Equal(t, "| Name | Value |", lines[0])
		assert.Equal(t, "| --- | --- |", lines[1])
		assert.Equal(t, "| GDP | 7.2% |", lines[2])
	})

	t.Run("plain prose untouched", func(t *testing.T) {
		in := "just a sentence\nand another one"
		assert.Equal(t, in, SanitizeTableMarkdown(in))
	})

	t.Run("existing separator kept", func(t *testing.T) {
		in := "a    b\n|---|---|\nc    d"
		out := SanitizeTableMarkdown(in)
		assert.Equal(t, 3, len(strings.Split(out, "\n")))
	})
}

// TestFormatImageBlock 测试图片块生成
func TestFormatImageBlock(t *testing.T) {
	assert.Equal(t, "![image](image)", FormatImageBlock("", "", ""))

	out := FormatImageBlock("img-1", " A chart ", "line1\n\n\nline2")
	assert.Equal(t, "![image](img-1)\n\n**Caption:** A chart\n\n**OCR:** line1\nline2", out)

	long := strings.Repeat("x", 500)
	out = FormatImageBlock("img", "", long)
	assert.True(t, strings.HasSuffix(out, strings.Repeat("x", MaxOCRLength)))
	assert.False(t, strings.Contains(out, strings.Repeat("x", MaxOCRLength+1)))
}

// TestShortenPreview 测试预览截断
func TestShortenPreview(t *testing.T) {
	assert.Equal(t, "a b c", ShortenPreview("a\n\nb   c", 10))
	assert.Equal(t, "", ShortenPreview("", 10))
	assert.Equal(t, "hello…", ShortenPreview("hello world", 6))
}
