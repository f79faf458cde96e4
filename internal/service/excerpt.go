package service

import (
	"html"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
)

var (
	stripPolicy  = bluemonday.StrictPolicy()
	mdLink       = regexp.MustCompile(`!?\[([^\]]*)\]\([^)]*\)`)
	mdLinePrefix = regexp.MustCompile(`(?m)^\s{0,3}(#{1,6}\s+|>\s?|[-*+]\s+|\d+\.\s+)`)
	mdInline     = regexp.MustCompile("[*_~`]+")
)

// Excerpt 去除 HTML / markdown 标记后取前 n 个字符，截断时追加 "..."
func Excerpt(content string, n int) string {
	if content == "" || n <= 0 {
		return ""
	}

	text := stripPolicy.Sanitize(content)
	text = html.UnescapeString(text)
	text = mdLink.ReplaceAllString(text, "$1")
	text = mdLinePrefix.ReplaceAllString(text, "")
	text = mdInline.ReplaceAllString(text, "")
	text = strings.Join(strings.Fields(text), " ")

	if utf8.RuneCountInString(text) <= n {
		return text
	}
	runes := []rune(text)
	return strings.TrimRight(string(runes[:n]), " ") + "..."
}
