package service

import (
	"strconv"
	"strings"
)

const (
	maxSlugLen   = 100
	fallbackSlug = "thread"
	// maxSuffixLen 查询已用 slug 时预留的后缀长度，"-99999"
	maxSuffixLen = 6
)

// slugify 小写，非 [a-z0-9] 连续段折叠为一个 '-'，去首尾 '-'，截断到 max
func slugify(s string, max int) string {
	var b strings.Builder
	b.Grow(len(s))
	pendingHyphen := false
	for _, r := range strings.ToLower(s) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			if pendingHyphen && b.Len() > 0 {
				b.WriteByte('-')
			}
			pendingHyphen = false
			b.WriteRune(r)
			continue
		}
		pendingHyphen = true
	}

	out := b.String()
	if len(out) > max {
		out = strings.TrimRight(out[:max], "-")
	}
	return out
}

// Slugify 主题标题转 slug，结果为空时使用 "thread"
func Slugify(title string) string {
	if s := slugify(title, maxSlugLen); s != "" {
		return s
	}
	return fallbackSlug
}

// SlugLookupPrefix 查询已用 slug 的前缀
// 长 slug 加后缀时会截短 stem，所有截短后的 stem 都以该前缀开头
func SlugLookupPrefix(base string) string {
	if len(base)+maxSuffixLen <= maxSlugLen {
		return base
	}
	return strings.TrimRight(base[:maxSlugLen-maxSuffixLen], "-")
}

// UniqueSlug 在已占用集合中为 base 追加 -2, -3 ...
func UniqueSlug(base string, taken []string) string {
	used := make(map[string]struct{}, len(taken))
	for _, s := range taken {
		used[s] = struct{}{}
	}
	if _, ok := used[base]; !ok {
		return base
	}

	for n := 2; ; n++ {
		suffix := "-" + strconv.Itoa(n)
		stem := base
		if len(stem)+len(suffix) > maxSlugLen {
			stem = strings.TrimRight(stem[:maxSlugLen-len(suffix)], "-")
		}
		candidate := stem + suffix
		if _, ok := used[candidate]; !ok {
			return candidate
		}
	}
}
