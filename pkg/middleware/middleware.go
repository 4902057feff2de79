// Package middleware 提供 HTTP 中间件：身份、请求 ID、日志、追踪、指标、限流和 CORS.
package middleware

import "strings"

// matchPrefix 判断 path 是否以 prefixes 中任一非空前缀开头.
func matchPrefix(path string, prefixes []string) bool {
	if path == "" {
		return false
	}

	for _, p := range prefixes {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}

		if strings.HasPrefix(path, p) {
			return true
		}
	}

	return false
}
