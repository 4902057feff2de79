package tabular

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrParse 内容无法按声明的格式解析为表格.
	ErrParse = errors.New("tabular: parse error")
	// ErrColumnCollision 不同的原始列名规范化后得到同一个键.
	ErrColumnCollision = errors.New("tabular: column name collision")
)

// ParseError 描述一次解析失败，Line 为 0 表示与具体行无关.
type ParseError struct {
	Format Format
	Line   int
	Err    error
}

func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("parse %s: line %d: %v", e.Format, e.Line, e.Err)
	}

	return fmt.Sprintf("parse %s: %v", e.Format, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Is 让 errors.Is(err, ErrParse) 对所有 ParseError 成立.
func (e *ParseError) Is(target error) bool { return target == ErrParse }

// CollisionError 列名冲突详情，Key 为规范化后的键.
type CollisionError struct {
	Key    string
	Labels []string
}

func (e *CollisionError) Error() string {
	return fmt.Sprintf("columns %s all normalize to %q", quoteAll(e.Labels), e.Key)
}

func (e *CollisionError) Unwrap() error { return ErrColumnCollision }

func quoteAll(ss []string) string {
	q := make([]string, len(ss))
	for i, s := range ss {
		q[i] = fmt.Sprintf("%q", s)
	}

	return strings.Join(q, ", ")
}
