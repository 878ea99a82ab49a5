// Package fastparse 提供高性能的字符串解析函数。
// 避免在热路径使用 fmt.Sprintf，使用 strconv 进行转换。
// 主要用于解析行情消息中的时间戳与参数文件中的数值字段。
package fastparse

import (
	"strconv"
)

// ParseFloat 快速解析浮点数字符串
// 使用 strconv.ParseFloat 实现，避免 fmt 包的额外开销
// 参数 s: 待解析的字符串，如 "12345.67"
// 返回: 解析后的浮点数和可能的错误
func ParseFloat(s string) (float64, error) {
	return strconv.ParseFloat(s, 64)
}

// ParseInt 快速解析整数字符串
// 使用 strconv.ParseInt 实现，支持 64 位整数
// 参数 s: 待解析的字符串，如 "12345"
// 返回: 解析后的整数和可能的错误
func ParseInt(s string) (int64, error) {
	return strconv.ParseInt(s, 10, 64)
}

// MustParseFloat 解析浮点数，失败时返回 0
// 用于已知格式正确的场景，简化错误处理
func MustParseFloat(s string) float64 {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}

// FormatFloat 格式化浮点数为字符串
// prec=-1 表示最短可往返表示，参数文件保存依赖该语义保证读写一致
func FormatFloat(f float64, prec int) string {
	return strconv.FormatFloat(f, 'f', prec, 64)
}

// FormatFloatShortest 以最短可往返形式格式化浮点数
// 使用 'g' 格式，保证 ParseFloat(FormatFloatShortest(v)) == v
func FormatFloatShortest(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}
