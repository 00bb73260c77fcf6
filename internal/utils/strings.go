package utils

// Truncate 按 rune 截断到最多 n 个字符，不会切断多字节字符
func Truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}
