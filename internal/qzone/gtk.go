package qzone

import "unicode/utf16"

// GTK 由 p_skey 计算 QZone 写接口要求的 g_tk。
// 累加器按 int32 回绕，最后取低 31 位；按 UTF-16 码元遍历
func GTK(signingKey string) int64 {
	hash := int32(5381)
	for _, c := range utf16.Encode([]rune(signingKey)) {
		hash += hash<<5 + int32(c)
	}
	return int64(hash) & 0x7FFFFFFF
}
