package qzone

import (
	"regexp"
	"strings"

	"go.uber.org/zap"
)

// Jar cookie 名到值的映射
type Jar map[string]string

// ParseCookies 解析 "k=v; k2=v2" 形式的 cookie 串。
// 只按第一个 = 切分，值里的 = 原样保留；没有 = 的片段忽略
func ParseCookies(header string) Jar {
	jar := Jar{}
	if header == "" {
		return jar
	}
	for _, item := range strings.Split(header, ";") {
		key, value, ok := strings.Cut(item, "=")
		if !ok {
			continue
		}
		jar[strings.TrimSpace(key)] = strings.TrimSpace(value)
	}
	return jar
}

// ExtractAccountID 从 uin cookie 提取 QQ 号：去掉开头的 o，再去掉前导 0
func ExtractAccountID(jar Jar) (qq string, ok bool) {
	defer recoverExtract("uin", &qq, &ok)

	uin := jar["uin"]
	if uin == "" {
		return "", false
	}
	uin = strings.TrimPrefix(uin, "o")
	if uin == "" {
		return "", false
	}
	if trimmed := strings.TrimLeft(uin, "0"); trimmed != "" {
		return trimmed, true
	}
	// 全是 0 时归一为 "0"，不回落到 "0000" 这样的原值
	return "0", true
}

// ExtractSigningKey 取 p_skey 原值
func ExtractSigningKey(jar Jar) (pskey string, ok bool) {
	defer recoverExtract("p_skey", &pskey, &ok)

	pskey = jar["p_skey"]
	return pskey, pskey != ""
}

func recoverExtract(field string, value *string, ok *bool) {
	if r := recover(); r != nil {
		zap.L().Error("提取 cookie 字段失败", zap.String("field", field), zap.Any("panic", r))
		*value, *ok = "", false
	}
}

var sensitiveCookie = regexp.MustCompile(`((?:^|;\s*)(?:p_skey|skey|pt4_token)=)[^;]*`)

// MaskCookies 把 cookie 串里的登录凭据替换成 ***，用于日志
func MaskCookies(header string) string {
	return sensitiveCookie.ReplaceAllString(header, "${1}***")
}
