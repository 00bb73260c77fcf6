package qzone

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseCookies(t *testing.T) {
	tests := []struct {
		name   string
		header string
		want   Jar
	}{
		{"value keeps later equals", "a=1; b=2=x", Jar{"a": "1", "b": "2=x"}},
		{"empty", "", Jar{}},
		{"only separators", ";;", Jar{}},
		{"segment without equals ignored", "flag; uin=o1", Jar{"uin": "o1"}},
		{"trims whitespace", "  uin = o123 ;p_skey= k ", Jar{"uin": "o123", "p_skey": "k"}},
		{"keys are case sensitive", "UIN=1; uin=2", Jar{"UIN": "1", "uin": "2"}},
		{"empty value kept", "a=", Jar{"a": ""}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseCookies(tt.header))
		})
	}
}

func TestExtractAccountID(t *testing.T) {
	tests := []struct {
		cookie string
		want   string
		ok     bool
	}{
		{"uin=o001234", "1234", true},
		{"uin=1234", "1234", true},
		{"uin=o0000", "0", true},
		{"uin=o7", "7", true},
		{"uin=o", "", false},
		{"uin=", "", false},
		{"p_skey=abc", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.cookie, func(t *testing.T) {
			got, ok := ExtractAccountID(ParseCookies(tt.cookie))
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExtractSigningKey(t *testing.T) {
	key, ok := ExtractSigningKey(ParseCookies("uin=o1; p_skey=a*b=c; skey=@x"))
	assert.True(t, ok)
	assert.Equal(t, "a*b=c", key)

	_, ok = ExtractSigningKey(ParseCookies("uin=o1; skey=@x"))
	assert.False(t, ok)

	_, ok = ExtractSigningKey(nil)
	assert.False(t, ok)
}

func TestMaskCookies(t *testing.T) {
	masked := MaskCookies("uin=o7; skey=@abc; p_skey=secret=1; pt4_token=tok; other=z")
	assert.Equal(t, "uin=o7; skey=***; p_skey=***; pt4_token=***; other=z", masked)
	assert.NotContains(t, masked, "secret")

	assert.Equal(t, "p_skey=***", MaskCookies("p_skey=abc"))
	assert.Equal(t, "my_p_skey=abc", MaskCookies("my_p_skey=abc"))
}

func TestGTK(t *testing.T) {
	tests := []struct {
		key  string
		want int64
	}{
		{"", 5381},
		{"abc", 193485963},
		{"abcdef", 1900596090},
		{"Zx9*Hj-QkL2m_pN8rT4vW6yB1cD3eF5g", 2089864447},
		{"p_skey测试", 2104917456},
		{"a😀b", 4635173},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			got := GTK(tt.key)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, got, GTK(tt.key))
			assert.GreaterOrEqual(t, got, int64(0))
			assert.LessOrEqual(t, got, int64(0x7FFFFFFF))
		})
	}
}
