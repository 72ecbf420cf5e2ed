package domain

import (
	"crypto/rand"
	mrand "math/rand/v2"
	"strings"
)

// CodeAlphabet 邀请码字符表（去掉了易混淆的 0/O、1/I）
const CodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// CodeLength 邀请码长度
const CodeLength = 8

// Code 是邮箱的唯一标识，同时充当收件人身份
type Code string

// String 实现 fmt.Stringer
func (c Code) String() string {
	return string(c)
}

// NewCode 生成一个新的 8 位邀请码。
//
// 每一位都独立且均匀地从 CodeAlphabet 中抽取。字符表长度为 32，
// 正好整除 256，所以直接取模不会引入偏差。
func NewCode() Code {
	buf := make([]byte, CodeLength)
	if _, err := rand.Read(buf); err != nil {
		// 系统熵源不可用时退回到伪随机数
		for i := range buf {
			buf[i] = byte(mrand.IntN(256))
		}
	}

	out := make([]byte, CodeLength)
	for i, b := range buf {
		out[i] = CodeAlphabet[int(b)%len(CodeAlphabet)]
	}
	return Code(out)
}

// NormalizeCode 去除首尾空白并转为大写
func NormalizeCode(raw string) string {
	return strings.ToUpper(strings.TrimSpace(raw))
}

// ValidCode 判断字符串是否为格式正确的邀请码。
// 中继服务端不拒绝格式不对的码，只有客户端用它来提示用户。
func ValidCode(raw string) bool {
	if len(raw) != CodeLength {
		return false
	}
	for i := 0; i < len(raw); i++ {
		if strings.IndexByte(CodeAlphabet, raw[i]) < 0 {
			return false
		}
	}
	return true
}
