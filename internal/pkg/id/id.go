package id

import (
	"crypto/rand"
	"math/big"

	"github.com/google/uuid"
)

const shortAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// New 生成新的UUID（string格式）
func New() string {
	return uuid.New().String()
}

// IsValid 验证UUID格式是否有效
func IsValid(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

// Short 生成指定长度的短ID（字母+数字），用于文件重命名
func Short(length int) string {
	if length <= 0 {
		length = 6
	}
	b := make([]byte, length)
	max := big.NewInt(int64(len(shortAlphabet)))
	for i := range b {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			// crypto/rand 失败时退回 UUID 字符
			return uuid.New().String()[:length]
		}
		b[i] = shortAlphabet[n.Int64()]
	}
	return string(b)
}
