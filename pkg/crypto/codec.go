package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strings"

	"tpabridge/pkg/errorx"
)

// KeySize AES-256 密钥长度（字节）
const KeySize = 32

// Codec 字段级加解密编解码器（AES-256-GCM，认证加密）
// 密钥在进程启动时加载一次，之后只读，无需加锁
type Codec struct {
	aead cipher.AEAD
}

// NewCodec 创建编解码器，key 必须为 32 字节
func NewCodec(key []byte) (*Codec, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("codec: key must be %d bytes, got %d", KeySize, len(key))
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("codec: create cipher: %w", err)
	}

	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("codec: create GCM: %w", err)
	}

	return &Codec{aead: aead}, nil
}

// LoadKey 从受保护的文件加载密钥（支持 hex 编码或原始 32 字节）
// 密钥绝不写入代码或日志
func LoadKey(path string) ([]byte, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("codec: read key file: %w", err)
	}

	trimmed := strings.TrimSpace(string(raw))
	if len(trimmed) == KeySize*2 {
		key, err := hex.DecodeString(trimmed)
		if err == nil {
			return key, nil
		}
	}
	if len(raw) == KeySize {
		return raw, nil
	}
	return nil, fmt.Errorf("codec: key file must contain %d raw bytes or %d hex chars", KeySize, KeySize*2)
}

// Encrypt 加密字符串，返回 base64(nonce + ciphertext)
func (c *Codec) Encrypt(plaintext string) (string, error) {
	nonce := make([]byte, c.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("codec: generate nonce: %w", err)
	}

	// Seal 把密文追加在 nonce 后面，结果为 nonce + ciphertext
	sealed := c.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt 解密，任何篡改或密钥不匹配都返回 Integrity 错误（fail closed）
// 调用方绝不能把完整性错误当作"空值"处理
func (c *Codec) Decrypt(ciphertext string) (string, error) {
	data, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", errorx.Integrity("ciphertext corrupted", "base64 decode: "+err.Error())
	}

	nonceSize := c.aead.NonceSize()
	if len(data) < nonceSize {
		return "", errorx.Integrity("ciphertext corrupted", "shorter than nonce")
	}

	nonce, sealed := data[:nonceSize], data[nonceSize:]
	plaintext, err := c.aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", errorx.Integrity("ciphertext integrity check failed", err.Error())
	}
	return string(plaintext), nil
}
