package crypto

import (
	"fmt"
	"strconv"
	"strings"

	"tpabridge/pkg/errorx"
)

// 密文版本前缀格式："v{version}:" + base64 密文
const (
	versionPrefix    = "v"
	versionSeparator = ":"
)

// RotatingCodec 支持密钥轮换的编解码器
// 加密固定使用当前密钥，解密按版本前缀选择密钥；旧密钥只用于解密
type RotatingCodec struct {
	current    *Codec
	currentVer int
	previous   map[int]*Codec
}

// NewRotatingCodec 创建轮换编解码器
func NewRotatingCodec(currentKey []byte, currentVersion int) (*RotatingCodec, error) {
	codec, err := NewCodec(currentKey)
	if err != nil {
		return nil, fmt.Errorf("rotating codec: current key: %w", err)
	}
	return &RotatingCodec{
		current:    codec,
		currentVer: currentVersion,
		previous:   make(map[int]*Codec),
	}, nil
}

// AddPreviousKey 注册历史密钥（仅用于解密存量数据）
// 只在启动阶段调用，之后只读
func (r *RotatingCodec) AddPreviousKey(key []byte, version int) error {
	codec, err := NewCodec(key)
	if err != nil {
		return fmt.Errorf("rotating codec: previous key v%d: %w", version, err)
	}
	r.previous[version] = codec
	return nil
}

// Encrypt 使用当前密钥加密并附加版本前缀
func (r *RotatingCodec) Encrypt(plaintext string) (string, error) {
	ciphertext, err := r.current.Encrypt(plaintext)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s%d%s%s", versionPrefix, r.currentVer, versionSeparator, ciphertext), nil
}

// Decrypt 识别版本前缀并用对应密钥解密
// 无前缀的存量密文按当前密钥尝试
func (r *RotatingCodec) Decrypt(ciphertext string) (string, error) {
	version, data, ok := parseVersioned(ciphertext)
	if !ok {
		return r.current.Decrypt(ciphertext)
	}

	if version == r.currentVer {
		return r.current.Decrypt(data)
	}

	codec, exists := r.previous[version]
	if !exists {
		return "", errorx.Integrity("no key for ciphertext version",
			fmt.Sprintf("version %d not registered", version))
	}
	return codec.Decrypt(data)
}

// NeedsReEncryption 判断密文是否使用旧版本密钥（轮换批处理的筛选条件）
func (r *RotatingCodec) NeedsReEncryption(ciphertext string) bool {
	version, _, ok := parseVersioned(ciphertext)
	if !ok {
		return true
	}
	return version != r.currentVer
}

// ReEncrypt 用旧密钥解密后用当前密钥重新加密（单条记录的轮换操作）
func (r *RotatingCodec) ReEncrypt(ciphertext string) (string, error) {
	plaintext, err := r.Decrypt(ciphertext)
	if err != nil {
		return "", err
	}
	return r.Encrypt(plaintext)
}

// parseVersioned 解析 "v{N}:..." 形式的密文
func parseVersioned(ciphertext string) (version int, data string, ok bool) {
	if !strings.HasPrefix(ciphertext, versionPrefix) {
		return 0, "", false
	}
	rest := ciphertext[len(versionPrefix):]
	idx := strings.Index(rest, versionSeparator)
	if idx <= 0 {
		return 0, "", false
	}
	version, err := strconv.Atoi(rest[:idx])
	if err != nil {
		return 0, "", false
	}
	return version, rest[idx+1:], true
}
