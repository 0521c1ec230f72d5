package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"tpabridge/internal/app/config"
	"tpabridge/internal/app/domains/repo/rprequest"
	"tpabridge/internal/app/infra/persistence/mysql"
	"tpabridge/pkg/crypto"
)

var (
	configPath = flag.String("config", "./config/config.yaml", "配置文件路径")
	batchSize  = flag.Int("batch-size", 500, "单批处理条数")
)

// 密钥轮换批处理工具：把旧密钥加密的存量密文重新加密为当前密钥
// 先在配置里发布新密钥（旧密钥移入 previous_keys），再执行本工具
func main() {
	flag.Parse()

	fmt.Println("========================================")
	fmt.Println("  RotateKeys - 密钥轮换批处理")
	fmt.Println("========================================")

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	key, err := crypto.LoadKey(cfg.Encryption.KeyFile)
	if err != nil {
		log.Fatalf("Failed to load current key: %v", err)
	}
	codec, err := crypto.NewRotatingCodec(key, cfg.Encryption.KeyVersion)
	if err != nil {
		log.Fatalf("Failed to create codec: %v", err)
	}
	for _, prev := range cfg.Encryption.PreviousKeys {
		prevKey, err := crypto.LoadKey(prev.KeyFile)
		if err != nil {
			log.Fatalf("Failed to load previous key v%d: %v", prev.Version, err)
		}
		if err := codec.AddPreviousKey(prevKey, prev.Version); err != nil {
			log.Fatalf("Failed to register previous key v%d: %v", prev.Version, err)
		}
	}

	db, err := mysql.Open(cfg.MySQL.DSN)
	if err != nil {
		log.Fatalf("Failed to open mysql: %v", err)
	}

	repo := rprequest.NewRequestRepository(db, codec)

	reEncrypted, err := repo.ReEncryptAll(context.Background(), codec, *batchSize)
	if err != nil {
		fmt.Printf("❌ Re-encryption aborted after %d records: %v\n", reEncrypted, err)
		os.Exit(1)
	}

	fmt.Printf("✅ Re-encrypted %d records to key version v%d\n", reEncrypted, cfg.Encryption.KeyVersion)
	fmt.Println("========================================")
	fmt.Println("  RotateKeys done")
	fmt.Println("========================================")
}
