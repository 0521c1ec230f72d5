package mysql

import (
	"fmt"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"tpabridge/internal/app/infra/persistence/entity"
)

// Open 建立 MySQL 连接
func Open(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("open mysql failed: %w", err)
	}
	return db, nil
}

// Migrate 同步表结构
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(&entity.Request{}, &entity.AuditEntry{})
}
