package util

import (
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

// OpenDatabase 打开本地 sqlite 数据库（客户端会话存储）
func OpenDatabase(dsn string) (*gorm.DB, error) {
	if dsn == "" {
		// 连接池内各连接需共享同一份内存库
		dsn = "file::memory:?cache=shared"
	}
	return gorm.Open(sqlite.Open(dsn), &gorm.Config{})
}
