package session

import (
	"time"

	"gorm.io/gorm"

	"HibiscusGuard/pkg/errors"
	"HibiscusGuard/pkg/util"
)

// Credential 本地会话存储中的一条键值
type Credential struct {
	ID        uint   `gorm:"primaryKey"`
	Key       string `gorm:"uniqueIndex;size:64"`
	Value     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

const credentialTokenKey = "bearer_token"

// TokenStore 会话凭证的本地落地，等价于浏览器端的 localStorage 协作方
type TokenStore struct {
	db *gorm.DB
}

// OpenTokenStore 打开（必要时创建）本地会话存储
func OpenTokenStore(dsn string) (*TokenStore, error) {
	db, err := util.OpenDatabase(dsn)
	if err != nil {
		return nil, errors.Wrap(err, "open session store")
	}
	if err := db.AutoMigrate(&Credential{}); err != nil {
		return nil, errors.Wrap(err, "migrate session store")
	}
	return &TokenStore{db: db}, nil
}

// Token 读取当前令牌，实现 api.TokenSource
func (s *TokenStore) Token() (string, error) {
	var cred Credential
	err := s.db.Where("key = ?", credentialTokenKey).First(&cred).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return "", errors.New("no bearer token stored")
		}
		return "", err
	}
	return cred.Value, nil
}

// SetToken 写入（覆盖）令牌
func (s *TokenStore) SetToken(token string) error {
	cred := Credential{Key: credentialTokenKey, Value: token}
	return s.db.
		Where("key = ?", credentialTokenKey).
		Assign(Credential{Value: token}).
		FirstOrCreate(&cred).Error
}

// ClearToken 清除令牌（登出）
func (s *TokenStore) ClearToken() error {
	return s.db.Where("key = ?", credentialTokenKey).Delete(&Credential{}).Error
}

// Close 关闭底层数据库
func (s *TokenStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
