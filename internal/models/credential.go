package models

import "time"

// AlgorithmAESGCM identifies the encryption scheme used for stored tokens.
// The vault refuses to decrypt values written under an unknown algorithm id.
const AlgorithmAESGCM = "aes-256-gcm"

// Credential holds a user's OAuth tokens for the remote provider, encrypted
// at rest. Each value carries its own nonce; a nonce is never reused under
// the same key.
type Credential struct {
	ID                    string     `gorm:"column:id;primaryKey"`
	UserID                string     `gorm:"column:user_id;uniqueIndex"`
	EncryptedAccessToken  []byte     `gorm:"column:encrypted_access_token"`
	AccessTokenNonce      []byte     `gorm:"column:access_token_nonce"`
	EncryptedRefreshToken []byte     `gorm:"column:encrypted_refresh_token"`
	RefreshTokenNonce     []byte     `gorm:"column:refresh_token_nonce"`
	AlgorithmID           string     `gorm:"column:algorithm_id"`
	AccessExpiresAt       *time.Time `gorm:"column:access_expires_at"`
	CreatedAt             time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt             time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName specifies the table name for GORM
func (Credential) TableName() string {
	return "credential"
}
