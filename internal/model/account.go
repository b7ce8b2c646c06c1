package model

import (
	"time"
)

// Account 玩家账户表
// 记录玩家的开蛋额度：免费额度和购买额度分开记账，两者都不能小于0
type Account struct {
	ID               int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID           int64     `gorm:"uniqueIndex;not null" json:"user_id"`               // Telegram 用户ID
	DisplayName      string    `gorm:"type:varchar(128);not null" json:"display_name"`    // 展示名，最后一次写入为准
	FreeCredits      int64     `gorm:"not null;default:0" json:"free_credits"`            // 免费额度
	PurchasedCredits int64     `gorm:"not null;default:0" json:"purchased_credits"`       // 购买额度
	Version          int       `gorm:"not null;default:0" json:"version"`                 // 每次变动 +1
	CreatedAt        time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Account) TableName() string {
	return "account"
}

// AvailableCredits 可用额度 = 免费 + 购买
func (a *Account) AvailableCredits() int64 {
	return a.FreeCredits + a.PurchasedCredits
}
