package model

import (
	"time"
)

// ============================================================================
// 额度流水类型常量
// ============================================================================

const (
	TransactionTypeGrantFree = "GRANT_FREE" // 新用户赠送
	TransactionTypeConsume   = "CONSUME"    // 开蛋消耗
	TransactionTypePurchase  = "PURCHASE"   // 支付入账
)

const (
	BucketFree      = "FREE"
	BucketPurchased = "PURCHASED"
)

// ============================================================================
// 额度流水实体
// ============================================================================

// CreditTransaction 额度流水表
// 记录账户额度的每一次变动，是对账的依据
//
// 【重要】流水表设计原则：
// 1. 只追加，不修改，不删除
// 2. 每笔流水记录变动的额度桶（免费/购买）和变动后的两个余额
// 3. Reference 关联业务单据：支付是 charge_id，开蛋是抽中的手办
type CreditTransaction struct {
	ID                    int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	TransactionNo         string    `gorm:"type:varchar(64);uniqueIndex;not null" json:"transaction_no"`
	UserID                int64     `gorm:"index;not null" json:"user_id"`
	Type                  string    `gorm:"type:varchar(20);not null" json:"type"`
	Bucket                string    `gorm:"type:varchar(20);not null" json:"bucket"`
	Delta                 int64     `gorm:"not null" json:"delta"` // 正数入账，负数消耗
	FreeCreditsAfter      int64     `gorm:"not null" json:"free_credits_after"`
	PurchasedCreditsAfter int64     `gorm:"not null" json:"purchased_credits_after"`
	Reference             string    `gorm:"type:varchar(128);index" json:"reference"`
	Remark                string    `gorm:"type:varchar(256)" json:"remark"`
	CreatedAt             time.Time `gorm:"autoCreateTime;index" json:"created_at"`
}

func (CreditTransaction) TableName() string {
	return "credit_transaction"
}
