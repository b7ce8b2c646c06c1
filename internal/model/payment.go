package model

import (
	"time"
)

// SettlementState 一次支付通知的处理状态
//
//	RECEIVED -> APPLIED             入账成功
//	RECEIVED -> REJECTED_DUPLICATE  charge_id 已处理过
//	RECEIVED -> REJECTED_INVALID    金额不合法
//
// 只有 RECEIVED / APPLIED 会落库；两个拒绝状态只是本次尝试的结果。
type SettlementState string

const (
	SettlementReceived          SettlementState = "RECEIVED"
	SettlementApplied           SettlementState = "APPLIED"
	SettlementRejectedDuplicate SettlementState = "REJECTED_DUPLICATE"
	SettlementRejectedInvalid   SettlementState = "REJECTED_INVALID"
)

var ValidSettlementTransitions = map[SettlementState][]SettlementState{
	SettlementReceived: {SettlementApplied, SettlementRejectedDuplicate, SettlementRejectedInvalid},
}

func (s SettlementState) CanTransitionTo(target SettlementState) bool {
	for _, allowed := range ValidSettlementTransitions[s] {
		if allowed == target {
			return true
		}
	}
	return false
}

// Terminal 终态不再变化
func (s SettlementState) Terminal() bool {
	return len(ValidSettlementTransitions[s]) == 0
}

// Payment 支付记录表
//
// 【重要】charge_id 是支付渠道的扣款ID，也是幂等键：
// 唯一索引保证同一笔扣款无论被投递多少次，最多只有一条记录。
type Payment struct {
	ID              int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	ChargeID        string          `gorm:"type:varchar(128);uniqueIndex;not null" json:"charge_id"`
	UserID          int64           `gorm:"index;not null" json:"user_id"`
	AmountPaid      int64           `gorm:"not null" json:"amount_paid"`       // 渠道最小单位（Stars）
	CreditUnitPrice int64           `gorm:"not null" json:"credit_unit_price"` // 单个蛋的价格
	CreditsGranted  int64           `gorm:"not null" json:"credits_granted"`
	Currency        string          `gorm:"type:varchar(16);not null" json:"currency"`
	InvoiceNo       string          `gorm:"type:varchar(64);index" json:"invoice_no"`
	Status          SettlementState `gorm:"type:varchar(20);index;not null" json:"status"`
	AppliedAt       *time.Time      `json:"applied_at"`
	CreatedAt       time.Time       `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt       time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Payment) TableName() string {
	return "payment"
}
