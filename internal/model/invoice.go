package model

import (
	"time"
)

const (
	InvoiceStatusCreated = "CREATED"
	InvoiceStatusPaid    = "PAID"
	InvoiceStatusClosed  = "CLOSED"
)

var ValidInvoiceTransitions = map[string][]string{
	InvoiceStatusCreated: {InvoiceStatusPaid, InvoiceStatusClosed},
}

func CanInvoiceTransitionTo(currentStatus, targetStatus string) bool {
	allowedStatuses, exists := ValidInvoiceTransitions[currentStatus]
	if !exists {
		return false
	}
	for _, s := range allowedStatuses {
		if s == targetStatus {
			return true
		}
	}
	return false
}

// Invoice 购买意向（发给用户的账单）
// 账单只是展示用的意向，真正的入账以 Payment 为准；过期未付的账单由定时任务关闭
type Invoice struct {
	ID        int64      `gorm:"primaryKey;autoIncrement" json:"id"`
	InvoiceNo string     `gorm:"type:varchar(64);uniqueIndex;not null" json:"invoice_no"`
	UserID    int64      `gorm:"index;not null" json:"user_id"`
	Quantity  int64      `gorm:"not null" json:"quantity"`
	Amount    int64      `gorm:"not null" json:"amount"`
	Currency  string     `gorm:"type:varchar(16);not null" json:"currency"`
	Status    string     `gorm:"type:varchar(20);index;not null" json:"status"`
	ChargeID  string     `gorm:"type:varchar(128)" json:"charge_id,omitempty"`
	ExpiredAt time.Time  `gorm:"not null" json:"expired_at"`
	PaidAt    *time.Time `json:"paid_at"`
	CreatedAt time.Time  `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Invoice) TableName() string {
	return "invoice"
}

// Open 未支付且未过期
func (i *Invoice) Open(now time.Time) bool {
	return i.Status == InvoiceStatusCreated && now.Before(i.ExpiredAt)
}
