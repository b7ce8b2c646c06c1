package model

import (
	"time"
)

// CollectionEntry 玩家收集到的手办，(user_id, item_slug) 唯一
// 没有记录等价于数量为0；记录存在时 quantity >= 1
type CollectionEntry struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID    int64     `gorm:"not null;uniqueIndex:ux_collection_user_item,priority:1" json:"user_id"`
	ItemSlug  string    `gorm:"type:varchar(64);not null;uniqueIndex:ux_collection_user_item,priority:2" json:"item_slug"`
	Quantity  int64     `gorm:"not null;default:1" json:"quantity"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (CollectionEntry) TableName() string {
	return "collection_entry"
}
