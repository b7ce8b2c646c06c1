package repository

import (
	"gorm.io/gorm"
)

// conn 优先使用调用方传入的事务
func conn(db, tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return db
}

func pageOffset(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 10
	}
	return (page - 1) * pageSize, pageSize
}
