package idgen

import (
	"fmt"
	"sync"
	"time"
)

// ============================================================================
// 雪花算法 ID 生成器
// ============================================================================
//
// 【为什么需要分布式ID？】
//
// 账单号、流水号要求：
//   1. 全局唯一 - 不能重复
//   2. 趋势递增 - 便于数据库索引
//   3. 高性能 - 支持高并发生成
//   4. 信息隐藏 - 不暴露业务量
//
// 【雪花算法结构】64位
//
//   0 - 41位时间戳 - 10位机器ID - 12位序列号
//   |   |            |            |
//   |   |            |            +-- 同一毫秒内的序列号（0-4095）
//   |   |            +-- 机器ID（0-1023）
//   |   +-- 毫秒级时间戳（可用约69年）
//   +-- 符号位，始终为0
//
// ============================================================================

const (
	epoch          = int64(1704067200000) // 起始时间戳（2024-01-01 00:00:00 UTC）
	workerIDBits   = 10                   // 机器ID位数
	sequenceBits   = 12                   // 序列号位数
	maxWorkerID    = -1 ^ (-1 << workerIDBits)
	maxSequence    = -1 ^ (-1 << sequenceBits)
	workerIDShift  = sequenceBits
	timestampShift = sequenceBits + workerIDBits
)

// Snowflake 雪花算法ID生成器
type Snowflake struct {
	mu        sync.Mutex
	timestamp int64
	workerID  int64
	sequence  int64
}

var (
	defaultGenerator *Snowflake
	once             sync.Once
)

// NewSnowflake 创建指定机器ID的生成器
func NewSnowflake(workerID int64) (*Snowflake, error) {
	if workerID < 0 || workerID > maxWorkerID {
		return nil, fmt.Errorf("workerID 必须在 0-%d 之间", maxWorkerID)
	}
	return &Snowflake{workerID: workerID}, nil
}

// Init 初始化默认ID生成器，只有第一次调用生效
func Init(workerID int64) error {
	var err error
	once.Do(func() {
		defaultGenerator, err = NewSnowflake(workerID)
	})
	return err
}

// NextID 生成下一个ID
func NextID() int64 {
	_ = Init(1) // 未初始化时默认使用 workerID = 1
	return defaultGenerator.Generate()
}

// Generate 生成ID
func (s *Snowflake) Generate() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UnixMilli()
	// 时钟回拨：沿用上一次的毫秒，靠序列号区分
	if now < s.timestamp {
		now = s.timestamp
	}

	if now == s.timestamp {
		s.sequence = (s.sequence + 1) & maxSequence
		if s.sequence == 0 {
			// 序列号用完，等待下一毫秒
			for now <= s.timestamp {
				now = time.Now().UnixMilli()
			}
		}
	} else {
		s.sequence = 0
	}

	s.timestamp = now

	return ((now - epoch) << timestampShift) |
		(s.workerID << workerIDShift) |
		s.sequence
}

// GenerateInvoiceNo 生成账单号
// 格式：INV + 年月日时分秒 + 完整雪花ID
// 例如：INV20240115143052_0000123456789012345
//
// 使用完整ID而不是截取后几位：同一秒内的高并发开蛋会产生大量流水，
// 截断后有撞号的可能，而流水号上有唯一索引。
func GenerateInvoiceNo() string {
	return generate("INV")
}

// GenerateTransactionNo 生成流水号
func GenerateTransactionNo() string {
	return generate("TXN")
}

func generate(prefix string) string {
	id := NextID()
	timestamp := time.Now().Format("20060102150405")
	return fmt.Sprintf("%s%s_%019d", prefix, timestamp, id)
}
