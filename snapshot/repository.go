package snapshot

import (
	"errors"
	"fmt"
)

// ErrCorrupt 表示持久化文件存在但无法解析，启动时应视为致命错误。
var ErrCorrupt = errors.New("snapshot store corrupt")

// Repository 统一管理 url -> 最近一次文本快照 的持久化。
type Repository interface {
	// Load 读取全部快照；没有历史状态时返回空 map 而不是错误。
	Load() (map[string]string, error)
	// SaveAll 全量覆盖写入，要求写入过程中不会留下半截可读状态。
	SaveAll(snapshots map[string]string) error
}

// Open 按 driver 创建对应的仓库实现。
func Open(driver, path string) (Repository, error) {
	switch driver {
	case "", "json":
		return NewFileRepository(path), nil
	case "sqlite":
		return NewSQLiteRepository(path)
	default:
		return nil, fmt.Errorf("不支持的存储类型: %s", driver)
	}
}
