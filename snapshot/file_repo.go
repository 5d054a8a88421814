package snapshot

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// FileRepository 基于单个 JSON 文件的快照仓库实现。
type FileRepository struct {
	target string
}

func NewFileRepository(path string) *FileRepository {
	return &FileRepository{target: path}
}

func (r *FileRepository) Path() string { return r.target }

// Load 读取 JSON 文件：{"url": "content", ...}
func (r *FileRepository) Load() (map[string]string, error) {
	b, err := os.ReadFile(r.target)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("读取快照文件失败: %w", err)
	}

	out := map[string]string{}
	if len(b) == 0 {
		return nil, fmt.Errorf("%w: %s 为空文件", ErrCorrupt, r.target)
	}
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, fmt.Errorf("%w: 解析 %s 失败: %v", ErrCorrupt, r.target, err)
	}
	if out == nil {
		out = map[string]string{}
	}
	return out, nil
}

// SaveAll 先写同目录临时文件并 fsync，再 rename 覆盖目标文件。
func (r *FileRepository) SaveAll(snapshots map[string]string) error {
	if snapshots == nil {
		snapshots = map[string]string{}
	}
	dir := filepath.Dir(r.target)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(r.target)+".*.tmp")
	if err != nil {
		return fmt.Errorf("创建临时快照文件失败: %w", err)
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			tmp.Close()
			os.Remove(tmpName)
		}
	}()

	writer := bufio.NewWriter(tmp)
	enc := json.NewEncoder(writer)
	enc.SetIndent("", "  ")
	if err := enc.Encode(snapshots); err != nil {
		return fmt.Errorf("写入快照失败: %w", err)
	}
	if err := writer.Flush(); err != nil {
		return fmt.Errorf("刷新快照文件失败: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("同步快照文件失败: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("关闭快照文件失败: %w", err)
	}
	if err := os.Rename(tmpName, r.target); err != nil {
		os.Remove(tmpName)
		committed = true
		return fmt.Errorf("替换快照文件失败: %w", err)
	}
	committed = true
	return nil
}
