// Package tracker 持有被监控资源集合（url -> 最近快照），
// 供轮询循环和命令处理并发访问。
//
// 所有读写都在同一把锁内完成；网络请求永远在锁外进行。
// 每次变更都先同步写入 snapshot.Repository，写失败则回滚内存状态并返回错误，
// 保证内存与磁盘不会悄悄分叉。
package tracker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"DocWatch/fetcher"
	"DocWatch/snapshot"
)

var (
	ErrAlreadyTracked = errors.New("already tracked")
	ErrNotTracked     = errors.New("not tracked")
	ErrFetchFailed    = errors.New("fetch failed")
	ErrPersist        = errors.New("persist failed")
)

// Tracker 保存 url 到最近一次成功抓取文本的映射。
type Tracker struct {
	repo    snapshot.Repository
	fetcher fetcher.Fetcher
	logger  *slog.Logger

	mu        sync.Mutex
	resources map[string]string
}

// New 从仓库加载已有快照。加载失败（数据损坏）直接返回错误，由调用方决定退出。
func New(repo snapshot.Repository, f fetcher.Fetcher, logger *slog.Logger) (*Tracker, error) {
	if repo == nil || f == nil {
		return nil, errors.New("tracker: repository and fetcher are required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	loaded, err := repo.Load()
	if err != nil {
		return nil, fmt.Errorf("加载快照失败: %w", err)
	}
	if loaded == nil {
		loaded = map[string]string{}
	}
	return &Tracker{
		repo:      repo,
		fetcher:   f,
		logger:    logger.With("component", "tracker"),
		resources: loaded,
	}, nil
}

// Add 抓取一次内容后加入监控。抓取失败的资源不会被加入。
func (t *Tracker) Add(ctx context.Context, id string) error {
	t.mu.Lock()
	_, exists := t.resources[id]
	t.mu.Unlock()
	if exists {
		return ErrAlreadyTracked
	}

	content, ok := t.fetcher.Fetch(ctx, id)
	if !ok {
		return ErrFetchFailed
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	// 抓取期间可能有并发的 add 抢先完成
	if _, exists := t.resources[id]; exists {
		return ErrAlreadyTracked
	}
	t.resources[id] = content
	if err := t.persistLocked(); err != nil {
		delete(t.resources, id)
		return err
	}
	t.logger.Info("resource added", "url", id, "bytes", len(content))
	return nil
}

func (t *Tracker) Remove(id string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	prev, exists := t.resources[id]
	if !exists {
		return ErrNotTracked
	}
	delete(t.resources, id)
	if err := t.persistLocked(); err != nil {
		t.resources[id] = prev
		return err
	}
	t.logger.Info("resource removed", "url", id)
	return nil
}

// List 返回当前时刻全部被监控的 id，按字典序排列。
func (t *Tracker) List() []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	ids := make([]string, 0, len(t.resources))
	for id := range t.resources {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (t *Tracker) Content(id string) (string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	c, ok := t.resources[id]
	return c, ok
}

func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.resources)
}

// UpdateIfChanged 仅供轮询使用。id 已被并发移除或内容未变时不做任何事；
// 否则替换并持久化，返回被替换掉的旧内容。
func (t *Tracker) UpdateIfChanged(id, newContent string) (string, bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	old, exists := t.resources[id]
	if !exists || old == newContent {
		return old, false, nil
	}
	t.resources[id] = newContent
	if err := t.persistLocked(); err != nil {
		t.resources[id] = old
		return old, false, err
	}
	return old, true, nil
}

// Close 在退出前把当前状态再完整写一次。
func (t *Tracker) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.persistLocked()
}

func (t *Tracker) persistLocked() error {
	cp := make(map[string]string, len(t.resources))
	for k, v := range t.resources {
		cp[k] = v
	}
	if err := t.repo.SaveAll(cp); err != nil {
		t.logger.Error("persist failed, mutation rolled back", "error", err)
		return fmt.Errorf("%w: %v", ErrPersist, err)
	}
	return nil
}
