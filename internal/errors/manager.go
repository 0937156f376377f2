// Package errors keeps a journal of editor failures so that the UI can list them
// and pages that failed to render can be retried.
package errors

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"
)

// ErrorStage 错误阶段枚举
type ErrorStage string

const (
	StageLoad     ErrorStage = "load"     // 文档加载
	StageRender   ErrorStage = "render"   // 页面渲染
	StageMutate   ErrorStage = "mutate"   // 结构修改（删除、旋转、合并、写入）
	StageValidate ErrorStage = "validate" // 参数校验
	StageHistory  ErrorStage = "history"  // 撤销/重做
	StageSave     ErrorStage = "save"     // 保存到磁盘
)

// DefaultMaxRecords bounds the journal; the oldest record is dropped first.
const DefaultMaxRecords = 200

// ErrorRecord 错误记录
type ErrorRecord struct {
	ID        string     `json:"id"`             // stage 加页码，同一位置的重复错误合并
	Document  string     `json:"document"`       // 文档名称
	Stage     ErrorStage `json:"stage"`          // 出错阶段
	Page      int        `json:"page,omitempty"` // 相关页码，0 表示整个文档
	Code      string     `json:"code"`           // types.ErrorCode
	ErrorMsg  string     `json:"error_msg"`      // 错误信息
	Timestamp time.Time  `json:"timestamp"`      // 最近一次发生时间
	Count     int        `json:"count"`          // 发生次数
}

// ErrorManager 错误管理器
type ErrorManager struct {
	baseDir    string // 为空时只保存在内存中
	maxRecords int
	mu         sync.RWMutex
	errors     map[string]*ErrorRecord // key: ID
}

// RecordID builds the journal key for a stage and page.
func RecordID(stage ErrorStage, page int) string {
	if page <= 0 {
		return string(stage)
	}
	return fmt.Sprintf("%s:%d", stage, page)
}

// NewErrorManager 创建持久化到 baseDir/errors.json 的错误管理器
func NewErrorManager(baseDir string) (*ErrorManager, error) {
	if baseDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		baseDir = filepath.Join(homeDir, ".pdf-editor", "errors")
	}

	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create errors directory: %w", err)
	}

	em := &ErrorManager{
		baseDir:    baseDir,
		maxRecords: DefaultMaxRecords,
		errors:     make(map[string]*ErrorRecord),
	}

	if err := em.load(); err != nil {
		return nil, err
	}

	return em, nil
}

// NewMemoryErrorManager 创建不落盘的错误管理器
func NewMemoryErrorManager() *ErrorManager {
	return &ErrorManager{
		maxRecords: DefaultMaxRecords,
		errors:     make(map[string]*ErrorRecord),
	}
}

// RecordError 记录错误，同一 ID 的记录累加次数
func (em *ErrorManager) RecordError(document string, stage ErrorStage, page int, code, errorMsg string) error {
	em.mu.Lock()
	defer em.mu.Unlock()

	id := RecordID(stage, page)
	record := &ErrorRecord{
		ID:        id,
		Document:  document,
		Stage:     stage,
		Page:      page,
		Code:      code,
		ErrorMsg:  errorMsg,
		Timestamp: time.Now(),
		Count:     1,
	}
	if existing, ok := em.errors[id]; ok {
		record.Count = existing.Count + 1
	}
	em.errors[id] = record
	em.evict()

	return em.save()
}

// evict drops the oldest records past maxRecords. Caller holds mu.
func (em *ErrorManager) evict() {
	if em.maxRecords <= 0 || len(em.errors) <= em.maxRecords {
		return
	}
	for _, r := range em.sorted()[em.maxRecords:] {
		delete(em.errors, r.ID)
	}
}

// sorted returns records newest first. Caller holds mu.
func (em *ErrorManager) sorted() []*ErrorRecord {
	records := make([]*ErrorRecord, 0, len(em.errors))
	for _, record := range em.errors {
		records = append(records, record)
	}
	sort.Slice(records, func(i, j int) bool {
		if records[i].Timestamp.Equal(records[j].Timestamp) {
			return records[i].ID < records[j].ID
		}
		return records[i].Timestamp.After(records[j].Timestamp)
	})
	return records
}

// RemoveError 移除错误记录（例如页面重新渲染成功后）
func (em *ErrorManager) RemoveError(id string) error {
	em.mu.Lock()
	defer em.mu.Unlock()

	if _, ok := em.errors[id]; !ok {
		return nil
	}
	delete(em.errors, id)
	return em.save()
}

// ListErrors 列出所有错误记录，最新的在前
func (em *ErrorManager) ListErrors() []*ErrorRecord {
	em.mu.RLock()
	defer em.mu.RUnlock()

	sorted := em.sorted()
	records := make([]*ErrorRecord, 0, len(sorted))
	for _, record := range sorted {
		// 创建副本以避免并发修改
		recordCopy := *record
		records = append(records, &recordCopy)
	}
	return records
}

// ListByStage 列出指定阶段的错误记录
func (em *ErrorManager) ListByStage(stage ErrorStage) []*ErrorRecord {
	var out []*ErrorRecord
	for _, r := range em.ListErrors() {
		if r.Stage == stage {
			out = append(out, r)
		}
	}
	return out
}

// GetError 获取特定错误记录
func (em *ErrorManager) GetError(id string) (*ErrorRecord, bool) {
	em.mu.RLock()
	defer em.mu.RUnlock()

	record, ok := em.errors[id]
	if !ok {
		return nil, false
	}

	recordCopy := *record
	return &recordCopy, true
}

// ClearAll 清除所有错误记录
func (em *ErrorManager) ClearAll() error {
	em.mu.Lock()
	defer em.mu.Unlock()

	em.errors = make(map[string]*ErrorRecord)
	return em.save()
}

// load 从文件加载错误记录
func (em *ErrorManager) load() error {
	if em.baseDir == "" {
		return nil
	}
	filePath := filepath.Join(em.baseDir, "errors.json")

	data, err := os.ReadFile(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read errors file: %w", err)
	}

	var records []*ErrorRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return fmt.Errorf("failed to unmarshal errors: %w", err)
	}

	for _, record := range records {
		em.errors[record.ID] = record
	}
	em.evict()

	return nil
}

// save 保存错误记录到文件
func (em *ErrorManager) save() error {
	if em.baseDir == "" {
		return nil
	}

	data, err := json.MarshalIndent(em.sorted(), "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal errors: %w", err)
	}

	filePath := filepath.Join(em.baseDir, "errors.json")
	if err := os.WriteFile(filePath, data, 0644); err != nil {
		return fmt.Errorf("failed to write errors file: %w", err)
	}

	return nil
}

// GetStageDisplayName 获取阶段的显示名称
func GetStageDisplayName(stage ErrorStage) string {
	switch stage {
	case StageLoad:
		return "文档加载"
	case StageRender:
		return "页面渲染"
	case StageMutate:
		return "页面修改"
	case StageValidate:
		return "参数校验"
	case StageHistory:
		return "撤销/重做"
	case StageSave:
		return "保存"
	default:
		return string(stage)
	}
}
