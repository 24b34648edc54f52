package portfolio

import (
	"sync"
	"time"
)

// Snapshot 某视图最近一次完成的轮询结果。
// Err 非空表示最近一次轮询失败，此时 Records 仍是上一次成功的数据。
type Snapshot struct {
	Records   []OrderRecord
	Err       error
	Seq       uint64
	UpdatedAt time.Time
}

// Store 按视图保存订单快照。
// 覆盖语义以"完成顺序"为准：先完成的先写入，后完成的覆盖，
// 与发起顺序无关（调用方在结果到达时调用 ApplyResult，由锁串行化）。
type Store struct {
	mu       sync.RWMutex
	views    map[ViewID]Snapshot
	seq      uint64
	onChange func(ViewID)
}

func NewStore() *Store {
	return &Store{views: make(map[ViewID]Snapshot)}
}

// SetOnChange 注册视图变更回调（对账器挂在这里）。
// 回调在锁外执行。
func (s *Store) SetOnChange(fn func(ViewID)) {
	s.mu.Lock()
	s.onChange = fn
	s.mu.Unlock()
}

// ApplyResult 写入一次轮询结果。
// 成功：整体替换记录集并清除错误标记。
// 失败：保留上一份记录，仅记下错误（不清空，不中断调度）。
func (s *Store) ApplyResult(view ViewID, records []OrderRecord, err error) {
	s.mu.Lock()
	s.seq++
	snap := s.views[view]
	snap.Seq = s.seq
	snap.UpdatedAt = time.Now().UTC()
	if err != nil {
		snap.Err = err
	} else {
		snap.Records = records
		snap.Err = nil
	}
	s.views[view] = snap
	fn := s.onChange
	s.mu.Unlock()

	if fn != nil {
		fn(view)
	}
}

// Snapshot 返回视图当前快照（记录切片为拷贝）。
func (s *Store) Snapshot(view ViewID) Snapshot {
	s.mu.RLock()
	snap := s.views[view]
	s.mu.RUnlock()
	records := make([]OrderRecord, len(snap.Records))
	copy(records, snap.Records)
	snap.Records = records
	return snap
}

// ViewTokens 视图当前记录引用的 token 集。
func (s *Store) ViewTokens(view ViewID) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Tokens(s.views[view].Records)
}

// AllTokens 所有视图引用的 token 并集（订阅集的依据之一）。
func (s *Store) AllTokens() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	seen := make(map[string]bool)
	out := make([]string, 0)
	for _, snap := range s.views {
		for _, r := range snap.Records {
			if r.Token == "" || seen[r.Token] {
				continue
			}
			seen[r.Token] = true
			out = append(out, r.Token)
		}
	}
	return out
}
