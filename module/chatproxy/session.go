package chatproxy

import "sync"

// NilMessageID 新会话的父消息占位 id，下游用全零 UUID 表示“无父消息”。
const NilMessageID = "00000000-0000-0000-0000-000000000000"

// FileRef 已上传、待随下一条消息带上的附件
type FileRef struct {
	FileID   string `json:"file_id"`
	Filepath string `json:"filepath"`
	Height   int    `json:"height"`
	Width    int    `json:"width"`
	Type     string `json:"type"`
}

// ConversationState 每个 openid 在下游的会话游标。
// 只存内存，进程重启即清零（已知限制）；除用户主动“结束对话”外不过期。
type ConversationState struct {
	ConversationID     string
	LastMessageID      string
	LastGenerationText string
	PendingFiles       []FileRef
}

func defaultState() ConversationState {
	return ConversationState{LastMessageID: NilMessageID}
}

// SessionStore openid -> ConversationState。Get 永不失败，缺省返回新会话状态。
// 同一用户的写入顺序由 dispatcher 的单用户队列保证，这里只做并发安全。
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]ConversationState
}

func NewSessionStore() *SessionStore {
	return &SessionStore{sessions: make(map[string]ConversationState)}
}

func (s *SessionStore) Get(openID string) ConversationState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if st, ok := s.sessions[openID]; ok {
		return st
	}
	return defaultState()
}

// Update 读改写一条会话状态，条目不存在时从缺省状态起步。
func (s *SessionStore) Update(openID string, mutate func(*ConversationState)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.sessions[openID]
	if !ok {
		st = defaultState()
	}
	mutate(&st)
	s.sessions[openID] = st
}

func (s *SessionStore) Delete(openID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, openID)
}
