package chatproxy

import "sync"

// Credentials 某个 openid 在下游的令牌对
type Credentials struct {
	AccessToken  string
	RefreshToken string
}

// CredentialStore openid -> 下游令牌。登录成功后才会有条目，
// 刷新后覆盖；不主动删除，随进程生命周期存在。
type CredentialStore struct {
	mu     sync.RWMutex
	tokens map[string]Credentials
}

func NewCredentialStore() *CredentialStore {
	return &CredentialStore{tokens: make(map[string]Credentials)}
}

func (s *CredentialStore) Get(openID string) (Credentials, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.tokens[openID]
	return c, ok
}

func (s *CredentialStore) Set(openID string, c Credentials) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens[openID] = c
}
