package core

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// MemoryCredentialStore keeps one credential per tenant id.
type MemoryCredentialStore struct {
	mu       sync.RWMutex
	sessions map[string]Credential
}

func NewMemoryCredentialStore() *MemoryCredentialStore {
	return &MemoryCredentialStore{sessions: make(map[string]Credential)}
}

func (s *MemoryCredentialStore) GetAccessToken(_ context.Context, tenantID string) (Credential, bool, error) {
	if s == nil {
		return Credential{}, false, fmt.Errorf("core: credential store is not configured")
	}
	tenantID = strings.TrimSpace(tenantID)
	if tenantID == "" {
		return Credential{}, false, badInput("core: tenant id is required", nil)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	credential, ok := s.sessions[tenantID]
	if !ok {
		return Credential{}, false, nil
	}
	return credential.Clone(), true, nil
}

func (s *MemoryCredentialStore) SetSession(_ context.Context, tenantID string, credential Credential) error {
	if s == nil {
		return fmt.Errorf("core: credential store is not configured")
	}
	tenantID = strings.TrimSpace(tenantID)
	if tenantID == "" {
		return badInput("core: tenant id is required", nil)
	}
	stored := credential.Clone()
	stored.TenantID = tenantID
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[tenantID] = stored
	return nil
}

func (s *MemoryCredentialStore) DeleteSession(_ context.Context, tenantID string) error {
	if s == nil {
		return fmt.Errorf("core: credential store is not configured")
	}
	tenantID = strings.TrimSpace(tenantID)
	if tenantID == "" {
		return badInput("core: tenant id is required", nil)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, tenantID)
	return nil
}

func (s *MemoryCredentialStore) Len() int {
	if s == nil {
		return 0
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

var _ CredentialStore = (*MemoryCredentialStore)(nil)
