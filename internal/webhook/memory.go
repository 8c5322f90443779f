package webhook

import (
	"context"
	"sync"

	"github.com/Priya8975/session-gateway/internal/domain"
)

// MemoryStore is an in-memory Store for tests and database-less runs.
type MemoryStore struct {
	mu       sync.RWMutex
	webhooks map[string]domain.WebhookSubscription
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{webhooks: make(map[string]domain.WebhookSubscription)}
}

func (m *MemoryStore) InsertWebhook(ctx context.Context, w domain.WebhookSubscription) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.webhooks[w.ID] = w
	return nil
}

func (m *MemoryStore) GetWebhook(ctx context.Context, id string) (*domain.WebhookSubscription, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	w, ok := m.webhooks[id]
	if !ok {
		return nil, nil
	}
	return &w, nil
}

func (m *MemoryStore) ListWebhooks(ctx context.Context, sessionID string) ([]domain.WebhookSubscription, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []domain.WebhookSubscription{}
	for _, w := range m.webhooks {
		if w.SessionID == sessionID {
			out = append(out, w)
		}
	}
	return out, nil
}

func (m *MemoryStore) UpdateWebhook(ctx context.Context, w domain.WebhookSubscription) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.webhooks[w.ID]; !ok {
		return ErrWebhookNotFound
	}
	m.webhooks[w.ID] = w
	return nil
}

func (m *MemoryStore) DeleteWebhook(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.webhooks[id]; !ok {
		return ErrWebhookNotFound
	}
	delete(m.webhooks, id)
	return nil
}

func (m *MemoryStore) ListActiveWebhooksForEvent(ctx context.Context, sessionID, event string) ([]domain.WebhookSubscription, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []domain.WebhookSubscription{}
	for _, w := range m.webhooks {
		if w.SessionID == sessionID && w.IsActive && w.SubscribesTo(event) {
			out = append(out, w)
		}
	}
	return out, nil
}
