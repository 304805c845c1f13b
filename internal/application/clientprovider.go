package application

import (
	"context"
	"sync"

	"github.com/ericfisherdev/opscenter/internal/domain/port/driven"
)

// SecretRevealer returns an operator's plaintext control panel key.
type SecretRevealer interface {
	Reveal(ctx context.Context, ownerID string) (string, error)
}

type providedClient struct {
	secret string
	client driven.ControlPanel
}

// ControlClientProvider hands out a control panel client per operator. It
// holds a mutex-protected client per owner and swaps it when the revealed
// key changes, so a rebind takes effect on the next request without a
// restart. Entries live until Forget; each client owns its own HTTP cache, so
// callers should Forget an owner whose key is replaced.
type ControlClientProvider struct {
	vault   SecretRevealer
	factory driven.ControlPanelFactory

	mu      sync.RWMutex
	clients map[string]providedClient
}

// NewControlClientProvider creates a provider that reveals keys through vault
// and builds clients with factory.
func NewControlClientProvider(vault SecretRevealer, factory driven.ControlPanelFactory) *ControlClientProvider {
	return &ControlClientProvider{
		vault:   vault,
		factory: factory,
		clients: make(map[string]providedClient),
	}
}

// ForOperator returns the client for ownerID. Vault errors (NotBound,
// Integrity) are returned unchanged.
func (p *ControlClientProvider) ForOperator(ctx context.Context, ownerID string) (driven.ControlPanel, error) {
	secret, err := p.vault.Reveal(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	p.mu.RLock()
	cur, ok := p.clients[ownerID]
	p.mu.RUnlock()
	if ok && cur.secret == secret {
		return cur.client, nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if cur, ok := p.clients[ownerID]; ok && cur.secret == secret {
		return cur.client, nil
	}
	client := p.factory(secret)
	p.clients[ownerID] = providedClient{secret: secret, client: client}
	return client, nil
}

// Forget drops the cached client for ownerID.
func (p *ControlClientProvider) Forget(ownerID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.clients, ownerID)
}
