package checkout

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// DevProvider is an in-memory payment gateway for local runs and tests. An
// intent created through it starts as requires_action and flips to succeeded
// when the "client" confirms; saved-method charges capture synchronously.
type DevProvider struct {
	mu      sync.Mutex
	intents map[string]PaymentStatus
}

func NewDevProvider() *DevProvider {
	return &DevProvider{intents: make(map[string]PaymentStatus)}
}

func (p *DevProvider) CreateIntent(_ context.Context, amountCents int, _ string) (string, string, error) {
	if amountCents <= 0 {
		return "", "", fmt.Errorf("amount must be positive, got %d", amountCents)
	}
	id := "pi_dev_" + uuid.NewString()
	p.mu.Lock()
	p.intents[id] = StatusRequiresAction
	p.mu.Unlock()
	return id, id + "_secret", nil
}

func (p *DevProvider) RetrieveIntent(_ context.Context, intentID string) (PaymentStatus, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	st, ok := p.intents[intentID]
	if !ok {
		return "", fmt.Errorf("unknown intent %s", intentID)
	}
	return st, nil
}

func (p *DevProvider) ChargeSavedMethod(_ context.Context, amountCents int, _, methodID string) (string, PaymentStatus, error) {
	if amountCents <= 0 {
		return "", "", fmt.Errorf("amount must be positive, got %d", amountCents)
	}
	if methodID == "" {
		return "", StatusFailed, fmt.Errorf("method id required")
	}
	id := "pi_dev_" + uuid.NewString()
	p.mu.Lock()
	p.intents[id] = StatusSucceeded
	p.mu.Unlock()
	return id, StatusSucceeded, nil
}

// Confirm simulates the buyer-side confirmation step.
func (p *DevProvider) Confirm(intentID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.intents[intentID]; ok {
		p.intents[intentID] = StatusSucceeded
	}
}
