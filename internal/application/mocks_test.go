package application_test

import (
	"context"
	"sync"
	"time"

	"github.com/ericfisherdev/opscenter/internal/domain/model"
)

// --- CredentialStore ---

type mockCredentialStore struct {
	mu      sync.Mutex
	records map[string]model.CredentialRecord
	gets    int
	putErr  error

	// beforeGet, when set, runs at the start of Get without the lock held.
	beforeGet func()
}

func newMockCredentialStore() *mockCredentialStore {
	return &mockCredentialStore{records: make(map[string]model.CredentialRecord)}
}

func (m *mockCredentialStore) Put(_ context.Context, record model.CredentialRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.putErr != nil {
		return m.putErr
	}
	record.UpdatedAt = time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	m.records[record.OwnerID] = cloneRecord(record)
	return nil
}

func (m *mockCredentialStore) Get(_ context.Context, ownerID string) (*model.CredentialRecord, error) {
	m.mu.Lock()
	hook := m.beforeGet
	record, ok := m.records[ownerID]
	m.mu.Unlock()
	if hook != nil {
		hook()
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.gets++
	if !ok || !record.Complete() {
		return nil, nil
	}
	out := cloneRecord(record)
	return &out, nil
}

func (m *mockCredentialStore) getCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.gets
}

// mutate edits the stored record in place.
func (m *mockCredentialStore) mutate(ownerID string, fn func(*model.CredentialRecord)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	record := m.records[ownerID]
	fn(&record)
	m.records[ownerID] = record
}

func cloneRecord(r model.CredentialRecord) model.CredentialRecord {
	r.Ciphertext = append([]byte(nil), r.Ciphertext...)
	r.Nonce = append([]byte(nil), r.Nonce...)
	r.AuthTag = append([]byte(nil), r.AuthTag...)
	return r
}

// --- MaintenanceStore ---

type transitionCall struct {
	To       model.Mode
	Operator string
}

type mockMaintenanceStore struct {
	mu            sync.Mutex
	state         model.MaintenanceState
	calls         []transitionCall
	failOperator  string
	transitionErr error
}

func newMockMaintenanceStore(mode model.Mode) *mockMaintenanceStore {
	return &mockMaintenanceStore{state: model.MaintenanceState{Mode: mode}}
}

func (m *mockMaintenanceStore) Get(_ context.Context) (model.MaintenanceState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state, nil
}

func (m *mockMaintenanceStore) Transition(_ context.Context, to model.Mode, operator string) (model.TransitionResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, transitionCall{To: to, Operator: operator})

	if m.transitionErr != nil && operator == m.failOperator {
		return model.TransitionResult{}, m.transitionErr
	}

	from := m.state.Mode
	if from == to {
		return model.TransitionResult{OK: false, From: from, To: to, Reason: model.AlreadyReason(to)}, nil
	}
	m.state = model.MaintenanceState{Mode: to, Operator: operator, UpdatedAt: time.Now()}
	return model.TransitionResult{OK: true, From: from, To: to}, nil
}

func (m *mockMaintenanceStore) transitions() []transitionCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]transitionCall(nil), m.calls...)
}

// --- ControlPanel ---

type mockControlPanel struct {
	mu           sync.Mutex
	commands     []string
	signals      []model.PowerSignal
	failCommand  string
	commandErr   error
	resources    model.ServerResources
	resourcesErr error
	account      model.Account
	accountErr   error
}

func (m *mockControlPanel) GetResources(_ context.Context, _ string) (model.ServerResources, error) {
	return m.resources, m.resourcesErr
}

func (m *mockControlPanel) SendCommand(_ context.Context, _ string, command string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.commands = append(m.commands, command)
	if m.commandErr != nil && command == m.failCommand {
		return m.commandErr
	}
	return nil
}

func (m *mockControlPanel) SetPower(_ context.Context, _ string, signal model.PowerSignal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.signals = append(m.signals, signal)
	return nil
}

func (m *mockControlPanel) VerifyAccount(_ context.Context) (model.Account, error) {
	return m.account, m.accountErr
}

func (m *mockControlPanel) sentCommands() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.commands...)
}

// --- PlayerProbe ---

type mockProbe struct {
	probe func(ctx context.Context) (model.PlayerCount, error)
}

func (m *mockProbe) Probe(ctx context.Context) (model.PlayerCount, error) {
	return m.probe(ctx)
}
