package orchestrator

import (
	"context"
	"math/big"
	"sync"

	"github.com/stretchr/testify/mock"
)

type mockQuoteProvider struct {
	mock.Mock
}

func (m *mockQuoteProvider) GetRoutes(ctx context.Context, req RouteRequest) ([]Route, error) {
	args := m.Called(ctx, req)
	if routes := args.Get(0); routes != nil {
		return routes.([]Route), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockQuoteProvider) ExecuteRoute(ctx context.Context, route Route) (string, error) {
	args := m.Called(ctx, route)
	return args.String(0), args.Error(1)
}

func (m *mockQuoteProvider) RouteStatus(ctx context.Context, route Route, txHash string) (BridgeStatus, error) {
	args := m.Called(ctx, route, txHash)
	return args.Get(0).(BridgeStatus), args.Error(1)
}

type mockNativeExecutor struct {
	mock.Mock
}

func (m *mockNativeExecutor) TipSpeaker(ctx context.Context, recipient string, amount *big.Int, message, eventID, speakerID string) (string, error) {
	args := m.Called(ctx, recipient, amount, message, eventID, speakerID)
	return args.String(0), args.Error(1)
}

type mockWallet struct {
	mock.Mock
}

func (m *mockWallet) Address(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}

// statusRecorder collects statuses delivered to a listener
type statusRecorder struct {
	mu       sync.Mutex
	statuses []TransferStatus
}

func (r *statusRecorder) listen(status TransferStatus) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statuses = append(r.statuses, status)
}

func (r *statusRecorder) kinds() []StatusKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]StatusKind, 0, len(r.statuses))
	for _, s := range r.statuses {
		out = append(out, s.Kind)
	}
	return out
}

func (r *statusRecorder) last() TransferStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.statuses[len(r.statuses)-1]
}

type recordingObserver struct {
	mu     sync.Mutex
	events map[string][]StatusKind
}

func (o *recordingObserver) OnStatus(requestID string, _ TipRequest, status TransferStatus) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.events == nil {
		o.events = make(map[string][]StatusKind)
	}
	o.events[requestID] = append(o.events[requestID], status.Kind)
}
