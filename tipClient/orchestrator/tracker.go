package orchestrator

import (
	"context"
	"sync"
)

// Tracker follows a tip started with Start
type Tracker struct {
	requestID string
	o         *Orchestrator

	mu      sync.Mutex
	updates chan TransferStatus
	closed  bool

	done   chan struct{}
	result *TransferResult
}

// RequestID returns the id assigned to the tip
func (t *Tracker) RequestID() string {
	return t.requestID
}

// Updates streams statuses in emission order. The channel is closed after
// the terminal status or on Unsubscribe.
func (t *Tracker) Updates() <-chan TransferStatus {
	return t.updates
}

// Done is closed once the flow has finished
func (t *Tracker) Done() <-chan struct{} {
	return t.done
}

// Result blocks until the flow finishes or ctx is done
func (t *Tracker) Result(ctx context.Context) (*TransferResult, error) {
	select {
	case <-t.done:
		return t.result, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Unsubscribe stops status delivery. The flow itself keeps running. Safe to
// call more than once.
func (t *Tracker) Unsubscribe() {
	t.o.listeners.remove(t.requestID)
	t.closeUpdates()
}

func (t *Tracker) deliver(status TransferStatus) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return
	}
	select {
	case t.updates <- status:
	default:
		t.o.logger.Warn().Str("request_id", t.requestID).Str("status", string(status.Kind)).Msg("tracker buffer full, dropping status")
	}
	if status.Kind.IsTerminal() {
		t.closed = true
		close(t.updates)
	}
}

func (t *Tracker) closeUpdates() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.closed {
		t.closed = true
		close(t.updates)
	}
}

// Start validates the request and runs the tip in the background. Validation
// failures are returned before anything starts.
func (o *Orchestrator) Start(ctx context.Context, req TipRequest) (*Tracker, error) {
	p, err := o.prepare(ctx, req)
	if err != nil {
		return nil, err
	}

	// pending, bridging, the first confirming, one per poll, and the terminal
	capacity := o.cfg.Settlement.MaxAttempts + 4
	t := &Tracker{
		requestID: p.id,
		o:         o,
		updates:   make(chan TransferStatus, capacity),
		done:      make(chan struct{}),
	}
	o.listeners.register(p.id, t.deliver)

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		defer close(t.done)
		t.result = o.run(context.WithoutCancel(ctx), p)
		t.closeUpdates()
	}()
	return t, nil
}

// Submit starts a tip without following its statuses and returns its id.
// Progress is still reported to observers.
func (o *Orchestrator) Submit(ctx context.Context, req TipRequest) (string, error) {
	t, err := o.Start(ctx, req)
	if err != nil {
		return "", err
	}
	t.Unsubscribe()
	return t.RequestID(), nil
}
