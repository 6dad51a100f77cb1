// Package history journals tip progress into the local database.
package history

import (
	"errors"
	"sync"

	"github.com/rs/zerolog"

	"github.com/megavibe/megavibe-node/tipClient/db"
	"github.com/megavibe/megavibe-node/tipClient/orchestrator"
	"github.com/megavibe/megavibe-node/tipClient/store"
)

const queueSize = 1024

type entry struct {
	requestID string
	req       orchestrator.TipRequest
	status    orchestrator.TransferStatus
}

// Recorder is an orchestrator observer that persists every status. Writes
// happen on a single worker so statuses of a request keep their order.
type Recorder struct {
	database *db.DB
	queue    chan entry
	logger   zerolog.Logger

	mu      sync.RWMutex
	started bool
	closed  bool
	done    chan struct{}
}

// NewRecorder creates a recorder; call Start before tips run
func NewRecorder(database *db.DB, logger zerolog.Logger) *Recorder {
	return &Recorder{
		database: database,
		queue:    make(chan entry, queueSize),
		logger:   logger.With().Str("component", "tip_history").Logger(),
		done:     make(chan struct{}),
	}
}

// OnStatus enqueues a status. It never blocks the tip flow; statuses are
// dropped with a warning if the queue is full.
func (r *Recorder) OnStatus(requestID string, req orchestrator.TipRequest, status orchestrator.TransferStatus) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return
	}
	select {
	case r.queue <- entry{requestID: requestID, req: req, status: status}:
	default:
		r.logger.Warn().Str("request_id", requestID).Str("status", string(status.Kind)).Msg("history queue full, dropping status")
	}
}

// Start runs the writer. It keeps writing until Stop, so statuses of tips
// that finish during shutdown are still journaled.
func (r *Recorder) Start() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.started || r.closed {
		return
	}
	r.started = true
	go r.run()
}

// Stop writes the statuses still queued and stops the writer
func (r *Recorder) Stop() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	close(r.queue)
	started := r.started
	r.mu.Unlock()

	if started {
		<-r.done
	}
}

func (r *Recorder) run() {
	defer close(r.done)
	for e := range r.queue {
		r.write(e)
	}
}

func (r *Recorder) write(e entry) {
	// the first status of a request creates its row
	if e.status.Kind == orchestrator.StatusPending {
		if _, _, err := r.database.GetTip(e.requestID); errors.Is(err, db.ErrTipNotFound) {
			tip := &store.Tip{
				RequestID:     e.requestID,
				SourceChainID: e.req.SourceChainID,
				TargetChainID: e.req.TargetChainID,
				Path:          string(e.req.PathFor()),
				Recipient:     e.req.RecipientAddress,
				AmountUSD:     e.req.AmountUSD.String(),
				Message:       e.req.Message,
				EventID:       e.req.EventID,
				SpeakerID:     e.req.SpeakerID,
				Status:        string(orchestrator.StatusPending),
			}
			if err := r.database.CreateTip(tip); err != nil {
				r.logger.Error().Err(err).Str("request_id", e.requestID).Msg("failed to journal tip")
				return
			}
		}
	}

	err := r.database.ApplyStatus(db.StatusUpdate{
		RequestID:      e.requestID,
		Status:         string(e.status.Kind),
		TxHash:         e.status.TxHash,
		RouteReference: e.status.RouteReference,
		Message:        e.status.Message,
		ErrorMsg:       e.status.ErrorDetail(),
		Terminal:       e.status.Kind.IsTerminal(),
		EmittedAt:      e.status.Timestamp,
	})
	if err != nil {
		r.logger.Error().Err(err).Str("request_id", e.requestID).Msg("failed to journal status")
	}
}
