package db

import (
	"time"

	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/megavibe/megavibe-node/tipClient/store"
)

// ErrTipNotFound is returned when no tip matches a request id
var ErrTipNotFound = errors.New("tip not found")

// terminalStatuses are never updated again
var terminalStatuses = []string{"completed", "failed"}

// StatusUpdate is one status to apply to a tip
type StatusUpdate struct {
	RequestID      string
	Status         string
	TxHash         string
	RouteReference string
	Message        string
	ErrorMsg       string
	Terminal       bool
	EmittedAt      time.Time
}

// CreateTip inserts a new tip row
func (d *DB) CreateTip(tip *store.Tip) error {
	if err := d.client.Create(tip).Error; err != nil {
		return errors.Wrapf(err, "failed to create tip %s", tip.RequestID)
	}
	return nil
}

// ApplyStatus records a status event and moves the tip row forward in one
// transaction. Hashes and references already recorded are kept when the
// update carries none.
func (d *DB) ApplyStatus(u StatusUpdate) error {
	return d.client.Transaction(func(tx *gorm.DB) error {
		event := store.TipStatus{
			RequestID:      u.RequestID,
			Status:         u.Status,
			TxHash:         u.TxHash,
			RouteReference: u.RouteReference,
			Message:        u.Message,
			EmittedAt:      u.EmittedAt,
		}
		if err := tx.Create(&event).Error; err != nil {
			return errors.Wrap(err, "failed to insert status event")
		}

		updates := map[string]interface{}{"status": u.Status}
		if u.TxHash != "" {
			updates["tx_hash"] = u.TxHash
		}
		if u.RouteReference != "" {
			updates["route_reference"] = u.RouteReference
		}
		if u.ErrorMsg != "" {
			updates["error_msg"] = u.ErrorMsg
		}
		if u.Terminal {
			at := u.EmittedAt
			updates["completed_at"] = &at
		}

		res := tx.Model(&store.Tip{}).
			Where("request_id = ?", u.RequestID).
			Where("status NOT IN ?", terminalStatuses).
			Updates(updates)
		if res.Error != nil {
			return errors.Wrapf(res.Error, "failed to update tip %s", u.RequestID)
		}
		return nil
	})
}

// GetTip returns a tip and its status history, oldest first
func (d *DB) GetTip(requestID string) (*store.Tip, []store.TipStatus, error) {
	var tip store.Tip
	err := d.client.Where("request_id = ?", requestID).First(&tip).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil, ErrTipNotFound
	}
	if err != nil {
		return nil, nil, errors.Wrapf(err, "failed to load tip %s", requestID)
	}

	var history []store.TipStatus
	if err := d.client.Where("request_id = ?", requestID).Order("id ASC").Find(&history).Error; err != nil {
		return nil, nil, errors.Wrapf(err, "failed to load history of tip %s", requestID)
	}
	return &tip, history, nil
}

// TipFilter narrows ListTips
type TipFilter struct {
	Status  string
	EventID string
	Limit   int
}

// ListTips returns the newest tips first
func (d *DB) ListTips(filter TipFilter) ([]store.Tip, error) {
	limit := filter.Limit
	if limit <= 0 || limit > 500 {
		limit = 50
	}

	q := d.client.Model(&store.Tip{}).Order("id DESC").Limit(limit)
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}
	if filter.EventID != "" {
		q = q.Where("event_id = ?", filter.EventID)
	}

	var tips []store.Tip
	if err := q.Find(&tips).Error; err != nil {
		return nil, errors.Wrap(err, "failed to list tips")
	}
	return tips, nil
}

// DeleteOldTerminalTips removes finished tips, and their history, older
// than the retention period. Tips still in flight are never removed.
func (d *DB) DeleteOldTerminalTips(retention time.Duration) (int64, error) {
	cutoff := time.Now().Add(-retention)
	var deleted int64

	err := d.client.Transaction(func(tx *gorm.DB) error {
		var ids []string
		if err := tx.Model(&store.Tip{}).
			Where("status IN ?", terminalStatuses).
			Where("updated_at < ?", cutoff).
			Pluck("request_id", &ids).Error; err != nil {
			return errors.Wrap(err, "failed to select old tips")
		}
		if len(ids) == 0 {
			return nil
		}

		if err := tx.Unscoped().Where("request_id IN ?", ids).Delete(&store.TipStatus{}).Error; err != nil {
			return errors.Wrap(err, "failed to delete tip history")
		}
		res := tx.Unscoped().Where("request_id IN ?", ids).Delete(&store.Tip{})
		if res.Error != nil {
			return errors.Wrap(res.Error, "failed to delete tips")
		}
		deleted = res.RowsAffected
		return nil
	})
	return deleted, err
}
