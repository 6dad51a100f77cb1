package db

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/megavibe/megavibe-node/tipClient/config"
)

// JournalCleaner periodically removes finished tips past their retention
type JournalCleaner struct {
	database        *DB
	logger          zerolog.Logger
	stopCh          chan struct{}
	stopOnce        sync.Once
	cleanupInterval time.Duration
	retentionPeriod time.Duration
}

// NewJournalCleaner creates a new journal cleaner
func NewJournalCleaner(database *DB, cfg config.HistoryConfig, logger zerolog.Logger) *JournalCleaner {
	return &JournalCleaner{
		database:        database,
		cleanupInterval: time.Duration(cfg.CleanupIntervalSeconds) * time.Second,
		retentionPeriod: time.Duration(cfg.RetentionPeriodSeconds) * time.Second,
		logger:          logger.With().Str("component", "journal_cleaner").Logger(),
		stopCh:          make(chan struct{}),
	}
}

// Start runs an initial cleanup and then one per interval until ctx is done or Stop is called
func (jc *JournalCleaner) Start(ctx context.Context) error {
	jc.logger.Info().
		Dur("cleanup_interval", jc.cleanupInterval).
		Dur("retention_period", jc.retentionPeriod).
		Msg("starting journal cleaner")

	if err := jc.performCleanup(); err != nil {
		// startup continues, the next tick retries
		jc.logger.Error().Err(err).Msg("failed to perform initial cleanup")
	}

	ticker := time.NewTicker(jc.cleanupInterval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				jc.logger.Info().Msg("context cancelled, stopping journal cleaner")
				return
			case <-jc.stopCh:
				jc.logger.Info().Msg("stop signal received, stopping journal cleaner")
				return
			case <-ticker.C:
				if err := jc.performCleanup(); err != nil {
					jc.logger.Error().Err(err).Msg("failed to perform scheduled cleanup")
				}
			}
		}
	}()
	return nil
}

// Stop stops the cleaner. Safe to call more than once.
func (jc *JournalCleaner) Stop() {
	jc.stopOnce.Do(func() {
		jc.logger.Info().Msg("stopping journal cleaner")
		close(jc.stopCh)
	})
}

func (jc *JournalCleaner) performCleanup() error {
	start := time.Now()

	deleted, err := jc.database.DeleteOldTerminalTips(jc.retentionPeriod)
	if err != nil {
		return err
	}

	if deleted > 0 {
		jc.checkpointWAL()
		jc.logger.Info().
			Int64("deleted", deleted).
			Dur("duration", time.Since(start)).
			Msg("journal cleanup completed")
	} else {
		jc.logger.Debug().
			Dur("duration", time.Since(start)).
			Msg("journal cleanup completed - nothing to delete")
	}
	return nil
}

// checkpointWAL keeps the WAL file from growing after large deletes
func (jc *JournalCleaner) checkpointWAL() {
	if err := jc.database.Client().Exec("PRAGMA wal_checkpoint(TRUNCATE)").Error; err != nil {
		jc.logger.Warn().Err(err).Msg("failed to checkpoint WAL")
	}
}
