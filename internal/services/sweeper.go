package services

import (
	"context"
	"log"
	"time"

	"github.com/mrseyes/icebot/internal/session"
)

// SessionSweeper периодически удаляет простаивающие сессии покупателей.
type SessionSweeper struct {
	sessions *session.Store
	maxIdle  time.Duration
	interval time.Duration
	logger   *log.Logger
}

// NewSessionSweeper создаёт новый чистильщик сессий.
func NewSessionSweeper(sessions *session.Store, maxIdle, interval time.Duration, logger *log.Logger) *SessionSweeper {
	if maxIdle <= 0 {
		maxIdle = 2 * time.Hour
	}
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	if logger == nil {
		logger = log.Default()
	}
	return &SessionSweeper{
		sessions: sessions,
		maxIdle:  maxIdle,
		interval: interval,
		logger:   logger,
	}
}

// Start запускает чистильщик в отдельной горутине и останавливается по ctx.Done().
func (w *SessionSweeper) Start(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if removed := w.sessions.Sweep(w.maxIdle); removed > 0 {
					w.logger.Printf("session sweep removed %d idle sessions", removed)
				}
			}
		}
	}()
}
