package monitor

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/classpulse/presence-monitor/internal/moodle"
	"github.com/classpulse/presence-monitor/internal/observability"
	"github.com/classpulse/presence-monitor/internal/report"
	"github.com/classpulse/presence-monitor/internal/repository"
)

// SheetStore is the slice of the log store the loop drives.
type SheetStore interface {
	LoadSeenKeys(ctx context.Context) map[string]struct{}
	EnsureHeader(ctx context.Context) error
	AppendNew(ctx context.Context, users []moodle.OnlineUser, addresses map[int64]string, seen map[string]struct{}) (int, error)
}

// Monitor runs the fetch -> enrich -> report -> persist cycle on a fixed
// interval until its context is cancelled. Strictly sequential: one cycle
// finishes (or fails fast) before the next begins.
type Monitor struct {
	client    moodle.Client
	directory repository.DirectoryRepository
	store     SheetStore
	reporter  *report.Reporter
	interval  time.Duration
	seen      map[string]struct{}
	logger    zerolog.Logger
}

// New wires the poll loop.
func New(client moodle.Client, directory repository.DirectoryRepository, store SheetStore, reporter *report.Reporter, interval time.Duration, logger zerolog.Logger) *Monitor {
	return &Monitor{
		client:    client,
		directory: directory,
		store:     store,
		reporter:  reporter,
		interval:  interval,
		logger:    logger.With().Str("component", "monitor").Logger(),
	}
}

// Run loads the seen set from the sheet, then cycles until ctx is done. The
// first cycle starts immediately; an in-flight cycle always completes before
// shutdown.
func (m *Monitor) Run(ctx context.Context) {
	m.seen = m.store.LoadSeenKeys(ctx)
	m.logger.Info().Int("count", len(m.seen)).Msg("loaded existing entries from sheet")

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			m.logger.Info().Msg("poll loop stopped")
			return
		case <-timer.C:
			m.cycle(ctx)
			timer.Reset(m.interval)
		}
	}
}

func (m *Monitor) cycle(ctx context.Context) {
	logger := m.logger.With().Str("cycle_id", uuid.NewString()).Logger()
	observability.PollCycles().Inc()

	users, err := m.client.OnlineUsers(ctx)
	if err != nil {
		observability.FetchErrors().WithLabelValues(fetchErrorKind(err)).Inc()
		logger.Error().Err(err).Msg("presence fetch failed, skipping cycle")
		return
	}

	ids := make([]int64, 0, len(users))
	for _, u := range users {
		if u.ID != 0 {
			ids = append(ids, u.ID)
		}
	}

	addresses, err := m.directory.LastAddresses(ctx, ids)
	if err != nil {
		observability.DirectoryErrors().Inc()
		logger.Error().Err(err).Msg("directory lookup failed, addresses unknown this cycle")
		addresses = map[int64]string{}
	}

	observability.OnlineUsers().Set(float64(len(users)))
	m.reporter.Snapshot(users, addresses)

	if err := m.store.EnsureHeader(ctx); err != nil {
		observability.AppendErrors().Inc()
		logger.Error().Err(err).Msg("could not ensure sheet header, deferring append")
		return
	}

	appended, err := m.store.AppendNew(ctx, users, addresses, m.seen)
	if err != nil {
		observability.AppendErrors().Inc()
		logger.Error().Err(err).Msg("sheet append failed, rows will be retried next cycle")
		return
	}

	observability.RowsAppended().Add(float64(appended))
	if appended > 0 {
		logger.Info().Int("appended", appended).Msg("new users appended to sheet")
	} else {
		logger.Info().Msg("no new users to append")
	}
}

func fetchErrorKind(err error) string {
	switch {
	case errors.Is(err, moodle.ErrTimeout):
		return "timeout"
	case errors.Is(err, moodle.ErrUnreachable):
		return "unreachable"
	case errors.Is(err, moodle.ErrBadStatus):
		return "bad_status"
	case errors.Is(err, moodle.ErrMalformed):
		return "malformed"
	case errors.Is(err, moodle.ErrException):
		return "exception"
	}
	return "unknown"
}
