package sheetlog

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"github.com/classpulse/presence-monitor/internal/enrich"
	"github.com/classpulse/presence-monitor/internal/moodle"
)

var headerRow = []interface{}{"Hashed ID", "Last Seen", "Classroom", "Snapshot Time"}

// valuesAPI is the slice of the Sheets values API the store needs. Tests
// substitute an in-memory fake.
type valuesAPI interface {
	Get(ctx context.Context, readRange string) ([][]interface{}, error)
	Append(ctx context.Context, writeRange string, rows [][]interface{}) error
}

type googleValues struct {
	svc           *sheets.Service
	spreadsheetID string
}

func (g *googleValues) Get(ctx context.Context, readRange string) ([][]interface{}, error) {
	resp, err := g.svc.Spreadsheets.Values.Get(g.spreadsheetID, readRange).Context(ctx).Do()
	if err != nil {
		return nil, err
	}
	return resp.Values, nil
}

func (g *googleValues) Append(ctx context.Context, writeRange string, rows [][]interface{}) error {
	body := &sheets.ValueRange{Values: rows}
	_, err := g.svc.Spreadsheets.Values.Append(g.spreadsheetID, writeRange, body).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	return err
}

// Store is the append-only, dedup-guarded presence log backed by one sheet
// of a Google spreadsheet.
type Store struct {
	values    valuesAPI
	sheetName string
	logger    zerolog.Logger
	now       func() time.Time
}

// Open authenticates with the service-account key file and verifies the
// named sheet exists. Failure here is a startup precondition, not a
// per-cycle error: the caller should abort.
func Open(ctx context.Context, credentialsFile, spreadsheetID, sheetName string, logger zerolog.Logger) (*Store, error) {
	svc, err := sheets.NewService(ctx,
		option.WithCredentialsFile(credentialsFile),
		option.WithScopes(sheets.SpreadsheetsScope, sheets.DriveScope),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheets service: %w", err)
	}

	doc, err := svc.Spreadsheets.Get(spreadsheetID).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to open spreadsheet %s: %w", spreadsheetID, err)
	}

	found := false
	for _, sh := range doc.Sheets {
		if sh.Properties != nil && sh.Properties.Title == sheetName {
			found = true
			break
		}
	}
	if !found {
		return nil, fmt.Errorf("sheet %q not found in spreadsheet %s", sheetName, spreadsheetID)
	}

	return newStore(&googleValues{svc: svc, spreadsheetID: spreadsheetID}, sheetName, logger), nil
}

func newStore(values valuesAPI, sheetName string, logger zerolog.Logger) *Store {
	return &Store{
		values:    values,
		sheetName: sheetName,
		logger:    logger.With().Str("component", "sheet_log").Logger(),
		now:       time.Now,
	}
}

// LoadSeenKeys reads column A and returns every value below the header as
// the initial seen set. A read error degrades to an empty set: the log
// stays available at the cost of possible re-appends.
func (s *Store) LoadSeenKeys(ctx context.Context) map[string]struct{} {
	seen := make(map[string]struct{})

	column, err := s.values.Get(ctx, s.sheetName+"!A:A")
	if err != nil {
		s.logger.Warn().Err(err).Msg("could not load seen ids, starting with an empty set")
		return seen
	}

	for i, row := range column {
		if i == 0 || len(row) == 0 {
			continue
		}
		if v, ok := row[0].(string); ok && v != "" {
			seen[v] = struct{}{}
		}
	}

	return seen
}

// EnsureHeader appends the fixed header row when the top-left cell is
// empty. Idempotent.
func (s *Store) EnsureHeader(ctx context.Context) error {
	rows, err := s.values.Get(ctx, s.sheetName+"!A1:A1")
	if err != nil {
		return fmt.Errorf("failed to read header cell: %w", err)
	}

	if len(rows) > 0 && len(rows[0]) > 0 {
		if v, ok := rows[0][0].(string); ok && v != "" {
			return nil
		}
	}

	if err := s.values.Append(ctx, s.sheetName+"!A1", [][]interface{}{headerRow}); err != nil {
		return fmt.Errorf("failed to write header row: %w", err)
	}

	return nil
}

// AppendNew writes one row per user whose hashed id is not yet in seen,
// preserving input order, as a single batch. Hashes are committed to seen
// only after the write succeeds, so a failed append is retried on the next
// cycle. Returns the number of rows appended.
func (s *Store) AppendNew(ctx context.Context, users []moodle.OnlineUser, addresses map[int64]string, seen map[string]struct{}) (int, error) {
	snapshot := s.now().Format("2006-01-02 15:04:05")

	var rows [][]interface{}
	var pending []string
	batch := make(map[string]struct{})

	for _, u := range users {
		hashed := enrich.HashUserID(u.ID)
		if _, done := seen[hashed]; done {
			continue
		}
		if _, queued := batch[hashed]; queued {
			continue
		}

		lastSeen := "N/A"
		if u.LastAccess != 0 {
			lastSeen = time.Unix(u.LastAccess, 0).Format("15:04:05")
		}

		addr, ok := addresses[u.ID]
		if !ok || addr == "" {
			addr = "N/A"
		}

		rows = append(rows, []interface{}{hashed, lastSeen, enrich.ClassroomLabel(addr), snapshot})
		pending = append(pending, hashed)
		batch[hashed] = struct{}{}
	}

	if len(rows) == 0 {
		return 0, nil
	}

	if err := s.values.Append(ctx, s.sheetName+"!A1", rows); err != nil {
		return 0, fmt.Errorf("failed to append %d rows: %w", len(rows), err)
	}

	for _, hashed := range pending {
		seen[hashed] = struct{}{}
	}

	return len(rows), nil
}
