package sheetlog

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/classpulse/presence-monitor/internal/enrich"
	"github.com/classpulse/presence-monitor/internal/moodle"
)

type fakeValues struct {
	columnA   [][]interface{}
	getErr    error
	appendErr error
	appends   [][][]interface{}
}

func (f *fakeValues) Get(ctx context.Context, readRange string) ([][]interface{}, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	switch readRange {
	case "Presence!A1:A1":
		if len(f.columnA) == 0 {
			return nil, nil
		}
		return f.columnA[:1], nil
	case "Presence!A:A":
		return f.columnA, nil
	}
	return nil, errors.New("unexpected range " + readRange)
}

func (f *fakeValues) Append(ctx context.Context, writeRange string, rows [][]interface{}) error {
	if f.appendErr != nil {
		return f.appendErr
	}
	f.appends = append(f.appends, rows)
	f.columnA = append(f.columnA, rows...)
	return nil
}

func newTestStore(values *fakeValues) *Store {
	return newStore(values, "Presence", zerolog.Nop())
}

func TestLoadSeenKeys(t *testing.T) {
	values := &fakeValues{columnA: [][]interface{}{
		{"Hashed ID"},
		{"6b86b273"},
		{"d4735e3a"},
		{},
	}}

	seen := newTestStore(values).LoadSeenKeys(context.Background())
	require.Len(t, seen, 2)
	require.Contains(t, seen, "6b86b273")
	require.Contains(t, seen, "d4735e3a")
}

func TestLoadSeenKeysHeaderOnlySheet(t *testing.T) {
	values := &fakeValues{columnA: [][]interface{}{{"Hashed ID"}}}
	require.Empty(t, newTestStore(values).LoadSeenKeys(context.Background()))
}

func TestLoadSeenKeysReadErrorDegradesToEmptySet(t *testing.T) {
	values := &fakeValues{getErr: errors.New("quota exceeded")}
	require.Empty(t, newTestStore(values).LoadSeenKeys(context.Background()))
}

func TestEnsureHeaderIsIdempotent(t *testing.T) {
	values := &fakeValues{}
	store := newTestStore(values)

	require.NoError(t, store.EnsureHeader(context.Background()))
	require.Len(t, values.appends, 1)
	require.Equal(t, "Hashed ID", values.appends[0][0][0])

	require.NoError(t, store.EnsureHeader(context.Background()))
	require.Len(t, values.appends, 1, "second call must not write")
}

func TestAppendNewWritesEnrichedRows(t *testing.T) {
	values := &fakeValues{columnA: [][]interface{}{{"Hashed ID"}}}
	store := newTestStore(values)
	store.now = func() time.Time { return time.Date(2026, 3, 9, 10, 30, 0, 0, time.Local) }

	lastAccess := time.Date(2026, 3, 9, 10, 27, 42, 0, time.Local)
	users := []moodle.OnlineUser{
		{ID: 1, FullName: "Ana Pop", Username: "apop", LastAccess: lastAccess.Unix()},
		{ID: 2, FullName: "Ion Micu", Username: "imicu", LastAccess: 0},
	}
	addresses := map[int64]string{1: "192.168.1.5"}
	seen := map[string]struct{}{}

	appended, err := store.AppendNew(context.Background(), users, addresses, seen)
	require.NoError(t, err)
	require.Equal(t, 2, appended)
	require.Len(t, values.appends, 1, "rows must go out as one batch")

	rows := values.appends[0]
	require.Equal(t, []interface{}{enrich.HashUserID(1), "10:27:42", "Classroom 5", "2026-03-09 10:30:00"}, rows[0])
	require.Equal(t, []interface{}{enrich.HashUserID(2), "N/A", "Classroom N/A", "2026-03-09 10:30:00"}, rows[1])

	require.Contains(t, seen, enrich.HashUserID(1))
	require.Contains(t, seen, enrich.HashUserID(2))
}

func TestAppendNewSkipsSeenHashes(t *testing.T) {
	values := &fakeValues{columnA: [][]interface{}{{"Hashed ID"}}}
	store := newTestStore(values)

	seen := map[string]struct{}{enrich.HashUserID(1): {}}
	users := []moodle.OnlineUser{{ID: 1, LastAccess: 100}}

	appended, err := store.AppendNew(context.Background(), users, nil, seen)
	require.NoError(t, err)
	require.Zero(t, appended)
	require.Empty(t, values.appends, "no write when every user is already logged")
}

func TestAppendNewIsIdempotentAcrossCalls(t *testing.T) {
	values := &fakeValues{columnA: [][]interface{}{{"Hashed ID"}}}
	store := newTestStore(values)

	users := []moodle.OnlineUser{{ID: 1, LastAccess: 100}, {ID: 2, LastAccess: 200}}
	seen := map[string]struct{}{}

	first, err := store.AppendNew(context.Background(), users, nil, seen)
	require.NoError(t, err)
	require.Equal(t, 2, first)

	second, err := store.AppendNew(context.Background(), users, nil, seen)
	require.NoError(t, err)
	require.Zero(t, second)
	require.Len(t, values.appends, 1)
}

func TestAppendNewFailureLeavesSeenSetUntouched(t *testing.T) {
	values := &fakeValues{appendErr: errors.New("backend unavailable")}
	store := newTestStore(values)

	seen := map[string]struct{}{}
	_, err := store.AppendNew(context.Background(), []moodle.OnlineUser{{ID: 1}}, nil, seen)
	require.Error(t, err)
	require.Empty(t, seen, "failed batches must be retried on the next cycle")
}
