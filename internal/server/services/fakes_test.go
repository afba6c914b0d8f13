package services

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"

	"casesync/internal/clock"
	"casesync/internal/common"
	"casesync/internal/dbx"
	"casesync/internal/logging"
	"casesync/internal/server/config"
	"casesync/internal/server/models"
	"casesync/internal/server/repositories/cases"
	"casesync/internal/server/repositories/dictionaries"
	"casesync/internal/server/repositories/synchistory"
	"casesync/internal/server/repositories/users"
)

// fakeManager hands out in-memory repositories regardless of the DBTX it is
// given; the *sql.DB underneath is a sqlmock that only sees Begin/Commit.
type fakeManager struct {
	users       *fakeUsers
	dicts       *fakeDictionaries
	cases       *fakeCases
	syncHistory *synchistory.InMemoryRepository
}

func newFakeManager() *fakeManager {
	return &fakeManager{
		users:       &fakeUsers{byName: map[string]*models.User{}},
		dicts:       &fakeDictionaries{byName: map[string]*models.Dictionary{}},
		cases:       &fakeCases{clocks: map[uuid.UUID]clock.VectorClock{}},
		syncHistory: synchistory.NewInMemoryRepository(),
	}
}

func (m *fakeManager) RunMigrations(context.Context, *sql.DB) error { return nil }
func (m *fakeManager) Users(dbx.DBTX) users.Repository              { return m.users }
func (m *fakeManager) Dictionaries(dbx.DBTX) dictionaries.Repository {
	return m.dicts
}
func (m *fakeManager) Cases(dbx.DBTX) cases.Repository             { return m.cases }
func (m *fakeManager) SyncHistory(dbx.DBTX) synchistory.Repository { return m.syncHistory }

type fakeUsers struct {
	byName    map[string]*models.User
	createErr error
}

func (f *fakeUsers) Create(_ context.Context, u *models.User) (*models.User, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	u.ID = uuid.NewString()
	f.byName[u.UserName] = u
	return u, nil
}

func (f *fakeUsers) GetUserByLogin(_ context.Context, userName string) (*models.User, error) {
	u, ok := f.byName[userName]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return u, nil
}

type fakeDictionaries struct {
	byName map[string]*models.Dictionary
}

func (f *fakeDictionaries) Create(_ context.Context, d *models.Dictionary) (*models.Dictionary, error) {
	d.ID = int64(len(f.byName) + 1)
	f.byName[d.Name] = d
	return d, nil
}

func (f *fakeDictionaries) UpdateContent(_ context.Context, name, label, content string) error {
	d, ok := f.byName[name]
	if !ok {
		return common.ErrDictionaryUnknown
	}
	d.Label, d.Content = label, content
	return nil
}

func (f *fakeDictionaries) GetByName(_ context.Context, name string) (*models.Dictionary, error) {
	d, ok := f.byName[name]
	if !ok {
		return nil, common.ErrDictionaryUnknown
	}
	return d, nil
}

func (f *fakeDictionaries) List(_ context.Context) ([]*models.Dictionary, error) {
	var out []*models.Dictionary
	for _, d := range f.byName {
		out = append(out, d)
	}
	return out, nil
}

type fakeCases struct {
	clocks       map[uuid.UUID]clock.VectorClock
	committed    []*models.Case
	commitErr    error
	selectResult []*models.Case
}

func (f *fakeCases) ClockSnapshot(_ context.Context, _ int64, guids []uuid.UUID) (map[uuid.UUID]clock.VectorClock, error) {
	out := map[uuid.UUID]clock.VectorClock{}
	for _, g := range guids {
		if vc, ok := f.clocks[g]; ok {
			out[g] = vc
		}
	}
	return out, nil
}

func (f *fakeCases) Commit(_ context.Context, _ int64, batch []*models.Case, revision int64) error {
	if f.commitErr != nil {
		return f.commitErr
	}
	for _, c := range batch {
		c.Revision = revision
		f.clocks[c.GUID] = c.Clock
	}
	f.committed = append(f.committed, batch...)
	return nil
}

func (f *fakeCases) SelectSince(_ context.Context, _ int64, sinceRevision int64, _ string) ([]*models.Case, error) {
	var out []*models.Case
	for _, c := range f.selectResult {
		if c.Revision > sinceRevision {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeCases) ClaimUnprocessed(_ context.Context, _ int64, _ int) ([]*models.Case, error) {
	return nil, nil
}

func (f *fakeCases) ResetUnprocessed(_ context.Context, _ int64, _ []uuid.UUID) error {
	return nil
}

func testLogger() logging.Logger {
	return logging.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.LoadDefaults()
	return cfg
}

// newMockDB returns a sqlmock that tolerates any sequence of transactions:
// the fakes never issue SQL, so only Begin/Commit/Rollback reach the mock.
func newMockDB(t *testing.T) *sql.DB {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	mock.MatchExpectationsInOrder(false)
	for i := 0; i < 16; i++ {
		mock.ExpectBegin()
		mock.ExpectCommit()
		mock.ExpectRollback()
	}
	t.Cleanup(func() { db.Close() })
	return db
}
