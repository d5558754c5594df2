package httpapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/andrii-malakhovtsev/accountmap/internal/common"
	"github.com/andrii-malakhovtsev/accountmap/internal/logging"
	"github.com/andrii-malakhovtsev/accountmap/internal/server/graph"
	"github.com/andrii-malakhovtsev/accountmap/internal/server/models"
	"github.com/andrii-malakhovtsev/accountmap/internal/server/services"
)

const (
	defaultUserID = "11111111-1111-1111-1111-111111111111"
	aliceID       = "22222222-2222-2222-2222-222222222222"
	accountID     = "33333333-3333-3333-3333-333333333333"
	identityID    = "44444444-4444-4444-4444-444444444444"
)

type nopLogger struct{}

func (nopLogger) Debug(context.Context, string, ...any) {}
func (nopLogger) Info(context.Context, string, ...any)  {}
func (nopLogger) Warn(context.Context, string, ...any)  {}
func (nopLogger) Error(context.Context, string, ...any) {}
func (l nopLogger) With(...any) logging.Logger          { return l }

type fakeUsers struct{}

func (fakeUsers) Resolve(_ context.Context, token string) (models.CurrentUser, error) {
	switch token {
	case "":
		return models.CurrentUser{ID: defaultUserID, Username: "default"}, nil
	case "alice-token":
		return models.CurrentUser{ID: aliceID, Username: "alice"}, nil
	default:
		return models.CurrentUser{}, common.ErrorUnauthorized
	}
}

func (fakeUsers) Get(_ context.Context, cu models.CurrentUser) (*models.User, error) {
	return &models.User{ID: cu.ID, Username: cu.Username, Email: cu.Username + "@example.com"}, nil
}

func (fakeUsers) IssueToken(_ context.Context, cu models.CurrentUser) (string, error) {
	return "token-for-" + cu.Username, nil
}

// fakeAccounts records the caller of the last operation and returns err
// from every call when set.
type fakeAccounts struct {
	err      error
	lastUser models.CurrentUser
	lastID   string
	created  services.CreateAccountInput
	updated  services.UpdateAccountInput
	bulkRows []map[string]any
}

func (f *fakeAccounts) List(_ context.Context, cu models.CurrentUser) ([]models.Account, error) {
	f.lastUser = cu
	if f.err != nil {
		return nil, f.err
	}
	return []models.Account{{ID: accountID, Name: "github", Categories: []string{}, UserID: cu.ID}}, nil
}

func (f *fakeAccounts) ListWithIdentities(_ context.Context, cu models.CurrentUser) ([]models.AccountWithIdentities, error) {
	f.lastUser = cu
	return []models.AccountWithIdentities{}, f.err
}

func (f *fakeAccounts) Get(_ context.Context, cu models.CurrentUser, id string) (*models.AccountWithIdentities, error) {
	f.lastUser, f.lastID = cu, id
	if f.err != nil {
		return nil, f.err
	}
	return &models.AccountWithIdentities{Account: models.Account{ID: id, Name: "github"}, Identities: []models.Identity{}}, nil
}

func (f *fakeAccounts) Create(_ context.Context, cu models.CurrentUser, in services.CreateAccountInput) (*models.AccountWithIdentities, error) {
	f.lastUser, f.created = cu, in
	if f.err != nil {
		return nil, f.err
	}
	return &models.AccountWithIdentities{Account: models.Account{ID: accountID, Name: in.Name}, Identities: []models.Identity{}}, nil
}

func (f *fakeAccounts) Update(_ context.Context, cu models.CurrentUser, id string, in services.UpdateAccountInput) (*models.Account, error) {
	f.lastUser, f.lastID, f.updated = cu, id, in
	if f.err != nil {
		return nil, f.err
	}
	return &models.Account{ID: id, Name: "github"}, nil
}

func (f *fakeAccounts) Delete(_ context.Context, cu models.CurrentUser, id string) error {
	f.lastUser, f.lastID = cu, id
	return f.err
}

func (f *fakeAccounts) DeleteUnlinked(_ context.Context, cu models.CurrentUser) (int64, error) {
	f.lastUser = cu
	return 3, f.err
}

func (f *fakeAccounts) BulkImport(_ context.Context, cu models.CurrentUser, rows []map[string]any) (*services.BulkResult, error) {
	f.lastUser, f.bulkRows = cu, rows
	if f.err != nil {
		return nil, f.err
	}
	return &services.BulkResult{Created: len(rows)}, nil
}

type fakeIdentities struct {
	err error
}

func (f *fakeIdentities) List(context.Context, models.CurrentUser) ([]models.Identity, error) {
	return []models.Identity{}, f.err
}

func (f *fakeIdentities) ListWithAccounts(context.Context, models.CurrentUser) ([]models.IdentityWithAccounts, error) {
	return []models.IdentityWithAccounts{}, f.err
}

func (f *fakeIdentities) Get(_ context.Context, _ models.CurrentUser, id string) (*models.IdentityWithAccounts, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &models.IdentityWithAccounts{Identity: models.Identity{ID: id}, Accounts: []models.Account{}}, nil
}

func (f *fakeIdentities) Create(_ context.Context, cu models.CurrentUser, in services.CreateIdentityInput) (*models.Identity, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &models.Identity{ID: identityID, Type: models.IdentityType(in.Type), Value: in.Value, UserID: cu.ID}, nil
}

func (f *fakeIdentities) Update(_ context.Context, _ models.CurrentUser, id string, _ services.UpdateIdentityInput) (*models.Identity, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &models.Identity{ID: id}, nil
}

func (f *fakeIdentities) Delete(context.Context, models.CurrentUser, string) error {
	return f.err
}

type fakeConnections struct {
	err                   error
	accountID, identityID string
}

func (f *fakeConnections) Link(_ context.Context, _ models.CurrentUser, accountID, identityID string) (*models.Connection, error) {
	f.accountID, f.identityID = accountID, identityID
	if f.err != nil {
		return nil, f.err
	}
	return &models.Connection{ID: "c1", AccountID: accountID, IdentityID: identityID}, nil
}

func (f *fakeConnections) Unlink(_ context.Context, _ models.CurrentUser, accountID, identityID string) error {
	f.accountID, f.identityID = accountID, identityID
	return f.err
}

type fakeGraph struct{}

func (fakeGraph) Project(context.Context, models.CurrentUser) (graph.Graph, graph.Summary, error) {
	g := graph.Project(
		[]models.IdentityWithAccounts{{
			Identity: models.Identity{ID: identityID, Type: models.IdentityMail, Value: "me@example.com"},
			Accounts: []models.Account{{ID: accountID, Name: "github"}},
		}},
		[]models.Account{{ID: accountID, Name: "github"}},
	)
	return g, graph.Summarize(g), nil
}

type fakeAnalysis struct {
	text string
	err  error
}

func (f *fakeAnalysis) Analyze(context.Context, models.CurrentUser) (string, error) {
	return f.text, f.err
}

type fakeCounter struct {
	counts map[string]int64
	err    error
}

func (c *fakeCounter) Incr(_ context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	if c.err != nil {
		return 0, 0, c.err
	}
	if c.counts == nil {
		c.counts = map[string]int64{}
	}
	c.counts[key]++
	return c.counts[key], window, nil
}

type testDeps struct {
	accounts    *fakeAccounts
	identities  *fakeIdentities
	connections *fakeConnections
	analysis    *fakeAnalysis
}

func newTestServer(t *testing.T, opts Options) (*Server, *testDeps) {
	t.Helper()
	deps := &testDeps{
		accounts:    &fakeAccounts{},
		identities:  &fakeIdentities{},
		connections: &fakeConnections{},
		analysis:    &fakeAnalysis{text: "All good."},
	}
	if opts.AllowedOrigins == nil {
		opts.AllowedOrigins = []string{"http://localhost:5173"}
	}
	s := NewServer(opts, Services{
		Users:       fakeUsers{},
		Accounts:    deps.accounts,
		Identities:  deps.identities,
		Connections: deps.connections,
		Graph:       fakeGraph{},
		Analysis:    deps.analysis,
	}, nopLogger{})
	return s, deps
}

func do(t *testing.T, h http.Handler, method, path, body string, header ...string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}
