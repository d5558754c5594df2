package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/andrii-malakhovtsev/accountmap/internal/common"
	"github.com/andrii-malakhovtsev/accountmap/internal/dbx"
	"github.com/andrii-malakhovtsev/accountmap/internal/logging"
	"github.com/andrii-malakhovtsev/accountmap/internal/server/models"
	"github.com/andrii-malakhovtsev/accountmap/internal/server/repositories/accounts"
	"github.com/andrii-malakhovtsev/accountmap/internal/server/repositories/connections"
	"github.com/andrii-malakhovtsev/accountmap/internal/server/repositories/identities"
	"github.com/andrii-malakhovtsev/accountmap/internal/server/repositories/users"
	"github.com/google/uuid"
)

var (
	errBoom       = errors.New("boom")
	errForeignKey = errors.New("violates foreign key constraint")
)

type nopLogger struct{}

func (nopLogger) Debug(context.Context, string, ...any) {}
func (nopLogger) Info(context.Context, string, ...any)  {}
func (nopLogger) Warn(context.Context, string, ...any)  {}
func (nopLogger) Error(context.Context, string, ...any) {}
func (l nopLogger) With(...any) logging.Logger          { return l }

// memStore backs every fake repository with plain maps. Transactions are
// only observed through sqlmock expectations; the store itself never rolls
// back.
type memStore struct {
	users       map[string]models.User
	identities  map[string]models.Identity
	accounts    map[string]models.Account
	connections map[string]models.Connection

	// failures injected by operation name, e.g. "connections.Create".
	fail map[string]error

	// beforeAccountWrite runs inside accounts.Create and accounts.Update,
	// after the service's duplicate check, to simulate a concurrent writer.
	beforeAccountWrite func()
}

func newMemStore() *memStore {
	return &memStore{
		users:       map[string]models.User{},
		identities:  map[string]models.Identity{},
		accounts:    map[string]models.Account{},
		connections: map[string]models.Connection{},
		fail:        map[string]error{},
	}
}

func (s *memStore) RunMigrations(context.Context, *sql.DB) error { return nil }
func (s *memStore) Users(dbx.DBTX) users.Repository             { return &fakeUsers{s} }
func (s *memStore) Identities(dbx.DBTX) identities.Repository   { return &fakeIdentities{s} }
func (s *memStore) Accounts(dbx.DBTX) accounts.Repository       { return &fakeAccounts{s} }
func (s *memStore) Connections(dbx.DBTX) connections.Repository { return &fakeConnections{s} }

func (s *memStore) addUser(name string) models.User {
	u := models.User{ID: uuid.NewString(), Username: name, Email: name + "@example.com"}
	s.users[u.ID] = u
	return u
}

func (s *memStore) addIdentity(userID string, t models.IdentityType, value string) models.Identity {
	i := models.Identity{ID: uuid.NewString(), Type: t, Value: value, UserID: userID}
	s.identities[i.ID] = i
	return i
}

func (s *memStore) addAccount(userID, name string, username *string) models.Account {
	a := models.Account{ID: uuid.NewString(), Name: name, Username: username, Categories: []string{}, UserID: userID}
	s.accounts[a.ID] = a
	return a
}

func (s *memStore) link(accountID, identityID string) {
	c := models.Connection{ID: uuid.NewString(), AccountID: accountID, IdentityID: identityID}
	s.connections[c.ID] = c
}

func (s *memStore) linkCount(accountID string) int {
	n := 0
	for _, c := range s.connections {
		if c.AccountID == accountID {
			n++
		}
	}
	return n
}

func (s *memStore) identityLinkCount(identityID string) int {
	n := 0
	for _, c := range s.connections {
		if c.IdentityID == identityID {
			n++
		}
	}
	return n
}

// naturalKeyTaken mirrors the (user_id, name, username) unique constraint,
// where NULL usernames compare equal.
func (s *memStore) naturalKeyTaken(a *models.Account, excludeID string) bool {
	for _, other := range s.accounts {
		if other.ID != excludeID && other.UserID == a.UserID && other.Name == a.Name &&
			(other.Username == nil) == (a.Username == nil) &&
			common.StringValue(other.Username) == common.StringValue(a.Username) {
			return true
		}
	}
	return false
}

func (s *memStore) check(op string) error {
	return s.fail[op]
}

type fakeUsers struct{ s *memStore }

func (r *fakeUsers) Create(_ context.Context, u *models.User) (*models.User, error) {
	if err := r.s.check("users.Create"); err != nil {
		return nil, err
	}
	for _, existing := range r.s.users {
		if existing.Username == u.Username {
			return nil, common.ErrorConflict
		}
	}
	u.ID = uuid.NewString()
	r.s.users[u.ID] = *u
	return u, nil
}

func (r *fakeUsers) GetByID(_ context.Context, id string) (*models.User, error) {
	u, ok := r.s.users[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return &u, nil
}

func (r *fakeUsers) GetByUsername(_ context.Context, name string) (*models.User, error) {
	if err := r.s.check("users.GetByUsername"); err != nil {
		return nil, err
	}
	for _, u := range r.s.users {
		if u.Username == name {
			return &u, nil
		}
	}
	return nil, common.ErrorNotFound
}

type fakeIdentities struct{ s *memStore }

func (r *fakeIdentities) Create(_ context.Context, i *models.Identity) (*models.Identity, error) {
	if err := r.s.check("identities.Create"); err != nil {
		return nil, err
	}
	for _, existing := range r.s.identities {
		if existing.UserID == i.UserID && existing.Type == i.Type && existing.Value == i.Value {
			return nil, common.ErrorConflict
		}
	}
	out := *i
	out.ID = uuid.NewString()
	r.s.identities[out.ID] = out
	return &out, nil
}

func (r *fakeIdentities) GetByID(_ context.Context, id string) (*models.Identity, error) {
	i, ok := r.s.identities[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return &i, nil
}

func (r *fakeIdentities) FindByNaturalKey(_ context.Context, userID string, t models.IdentityType, value string) (*models.Identity, error) {
	if err := r.s.check("identities.FindByNaturalKey"); err != nil {
		return nil, err
	}
	for _, i := range r.s.identities {
		if i.UserID == userID && i.Type == t && i.Value == value {
			return &i, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (r *fakeIdentities) ListByUser(_ context.Context, userID string) ([]models.Identity, error) {
	out := make([]models.Identity, 0)
	for _, i := range r.s.identities {
		if i.UserID == userID {
			out = append(out, i)
		}
	}
	sort.Slice(out, func(a, b int) bool {
		if out[a].Type != out[b].Type {
			return out[a].Type < out[b].Type
		}
		return out[a].Value < out[b].Value
	})
	return out, nil
}

func (r *fakeIdentities) Update(_ context.Context, i *models.Identity) error {
	if _, ok := r.s.identities[i.ID]; !ok {
		return common.ErrorNotFound
	}
	r.s.identities[i.ID] = *i
	return nil
}

func (r *fakeIdentities) Delete(_ context.Context, id string) error {
	if _, ok := r.s.identities[id]; !ok {
		return common.ErrorNotFound
	}
	if r.s.identityLinkCount(id) > 0 {
		return errForeignKey
	}
	delete(r.s.identities, id)
	return nil
}

type fakeAccounts struct{ s *memStore }

func (r *fakeAccounts) Create(_ context.Context, a *models.Account) (*models.Account, error) {
	if err := r.s.check("accounts.Create"); err != nil {
		return nil, err
	}
	if r.s.beforeAccountWrite != nil {
		r.s.beforeAccountWrite()
	}
	if r.s.naturalKeyTaken(a, "") {
		return nil, common.ErrorConflict
	}
	out := *a
	out.ID = uuid.NewString()
	if out.Categories == nil {
		out.Categories = []string{}
	}
	r.s.accounts[out.ID] = out
	return &out, nil
}

func (r *fakeAccounts) GetByID(_ context.Context, id string) (*models.Account, error) {
	a, ok := r.s.accounts[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return &a, nil
}

func (r *fakeAccounts) FindDuplicate(_ context.Context, userID, name string, username *string, excludeID string) (*models.Account, error) {
	for _, a := range r.s.accounts {
		if a.UserID == userID && a.Name == name && common.StringValue(a.Username) == common.StringValue(username) &&
			(a.Username == nil) == (username == nil) && a.ID != excludeID {
			return &a, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (r *fakeAccounts) ListByUser(_ context.Context, userID string) ([]models.Account, error) {
	out := make([]models.Account, 0)
	for _, a := range r.s.accounts {
		if a.UserID == userID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (r *fakeAccounts) Update(_ context.Context, a *models.Account) error {
	if _, ok := r.s.accounts[a.ID]; !ok {
		return common.ErrorNotFound
	}
	if r.s.beforeAccountWrite != nil {
		r.s.beforeAccountWrite()
	}
	if r.s.naturalKeyTaken(a, a.ID) {
		return common.ErrorConflict
	}
	r.s.accounts[a.ID] = *a
	return nil
}

func (r *fakeAccounts) Delete(_ context.Context, id string) error {
	if err := r.s.check("accounts.Delete"); err != nil {
		return err
	}
	if _, ok := r.s.accounts[id]; !ok {
		return common.ErrorNotFound
	}
	if r.s.linkCount(id) > 0 {
		return errForeignKey
	}
	delete(r.s.accounts, id)
	return nil
}

func (r *fakeAccounts) DeleteUnlinked(_ context.Context, userID string) (int64, error) {
	var n int64
	for id, a := range r.s.accounts {
		if a.UserID == userID && r.s.linkCount(id) == 0 {
			delete(r.s.accounts, id)
			n++
		}
	}
	return n, nil
}

type fakeConnections struct{ s *memStore }

func (r *fakeConnections) Create(_ context.Context, accountID, identityID string) (*models.Connection, error) {
	if err := r.s.check("connections.Create"); err != nil {
		return nil, err
	}
	for _, c := range r.s.connections {
		if c.AccountID == accountID && c.IdentityID == identityID {
			return nil, common.ErrorConflict
		}
	}
	c := models.Connection{ID: uuid.NewString(), AccountID: accountID, IdentityID: identityID}
	r.s.connections[c.ID] = c
	return &c, nil
}

func (r *fakeConnections) Delete(_ context.Context, accountID, identityID string) (int64, error) {
	var n int64
	for id, c := range r.s.connections {
		if c.AccountID == accountID && c.IdentityID == identityID {
			delete(r.s.connections, id)
			n++
		}
	}
	return n, nil
}

func (r *fakeConnections) DeleteByAccount(_ context.Context, accountID string) (int64, error) {
	var n int64
	for id, c := range r.s.connections {
		if c.AccountID == accountID {
			delete(r.s.connections, id)
			n++
		}
	}
	return n, nil
}

func (r *fakeConnections) DeleteByIdentity(_ context.Context, identityID string) (int64, error) {
	var n int64
	for id, c := range r.s.connections {
		if c.IdentityID == identityID {
			delete(r.s.connections, id)
			n++
		}
	}
	return n, nil
}

func (r *fakeConnections) ListByUser(_ context.Context, userID string) ([]models.Connection, error) {
	out := make([]models.Connection, 0)
	for _, c := range r.s.connections {
		if a, ok := r.s.accounts[c.AccountID]; ok && a.UserID == userID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// newMockDB returns a sqlmock-backed *sql.DB whose expectations are checked
// at cleanup.
func newMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() {
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("unmet sqlmock expectations: %v", err)
		}
		db.Close()
	})
	return db, mock
}

func currentUser(u models.User) models.CurrentUser {
	return models.CurrentUser{ID: u.ID, Username: u.Username}
}

func idsOf(ids []models.Identity) []string {
	out := make([]string, 0, len(ids))
	for _, i := range ids {
		out = append(out, fmt.Sprintf("%s:%s", i.Type, i.Value))
	}
	sort.Strings(out)
	return out
}
