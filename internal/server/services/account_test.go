package services

import (
	"context"
	"testing"

	"github.com/andrii-malakhovtsev/accountmap/internal/common"
	"github.com/andrii-malakhovtsev/accountmap/internal/server/importer"
	"github.com/andrii-malakhovtsev/accountmap/internal/server/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccountService_Create_ResolvesAndCreatesIdentities(t *testing.T) {
	db, mock := newMockDB(t)
	store := newMemStore()
	u := store.addUser("default")
	mail := store.addIdentity(u.ID, models.IdentityMail, "me@example.com")

	mock.ExpectBegin()
	mock.ExpectCommit()

	svc := NewAccountService(db, store, nopLogger{})
	got, err := svc.Create(context.Background(), currentUser(u), CreateAccountInput{
		Name:       "  github ",
		Username:   common.Ptr(" octocat "),
		Notes:      common.Ptr("   "),
		Categories: []string{"work", "bogus", "WORK"},
		Identities: []IdentityInput{
			{ID: mail.ID},
			{Type: "phone", Value: " +15550000000 "},
			{Type: "MAIL", Value: "me@example.com"},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, "github", got.Name)
	assert.Equal(t, "octocat", *got.Username)
	assert.Nil(t, got.Notes)
	assert.Equal(t, []string{"WORK"}, got.Categories)
	assert.Equal(t, []string{"MAIL:me@example.com", "PHONE:+15550000000"}, idsOf(got.Identities))
	assert.Len(t, store.identities, 2)
	assert.Equal(t, 2, store.linkCount(got.ID))
}

func TestAccountService_Create_Duplicate(t *testing.T) {
	db, mock := newMockDB(t)
	store := newMemStore()
	u := store.addUser("default")
	existing := store.addAccount(u.ID, "github", common.Ptr("octocat"))

	mock.ExpectBegin()
	mock.ExpectRollback()

	svc := NewAccountService(db, store, nopLogger{})
	_, err := svc.Create(context.Background(), currentUser(u), CreateAccountInput{Name: "github", Username: common.Ptr("octocat")})

	var dup *DuplicateAccountError
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, existing.ID, dup.Existing.ID)
	assert.ErrorIs(t, err, common.ErrorConflict)
}

func TestAccountService_Create_LostRaceReportsExisting(t *testing.T) {
	db, mock := newMockDB(t)
	store := newMemStore()
	u := store.addUser("default")

	var racer models.Account
	store.beforeAccountWrite = func() {
		store.beforeAccountWrite = nil
		racer = store.addAccount(u.ID, "github", common.Ptr("octocat"))
	}

	mock.ExpectBegin()
	mock.ExpectRollback()

	svc := NewAccountService(db, store, nopLogger{})
	_, err := svc.Create(context.Background(), currentUser(u), CreateAccountInput{Name: "github", Username: common.Ptr("octocat")})

	var dup *DuplicateAccountError
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, racer.ID, dup.Existing.ID)
	assert.Len(t, store.accounts, 1)
}

func TestAccountService_Update_LostRaceReportsExisting(t *testing.T) {
	db, mock := newMockDB(t)
	store := newMemStore()
	u := store.addUser("default")
	a := store.addAccount(u.ID, "github", nil)

	var racer models.Account
	store.beforeAccountWrite = func() {
		store.beforeAccountWrite = nil
		racer = store.addAccount(u.ID, "gitlab", nil)
	}

	mock.ExpectBegin()
	mock.ExpectRollback()

	svc := NewAccountService(db, store, nopLogger{})
	_, err := svc.Update(context.Background(), currentUser(u), a.ID, UpdateAccountInput{Name: common.Some("gitlab")})

	var dup *DuplicateAccountError
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, racer.ID, dup.Existing.ID)
	assert.Equal(t, "github", store.accounts[a.ID].Name)
}

func TestAccountService_Create_ValidationFailsBeforeTransaction(t *testing.T) {
	db, _ := newMockDB(t)
	store := newMemStore()
	u := store.addUser("default")

	svc := NewAccountService(db, store, nopLogger{})

	_, err := svc.Create(context.Background(), currentUser(u), CreateAccountInput{Name: "   "})
	assert.ErrorIs(t, err, common.ErrorValidation)
	assert.Contains(t, err.Error(), `"name"`)

	_, err = svc.Create(context.Background(), currentUser(u), CreateAccountInput{
		Name:       "github",
		Identities: []IdentityInput{{Value: "x"}},
	})
	assert.ErrorIs(t, err, common.ErrorValidation)
}

func TestAccountService_Create_RollsBackOnLinkFailure(t *testing.T) {
	db, mock := newMockDB(t)
	store := newMemStore()
	u := store.addUser("default")
	mail := store.addIdentity(u.ID, models.IdentityMail, "me@example.com")
	store.fail["connections.Create"] = errBoom

	mock.ExpectBegin()
	mock.ExpectRollback()

	svc := NewAccountService(db, store, nopLogger{})
	_, err := svc.Create(context.Background(), currentUser(u), CreateAccountInput{
		Name:       "github",
		Identities: []IdentityInput{{ID: mail.ID}},
	})
	assert.ErrorIs(t, err, errBoom)
}

func TestAccountService_Create_ForeignIdentity(t *testing.T) {
	db, mock := newMockDB(t)
	store := newMemStore()
	u := store.addUser("default")
	other := store.addUser("other")
	foreign := store.addIdentity(other.ID, models.IdentityMail, "them@example.com")

	mock.ExpectBegin()
	mock.ExpectRollback()

	svc := NewAccountService(db, store, nopLogger{})
	_, err := svc.Create(context.Background(), currentUser(u), CreateAccountInput{
		Name:       "github",
		Identities: []IdentityInput{{ID: foreign.ID}},
	})
	assert.ErrorIs(t, err, common.ErrorForbidden)
	assert.Empty(t, store.accounts)
}

func TestAccountService_Get(t *testing.T) {
	db, _ := newMockDB(t)
	store := newMemStore()
	u := store.addUser("default")
	other := store.addUser("other")
	a := store.addAccount(u.ID, "github", nil)
	i := store.addIdentity(u.ID, models.IdentityPhone, "+1555")
	store.link(a.ID, i.ID)
	foreign := store.addAccount(other.ID, "netflix", nil)

	svc := NewAccountService(db, store, nopLogger{})

	got, err := svc.Get(context.Background(), currentUser(u), a.ID)
	require.NoError(t, err)
	assert.Equal(t, "github", got.Name)
	assert.Equal(t, []string{"PHONE:+1555"}, idsOf(got.Identities))

	_, err = svc.Get(context.Background(), currentUser(u), foreign.ID)
	assert.ErrorIs(t, err, common.ErrorForbidden)

	_, err = svc.Get(context.Background(), currentUser(u), "not-a-uuid")
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestAccountService_Update(t *testing.T) {
	db, mock := newMockDB(t)
	store := newMemStore()
	u := store.addUser("default")
	a := store.addAccount(u.ID, "github", common.Ptr("octocat"))
	store.addAccount(u.ID, "gitlab", nil)

	svc := NewAccountService(db, store, nopLogger{})
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectCommit()
	got, err := svc.Update(ctx, currentUser(u), a.ID, UpdateAccountInput{
		Username:   common.Null[string](),
		Notes:      common.Some(" main "),
		Categories: common.Some([]string{"social"}),
	})
	require.NoError(t, err)
	assert.Equal(t, "github", got.Name)
	assert.Nil(t, got.Username)
	assert.Equal(t, "main", *got.Notes)
	assert.Equal(t, []string{"SOCIAL"}, store.accounts[a.ID].Categories)

	mock.ExpectBegin()
	mock.ExpectRollback()
	_, err = svc.Update(ctx, currentUser(u), a.ID, UpdateAccountInput{Name: common.Some("gitlab")})
	assert.ErrorIs(t, err, common.ErrorConflict)
	assert.Equal(t, "github", store.accounts[a.ID].Name)
}

func TestAccountService_Update_Validation(t *testing.T) {
	db, _ := newMockDB(t)
	store := newMemStore()
	u := store.addUser("default")
	a := store.addAccount(u.ID, "github", nil)

	svc := NewAccountService(db, store, nopLogger{})
	ctx := context.Background()

	_, err := svc.Update(ctx, currentUser(u), a.ID, UpdateAccountInput{})
	assert.ErrorIs(t, err, common.ErrorValidation)

	_, err = svc.Update(ctx, currentUser(u), a.ID, UpdateAccountInput{Name: common.Null[string]()})
	assert.ErrorIs(t, err, common.ErrorValidation)

	_, err = svc.Update(ctx, currentUser(u), a.ID, UpdateAccountInput{Name: common.Some("  ")})
	assert.ErrorIs(t, err, common.ErrorValidation)
}

func TestAccountService_Delete_RemovesConnectionsFirst(t *testing.T) {
	db, mock := newMockDB(t)
	store := newMemStore()
	u := store.addUser("default")
	a := store.addAccount(u.ID, "github", nil)
	i := store.addIdentity(u.ID, models.IdentityMail, "me@example.com")
	store.link(a.ID, i.ID)

	mock.ExpectBegin()
	mock.ExpectCommit()

	svc := NewAccountService(db, store, nopLogger{})
	require.NoError(t, svc.Delete(context.Background(), currentUser(u), a.ID))

	assert.Empty(t, store.accounts)
	assert.Empty(t, store.connections)
	assert.Len(t, store.identities, 1)

	identity, err := NewIdentityService(db, store, nopLogger{}).Get(context.Background(), currentUser(u), i.ID)
	require.NoError(t, err)
	assert.Empty(t, identity.Accounts)
}

func TestAccountRepositoryFake_RejectsDeleteWhileLinked(t *testing.T) {
	store := newMemStore()
	u := store.addUser("default")
	a := store.addAccount(u.ID, "github", nil)
	i := store.addIdentity(u.ID, models.IdentityMail, "me@example.com")
	store.link(a.ID, i.ID)

	assert.ErrorIs(t, store.Accounts(nil).Delete(context.Background(), a.ID), errForeignKey)
	assert.ErrorIs(t, store.Identities(nil).Delete(context.Background(), i.ID), errForeignKey)
	assert.Len(t, store.accounts, 1)
	assert.Len(t, store.identities, 1)
}

func TestAccountService_Delete_RollsBack(t *testing.T) {
	db, mock := newMockDB(t)
	store := newMemStore()
	u := store.addUser("default")
	a := store.addAccount(u.ID, "github", nil)
	store.fail["accounts.Delete"] = errBoom

	mock.ExpectBegin()
	mock.ExpectRollback()

	svc := NewAccountService(db, store, nopLogger{})
	err := svc.Delete(context.Background(), currentUser(u), a.ID)
	assert.ErrorIs(t, err, errBoom)
}

func TestAccountService_DeleteUnlinked(t *testing.T) {
	db, _ := newMockDB(t)
	store := newMemStore()
	u := store.addUser("default")
	linked := store.addAccount(u.ID, "github", nil)
	store.addAccount(u.ID, "orphan", nil)
	i := store.addIdentity(u.ID, models.IdentityMail, "me@example.com")
	store.link(linked.ID, i.ID)

	svc := NewAccountService(db, store, nopLogger{})
	n, err := svc.DeleteUnlinked(context.Background(), currentUser(u))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.Contains(t, store.accounts, linked.ID)
}

func TestAccountService_BulkImport(t *testing.T) {
	db, mock := newMockDB(t)
	store := newMemStore()
	u := store.addUser("default")
	store.addAccount(u.ID, "github", common.Ptr("octocat"))

	mock.ExpectBegin()
	mock.ExpectCommit()

	svc := NewAccountService(db, store, nopLogger{})
	res, err := svc.BulkImport(context.Background(), currentUser(u), []map[string]any{
		{"URL": "https://www.netflix.com/login", "Username": "me", "Password": "hunter2"},
		{"name": "github", "login": "octocat"},
		{"notes": "no name here"},
		{"title": "netflix.com", "email": "me"},
		{"service": "Spotify"},
	})
	require.NoError(t, err)

	assert.Equal(t, 2, res.Created)
	assert.Equal(t, 2, res.Skipped)
	assert.Equal(t, 1, res.Rejected)
	require.Len(t, res.Rows, 5)

	statuses := make([]importer.RowStatus, 0, len(res.Rows))
	for _, r := range res.Rows {
		statuses = append(statuses, r.Status)
	}
	assert.Equal(t, []importer.RowStatus{
		importer.RowCreated, importer.RowDuplicate, importer.RowRejected, importer.RowDuplicate, importer.RowCreated,
	}, statuses)

	names := map[string]bool{}
	for _, a := range store.accounts {
		names[a.Name] = true
		assert.Equal(t, u.ID, a.UserID)
		assert.Nil(t, a.Notes)
	}
	assert.Equal(t, map[string]bool{"github": true, "netflix": true, "Spotify": true}, names)
}
