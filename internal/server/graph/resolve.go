package graph

import "github.com/andrii-malakhovtsev/accountmap/internal/server/models"

// Resolve joins flat identity, account and connection rows into both
// directions of the relation. Connections that reference an unknown account
// or identity are skipped. Input order is preserved and every nested slice
// is non-nil.
func Resolve(identities []models.Identity, accounts []models.Account, conns []models.Connection) ([]models.IdentityWithAccounts, []models.AccountWithIdentities) {
	identityIdx := make(map[string]int, len(identities))
	byIdentity := make([]models.IdentityWithAccounts, len(identities))
	for i, identity := range identities {
		identityIdx[identity.ID] = i
		byIdentity[i] = models.IdentityWithAccounts{Identity: identity, Accounts: []models.Account{}}
	}

	accountIdx := make(map[string]int, len(accounts))
	byAccount := make([]models.AccountWithIdentities, len(accounts))
	for i, a := range accounts {
		accountIdx[a.ID] = i
		byAccount[i] = models.AccountWithIdentities{Account: a, Identities: []models.Identity{}}
	}

	for _, c := range conns {
		ii, okI := identityIdx[c.IdentityID]
		ai, okA := accountIdx[c.AccountID]
		if !okI || !okA {
			continue
		}
		byIdentity[ii].Accounts = append(byIdentity[ii].Accounts, accounts[ai])
		byAccount[ai].Identities = append(byAccount[ai].Identities, identities[ii])
	}

	return byIdentity, byAccount
}
