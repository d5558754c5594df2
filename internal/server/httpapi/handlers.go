package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"

	"github.com/andrii-malakhovtsev/accountmap/internal/server/graph"
	"github.com/andrii-malakhovtsev/accountmap/internal/server/models"
	"github.com/andrii-malakhovtsev/accountmap/internal/server/services"
	"github.com/go-chi/chi/v5"
)

func (s *Server) listCategories(w http.ResponseWriter, _ *http.Request) {
	writeData(w, http.StatusOK, models.Categories)
}

func (s *Server) listIdentityTypes(w http.ResponseWriter, _ *http.Request) {
	writeData(w, http.StatusOK, models.IdentityTypes)
}

func (s *Server) getUser(w http.ResponseWriter, r *http.Request) {
	u, err := s.svc.Users.Get(r.Context(), currentUser(r))
	if err != nil {
		writeError(r.Context(), w, s.logger, err)
		return
	}
	writeData(w, http.StatusOK, u)
}

func (s *Server) issueToken(w http.ResponseWriter, r *http.Request) {
	tok, err := s.svc.Users.IssueToken(r.Context(), currentUser(r))
	if err != nil {
		writeError(r.Context(), w, s.logger, err)
		return
	}
	writeData(w, http.StatusOK, map[string]string{"token": tok})
}

func (s *Server) listAccounts(w http.ResponseWriter, r *http.Request) {
	items, err := s.svc.Accounts.List(r.Context(), currentUser(r))
	if err != nil {
		writeError(r.Context(), w, s.logger, err)
		return
	}
	writeData(w, http.StatusOK, items)
}

func (s *Server) mapAccounts(w http.ResponseWriter, r *http.Request) {
	items, err := s.svc.Accounts.ListWithIdentities(r.Context(), currentUser(r))
	if err != nil {
		writeError(r.Context(), w, s.logger, err)
		return
	}
	writeData(w, http.StatusOK, items)
}

func (s *Server) getAccount(w http.ResponseWriter, r *http.Request) {
	a, err := s.svc.Accounts.Get(r.Context(), currentUser(r), chi.URLParam(r, "id"))
	if err != nil {
		writeError(r.Context(), w, s.logger, err)
		return
	}
	writeData(w, http.StatusOK, a)
}

func (s *Server) createAccount(w http.ResponseWriter, r *http.Request) {
	var in services.CreateAccountInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(r.Context(), w, s.logger, err)
		return
	}
	a, err := s.svc.Accounts.Create(r.Context(), currentUser(r), in)
	if err != nil {
		writeError(r.Context(), w, s.logger, err)
		return
	}
	writeData(w, http.StatusCreated, a)
}

func (s *Server) updateAccount(w http.ResponseWriter, r *http.Request) {
	var in services.UpdateAccountInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(r.Context(), w, s.logger, err)
		return
	}
	a, err := s.svc.Accounts.Update(r.Context(), currentUser(r), chi.URLParam(r, "id"), in)
	if err != nil {
		writeError(r.Context(), w, s.logger, err)
		return
	}
	writeData(w, http.StatusOK, a)
}

func (s *Server) deleteAccount(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.svc.Accounts.Delete(r.Context(), currentUser(r), id); err != nil {
		writeError(r.Context(), w, s.logger, err)
		return
	}
	writeData(w, http.StatusOK, map[string]string{"id": id})
}

func (s *Server) deleteUnlinked(w http.ResponseWriter, r *http.Request) {
	n, err := s.svc.Accounts.DeleteUnlinked(r.Context(), currentUser(r))
	if err != nil {
		writeError(r.Context(), w, s.logger, err)
		return
	}
	writeData(w, http.StatusOK, map[string]int64{"deleted": n})
}

// bulkRequest accepts either a bare JSON array of rows or {"rows": [...]}.
type bulkRequest struct {
	Rows []map[string]any `json:"rows"`
}

func (b *bulkRequest) UnmarshalJSON(data []byte) error {
	if trimmed := bytes.TrimSpace(data); len(trimmed) > 0 && trimmed[0] == '[' {
		return json.Unmarshal(trimmed, &b.Rows)
	}
	type plain bulkRequest
	return json.Unmarshal(data, (*plain)(b))
}

func (s *Server) bulkImport(w http.ResponseWriter, r *http.Request) {
	var in bulkRequest
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(r.Context(), w, s.logger, err)
		return
	}
	res, err := s.svc.Accounts.BulkImport(r.Context(), currentUser(r), in.Rows)
	if err != nil {
		writeError(r.Context(), w, s.logger, err)
		return
	}
	writeData(w, http.StatusOK, res)
}

func (s *Server) listIdentities(w http.ResponseWriter, r *http.Request) {
	items, err := s.svc.Identities.List(r.Context(), currentUser(r))
	if err != nil {
		writeError(r.Context(), w, s.logger, err)
		return
	}
	writeData(w, http.StatusOK, items)
}

func (s *Server) mapIdentities(w http.ResponseWriter, r *http.Request) {
	items, err := s.svc.Identities.ListWithAccounts(r.Context(), currentUser(r))
	if err != nil {
		writeError(r.Context(), w, s.logger, err)
		return
	}
	writeData(w, http.StatusOK, items)
}

func (s *Server) getIdentity(w http.ResponseWriter, r *http.Request) {
	i, err := s.svc.Identities.Get(r.Context(), currentUser(r), chi.URLParam(r, "id"))
	if err != nil {
		writeError(r.Context(), w, s.logger, err)
		return
	}
	writeData(w, http.StatusOK, i)
}

func (s *Server) createIdentity(w http.ResponseWriter, r *http.Request) {
	var in services.CreateIdentityInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(r.Context(), w, s.logger, err)
		return
	}
	i, err := s.svc.Identities.Create(r.Context(), currentUser(r), in)
	if err != nil {
		writeError(r.Context(), w, s.logger, err)
		return
	}
	writeData(w, http.StatusCreated, i)
}

func (s *Server) updateIdentity(w http.ResponseWriter, r *http.Request) {
	var in services.UpdateIdentityInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(r.Context(), w, s.logger, err)
		return
	}
	i, err := s.svc.Identities.Update(r.Context(), currentUser(r), chi.URLParam(r, "id"), in)
	if err != nil {
		writeError(r.Context(), w, s.logger, err)
		return
	}
	writeData(w, http.StatusOK, i)
}

func (s *Server) deleteIdentity(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.svc.Identities.Delete(r.Context(), currentUser(r), id); err != nil {
		writeError(r.Context(), w, s.logger, err)
		return
	}
	writeData(w, http.StatusOK, map[string]string{"id": id})
}

type linkRequest struct {
	Identity struct {
		ID string `json:"id"`
	} `json:"identity"`
}

// decodeLink reads the {"identity":{"id":...}} body shared by link and
// unlink. It writes the error response itself and reports false on failure.
func (s *Server) decodeLink(w http.ResponseWriter, r *http.Request) (string, string, bool) {
	var in linkRequest
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(r.Context(), w, s.logger, err)
		return "", "", false
	}
	if in.Identity.ID == "" {
		writeMessage(w, http.StatusBadRequest, "Missing identity.id in request body")
		return "", "", false
	}
	return chi.URLParam(r, "accountId"), in.Identity.ID, true
}

func (s *Server) link(w http.ResponseWriter, r *http.Request) {
	accountID, identityID, ok := s.decodeLink(w, r)
	if !ok {
		return
	}
	c, err := s.svc.Connections.Link(r.Context(), currentUser(r), accountID, identityID)
	if err != nil {
		writeError(r.Context(), w, s.logger, err)
		return
	}
	writeData(w, http.StatusCreated, c)
}

func (s *Server) unlink(w http.ResponseWriter, r *http.Request) {
	accountID, identityID, ok := s.decodeLink(w, r)
	if !ok {
		return
	}
	if err := s.svc.Connections.Unlink(r.Context(), currentUser(r), accountID, identityID); err != nil {
		writeError(r.Context(), w, s.logger, err)
		return
	}
	writeData(w, http.StatusOK, map[string]string{"accountId": accountID, "identityId": identityID})
}

type graphResponse struct {
	graph.Graph
	Summary graph.Summary `json:"summary"`
}

func (s *Server) getGraph(w http.ResponseWriter, r *http.Request) {
	g, sum, err := s.svc.Graph.Project(r.Context(), currentUser(r))
	if err != nil {
		writeError(r.Context(), w, s.logger, err)
		return
	}
	writeData(w, http.StatusOK, graphResponse{Graph: g, Summary: sum})
}

// analyze answers with plain text on success, matching what the map view
// renders verbatim.
func (s *Server) analyze(w http.ResponseWriter, r *http.Request) {
	text, err := s.svc.Analysis.Analyze(r.Context(), currentUser(r))
	if err != nil {
		writeError(r.Context(), w, s.logger, err)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(text))
}
