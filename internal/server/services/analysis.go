package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/andrii-malakhovtsev/accountmap/internal/common"
	"github.com/andrii-malakhovtsev/accountmap/internal/logging"
	"github.com/andrii-malakhovtsev/accountmap/internal/server/graph"
	"github.com/andrii-malakhovtsev/accountmap/internal/server/models"
	"github.com/andrii-malakhovtsev/accountmap/internal/server/repositories/repomanager"
)

// Analyst turns a JSON description of accounts into a short text review.
type Analyst interface {
	Analyze(ctx context.Context, payload []byte) (string, error)
}

// AnalysisService forwards the user's accounts to an Analyst.
type AnalysisService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	analyst     Analyst
	logger      logging.Logger
}

// NewAnalysisService builds the service. A nil analyst disables analysis.
func NewAnalysisService(db *sql.DB, m repomanager.RepositoryManager, a Analyst, l logging.Logger) *AnalysisService {
	return &AnalysisService{db: db, repomanager: m, analyst: a, logger: l.With("module", "analysis_service")}
}

// ErrNoAccounts is returned by Analyze when the user has nothing to review.
var ErrNoAccounts = errors.New("no accounts to analyze")

type analysisIdentity struct {
	Type  models.IdentityType `json:"type"`
	Value string              `json:"value"`
}

type analysisAccount struct {
	Name       string             `json:"name"`
	Username   *string            `json:"username"`
	Categories []string           `json:"categories"`
	Status     graph.Status       `json:"status"`
	Identities []analysisIdentity `json:"identities"`
}

func (s *AnalysisService) Analyze(ctx context.Context, cu models.CurrentUser) (string, error) {
	if s.analyst == nil {
		return "", common.ErrAIDisabled
	}

	snap, err := loadSnapshot(ctx, s.repomanager, s.db, cu.ID)
	if err != nil {
		return "", err
	}
	if len(snap.accounts) == 0 {
		return "", ErrNoAccounts
	}

	_, byAccount := graph.Resolve(snap.identities, snap.accounts, snap.connections)
	payload := make([]analysisAccount, 0, len(byAccount))
	for _, a := range byAccount {
		ids := make([]analysisIdentity, 0, len(a.Identities))
		for _, i := range a.Identities {
			ids = append(ids, analysisIdentity{Type: i.Type, Value: i.Value})
		}
		payload = append(payload, analysisAccount{
			Name:       a.Name,
			Username:   a.Username,
			Categories: a.Categories,
			Status:     graph.Classify(len(a.Identities)),
			Identities: ids,
		})
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal analysis payload: %w", err)
	}

	text, err := s.analyst.Analyze(ctx, body)
	if err != nil {
		s.logger.Warn(ctx, "ai analysis failed", "error", err)
		return "", err
	}
	return text, nil
}
