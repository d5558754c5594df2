package services

import (
	"context"
	"database/sql"

	"github.com/andrii-malakhovtsev/accountmap/internal/server/graph"
	"github.com/andrii-malakhovtsev/accountmap/internal/server/models"
	"github.com/andrii-malakhovtsev/accountmap/internal/server/repositories/repomanager"
)

// GraphService projects the current user's data into the recovery graph.
type GraphService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
}

func NewGraphService(db *sql.DB, m repomanager.RepositoryManager) *GraphService {
	return &GraphService{db: db, repomanager: m}
}

// Project returns the graph together with its aggregate counts.
func (s *GraphService) Project(ctx context.Context, cu models.CurrentUser) (graph.Graph, graph.Summary, error) {
	snap, err := loadSnapshot(ctx, s.repomanager, s.db, cu.ID)
	if err != nil {
		return graph.Graph{}, graph.Summary{}, err
	}
	byIdentity, _ := graph.Resolve(snap.identities, snap.accounts, snap.connections)
	g := graph.Project(byIdentity, snap.accounts)
	return g, graph.Summarize(g), nil
}
