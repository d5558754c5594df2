// Package graph projects a user's identities, accounts and connections into
// the node/link model drawn by the map view, and derives each account's
// security status from how many identities protect it.
//
// Every projection is computed from the rows it is given; nothing is cached
// between calls.
package graph

import (
	"encoding/json"

	"github.com/andrii-malakhovtsev/accountmap/internal/server/models"
)

// Status classifies an account by its number of linked identities.
type Status string

const (
	StatusInDanger Status = "In Danger"
	StatusWarning  Status = "Warning"
	StatusSecure   Status = "Secure"
)

// Classify maps an incoming edge count to a Status.
func Classify(k int) Status {
	switch {
	case k <= 0:
		return StatusInDanger
	case k == 1:
		return StatusWarning
	default:
		return StatusSecure
	}
}

// Node is either a *HubNode (an identity) or a *LeafNode (an account).
type Node interface {
	NodeID() string
	node()
}

// HubNode is an identity in the graph.
type HubNode struct {
	ID               string
	Type             models.IdentityType
	Value            string
	ImpactedAccounts int
}

func (h *HubNode) NodeID() string { return h.ID }
func (*HubNode) node()            {}

func (h *HubNode) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Kind             string              `json:"kind"`
		ID               string              `json:"id"`
		Type             models.IdentityType `json:"type"`
		Value            string              `json:"value"`
		ImpactedAccounts int                 `json:"impactedAccounts"`
	}{"hub", h.ID, h.Type, h.Value, h.ImpactedAccounts})
}

// LeafNode is an account in the graph.
type LeafNode struct {
	ID               string
	Name             string
	Username         *string
	Categories       []string
	LinkedIdentities int
	Status           Status
}

func (l *LeafNode) NodeID() string { return l.ID }
func (*LeafNode) node()            {}

func (l *LeafNode) MarshalJSON() ([]byte, error) {
	cats := l.Categories
	if cats == nil {
		cats = []string{}
	}
	return json.Marshal(struct {
		Kind             string   `json:"kind"`
		ID               string   `json:"id"`
		Name             string   `json:"name"`
		Username         *string  `json:"username"`
		Categories       []string `json:"categories"`
		LinkedIdentities int      `json:"linkedIdentities"`
		Status           Status   `json:"status"`
	}{"leaf", l.ID, l.Name, l.Username, cats, l.LinkedIdentities, l.Status})
}

// Link is a directed edge from an identity to an account it protects.
type Link struct {
	Source string `json:"source"`
	Target string `json:"target"`
}

// Graph is the projection result.
type Graph struct {
	Nodes []Node `json:"nodes"`
	Links []Link `json:"links"`
}

// Summary aggregates a Graph for list views and dashboards.
type Summary struct {
	Identities int `json:"identities"`
	Accounts   int `json:"accounts"`
	Links      int `json:"links"`
	InDanger   int `json:"inDanger"`
	Warning    int `json:"warning"`
	Secure     int `json:"secure"`
}

// Project builds the graph for identities (each with the accounts it
// secures) and the full account list of the same user.
//
// Each identity yields one hub, each distinct account one leaf no matter how
// many identities reach it, and each (identity, account) pair one link.
// Accounts present only in accounts, with no connection at all, still appear
// exactly once.
func Project(identities []models.IdentityWithAccounts, accounts []models.Account) Graph {
	g := Graph{
		Nodes: make([]Node, 0, len(identities)+len(accounts)),
		Links: make([]Link, 0),
	}

	leaves := make(map[string]*LeafNode, len(accounts))
	hubs := make(map[string]*HubNode, len(identities))
	pairs := make(map[Link]struct{})

	addLeaf := func(a models.Account) {
		if _, seen := leaves[a.ID]; seen {
			return
		}
		leaf := &LeafNode{ID: a.ID, Name: a.Name, Username: a.Username, Categories: a.Categories}
		leaves[a.ID] = leaf
		g.Nodes = append(g.Nodes, leaf)
	}

	for _, identity := range identities {
		hub, seen := hubs[identity.ID]
		if !seen {
			hub = &HubNode{ID: identity.ID, Type: identity.Type, Value: identity.Value}
			hubs[identity.ID] = hub
			g.Nodes = append(g.Nodes, hub)
		}

		for _, a := range identity.Accounts {
			addLeaf(a)

			link := Link{Source: identity.ID, Target: a.ID}
			if _, dup := pairs[link]; dup {
				continue
			}
			pairs[link] = struct{}{}
			g.Links = append(g.Links, link)

			hub.ImpactedAccounts++
			leaves[a.ID].LinkedIdentities++
		}
	}

	for _, a := range accounts {
		addLeaf(a)
	}

	for _, leaf := range leaves {
		leaf.Status = Classify(leaf.LinkedIdentities)
	}

	return g
}

// Summarize counts nodes by kind and leaves by status.
func Summarize(g Graph) Summary {
	s := Summary{Links: len(g.Links)}
	for _, n := range g.Nodes {
		switch n := n.(type) {
		case *HubNode:
			s.Identities++
		case *LeafNode:
			s.Accounts++
			switch n.Status {
			case StatusInDanger:
				s.InDanger++
			case StatusWarning:
				s.Warning++
			case StatusSecure:
				s.Secure++
			}
		}
	}
	return s
}

// StatusOf returns the status of account id in g, and false when g has no
// such account.
func StatusOf(g Graph, id string) (Status, bool) {
	for _, n := range g.Nodes {
		if leaf, ok := n.(*LeafNode); ok && leaf.ID == id {
			return leaf.Status, true
		}
	}
	return "", false
}
