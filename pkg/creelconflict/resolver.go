package creelconflict

import (
	"fmt"

	"github.com/mmilitzer/creel/pkg/creelmodule"
	"github.com/mmilitzer/creel/pkg/creelresolve"
)

// Resolve picks a winner for every conflict per policy, then rewrites graph
// in place: forwards every rejected member's dependents to the winner,
// merges supplicants, and rewrites any specification that matched a
// rejected version so it continues to match.
//
// Returns the chosen module for each conflict, in the same order as
// conflicts.
func Resolve(graph *creelmodule.Graph, conflicts []*Conflict, policy Policy, notifier creelresolve.Notifier) []*creelmodule.Module {
	if notifier == nil {
		notifier = creelresolve.NopNotifier()
	}
	chosen := make([]*creelmodule.Module, 0, len(conflicts))
	for _, conflict := range conflicts {
		winner := choose(graph, conflict.Members, policy)
		chosen = append(chosen, winner)
		for _, member := range conflict.Members {
			if member.ID() == winner.ID() {
				continue
			}
			graph.MergeSupplicants(winner.ID(), member.ID())
			graph.ReplaceModule(member.ID(), winner.ID(), true)
			graph.RewriteSpecifications(member.Identifier(), winner.Identifier())
			graph.RemoveSubtree(member.ID())
		}
		notifier.Info(fmt.Sprintf("resolved %d-way conflict to %s", len(conflict.Members), winner.Identifier()))
	}
	return chosen
}

// choose applies policy to an already version-sorted-descending Members
// slice (Conflict.Members, per Detect).
func choose(graph *creelmodule.Graph, members []*creelmodule.Module, policy Policy) *creelmodule.Module {
	switch policy {
	case Oldest:
		return members[len(members)-1]
	case ExplicitWins:
		for _, member := range members {
			if graph.ReachesExplicit(member.ID()) {
				return member
			}
		}
		return members[0] // no explicit chain found anywhere: fall back to NEWEST
	case Newest:
		fallthrough
	default:
		return members[0]
	}
}
