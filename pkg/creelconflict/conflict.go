// Package creelconflict partitions identified modules by logical identity
// and chooses one winner per partition.
package creelconflict

import (
	"sort"

	"github.com/mmilitzer/creel/pkg/creelmodule"
)

// Conflict is a non-singleton set of modules sharing a logical identity but
// differing identifiers. Members is sorted descending by identifier
// version.
type Conflict struct {
	Members []*creelmodule.Module
}

// Detect partitions identified modules by SameLogicalIdentity, returning one
// Conflict per class with more than one surviving member. Members that
// raise ErrIncompatibleIdentifiers against the class representative are
// dropped from the partition entirely and never conflict.
func Detect(modules []*creelmodule.Module) []*Conflict {
	classes := map[string][]*creelmodule.Module{}
	for _, module := range modules {
		if module.Identifier() == nil {
			continue
		}
		classes[module.Identifier().GroupName()] = append(classes[module.Identifier().GroupName()], module)
	}

	var conflicts []*Conflict
	for _, members := range classes {
		if len(members) < 2 {
			continue
		}
		representative := members[0].Identifier()
		var compatible []*creelmodule.Module
		for _, member := range members {
			if _, err := member.Identifier().Compare(representative); err != nil {
				continue
			}
			compatible = append(compatible, member)
		}
		if len(compatible) < 2 {
			continue
		}
		sort.SliceStable(compatible, func(i, j int) bool {
			ordering, err := compatible[i].Identifier().Compare(compatible[j].Identifier())
			if err != nil {
				return false
			}
			return ordering == creelmodule.Greater
		})
		conflicts = append(conflicts, &Conflict{Members: compatible})
	}
	return conflicts
}
