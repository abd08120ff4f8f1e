package usecase

import (
	"strings"

	"hostel-ingest-service/internal/domain/entity"
	"hostel-ingest-service/pkg/parser"
)

// BranchResolver maps a room description to a branch of one organization
type BranchResolver struct {
	branches      []*entity.Branch
	defaultBranch *entity.Branch
}

// NewBranchResolver builds a resolver over the active branches of an
// organization. defaultBranchID may be nil.
func NewBranchResolver(branches []*entity.Branch, defaultBranchID *uint) *BranchResolver {
	r := &BranchResolver{branches: branches}
	if defaultBranchID != nil {
		for _, b := range branches {
			if b.ID == *defaultBranchID {
				r.defaultBranch = b
				break
			}
		}
	}
	if r.defaultBranch == nil && len(branches) == 1 {
		r.defaultBranch = branches[0]
	}
	return r
}

// Resolve returns the branch whose longest keyword occurs in room, the
// default branch when none does, or entity.ErrBranchUnresolved.
func (r *BranchResolver) Resolve(room string) (*entity.Branch, error) {
	folded := parser.Fold(room)

	var best *entity.Branch
	bestLen := 0
	if strings.TrimSpace(folded) != "" {
		for _, b := range r.branches {
			for _, kw := range b.Keywords() {
				kw = parser.Fold(kw)
				if len(kw) > bestLen && strings.Contains(folded, kw) {
					best, bestLen = b, len(kw)
				}
			}
		}
	}
	if best != nil {
		return best, nil
	}
	if r.defaultBranch != nil {
		return r.defaultBranch, nil
	}
	return nil, entity.ErrBranchUnresolved
}
