package authz

import (
	"context"
	"fmt"
)

// Resolver computes the effective grant a user holds on a resource by
// taking the union of every admissible access path and keeping the most
// privileged one
type Resolver struct {
	store *Store
	index *Index
}

// NewResolver creates a resolver over the grant store and hierarchy index
func NewResolver(store *Store, index *Index) *Resolver {
	return &Resolver{store: store, index: index}
}

// Resolve returns the user's effective grant on the resource, or (nil, nil)
// when no path admits access. A nonexistent resource resolves exactly like
// an inaccessible one.
//
// Candidate paths, in specificity order:
//  1. a grant scoped to the exact resource (no ceiling)
//  2. for tasks and subtasks, a grant scoped to the containing project,
//     admitted up to ProjectGrantCeiling
//  3. membership in the containing company, admitted up to the per-kind
//     MembershipCeiling
//
// Notes resolve separately: the author always has full access, and anyone
// else goes through the attachment, capped at NoteAttachmentCeiling.
func (r *Resolver) Resolve(ctx context.Context, userID int64, kind ResourceKind, id int64) (*EffectiveGrant, error) {
	if kind == KindNote {
		return r.resolveNote(ctx, userID, id)
	}

	companyID, exists, err := r.index.CompanyOf(ctx, kind, id)
	if err != nil {
		return nil, fmt.Errorf("failed to locate resource: %w", err)
	}
	if !exists {
		return nil, nil
	}

	var candidates []EffectiveGrant

	scope, err := ScopeFor(kind, id)
	if err != nil {
		return nil, err
	}
	grant, err := r.store.GetGrant(ctx, userID, scope)
	if err != nil {
		return nil, err
	}
	if grant != nil {
		candidates = append(candidates, EffectiveGrant{
			RoleLevel: grant.Level,
			Tier:      grant.Tier,
			Source:    SourceResourceGrant,
		})
	}

	if kind == KindTask || kind == KindSubtask {
		projectGrant, err := r.projectGrant(ctx, userID, kind, id)
		if err != nil {
			return nil, err
		}
		if projectGrant != nil && projectGrant.Level <= ProjectGrantCeiling {
			candidates = append(candidates, EffectiveGrant{
				RoleLevel: projectGrant.Level,
				Tier:      projectGrant.Tier,
				Source:    SourceProjectGrant,
			})
		}
	}

	membership, err := r.store.GetMembership(ctx, userID, companyID)
	if err != nil {
		return nil, err
	}
	if membership != nil && membership.Level <= MembershipCeiling(kind) {
		candidates = append(candidates, EffectiveGrant{
			RoleLevel: membership.Level,
			Tier:      membership.Tier,
			Source:    SourceMembership,
		})
	}

	return best(candidates), nil
}

// projectGrant finds the user's grant on the project containing a task or
// subtask, if any
func (r *Resolver) projectGrant(ctx context.Context, userID int64, kind ResourceKind, id int64) (*ResourceGrant, error) {
	chain, err := r.index.Ancestors(ctx, kind, id)
	if err != nil {
		return nil, err
	}
	for _, a := range chain {
		if a.Kind != KindProject {
			continue
		}
		scope, err := ScopeFor(KindProject, a.ID)
		if err != nil {
			return nil, err
		}
		return r.store.GetGrant(ctx, userID, scope)
	}
	return nil, nil
}

func (r *Resolver) resolveNote(ctx context.Context, userID, noteID int64) (*EffectiveGrant, error) {
	ref, err := r.index.Note(ctx, noteID)
	if err != nil {
		return nil, fmt.Errorf("failed to locate note: %w", err)
	}
	if ref == nil {
		return nil, nil
	}

	if ref.AuthorID == userID {
		return &EffectiveGrant{
			RoleLevel: LevelOwner,
			Tier:      TierFull,
			Source:    SourceNoteAuthor,
		}, nil
	}

	// Personal notes are visible only to their author
	if ref.Scope.IsZero() {
		return nil, nil
	}

	attached, err := r.Resolve(ctx, userID, ref.Scope.Kind(), ref.Scope.ResourceID())
	if err != nil {
		return nil, err
	}
	if attached == nil || attached.RoleLevel > NoteAttachmentCeiling {
		return nil, nil
	}
	return attached, nil
}

// best keeps the candidate with the lowest level; earlier candidates win
// ties, so more specific paths take precedence
func best(candidates []EffectiveGrant) *EffectiveGrant {
	if len(candidates) == 0 {
		return nil
	}
	winner := candidates[0]
	for _, c := range candidates[1:] {
		if c.RoleLevel < winner.RoleLevel {
			winner = c
		}
	}
	return &winner
}
