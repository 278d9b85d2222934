package authz

import "fmt"

// Requirement is the role level an operation demands of its actor
type Requirement struct {
	maxLevel  int
	ownerOnly bool
}

// AtMost requires an effective level of at most max (more privileged or equal)
func AtMost(max int) Requirement {
	return Requirement{maxLevel: max}
}

// OwnerOnly requires an effective level of exactly LevelOwner
func OwnerOnly() Requirement {
	return Requirement{maxLevel: LevelOwner, ownerOnly: true}
}

// Satisfied reports whether the given effective level meets the requirement
func (r Requirement) Satisfied(level int) bool {
	if r.ownerOnly {
		return level == LevelOwner
	}
	return level <= r.maxLevel
}

func (r Requirement) String() string {
	if r.ownerOnly {
		return "owner"
	}
	return fmt.Sprintf("level<=%d", r.maxLevel)
}

// Operation requirements, checked by the services before any mutation.
// Deletion of a resource always demands the owner role; membership and
// grant management demand administrator or better; creating a child
// resource demands manager or better on the parent.
var (
	CompanyUpdate = AtMost(LevelAdministrator)
	CompanyDelete = OwnerOnly()

	ProjectCreate = AtMost(LevelManager)
	ProjectUpdate = AtMost(LevelManager)
	ProjectDelete = OwnerOnly()

	TaskCreate = AtMost(LevelManager)
	TaskUpdate = AtMost(LevelManager)
	TaskDelete = OwnerOnly()

	SubtaskCreate = AtMost(LevelManager)
	SubtaskUpdate = AtMost(LevelManager)
	SubtaskDelete = OwnerOnly()

	// NoteCreate applies to the resource the note is attached to
	NoteCreate = AtMost(LevelAdministrator)
	NoteRead   = AtMost(LevelAdministrator)

	// MemberManage covers adding and removing both company members and
	// resource grants. Removal additionally applies the peer rule: the
	// actor's level must not exceed the target's.
	MemberManage = AtMost(LevelAdministrator)
)

// MembershipCeiling is the most permissive (highest) membership level the
// company path admits when resolving access to a resource of the given
// kind. Memberships above the ceiling contribute nothing for that kind.
func MembershipCeiling(kind ResourceKind) int {
	switch kind {
	case KindCompany:
		return LevelGuest
	case KindProject:
		return LevelManager
	case KindTask, KindSubtask:
		return LevelAdministrator
	case KindNote:
		return LevelAdministrator
	default:
		return 0
	}
}

// ProjectGrantCeiling bounds the project-scoped grant path when it reaches
// down to tasks and subtasks
const ProjectGrantCeiling = LevelSupport

// NoteAttachmentCeiling bounds access to a note derived from the resource
// it is attached to. Note authors are never subject to it.
const NoteAttachmentCeiling = LevelAdministrator
