package errors

import "fmt"

// Error codes surfaced to clients in ErrorResponse.Code.
const (
	CodeTreeNotFound       = "TREE_NOT_FOUND"
	CodeNodeNotFound       = "NODE_NOT_FOUND"
	CodeLabelRequired      = "LABEL_REQUIRED"
	CodeParentRequired     = "PARENT_REQUIRED"
	CodeParentNotGroup     = "PARENT_NOT_GROUP"
	CodeNotASkill          = "NOT_A_SKILL"
	CodeInvalidRating      = "INVALID_RATING"
	CodeInvalidStatus      = "INVALID_STATUS"
	CodeSelfReference      = "SELF_REFERENTIAL_EDGE"
	CodeDuplicateEdge      = "DUPLICATE_EDGE"
	CodeCyclicDependency   = "CYCLIC_DEPENDENCY"
	CodeAlreadyHasParent   = "ALREADY_HAS_PARENT"
	CodeConcurrentWrite    = "CONCURRENT_MODIFICATION"
	CodeStorageUnavailable = "STORAGE_UNAVAILABLE"
	CodeTextTooLong        = "TEXT_TOO_LONG"
	CodeLimitExceeded      = "LIMIT_EXCEEDED"
)

// ErrTreeNotFound is returned when a root id or slug does not name a tree of the user.
func ErrTreeNotFound(ref string) *AppError {
	return NewNotFoundError("tree").
		WithCode(CodeTreeNotFound).
		WithDetail("tree", ref)
}

// ErrTreeNotOwned mirrors the message used when deleting a tree fails.
func ErrTreeNotOwned(ref string) *AppError {
	e := ErrTreeNotFound(ref)
	e.Message = "Tree not found or you do not own it"
	return e
}

func ErrNodeNotFound(id int64) *AppError {
	return NewNotFoundError(fmt.Sprintf("node %d", id)).
		WithCode(CodeNodeNotFound).
		WithDetail("node_id", id)
}

func ErrLabelRequired() *AppError {
	return NewValidationError("Label is required").WithCode(CodeLabelRequired)
}

func ErrParentAndLabelRequired() *AppError {
	return NewValidationError("Parent node and label are required").WithCode(CodeParentRequired)
}

func ErrParentAndTitleRequired() *AppError {
	return NewValidationError("Parent node and title are required").WithCode(CodeParentRequired)
}

func ErrParentNotGroup(id int64) *AppError {
	return NewBusinessRuleError("children can only be added to group nodes").
		WithCode(CodeParentNotGroup).
		WithDetail("node_id", id)
}

func ErrNotASkill(id int64) *AppError {
	return NewBusinessRuleError("node does not reference a skill").
		WithCode(CodeNotASkill).
		WithDetail("node_id", id)
}

func ErrSelfReferentialEdge() *AppError {
	return NewBusinessRuleError("Cannot create an edge from a node to itself").WithCode(CodeSelfReference)
}

func ErrDuplicateEdge() *AppError {
	return NewConflictError("An edge between these nodes already exists").WithCode(CodeDuplicateEdge)
}

func ErrCyclicDependency() *AppError {
	return NewBusinessRuleError("Creating this edge would result in a cyclic dependency").WithCode(CodeCyclicDependency)
}

func ErrAlreadyHasParent(id int64) *AppError {
	return NewConflictError("node already has a parent").
		WithCode(CodeAlreadyHasParent).
		WithDetail("node_id", id)
}

func ErrTextTooLong(field string, limit int) *AppError {
	return NewValidationError(fmt.Sprintf("%s exceeds maximum length", field)).
		WithCode(CodeTextTooLong).
		WithDetail("field", field).
		WithDetail("max_length", limit)
}

func ErrLimitExceeded(what string, limit int) *AppError {
	return NewBusinessRuleError(fmt.Sprintf("maximum number of %s reached", what)).
		WithCode(CodeLimitExceeded).
		WithDetail("limit", limit)
}

func ErrStorageUnavailable(err error) *AppError {
	return NewUnavailableError("storage").
		WithCode(CodeStorageUnavailable).
		WithCause(err)
}

func ErrConcurrentWrite(userID int64) *AppError {
	return NewConflictError("another write for this user is in progress").
		WithCode(CodeConcurrentWrite).
		WithDetail("user_id", userID)
}
