package dto

// DisputeRequest carries a student's reason for disputing a result.
type DisputeRequest struct {
	Reason string `json:"reason" validate:"required,max=2000"`
}

// ResolveRequest carries the teacher's final marks for a disputed result.
type ResolveRequest struct {
	Marks   *float64 `json:"marks" validate:"required"`
	Comment string   `json:"comment" validate:"max=2000"`
}

// CommentRequest carries one teacher comment.
type CommentRequest struct {
	Text string `json:"text" validate:"required,max=2000"`
}
