// Package llm provides the text-generation capability behind the simulation
// pipeline. Implementations differ only in backing provider; callers never
// branch on provider identity.
package llm

import "context"

// Role identifies which pipeline stage a generation call serves. Providers
// may route roles to different models.
type Role string

const (
	RoleDirector  Role = "director"
	RolePerformer Role = "performer"
	RoleModerator Role = "moderator"
)

// Request is a single generation request.
type Request struct {
	Role   Role
	System string
	Prompt string
}

// Client is the uniform generation contract: render text for a role given a
// prompt, or fail. Implementations must be safe for concurrent use.
type Client interface {
	Generate(ctx context.Context, req *Request) (string, error)
}
