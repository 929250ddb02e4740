package audit

import "context"

// ActorSource answers who is making the current change. It is the session
// collaborator consulted when an audit row is saved; it is never validated here.
type ActorSource interface {
	CurrentMember(ctx context.Context) *int64
	CurrentQuintessUser(ctx context.Context) *int64
}

type actorsKey struct{}

type actors struct {
	member       *int64
	quintessUser *int64
}

// WithActors attaches the acting member and staff user to ctx. Either may be nil.
func WithActors(ctx context.Context, member, quintessUser *int64) context.Context {
	return context.WithValue(ctx, actorsKey{}, actors{member: member, quintessUser: quintessUser})
}

// ContextActors reads the actors attached with WithActors.
type ContextActors struct{}

func (ContextActors) CurrentMember(ctx context.Context) *int64 {
	if a, ok := ctx.Value(actorsKey{}).(actors); ok {
		return a.member
	}
	return nil
}

func (ContextActors) CurrentQuintessUser(ctx context.Context) *int64 {
	if a, ok := ctx.Value(actorsKey{}).(actors); ok {
		return a.quintessUser
	}
	return nil
}

// StaticActors always reports the same actors; useful for batch jobs.
type StaticActors struct {
	Member       *int64
	QuintessUser *int64
}

func (s StaticActors) CurrentMember(context.Context) *int64       { return s.Member }
func (s StaticActors) CurrentQuintessUser(context.Context) *int64 { return s.QuintessUser }
