package session

import (
	"context"
	"errors"
	"fmt"
)

const ProviderCredentials = "credentials"

// ErrSignInDenied is returned by an OnSignIn hook that refuses the sign-in.
var ErrSignInDenied = errors.New("sign-in denied")

// SignInEvent describes a sign-in attempt about to be turned into a session.
type SignInEvent struct {
	Provider string
	UserID   string
}

type SignInHook func(ctx context.Context, ev SignInEvent) error

type ClaimsHook func(ctx context.Context, claims Claims) (Claims, error)

// Stage is one named step. Either hook may be nil.
type Stage struct {
	Name            string
	OnSignIn        SignInHook
	OnClaimsRefresh ClaimsHook
}

// StageError reports which stage failed.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("session stage %q: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

type Pipeline struct {
	stages []Stage
}

func NewPipeline(stages ...Stage) *Pipeline {
	p := &Pipeline{}
	for _, s := range stages {
		p.Use(s)
	}
	return p
}

func (p *Pipeline) Use(s Stage) {
	p.stages = append(p.stages, s)
}

// Stages returns the stage names in execution order.
func (p *Pipeline) Stages() []string {
	names := make([]string, 0, len(p.stages))
	for _, s := range p.stages {
		names = append(names, s.Name)
	}
	return names
}

// RunSignIn stops at the first stage that returns an error.
func (p *Pipeline) RunSignIn(ctx context.Context, ev SignInEvent) error {
	for _, s := range p.stages {
		if s.OnSignIn == nil {
			continue
		}
		if err := s.OnSignIn(ctx, ev); err != nil {
			return &StageError{Stage: s.Name, Err: err}
		}
	}
	return nil
}

// RunClaimsRefresh threads the claim set through every OnClaimsRefresh hook.
func (p *Pipeline) RunClaimsRefresh(ctx context.Context, claims Claims) (Claims, error) {
	for _, s := range p.stages {
		if s.OnClaimsRefresh == nil {
			continue
		}
		next, err := s.OnClaimsRefresh(ctx, claims)
		if err != nil {
			return claims, &StageError{Stage: s.Name, Err: err}
		}
		claims = next
	}
	return claims, nil
}
