package services

import (
	"context"
	"errors"
	"time"

	"authflow/internal/logging"
	"authflow/internal/repositories"
	"authflow/internal/session"
)

// SignInGate is the last word on credential sign-ins: the email must be
// verified and, with 2FA on, a fresh confirmation must exist. The
// confirmation is consumed so it admits exactly one session.
type SignInGate struct {
	store           repositories.Store
	confirmationTTL time.Duration
	log             logging.Logger
	now             func() time.Time
}

// NewSignInGate builds the gate. A zero confirmationTTL accepts
// confirmations of any age.
func NewSignInGate(store repositories.Store, confirmationTTL time.Duration, log logging.Logger) *SignInGate {
	return &SignInGate{
		store:           store,
		confirmationTTL: confirmationTTL,
		log:             log.With("component", "signin_gate"),
		now:             time.Now,
	}
}

func (g *SignInGate) Stage() session.Stage {
	return session.Stage{Name: "signin_gate", OnSignIn: g.Allow}
}

func (g *SignInGate) Allow(ctx context.Context, ev session.SignInEvent) error {
	if ev.Provider != session.ProviderCredentials {
		return nil
	}
	user, err := g.store.Repos().Users.GetByID(ctx, ev.UserID)
	if errors.Is(err, repositories.ErrNotFound) {
		return session.ErrSignInDenied
	}
	if err != nil {
		return err
	}
	if !user.IsVerified() {
		g.log.Warn(ctx, "denied: email not verified", "user_id", user.ID)
		return session.ErrSignInDenied
	}
	if !user.IsTwoFactorEnabled {
		return nil
	}

	stale := false
	err = g.store.WithTx(ctx, func(ctx context.Context, r *repositories.Repositories) error {
		c, err := r.Confirmations.GetByUserID(ctx, user.ID)
		if err != nil {
			return err
		}
		if g.confirmationTTL > 0 && g.now().Sub(c.CreatedAt) > g.confirmationTTL {
			stale = true
		}
		return r.Confirmations.DeleteByUserID(ctx, user.ID)
	})
	if errors.Is(err, repositories.ErrNotFound) {
		g.log.Warn(ctx, "denied: no two factor confirmation", "user_id", user.ID)
		return session.ErrSignInDenied
	}
	if err != nil {
		return err
	}
	if stale {
		g.log.Warn(ctx, "denied: two factor confirmation too old", "user_id", user.ID)
		return session.ErrSignInDenied
	}
	return nil
}

// ClaimsEnricher copies the current profile of the session's user into the
// claims on every issue and refresh.
type ClaimsEnricher struct {
	store repositories.Store
	log   logging.Logger
}

func NewClaimsEnricher(store repositories.Store, log logging.Logger) *ClaimsEnricher {
	return &ClaimsEnricher{store: store, log: log.With("component", "claims")}
}

func (e *ClaimsEnricher) Stage() session.Stage {
	return session.Stage{Name: "claims_enricher", OnClaimsRefresh: e.Enrich}
}

// Enrich never fails: a missing user or a store error leaves the claims as
// they are.
func (e *ClaimsEnricher) Enrich(ctx context.Context, c session.Claims) (session.Claims, error) {
	if c.Subject == "" {
		return c, nil
	}
	repos := e.store.Repos()
	user, err := repos.Users.GetByID(ctx, c.Subject)
	if err != nil {
		if !errors.Is(err, repositories.ErrNotFound) {
			e.log.Warn(ctx, "user lookup failed, claims unchanged", "user_id", c.Subject, "error", err)
		}
		return c, nil
	}

	c.Email = user.Email
	c.Name = ""
	if user.Name != nil {
		c.Name = *user.Name
	}
	c.Image = ""
	if user.Image != nil {
		c.Image = *user.Image
	}
	c.IsTwoFactorEnabled = user.IsTwoFactorEnabled

	n, err := repos.Accounts.CountByUserID(ctx, user.ID)
	if err != nil {
		e.log.Warn(ctx, "account count failed, isOauth unchanged", "user_id", user.ID, "error", err)
		return c, nil
	}
	c.IsOauth = n > 0
	return c, nil
}
