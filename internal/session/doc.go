// Package session issues and refreshes signed session tokens.
//
// Sign-in and claim refresh run through a Pipeline of named stages. A stage
// may veto a sign-in (OnSignIn) or rewrite the claim set (OnClaimsRefresh);
// stages run in registration order and each can be tested on its own.
package session
