package moderation

import (
	"context"
	"fmt"

	"github.com/tullo/wordguard/internal/models"
)

// Role is the outcome of an authorization check.
type Role int

const (
	RoleDenied Role = iota
	RoleModerator
	RoleSuperAdmin
)

func (r Role) String() string {
	switch r {
	case RoleModerator:
		return "moderator"
	case RoleSuperAdmin:
		return "super_admin"
	default:
		return "denied"
	}
}

// Allowed reports whether the role may administer the chat.
func (r Role) Allowed() bool {
	return r != RoleDenied
}

// GrantResult is the outcome of Grant.
type GrantResult int

const (
	GrantAdded GrantResult = iota
	GrantAlreadyModerator
	GrantSuperAdmin
)

// RevokeResult is the outcome of Revoke.
type RevokeResult int

const (
	RevokeRemoved RevokeResult = iota
	RevokeSuperAdmin
	RevokeNotModerator
)

// Authorizer decides who may administer a chat. It holds no state; every call
// reads the current grants from the store.
type Authorizer struct {
	store GrantStore
}

func NewAuthorizer(store GrantStore) *Authorizer {
	return &Authorizer{store: store}
}

// IsModerator returns the user's role in the chat. A super grant wins over any
// ordinary grant, and grants for other chats never apply.
func (a *Authorizer) IsModerator(ctx context.Context, chatID, userID int64) (Role, error) {
	grants, err := a.store.ModeratorGrants(ctx, userID)
	if err != nil {
		return RoleDenied, fmt.Errorf("failed to read grants: %w", err)
	}
	return roleFor(grants, chatID), nil
}

// Require is IsModerator that fails with ErrAuthorizationDenied for RoleDenied.
func (a *Authorizer) Require(ctx context.Context, chatID, userID int64) (Role, error) {
	role, err := a.IsModerator(ctx, chatID, userID)
	if err != nil {
		return RoleDenied, err
	}
	if !role.Allowed() {
		return RoleDenied, ErrAuthorizationDenied
	}
	return role, nil
}

// Grant makes the user a moderator of chatID. Existing coverage is reported
// without mutation.
func (a *Authorizer) Grant(ctx context.Context, chatID, userID int64, username string) (GrantResult, error) {
	role, err := a.IsModerator(ctx, chatID, userID)
	if err != nil {
		return GrantAdded, err
	}
	switch role {
	case RoleSuperAdmin:
		return GrantSuperAdmin, nil
	case RoleModerator:
		return GrantAlreadyModerator, nil
	}

	if err := a.store.UpsertUser(ctx, userID, username); err != nil {
		return GrantAdded, fmt.Errorf("failed to upsert user: %w", err)
	}

	inserted, err := a.store.InsertModeratorGrant(ctx, userID, chatID)
	if err != nil {
		return GrantAdded, fmt.Errorf("failed to insert grant: %w", err)
	}
	if !inserted {
		// a concurrent grant won the insert
		return GrantAlreadyModerator, nil
	}
	return GrantAdded, nil
}

// Revoke removes the user's grant for chatID. Super admins are never revoked.
func (a *Authorizer) Revoke(ctx context.Context, chatID, userID int64) (RevokeResult, error) {
	role, err := a.IsModerator(ctx, chatID, userID)
	if err != nil {
		return RevokeNotModerator, err
	}
	if role == RoleSuperAdmin {
		return RevokeSuperAdmin, nil
	}
	if chatID == models.SuperScope {
		return RevokeNotModerator, nil
	}

	deleted, err := a.store.DeleteModeratorGrant(ctx, userID, chatID)
	if err != nil {
		return RevokeNotModerator, fmt.Errorf("failed to delete grant: %w", err)
	}
	if !deleted {
		return RevokeNotModerator, nil
	}
	return RevokeRemoved, nil
}

func roleFor(grants []models.ModeratorGrant, chatID int64) Role {
	role := RoleDenied
	for _, g := range grants {
		if g.IsSuper() {
			return RoleSuperAdmin
		}
		if g.ChatID == chatID {
			role = RoleModerator
		}
	}
	return role
}
