package identity

import (
	"context"
	"errors"
	"time"

	pkgerrors "github.com/angelmondragon/rentsync/pkg/errors"
	"github.com/angelmondragon/rentsync/pkg/logger"
	"github.com/angelmondragon/rentsync/pkg/rentalapi"
)

// profileAPI is the slice of the chat API the resolver needs.
type profileAPI interface {
	Profile(ctx context.Context) (*rentalapi.Profile, error)
	UserByID(ctx context.Context, userID string) (*rentalapi.User, error)
	Token() string
}

// ResolverParams configure identity resolution.
type ResolverParams struct {
	API    profileAPI
	Store  Store
	Logger *logger.Logger
}

// Resolver produces the polling actor's identity. A resolution failure is
// terminal for the synchronizer: polling must not start without a resolved
// self, because message direction cannot be attributed.
type Resolver struct {
	api   profileAPI
	store Store
	logg  *logger.Logger
}

func NewResolver(params ResolverParams) (*Resolver, error) {
	if params.API == nil {
		return nil, errors.New("chat api client is required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	store := params.Store
	if store == nil {
		store = NewMemoryStore()
	}
	return &Resolver{api: params.API, store: store, logg: params.Logger}, nil
}

// Resolve returns the current identity. The mirror is consulted first so a
// restart with the same token skips the profile round trip; otherwise the
// profile and role endpoints are hit and the result is mirrored.
func (r *Resolver) Resolve(ctx context.Context) (*Identity, error) {
	token := r.api.Token()

	if mirrored, err := r.store.Load(ctx); err != nil {
		r.logg.Warn(r.logg.WithField(ctx, "error", err.Error()), "identity mirror read failed, resolving fresh")
	} else if mirrored != nil && mirrored.UserID != "" && mirrored.Role != "" && mirrored.Token == token {
		return mirrored, nil
	}

	profile, err := r.api.Profile(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "resolve profile")
	}

	userID := profile.UserID.String()
	role, err := r.resolveRole(ctx, userID)
	if err != nil {
		return nil, err
	}

	resolved := Identity{
		UserID:     userID,
		Role:       role,
		Token:      token,
		ResolvedAt: time.Now().UTC(),
	}
	if err := r.store.Save(ctx, resolved); err != nil {
		// The mirror is convenience, not correctness.
		r.logg.Warn(r.logg.WithField(ctx, "error", err.Error()), "identity mirror write failed")
	}
	ctx = r.logg.WithFields(ctx, map[string]any{"user_id": userID, "role": role})
	r.logg.Info(ctx, "identity resolved")
	return &resolved, nil
}

func (r *Resolver) resolveRole(ctx context.Context, userID string) (string, error) {
	user, err := r.api.UserByID(ctx, userID)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "resolve role")
	}
	return user.RoleName(), nil
}

// Invalidate drops the mirrored identity, used when the session expires.
func (r *Resolver) Invalidate(ctx context.Context) {
	if err := r.store.Clear(ctx); err != nil {
		r.logg.Warn(r.logg.WithField(ctx, "error", err.Error()), "identity mirror clear failed")
	}
}
