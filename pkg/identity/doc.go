// Package identity holds the connection identity used to reach remote hosts
// and the bootstrap state machine that temporarily swaps it.
//
// An Identity travels with the context.Context handed to every remote
// operation; executors read it with FromContext instead of consulting
// shared state. The StateMachine swaps the normal identity for a bootstrap
// identity around a scoped block:
//
//	sm := identity.NewStateMachine(identity.Settings{
//	    Normal:    identity.Identity{User: "deploy"},
//	    Bootstrap: identity.Identity{User: "root"},
//	}, connector, hosts)
//	err := sm.ConnectWith(ctx, true, func(ctx context.Context) error {
//	    id, _ := identity.FromContext(ctx) // root
//	    return nil
//	})
//
// Nested ConnectWith calls are reentrant: only the outermost block that
// actually performed the activation restores the normal identity. Two
// independent bootstrap scopes must not run concurrently on one machine.
package identity
