// Package remote runs commands and moves files on target hosts.
//
// Two executors ship: LocalExecutor runs everything on the control machine
// and SSHExecutor talks to hosts over SSH. Executors read the identity to
// connect with from the context (see identity.FromContext), so the bootstrap
// state machine can swap users without touching the executor.
package remote
