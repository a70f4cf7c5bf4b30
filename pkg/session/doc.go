// Package session implements the REPL session core: per-session input
// accumulation, prompt selection, the session registry and global exit.
//
// Invariants:
// - The local session always has id 0.
// - Remote sessions get ids 1, 2, 3, ... in order of creation; ids are never reused.
// - A complete unit is dispatched to the engine exactly once, then the buffer resets.
// - After DestroyAll the registry is empty and destroyed sessions ignore further input.
// - Manager, Session and ExitHandler are not safe for concurrent use; every
//   call must run on the reactor loop goroutine.
//
// Usage:
//
//	mgr, _ := session.NewManager(session.ManagerConfig{Engine: eng, Logger: logger})
//	exit, _ := session.NewExitHandler(session.ExitConfig{Manager: mgr})
//	local, _ := mgr.OpenLocal(localEditor)
//	remote, _ := mgr.OpenRemote(connEditor)
//	_, _ = local, remote
package session
