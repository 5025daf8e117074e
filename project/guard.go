// Package project implements the state container (SPEC_FULL.md §4.11):
// a Container holding named data frames and pipelines plus the two
// shared encoding dictionaries, and the operations spec §6 groups under
// Project (delete, list_projects, list_data_frames, list_pipelines).
//
// Adapted from driver/driver.go's Driver/catalog/Connector triad: the
// catalog map guarded by a sync.Mutex plus monotonic id counters becomes
// Container's frame/pipeline maps guarded by RWGuard.
package project

import "sync"

// RWGuard realizes the concurrency model's weak-write/strong-write
// distinction (§5): a weak write (fitting a tree, appending rows to a
// scratch copy) only needs to exclude other writers, not readers, so it
// takes publishMu, which readers never touch, and never blocks an
// in-flight transform; a strong write (publishing a finished fit,
// deleting a frame) must also exclude concurrent reads of the structure
// being replaced, so it takes the RWMutex's write side for the short
// window where the swap itself happens.
type RWGuard struct {
	mu        sync.RWMutex
	publishMu sync.Mutex
}

// RLock/RUnlock guard a read (list, transform against a published
// model).
func (g *RWGuard) RLock()   { g.mu.RLock() }
func (g *RWGuard) RUnlock() { g.mu.RUnlock() }

// WeakLock/WeakUnlock guard a write that mutates working state a reader
// never sees until published (growing a tree, accumulating a fit).
func (g *RWGuard) WeakLock()   { g.publishMu.Lock() }
func (g *RWGuard) WeakUnlock() { g.publishMu.Unlock() }

// StrongLock/StrongUnlock additionally exclude the publication instant
// itself: callers hold the weak write lock for the bulk of a fit, then
// take the strong lock only around the pointer swap that makes the
// result visible, keeping the exclusive section as short as possible.
func (g *RWGuard) StrongLock()   { g.mu.Lock() }
func (g *RWGuard) StrongUnlock() { g.mu.Unlock() }
