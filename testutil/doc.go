// Package testutil provides an in-memory repository for exercising the
// index store.
//
// This package is intended for use in tests and benchmarks only.
//
// # Repositories
//
//	repo := testutil.NewRepo(t, store.DefaultOptions())
//	tx := repo.StartTransaction(t)
//	a := tx.NewCommit(repo.Root())
//	op := tx.Commit(t)
//
// Every committed transaction records an operation whose heads include the
// commits it created, even when they were hidden again, so an index rebuilt
// from the operation log keeps them.
//
// # Random Graphs
//
//	rng := testutil.NewRNG(seed)
//	rng.CommitID(20)
package testutil
