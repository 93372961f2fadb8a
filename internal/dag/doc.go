// Package dag provides a small, concurrency-safe directed acyclic graph keyed
// by string IDs. The workflow uses it to hold the dependency edges between
// recorded operations and to compute the waves of independent operations
// that may run concurrently.
package dag
