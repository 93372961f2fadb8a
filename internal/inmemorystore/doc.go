// Package inmemorystore provides a thread-safe, in-memory implementation
// of the cache.Store interface. It lives as long as the process and is the
// default result cache for local sessions and tests.
package inmemorystore
