// Package op holds the building blocks of a lazy workflow: marked functions
// (Func), recorded calls (Operation) and the handles that stand for their
// future results (Deferred, Value).
//
// An Operation materializes at most once. The first Force runs the
// Materializer supplied by the owning workflow; every later Force returns the
// cached result, or the captured failure, without running anything again.
package op
