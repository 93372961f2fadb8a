// Package registry maps function identities to the marked functions compiled
// into a binary.
//
// A servant can only run functions it knows. When a zygote is published its
// name is looked up here, and the execution later invokes the registered
// Func. Modules add their functions at startup through the Module interface.
package registry
