// Package servant is the client side of the channel/slot/zygote protocol
// spoken with a servant runtime.
//
//   - A Channel is a named conduit that carries one encoded value.
//   - A Slot is an endpoint of a function (input or output) exposed as a
//     path under the servant mount and bound to exactly one channel.
//   - A Zygote is a published function: its identity, its slot manifest and
//     the environment manifest needed to run it.
//   - An Execution is one run of a zygote with a full set of bindings.
//
// Every control operation is a Command sent through a Commander. Commands
// that exit non-zero or write to stderr fail with errs.RemoteCommandError and
// are never retried.
package servant
