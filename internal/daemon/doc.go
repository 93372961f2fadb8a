// Package daemon is the servant runtime. It owns a mount directory, keeps
// channels and slots as files and symlinks inside it, stores published
// zygotes and runs executions of registered functions.
//
// The daemon implements servant.Handler, so it can be driven in-process, by
// the socket.io transport or by the CLI subcommands.
//
// Layout of the mount:
//
//	<mount>/.channels/<name>    channel data
//	<mount>/.zygotes/<name>.yaml published zygotes
//	<mount>/<slot path>         symlink to the bound channel
package daemon
