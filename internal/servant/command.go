package servant

import (
	"context"
	"strings"
)

// Command names understood by the servant runtime.
const (
	CmdChannelCreate  = "channel create"
	CmdChannelDestroy = "channel destroy"
	CmdTouch          = "touch"
	CmdPublish        = "publish"
	CmdExecute        = "execute"
	CmdWait           = "wait"
	CmdCancel         = "cancel"
)

// Command is one control request. Payload carries structured input (slot,
// zygote or bindings) as YAML.
type Command struct {
	Name    string   `json:"name" yaml:"name"`
	Args    []string `json:"args,omitempty" yaml:"args,omitempty"`
	Payload []byte   `json:"payload,omitempty" yaml:"payload,omitempty"`
}

func (c Command) String() string {
	if len(c.Args) == 0 {
		return c.Name
	}
	return c.Name + " " + strings.Join(c.Args, " ")
}

// Response mirrors what a shell command would produce.
type Response struct {
	Stdout   string `json:"stdout" yaml:"stdout"`
	Stderr   string `json:"stderr" yaml:"stderr"`
	ExitCode int    `json:"exit_code" yaml:"exit_code"`
}

// Fail builds a failed response.
func Fail(code int, stderr string) Response {
	return Response{ExitCode: code, Stderr: stderr}
}

// Commander carries commands to a servant. The returned error reports a
// transport failure; command failures are described by the Response.
type Commander interface {
	Run(ctx context.Context, cmd Command) (Response, error)
}

// Handler executes commands on the servant side.
type Handler interface {
	Handle(ctx context.Context, cmd Command) Response
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(ctx context.Context, cmd Command) Response

func (f HandlerFunc) Handle(ctx context.Context, cmd Command) Response { return f(ctx, cmd) }

type inProcess struct {
	h Handler
}

// InProcess returns a Commander that calls h directly. It is used when the
// servant runs in the same process, and in tests.
func InProcess(h Handler) Commander {
	return &inProcess{h: h}
}

func (p *inProcess) Run(ctx context.Context, cmd Command) (Response, error) {
	if err := ctx.Err(); err != nil {
		return Response{}, err
	}
	return p.h.Handle(ctx, cmd), nil
}
