package main

import (
	"context"

	"github.com/alecthomas/kong"
	mangokong "github.com/alecthomas/mango-kong"
)

var CLI struct {
	Send SendCommand       `cmd:"" help:"Send a payload over a flow-controlled HTTP/2 connection."`
	Man  mangokong.ManFlag `help:"Write man page." hidden:""`
}

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	kongCtx := kong.Parse(
		&CLI,
		kong.BindTo(ctx, (*context.Context)(nil)),
		kong.ConfigureHelp(kong.HelpOptions{
			Tree:    true,
			Compact: true,
		}),
		kong.Description(`flowgate demo client

Pushes a payload through an HTTP/2 connection while honoring connection-level flow control: sending pauses when the peer's window is exhausted and resumes on WINDOW_UPDATE.
		`),
	)
	err := kongCtx.Run()
	kongCtx.FatalIfErrorf(err)
}
