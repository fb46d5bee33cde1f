/*
 * a basic example of serving structured-data HTTP and RPC requests
 * through a single pump
 */
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/llio/llio/buffer"
	"github.com/llio/llio/httpio"
	"github.com/llio/llio/iopipe"
	"github.com/llio/llio/pump"
	"github.com/llio/llio/rpc"
	"github.com/llio/llio/sd"
	"github.com/llio/llio/socket"
)

var opt_port = flag.Int("port", 8080, "port to listen on")

func main() {
	flag.Parse()

	router := httpio.NewRouter()
	router.Handle("/ping", &httpio.Node{
		Get: func(resp *httpio.Response, ctx *iopipe.Context, params interface{}) {
			resp.Result(sd.Map{"pong": true})
		},
	})

	rpcTemplate := rpc.NewServer()
	rpcTemplate.Handle("echo", func(params sd.Value, channels buffer.Channels, buf *buffer.Array) rpc.Status {
		rpc.BuildResponse(channels, buf, params)
		return rpc.Done
	})
	router.Handle("/rpc", &httpio.Node{Factory: rpc.NewFactory(rpcTemplate)})

	listener, err := socket.Create(socket.StreamTCP, uint16(*opt_port))
	if err != nil {
		fmt.Fprintf(os.Stderr, "listen: %s\n", err)
		os.Exit(1)
	}

	p := pump.NewPump()
	server := socket.NewServer(listener, func(ctx *iopipe.Context) ([]iopipe.Pipe, bool) {
		remoteHost, _ := ctx.Get("remote-host")
		remotePort, _ := ctx.Get("remote-port")
		host, _ := remoteHost.(string)
		port, _ := remotePort.(int64)
		return []iopipe.Pipe{httpio.NewResponder(router, host, port)}, true
	})

	chain := iopipe.NewChain([]iopipe.Pipe{server})
	p.AddChain(chain, 0)

	fmt.Printf("listening on :%d\n", *opt_port)
	p.Run(context.Background())
}
