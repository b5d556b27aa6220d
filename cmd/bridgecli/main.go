package main

// bridgecli is a small debugging client for the remote-object bridge
// protocol: it dials a peer over WebSocket, runs the handshake, prints the
// objects the peer advertised, and optionally invokes one method or
// connects one signal named on the command line.

import (
	"fmt"
	"net/http"
	"os"
	"runtime"
	"time"

	"github.com/docopt/docopt-go"

	"github.com/objectbridge/bridge/bridge"
	"github.com/objectbridge/bridge/bridgemetrics"
	"github.com/objectbridge/bridge/config"
	"github.com/objectbridge/bridge/globals"
	"github.com/objectbridge/bridge/transport"
)

var commandLine = `bridgecli
A debugging client for the remote-object bridge protocol.

Usage:
  bridgecli [--help] [--version] [--debug] [--endpoint=<addr>] [--metrics-address=<addr>] [--object=<name>] [--method=<name>] [--signal=<name>]
  bridgecli -h | --help
  bridgecli --version

Options:
  -h --help                  Show this screen.
  --version                  Show version.
  --debug                    Debug mode enabled, print log messages.
  --endpoint=<addr>          Connect to this peer as a websocket client.
  --metrics-address=<addr>   Serve Prometheus metrics on this address instead of not at all.
  --object=<name>            If given with --method or --signal, exercise that object.
  --method=<name>            Invoke this method on --object once connected.
  --signal=<name>            Connect to this signal on --object and print every emission.`

var logger = globals.Logger

func main() {
	var err error
	globals.Arguments, err = docopt.Parse(commandLine, nil, true, "bridgecli 1.0", false)
	if err != nil {
		fmt.Printf("error parsing options: %s\n", err)
		return
	}

	globals.InitializeLog(os.Stdout, os.Stderr)
	logger = globals.Logger.WithName("bridgecli")
	logger.Info("", "OS", runtime.GOOS, "ARCH", runtime.GOARCH, "GOMAXPROCS", runtime.GOMAXPROCS(0))

	endpoint := config.Settings.Endpoint
	if e, ok := globals.Arguments["--endpoint"].(string); ok && e != "" {
		endpoint = e
	}

	if addr, ok := globals.Arguments["--metrics-address"].(string); ok && addr != "" {
		go serveMetrics(addr)
	}

	dialTimeout := time.Duration(config.Settings.DialTimeoutSec) * time.Second
	tr, err := transport.DialWebSocket(endpoint, dialTimeout)
	if err != nil {
		logger.Error(err, "dial failed", "endpoint", endpoint)
		return
	}

	objectName, _ := globals.Arguments["--object"].(string)
	methodName, _ := globals.Arguments["--method"].(string)
	signalName, _ := globals.Arguments["--signal"].(string)

	ready := make(chan struct{})
	_ = bridge.New(tr, func(c *bridge.Channel) {
		defer close(ready)
		c.SetAutoIdle(config.Settings.AutoIdle)
		c.SetPropertyCaching(config.Settings.PropertyCache)
		objects := c.Objects()
		logger.Info("handshake complete", "object_count", len(objects))
		for name := range objects {
			logger.Info("discovered object", "name", name)
		}

		if objectName == "" {
			return
		}
		obj, ok := c.Object(objectName)
		if !ok {
			logger.Error(nil, "requested object not advertised by peer", "object", objectName)
			return
		}
		if methodName != "" {
			obj.Invoke(methodName, func(result any) {
				logger.Info("method result", "object", objectName, "method", methodName, "result", result)
			})
		}
		if signalName != "" {
			obj.Connect(signalName, func(args []any) {
				logger.Info("signal emitted", "object", objectName, "signal", signalName, "args", args)
			})
		}
	})
	<-ready

	for {
		time.Sleep(time.Second)
	}
}

func serveMetrics(addr string) {
	if err := http.ListenAndServe(addr, http.HandlerFunc(bridgemetrics.Handler)); err != nil {
		logger.Error(err, "metrics server stopped", "address", addr)
	}
}
