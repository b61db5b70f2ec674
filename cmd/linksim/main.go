// The MIT License (MIT)
//
// # Copyright (c) 2016 xtaci
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.

package main

import (
	"context"
	"fmt"
	"log"
	"net"
	"os"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/xid"
	"github.com/urfave/cli"

	"github.com/xtaci/linksim/internal/metrics"
	"github.com/xtaci/linksim/internal/relay"
	"github.com/xtaci/linksim/internal/sockudp"
)

// VERSION is populated via build flags when packaging official binaries.
var VERSION = "SELFBUILD"

func main() {
	if VERSION == "SELFBUILD" {
		log.SetFlags(log.LstdFlags | log.Lshortfile)
	}

	myApp := cli.NewApp()
	myApp.Name = "linksim"
	myApp.Usage = "a lossy link simulator: relays UDP on `p` to [::1]:`P`, simulating loss, corruption, truncation and delay"
	myApp.Version = VERSION
	myApp.Flags = []cli.Flag{
		cli.IntFlag{Name: "p", Value: 1341, Usage: "UDP port the link simulator listens on"},
		cli.IntFlag{Name: "P", Value: 12345, Usage: "UDP port on loopback that surviving traffic is relayed to"},
		cli.IntFlag{Name: "d", Value: 0, Usage: "base delay applied to impaired traffic, in ms"},
		cli.IntFlag{Name: "j", Value: 0, Usage: "jitter applied to the delay, in ms (unused if d == 0)"},
		cli.IntFlag{Name: "e", Value: 0, Usage: "packet corruption rate, in packet/100 (a corrupted packet is never truncated)"},
		cli.IntFlag{Name: "c", Value: 0, Usage: "packet truncation rate, in packet/100 (a truncated packet is never corrupted)"},
		cli.IntFlag{Name: "l", Value: 0, Usage: "packet loss rate, in packet/100"},
		cli.IntFlag{Name: "s", Value: -1, Usage: "seed for the random generator, to replay a previous session; -1 uses the current time"},
		cli.BoolFlag{Name: "r", Usage: "impair the reverse path only (destination -> client)"},
		cli.BoolFlag{Name: "R", Usage: "impair both directions"},
		cli.StringFlag{Name: "metrics", Value: "", Usage: "address to serve Prometheus metrics on, e.g. :9341 (disabled if empty)"},
		cli.StringFlag{Name: "statslog", Value: "", Usage: "CSV file to periodically append packet counters to; aware of Go's time format, like ./stats-20060102.csv (disabled if empty)"},
		cli.IntFlag{Name: "statsperiod", Value: 60, Usage: "statslog collection period, in seconds"},
		cli.StringFlag{Name: "log", Value: "", Usage: "file to redirect logs to (default goes to stderr)"},
	}
	myApp.Action = run
	if err := myApp.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func run(c *cli.Context) error {
	if c.NArg() > 0 {
		log.Println("!! ignoring positional arguments:", c.Args())
	}

	cfg, err := buildConfig(c)
	if err != nil {
		return err
	}

	if logPath := c.String("log"); logPath != "" {
		f, err := os.OpenFile(logPath, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0o666)
		if err != nil {
			return errWrap("open log file", err)
		}
		defer f.Close()
		log.SetOutput(f)
	}

	log.Println("run:", xid.New())
	log.Println("port:", cfg.ListenPort)
	log.Println("forward_port:", cfg.ForwardPort)
	log.Println("delay:", cfg.DelayMS)
	log.Println("jitter:", cfg.JitterMS)
	log.Println("loss_rate:", cfg.LossPct)
	log.Println("err_rate:", cfg.CorruptPct)
	log.Println("cut_rate:", cfg.TruncatePct)
	log.Println("seed:", cfg.Seed)
	log.Println("link_direction:", cfg.DirectionMask)

	sock, err := sockudp.Open(cfg.ListenPort)
	if err != nil {
		return fmt.Errorf("socket initialization failure: %w", err)
	}
	defer sock.Close()

	destination := &net.UDPAddr{IP: net.IPv6loopback, Port: int(cfg.ForwardPort)}

	var m *metrics.Metrics
	if addr := c.String("metrics"); addr != "" {
		mm, reg := metrics.New()
		m = mm
		go func() {
			if err := metrics.Serve(addr, reg); err != nil {
				log.Println("metrics server:", err)
			}
		}()
	}

	rl := relay.New(cfg, destination, sock, clockwork.NewRealClock(), log.Default(), m)

	ctx, cancel := context.WithCancel(context.Background())
	notifyShutdown(cancel)

	if path := c.String("statslog"); path != "" {
		done := make(chan struct{})
		go func() {
			<-ctx.Done()
			close(done)
		}()
		go relay.RunStatsLog(done, path, time.Duration(c.Int("statsperiod"))*time.Second, rl, log.Default())
	}

	err = rl.Run(ctx)
	log.Printf("relay loop stopped, had %d element(s) left in the deferred queue", rl.QueueLen())
	if err != nil {
		log.Printf("%+v", err)
		os.Exit(1)
	}
	return nil
}

func errWrap(msg string, err error) error {
	return fmt.Errorf("%s: %w", msg, err)
}
