package main

import (
	"log"
	"time"

	"github.com/urfave/cli"

	"github.com/xtaci/linksim/internal/relay"
)

// buildConfig resolves spec.md §6's CLI flags into a relay.Config,
// applying the same reduction rules as the reference implementation's
// getopt parsing: ports are masked into 16 bits, rates are reduced
// modulo 101, and a seed of -1 falls back to the current time.
func buildConfig(c *cli.Context) (relay.Config, error) {
	direction := relay.DirForward
	switch {
	case c.Bool("R"):
		direction = relay.DirBoth
	case c.Bool("r"):
		direction = relay.DirReverse
	}

	seed := int32(c.Int("s"))
	if seed == -1 {
		seed = int32(time.Now().Unix())
		log.Println("@@ using random seed:", seed)
	}

	cfg := relay.Config{
		ListenPort:    uint16(c.Int("p") & 0xFFFF),
		ForwardPort:   uint16(c.Int("P") & 0xFFFF),
		DelayMS:       uint32(nonNegative(c.Int("d"))),
		JitterMS:      uint32(nonNegative(c.Int("j"))),
		LossPct:       mod101(c.Int("l")),
		CorruptPct:    mod101(c.Int("e")),
		TruncatePct:   mod101(c.Int("c")),
		DirectionMask: direction,
		Seed:          seed,
	}
	return cfg, cfg.Validate()
}

func mod101(n int) int {
	v := n % 101
	if v < 0 {
		v += 101
	}
	return v
}

func nonNegative(n int) int {
	if n < 0 {
		return 0
	}
	return n
}
