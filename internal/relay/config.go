package relay

import "fmt"

// Config is the relay's immutable-after-startup configuration, matching
// spec.md §3's data model. Percent fields and ports are pre-reduced by
// the CLI layer (cmd/linksim) using the same mod arithmetic as the
// original getopt parsing (N mod 65536 for ports, N mod 101 for rates);
// Config.Validate re-checks the invariants defensively.
type Config struct {
	ListenPort  uint16
	ForwardPort uint16

	DelayMS  uint32
	JitterMS uint32

	LossPct     int // [0, 100]
	CorruptPct  int // [0, 100]
	TruncatePct int // [0, 100]

	DirectionMask Direction

	Seed int32
}

// Validate reports the first invariant violation found, if any.
func (c Config) Validate() error {
	for name, pct := range map[string]int{
		"loss_pct":     c.LossPct,
		"corrupt_pct":  c.CorruptPct,
		"truncate_pct": c.TruncatePct,
	} {
		if pct < 0 || pct > 100 {
			return fmt.Errorf("relay: %s must be in [0, 100], got %d", name, pct)
		}
	}
	if c.DirectionMask&DirBoth == 0 {
		return fmt.Errorf("relay: direction_mask must select at least one direction")
	}
	return nil
}
