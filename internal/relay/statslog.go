package relay

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// RunStatsLog periodically appends a CSV row of r.Stats() to path, in the
// same shape as kcptun's std.SnmpLogger: a ticker, a filename that may
// itself be a time.Format layout so rotated logs sort by name, and a
// header written only the first time the file is created empty. Intended
// to run in its own goroutine until done is closed.
//
// Unlike SnmpLogger this reads from a lock-free counters snapshot instead
// of a package-level global, since Relay has no global state to read.
func RunStatsLog(done <-chan struct{}, path string, interval time.Duration, r *Relay, logger Logger) {
	if path == "" || interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if err := appendStatsRow(path, r.Stats()); err != nil && logger != nil {
				logger.Printf("statslog: %v", err)
			}
		}
	}
}

func appendStatsRow(path string, s Stats) error {
	dir, file := filepath.Split(path)
	resolved := dir + time.Now().Format(file)

	f, err := os.OpenFile(resolved, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0o666)
	if err != nil {
		return fmt.Errorf("open %s: %w", resolved, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if stat, err := f.Stat(); err == nil && stat.Size() == 0 {
		if err := w.Write(append([]string{"unix"}, s.Header()...)); err != nil {
			return err
		}
	}
	row := []string{fmt.Sprint(time.Now().Unix())}
	for _, v := range []uint64{s.Sent, s.Dropped, s.Truncated, s.Corrupted, s.Deferred, s.Alien, s.Malformed, s.QueueDepth} {
		row = append(row, fmt.Sprint(v))
	}
	if err := w.Write(row); err != nil {
		return err
	}
	w.Flush()
	return w.Error()
}
