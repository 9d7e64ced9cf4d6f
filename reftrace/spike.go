package reftrace

import (
	"bufio"
	"context"
	"fmt"
	"os/exec"

	"github.com/rvcosim/rvcosim/arch"
)

// Config selects the reference simulator invocation.
type Config struct {
	// Spike is the reference simulator executable.
	Spike string

	// ISA is the ISA selector passed to the reference simulator.
	ISA string

	// MaxLines caps how many commit-log lines are consumed before the
	// child is killed and the run fails.
	MaxLines int
}

// DefaultConfig returns the stock spike invocation for this core.
func DefaultConfig() Config {
	return Config{
		Spike:    "spike",
		ISA:      "RV32I",
		MaxLines: 1000000,
	}
}

func (c Config) validate() error {
	if c.Spike == "" {
		return fmt.Errorf("spike executable must be set")
	}
	if c.ISA == "" {
		return fmt.Errorf("isa selector must be set")
	}
	if c.MaxLines <= 0 {
		return fmt.Errorf("max lines must be > 0")
	}
	return nil
}

// Run executes the reference simulator on the program image and folds
// its commit log into a snapshot, last write winning per register.
//
// When watchpoint is non-nil, a memory access to that address marks the
// reference's termination point: the child is killed and scanning stops.
// A reference that exits without reaching a requested watchpoint is a
// failure. Without a watchpoint the full log is consumed up to the line
// ceiling.
func Run(ctx context.Context, cfg Config, elfPath string, watchpoint *uint32) (*arch.Snapshot, error) {
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("reftrace config: %w", err)
	}

	cmd := exec.CommandContext(ctx, cfg.Spike, "--isa="+cfg.ISA, "-l", "--log-commits", elfPath)
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("capturing reference simulator stderr: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to run %s: %w", cfg.Spike, err)
	}

	var regs arch.RegisterFile
	hitWatchpoint := false
	lines := 0

	scanner := bufio.NewScanner(stderr)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		lines++

		if idx, val, ok := parseRegWrite(line); ok {
			regs.Set(idx, val)
		}

		if watchpoint != nil {
			if addr, ok := parseMemAccess(line); ok && addr == *watchpoint {
				// The reference reached the termination address;
				// stop it so runtime stays bounded.
				_ = cmd.Process.Kill()
				hitWatchpoint = true
				break
			}
		}

		if lines > cfg.MaxLines {
			_ = cmd.Process.Kill()
			_ = cmd.Wait()
			return nil, fmt.Errorf(
				"reference simulator did not reach watchpoint (addr=0x%08x) within %d log lines",
				deref(watchpoint), cfg.MaxLines)
		}
	}
	if err := scanner.Err(); err != nil {
		_ = cmd.Process.Kill()
		_ = cmd.Wait()
		return nil, fmt.Errorf("reading reference simulator log: %w", err)
	}

	// The child was either killed above or ran to completion; its exit
	// status is irrelevant once the log has been consumed.
	_ = cmd.Wait()

	if watchpoint != nil && !hitWatchpoint {
		return nil, fmt.Errorf(
			"reference simulator terminated without hitting watchpoint (addr=0x%08x)",
			*watchpoint)
	}

	// The reference trace has no captured exit-code register.
	return &arch.Snapshot{Regs: regs}, nil
}

func deref(p *uint32) uint32 {
	if p == nil {
		return 0
	}
	return *p
}
