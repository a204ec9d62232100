package hostinfo

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/prometheus/procfs"
)

// ProcReader reads kernel-reported process and host figures.
type ProcReader interface {
	ResidentMemory() (uint64, error)
	LoadAverage() (LoadAverage, error)
}

type procfsReader struct {
	fs  procfs.FS
	err error
}

// NewProcReader reads from the proc filesystem at mountPoint, or the default
// /proc when empty. On hosts without procfs every read returns an error.
func NewProcReader(mountPoint string) ProcReader {
	var (
		fs  procfs.FS
		err error
	)
	if mountPoint == "" {
		fs, err = procfs.NewDefaultFS()
	} else {
		fs, err = procfs.NewFS(mountPoint)
	}
	return &procfsReader{fs: fs, err: err}
}

func (r *procfsReader) ResidentMemory() (uint64, error) {
	if r.err != nil {
		return 0, r.err
	}
	self, err := r.fs.Self()
	if err != nil {
		return 0, fmt.Errorf("reading own process: %w", err)
	}
	stat, err := self.Stat()
	if err != nil {
		return 0, fmt.Errorf("reading process stat: %w", err)
	}
	rss := stat.ResidentMemory()
	if rss < 0 {
		return 0, fmt.Errorf("negative resident memory %d", rss)
	}
	return uint64(rss), nil
}

func (r *procfsReader) LoadAverage() (LoadAverage, error) {
	if r.err != nil {
		return LoadAverage{}, r.err
	}
	avg, err := r.fs.LoadAvg()
	if err != nil {
		return LoadAverage{}, fmt.Errorf("reading load average: %w", err)
	}
	return LoadAverage{avg.Load1, avg.Load5, avg.Load15}, nil
}

// CommandRunner runs an external command and returns its standard output.
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct{}

// Run implements CommandRunner. The process is killed when ctx is done.
func (ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stderr = &stderr

	out, err := cmd.Output()
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%s: %w", name, ctx.Err())
		}
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return nil, fmt.Errorf("%w: %s", err, msg)
		}
		return nil, err
	}
	return out, nil
}
