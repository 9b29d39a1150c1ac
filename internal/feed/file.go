package feed

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"
)

// maxLineSize bounds one JSONL event line. Decoded envelopes carry only
// scalar args, so 1 MiB is generous.
const maxLineSize = 1 << 20

// FileFeed replays a JSONL dump of decoded events in file order.
type FileFeed struct {
	path string
	log  *zap.Logger
}

// NewFileFeed creates a replay feed over a JSONL file.
func NewFileFeed(path string, log *zap.Logger) *FileFeed {
	if log == nil {
		log = zap.NewNop()
	}
	return &FileFeed{path: path, log: log}
}

// Run pushes every event in the file to handle. Blank lines are skipped;
// undecodable lines are logged with their line number and skipped, so one
// corrupt record never aborts a replay.
func (f *FileFeed) Run(ctx context.Context, handle Handler) error {
	file, err := os.Open(f.path)
	if err != nil {
		return fmt.Errorf("open event dump: %w", err)
	}
	defer file.Close()

	return f.scan(ctx, file, handle)
}

func (f *FileFeed) scan(ctx context.Context, r io.Reader, handle Handler) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)

	line := 0
	for scanner.Scan() {
		line++
		if err := ctx.Err(); err != nil {
			return err
		}
		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}
		ev, err := DecodeEvent(raw)
		if err != nil {
			f.log.Warn("skipping undecodable event line",
				zap.Int("line", line),
				zap.Error(err),
			)
			continue
		}
		handle(ctx, ev)
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("scan event dump: %w", err)
	}
	return nil
}
