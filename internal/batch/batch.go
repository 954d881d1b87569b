package batch

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"strings"

	"github.com/cqs-dev/cqs/internal/engine"
)

const maxLineSize = 1 << 20

// Run executes the stdio batch-mode protocol: reads one
// command per line from r, blank lines and lines starting with '#' are
// ignored, "quit"/"exit" terminates, and every command writes exactly one
// JSON object per line to w. Errors never abort the loop; they are
// reported as {"error": "<message>"} and the loop continues to the next
// line.
func Run(ctx context.Context, eng *engine.Engine, r io.Reader, w io.Writer) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)
	enc := json.NewEncoder(w)

	for scanner.Scan() {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		argv, err := tokenize(line)
		if err != nil {
			if eerr := enc.Encode(errorObject(err)); eerr != nil {
				return eerr
			}
			continue
		}
		if len(argv) == 0 {
			continue
		}
		if argv[0] == "quit" || argv[0] == "exit" {
			return nil
		}

		result, err := dispatch(ctx, eng, argv[0], argv[1:])
		if err != nil {
			if eerr := enc.Encode(errorObject(err)); eerr != nil {
				return eerr
			}
			continue
		}
		if err := enc.Encode(result); err != nil {
			return err
		}
	}
	return scanner.Err()
}

func errorObject(err error) map[string]string {
	return map[string]string{"error": err.Error()}
}
