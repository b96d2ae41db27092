package control

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
)

// Request is one line of the serve protocol
type Request struct {
	ID      string          `json:"id,omitempty"`
	Command string          `json:"command"`
	Args    json.RawMessage `json:"args,omitempty"`
}

// Response answers the Request with the same ID
type Response struct {
	ID string `json:"id,omitempty"`
	Result
}

// maxLine bounds a single request
const maxLine = 1 << 20

// Serve reads one JSON request per line from r and writes one JSON response per
// line to w, until r is exhausted or ctx is canceled. Blank lines are ignored.
func (d *Dispatcher) Serve(ctx context.Context, r io.Reader, w io.Writer) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLine)
	enc := json.NewEncoder(w)

	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}

		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		var req Request
		var resp Response
		if err := json.Unmarshal(line, &req); err != nil {
			resp.Result = failure(fmt.Errorf("%w: %v", ErrBadRequest, err))
		} else {
			resp.ID = req.ID
			resp.Result = d.Dispatch(req.Command, req.Args)
		}

		if err := enc.Encode(resp); err != nil {
			return fmt.Errorf("failed to write response: %w", err)
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read request: %w", err)
	}
	return ctx.Err()
}
