package rpcdispatch

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
)

// ServeStdio frames one JSON Request per line from r and writes one JSON
// Response per line to w, adapted from the BeadsLog/beads Unix-socket
// daemon transport to framed stdio since decapod is daemonless: there is no
// persistent connection, just one dispatcher loop per CLI invocation.
func ServeStdio(d *Dispatcher, r io.Reader, w io.Writer) error {
	session := &Session{}
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	enc := json.NewEncoder(w)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var req Request
		if err := json.Unmarshal(line, &req); err != nil {
			if encErr := enc.Encode(Response{Error: fmt.Sprintf("invalid request: %v", err)}); encErr != nil {
				return encErr
			}
			continue
		}
		resp := d.Dispatch(req, session)
		if err := enc.Encode(resp); err != nil {
			return err
		}
	}
	return scanner.Err()
}
