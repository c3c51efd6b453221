package storage

import (
	"bufio"
	"bytes"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// encodeMetadata serializes a metadata map as sorted "key=value" lines.
// The format is intentionally trivial: metadata blobs are opaque
// key→scalar maps, and the engine never inspects their on-disk shape
// directly, only round-trips them through Disk.
func encodeMetadata(meta map[string]int64) []byte {
	keys := make([]string, 0, len(meta))
	for k := range meta {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var buf bytes.Buffer
	for _, k := range keys {
		fmt.Fprintf(&buf, "%s=%d\n", k, meta[k])
	}
	return buf.Bytes()
}

func decodeMetadata(raw []byte) (map[string]int64, error) {
	out := make(map[string]int64)
	scanner := bufio.NewScanner(bytes.NewReader(raw))
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		idx := strings.IndexByte(line, '=')
		if idx < 0 {
			return nil, fmt.Errorf("storage: malformed metadata line %q", line)
		}
		v, err := strconv.ParseInt(line[idx+1:], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("storage: malformed metadata value %q: %w", line, err)
		}
		out[line[:idx]] = v
	}
	return out, scanner.Err()
}
