package fetcher

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
)

// idxEntry is one line of a GRIB2 ".idx" sidecar file: a byte offset into
// the GRIB2 file plus the human-readable message description NOMADS/the
// pack's other providers publish alongside the data (":VAR:LEVEL:...").
// This is the real mechanism the original's Herbie-based fetchers use to
// avoid downloading entire multi-gigabyte GRIB2 files: locate the message by
// description, then issue a single HTTP Range request for just its bytes.
type idxEntry struct {
	Offset      int64
	Description string
}

// fetchIdx downloads and parses a ".idx" file.
func fetchIdx(ctx context.Context, client *http.Client, idxURL string) ([]idxEntry, error) {
	body, _, err := getWithRetry(ctx, client, idxURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
	}

	var entries []idxEntry
	for _, line := range strings.Split(string(body), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		// Format: "<seq>:<byte_offset>:<description...>"
		parts := strings.SplitN(line, ":", 3)
		if len(parts) < 3 {
			continue
		}
		offset, err := strconv.ParseInt(parts[1], 10, 64)
		if err != nil {
			continue
		}
		entries = append(entries, idxEntry{Offset: offset, Description: parts[2]})
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("%w: empty or unparsable index at %s", ErrDecodeFailure, idxURL)
	}
	return entries, nil
}

// searchIdxByteRange finds the message whose description matches the search
// key's contains-pattern and returns the byte range spanning it — from its
// offset to the offset of the next entry (or end-of-file, signalled by a
// negative end).
func searchIdxByteRange(entries []idxEntry, matches func(description string) bool) (start int64, end int64, found bool) {
	for i, e := range entries {
		if !matches(e.Description) {
			continue
		}
		start = e.Offset
		end = -1
		if i+1 < len(entries) {
			end = entries[i+1].Offset - 1
		}
		return start, end, true
	}
	return 0, 0, false
}

// rangeHeader builds an HTTP Range header value for [start, end]; end < 0
// means "through end of file".
func rangeHeader(start, end int64) string {
	if end < 0 {
		return fmt.Sprintf("bytes=%d-", start)
	}
	return fmt.Sprintf("bytes=%d-%d", start, end)
}
