package repodata

import (
	"compress/bzip2"
	"io"
)

// newBzip2Reader wraps r in a bzip2 decompressor. The standard library only
// implements bzip2 decoding (no writer), which is all the fetch protocol
// needs: repodata.json.bz2 is always read, never produced, by this core.
func newBzip2Reader(r io.Reader) (io.Reader, error) {
	return bzip2.NewReader(r), nil
}
