// Package verify checks rewritten output after the fact: MD5 checksums for
// cross-run comparison, and a streaming diff that enforces the output
// contract (byte-identical to the input everywhere except the ID column of
// record lines).
package verify

import (
	"bufio"
	"bytes"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"os"

	"github.com/inodb/vcfid/internal/rewrite"
)

// Sum returns the MD5 digest of r's contents as a hex string.
func Sum(r io.Reader) (string, error) {
	h := md5.New()
	if _, err := io.Copy(h, r); err != nil {
		return "", fmt.Errorf("checksum read: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// File returns the MD5 digest of a file's contents as a hex string.
func File(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	return Sum(f)
}

// Mismatch reports the first line where the output diverges from what the
// rewriter would produce for the input.
type Mismatch struct {
	Line   int
	Reason string
}

func (e *Mismatch) Error() string {
	return fmt.Sprintf("output mismatch at line %d: %s", e.Line, e.Reason)
}

// Stats summarizes a comparison.
type Stats struct {
	Lines   int64
	Headers int64
	Records int64
}

// Compare streams an original input and a rewritten output side by side
// and verifies the output contract. Each input line is rewritten through
// the same per-line transform as the pipeline and compared byte-for-byte
// against the corresponding output line, so any deviation outside the ID
// column is caught, as is a wrongly synthesized ID. Returns a *Mismatch on
// divergence and a *rewrite.RecordError if the input itself is malformed.
func Compare(in, out io.Reader, blank rewrite.BlankPolicy) (Stats, error) {
	var stats Stats
	inr := bufio.NewReaderSize(in, rewrite.DefaultBufferSize)
	outr := bufio.NewReaderSize(out, rewrite.DefaultBufferSize)

	var expected []byte
	for lineNum := 1; ; lineNum++ {
		inLine, inErr := readLine(inr)
		if inErr != nil && inErr != io.EOF {
			return stats, fmt.Errorf("read input at line %d: %w", lineNum, inErr)
		}
		if len(inLine) == 0 && inErr == io.EOF {
			// Input exhausted; the output must be too.
			extra, outErr := readLine(outr)
			if outErr != nil && outErr != io.EOF {
				return stats, fmt.Errorf("read output: %w", outErr)
			}
			if len(extra) > 0 {
				return stats, &Mismatch{Line: lineNum, Reason: "output has extra lines"}
			}
			return stats, nil
		}

		stats.Lines++
		if inLine[0] == '#' {
			stats.Headers++
		} else if len(bytes.TrimRight(inLine, "\r\n")) > 0 {
			stats.Records++
		}

		var err error
		expected, err = rewrite.AppendLine(expected[:0], inLine, lineNum, blank)
		if err != nil {
			return stats, err
		}

		outLine, outErr := readLine(outr)
		if outErr != nil && outErr != io.EOF {
			return stats, fmt.Errorf("read output at line %d: %w", lineNum, outErr)
		}
		if !bytes.Equal(expected, outLine) {
			return stats, &Mismatch{
				Line:   lineNum,
				Reason: fmt.Sprintf("expected %q, found %q", expected, outLine),
			}
		}
		if inErr == io.EOF {
			continue // final unterminated line; loop exits on next read
		}
	}
}

// readLine returns the next line including its terminator. At EOF it
// returns io.EOF, possibly alongside a final unterminated line.
func readLine(r *bufio.Reader) ([]byte, error) {
	line, err := r.ReadBytes('\n')
	return line, err
}
