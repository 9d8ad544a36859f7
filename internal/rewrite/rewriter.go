// Package rewrite implements the streaming VCF ID rewriter.
//
// The rewriter makes a single pass over a tab-delimited variant file and
// replaces the ID column of every data line with CHROM:POS:REF:ALT. Header
// lines (leading '#') and every byte outside the ID column are carried
// through unchanged, including line terminators. No record object model is
// built; each line is processed as raw bytes and discarded.
package rewrite

import (
	"bufio"
	"bytes"
	"fmt"
	"io"

	"go.uber.org/zap"
)

// DefaultBufferSize is the read/write buffer size used by New.
const DefaultBufferSize = 64 * 1024

// BlankPolicy decides what happens to a zero-length line. A blank line is
// not '#'-prefixed, so it routes to the record path, where it can never
// yield five fields.
type BlankPolicy int

const (
	// BlankError rejects blank lines as malformed records.
	BlankError BlankPolicy = iota
	// BlankPass emits blank lines verbatim.
	BlankPass
)

// ParseBlankPolicy converts a config/flag value into a BlankPolicy.
func ParseBlankPolicy(s string) (BlankPolicy, error) {
	switch s {
	case "", "error":
		return BlankError, nil
	case "pass":
		return BlankPass, nil
	}
	return BlankError, fmt.Errorf("unknown blank-line policy %q (want error or pass)", s)
}

// Stats summarizes one rewriter run.
type Stats struct {
	Lines    int64 // total input lines
	Headers  int64 // '#'-prefixed lines passed through
	Records  int64 // data lines rewritten
	Blanks   int64 // blank lines passed through (BlankPass only)
	BytesIn  int64
	BytesOut int64
}

// Rewriter streams lines from an input to an output, rewriting the ID
// column of each record line. It holds at most one line in memory at a
// time beyond the I/O buffers.
type Rewriter struct {
	r      *bufio.Reader
	w      *bufio.Writer
	blank  BlankPolicy
	logger *zap.Logger

	line  int // 1-based number of the line currently being processed
	long  []byte
	stats Stats
}

// New creates a rewriter over the given streams with DefaultBufferSize.
func New(r io.Reader, w io.Writer) *Rewriter {
	return NewSize(r, w, DefaultBufferSize)
}

// NewSize creates a rewriter with an explicit I/O buffer size. Lines longer
// than the buffer are still handled; they are accumulated before rewriting.
func NewSize(r io.Reader, w io.Writer, size int) *Rewriter {
	if size <= 0 {
		size = DefaultBufferSize
	}
	return &Rewriter{
		r:      bufio.NewReaderSize(r, size),
		w:      bufio.NewWriterSize(w, size),
		logger: zap.NewNop(),
	}
}

// SetBlankPolicy configures blank-line handling. Must be called before Run.
func (p *Rewriter) SetBlankPolicy(policy BlankPolicy) {
	p.blank = policy
}

// SetLogger sets the logger for run summaries.
func (p *Rewriter) SetLogger(l *zap.Logger) {
	p.logger = l
}

// Stats returns counters for the lines processed so far.
func (p *Rewriter) Stats() Stats {
	return p.stats
}

// Run processes the whole input. It returns a *RecordError for a data line
// that cannot be split into five fields, or a wrapped I/O error. The output
// buffer is flushed on every exit path; output written before a failure is
// truncated and must be discarded by the caller.
func (p *Rewriter) Run() (Stats, error) {
	for {
		line, err := p.r.ReadSlice('\n')
		if err == bufio.ErrBufferFull {
			// Line exceeds the read buffer; gather it in full before
			// rewriting. Still one line at rest, as promised.
			p.long = append(p.long[:0], line...)
			for err == bufio.ErrBufferFull {
				line, err = p.r.ReadSlice('\n')
				p.long = append(p.long, line...)
			}
			line = p.long
		}

		if err != nil && err != io.EOF {
			// A failed read can return a partial line alongside the error;
			// classifying those bytes would misreport an I/O failure as
			// malformed data.
			p.w.Flush()
			return p.stats, fmt.Errorf("read input at line %d: %w", p.line+1, err)
		}

		if len(line) > 0 {
			p.line++
			p.stats.Lines++
			p.stats.BytesIn += int64(len(line))
			if werr := p.emit(line); werr != nil {
				p.w.Flush()
				return p.stats, werr
			}
		}

		if err == io.EOF {
			if ferr := p.w.Flush(); ferr != nil {
				return p.stats, fmt.Errorf("flush output: %w", ferr)
			}
			p.logger.Info("rewrite complete",
				zap.Int64("lines", p.stats.Lines),
				zap.Int64("records", p.stats.Records),
				zap.Int64("bytes_in", p.stats.BytesIn))
			return p.stats, nil
		}
	}
}

// emit classifies one line and writes its output form.
func (p *Rewriter) emit(line []byte) error {
	if line[0] == '#' {
		p.stats.Headers++
		return p.write(line)
	}
	if len(trimTerminator(line)) == 0 {
		if p.blank == BlankPass {
			p.stats.Blanks++
			return p.write(line)
		}
		return &RecordError{Line: p.line, Message: "blank line"}
	}

	rec, ok, found := splitRecord(line)
	if !ok {
		return &RecordError{
			Line:    p.line,
			Message: fmt.Sprintf("expected at least 5 tab-delimited fields, found %d", found),
		}
	}
	p.stats.Records++

	if err := p.write(rec.chrom, tab, rec.pos, tab,
		rec.chrom, colon, rec.pos, colon, rec.ref, colon, rec.altID,
		tab, rec.ref, tab, rec.alt); err != nil {
		return err
	}
	if rec.hasRest {
		return p.write(tab, rec.rest)
	}
	return nil
}

func (p *Rewriter) write(parts ...[]byte) error {
	for _, b := range parts {
		n, err := p.w.Write(b)
		p.stats.BytesOut += int64(n)
		if err != nil {
			return fmt.Errorf("write output: %w", err)
		}
	}
	return nil
}

var (
	tab   = []byte{'\t'}
	colon = []byte{':'}
)

// record holds slices into one line's bytes. alt and rest may carry the
// line terminator; altID never does.
type record struct {
	chrom, pos, ref, alt []byte
	altID                []byte // alt with any trailing terminator stripped
	rest                 []byte // after the 5th tab, verbatim
	hasRest              bool
}

// splitRecord performs the bounded 6-way split on tab. A record needs at
// least five fields; the remainder after the fifth tab is optional and is
// never re-split. found reports how many fields were seen when ok is false.
func splitRecord(line []byte) (rec record, ok bool, found int) {
	var tabs [5]int
	n := 0
	for off := 0; n < 5; {
		i := bytes.IndexByte(line[off:], '\t')
		if i < 0 {
			break
		}
		tabs[n] = off + i
		n++
		off = tabs[n-1] + 1
	}
	if n < 4 {
		return record{}, false, n + 1
	}

	rec.chrom = line[:tabs[0]]
	rec.pos = line[tabs[0]+1 : tabs[1]]
	rec.ref = line[tabs[2]+1 : tabs[3]]
	if n == 5 {
		rec.alt = line[tabs[3]+1 : tabs[4]]
		rec.altID = rec.alt
		rec.rest = line[tabs[4]+1:]
		rec.hasRest = true
	} else {
		// Five fields exactly; ALT runs to end of line and carries the
		// terminator, which must not leak into the synthesized ID.
		rec.alt = line[tabs[3]+1:]
		rec.altID = trimTerminator(rec.alt)
	}
	return rec, true, 6
}

// trimTerminator strips one trailing LF or CRLF.
func trimTerminator(b []byte) []byte {
	if n := len(b); n > 0 && b[n-1] == '\n' {
		b = b[:n-1]
		if n := len(b); n > 0 && b[n-1] == '\r' {
			b = b[:n-1]
		}
	}
	return b
}

// AppendLine appends the output form of a single input line to dst.
// lineNum is used for error reporting only. This is the per-line transform
// behind Run, exported for stream verification.
func AppendLine(dst, line []byte, lineNum int, blank BlankPolicy) ([]byte, error) {
	if len(line) == 0 {
		return dst, nil
	}
	if line[0] == '#' {
		return append(dst, line...), nil
	}
	if len(trimTerminator(line)) == 0 {
		if blank == BlankPass {
			return append(dst, line...), nil
		}
		return dst, &RecordError{Line: lineNum, Message: "blank line"}
	}

	rec, ok, found := splitRecord(line)
	if !ok {
		return dst, &RecordError{
			Line:    lineNum,
			Message: fmt.Sprintf("expected at least 5 tab-delimited fields, found %d", found),
		}
	}

	dst = append(dst, rec.chrom...)
	dst = append(dst, '\t')
	dst = append(dst, rec.pos...)
	dst = append(dst, '\t')
	dst = append(dst, rec.chrom...)
	dst = append(dst, ':')
	dst = append(dst, rec.pos...)
	dst = append(dst, ':')
	dst = append(dst, rec.ref...)
	dst = append(dst, ':')
	dst = append(dst, rec.altID...)
	dst = append(dst, '\t')
	dst = append(dst, rec.ref...)
	dst = append(dst, '\t')
	dst = append(dst, rec.alt...)
	if rec.hasRest {
		dst = append(dst, '\t')
		dst = append(dst, rec.rest...)
	}
	return dst, nil
}
