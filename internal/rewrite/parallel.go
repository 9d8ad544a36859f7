package rewrite

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"runtime"
	"sync"

	"go.uber.org/zap"
)

// defaultBatchBytes is the target size of one work batch. Batches always
// end on a line boundary (except a final unterminated line).
const defaultBatchBytes = 1 << 20

// batch is a run of consecutive whole lines handed to a worker.
type batch struct {
	Seq      int
	LineBase int // line number of the batch's first line, minus one
	Data     []byte
}

// batchResult is a rewritten batch, ready for in-order emission.
type batchResult struct {
	Seq   int
	Out   *bytes.Buffer
	Stats Stats
	Err   error
}

// ParallelRewriter rewrites an input using a pool of workers, one batch of
// lines per work item. Output order equals input order: results are
// re-sequenced before writing, so the output is byte-identical to what the
// sequential Rewriter produces. This is an optional throughput layer; the
// per-line semantics live entirely in the sequential path it reuses.
type ParallelRewriter struct {
	r       io.Reader
	w       io.Writer
	blank   BlankPolicy
	workers int
	bufSize int
	logger  *zap.Logger
}

// NewParallel creates a parallel rewriter. With workers <= 0,
// runtime.NumCPU() workers are used.
func NewParallel(r io.Reader, w io.Writer, workers int) *ParallelRewriter {
	return &ParallelRewriter{
		r:       r,
		w:       w,
		workers: workers,
		bufSize: DefaultBufferSize,
		logger:  zap.NewNop(),
	}
}

// SetBufferSize configures the read/write buffer size. Must be called
// before Run; values <= 0 keep the default.
func (p *ParallelRewriter) SetBufferSize(size int) {
	if size > 0 {
		p.bufSize = size
	}
}

// SetBlankPolicy configures blank-line handling. Must be called before Run.
func (p *ParallelRewriter) SetBlankPolicy(policy BlankPolicy) {
	p.blank = policy
}

// SetLogger sets the logger for run summaries.
func (p *ParallelRewriter) SetLogger(l *zap.Logger) {
	p.logger = l
}

// Run processes the whole input. Error semantics match Rewriter.Run;
// RecordError line numbers are absolute input line numbers.
func (p *ParallelRewriter) Run() (Stats, error) {
	workers := p.workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	items := make(chan batch, 2*workers)
	var readErr error

	go func() {
		defer close(items)
		readErr = p.produce(items)
	}()

	results := make(chan batchResult, 2*workers)
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			for b := range items {
				results <- p.rewriteBatch(b)
			}
		}()
	}
	go func() {
		wg.Wait()
		close(results)
	}()

	out := bufio.NewWriterSize(p.w, p.bufSize)
	var total Stats
	err := orderedCollect(results, func(r batchResult) error {
		if r.Err != nil {
			return r.Err
		}
		n, werr := out.Write(r.Out.Bytes())
		total.add(r.Stats)
		total.BytesOut += int64(n)
		if werr != nil {
			return fmt.Errorf("write output: %w", werr)
		}
		return nil
	})
	if ferr := out.Flush(); ferr != nil && err == nil {
		err = fmt.Errorf("flush output: %w", ferr)
	}
	if err != nil {
		return total, err
	}
	if readErr != nil {
		return total, readErr
	}

	p.logger.Info("parallel rewrite complete",
		zap.Int("workers", workers),
		zap.Int64("lines", total.Lines),
		zap.Int64("records", total.Records))
	return total, nil
}

// produce reads whole lines into batches of roughly defaultBatchBytes and
// sends them to the workers.
func (p *ParallelRewriter) produce(items chan<- batch) error {
	br := bufio.NewReaderSize(p.r, p.bufSize)
	seq := 0
	lineBase := 0
	lines := 0
	buf := make([]byte, 0, defaultBatchBytes)

	flush := func() {
		if len(buf) == 0 {
			return
		}
		items <- batch{Seq: seq, LineBase: lineBase, Data: buf}
		seq++
		lineBase += lines
		lines = 0
		buf = make([]byte, 0, defaultBatchBytes)
	}

	for {
		line, err := br.ReadSlice('\n')
		for err == bufio.ErrBufferFull {
			buf = append(buf, line...)
			line, err = br.ReadSlice('\n')
		}
		if len(line) > 0 {
			buf = append(buf, line...)
			lines++
		}
		switch err {
		case nil:
			if len(buf) >= defaultBatchBytes {
				flush()
			}
		case io.EOF:
			flush()
			return nil
		default:
			// The run is aborting; a partially read line must not reach
			// the workers.
			return fmt.Errorf("read input at line %d: %w", lineBase+lines+1, err)
		}
	}
}

// rewriteBatch runs the sequential rewriter over one batch in memory.
func (p *ParallelRewriter) rewriteBatch(b batch) batchResult {
	out := bytes.NewBuffer(make([]byte, 0, len(b.Data)+len(b.Data)/8))
	rw := New(bytes.NewReader(b.Data), out)
	rw.blank = p.blank
	rw.line = b.LineBase
	stats, err := rw.Run()
	// Byte accounting happens at the collector; the inner counters would
	// double-count the in-memory copy.
	stats.BytesOut = 0
	return batchResult{Seq: b.Seq, Out: out, Stats: stats, Err: err}
}

// orderedCollect calls fn for each result in sequence-number order,
// buffering out-of-order results until their turn. Blocks until the
// results channel is closed.
func orderedCollect(results <-chan batchResult, fn func(batchResult) error) error {
	pending := make(map[int]batchResult)
	nextSeq := 0

	for r := range results {
		pending[r.Seq] = r

		for {
			rr, ok := pending[nextSeq]
			if !ok {
				break
			}
			delete(pending, nextSeq)
			nextSeq++
			if err := fn(rr); err != nil {
				// Drain remaining results to unblock workers.
				for range results {
				}
				return err
			}
		}
	}

	return nil
}

func (s *Stats) add(o Stats) {
	s.Lines += o.Lines
	s.Headers += o.Headers
	s.Records += o.Records
	s.Blanks += o.Blanks
	s.BytesIn += o.BytesIn
	s.BytesOut += o.BytesOut
}
