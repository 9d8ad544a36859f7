package rewrite

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// run rewrites input with the default configuration and returns the output.
func run(t *testing.T, input string) (string, Stats) {
	t.Helper()
	var out bytes.Buffer
	rw := New(strings.NewReader(input), &out)
	stats, err := rw.Run()
	require.NoError(t, err)
	return out.String(), stats
}

func TestRewrite_HeaderAndRecord(t *testing.T) {
	in := "##meta=1\n#CHROM\tPOS\tID\tREF\tALT\nchr1\t100\t.\tA\tG\n"
	want := "##meta=1\n#CHROM\tPOS\tID\tREF\tALT\nchr1\t100\tchr1:100:A:G\tA\tG\n"

	got, stats := run(t, in)
	assert.Equal(t, want, got)
	assert.Equal(t, int64(3), stats.Lines)
	assert.Equal(t, int64(2), stats.Headers)
	assert.Equal(t, int64(1), stats.Records)
}

func TestRewrite_RemainderOpaque(t *testing.T) {
	in := "chr2\t200\told_id\tC\tT\tQUAL1\tFILTERx\n"
	want := "chr2\t200\tchr2:200:C:T\tC\tT\tQUAL1\tFILTERx\n"

	got, _ := run(t, in)
	assert.Equal(t, want, got)
}

func TestRewrite_NoTrailingNewline(t *testing.T) {
	got, _ := run(t, "chr3\t300\t.\tG\tA")
	assert.Equal(t, "chr3\t300\tchr3:300:G:A\tG\tA", got)
}

func TestRewrite_MalformedRecord(t *testing.T) {
	var out bytes.Buffer
	rw := New(strings.NewReader("chr4\t400\n"), &out)
	_, err := rw.Run()

	var recErr *RecordError
	require.ErrorAs(t, err, &recErr)
	assert.Equal(t, 1, recErr.Line)
	assert.Empty(t, out.String(), "no output line for the malformed input line")
}

func TestRewrite_MalformedLineNumber(t *testing.T) {
	in := "##meta\nchr1\t1\t.\tA\tG\t.\nchr1\tbroken\n"
	var out bytes.Buffer
	rw := New(strings.NewReader(in), &out)
	_, err := rw.Run()

	var recErr *RecordError
	require.ErrorAs(t, err, &recErr)
	assert.Equal(t, 3, recErr.Line)
	assert.Contains(t, recErr.Error(), "line 3")
}

func TestRewrite_EmptyInput(t *testing.T) {
	got, stats := run(t, "")
	assert.Empty(t, got)
	assert.Zero(t, stats.Lines)
}

func TestRewrite_OldIDIrrelevant(t *testing.T) {
	// The discarded ID may be empty, ".", or itself colon-delimited.
	tests := []struct {
		name string
		id   string
	}{
		{"dot", "."},
		{"empty", ""},
		{"rsid", "rs12345"},
		{"colons", "1:2:3:4"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := "7\t140753336\t" + tt.id + "\tA\tT\t60\tPASS\tDP=100\n"
			want := "7\t140753336\t7:140753336:A:T\tA\tT\t60\tPASS\tDP=100\n"
			got, _ := run(t, in)
			assert.Equal(t, want, got)
		})
	}
}

func TestRewrite_PosIsOpaqueText(t *testing.T) {
	// Leading zeros and odd formatting must survive untouched.
	in := "chrX\t007\t.\tAT\tA\t.\t.\t.\n"
	want := "chrX\t007\tchrX:007:AT:A\tAT\tA\t.\t.\t.\n"
	got, _ := run(t, in)
	assert.Equal(t, want, got)
}

func TestRewrite_DelimiterCountPreserved(t *testing.T) {
	in := "1\t10\tid\tA\tC\ta\tb\tc\td\te\tf\n"
	got, _ := run(t, in)
	assert.Equal(t, strings.Count(in, "\t"), strings.Count(got, "\t"))
	// Everything after the 5th delimiter is byte-identical.
	assert.True(t, strings.HasSuffix(got, "\ta\tb\tc\td\te\tf\n"))
}

func TestRewrite_HeaderWithTabsUntouched(t *testing.T) {
	in := "#CHROM\tPOS\tID\tREF\tALT\tQUAL\tFILTER\tINFO\n"
	got, _ := run(t, in)
	assert.Equal(t, in, got)
}

func TestRewrite_Idempotent(t *testing.T) {
	in := "##fileformat=VCFv4.2\n" +
		"#CHROM\tPOS\tID\tREF\tALT\n" +
		"12\t25245350\t12:25245350:C:A\tC\tA\t.\tPASS\t.\n" +
		"7\t55191822\t7:55191822:T:G\tT\tG\t.\tPASS\t.\n"
	got, _ := run(t, in)
	assert.Equal(t, in, got)
}

func TestRewrite_CRLF(t *testing.T) {
	// CRLF terminators ride inside the remainder (or ALT) and survive.
	in := "chr1\t100\t.\tA\tG\t60\tPASS\r\nchr1\t101\t.\tC\tT\r\n"
	want := "chr1\t100\tchr1:100:A:G\tA\tG\t60\tPASS\r\nchr1\t101\tchr1:101:C:T\tC\tT\r\n"
	got, _ := run(t, in)
	assert.Equal(t, want, got)
}

func TestRewrite_BlankLineError(t *testing.T) {
	var out bytes.Buffer
	rw := New(strings.NewReader("chr1\t1\t.\tA\tG\t.\n\nchr1\t2\t.\tA\tG\t.\n"), &out)
	_, err := rw.Run()

	var recErr *RecordError
	require.ErrorAs(t, err, &recErr)
	assert.Equal(t, 2, recErr.Line)
	assert.Contains(t, recErr.Message, "blank")
}

func TestRewrite_BlankLinePass(t *testing.T) {
	in := "chr1\t1\t.\tA\tG\t.\n\nchr1\t2\t.\tA\tG\t.\n"
	var out bytes.Buffer
	rw := New(strings.NewReader(in), &out)
	rw.SetBlankPolicy(BlankPass)
	stats, err := rw.Run()
	require.NoError(t, err)

	assert.Equal(t, int64(1), stats.Blanks)
	lines := strings.SplitAfter(out.String(), "\n")
	assert.Equal(t, "\n", lines[1])
}

func TestRewrite_LineLongerThanBuffer(t *testing.T) {
	longInfo := strings.Repeat("x", 4096)
	in := "##header" + strings.Repeat("h", 2048) + "\n" +
		"chr5\t500\t.\tA\tG\t60\tPASS\t" + longInfo + "\n"
	want := "##header" + strings.Repeat("h", 2048) + "\n" +
		"chr5\t500\tchr5:500:A:G\tA\tG\t60\tPASS\t" + longInfo + "\n"

	var out bytes.Buffer
	rw := NewSize(strings.NewReader(in), &out, 64)
	_, err := rw.Run()
	require.NoError(t, err)
	assert.Equal(t, want, out.String())
}

func TestRewrite_ExactlyFiveFields(t *testing.T) {
	// A record with no remainder is valid; ALT carries the terminator and
	// the synthesized ID must not.
	got, _ := run(t, "chr1\t100\t.\tA\tG\n")
	assert.Equal(t, "chr1\t100\tchr1:100:A:G\tA\tG\n", got)
}

func TestRewrite_ExactlyFiveFieldsCRLF(t *testing.T) {
	got, _ := run(t, "chr1\t100\t.\tA\tG\r\n")
	assert.Equal(t, "chr1\t100\tchr1:100:A:G\tA\tG\r\n", got)
}

func TestRewrite_StatsBytes(t *testing.T) {
	in := "##m\nchr1\t100\t.\tA\tG\t.\n"
	var out bytes.Buffer
	rw := New(strings.NewReader(in), &out)
	stats, err := rw.Run()
	require.NoError(t, err)
	assert.Equal(t, int64(len(in)), stats.BytesIn)
	assert.Equal(t, int64(out.Len()), stats.BytesOut)
}

func TestParseBlankPolicy(t *testing.T) {
	p, err := ParseBlankPolicy("pass")
	require.NoError(t, err)
	assert.Equal(t, BlankPass, p)

	p, err = ParseBlankPolicy("")
	require.NoError(t, err)
	assert.Equal(t, BlankError, p)

	_, err = ParseBlankPolicy("skip")
	assert.Error(t, err)
}

func TestAppendLine(t *testing.T) {
	out, err := AppendLine(nil, []byte("chr2\t200\tx\tC\tT\trest\twith\ttabs\n"), 1, BlankError)
	require.NoError(t, err)
	assert.Equal(t, "chr2\t200\tchr2:200:C:T\tC\tT\trest\twith\ttabs\n", string(out))

	out, err = AppendLine(nil, []byte("#header line\n"), 1, BlankError)
	require.NoError(t, err)
	assert.Equal(t, "#header line\n", string(out))

	_, err = AppendLine(nil, []byte("too\tfew\n"), 7, BlankError)
	var recErr *RecordError
	require.True(t, errors.As(err, &recErr))
	assert.Equal(t, 7, recErr.Line)
}

func TestRewrite_ReadError(t *testing.T) {
	var out bytes.Buffer
	rw := New(&failingReader{data: []byte("chr1\t1\t.\tA\tG\t.\n")}, &out)
	_, err := rw.Run()
	require.Error(t, err)
	var recErr *RecordError
	assert.False(t, errors.As(err, &recErr), "read failures are I/O errors, not data errors")
}

func TestRewrite_ReadErrorMidLine(t *testing.T) {
	// A failing reader hands back the truncated line together with the
	// error; the run must report the I/O failure, not a malformed record.
	var out bytes.Buffer
	rw := New(&failingReader{data: []byte("chr1\t1")}, &out)
	_, err := rw.Run()
	require.Error(t, err)

	var recErr *RecordError
	assert.False(t, errors.As(err, &recErr), "partial line from a failed read is not a data error")
	assert.ErrorContains(t, err, "read input")
	assert.Empty(t, out.String())
}

// failingReader yields its data, then an error instead of EOF.
type failingReader struct {
	data []byte
	done bool
}

func (r *failingReader) Read(p []byte) (int, error) {
	if !r.done {
		r.done = true
		n := copy(p, r.data)
		return n, nil
	}
	return 0, errors.New("disk on fire")
}
