package domain

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
)

// ErrLineTooShort is returned for records shorter than the 21-character header.
var ErrLineTooShort = errors.New("line shorter than record header")

// TranscodeError identifies a .dly line that could not be transcoded.
type TranscodeError struct {
	Line int // 1-based line number, 0 when unknown
	Err  error
}

func (e *TranscodeError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("transcode line %d: %v", e.Line, e.Err)
	}
	return fmt.Sprintf("transcode: %v", e.Err)
}

func (e *TranscodeError) Unwrap() error { return e.Err }

// TranscodeLine converts one fixed-width record into its comma-separated form:
// the 21-character header verbatim, then one "VALUE|M|Q|S" group per complete
// 8-character slot. A trailing partial slot is ignored.
func TranscodeLine(line string) (string, error) {
	line = strings.TrimRight(line, "\r\n")
	if len(line) < headerWidth {
		return "", &TranscodeError{Err: ErrLineTooShort}
	}

	var b strings.Builder
	b.Grow(len(line) + len(line)/slotWidth*4)
	b.WriteString(line[:headerWidth])
	for i := headerWidth; len(line)-i >= slotWidth; i += slotWidth {
		slot := line[i : i+slotWidth]
		b.WriteByte(',')
		b.WriteString(strings.TrimSpace(slot[:valueWidth]))
		for k := valueWidth; k < slotWidth; k++ {
			b.WriteByte('|')
			b.WriteString(strings.TrimSpace(slot[k : k+1]))
		}
	}
	return b.String(), nil
}

// TranscodeStats summarizes one transcoding pass.
type TranscodeStats struct {
	Lines   int // records written
	Skipped int // records dropped as malformed
}

// Transcoder streams a .dly file into the intermediate comma-separated form.
type Transcoder struct {
	logger *slog.Logger
}

// NewTranscoder creates a Transcoder that reports skipped lines to logger.
func NewTranscoder(logger *slog.Logger) *Transcoder {
	return &Transcoder{logger: logger}
}

// Transcode reads records from r and writes one transcoded line per record to w.
// Malformed records are skipped with a warning; read and write failures are fatal.
func (t *Transcoder) Transcode(ctx context.Context, r io.Reader, w io.Writer) (TranscodeStats, error) {
	var stats TranscodeStats

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 512), 64*1024)
	bw := bufio.NewWriter(w)

	n := 0
	for sc.Scan() {
		n++
		if n%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return stats, err
			}
		}

		line := sc.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}

		out, err := TranscodeLine(line)
		if err != nil {
			var te *TranscodeError
			if errors.As(err, &te) {
				te.Line = n
			}
			t.logger.Warn("skipping malformed record", "line", n, "length", len(line), "error", err)
			stats.Skipped++
			continue
		}

		if _, err := bw.WriteString(out); err != nil {
			return stats, fmt.Errorf("write transcoded line %d: %w", n, err)
		}
		if err := bw.WriteByte('\n'); err != nil {
			return stats, fmt.Errorf("write transcoded line %d: %w", n, err)
		}
		stats.Lines++
	}
	if err := sc.Err(); err != nil {
		return stats, fmt.Errorf("read records: %w", err)
	}
	if err := bw.Flush(); err != nil {
		return stats, fmt.Errorf("flush transcoded output: %w", err)
	}
	return stats, nil
}
