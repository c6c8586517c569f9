// Package samples reads and appends newline-delimited nanosecond duration files.
package samples

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/afero"
)

// NanosPerMilli converts raw nanosecond samples to milliseconds.
const NanosPerMilli = 1_000_000.0

var (
	ErrFileNotFound    = errors.New("sample file not found")
	ErrMalformedSample = errors.New("malformed sample")
	ErrReadFailed      = errors.New("failed to read sample file")
	ErrAppendFailed    = errors.New("failed to append sample")
	ErrInvalidDivisor  = errors.New("unit divisor must be positive")
)

// Load reads path and returns one value per non-blank line, in file order,
// each parsed as an integer and divided by divisor.
// Any unparsable line fails the whole load.
func Load(fsys afero.Fs, path string, divisor float64) ([]float64, error) {
	if divisor <= 0 {
		return nil, ErrInvalidDivisor
	}

	f, err := fsys.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrFileNotFound, path)
		}
		return nil, fmt.Errorf("%w: %w", ErrReadFailed, err)
	}
	defer f.Close()

	var values []float64
	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		raw, err := parseSample(line)
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %w", ErrMalformedSample, lineNo, err)
		}
		values = append(values, float64(raw)/divisor)
	}
	if err := scanner.Err(); err != nil {
		// an over-long line can never hold an int64
		if errors.Is(err, bufio.ErrTooLong) {
			return nil, fmt.Errorf("%w: line %d: %w", ErrMalformedSample, lineNo+1, err)
		}
		return nil, fmt.Errorf("%w: %w", ErrReadFailed, err)
	}

	return values, nil
}

// parseSample parses a base-10 integer. Digits may be grouped with single
// underscores between them, as in 1_500_000.
func parseSample(line string) (int64, error) {
	if !strings.Contains(line, "_") {
		return strconv.ParseInt(line, 10, 64)
	}
	for i := 0; i < len(line); i++ {
		if line[i] == '_' && (i == 0 || i == len(line)-1 || !isDigit(line[i-1]) || !isDigit(line[i+1])) {
			return 0, &strconv.NumError{Func: "ParseInt", Num: line, Err: strconv.ErrSyntax}
		}
	}
	n, err := strconv.ParseInt(strings.ReplaceAll(line, "_", ""), 10, 64)
	var numErr *strconv.NumError
	if errors.As(err, &numErr) {
		numErr.Num = line
	}
	return n, err
}

func isDigit(c byte) bool {
	return '0' <= c && c <= '9'
}

// Append writes d as a single nanosecond line at the end of path,
// creating the file when needed.
func Append(fsys afero.Fs, path string, d time.Duration) (err error) {
	f, err := fsys.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrAppendFailed, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("%w: %w", ErrAppendFailed, cerr)
		}
	}()

	if _, err := fmt.Fprintf(f, "%d\n", d.Nanoseconds()); err != nil {
		return fmt.Errorf("%w: %w", ErrAppendFailed, err)
	}
	return nil
}
