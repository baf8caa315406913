// Package capture turns keystroke bursts from a keyboard-wedge barcode
// scanner into complete scan payloads.
package capture

import (
	"bufio"
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"licensescan/internal/config"
)

type Buffer struct {
	Quiet      time.Duration
	MinLength  int
	Terminator string
}

func FromConfig(cfg config.Config) Buffer {
	return Buffer{Quiet: cfg.ScanQuiet, MinLength: cfg.ScanMinLength, Terminator: cfg.ScanTerminator}
}

type readResult struct {
	r   rune
	err error
}

func (b Buffer) Run(ctx context.Context, r io.Reader, emit func(string)) error {
	quiet := b.Quiet
	if quiet <= 0 {
		quiet = 120 * time.Millisecond
	}
	terminator, hasTerminator := rune(0), false
	if b.Terminator != "" {
		terminator, _ = utf8.DecodeRuneInString(b.Terminator)
		hasTerminator = true
	}

	done := make(chan struct{})
	defer close(done)
	reads := make(chan readResult)
	go func() {
		br := bufio.NewReader(r)
		for {
			ch, _, err := br.ReadRune()
			select {
			case reads <- readResult{r: ch, err: err}:
			case <-done:
				return
			}
			if err != nil {
				return
			}
		}
	}()

	idle := time.NewTimer(quiet)
	idle.Stop()
	var buf strings.Builder

	flush := func(reason string) {
		text := strings.TrimSpace(buf.String())
		buf.Reset()
		if text == "" {
			return
		}
		if n := utf8.RuneCountInString(text); n < b.MinLength {
			slog.Debug("scan burst dropped", "runes", n, "reason", reason)
			return
		}
		emit(text)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-idle.C:
			flush("quiet")
		case res := <-reads:
			if res.err != nil {
				idle.Stop()
				flush("eof")
				if errors.Is(res.err, io.EOF) {
					return nil
				}
				return res.err
			}
			if hasTerminator && res.r == terminator {
				idle.Stop()
				flush("terminator")
				continue
			}
			buf.WriteRune(res.r)
			idle.Reset(quiet)
		}
	}
}
