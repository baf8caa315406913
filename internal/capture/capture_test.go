package capture

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"
)

const scan = "DCSSYED\nDACALLAHBAKSH SAMEER\nDAQS96390260903311\nDBB19901112"

func TestRunTerminator(t *testing.T) {
	b := Buffer{Quiet: time.Hour, MinLength: 10, Terminator: "\r"}
	var got []string
	err := b.Run(context.Background(), strings.NewReader(scan+"\rabc\r"+scan+"\r"), func(s string) { got = append(got, s) })
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0] != scan || got[1] != scan {
		t.Fatalf("got=%q", got)
	}
}

func TestRunFlushesAtEOF(t *testing.T) {
	b := Buffer{Quiet: time.Hour, MinLength: 10}
	var got []string
	if err := b.Run(context.Background(), strings.NewReader("  "+scan+"\n"), func(s string) { got = append(got, s) }); err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0] != scan {
		t.Fatalf("got=%q", got)
	}
}

func TestRunQuietPeriod(t *testing.T) {
	pr, pw := io.Pipe()
	emitted := make(chan string, 4)
	errc := make(chan error, 1)
	go func() {
		b := Buffer{Quiet: 100 * time.Millisecond, MinLength: 10}
		errc <- b.Run(context.Background(), pr, func(s string) { emitted <- s })
	}()

	next := func() string {
		select {
		case s := <-emitted:
			return s
		case <-time.After(5 * time.Second):
			t.Fatal("burst never emitted")
			return ""
		}
	}

	for i := 0; i < 2; i++ {
		_, _ = io.WriteString(pw, scan)
		if got := next(); got != scan {
			t.Fatalf("burst %d=%q", i, got)
		}
	}
	_, _ = io.WriteString(pw, "12345")
	_ = pw.Close()

	if err := <-errc; err != nil {
		t.Fatal(err)
	}
	if len(emitted) != 0 {
		t.Fatalf("short burst emitted: %q", <-emitted)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	pr, pw := io.Pipe()
	defer pw.Close()

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() {
		errc <- Buffer{Quiet: 10 * time.Millisecond}.Run(ctx, pr, func(string) {})
	}()

	cancel()
	select {
	case err := <-errc:
		if err != nil {
			t.Fatal(err)
		}
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
