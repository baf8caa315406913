package listener

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"licensescan/internal"
	"licensescan/internal/config"
	"licensescan/internal/connectors"
	"licensescan/internal/storage"
)

type fakeConnector struct {
	messages []internal.FetchedMailMessage
}

func (f fakeConnector) FetchInbox(context.Context, string, int) ([]internal.FetchedMailMessage, error) {
	return f.messages, nil
}

const scanMail = "From: desk@example.com\r\nSubject: Scan\r\nMessage-ID: <scan-1@example.com>\r\n\r\n" +
	"DCSSYED\r\nDACALLAHBAKSH SAMEER\r\nDAQS96390260903311\r\nDBB19901112\r\n"

func TestRunCycleExportsProcessedMail(t *testing.T) {
	tmp := t.TempDir()
	db, err := storage.Open(filepath.Join(tmp, "app.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	cfg, _ := config.Load()
	cfg.RawMailDir = filepath.Join(tmp, "raw")
	cfg.OutputDir = filepath.Join(tmp, "out")
	cfg.MailListenerProvider = "imap"
	cfg.MailListenerAutoSubmit = false
	cfg.MailListenerAutoExport = true

	svc := NewService(db, cfg)
	svc.connector = func(string) (connectors.MailConnector, error) {
		return fakeConnector{messages: []internal.FetchedMailMessage{
			{Provider: "imap", MessageID: "<scan-1@example.com>", Subject: "Scan", Raw: []byte(scanMail)},
		}}, nil
	}

	if err := svc.runCycle(context.Background()); err != nil {
		t.Fatal(err)
	}

	email, err := db.MustEmailByProviderMessageID("imap", "<scan-1@example.com>")
	if err != nil {
		t.Fatal(err)
	}
	if email.Status != "exported" {
		t.Fatalf("status=%s", email.Status)
	}
	scans, err := db.ListScansByEmail(email.ID)
	if err != nil || len(scans) != 1 || scans[0].Status != internal.ScanReady {
		t.Fatalf("scans=%+v err=%v", scans, err)
	}

	out := filepath.Join(cfg.OutputDir, "listener", "1__scan-1@example.com_.xlsx")
	if _, err := os.Stat(out); err != nil {
		t.Fatal(err)
	}
}

func TestSanitizeMessageID(t *testing.T) {
	if got := sanitizeMessageID("<a/b:c@d>"); got != "_a_b_c@d_" {
		t.Fatalf("got=%q", got)
	}
}
