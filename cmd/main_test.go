package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"textbridge/internal/database"
	"textbridge/internal/domain"
)

func TestSendText(t *testing.T) {
	tests := []struct {
		name  string
		args  []string
		stdin string
		want  string
	}{
		{"Args are joined", []string{"hello", "world"}, "ignored", "hello world"},
		{"Stdin when no args", nil, "from stdin\n", "from stdin"},
		{"Stdin CRLF", nil, "line\r\n", "line"},
		{"Only one newline is dropped", nil, "a\n\n", "a\n"},
		{"Empty stdin", nil, "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := sendText(context.Background(), tt.args, strings.NewReader(tt.stdin))
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("Expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestSendTextStopsReadingStdinOnCancel(t *testing.T) {
	pr, pw := io.Pipe()
	t.Cleanup(func() {
		_ = pw.Close()
	})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := sendText(ctx, nil, pr)

	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Expected deadline error, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("Expected sendText to return promptly, took %s", elapsed)
	}
}

func TestRunUsage(t *testing.T) {
	var stdout, stderr bytes.Buffer

	if code := run(nil, strings.NewReader(""), &stdout, &stderr); code != 2 {
		t.Errorf("Expected exit code 2, got %d", code)
	}
	if !strings.Contains(stderr.String(), "Usage:") {
		t.Errorf("Expected usage on stderr, got %q", stderr.String())
	}
}

func TestRunUnknownCommand(t *testing.T) {
	var stdout, stderr bytes.Buffer

	if code := run([]string{"nope"}, strings.NewReader(""), &stdout, &stderr); code != 2 {
		t.Errorf("Expected exit code 2, got %d", code)
	}
	if !strings.Contains(stderr.String(), `unknown command "nope"`) {
		t.Errorf("Expected unknown command message, got %q", stderr.String())
	}
}

func TestRunSend(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var in map[string]string
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if in["text"] == "fail" {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte("got " + in["text"]))
	}))
	t.Cleanup(srv.Close)

	dbPath := filepath.Join(t.TempDir(), "cli.sqlite")
	t.Setenv("LOG_LEVEL", "error")
	t.Setenv("DB_PATH", dbPath)

	t.Run("Success", func(t *testing.T) {
		var stdout, stderr bytes.Buffer

		code := run([]string{"send", "--endpoint", srv.URL, "--field", "text", "hi", "there"},
			strings.NewReader(""), &stdout, &stderr)
		if code != 0 {
			t.Fatalf("Expected exit code 0, got %d (stderr %q)", code, stderr.String())
		}
		if stdout.String() != "got hi there\n" {
			t.Errorf("Expected body on stdout, got %q", stdout.String())
		}
	})

	t.Run("Status failure", func(t *testing.T) {
		var stdout, stderr bytes.Buffer

		code := run([]string{"send", "--endpoint", srv.URL, "--field", "text"},
			strings.NewReader("fail\n"), &stdout, &stderr)
		if code != 1 {
			t.Fatalf("Expected exit code 1, got %d", code)
		}
		if stdout.Len() != 0 {
			t.Errorf("Expected empty stdout, got %q", stdout.String())
		}
		if !strings.Contains(stderr.String(), "status: status error: post: unexpected status: 500") {
			t.Errorf("Expected classified error on stderr, got %q", stderr.String())
		}
	})
}

func TestRunSendIsJournaled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("pong"))
	}))
	t.Cleanup(srv.Close)

	dbPath := filepath.Join(t.TempDir(), "cli.sqlite")
	t.Setenv("LOG_LEVEL", "error")
	t.Setenv("DB_PATH", dbPath)

	var stdout, stderr bytes.Buffer
	if code := run([]string{"send", "--endpoint", srv.URL, "ping"}, strings.NewReader(""), &stdout, &stderr); code != 0 {
		t.Fatalf("Expected exit code 0, got %d (stderr %q)", code, stderr.String())
	}

	db, err := database.New(context.Background(), dbPath, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("Failed to open db: %v", err)
	}
	t.Cleanup(func() {
		_ = db.Close()
	})

	exchanges, err := db.GetRecentExchanges(context.Background(), domain.HostCLI, 0, 10)
	if err != nil {
		t.Fatalf("Failed to read exchanges: %v", err)
	}
	if len(exchanges) != 1 {
		t.Fatalf("Expected 1 journaled exchange, got %d", len(exchanges))
	}
	if exchanges[0].Outcome != "success" || exchanges[0].InputBytes != len("ping") {
		t.Errorf("Unexpected exchange: %+v", exchanges[0])
	}
}
