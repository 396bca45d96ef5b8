package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNewRootCmd(t *testing.T) {
	cmd := NewRootCmd()

	if cmd.Use != "scraper" {
		t.Errorf("expected use 'scraper', got %q", cmd.Use)
	}
	if cmd.Short == "" || cmd.Long == "" {
		t.Error("expected non-empty descriptions")
	}

	flag := cmd.PersistentFlags().Lookup("verbose")
	if flag == nil {
		t.Fatal("expected verbose flag")
	}
	if flag.Shorthand != "v" {
		t.Errorf("expected shorthand 'v', got %q", flag.Shorthand)
	}

	want := map[string]bool{"links": false, "details": false, "clean": false, "run": false}
	for _, sub := range cmd.Commands() {
		if _, ok := want[sub.Name()]; ok {
			want[sub.Name()] = true
		}
	}
	for name, found := range want {
		if !found {
			t.Errorf("missing subcommand %q", name)
		}
	}
}

func TestStageFlags(t *testing.T) {
	cmd := NewRootCmd()
	tests := []struct {
		sub     string
		flag    string
		present bool
	}{
		{sub: "links", flag: "pages", present: true},
		{sub: "links", flag: "format", present: false},
		{sub: "clean", flag: "format", present: true},
		{sub: "clean", flag: "pages", present: false},
		{sub: "run", flag: "pages", present: true},
		{sub: "run", flag: "format", present: true},
	}

	for _, tt := range tests {
		t.Run(tt.sub+"_"+tt.flag, func(t *testing.T) {
			sub, _, err := cmd.Find([]string{tt.sub})
			if err != nil {
				t.Fatalf("find %s: %v", tt.sub, err)
			}
			if got := sub.Flags().Lookup(tt.flag) != nil; got != tt.present {
				t.Fatalf("flag %q present=%v, want %v", tt.flag, got, tt.present)
			}
		})
	}
}

func TestCleanCommand(t *testing.T) {
	dir := t.TempDir()
	raw := filepath.Join(dir, "books.csv")
	final := filepath.Join(dir, "final.csv")
	content := "title,series,description,pages,publication_date,formats,contributors,link\n" +
		"Foundation,Foundation #3,<p>Hello   <b>world</b></p>,,,,,/book/foundation/\n"
	if err := os.WriteFile(raw, []byte(content), 0o644); err != nil {
		t.Fatalf("write raw table: %v", err)
	}
	t.Setenv("BOOK_FILEPATH", raw)
	t.Setenv("FINAL_BOOK_FILEPATH", final)

	cmd := NewRootCmd()
	cmd.SetArgs([]string{"clean", "--env-file", filepath.Join(dir, "missing.env")})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("execute: %v", err)
	}

	data, err := os.ReadFile(final)
	if err != nil {
		t.Fatalf("read final table: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 2 {
		t.Fatalf("lines=%d, want 2: %q", len(lines), data)
	}
	if lines[0] != "title,description,series,series_number,pages,publication_date,formats,contributors" {
		t.Fatalf("header=%q", lines[0])
	}
	if lines[1] != "Foundation,Hello world,Foundation ,3,,,," {
		t.Fatalf("row=%q", lines[1])
	}
}

func TestInvalidConfiguration(t *testing.T) {
	cmd := NewRootCmd()
	cmd.SetArgs([]string{"links", "--pages", "0", "--env-file", filepath.Join(t.TempDir(), "missing.env")})
	err := cmd.Execute()
	if err == nil || !strings.Contains(err.Error(), "max pages") {
		t.Fatalf("err=%v, want max pages validation error", err)
	}
}
