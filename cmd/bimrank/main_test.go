package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/hotel-search/internal/searcher/executor"
)

func writeCorpus(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	for name, text := range map[string]string{
		"A.txt": "Lake View Resort",
		"B.txt": "Mountain Lodge",
	} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(text), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

func TestRunPrintsRanking(t *testing.T) {
	var out bytes.Buffer
	if err := run(context.Background(), []string{"--dir", writeCorpus(t), "lake", "resort"}, &out); err != nil {
		t.Fatal(err)
	}
	want := "A.txt\t0.5625\nB.txt\t0.1837\n"
	if out.String() != want {
		t.Errorf("output = %q, want %q", out.String(), want)
	}
}

func TestRunLimitAndJSON(t *testing.T) {
	var out bytes.Buffer
	args := []string{"-d", writeCorpus(t), "-n", "1", "--json", "mountain"}
	if err := run(context.Background(), args, &out); err != nil {
		t.Fatal(err)
	}
	var res executor.SearchResult
	if err := json.Unmarshal(out.Bytes(), &res); err != nil {
		t.Fatal(err)
	}
	if len(res.Results) != 1 || res.Results[0].DocID != "B.txt" {
		t.Errorf("results = %+v", res.Results)
	}
}

func TestRunExplain(t *testing.T) {
	var out bytes.Buffer
	if err := run(context.Background(), []string{"--dir", writeCorpus(t), "--explain", "lake"}, &out); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.String(), "tf=1 df=1") {
		t.Errorf("explain output missing factors:\n%s", out.String())
	}
}

func TestRunMissingDir(t *testing.T) {
	err := run(context.Background(), []string{"--dir", filepath.Join(t.TempDir(), "nope"), "lake"}, &bytes.Buffer{})
	if err == nil {
		t.Fatal("expected error for missing corpus dir")
	}
}
