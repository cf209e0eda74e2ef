package tsio

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestCSVConsumer_WritesThreeTables(t *testing.T) {
	basepath := filepath.Join(t.TempDir(), "run")
	c := NewCSVConsumer(basepath)
	if err := c.Init(); err != nil {
		t.Fatalf(unexpectedErrorWhile, "initializing a CSV consumer", err)
	}

	if err := c.WriteNodes([]uint32{0, 1}, []float64{10, 0}); err != nil {
		t.Fatalf(unexpectedErrorWhile, "writing the node table", err)
	}
	if err := c.WriteEdges([]int32{0}, []int32{2}, []int32{0}, []int32{1}); err != nil {
		t.Fatalf(unexpectedErrorWhile, "writing the edge table", err)
	}
	if err := c.WriteMutations([]int32{0}, []int32{1}, []int8{1}, []int32{-1}); err != nil {
		t.Fatalf(unexpectedErrorWhile, "writing the mutation table", err)
	}

	for _, suffix := range []string{".nodes.csv", ".edges.csv", ".mutations.csv"} {
		path := basepath + suffix
		b, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf(unexpectedErrorWhile, "reading back "+suffix, err)
		}
		if strings.TrimSpace(string(b)) == "" {
			t.Errorf("%s is empty after a write", suffix)
		}
	}
}

func TestCSVConsumer_OverwritesExistingFile(t *testing.T) {
	basepath := filepath.Join(t.TempDir(), "run")
	path := basepath + ".nodes.csv"
	if err := os.WriteFile(path, []byte("stale\n"), 0644); err != nil {
		t.Fatalf(unexpectedErrorWhile, "seeding a stale file", err)
	}

	c := NewCSVConsumer(basepath)
	if err := c.WriteNodes([]uint32{1}, []float64{5}); err != nil {
		t.Fatalf(unexpectedErrorWhile, "writing the node table over a stale file", err)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf(unexpectedErrorWhile, "reading back the node table", err)
	}
	if strings.Contains(string(b), "stale") {
		t.Errorf("expected the stale contents to be overwritten, instead got %q", string(b))
	}
}
