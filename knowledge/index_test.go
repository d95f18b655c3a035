package knowledge

import (
	"path/filepath"
	"reflect"
	"testing"
)

func openTestIndex(t *testing.T) *Index {
	t.Helper()
	ix, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open index: %v", err)
	}
	t.Cleanup(func() { ix.Close() })
	return ix
}

func TestTokenize(t *testing.T) {
	got := tokenize("Колибри ПОЁТ, и v2 летит!")
	want := []string{"колибри", "поёт", "и", "v2", "летит"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestIngestAndCount(t *testing.T) {
	ix := openTestIndex(t)
	if _, err := ix.Ingest("manual", "колибри пьёт нектар"); err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if _, err := ix.Ingest("manual", "ястреб охотится днём"); err != nil {
		t.Fatalf("ingest: %v", err)
	}
	n, err := ix.Count()
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 2 {
		t.Fatalf("count = %d, want 2", n)
	}
}

func TestIngestRejectsEmptyText(t *testing.T) {
	ix := openTestIndex(t)
	if _, err := ix.Ingest("manual", "... !!!"); err == nil {
		t.Fatal("expected an error for a document with no terms")
	}
}

func TestQueryRanksRelevantFirst(t *testing.T) {
	ix := openTestIndex(t)
	docs := []string{
		"колибри пьёт нектар из цветов",
		"ястреб охотится на мышей",
		"колибри машет крыльями очень быстро",
	}
	for _, d := range docs {
		if _, err := ix.Ingest("manual", d); err != nil {
			t.Fatalf("ingest: %v", err)
		}
	}

	results, err := ix.Query("колибри нектар", 2)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}
	if results[0].Text != docs[0] {
		t.Fatalf("top hit %q, want the nectar document", results[0].Text)
	}
	if results[0].Score <= results[1].Score {
		t.Fatal("results not ranked by score")
	}
}

func TestQueryUnknownTerms(t *testing.T) {
	ix := openTestIndex(t)
	if _, err := ix.Ingest("manual", "один документ"); err != nil {
		t.Fatalf("ingest: %v", err)
	}
	results, err := ix.Query("синхрофазотрон", 5)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(results) != 0 {
		t.Fatalf("got %d results, want 0", len(results))
	}
}

func TestQueryEmptyIndex(t *testing.T) {
	ix := openTestIndex(t)
	results, err := ix.Query("что угодно", 3)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if results != nil {
		t.Fatalf("got %v, want nil", results)
	}
}
