package pipeline

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"ctrip-reviews/models"
)

func sampleReviews() []*models.Review {
	return []*models.Review{
		{
			Author:      "旅行者小王",
			Date:        "2024-05-01",
			Score:       "4.5",
			Content:     "景色很美，值得一来",
			Location:    "上海",
			Tags:        "风景,性价比",
			UsefulCount: 12,
			ReplyCount:  2,
			ImageCount:  3,
			Identity:    "铂金贵宾",
			CommentID:   "987654321",
		},
		{
			Author:    "anonymous",
			Content:   `text with "quotes", commas, and
a newline`,
			CommentID: "987654322",
		},
	}
}

func TestCSVWriterRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reviews.csv")
	w, err := NewCSVWriter(path)
	if err != nil {
		t.Fatalf("new csv writer: %v", err)
	}

	reviews := sampleReviews()
	if err := w.Write(reviews); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := w.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("rows = %d, want header + 2 records", len(rows))
	}
	if !reflect.DeepEqual(rows[0], reviewHeader) {
		t.Fatalf("header = %v, want %v", rows[0], reviewHeader)
	}
	if rows[1][0] != "旅行者小王" || rows[1][10] != "987654321" {
		t.Fatalf("first record mangled: %v", rows[1])
	}
	if rows[2][3] != reviews[1].Content {
		t.Fatalf("quoted content mangled: %q", rows[2][3])
	}
}

func TestJSONWriterRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reviews.jsonl")
	w, err := NewJSONWriter(path)
	if err != nil {
		t.Fatalf("new json writer: %v", err)
	}

	reviews := sampleReviews()
	if err := w.Write(reviews); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()

	var decoded []*models.Review
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var review models.Review
		if err := json.Unmarshal(scanner.Bytes(), &review); err != nil {
			t.Fatalf("decode line: %v", err)
		}
		decoded = append(decoded, &review)
	}
	if err := scanner.Err(); err != nil {
		t.Fatalf("scan: %v", err)
	}

	if len(decoded) != len(reviews) {
		t.Fatalf("records = %d, want %d", len(decoded), len(reviews))
	}
	for i := range reviews {
		if *decoded[i] != *reviews[i] {
			t.Fatalf("record %d mismatch:\n got %+v\nwant %+v", i, decoded[i], reviews[i])
		}
	}
}

func TestJSONWriterKeepsCJKLiteral(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reviews.jsonl")
	w, err := NewJSONWriter(path)
	if err != nil {
		t.Fatalf("new json writer: %v", err)
	}
	if err := w.Write([]*models.Review{{Content: "风景<很>美"}}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !strings.Contains(string(raw), "风景<很>美") {
		t.Fatalf("CJK or angle brackets were escaped: %s", raw)
	}
}

func TestDualWriterWritesBoth(t *testing.T) {
	dir := t.TempDir()
	csvPath := filepath.Join(dir, "reviews.csv")
	jsonPath := filepath.Join(dir, "reviews.jsonl")

	w, err := NewDualWriter(csvPath, jsonPath)
	if err != nil {
		t.Fatalf("new dual writer: %v", err)
	}
	if err := w.Write(sampleReviews()); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := w.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	for _, path := range []string{csvPath, jsonPath} {
		info, err := os.Stat(path)
		if err != nil {
			t.Fatalf("stat %s: %v", path, err)
		}
		if info.Size() == 0 {
			t.Fatalf("%s is empty", path)
		}
	}
}

func TestSQLiteWriterRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reviews.db")
	w, err := NewSQLiteWriter(path)
	if err != nil {
		t.Fatalf("new sqlite writer: %v", err)
	}

	reviews := sampleReviews()
	if err := w.Write(reviews); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := w.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}

	var count int
	if err := w.db.QueryRow(`SELECT COUNT(*) FROM reviews`).Scan(&count); err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != len(reviews) {
		t.Fatalf("rows = %d, want %d", count, len(reviews))
	}

	var author, content string
	var useful int
	err = w.db.QueryRow(
		`SELECT author, content, useful_count FROM reviews WHERE comment_id = ?`,
		"987654321",
	).Scan(&author, &content, &useful)
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	if author != "旅行者小王" || useful != 12 {
		t.Fatalf("row mismatch: author=%q useful=%d", author, useful)
	}

	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
}

func TestSQLiteWriterValidateEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.db")
	w, err := NewSQLiteWriter(path)
	if err != nil {
		t.Fatalf("new sqlite writer: %v", err)
	}
	defer w.Close()

	if err := w.Validate(); err == nil {
		t.Fatalf("empty table must fail validation")
	}
}

func TestWritersCreateMissingDirectories(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "deeper", "reviews.csv")

	w, err := NewCSVWriter(path)
	if err != nil {
		t.Fatalf("new csv writer: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("output file missing: %v", err)
	}
}
