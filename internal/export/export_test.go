package export

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/cautiouskurns/FinalRound/internal/db"
)

func seedDB(t *testing.T) *db.DB {
	t.Helper()
	database, err := db.Open(filepath.Join(t.TempDir(), "catalog.db"))
	if err != nil {
		t.Fatalf("opening test database: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	details := "intro"
	doc := []*db.Subject{{
		Name: "JS",
		Topics: []*db.Topic{{
			Name:    "Basics",
			Details: &details,
			Concepts: []*db.Concept{{
				Name: "Vars",
				Questions: []*db.Question{
					{Question: "What is let?", Answer: "block-scoped"},
					{Question: "What is const?", Answer: "no reassignment"},
				},
			}},
		}},
	}}
	if _, err := database.ReplaceCatalog(doc); err != nil {
		t.Fatalf("seeding: %v", err)
	}
	return database
}

func TestWriteDocument(t *testing.T) {
	database := seedDB(t)
	exporter := NewExporter(database)

	var buf bytes.Buffer
	if err := exporter.WriteDocument(&buf); err != nil {
		t.Fatalf("write document: %v", err)
	}

	var doc Document
	if err := json.Unmarshal(buf.Bytes(), &doc); err != nil {
		t.Fatalf("decoding export: %v", err)
	}
	if doc.ExportedAt == "" || doc.Version != "1" {
		t.Fatalf("missing metadata: %+v", doc)
	}
	if len(doc.Subjects) != 1 || doc.Subjects[0].Name != "JS" {
		t.Fatalf("unexpected subjects: %+v", doc.Subjects)
	}
	questions := doc.Subjects[0].Topics[0].Concepts[0].Questions
	if len(questions) != 2 {
		t.Fatalf("expected 2 questions, got %d", len(questions))
	}
}

func TestWriteCards(t *testing.T) {
	database := seedDB(t)
	exporter := NewExporter(database)

	var buf bytes.Buffer
	if err := exporter.WriteCards(&buf); err != nil {
		t.Fatalf("write cards: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 card lines, got %d", len(lines))
	}
	var card Card
	if err := json.Unmarshal([]byte(lines[0]), &card); err != nil {
		t.Fatalf("decoding card: %v", err)
	}
	if card.Subject != "JS" || card.Topic != "Basics" || card.Concept != "Vars" {
		t.Fatalf("ancestry wrong: %+v", card)
	}
	if card.QuestionType != "technical" {
		t.Fatalf("default question type lost: %+v", card)
	}
}
