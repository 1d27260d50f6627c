// Package export serializes the catalog for download: either the nested
// document shape that POST /api/catalog/import accepts back, or flat JSONL
// question cards for spaced-repetition tooling.
package export

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/cautiouskurns/FinalRound/internal/db"
)

// Document is a self-contained catalog export.
type Document struct {
	ExportedAt string        `json:"exported_at"`
	Version    string        `json:"export_version"`
	Subjects   []*db.Subject `json:"subjects"`
}

// Card is one flat question record in the JSONL export.
type Card struct {
	Subject      string  `json:"subject"`
	Topic        string  `json:"topic"`
	Concept      string  `json:"concept"`
	Question     string  `json:"question"`
	Answer       string  `json:"answer"`
	QuestionCode *string `json:"question_code,omitempty"`
	AnswerCode   *string `json:"answer_code,omitempty"`
	QuestionType string  `json:"question_type"`
}

// Exporter produces catalog exports from the database.
type Exporter struct {
	database *db.DB
}

func NewExporter(database *db.DB) *Exporter {
	return &Exporter{database: database}
}

// WriteDocument writes the whole catalog as one JSON document.
func (e *Exporter) WriteDocument(w io.Writer) error {
	subjects, err := e.database.LoadCatalog(true)
	if err != nil {
		return fmt.Errorf("loading catalog: %w", err)
	}
	doc := Document{
		ExportedAt: time.Now().UTC().Format(time.RFC3339),
		Version:    "1",
		Subjects:   subjects,
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}

// WriteCards writes every question as one JSONL line with its ancestry.
func (e *Exporter) WriteCards(w io.Writer) error {
	subjects, err := e.database.LoadCatalog(true)
	if err != nil {
		return fmt.Errorf("loading catalog: %w", err)
	}
	enc := json.NewEncoder(w)
	for _, s := range subjects {
		for _, t := range s.Topics {
			for _, c := range t.Concepts {
				for _, q := range c.Questions {
					card := Card{
						Subject:      s.Name,
						Topic:        t.Name,
						Concept:      c.Name,
						Question:     q.Question,
						Answer:       q.Answer,
						QuestionCode: q.QuestionCode,
						AnswerCode:   q.AnswerCode,
						QuestionType: q.QuestionType,
					}
					if err := enc.Encode(card); err != nil {
						return fmt.Errorf("encoding card: %w", err)
					}
				}
			}
		}
	}
	return nil
}
