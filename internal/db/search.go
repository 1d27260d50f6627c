package db

import (
	"database/sql"
	"fmt"
	"regexp"
	"strings"
)

// fts5SpecialRe matches FTS5 metacharacters that can cause syntax errors.
var fts5SpecialRe = regexp.MustCompile(`[*"():{}^]`)

// SearchHit is one question matched by full-text search, with enough
// ancestry to render where in the catalog it lives.
type SearchHit struct {
	Question    *Question `json:"question"`
	ConceptName string    `json:"concept_name"`
	TopicName   string    `json:"topic_name"`
	SubjectName string    `json:"subject_name"`
}

// SearchQuestions runs an FTS5 match over question and answer text. The
// query is sanitized and quoted per token so user input cannot inject FTS
// syntax.
func (db *DB) SearchQuestions(query string, limit int) ([]*SearchHit, error) {
	query = fts5SpecialRe.ReplaceAllString(query, " ")
	tokens := strings.Fields(query)
	if len(tokens) == 0 {
		return []*SearchHit{}, nil
	}
	for i, tok := range tokens {
		tokens[i] = `"` + tok + `"`
	}
	match := strings.Join(tokens, " ")

	if limit <= 0 || limit > 50 {
		limit = 20
	}

	rows, err := db.Query(`
		SELECT q.id, q.question, q.answer, q.question_code, q.answer_code, q.question_type, q.concept_id,
		       c.name, t.name, s.name
		FROM questions_fts
		JOIN questions q ON q.id = questions_fts.rowid
		JOIN concepts c ON c.id = q.concept_id
		JOIN topics t ON t.id = c.topic_id
		JOIN subjects s ON s.id = t.subject_id
		WHERE questions_fts MATCH ?
		ORDER BY rank
		LIMIT ?`, match, limit)
	if err != nil {
		return nil, fmt.Errorf("searching questions: %w", err)
	}
	defer rows.Close()

	hits := []*SearchHit{}
	for rows.Next() {
		h := &SearchHit{Question: &Question{}}
		q := h.Question
		var questionCode, answerCode sql.NullString
		if err := rows.Scan(&q.ID, &q.Question, &q.Answer, &questionCode, &answerCode, &q.QuestionType, &q.ConceptID,
			&h.ConceptName, &h.TopicName, &h.SubjectName); err != nil {
			return nil, fmt.Errorf("scanning search hit: %w", err)
		}
		if questionCode.Valid {
			q.QuestionCode = &questionCode.String
		}
		if answerCode.Valid {
			q.AnswerCode = &answerCode.String
		}
		hits = append(hits, h)
	}
	return hits, rows.Err()
}
