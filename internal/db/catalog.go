package db

import (
	"database/sql"
	"fmt"
	"strings"
)

// Subject is the root of the catalog tree. Topics are populated by the read
// paths and consumed by ReplaceCatalog; they are not loaded by the single
// entity lookups.
type Subject struct {
	ID      int64    `json:"id"`
	Name    string   `json:"name"`
	Topics  []*Topic `json:"topics,omitempty"`
}

type Topic struct {
	ID        int64      `json:"id"`
	Name      string     `json:"name"`
	Details   *string    `json:"details,omitempty"`
	SubjectID int64      `json:"subject_id"`
	Concepts  []*Concept `json:"concepts,omitempty"`
}

type Concept struct {
	ID          int64       `json:"id"`
	Name        string      `json:"name"`
	Details     *string     `json:"details,omitempty"`
	CodeExample *string     `json:"code_example,omitempty"`
	TopicID     int64       `json:"topic_id"`
	Questions   []*Question `json:"questions,omitempty"`
}

type Question struct {
	ID           int64   `json:"id"`
	Question     string  `json:"question"`
	Answer       string  `json:"answer"`
	QuestionCode *string `json:"question_code,omitempty"`
	AnswerCode   *string `json:"answer_code,omitempty"`
	QuestionType string  `json:"question_type"`
	ConceptID    int64   `json:"concept_id"`
}

// QuestionTypes are the accepted values for questions.question_type.
var QuestionTypes = []string{"technical", "general", "competency"}

func validQuestionType(t string) bool {
	for _, v := range QuestionTypes {
		if t == v {
			return true
		}
	}
	return false
}

// rowExists reports whether the given table has a row with this id. Table
// names are compile-time constants at every call site, never user input.
func (db *DB) rowExists(table string, id int64) (bool, error) {
	var one int
	err := db.QueryRow(fmt.Sprintf("SELECT 1 FROM %s WHERE id = ?", table), id).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// CreateSubject inserts a single subject and returns it with its generated id.
func (db *DB) CreateSubject(name string) (*Subject, error) {
	if strings.TrimSpace(name) == "" {
		return nil, &ValidationError{Field: "name"}
	}
	res, err := db.Exec(`INSERT INTO subjects (name) VALUES (?)`, name)
	if err != nil {
		return nil, fmt.Errorf("creating subject: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("reading subject id: %w", err)
	}
	return &Subject{ID: id, Name: name}, nil
}

// CreateTopic inserts a single topic under an existing subject.
func (db *DB) CreateTopic(name string, details *string, subjectID int64) (*Topic, error) {
	if strings.TrimSpace(name) == "" {
		return nil, &ValidationError{Field: "name"}
	}
	ok, err := db.rowExists("subjects", subjectID)
	if err != nil {
		return nil, fmt.Errorf("checking subject %d: %w", subjectID, err)
	}
	if !ok {
		return nil, &ReferentialError{Kind: "subject", ParentID: subjectID}
	}
	res, err := db.Exec(`INSERT INTO topics (name, details, subject_id) VALUES (?, ?, ?)`,
		name, details, subjectID)
	if err != nil {
		if isFKViolation(err) {
			return nil, &ReferentialError{Kind: "subject", ParentID: subjectID}
		}
		return nil, fmt.Errorf("creating topic: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("reading topic id: %w", err)
	}
	return &Topic{ID: id, Name: name, Details: details, SubjectID: subjectID}, nil
}

// CreateConcept inserts a single concept under an existing topic.
func (db *DB) CreateConcept(name string, details, codeExample *string, topicID int64) (*Concept, error) {
	if strings.TrimSpace(name) == "" {
		return nil, &ValidationError{Field: "name"}
	}
	ok, err := db.rowExists("topics", topicID)
	if err != nil {
		return nil, fmt.Errorf("checking topic %d: %w", topicID, err)
	}
	if !ok {
		return nil, &ReferentialError{Kind: "topic", ParentID: topicID}
	}
	res, err := db.Exec(`INSERT INTO concepts (name, details, code_example, topic_id) VALUES (?, ?, ?, ?)`,
		name, details, codeExample, topicID)
	if err != nil {
		if isFKViolation(err) {
			return nil, &ReferentialError{Kind: "topic", ParentID: topicID}
		}
		return nil, fmt.Errorf("creating concept: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("reading concept id: %w", err)
	}
	return &Concept{ID: id, Name: name, Details: details, CodeExample: codeExample, TopicID: topicID}, nil
}

// Counts returns the number of rows per catalog table.
func (db *DB) Counts() (subjects, topics, concepts, questions int, err error) {
	err = db.QueryRow(`SELECT
		(SELECT COUNT(*) FROM subjects),
		(SELECT COUNT(*) FROM topics),
		(SELECT COUNT(*) FROM concepts),
		(SELECT COUNT(*) FROM questions)`).Scan(&subjects, &topics, &concepts, &questions)
	return
}
