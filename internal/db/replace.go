package db

import (
	"database/sql"
	"fmt"
	"strings"
	"sync"
)

// ImportCounts summarizes a successful bulk replace.
type ImportCounts struct {
	Subjects  int `json:"inserted_subjects"`
	Topics    int `json:"inserted_topics"`
	Concepts  int `json:"inserted_concepts"`
	Questions int `json:"inserted_questions"`
}

// importMu serializes ReplaceCatalog calls. The operation is an
// administrative whole-catalog rewrite; overlapping calls would each try to
// hold a write transaction spanning every table, so they queue here instead
// of fighting over the SQLite write lock.
var importMu sync.Mutex

// ReplaceCatalog atomically replaces the entire catalog with the supplied
// document. Inside one transaction it deletes all existing rows child-first
// (questions, concepts, topics, subjects), then inserts the document
// parent-first, threading each generated id into the child inserts. Any
// failure rolls the whole transaction back and leaves the store untouched.
func (db *DB) ReplaceCatalog(doc []*Subject) (*ImportCounts, error) {
	importMu.Lock()
	defer importMu.Unlock()

	tx, err := db.Begin()
	if err != nil {
		return nil, fmt.Errorf("beginning import transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	// Child rows reference parent ids, so deletion order is a correctness
	// requirement, not a style choice.
	for _, table := range []string{"questions", "concepts", "topics", "subjects"} {
		if _, err := tx.Exec("DELETE FROM " + table); err != nil {
			return nil, fmt.Errorf("clearing %s: %w", table, err)
		}
	}

	counts := &ImportCounts{}
	for _, subject := range doc {
		if err := insertSubjectTree(tx, subject, counts); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing import: %w", err)
	}
	return counts, nil
}

func insertSubjectTree(tx *sql.Tx, subject *Subject, counts *ImportCounts) error {
	if subject == nil || strings.TrimSpace(subject.Name) == "" {
		return &ValidationError{Field: "subject.name"}
	}
	res, err := tx.Exec(`INSERT INTO subjects (name) VALUES (?)`, subject.Name)
	if err != nil {
		return fmt.Errorf("inserting subject %q: %w", subject.Name, err)
	}
	subjectID, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("reading id for subject %q: %w", subject.Name, err)
	}
	counts.Subjects++

	for _, topic := range subject.Topics {
		if err := insertTopicTree(tx, topic, subjectID, counts); err != nil {
			return err
		}
	}
	return nil
}

func insertTopicTree(tx *sql.Tx, topic *Topic, subjectID int64, counts *ImportCounts) error {
	if topic == nil || strings.TrimSpace(topic.Name) == "" {
		return &ValidationError{Field: "topic.name"}
	}
	res, err := tx.Exec(`INSERT INTO topics (name, details, subject_id) VALUES (?, ?, ?)`,
		topic.Name, topic.Details, subjectID)
	if err != nil {
		return fmt.Errorf("inserting topic %q: %w", topic.Name, err)
	}
	topicID, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("reading id for topic %q: %w", topic.Name, err)
	}
	counts.Topics++

	for _, concept := range topic.Concepts {
		if err := insertConceptTree(tx, concept, topicID, counts); err != nil {
			return err
		}
	}
	return nil
}

func insertConceptTree(tx *sql.Tx, concept *Concept, topicID int64, counts *ImportCounts) error {
	if concept == nil || strings.TrimSpace(concept.Name) == "" {
		return &ValidationError{Field: "concept.name"}
	}
	res, err := tx.Exec(`INSERT INTO concepts (name, details, code_example, topic_id) VALUES (?, ?, ?, ?)`,
		concept.Name, concept.Details, concept.CodeExample, topicID)
	if err != nil {
		return fmt.Errorf("inserting concept %q: %w", concept.Name, err)
	}
	conceptID, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("reading id for concept %q: %w", concept.Name, err)
	}
	counts.Concepts++

	for _, question := range concept.Questions {
		if question == nil || strings.TrimSpace(question.Question) == "" {
			return &ValidationError{Field: "question.question"}
		}
		if strings.TrimSpace(question.Answer) == "" {
			return &ValidationError{Field: "question.answer"}
		}
		qtype := question.QuestionType
		if qtype == "" {
			qtype = "technical"
		}
		if !validQuestionType(qtype) {
			return &ValidationError{Field: "question.question_type"}
		}
		if _, err := tx.Exec(`INSERT INTO questions (question, answer, question_code, answer_code, question_type, concept_id)
			VALUES (?, ?, ?, ?, ?, ?)`,
			question.Question, question.Answer, question.QuestionCode, question.AnswerCode, qtype, conceptID); err != nil {
			return fmt.Errorf("inserting question under concept %q: %w", concept.Name, err)
		}
		counts.Questions++
	}
	return nil
}

// LoadCatalog reads the whole catalog back in the nested document shape,
// id-ascending at every level. One child query per parent row — fine at
// catalog scale (tens to low hundreds of rows).
func (db *DB) LoadCatalog(includeQuestions bool) ([]*Subject, error) {
	subjects := []*Subject{}
	rows, err := db.Query(`SELECT id, name FROM subjects ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("reading subjects: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		s := &Subject{Topics: []*Topic{}}
		if err := rows.Scan(&s.ID, &s.Name); err != nil {
			return nil, fmt.Errorf("scanning subject: %w", err)
		}
		subjects = append(subjects, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading subjects: %w", err)
	}

	for _, s := range subjects {
		if s.Topics, err = db.topicsForSubject(s.ID); err != nil {
			return nil, err
		}
		for _, t := range s.Topics {
			if t.Concepts, err = db.conceptsForTopic(t.ID); err != nil {
				return nil, err
			}
			if !includeQuestions {
				continue
			}
			for _, c := range t.Concepts {
				if c.Questions, err = db.questionsForConcept(c.ID); err != nil {
					return nil, err
				}
			}
		}
	}
	return subjects, nil
}

func (db *DB) topicsForSubject(subjectID int64) ([]*Topic, error) {
	rows, err := db.Query(`SELECT id, name, details, subject_id FROM topics WHERE subject_id = ? ORDER BY id`, subjectID)
	if err != nil {
		return nil, fmt.Errorf("reading topics for subject %d: %w", subjectID, err)
	}
	defer rows.Close()

	topics := []*Topic{}
	for rows.Next() {
		t := &Topic{Concepts: []*Concept{}}
		var details sql.NullString
		if err := rows.Scan(&t.ID, &t.Name, &details, &t.SubjectID); err != nil {
			return nil, fmt.Errorf("scanning topic: %w", err)
		}
		if details.Valid {
			t.Details = &details.String
		}
		topics = append(topics, t)
	}
	return topics, rows.Err()
}

func (db *DB) conceptsForTopic(topicID int64) ([]*Concept, error) {
	rows, err := db.Query(`SELECT id, name, details, code_example, topic_id FROM concepts WHERE topic_id = ? ORDER BY id`, topicID)
	if err != nil {
		return nil, fmt.Errorf("reading concepts for topic %d: %w", topicID, err)
	}
	defer rows.Close()

	concepts := []*Concept{}
	for rows.Next() {
		c := &Concept{}
		var details, codeExample sql.NullString
		if err := rows.Scan(&c.ID, &c.Name, &details, &codeExample, &c.TopicID); err != nil {
			return nil, fmt.Errorf("scanning concept: %w", err)
		}
		if details.Valid {
			c.Details = &details.String
		}
		if codeExample.Valid {
			c.CodeExample = &codeExample.String
		}
		concepts = append(concepts, c)
	}
	return concepts, rows.Err()
}

func (db *DB) questionsForConcept(conceptID int64) ([]*Question, error) {
	rows, err := db.Query(`SELECT id, question, answer, question_code, answer_code, question_type, concept_id
		FROM questions WHERE concept_id = ? ORDER BY id`, conceptID)
	if err != nil {
		return nil, fmt.Errorf("reading questions for concept %d: %w", conceptID, err)
	}
	defer rows.Close()

	questions := []*Question{}
	for rows.Next() {
		q, err := scanQuestion(rows)
		if err != nil {
			return nil, err
		}
		questions = append(questions, q)
	}
	return questions, rows.Err()
}

func scanQuestion(s interface{ Scan(...any) error }) (*Question, error) {
	q := &Question{}
	var questionCode, answerCode sql.NullString
	if err := s.Scan(&q.ID, &q.Question, &q.Answer, &questionCode, &answerCode, &q.QuestionType, &q.ConceptID); err != nil {
		return nil, fmt.Errorf("scanning question: %w", err)
	}
	if questionCode.Valid {
		q.QuestionCode = &questionCode.String
	}
	if answerCode.Valid {
		q.AnswerCode = &answerCode.String
	}
	return q, nil
}

// LoadOutline reads subjects, topics and concepts in a single LEFT JOIN
// query and regroups the flat rows into the nested shape. Questions are
// excluded; this is the lightweight read the browsing UI uses.
func (db *DB) LoadOutline() ([]*Subject, error) {
	rows, err := db.Query(`
		SELECT s.id, s.name,
		       t.id, t.name, t.details,
		       c.id, c.name, c.details
		FROM subjects s
		LEFT JOIN topics t ON t.subject_id = s.id
		LEFT JOIN concepts c ON c.topic_id = t.id
		ORDER BY s.id, t.id, c.id`)
	if err != nil {
		return nil, fmt.Errorf("reading outline: %w", err)
	}
	defer rows.Close()

	subjects := []*Subject{}
	var curSubject *Subject
	var curTopic *Topic
	for rows.Next() {
		var sID int64
		var sName string
		var tID, cID sql.NullInt64
		var tName, tDetails, cName, cDetails sql.NullString
		if err := rows.Scan(&sID, &sName, &tID, &tName, &tDetails, &cID, &cName, &cDetails); err != nil {
			return nil, fmt.Errorf("scanning outline row: %w", err)
		}

		if curSubject == nil || curSubject.ID != sID {
			curSubject = &Subject{ID: sID, Name: sName, Topics: []*Topic{}}
			curTopic = nil
			subjects = append(subjects, curSubject)
		}
		if !tID.Valid {
			continue
		}
		if curTopic == nil || curTopic.ID != tID.Int64 {
			curTopic = &Topic{ID: tID.Int64, Name: tName.String, SubjectID: sID, Concepts: []*Concept{}}
			if tDetails.Valid {
				curTopic.Details = &tDetails.String
			}
			curSubject.Topics = append(curSubject.Topics, curTopic)
		}
		if !cID.Valid {
			continue
		}
		c := &Concept{ID: cID.Int64, Name: cName.String, TopicID: tID.Int64}
		if cDetails.Valid {
			c.Details = &cDetails.String
		}
		curTopic.Concepts = append(curTopic.Concepts, c)
	}
	return subjects, rows.Err()
}
