package db

import "fmt"

// migrations is the ordered schema history. Each entry runs at most once,
// tracked by user_version. Never edit an entry after release — append a new
// one instead.
var migrations = []string{
	// v1: base catalog + users
	`
CREATE TABLE IF NOT EXISTS subjects (
    id         INTEGER PRIMARY KEY AUTOINCREMENT,
    name       TEXT NOT NULL,
    created_at DATETIME DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS topics (
    id         INTEGER PRIMARY KEY AUTOINCREMENT,
    name       TEXT NOT NULL,
    details    TEXT,
    subject_id INTEGER NOT NULL REFERENCES subjects(id),
    created_at DATETIME DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS concepts (
    id         INTEGER PRIMARY KEY AUTOINCREMENT,
    name       TEXT NOT NULL,
    details    TEXT,
    topic_id   INTEGER NOT NULL REFERENCES topics(id),
    created_at DATETIME DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS questions (
    id            INTEGER PRIMARY KEY AUTOINCREMENT,
    question      TEXT NOT NULL,
    answer        TEXT NOT NULL,
    question_code TEXT,
    answer_code   TEXT,
    question_type TEXT NOT NULL DEFAULT 'technical' CHECK(question_type IN ('technical','general','competency')),
    concept_id    INTEGER NOT NULL REFERENCES concepts(id),
    created_at    DATETIME DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_topics_subject ON topics(subject_id);
CREATE INDEX IF NOT EXISTS idx_concepts_topic ON concepts(topic_id);
CREATE INDEX IF NOT EXISTS idx_questions_concept ON questions(concept_id);

CREATE TABLE IF NOT EXISTS users (
    id            INTEGER PRIMARY KEY AUTOINCREMENT,
    name          TEXT NOT NULL,
    email         TEXT UNIQUE NOT NULL,
    password_hash TEXT NOT NULL,
    role          TEXT NOT NULL DEFAULT 'user' CHECK(role IN ('user','admin')),
    created_at    DATETIME DEFAULT (datetime('now'))
);
`,
	// v2: canonical code_example column on concepts. Earlier deployments
	// carried this under camelCase or not at all; adding it here once
	// replaces the old check-column-then-alter dance.
	`ALTER TABLE concepts ADD COLUMN code_example TEXT;`,
	// v3: full-text search over questions, kept in sync by triggers.
	`
CREATE VIRTUAL TABLE IF NOT EXISTS questions_fts USING fts5(question, answer, content=questions, content_rowid=id);

CREATE TRIGGER IF NOT EXISTS questions_ai AFTER INSERT ON questions BEGIN
    INSERT INTO questions_fts(rowid, question, answer) VALUES (new.id, new.question, new.answer);
END;
CREATE TRIGGER IF NOT EXISTS questions_ad AFTER DELETE ON questions BEGIN
    INSERT INTO questions_fts(questions_fts, rowid, question, answer) VALUES('delete', old.id, old.question, old.answer);
END;
CREATE TRIGGER IF NOT EXISTS questions_au AFTER UPDATE ON questions BEGIN
    INSERT INTO questions_fts(questions_fts, rowid, question, answer) VALUES('delete', old.id, old.question, old.answer);
    INSERT INTO questions_fts(rowid, question, answer) VALUES (new.id, new.question, new.answer);
END;
`,
}

// migrate applies pending migrations in order, bumping user_version after
// each one so a crash mid-sequence resumes where it left off.
func (db *DB) migrate() error {
	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("reading schema version: %w", err)
	}

	for i := version; i < len(migrations); i++ {
		if _, err := db.Exec(migrations[i]); err != nil {
			return fmt.Errorf("migration %d: %w", i+1, err)
		}
		if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", i+1)); err != nil {
			return fmt.Errorf("bumping schema version to %d: %w", i+1, err)
		}
	}
	return nil
}
