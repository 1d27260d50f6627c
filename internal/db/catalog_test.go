package db

import (
	"errors"
	"path/filepath"
	"testing"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	database, err := Open(filepath.Join(t.TempDir(), "catalog.db"))
	if err != nil {
		t.Fatalf("opening test database: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	return database
}

func strPtr(s string) *string { return &s }

// sampleDoc builds a small but fully nested catalog document.
func sampleDoc() []*Subject {
	return []*Subject{
		{
			Name: "JS",
			Topics: []*Topic{
				{
					Name:    "Basics",
					Details: strPtr("intro"),
					Concepts: []*Concept{
						{
							Name:    "Vars",
							Details: strPtr("d"),
							Questions: []*Question{
								{Question: "What is let?", Answer: "block-scoped"},
							},
						},
					},
				},
			},
		},
		{
			Name: "Go",
			Topics: []*Topic{
				{
					Name: "Concurrency",
					Concepts: []*Concept{
						{
							Name:        "Channels",
							CodeExample: strPtr("ch := make(chan int)"),
							Questions: []*Question{
								{Question: "Buffered vs unbuffered?", Answer: "capacity decides blocking", QuestionType: "technical"},
								{Question: "Tell me about a time you debugged a deadlock", Answer: "situation, action, result", QuestionType: "competency"},
							},
						},
						{Name: "Goroutines"},
					},
				},
				{Name: "Tooling"},
			},
		},
	}
}

func TestReplaceCatalogRoundTrip(t *testing.T) {
	database := openTestDB(t)

	counts, err := database.ReplaceCatalog(sampleDoc())
	if err != nil {
		t.Fatalf("replace catalog: %v", err)
	}
	if counts.Subjects != 2 || counts.Topics != 3 || counts.Concepts != 3 || counts.Questions != 3 {
		t.Fatalf("unexpected counts: %+v", counts)
	}

	got, err := database.LoadCatalog(true)
	if err != nil {
		t.Fatalf("load catalog: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 subjects, got %d", len(got))
	}
	if got[0].Name != "JS" || got[1].Name != "Go" {
		t.Fatalf("subjects out of order: %q, %q", got[0].Name, got[1].Name)
	}

	js := got[0]
	if len(js.Topics) != 1 || js.Topics[0].Name != "Basics" {
		t.Fatalf("unexpected JS topics: %+v", js.Topics)
	}
	basics := js.Topics[0]
	if basics.Details == nil || *basics.Details != "intro" {
		t.Fatalf("topic details lost: %+v", basics.Details)
	}
	if len(basics.Concepts) != 1 || basics.Concepts[0].Name != "Vars" {
		t.Fatalf("unexpected concepts: %+v", basics.Concepts)
	}
	vars := basics.Concepts[0]
	if len(vars.Questions) != 1 {
		t.Fatalf("expected 1 question, got %d", len(vars.Questions))
	}
	q := vars.Questions[0]
	if q.Question != "What is let?" || q.Answer != "block-scoped" {
		t.Fatalf("question round trip failed: %+v", q)
	}
	if q.QuestionType != "technical" {
		t.Fatalf("expected default question_type technical, got %q", q.QuestionType)
	}

	// Parent ids must thread correctly through the insert order.
	if basics.SubjectID != js.ID {
		t.Fatalf("topic subject_id %d != subject id %d", basics.SubjectID, js.ID)
	}
	if vars.TopicID != basics.ID {
		t.Fatalf("concept topic_id %d != topic id %d", vars.TopicID, basics.ID)
	}
	if q.ConceptID != vars.ID {
		t.Fatalf("question concept_id %d != concept id %d", q.ConceptID, vars.ID)
	}

	goSubj := got[1]
	if len(goSubj.Topics) != 2 || goSubj.Topics[0].Name != "Concurrency" || goSubj.Topics[1].Name != "Tooling" {
		t.Fatalf("Go topics out of order: %+v", goSubj.Topics)
	}
	channels := goSubj.Topics[0].Concepts[0]
	if channels.CodeExample == nil || *channels.CodeExample != "ch := make(chan int)" {
		t.Fatalf("code_example lost: %+v", channels.CodeExample)
	}
	if len(channels.Questions) != 2 || channels.Questions[1].QuestionType != "competency" {
		t.Fatalf("question types lost: %+v", channels.Questions)
	}
}

func TestReplaceCatalogIdempotent(t *testing.T) {
	database := openTestDB(t)

	if _, err := database.ReplaceCatalog(sampleDoc()); err != nil {
		t.Fatalf("first replace: %v", err)
	}
	first, err := database.LoadCatalog(true)
	if err != nil {
		t.Fatalf("first load: %v", err)
	}

	counts, err := database.ReplaceCatalog(sampleDoc())
	if err != nil {
		t.Fatalf("second replace: %v", err)
	}
	if counts.Subjects != 2 || counts.Questions != 3 {
		t.Fatalf("second replace counts changed: %+v", counts)
	}
	second, err := database.LoadCatalog(true)
	if err != nil {
		t.Fatalf("second load: %v", err)
	}

	if len(first) != len(second) {
		t.Fatalf("subject count changed: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i].Name != second[i].Name || len(first[i].Topics) != len(second[i].Topics) {
			t.Fatalf("structure changed at subject %d", i)
		}
		// Old ids are discarded; the new tree must still be internally
		// consistent.
		for _, topic := range second[i].Topics {
			if topic.SubjectID != second[i].ID {
				t.Fatalf("dangling topic after re-import: %+v", topic)
			}
		}
	}
}

func TestReplaceCatalogAtomicity(t *testing.T) {
	database := openTestDB(t)

	if _, err := database.ReplaceCatalog(sampleDoc()); err != nil {
		t.Fatalf("seeding catalog: %v", err)
	}
	before, err := database.LoadCatalog(true)
	if err != nil {
		t.Fatalf("loading seeded catalog: %v", err)
	}

	// A document that fails deep into the insert sequence: the failure is
	// in the second subject's question, after rows for the first subject
	// were already written inside the transaction.
	bad := sampleDoc()
	bad[1].Topics[0].Concepts[0].Questions[0].Answer = ""

	_, err = database.ReplaceCatalog(bad)
	if err == nil {
		t.Fatal("expected replace to fail")
	}
	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected ValidationError, got %v", err)
	}

	after, err := database.LoadCatalog(true)
	if err != nil {
		t.Fatalf("loading catalog after failed replace: %v", err)
	}
	if len(after) != len(before) {
		t.Fatalf("catalog changed after failed replace: %d vs %d subjects", len(after), len(before))
	}
	for i := range before {
		if before[i].ID != after[i].ID || before[i].Name != after[i].Name {
			t.Fatalf("subject %d changed after failed replace", i)
		}
	}
}

func TestReplaceCatalogValidation(t *testing.T) {
	database := openTestDB(t)

	cases := []struct {
		name string
		doc  []*Subject
	}{
		{"EmptySubjectName", []*Subject{{Name: "  "}}},
		{"EmptyTopicName", []*Subject{{Name: "S", Topics: []*Topic{{Name: ""}}}}},
		{"EmptyConceptName", []*Subject{{Name: "S", Topics: []*Topic{{Name: "T", Concepts: []*Concept{{Name: ""}}}}}}},
		{"EmptyQuestionText", []*Subject{{Name: "S", Topics: []*Topic{{Name: "T", Concepts: []*Concept{{
			Name: "C", Questions: []*Question{{Question: "", Answer: "a"}},
		}}}}}}},
		{"BadQuestionType", []*Subject{{Name: "S", Topics: []*Topic{{Name: "T", Concepts: []*Concept{{
			Name: "C", Questions: []*Question{{Question: "q", Answer: "a", QuestionType: "trivia"}},
		}}}}}}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := database.ReplaceCatalog(tc.doc)
			var ve *ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			subjects, topics, concepts, questions, err := database.Counts()
			if err != nil {
				t.Fatalf("counts: %v", err)
			}
			if subjects+topics+concepts+questions != 0 {
				t.Fatalf("partial rows left behind: %d/%d/%d/%d", subjects, topics, concepts, questions)
			}
		})
	}
}

func TestAppendEntities(t *testing.T) {
	database := openTestDB(t)

	subject, err := database.CreateSubject("System Design")
	if err != nil {
		t.Fatalf("create subject: %v", err)
	}
	if subject.ID == 0 {
		t.Fatal("subject id not assigned")
	}

	topic, err := database.CreateTopic("Caching", strPtr("eviction, invalidation"), subject.ID)
	if err != nil {
		t.Fatalf("create topic: %v", err)
	}
	concept, err := database.CreateConcept("LRU", nil, strPtr("list.MoveToFront(e)"), topic.ID)
	if err != nil {
		t.Fatalf("create concept: %v", err)
	}

	// Appends after a replace keep ascending id order in reads.
	if _, err := database.CreateSubject("Behavioral"); err != nil {
		t.Fatalf("second subject: %v", err)
	}
	catalog, err := database.LoadCatalog(false)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(catalog) != 2 || catalog[0].Name != "System Design" || catalog[1].Name != "Behavioral" {
		t.Fatalf("subjects out of insertion order: %+v", catalog)
	}
	if catalog[0].Topics[0].ID != topic.ID || catalog[0].Topics[0].Concepts[0].ID != concept.ID {
		t.Fatalf("appended children not visible: %+v", catalog[0])
	}

	t.Run("EmptyName", func(t *testing.T) {
		var ve *ValidationError
		if _, err := database.CreateSubject("   "); !errors.As(err, &ve) {
			t.Fatalf("expected ValidationError, got %v", err)
		}
		if _, err := database.CreateTopic("", nil, subject.ID); !errors.As(err, &ve) {
			t.Fatalf("expected ValidationError, got %v", err)
		}
		if _, err := database.CreateConcept("", nil, nil, topic.ID); !errors.As(err, &ve) {
			t.Fatalf("expected ValidationError, got %v", err)
		}
	})
}

func TestReferentialIntegrity(t *testing.T) {
	database := openTestDB(t)

	_, err := database.CreateTopic("X", nil, 9999)
	var re *ReferentialError
	if !errors.As(err, &re) {
		t.Fatalf("expected ReferentialError, got %v", err)
	}
	if re.Kind != "subject" || re.ParentID != 9999 {
		t.Fatalf("unexpected error detail: %+v", re)
	}

	_, err = database.CreateConcept("Y", nil, nil, 4242)
	if !errors.As(err, &re) {
		t.Fatalf("expected ReferentialError, got %v", err)
	}

	// No orphan rows.
	_, topics, concepts, _, err := database.Counts()
	if err != nil {
		t.Fatalf("counts: %v", err)
	}
	if topics != 0 || concepts != 0 {
		t.Fatalf("orphan rows created: topics=%d concepts=%d", topics, concepts)
	}
}

func TestLoadOutline(t *testing.T) {
	database := openTestDB(t)

	if _, err := database.ReplaceCatalog(sampleDoc()); err != nil {
		t.Fatalf("replace: %v", err)
	}
	// A subject with no topics must still appear in the outline.
	if _, err := database.CreateSubject("Empty"); err != nil {
		t.Fatalf("create subject: %v", err)
	}

	outline, err := database.LoadOutline()
	if err != nil {
		t.Fatalf("load outline: %v", err)
	}
	if len(outline) != 3 {
		t.Fatalf("expected 3 subjects, got %d", len(outline))
	}
	if outline[2].Name != "Empty" || len(outline[2].Topics) != 0 {
		t.Fatalf("empty subject mishandled: %+v", outline[2])
	}
	if len(outline[1].Topics) != 2 {
		t.Fatalf("expected 2 topics under Go, got %d", len(outline[1].Topics))
	}
	// Outline never carries questions.
	for _, s := range outline {
		for _, topic := range s.Topics {
			for _, c := range topic.Concepts {
				if len(c.Questions) != 0 {
					t.Fatalf("outline leaked questions: %+v", c)
				}
			}
		}
	}
}

func TestSearchQuestions(t *testing.T) {
	database := openTestDB(t)

	if _, err := database.ReplaceCatalog(sampleDoc()); err != nil {
		t.Fatalf("replace: %v", err)
	}

	hits, err := database.SearchQuestions("deadlock", 10)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(hits) != 1 {
		t.Fatalf("expected 1 hit, got %d", len(hits))
	}
	if hits[0].SubjectName != "Go" || hits[0].ConceptName != "Channels" {
		t.Fatalf("ancestry wrong: %+v", hits[0])
	}

	t.Run("AnswerText", func(t *testing.T) {
		hits, err := database.SearchQuestions("block-scoped", 10)
		if err != nil {
			t.Fatalf("search: %v", err)
		}
		if len(hits) != 1 || hits[0].Question.Question != "What is let?" {
			t.Fatalf("answer text not matched: %+v", hits)
		}
	})

	t.Run("SpecialCharacters", func(t *testing.T) {
		if _, err := database.SearchQuestions(`let* "AND" (deadlock)`, 10); err != nil {
			t.Fatalf("special characters broke search: %v", err)
		}
	})

	t.Run("ReplacedQuestionsDropOut", func(t *testing.T) {
		doc := []*Subject{{Name: "Solo", Topics: []*Topic{{Name: "T", Concepts: []*Concept{{
			Name: "C", Questions: []*Question{{Question: "fresh content only", Answer: "yes"}},
		}}}}}}
		if _, err := database.ReplaceCatalog(doc); err != nil {
			t.Fatalf("replace: %v", err)
		}
		hits, err := database.SearchQuestions("deadlock", 10)
		if err != nil {
			t.Fatalf("search: %v", err)
		}
		if len(hits) != 0 {
			t.Fatalf("stale FTS rows survived replace: %+v", hits)
		}
	})
}

func TestMigrateIdempotent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "catalog.db")

	first, err := Open(path)
	if err != nil {
		t.Fatalf("first open: %v", err)
	}
	if _, err := first.CreateSubject("S"); err != nil {
		t.Fatalf("create subject: %v", err)
	}
	first.Close()

	second, err := Open(path)
	if err != nil {
		t.Fatalf("second open: %v", err)
	}
	defer second.Close()

	subjects, _, _, _, err := second.Counts()
	if err != nil {
		t.Fatalf("counts: %v", err)
	}
	if subjects != 1 {
		t.Fatalf("data lost across reopen: %d subjects", subjects)
	}
}
