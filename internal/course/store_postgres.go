package course

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/p-n-ai/pai-course-creator/internal/platform/database"
)

const (
	dbTimeout = 5 * time.Second
	// txTimeout bounds a whole curriculum write, which runs one insert per row.
	txTimeout = 30 * time.Second

	certUserCourseConstraint = "certifications_user_id_course_id_key"
)

// PostgresStore is a PostgreSQL-backed Store implementation.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a PostgreSQL-backed course store.
func NewPostgresStore(pool *pgxpool.Pool) (*PostgresStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is nil")
	}
	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) InTx(ctx context.Context, fn func(w Writer) error) error {
	ctx, cancel := context.WithTimeout(ctx, txTimeout)
	defer cancel()

	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		return fn(&pgWriter{tx: tx})
	})
}

// pgWriter inserts curriculum rows inside one transaction.
type pgWriter struct {
	tx pgx.Tx
}

func (w *pgWriter) InsertCourse(ctx context.Context, c Course) (string, error) {
	var id string
	err := w.tx.QueryRow(ctx,
		`INSERT INTO courses (user_id, title, description, topic, duration_weeks, difficulty_level)
		 VALUES ($1::uuid, $2, $3, $4, $5, $6)
		 RETURNING id::text`,
		c.UserID, c.Title, c.Description, c.Topic, c.DurationWeeks, c.DifficultyLevel,
	).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("insert course: %w", err)
	}
	return id, nil
}

func (w *pgWriter) InsertModule(ctx context.Context, m Module) (string, error) {
	var id string
	err := w.tx.QueryRow(ctx,
		`INSERT INTO modules (course_id, title, description, order_index)
		 VALUES ($1::uuid, $2, $3, $4)
		 RETURNING id::text`,
		m.CourseID, m.Title, m.Description, m.OrderIndex,
	).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("insert module: %w", err)
	}
	return id, nil
}

func (w *pgWriter) InsertLesson(ctx context.Context, l Lesson) (string, error) {
	var id string
	err := w.tx.QueryRow(ctx,
		`INSERT INTO lessons (module_id, title, content, order_index, estimated_duration_minutes)
		 VALUES ($1::uuid, $2, $3, $4, $5)
		 RETURNING id::text`,
		l.ModuleID, l.Title, l.Content, l.OrderIndex, l.EstimatedDurationMinutes,
	).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("insert lesson: %w", err)
	}
	return id, nil
}

func (w *pgWriter) InsertQuiz(ctx context.Context, q Quiz) (string, error) {
	lessonID, moduleID, err := scopeColumns(q.Scope)
	if err != nil {
		return "", fmt.Errorf("insert quiz: %w", err)
	}
	var id string
	err = w.tx.QueryRow(ctx,
		`INSERT INTO quizzes (lesson_id, module_id, title, questions, passing_score)
		 VALUES ($1::uuid, $2::uuid, $3, $4, $5)
		 RETURNING id::text`,
		lessonID, moduleID, q.Title, q.Questions, q.PassingScore,
	).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("insert quiz: %w", err)
	}
	return id, nil
}

func (w *pgWriter) InsertExercise(ctx context.Context, e Exercise) (string, error) {
	lessonID, moduleID, err := scopeColumns(e.Scope)
	if err != nil {
		return "", fmt.Errorf("insert exercise: %w", err)
	}
	var id string
	err = w.tx.QueryRow(ctx,
		`INSERT INTO exercises (lesson_id, module_id, title, description, instructions, solution_template)
		 VALUES ($1::uuid, $2::uuid, $3, $4, $5, $6)
		 RETURNING id::text`,
		lessonID, moduleID, e.Title, e.Description, e.Instructions, e.SolutionTemplate,
	).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("insert exercise: %w", err)
	}
	return id, nil
}

// scopeColumns maps a scope onto the lesson_id and module_id columns.
func scopeColumns(sc Scope) (lessonID, moduleID *string, err error) {
	if !sc.Valid() {
		return nil, nil, fmt.Errorf("invalid scope %+v", sc)
	}
	id := sc.ID
	if sc.Kind == ScopeLesson {
		return &id, nil, nil
	}
	return nil, &id, nil
}

func scopeFromColumns(lessonID, moduleID *string) Scope {
	if lessonID != nil {
		return LessonScope(*lessonID)
	}
	if moduleID != nil {
		return ModuleScope(*moduleID)
	}
	return Scope{}
}

func (s *PostgresStore) GetCourse(ctx context.Context, courseID string) (Course, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	var c Course
	err := s.pool.QueryRow(ctx,
		`SELECT id::text, user_id::text, title, description, topic, duration_weeks, difficulty_level, created_at
		 FROM courses
		 WHERE id = $1::uuid`,
		courseID,
	).Scan(&c.ID, &c.UserID, &c.Title, &c.Description, &c.Topic, &c.DurationWeeks, &c.DifficultyLevel, &c.CreatedAt)
	if err != nil {
		return Course{}, notFound(err, "course", courseID)
	}
	return c, nil
}

func (s *PostgresStore) ListCourses(ctx context.Context, userID string) ([]Course, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	rows, err := s.pool.Query(ctx,
		`SELECT id::text, user_id::text, title, description, topic, duration_weeks, difficulty_level, created_at
		 FROM courses
		 WHERE user_id = $1::uuid
		 ORDER BY created_at DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("query courses: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (Course, error) {
		var c Course
		err := row.Scan(&c.ID, &c.UserID, &c.Title, &c.Description, &c.Topic, &c.DurationWeeks, &c.DifficultyLevel, &c.CreatedAt)
		return c, err
	})
}

func (s *PostgresStore) ListModules(ctx context.Context, courseID string) ([]Module, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	rows, err := s.pool.Query(ctx,
		`SELECT id::text, course_id::text, title, description, order_index, created_at
		 FROM modules
		 WHERE course_id = $1::uuid
		 ORDER BY order_index ASC`,
		courseID,
	)
	if err != nil {
		return nil, fmt.Errorf("query modules: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (Module, error) {
		var m Module
		err := row.Scan(&m.ID, &m.CourseID, &m.Title, &m.Description, &m.OrderIndex, &m.CreatedAt)
		return m, err
	})
}

const lessonColumns = `l.id::text, l.module_id::text, m.course_id::text, l.title, l.content,
	l.order_index, l.estimated_duration_minutes, l.created_at`

func scanLesson(row pgx.Row) (Lesson, error) {
	var l Lesson
	err := row.Scan(&l.ID, &l.ModuleID, &l.CourseID, &l.Title, &l.Content,
		&l.OrderIndex, &l.EstimatedDurationMinutes, &l.CreatedAt)
	return l, err
}

func (s *PostgresStore) ListLessons(ctx context.Context, courseID string) ([]Lesson, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	rows, err := s.pool.Query(ctx,
		`SELECT `+lessonColumns+`
		 FROM lessons l
		 JOIN modules m ON m.id = l.module_id
		 WHERE m.course_id = $1::uuid
		 ORDER BY m.order_index ASC, l.order_index ASC`,
		courseID,
	)
	if err != nil {
		return nil, fmt.Errorf("query lessons: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (Lesson, error) {
		return scanLesson(row)
	})
}

func (s *PostgresStore) GetLesson(ctx context.Context, lessonID string) (Lesson, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	l, err := scanLesson(s.pool.QueryRow(ctx,
		`SELECT `+lessonColumns+`
		 FROM lessons l
		 JOIN modules m ON m.id = l.module_id
		 WHERE l.id = $1::uuid`,
		lessonID,
	))
	if err != nil {
		return Lesson{}, notFound(err, "lesson", lessonID)
	}
	return l, nil
}

func (s *PostgresStore) GetQuiz(ctx context.Context, quizID string) (Quiz, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	var q Quiz
	var lessonID, moduleID *string
	err := s.pool.QueryRow(ctx,
		`SELECT q.id::text, q.lesson_id::text, q.module_id::text, m.course_id::text,
		        q.title, q.questions, q.passing_score, q.created_at
		 FROM quizzes q
		 LEFT JOIN lessons l ON l.id = q.lesson_id
		 JOIN modules m ON m.id = COALESCE(q.module_id, l.module_id)
		 WHERE q.id = $1::uuid`,
		quizID,
	).Scan(&q.ID, &lessonID, &moduleID, &q.CourseID, &q.Title, &q.Questions, &q.PassingScore, &q.CreatedAt)
	if err != nil {
		return Quiz{}, notFound(err, "quiz", quizID)
	}
	q.Scope = scopeFromColumns(lessonID, moduleID)
	return q, nil
}

func (s *PostgresStore) GetExercise(ctx context.Context, exerciseID string) (Exercise, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	var e Exercise
	var lessonID, moduleID *string
	err := s.pool.QueryRow(ctx,
		`SELECT e.id::text, e.lesson_id::text, e.module_id::text, m.course_id::text,
		        e.title, e.description, e.instructions, e.solution_template, e.created_at
		 FROM exercises e
		 LEFT JOIN lessons l ON l.id = e.lesson_id
		 JOIN modules m ON m.id = COALESCE(e.module_id, l.module_id)
		 WHERE e.id = $1::uuid`,
		exerciseID,
	).Scan(&e.ID, &lessonID, &moduleID, &e.CourseID, &e.Title, &e.Description, &e.Instructions, &e.SolutionTemplate, &e.CreatedAt)
	if err != nil {
		return Exercise{}, notFound(err, "exercise", exerciseID)
	}
	e.Scope = scopeFromColumns(lessonID, moduleID)
	return e, nil
}

func (s *PostgresStore) ListQuizzes(ctx context.Context, courseID string) ([]Quiz, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	rows, err := s.pool.Query(ctx,
		`SELECT q.id::text, q.lesson_id::text, q.module_id::text, m.course_id::text,
		        q.title, q.questions, q.passing_score, q.created_at
		 FROM quizzes q
		 LEFT JOIN lessons l ON l.id = q.lesson_id
		 JOIN modules m ON m.id = COALESCE(q.module_id, l.module_id)
		 WHERE m.course_id = $1::uuid
		 ORDER BY m.order_index, l.order_index NULLS LAST`,
		courseID,
	)
	if err != nil {
		return nil, fmt.Errorf("list quizzes: %w", err)
	}
	quizzes, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Quiz, error) {
		var q Quiz
		var lessonID, moduleID *string
		err := row.Scan(&q.ID, &lessonID, &moduleID, &q.CourseID, &q.Title, &q.Questions, &q.PassingScore, &q.CreatedAt)
		q.Scope = scopeFromColumns(lessonID, moduleID)
		return q, err
	})
	if err != nil {
		return nil, fmt.Errorf("list quizzes: %w", err)
	}
	return quizzes, nil
}

func (s *PostgresStore) ListExercises(ctx context.Context, courseID string) ([]Exercise, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	rows, err := s.pool.Query(ctx,
		`SELECT e.id::text, e.lesson_id::text, e.module_id::text, m.course_id::text,
		        e.title, e.description, e.instructions, e.solution_template, e.created_at
		 FROM exercises e
		 LEFT JOIN lessons l ON l.id = e.lesson_id
		 JOIN modules m ON m.id = COALESCE(e.module_id, l.module_id)
		 WHERE m.course_id = $1::uuid
		 ORDER BY m.order_index, l.order_index NULLS LAST`,
		courseID,
	)
	if err != nil {
		return nil, fmt.Errorf("list exercises: %w", err)
	}
	exercises, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Exercise, error) {
		var e Exercise
		var lessonID, moduleID *string
		err := row.Scan(&e.ID, &lessonID, &moduleID, &e.CourseID, &e.Title, &e.Description, &e.Instructions, &e.SolutionTemplate, &e.CreatedAt)
		e.Scope = scopeFromColumns(lessonID, moduleID)
		return e, err
	})
	if err != nil {
		return nil, fmt.Errorf("list exercises: %w", err)
	}
	return exercises, nil
}

func (s *PostgresStore) GetProfile(ctx context.Context, userID string) (Profile, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	var p Profile
	var fullName, email *string
	err := s.pool.QueryRow(ctx,
		`SELECT id::text, full_name, email FROM profiles WHERE id = $1::uuid`,
		userID,
	).Scan(&p.ID, &fullName, &email)
	if err != nil {
		return Profile{}, notFound(err, "profile", userID)
	}
	if fullName != nil {
		p.FullName = *fullName
	}
	if email != nil {
		p.Email = *email
	}
	return p, nil
}

const progressColumns = `user_id::text, course_id::text, lesson_id::text, completed, progress_percentage, last_accessed`

func scanProgress(row pgx.Row) (Progress, error) {
	var p Progress
	err := row.Scan(&p.UserID, &p.CourseID, &p.LessonID, &p.Completed, &p.ProgressPercentage, &p.LastAccessed)
	return p, err
}

func (s *PostgresStore) UpsertProgress(ctx context.Context, p Progress) (Progress, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	out, err := scanProgress(s.pool.QueryRow(ctx,
		`INSERT INTO user_progress (user_id, course_id, lesson_id, completed, progress_percentage, last_accessed)
		 VALUES ($1::uuid, $2::uuid, $3::uuid, $4, $5, NOW())
		 ON CONFLICT (user_id, course_id, lesson_id) DO UPDATE
		 SET completed = EXCLUDED.completed,
		     progress_percentage = EXCLUDED.progress_percentage,
		     last_accessed = EXCLUDED.last_accessed
		 RETURNING `+progressColumns,
		p.UserID, p.CourseID, p.LessonID, p.Completed, p.ProgressPercentage,
	))
	if err != nil {
		if database.IsForeignKeyViolation(err) {
			return Progress{}, fmt.Errorf("upsert progress: %w", ErrNotFound)
		}
		return Progress{}, fmt.Errorf("upsert progress: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) ListProgress(ctx context.Context, userID, courseID string) ([]Progress, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	rows, err := s.pool.Query(ctx,
		`SELECT `+progressColumns+`
		 FROM user_progress
		 WHERE user_id = $1::uuid
		   AND ($2 = '' OR course_id = NULLIF($2, '')::uuid)
		 ORDER BY last_accessed ASC`,
		userID, courseID,
	)
	if err != nil {
		return nil, fmt.Errorf("query progress: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (Progress, error) {
		return scanProgress(row)
	})
}

const attemptColumns = `a.id::text, a.user_id::text, a.quiz_id::text, a.score, a.answers, a.passed, a.attempt_number, a.created_at`

func scanAttempt(row pgx.Row) (QuizAttempt, error) {
	var a QuizAttempt
	err := row.Scan(&a.ID, &a.UserID, &a.QuizID, &a.Score, &a.Answers, &a.Passed, &a.AttemptNumber, &a.CreatedAt)
	return a, err
}

func (s *PostgresStore) InsertQuizAttempt(ctx context.Context, a QuizAttempt) (QuizAttempt, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	if a.Answers == nil {
		a.Answers = map[string]int{}
	}
	out, err := scanAttempt(s.pool.QueryRow(ctx,
		`INSERT INTO quiz_attempts AS a (user_id, quiz_id, score, answers, passed, attempt_number)
		 VALUES ($1::uuid, $2::uuid, $3, $4, $5, $6)
		 RETURNING `+attemptColumns,
		a.UserID, a.QuizID, a.Score, a.Answers, a.Passed, a.AttemptNumber,
	))
	if err != nil {
		if database.IsForeignKeyViolation(err) {
			return QuizAttempt{}, fmt.Errorf("insert quiz attempt: quiz %s: %w", a.QuizID, ErrNotFound)
		}
		return QuizAttempt{}, fmt.Errorf("insert quiz attempt: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) ListQuizAttempts(ctx context.Context, userID string) ([]QuizAttempt, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	rows, err := s.pool.Query(ctx,
		`SELECT `+attemptColumns+`
		 FROM quiz_attempts a
		 WHERE a.user_id = $1::uuid
		 ORDER BY a.created_at DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("query quiz attempts: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (QuizAttempt, error) {
		return scanAttempt(row)
	})
}

func (s *PostgresStore) ListLessonQuizAttempts(ctx context.Context, userID, courseID string) ([]QuizAttempt, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	rows, err := s.pool.Query(ctx,
		`SELECT `+attemptColumns+`
		 FROM quiz_attempts a
		 JOIN quizzes q ON q.id = a.quiz_id
		 JOIN lessons l ON l.id = q.lesson_id
		 JOIN modules m ON m.id = l.module_id
		 WHERE a.user_id = $1::uuid
		   AND m.course_id = $2::uuid
		 ORDER BY a.created_at ASC`,
		userID, courseID,
	)
	if err != nil {
		return nil, fmt.Errorf("query lesson quiz attempts: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (QuizAttempt, error) {
		return scanAttempt(row)
	})
}

const submissionColumns = `id::text, user_id::text, exercise_id::text, submission_content, completed, created_at`

func scanSubmission(row pgx.Row) (ExerciseSubmission, error) {
	var sub ExerciseSubmission
	err := row.Scan(&sub.ID, &sub.UserID, &sub.ExerciseID, &sub.SubmissionContent, &sub.Completed, &sub.CreatedAt)
	return sub, err
}

func (s *PostgresStore) InsertExerciseSubmission(ctx context.Context, sub ExerciseSubmission) (ExerciseSubmission, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	out, err := scanSubmission(s.pool.QueryRow(ctx,
		`INSERT INTO exercise_submissions (user_id, exercise_id, submission_content, completed)
		 VALUES ($1::uuid, $2::uuid, $3, $4)
		 RETURNING `+submissionColumns,
		sub.UserID, sub.ExerciseID, sub.SubmissionContent, sub.Completed,
	))
	if err != nil {
		if database.IsForeignKeyViolation(err) {
			return ExerciseSubmission{}, fmt.Errorf("insert exercise submission: exercise %s: %w", sub.ExerciseID, ErrNotFound)
		}
		return ExerciseSubmission{}, fmt.Errorf("insert exercise submission: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) ListExerciseSubmissions(ctx context.Context, userID string) ([]ExerciseSubmission, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	rows, err := s.pool.Query(ctx,
		`SELECT `+submissionColumns+`
		 FROM exercise_submissions
		 WHERE user_id = $1::uuid
		 ORDER BY created_at DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("query exercise submissions: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (ExerciseSubmission, error) {
		return scanSubmission(row)
	})
}

const certColumns = `id::text, user_id::text, course_id::text, certificate_number, completion_percentage, final_score, issued_at`

func scanCert(row pgx.Row) (Certification, error) {
	var c Certification
	err := row.Scan(&c.ID, &c.UserID, &c.CourseID, &c.CertificateNumber, &c.CompletionPercentage, &c.FinalScore, &c.IssuedAt)
	return c, err
}

func (s *PostgresStore) GetCertification(ctx context.Context, userID, courseID string) (Certification, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	c, err := scanCert(s.pool.QueryRow(ctx,
		`SELECT `+certColumns+`
		 FROM certifications
		 WHERE user_id = $1::uuid AND course_id = $2::uuid`,
		userID, courseID,
	))
	if err != nil {
		return Certification{}, notFound(err, "certification", courseID)
	}
	return c, nil
}

func (s *PostgresStore) InsertCertification(ctx context.Context, c Certification) (Certification, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	issuedAt := c.IssuedAt
	if issuedAt.IsZero() {
		issuedAt = time.Now()
	}
	out, err := scanCert(s.pool.QueryRow(ctx,
		`INSERT INTO certifications (user_id, course_id, certificate_number, completion_percentage, final_score, issued_at)
		 VALUES ($1::uuid, $2::uuid, $3, $4, $5, $6)
		 RETURNING `+certColumns,
		c.UserID, c.CourseID, c.CertificateNumber, c.CompletionPercentage, c.FinalScore, issuedAt,
	))
	if err != nil {
		if database.IsUniqueViolation(err) && database.ConstraintName(err) == certUserCourseConstraint {
			return Certification{}, ErrAlreadyCertified
		}
		return Certification{}, fmt.Errorf("insert certification: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) ListCertifications(ctx context.Context, userID string) ([]Certification, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	rows, err := s.pool.Query(ctx,
		`SELECT `+certColumns+`
		 FROM certifications
		 WHERE user_id = $1::uuid
		 ORDER BY issued_at DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("query certifications: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (Certification, error) {
		return scanCert(row)
	})
}

// notFound maps a missing row to ErrNotFound and wraps anything else.
func notFound(err error, what, id string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s %s: %w", what, id, ErrNotFound)
	}
	return fmt.Errorf("get %s: %w", what, err)
}
