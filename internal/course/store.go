package course

import (
	"cmp"
	"context"
	"fmt"
	"math"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Writer inserts curriculum rows. Every call made through one InTx shares
// the same transaction.
type Writer interface {
	InsertCourse(ctx context.Context, c Course) (string, error)
	InsertModule(ctx context.Context, m Module) (string, error)
	InsertLesson(ctx context.Context, l Lesson) (string, error)
	InsertQuiz(ctx context.Context, q Quiz) (string, error)
	InsertExercise(ctx context.Context, e Exercise) (string, error)
}

// Store persists courses and learner activity.
type Store interface {
	// InTx runs fn in one transaction. Any error from fn rolls back every
	// write made through w.
	InTx(ctx context.Context, fn func(w Writer) error) error

	GetCourse(ctx context.Context, courseID string) (Course, error)
	ListCourses(ctx context.Context, userID string) ([]Course, error)
	ListModules(ctx context.Context, courseID string) ([]Module, error)
	// ListLessons returns a course's lessons in module order, then lesson order.
	ListLessons(ctx context.Context, courseID string) ([]Lesson, error)
	GetLesson(ctx context.Context, lessonID string) (Lesson, error)
	GetQuiz(ctx context.Context, quizID string) (Quiz, error)
	// ListQuizzes returns every lesson quiz and module test of a course.
	ListQuizzes(ctx context.Context, courseID string) ([]Quiz, error)
	GetExercise(ctx context.Context, exerciseID string) (Exercise, error)
	ListExercises(ctx context.Context, courseID string) ([]Exercise, error)
	GetProfile(ctx context.Context, userID string) (Profile, error)

	// UpsertProgress inserts or replaces the row for (user, course, lesson).
	UpsertProgress(ctx context.Context, p Progress) (Progress, error)
	// ListProgress returns the user's rows for one course, or all courses when courseID is empty.
	ListProgress(ctx context.Context, userID, courseID string) ([]Progress, error)

	InsertQuizAttempt(ctx context.Context, a QuizAttempt) (QuizAttempt, error)
	ListQuizAttempts(ctx context.Context, userID string) ([]QuizAttempt, error)
	// ListLessonQuizAttempts returns attempts on the lesson quizzes of one course.
	ListLessonQuizAttempts(ctx context.Context, userID, courseID string) ([]QuizAttempt, error)

	InsertExerciseSubmission(ctx context.Context, s ExerciseSubmission) (ExerciseSubmission, error)
	ListExerciseSubmissions(ctx context.Context, userID string) ([]ExerciseSubmission, error)

	GetCertification(ctx context.Context, userID, courseID string) (Certification, error)
	// InsertCertification returns ErrAlreadyCertified when one already exists.
	InsertCertification(ctx context.Context, c Certification) (Certification, error)
	ListCertifications(ctx context.Context, userID string) ([]Certification, error)
}

// Table names, used for failure injection.
const (
	TableCourses   = "courses"
	TableModules   = "modules"
	TableLessons   = "lessons"
	TableQuizzes   = "quizzes"
	TableExercises = "exercises"
)

// MemoryStore is an in-memory Store for development and tests.
type MemoryStore struct {
	mu          sync.RWMutex
	courses     map[string]Course
	modules     map[string]Module
	lessons     map[string]Lesson
	quizzes     map[string]Quiz
	exercises   map[string]Exercise
	profiles    map[string]Profile
	progress    map[string]Progress
	attempts    []QuizAttempt
	submissions []ExerciseSubmission
	certs       []Certification
	inserts     map[string]int
	failures    map[string]injectedFailure
	now         func() time.Time
}

type injectedFailure struct {
	nth int
	err error
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		courses:   make(map[string]Course),
		modules:   make(map[string]Module),
		lessons:   make(map[string]Lesson),
		quizzes:   make(map[string]Quiz),
		exercises: make(map[string]Exercise),
		profiles:  make(map[string]Profile),
		progress:  make(map[string]Progress),
		inserts:   make(map[string]int),
		failures:  make(map[string]injectedFailure),
		now:       time.Now,
	}
}

// FailOn makes the nth insert (1-based) into table return err.
func (s *MemoryStore) FailOn(table string, nth int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[table] = injectedFailure{nth: nth, err: err}
}

// PutProfile stores display details for a user.
func (s *MemoryStore) PutProfile(p Profile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profiles[p.ID] = p
}

// Counts returns the number of committed rows per curriculum table.
func (s *MemoryStore) Counts() map[string]int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return map[string]int{
		TableCourses:   len(s.courses),
		TableModules:   len(s.modules),
		TableLessons:   len(s.lessons),
		TableQuizzes:   len(s.quizzes),
		TableExercises: len(s.exercises),
	}
}

func (s *MemoryStore) InTx(ctx context.Context, fn func(w Writer) error) error {
	tx := &memoryTx{store: s, staged: NewMemoryStore()}
	if err := fn(tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for id, c := range tx.staged.courses {
		s.courses[id] = c
	}
	for id, m := range tx.staged.modules {
		s.modules[id] = m
	}
	for id, l := range tx.staged.lessons {
		s.lessons[id] = l
	}
	for id, q := range tx.staged.quizzes {
		s.quizzes[id] = q
	}
	for id, e := range tx.staged.exercises {
		s.exercises[id] = e
	}
	return nil
}

// memoryTx stages writes and only publishes them when InTx commits.
type memoryTx struct {
	store  *MemoryStore
	staged *MemoryStore
}

func (tx *memoryTx) checkInsert(table string) error {
	tx.store.mu.Lock()
	defer tx.store.mu.Unlock()
	tx.store.inserts[table]++
	if f, ok := tx.store.failures[table]; ok && f.nth == tx.store.inserts[table] {
		return f.err
	}
	return nil
}

func (tx *memoryTx) has(table, id string) bool {
	tx.store.mu.RLock()
	defer tx.store.mu.RUnlock()
	var ok, staged bool
	switch table {
	case TableCourses:
		_, ok = tx.store.courses[id]
		_, staged = tx.staged.courses[id]
	case TableModules:
		_, ok = tx.store.modules[id]
		_, staged = tx.staged.modules[id]
	case TableLessons:
		_, ok = tx.store.lessons[id]
		_, staged = tx.staged.lessons[id]
	}
	return ok || staged
}

func (tx *memoryTx) InsertCourse(ctx context.Context, c Course) (string, error) {
	if err := tx.checkInsert(TableCourses); err != nil {
		return "", fmt.Errorf("insert course: %w", err)
	}
	if c.UserID == "" {
		return "", fmt.Errorf("insert course: user_id is required")
	}
	c.ID = uuid.NewString()
	c.CreatedAt = tx.store.now()
	tx.staged.courses[c.ID] = c
	return c.ID, nil
}

func (tx *memoryTx) InsertModule(ctx context.Context, m Module) (string, error) {
	if err := tx.checkInsert(TableModules); err != nil {
		return "", fmt.Errorf("insert module: %w", err)
	}
	if !tx.has(TableCourses, m.CourseID) {
		return "", fmt.Errorf("insert module: course %s does not exist", m.CourseID)
	}
	m.ID = uuid.NewString()
	m.CreatedAt = tx.store.now()
	tx.staged.modules[m.ID] = m
	return m.ID, nil
}

func (tx *memoryTx) InsertLesson(ctx context.Context, l Lesson) (string, error) {
	if err := tx.checkInsert(TableLessons); err != nil {
		return "", fmt.Errorf("insert lesson: %w", err)
	}
	if !tx.has(TableModules, l.ModuleID) {
		return "", fmt.Errorf("insert lesson: module %s does not exist", l.ModuleID)
	}
	l.ID = uuid.NewString()
	l.CourseID = ""
	l.CreatedAt = tx.store.now()
	tx.staged.lessons[l.ID] = l
	return l.ID, nil
}

func (tx *memoryTx) scopeExists(sc Scope) bool {
	if !sc.Valid() {
		return false
	}
	if sc.Kind == ScopeLesson {
		return tx.has(TableLessons, sc.ID)
	}
	return tx.has(TableModules, sc.ID)
}

func (tx *memoryTx) InsertQuiz(ctx context.Context, q Quiz) (string, error) {
	if err := tx.checkInsert(TableQuizzes); err != nil {
		return "", fmt.Errorf("insert quiz: %w", err)
	}
	if !tx.scopeExists(q.Scope) {
		return "", fmt.Errorf("insert quiz: invalid scope %+v", q.Scope)
	}
	q.ID = uuid.NewString()
	q.CourseID = ""
	q.CreatedAt = tx.store.now()
	tx.staged.quizzes[q.ID] = q
	return q.ID, nil
}

func (tx *memoryTx) InsertExercise(ctx context.Context, e Exercise) (string, error) {
	if err := tx.checkInsert(TableExercises); err != nil {
		return "", fmt.Errorf("insert exercise: %w", err)
	}
	if !tx.scopeExists(e.Scope) {
		return "", fmt.Errorf("insert exercise: invalid scope %+v", e.Scope)
	}
	e.ID = uuid.NewString()
	e.CourseID = ""
	e.CreatedAt = tx.store.now()
	tx.staged.exercises[e.ID] = e
	return e.ID, nil
}

func (s *MemoryStore) GetCourse(_ context.Context, courseID string) (Course, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.courses[courseID]
	if !ok {
		return Course{}, fmt.Errorf("course %s: %w", courseID, ErrNotFound)
	}
	return c, nil
}

func (s *MemoryStore) ListCourses(_ context.Context, userID string) ([]Course, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Course
	for _, c := range s.courses {
		if c.UserID == userID {
			out = append(out, c)
		}
	}
	slices.SortFunc(out, func(a, b Course) int { return b.CreatedAt.Compare(a.CreatedAt) })
	return out, nil
}

func (s *MemoryStore) ListModules(_ context.Context, courseID string) ([]Module, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.modulesOf(courseID), nil
}

func (s *MemoryStore) modulesOf(courseID string) []Module {
	var out []Module
	for _, m := range s.modules {
		if m.CourseID == courseID {
			out = append(out, m)
		}
	}
	slices.SortFunc(out, func(a, b Module) int { return a.OrderIndex - b.OrderIndex })
	return out
}

func (s *MemoryStore) ListLessons(_ context.Context, courseID string) ([]Lesson, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Lesson
	for _, m := range s.modulesOf(courseID) {
		var lessons []Lesson
		for _, l := range s.lessons {
			if l.ModuleID == m.ID {
				l.CourseID = courseID
				lessons = append(lessons, l)
			}
		}
		slices.SortFunc(lessons, func(a, b Lesson) int { return a.OrderIndex - b.OrderIndex })
		out = append(out, lessons...)
	}
	return out, nil
}

func (s *MemoryStore) GetLesson(_ context.Context, lessonID string) (Lesson, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	l, ok := s.lessons[lessonID]
	if !ok {
		return Lesson{}, fmt.Errorf("lesson %s: %w", lessonID, ErrNotFound)
	}
	l.CourseID = s.modules[l.ModuleID].CourseID
	return l, nil
}

// courseOf resolves the course owning a scope. Callers hold s.mu.
func (s *MemoryStore) courseOf(sc Scope) string {
	moduleID := sc.ID
	if sc.Kind == ScopeLesson {
		moduleID = s.lessons[sc.ID].ModuleID
	}
	return s.modules[moduleID].CourseID
}

// compareScope orders scopes by module, then lesson, with module-scoped rows
// after the module's lessons. Callers hold s.mu.
func (s *MemoryStore) compareScope(a, b Scope) int {
	am, al := s.scopeOrder(a)
	bm, bl := s.scopeOrder(b)
	if c := cmp.Compare(am, bm); c != 0 {
		return c
	}
	if c := cmp.Compare(al, bl); c != 0 {
		return c
	}
	return cmp.Compare(a.ID, b.ID)
}

func (s *MemoryStore) scopeOrder(sc Scope) (module, lesson int) {
	if sc.Kind == ScopeLesson {
		l := s.lessons[sc.ID]
		return s.modules[l.ModuleID].OrderIndex, l.OrderIndex
	}
	return s.modules[sc.ID].OrderIndex, math.MaxInt
}

func (s *MemoryStore) GetQuiz(_ context.Context, quizID string) (Quiz, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	q, ok := s.quizzes[quizID]
	if !ok {
		return Quiz{}, fmt.Errorf("quiz %s: %w", quizID, ErrNotFound)
	}
	q.CourseID = s.courseOf(q.Scope)
	return q, nil
}

func (s *MemoryStore) GetExercise(_ context.Context, exerciseID string) (Exercise, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.exercises[exerciseID]
	if !ok {
		return Exercise{}, fmt.Errorf("exercise %s: %w", exerciseID, ErrNotFound)
	}
	e.CourseID = s.courseOf(e.Scope)
	return e, nil
}

func (s *MemoryStore) ListQuizzes(_ context.Context, courseID string) ([]Quiz, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Quiz
	for _, q := range s.quizzes {
		if c := s.courseOf(q.Scope); c == courseID {
			q.CourseID = c
			out = append(out, q)
		}
	}
	slices.SortFunc(out, func(a, b Quiz) int { return s.compareScope(a.Scope, b.Scope) })
	return out, nil
}

func (s *MemoryStore) ListExercises(_ context.Context, courseID string) ([]Exercise, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Exercise
	for _, e := range s.exercises {
		if c := s.courseOf(e.Scope); c == courseID {
			e.CourseID = c
			out = append(out, e)
		}
	}
	slices.SortFunc(out, func(a, b Exercise) int { return s.compareScope(a.Scope, b.Scope) })
	return out, nil
}

func (s *MemoryStore) GetProfile(_ context.Context, userID string) (Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.profiles[userID]
	if !ok {
		return Profile{}, fmt.Errorf("profile %s: %w", userID, ErrNotFound)
	}
	return p, nil
}

func progressKey(userID, courseID, lessonID string) string {
	return strings.Join([]string{userID, courseID, lessonID}, "|")
}

func (s *MemoryStore) UpsertProgress(_ context.Context, p Progress) (Progress, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p.LastAccessed = s.now()
	s.progress[progressKey(p.UserID, p.CourseID, p.LessonID)] = p
	return p, nil
}

func (s *MemoryStore) ListProgress(_ context.Context, userID, courseID string) ([]Progress, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Progress
	for _, p := range s.progress {
		if p.UserID == userID && (courseID == "" || p.CourseID == courseID) {
			out = append(out, p)
		}
	}
	slices.SortFunc(out, func(a, b Progress) int { return a.LastAccessed.Compare(b.LastAccessed) })
	return out, nil
}

func (s *MemoryStore) InsertQuizAttempt(_ context.Context, a QuizAttempt) (QuizAttempt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.quizzes[a.QuizID]; !ok {
		return QuizAttempt{}, fmt.Errorf("quiz %s: %w", a.QuizID, ErrNotFound)
	}
	a.ID = uuid.NewString()
	a.CreatedAt = s.now()
	s.attempts = append(s.attempts, a)
	return a, nil
}

func (s *MemoryStore) ListQuizAttempts(_ context.Context, userID string) ([]QuizAttempt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []QuizAttempt
	for _, a := range s.attempts {
		if a.UserID == userID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (s *MemoryStore) ListLessonQuizAttempts(_ context.Context, userID, courseID string) ([]QuizAttempt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []QuizAttempt
	for _, a := range s.attempts {
		q := s.quizzes[a.QuizID]
		if a.UserID == userID && q.Scope.Kind == ScopeLesson && s.courseOf(q.Scope) == courseID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (s *MemoryStore) InsertExerciseSubmission(_ context.Context, sub ExerciseSubmission) (ExerciseSubmission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.exercises[sub.ExerciseID]; !ok {
		return ExerciseSubmission{}, fmt.Errorf("exercise %s: %w", sub.ExerciseID, ErrNotFound)
	}
	sub.ID = uuid.NewString()
	sub.CreatedAt = s.now()
	s.submissions = append(s.submissions, sub)
	return sub, nil
}

func (s *MemoryStore) ListExerciseSubmissions(_ context.Context, userID string) ([]ExerciseSubmission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []ExerciseSubmission
	for _, sub := range s.submissions {
		if sub.UserID == userID {
			out = append(out, sub)
		}
	}
	return out, nil
}

func (s *MemoryStore) GetCertification(_ context.Context, userID, courseID string) (Certification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, c := range s.certs {
		if c.UserID == userID && c.CourseID == courseID {
			return c, nil
		}
	}
	return Certification{}, fmt.Errorf("certification: %w", ErrNotFound)
}

func (s *MemoryStore) InsertCertification(_ context.Context, c Certification) (Certification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.certs {
		if existing.UserID == c.UserID && existing.CourseID == c.CourseID {
			return Certification{}, ErrAlreadyCertified
		}
		if existing.CertificateNumber == c.CertificateNumber {
			return Certification{}, fmt.Errorf("certificate number %s already issued", c.CertificateNumber)
		}
	}
	c.ID = uuid.NewString()
	if c.IssuedAt.IsZero() {
		c.IssuedAt = s.now()
	}
	s.certs = append(s.certs, c)
	return c, nil
}

func (s *MemoryStore) ListCertifications(_ context.Context, userID string) ([]Certification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Certification
	for _, c := range s.certs {
		if c.UserID == userID {
			out = append(out, c)
		}
	}
	return out, nil
}
