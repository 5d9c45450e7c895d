package store

import "time"

// Studio is a row of the studio table.
type Studio struct {
	ID        string    `bun:"id,pk" json:"id,omitempty"`
	Name      string    `bun:"name" json:"name"`
	Location  string    `bun:"location" json:"location"`
	CreatedAt time.Time `bun:"created_at" json:"created_at"`
	ShortID   string    `bun:"short_id" json:"short_id"`
}

// Row converts the studio into an insertable row.
func (s Studio) Row() Row {
	return Row{
		"name":       s.Name,
		"location":   nullString(s.Location),
		"created_at": nullTime(s.CreatedAt),
		"short_id":   s.ShortID,
	}
}

// Person holds the columns shared by instructors and students.
type Person struct {
	ID                string    `bun:"id,pk" json:"id,omitempty"`
	FirstName         string    `bun:"first_name" json:"first_name"`
	LastName          string    `bun:"last_name" json:"last_name"`
	Email             string    `bun:"email" json:"email"`
	Password          string    `bun:"password" json:"-"`
	MustResetPassword bool      `bun:"must_reset_password" json:"must_reset_password"`
	CreatedAt         time.Time `bun:"created_at" json:"created_at"`
}

func (p Person) row() Row {
	return Row{
		"first_name":          p.FirstName,
		"last_name":           p.LastName,
		"email":               nullString(p.Email),
		"password":            p.Password,
		"must_reset_password": p.MustResetPassword,
		"created_at":          nullTime(p.CreatedAt),
	}
}

// Instructor is a row of the instructor table.
type Instructor struct {
	Person
}

// Row converts the instructor into an insertable row.
func (i Instructor) Row() Row { return i.Person.row() }

// Student is a row of the student table.
type Student struct {
	Person
	Birthday          *time.Time `bun:"birthday" json:"birthday,omitempty"`
	Height            string     `bun:"height" json:"height,omitempty"`
	Weight            string     `bun:"weight" json:"weight,omitempty"`
	Pathologies       string     `bun:"pathologies" json:"pathologies,omitempty"`
	Occupation        string     `bun:"occupation" json:"occupation,omitempty"`
	ProfilePictureURL string     `bun:"profile_picture_url" json:"profile_picture_url,omitempty"`
}

// Row converts the student into an insertable row.
func (s Student) Row() Row {
	r := s.Person.row()
	if s.Birthday != nil {
		r["birthday"] = s.Birthday.UTC()
	}
	for col, v := range map[string]string{
		"height":      s.Height,
		"weight":      s.Weight,
		"pathologies": s.Pathologies,
		"occupation":  s.Occupation,
	} {
		if v != "" {
			r[col] = v
		}
	}
	return r
}

// StudioInstructor joins a studio and an instructor.
type StudioInstructor struct {
	ID           string `bun:"id,pk" json:"id,omitempty"`
	StudioID     string `bun:"studio_id" json:"studio_id"`
	InstructorID string `bun:"instructor_id" json:"instructor_id"`
	IsApproved   bool   `bun:"is_approved" json:"is_approved"`
	IsAdmin      bool   `bun:"is_admin" json:"is_admin"`
}

// Row converts the join into an insertable row.
func (s StudioInstructor) Row() Row {
	return Row{
		"studio_id":     s.StudioID,
		"instructor_id": s.InstructorID,
		"is_approved":   s.IsApproved,
		"is_admin":      s.IsAdmin,
	}
}

// StudioStudent joins a studio and a student.
type StudioStudent struct {
	ID         string `bun:"id,pk" json:"id,omitempty"`
	StudioID   string `bun:"studio_id" json:"studio_id"`
	StudentID  string `bun:"student_id" json:"student_id"`
	IsApproved bool   `bun:"is_approved" json:"is_approved"`
	Goals      string `bun:"goals" json:"goals,omitempty"`
	About      string `bun:"about" json:"about,omitempty"`
}

// Row converts the join into an insertable row.
func (s StudioStudent) Row() Row {
	r := Row{
		"studio_id":   s.StudioID,
		"student_id":  s.StudentID,
		"is_approved": s.IsApproved,
	}
	if s.Goals != "" {
		r["goals"] = s.Goals
	}
	if s.About != "" {
		r["about"] = s.About
	}
	return r
}

// Lesson belongs to one studio.
type Lesson struct {
	ID          string    `bun:"id,pk" json:"id,omitempty"`
	StudioID    string    `bun:"studio_id" json:"studio_id"`
	Name        string    `bun:"name" json:"name"`
	Description string    `bun:"description" json:"description,omitempty"`
	VideoURL    string    `bun:"video_url" json:"video_url,omitempty"`
	CreatedAt   time.Time `bun:"created_at" json:"created_at"`
}

// Row converts the lesson into an insertable row.
func (l Lesson) Row() Row {
	return Row{
		"studio_id":   l.StudioID,
		"name":        l.Name,
		"description": nullString(l.Description),
		"video_url":   nullString(l.VideoURL),
		"created_at":  nullTime(l.CreatedAt),
	}
}

// StudentLesson assigns a lesson to a student.
type StudentLesson struct {
	ID          string `bun:"id,pk" json:"id,omitempty"`
	StudentID   string `bun:"student_id" json:"student_id"`
	LessonID    string `bun:"lesson_id" json:"lesson_id"`
	IsCompleted bool   `bun:"is_completed" json:"is_completed"`
}

// Row converts the assignment into an insertable row.
func (s StudentLesson) Row() Row {
	return Row{
		"student_id":   s.StudentID,
		"lesson_id":    s.LessonID,
		"is_completed": s.IsCompleted,
	}
}

// Notebook is unique per (student, studio).
type Notebook struct {
	ID        string    `bun:"id,pk" json:"id,omitempty"`
	StudentID string    `bun:"student_id" json:"student_id"`
	StudioID  string    `bun:"studio_id" json:"studio_id"`
	CreatedAt time.Time `bun:"created_at" json:"created_at"`
}

// Row converts the notebook into an insertable row.
func (n Notebook) Row() Row {
	return Row{
		"student_id": n.StudentID,
		"studio_id":  n.StudioID,
		"created_at": nullTime(n.CreatedAt),
	}
}

// Entry is a notebook entry, denormalized with the notebook's studio.
type Entry struct {
	ID         string    `bun:"id,pk" json:"id,omitempty"`
	NotebookID string    `bun:"notebook_id" json:"notebook_id"`
	StudioID   string    `bun:"studio_id" json:"studio_id"`
	Title      string    `bun:"title" json:"title"`
	Content    string    `bun:"content" json:"content"`
	CreatedAt  time.Time `bun:"created_at" json:"created_at"`
}

// Row converts the entry into an insertable row.
func (e Entry) Row() Row {
	return Row{
		"notebook_id": e.NotebookID,
		"studio_id":   e.StudioID,
		"title":       e.Title,
		"content":     e.Content,
		"created_at":  nullTime(e.CreatedAt),
	}
}

// ExerciseList is a named group of catalog exercises.
type ExerciseList struct {
	ID        string    `bun:"id,pk" json:"id,omitempty"`
	Name      string    `bun:"name" json:"name"`
	CreatedAt time.Time `bun:"created_at" json:"created_at"`
}

// Row converts the list into an insertable row.
func (e ExerciseList) Row() Row {
	return Row{"name": e.Name, "created_at": nullTime(e.CreatedAt)}
}

// Exercise is one catalog exercise.
type Exercise struct {
	ID             string    `bun:"id,pk" json:"id,omitempty"`
	ExerciseListID string    `bun:"exercise_list_id" json:"exercise_list_id"`
	Name           string    `bun:"name" json:"name"`
	Description    string    `bun:"description" json:"description,omitempty"`
	CreatedAt      time.Time `bun:"created_at" json:"created_at"`
}

// Row converts the exercise into an insertable row.
func (e Exercise) Row() Row {
	return Row{
		"exercise_list_id": e.ExerciseListID,
		"name":             e.Name,
		"description":      nullString(e.Description),
		"created_at":       nullTime(e.CreatedAt),
	}
}

// ProgressPhoto links an uploaded image to a studio membership.
type ProgressPhoto struct {
	ID              string    `bun:"id,pk" json:"id,omitempty"`
	StudioStudentID string    `bun:"studio_student_id" json:"studio_student_id"`
	URL             string    `bun:"url" json:"url"`
	TakenAt         time.Time `bun:"taken_at" json:"taken_at"`
}

// Row converts the photo into an insertable row.
func (p ProgressPhoto) Row() Row {
	return Row{
		"studio_student_id": p.StudioStudentID,
		"url":               p.URL,
		"taken_at":          nullTime(p.TakenAt),
	}
}

// Contract lists the columns each catalog table must expose for the
// exercise importer to write to it.
var Contract = map[string][]string{
	TableExerciseLists: {"id", "name", "created_at"},
	TableExercises:     {"id", "exercise_list_id", "name", "description", "created_at"},
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.UTC()
}
