package backend

import "fmt"

// Collection names one tracked domain collection.
type Collection string

const (
	Courses  Collection = "courses"
	Modules  Collection = "modules"
	Contents Collection = "contents"
	Profiles Collection = "profiles"
)

// AllCollections lists every tracked collection in dependency order: a
// collection only references collections that appear before it.
var AllCollections = []Collection{Profiles, Courses, Modules, Contents}

// ParseCollection validates a collection name.
func ParseCollection(s string) (Collection, error) {
	switch c := Collection(s); c {
	case Courses, Modules, Contents, Profiles:
		return c, nil
	default:
		return "", fmt.Errorf("unknown collection %q", s)
	}
}

// Record is one row of a tracked collection.
type Record interface {
	Collection() Collection
	Key() string
}

// Profile is a platform user (mentor, mentee or admin).
type Profile struct {
	ID          string `json:"id" yaml:"id"`
	Email       string `json:"email" yaml:"email"`
	DisplayName string `json:"displayName" yaml:"displayName"`
	Role        string `json:"role" yaml:"role"`
}

func (Profile) Collection() Collection { return Profiles }
func (p Profile) Key() string          { return p.ID }

// Course is a mentoring course owned by a mentor profile.
type Course struct {
	ID          string `json:"id" yaml:"id"`
	Title       string `json:"title" yaml:"title"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
	MentorID    string `json:"mentorId,omitempty" yaml:"mentorId,omitempty"`
	Published   bool   `json:"published" yaml:"published"`
}

func (Course) Collection() Collection { return Courses }
func (c Course) Key() string          { return c.ID }

// Module is an ordered section of a course.
type Module struct {
	ID       string `json:"id" yaml:"id"`
	CourseID string `json:"courseId" yaml:"courseId"`
	Title    string `json:"title" yaml:"title"`
	Position int    `json:"position" yaml:"position"`
}

func (Module) Collection() Collection { return Modules }
func (m Module) Key() string          { return m.ID }

// Content is a lesson item inside a module.
type Content struct {
	ID       string `json:"id" yaml:"id"`
	ModuleID string `json:"moduleId" yaml:"moduleId"`
	Kind     string `json:"kind" yaml:"kind"`
	Title    string `json:"title" yaml:"title"`
	Body     string `json:"body,omitempty" yaml:"body,omitempty"`
	Position int    `json:"position" yaml:"position"`
}

func (Content) Collection() Collection { return Contents }
func (c Content) Key() string          { return c.ID }
