package backend

import "fmt"

// Snapshot holds the ordered contents of every tracked collection, one typed
// slice per collection.
type Snapshot struct {
	Profiles []Profile `json:"profiles"`
	Courses  []Course  `json:"courses"`
	Modules  []Module  `json:"modules"`
	Contents []Content `json:"contents"`
}

// Records returns the contents of c as generic records.
func (s Snapshot) Records(c Collection) []Record {
	var out []Record
	switch c {
	case Profiles:
		out = make([]Record, 0, len(s.Profiles))
		for _, r := range s.Profiles {
			out = append(out, r)
		}
	case Courses:
		out = make([]Record, 0, len(s.Courses))
		for _, r := range s.Courses {
			out = append(out, r)
		}
	case Modules:
		out = make([]Record, 0, len(s.Modules))
		for _, r := range s.Modules {
			out = append(out, r)
		}
	case Contents:
		out = make([]Record, 0, len(s.Contents))
		for _, r := range s.Contents {
			out = append(out, r)
		}
	}
	return out
}

// Set replaces the contents of c. Every record must be of the collection's type.
func (s *Snapshot) Set(c Collection, records []Record) error {
	if err := CheckRecords(c, records); err != nil {
		return err
	}

	switch c {
	case Profiles:
		typed := make([]Profile, 0, len(records))
		for i, r := range records {
			p, ok := r.(Profile)
			if !ok {
				return fmt.Errorf("profiles[%d]: unexpected record type %T", i, r)
			}
			typed = append(typed, p)
		}
		s.Profiles = typed
	case Courses:
		typed := make([]Course, 0, len(records))
		for i, r := range records {
			v, ok := r.(Course)
			if !ok {
				return fmt.Errorf("courses[%d]: unexpected record type %T", i, r)
			}
			typed = append(typed, v)
		}
		s.Courses = typed
	case Modules:
		typed := make([]Module, 0, len(records))
		for i, r := range records {
			v, ok := r.(Module)
			if !ok {
				return fmt.Errorf("modules[%d]: unexpected record type %T", i, r)
			}
			typed = append(typed, v)
		}
		s.Modules = typed
	case Contents:
		typed := make([]Content, 0, len(records))
		for i, r := range records {
			v, ok := r.(Content)
			if !ok {
				return fmt.Errorf("contents[%d]: unexpected record type %T", i, r)
			}
			typed = append(typed, v)
		}
		s.Contents = typed
	default:
		return fmt.Errorf("unknown collection %q", c)
	}
	return nil
}

// Len returns the number of records held for c.
func (s Snapshot) Len(c Collection) int {
	switch c {
	case Profiles:
		return len(s.Profiles)
	case Courses:
		return len(s.Courses)
	case Modules:
		return len(s.Modules)
	case Contents:
		return len(s.Contents)
	}
	return 0
}

// Clone returns a copy that shares no backing arrays with s.
func (s Snapshot) Clone() Snapshot {
	return Snapshot{
		Profiles: append([]Profile(nil), s.Profiles...),
		Courses:  append([]Course(nil), s.Courses...),
		Modules:  append([]Module(nil), s.Modules...),
		Contents: append([]Content(nil), s.Contents...),
	}
}

// Counts summarises the snapshot per collection.
func (s Snapshot) Counts() map[Collection]int {
	counts := make(map[Collection]int, len(AllCollections))
	for _, c := range AllCollections {
		counts[c] = s.Len(c)
	}
	return counts
}
