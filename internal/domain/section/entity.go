package section

// Member is a user linked to a section. LinkID identifies the membership
// itself and is the key attendance records are written against.
type Member struct {
	UserID string
	LinkID string
	Name   string
	Image  string
	Email  string
}

// Section is a course group with its roster.
type Section struct {
	ID       string
	Name     string
	Slug     string
	Students []Member
	Tutors   []Member
}

// StudentByLink finds a student by membership id.
func (s Section) StudentByLink(linkID string) (Member, bool) {
	for _, m := range s.Students {
		if m.LinkID == linkID {
			return m, true
		}
	}
	return Member{}, false
}

// TutorByUser finds a tutor by user id.
func (s Section) TutorByUser(userID string) (Member, bool) {
	for _, m := range s.Tutors {
		if m.UserID == userID {
			return m, true
		}
	}
	return Member{}, false
}
