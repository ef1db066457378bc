package section

type MemberResponse struct {
	UserID string `json:"user_id"`
	LinkID string `json:"link_id,omitempty"`
	Name   string `json:"name"`
	Image  string `json:"image,omitempty"`
}

type SectionResponse struct {
	ID       string           `json:"id"`
	Name     string           `json:"name"`
	Slug     string           `json:"slug,omitempty"`
	Students []MemberResponse `json:"students"`
	Tutors   []MemberResponse `json:"tutors"`
}

func NewSectionResponse(s Section) SectionResponse {
	resp := SectionResponse{
		ID:       s.ID,
		Name:     s.Name,
		Slug:     s.Slug,
		Students: make([]MemberResponse, 0, len(s.Students)),
		Tutors:   make([]MemberResponse, 0, len(s.Tutors)),
	}
	for _, m := range s.Students {
		resp.Students = append(resp.Students, MemberResponse{UserID: m.UserID, LinkID: m.LinkID, Name: m.Name, Image: m.Image})
	}
	for _, m := range s.Tutors {
		resp.Tutors = append(resp.Tutors, MemberResponse{UserID: m.UserID, Name: m.Name, Image: m.Image})
	}
	return resp
}
