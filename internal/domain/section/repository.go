package section

import "context"

type SectionRepository interface {
	GetByID(ctx context.Context, id string) (Section, error)
	ListByMember(ctx context.Context, userID string) ([]Section, error)
	// Upsert writes the section and replaces its roster.
	Upsert(ctx context.Context, s Section) error
}
