package postgresql

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/tutorias/attendance-desk/internal/domain/section"
	"github.com/tutorias/attendance-desk/internal/pkg/database"
)

const (
	roleStudent = "student"
	roleTutor   = "tutor"
)

type sectionRepository struct {
	db *database.DB
}

// GetByID implements section.SectionRepository.
func (r *sectionRepository) GetByID(ctx context.Context, id string) (section.Section, error) {
	q := GetQuerier(ctx, r.db)

	var s section.Section
	err := q.QueryRow(ctx, `SELECT id, name, slug FROM sections WHERE id = $1`, id).Scan(&s.ID, &s.Name, &s.Slug)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return section.Section{}, fmt.Errorf("%w: %s", section.ErrSectionNotFound, id)
		}
		return section.Section{}, fmt.Errorf("failed to get section: %w", err)
	}

	if err := r.loadMembers(ctx, q, &s); err != nil {
		return section.Section{}, err
	}
	return s, nil
}

// ListByMember implements section.SectionRepository.
func (r *sectionRepository) ListByMember(ctx context.Context, userID string) ([]section.Section, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		SELECT DISTINCT s.id, s.name, s.slug
		FROM sections s
		JOIN section_members m ON m.section_id = s.id
		WHERE m.user_id = $1
		ORDER BY s.name
	`
	rows, err := q.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list sections: %w", err)
	}
	sections, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (section.Section, error) {
		var s section.Section
		err := row.Scan(&s.ID, &s.Name, &s.Slug)
		return s, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan sections: %w", err)
	}

	for i := range sections {
		if err := r.loadMembers(ctx, q, &sections[i]); err != nil {
			return nil, err
		}
	}
	return sections, nil
}

func (r *sectionRepository) loadMembers(ctx context.Context, q database.Querier, s *section.Section) error {
	rows, err := q.Query(ctx, `
		SELECT link_id, user_id, role, name, image, email
		FROM section_members
		WHERE section_id = $1
		ORDER BY name, link_id
	`, s.ID)
	if err != nil {
		return fmt.Errorf("failed to load roster: %w", err)
	}
	defer rows.Close()

	s.Students, s.Tutors = nil, nil
	for rows.Next() {
		var m section.Member
		var role string
		if err := rows.Scan(&m.LinkID, &m.UserID, &role, &m.Name, &m.Image, &m.Email); err != nil {
			return fmt.Errorf("failed to scan member: %w", err)
		}
		if role == roleTutor {
			s.Tutors = append(s.Tutors, m)
		} else {
			s.Students = append(s.Students, m)
		}
	}
	return rows.Err()
}

// Upsert implements section.SectionRepository.
func (r *sectionRepository) Upsert(ctx context.Context, s section.Section) error {
	return WithTransaction(ctx, r.db, func(ctx context.Context) error {
		q := GetQuerier(ctx, r.db)

		_, err := q.Exec(ctx, `
			INSERT INTO sections (id, name, slug)
			VALUES ($1, $2, $3)
			ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, slug = EXCLUDED.slug, updated_at = NOW()
		`, s.ID, s.Name, s.Slug)
		if err != nil {
			return fmt.Errorf("failed to upsert section: %w", err)
		}

		if _, err := q.Exec(ctx, `DELETE FROM section_members WHERE section_id = $1`, s.ID); err != nil {
			return fmt.Errorf("failed to clear roster: %w", err)
		}

		batch := &pgx.Batch{}
		queue := func(m section.Member, role string) {
			linkID := m.LinkID
			if linkID == "" {
				linkID = s.ID + ":" + m.UserID
			}
			batch.Queue(`
				INSERT INTO section_members (link_id, section_id, user_id, role, name, image, email)
				VALUES ($1, $2, $3, $4, $5, $6, $7)
			`, linkID, s.ID, m.UserID, role, m.Name, m.Image, m.Email)
		}
		for _, m := range s.Students {
			queue(m, roleStudent)
		}
		for _, m := range s.Tutors {
			queue(m, roleTutor)
		}
		if batch.Len() == 0 {
			return nil
		}

		tx, ok := q.(pgx.Tx)
		if !ok {
			return errors.New("roster upsert requires a transaction")
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("failed to insert roster: %w", err)
		}
		return nil
	})
}

func NewSectionRepository(db *database.DB) section.SectionRepository {
	return &sectionRepository{db: db}
}
