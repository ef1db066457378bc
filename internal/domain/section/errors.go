package section

import "errors"

var (
	ErrSectionNotFound = errors.New("section not found")
)
