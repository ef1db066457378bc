package attendance

import (
	"fmt"
	"strings"
)

// Status is the closed set of attendance outcomes.
type Status string

const (
	StatusAttended Status = "attended"
	StatusAbsent   Status = "absent"
	StatusExcused  Status = "excused"
)

// Statuses lists the accepted values in display order.
var Statuses = []Status{StatusAttended, StatusAbsent, StatusExcused}

// Legacy spellings still returned by older upstream records.
var statusAliases = map[string]Status{
	"attended":  StatusAttended,
	"present":   StatusAttended,
	"asistio":   StatusAttended,
	"asistió":   StatusAttended,
	"asisti√≥":  StatusAttended,
	"absent":    StatusAbsent,
	"falto":     StatusAbsent,
	"faltó":     StatusAbsent,
	"excused":   StatusExcused,
	"permiso":   StatusExcused,
	"justified": StatusExcused,
}

var legacyWire = map[Status]string{
	StatusAttended: "asistio",
	StatusAbsent:   "falto",
	StatusExcused:  "permiso",
}

// ParseStatus normalizes raw input to a Status.
func ParseStatus(raw string) (Status, error) {
	if s, ok := statusAliases[strings.ToLower(strings.TrimSpace(raw))]; ok {
		return s, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownStatus, raw)
}

func (s Status) Valid() bool {
	switch s {
	case StatusAttended, StatusAbsent, StatusExcused:
		return true
	}
	return false
}

// Wire returns the value sent upstream. Legacy backends expect the Spanish
// spellings.
func (s Status) Wire(legacy bool) string {
	if legacy {
		return legacyWire[s]
	}
	return string(s)
}

// Icon is the glyph drawn in history cells.
type Icon string

const (
	IconNone     Icon = ""
	IconCheck    Icon = "check"
	IconCross    Icon = "x"
	IconTriangle Icon = "triangle-alert"
)

// Tone is the badge colour of a status.
type Tone string

const (
	ToneNeutral Tone = "gray"
	ToneGreen   Tone = "green"
	ToneRed     Tone = "red"
	ToneYellow  Tone = "yellow"
)

// IconFor maps any accepted spelling to an icon. Unknown values get no icon.
func IconFor(raw string) Icon {
	s, err := ParseStatus(raw)
	if err != nil {
		return IconNone
	}
	switch s {
	case StatusAttended:
		return IconCheck
	case StatusAbsent:
		return IconCross
	default:
		return IconTriangle
	}
}

// ToneFor maps any accepted spelling to a badge colour.
func ToneFor(raw string) Tone {
	s, err := ParseStatus(raw)
	if err != nil {
		return ToneNeutral
	}
	switch s {
	case StatusAttended:
		return ToneGreen
	case StatusAbsent:
		return ToneRed
	default:
		return ToneYellow
	}
}
