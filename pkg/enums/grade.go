package enums

import (
	"fmt"
	"strings"
)

// Grade is the quality grade of a harvested product.
type Grade string

const (
	GradeA Grade = "A"
	GradeB Grade = "B"
	GradeC Grade = "C"
)

var validGrades = []Grade{GradeA, GradeB, GradeC}

func (g Grade) String() string {
	return string(g)
}

func (g Grade) IsValid() bool {
	for _, candidate := range validGrades {
		if candidate == g {
			return true
		}
	}
	return false
}

// ParseGrade accepts grades in any case and surrounding whitespace.
func ParseGrade(value string) (Grade, error) {
	normalized := Grade(strings.ToUpper(strings.TrimSpace(value)))
	if normalized.IsValid() {
		return normalized, nil
	}
	return "", fmt.Errorf("invalid grade %q", value)
}
