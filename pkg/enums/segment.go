package enums

import (
	"fmt"
	"strings"
)

// Segment is the marketing segment assigned to a customer.
type Segment string

const (
	SegmentVIP     Segment = "VIP"
	SegmentStable  Segment = "Stable"
	SegmentRegular Segment = "Regular"
	SegmentNew     Segment = "New"
	SegmentAtRisk  Segment = "At Risk"
)

var validSegments = []Segment{
	SegmentVIP,
	SegmentStable,
	SegmentRegular,
	SegmentNew,
	SegmentAtRisk,
}

func (s Segment) String() string {
	return string(s)
}

func (s Segment) IsValid() bool {
	for _, candidate := range validSegments {
		if candidate == s {
			return true
		}
	}
	return false
}

func ParseSegment(value string) (Segment, error) {
	trimmed := strings.TrimSpace(value)
	for _, candidate := range validSegments {
		if strings.EqualFold(string(candidate), trimmed) {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid segment %q", value)
}
