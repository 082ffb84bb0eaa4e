package orders

import (
	"math/rand/v2"
	"strings"
	"time"

	"github.com/harvestdesk/farmops-backend/pkg/enums"
)

const (
	defaultIDPrefix = "ORD"
	idRandomLength  = 4
	idDateLayout    = "20060102"
	base36Alphabet  = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"
)

// IDGenerator builds human-readable order ids of the form
// PREFIX-XXXX-YYYYMMDD, dated in the business time zone.
type IDGenerator struct {
	loc   *time.Location
	now   func() time.Time
	randN func(n int) int
}

// NewIDGenerator resolves timeZone once. Hosts without tzdata fall back to a
// fixed UTC+8 offset.
func NewIDGenerator(timeZone string) *IDGenerator {
	return &IDGenerator{
		loc:   LoadLocation(timeZone),
		now:   time.Now,
		randN: rand.IntN,
	}
}

func LoadLocation(name string) *time.Location {
	if strings.TrimSpace(name) == "" {
		name = "Asia/Taipei"
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.FixedZone("UTC+8", 8*60*60)
	}
	return loc
}

func (g *IDGenerator) Location() *time.Location {
	return g.loc
}

// Today returns the current business day as YYYYMMDD.
func (g *IDGenerator) Today() string {
	return g.now().In(g.loc).Format(idDateLayout)
}

// BusinessDate returns midnight of the current business day.
func (g *IDGenerator) BusinessDate() time.Time {
	now := g.now().In(g.loc)
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, g.loc)
}

// New generates an id for channel; orders without a channel use ORD.
func (g *IDGenerator) New(channel *enums.Channel) string {
	prefix := defaultIDPrefix
	if channel != nil && strings.TrimSpace(string(*channel)) != "" {
		prefix = strings.ToUpper(strings.TrimSpace(string(*channel)))
	}
	var b strings.Builder
	b.Grow(len(prefix) + idRandomLength + len(idDateLayout) + 2)
	b.WriteString(prefix)
	b.WriteByte('-')
	for i := 0; i < idRandomLength; i++ {
		b.WriteByte(base36Alphabet[g.randN(len(base36Alphabet))])
	}
	b.WriteByte('-')
	b.WriteString(g.Today())
	return b.String()
}

// Normalize appends today's date to a caller-supplied id unless it already
// ends with it.
func (g *IDGenerator) Normalize(id string) string {
	id = strings.TrimSpace(id)
	today := g.Today()
	if strings.HasSuffix(id, today) {
		return id
	}
	return id + "-" + today
}
