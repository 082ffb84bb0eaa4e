package cron

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubJob struct {
	name string
}

func (s *stubJob) Name() string              { return s.name }
func (s *stubJob) Run(context.Context) error { return nil }

func TestRegistryKeepsRegistrationOrder(t *testing.T) {
	a, b, c := &stubJob{name: "a"}, &stubJob{name: "b"}, &stubJob{name: "c"}
	reg, err := NewRegistry(a, b, c)
	require.NoError(t, err)

	all, err := reg.Select()
	require.NoError(t, err)
	assert.Equal(t, []Job{a, b, c}, all)

	some, err := reg.Select("c", "a")
	require.NoError(t, err)
	assert.Equal(t, []Job{a, c}, some)

	names := reg.Names()
	names[0] = "mutated"
	assert.Equal(t, []string{"a", "b", "c"}, reg.Names())
}

func TestRegistryRejectsBadJobs(t *testing.T) {
	_, err := NewRegistry(&stubJob{name: "a"}, &stubJob{name: "a"})
	assert.ErrorContains(t, err, "registered twice")

	_, err = NewRegistry(&stubJob{name: " "})
	assert.Error(t, err)

	_, err = NewRegistry(nil)
	assert.Error(t, err)
}

func TestRegistrySelectUnknown(t *testing.T) {
	reg, err := NewRegistry(&stubJob{name: "segment-refresh"})
	require.NoError(t, err)

	_, err = reg.Select("segment-refresh", "nightly-backup")
	assert.ErrorContains(t, err, "nightly-backup")
}
