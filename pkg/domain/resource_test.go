package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeResources(t *testing.T) {
	ref := ResourceRef{ID: "kb", Name: "knowledge base"}
	got := NormalizeResources([]any{
		"bare-id",
		ref,
		&ref,
		42, // unsupported shapes are dropped
	})

	assert.Equal(t, []ResourceRef{
		{ID: "bare-id"},
		ref,
		ref,
	}, got)
}
