package ulid

import (
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNew_SortsByCreation(t *testing.T) {
	ids := make([]string, 100)
	for i := range ids {
		ids[i] = New()
	}
	assert.True(t, sort.StringsAreSorted(ids))
}

func TestNewFromTime_Orders(t *testing.T) {
	now := time.Now()
	older := NewFromTime(now.Add(-time.Hour))
	newer := NewFromTime(now)
	assert.Less(t, older, newer)
}

func TestIsValid(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{New(), true},
		{"", false},
		{"01HZZ", false},
		{"not-a-ulid-at-all-not-a-ulid", false},
	}
	for _, tt := range tests {
		if got := IsValid(tt.in); got != tt.want {
			t.Errorf("IsValid(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
