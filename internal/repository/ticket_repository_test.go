package repository

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/helpdesk-tickets/internal/domain"
)

func TestBuildTicketQueryFilters(t *testing.T) {
	status := domain.FlagStatusOpen
	solve := domain.SolveStatusPendingApproval
	topic := " billing "
	user := "42"

	query, args, err := buildTicketQuery(TicketFilter{
		FlagStatus:  &status,
		SolveStatus: &solve,
		Topic:       &topic,
		VisibleTo:   &user,
		SortBy:      "deadline",
		SortDesc:    true,
		Limit:       500,
		Offset:      -3,
	})
	require.NoError(t, err)

	assert.Equal(t, []any{status, solve, user, "billing"}, args)
	assert.Contains(t, query, "t.flag_status=$1")
	assert.Contains(t, query, "t.solve_status=$2")
	assert.Contains(t, query, "(t.request_author_id=$3 OR t.assigned_developer_id=$3)")
	assert.Contains(t, query, "ftp.name = $4")
	assert.Contains(t, query, "ORDER BY t.deadline_date DESC, t.id ASC")
	assert.True(t, strings.HasSuffix(query, "LIMIT 100 OFFSET 0"))
}

func TestBuildTicketQueryDefaults(t *testing.T) {
	query, args, err := buildTicketQuery(TicketFilter{})
	require.NoError(t, err)

	assert.Empty(t, args)
	assert.Contains(t, query, "ORDER BY t.creation_date ASC")
	assert.True(t, strings.HasSuffix(query, "LIMIT 20 OFFSET 0"))
}

func TestBuildTicketQueryRejectsUnknownSort(t *testing.T) {
	for _, key := range []string{"t.id; DROP TABLE tickets", "password", "author"} {
		_, _, err := buildTicketQuery(TicketFilter{SortBy: key})
		assert.Error(t, err, key)
	}
}

func TestSortColumnAllowList(t *testing.T) {
	for _, key := range SortKeys() {
		col, ok := SortColumn(key)
		assert.True(t, ok)
		assert.NotEmpty(t, col)
	}
	_, ok := SortColumn("creation_date")
	assert.False(t, ok)
}
