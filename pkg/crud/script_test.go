package crud

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// replay walks a script and checks that every step targets a live document
func replay(t *testing.T, script Script, ids IDSpace, bulkLive map[string]bool) {
	t.Helper()
	live := map[string]bool{}
	for id := range bulkLive {
		live[id] = true
	}
	bulkRead := map[string]bool{}
	current := ""

	for i, step := range script {
		switch step.Op {
		case OpCreate:
			n, err := strconv.ParseInt(step.DocumentID, 10, 64)
			require.NoError(t, err)
			require.GreaterOrEqual(t, n, ids.CreateFirst, "step %d", i)
			require.False(t, live[step.DocumentID], "step %d creates existing %s", i, step.DocumentID)
			live[step.DocumentID] = true
			current = step.DocumentID
		case OpRead:
			require.True(t, live[step.DocumentID], "step %d reads missing %s", i, step.DocumentID)
			if bulkLive[step.DocumentID] {
				require.False(t, bulkRead[step.DocumentID], "step %d rereads bulk %s", i, step.DocumentID)
				bulkRead[step.DocumentID] = true
			}
			current = step.DocumentID
		case OpUpdate:
			require.NotEmpty(t, current, "step %d updates without a document", i)
		case OpDelete:
			require.NotEmpty(t, current, "step %d deletes without a document", i)
			delete(live, current)
			current = ""
		}
	}
}

func bulkIDs(ids IDSpace) map[string]bool {
	out := map[string]bool{}
	for i := int64(0); i < ids.BulkCount; i++ {
		out[strconv.FormatInt(ids.BulkFirst+i, 10)] = true
	}
	return out
}

func TestNewScript_RespectsDocumentLifecycles(t *testing.T) {
	tests := map[string]struct {
		counts    Counts
		bulkCount int64
	}{
		"balanced":            {counts: Counts{Creates: 10, Reads: 10, Updates: 10, Deletes: 10}},
		"read heavy":          {counts: Counts{Creates: 2, Reads: 50, Updates: 5, Deletes: 1}},
		"more deletes":        {counts: Counts{Creates: 3, Reads: 5, Updates: 2, Deletes: 6}, bulkCount: 10},
		"reads only":          {counts: Counts{Reads: 8}, bulkCount: 8},
		"bulk updates":        {counts: Counts{Reads: 4, Updates: 9, Deletes: 4}, bulkCount: 5},
		"creates only":        {counts: Counts{Creates: 5}},
		"empty":               {counts: Counts{}},
		"single of each":      {counts: Counts{Creates: 1, Reads: 1, Updates: 1, Deletes: 1}},
		"updates no deletes":  {counts: Counts{Creates: 1, Updates: 20}},
		"deletes all created": {counts: Counts{Creates: 7, Deletes: 7}},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			for conn := 0; conn < 3; conn++ {
				ids := IDSpaceFor(conn, 3, tc.bulkCount, tc.counts.Creates)
				for seed := int64(0); seed < 20; seed++ {
					script, err := NewScript(tc.counts, ids, seed)
					require.NoError(t, err)
					assert.Equal(t, tc.counts, script.Counts())
					replay(t, script, ids, bulkIDs(ids))
				}
			}
		})
	}
}

func TestNewScript_Deterministic(t *testing.T) {
	counts := Counts{Creates: 5, Reads: 5, Updates: 5, Deletes: 5}
	ids := IDSpaceFor(1, 2, 10, 5)

	a, err := NewScript(counts, ids, 3)
	require.NoError(t, err)
	b, err := NewScript(counts, ids, 3)
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.Equal(t, a.String(), b.String())
}

func TestIDSpaceFor_CreatedIDsAboveBulk(t *testing.T) {
	const connections, bulkPerConnection, creates = 4, 6, 3
	seen := map[int64]bool{}
	for conn := 0; conn < connections; conn++ {
		ids := IDSpaceFor(conn, connections, bulkPerConnection, creates)
		assert.GreaterOrEqual(t, ids.CreateFirst, int64(connections*bulkPerConnection))
		for i := int64(0); i < creates; i++ {
			id := ids.CreateFirst + i
			assert.False(t, seen[id])
			seen[id] = true
		}
	}
}

func TestCheckCounts(t *testing.T) {
	tests := map[string]struct {
		counts        Counts
		bulkAvailable int64
		valid         bool
	}{
		"enough creates":          {Counts{Creates: 2, Deletes: 2}, 0, true},
		"deletes need bulk reads": {Counts{Creates: 1, Reads: 1, Deletes: 2}, 1, true},
		"deletes without reads":   {Counts{Creates: 1, Deletes: 2}, 5, false},
		"bulk range too small":    {Counts{Reads: 3}, 2, false},
		"no bulk phase":           {Counts{Reads: 1}, 0, false},
		"update without document": {Counts{Updates: 1}, 10, false},
		"negative":                {Counts{Creates: -1}, 0, false},
		"reads of created":        {Counts{Creates: 1, Reads: 10}, 0, true},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			err := CheckCounts(tc.counts, tc.bulkAvailable)
			if tc.valid {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}
