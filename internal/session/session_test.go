package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/crewd/internal/message"
	"github.com/fyrsmithlabs/crewd/internal/store"
)

func TestSaveAndLoadRoundTrip(t *testing.T) {
	st := NewStore(t.TempDir())

	sess := st.Create("build a parser", "/tmp/proj")
	require.NotEmpty(t, sess.ID)
	sess.Iterations = 4
	sess.Phase = "completion"
	sess.Counts = store.Counts{Total: 2, Completed: 2}
	sess.Report = &HandoffReport{
		HandoffsOccurred:  true,
		WorkerExecuted:    true,
		ManagerReviewed:   true,
		MessagesExchanged: true,
	}

	require.NoError(t, st.Save(sess))

	loaded, err := st.Load(sess.ID)
	require.NoError(t, err)
	assert.Equal(t, "build a parser", loaded.Request)
	assert.Equal(t, 4, loaded.Iterations)
	assert.Equal(t, 2, loaded.Counts.Completed)
	require.NotNil(t, loaded.Report)
	assert.True(t, loaded.Report.HandoffsOccurred)
}

func TestSaveRejectsEmptySession(t *testing.T) {
	st := NewStore(t.TempDir())
	assert.Error(t, st.Save(nil))
	assert.Error(t, st.Save(&Session{}))
}

func TestListSessions(t *testing.T) {
	st := NewStore(t.TempDir())

	ids, err := st.List()
	require.NoError(t, err)
	assert.Empty(t, ids)

	a := st.Create("a", "")
	b := st.Create("b", "")
	require.NoError(t, st.Save(a))
	require.NoError(t, st.Save(b))

	ids, err = st.List()
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{a.ID, b.ID}, ids)
}

func TestRecordMessagesDropsPayloads(t *testing.T) {
	msgs := []message.Message{
		message.New(store.RoleManager, store.RoleWorker, message.TaskAssignmentPayload{}),
		message.New(store.RoleWorker, store.RoleManager, message.TaskCompletedPayload{WorkItemID: "x"}),
	}
	recs := RecordMessages(msgs)
	require.Len(t, recs, 2)
	assert.Equal(t, message.TypeTaskAssignment, recs[0].Type)
	assert.Equal(t, store.RoleWorker, recs[1].From)
	assert.NotEmpty(t, recs[0].ID)
}
