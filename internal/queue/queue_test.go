package queue

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/phrazzld/scry-import/internal/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubmit_RejectsDuplicatesAndInvalidPayloads(t *testing.T) {
	t.Parallel()

	rec := &recorder{}
	q := newTestQueue(t, always(nil), testPolicy(), withRecorder(rec))

	first := q.Submit(context.Background(), payloads("page1.png", "page2.png"), nil)
	require.Len(t, first.Accepted, 2)
	assert.Empty(t, first.Rejected)

	library := NewLibrarySet("Archive.PNG")
	batch := append(payloads(" PAGE1.png ", "archive.png", "new.png", "new.png"),
		Payload{Filename: "empty.png"},
		Payload{Filename: "  ", Data: []byte{1}},
	)
	second := q.Submit(context.Background(), batch, library)

	require.Len(t, second.Accepted, 1)
	assert.Equal(t, "new.png", second.Accepted[0].Payload.Filename)
	assert.Equal(t, StatusPending, second.Accepted[0].Status)

	reasons := map[string]error{}
	for _, r := range second.Rejected {
		reasons[r.Filename] = r.Err
	}
	assert.ErrorIs(t, reasons[" PAGE1.png "], ErrDuplicatePayload)
	assert.ErrorIs(t, reasons["archive.png"], ErrDuplicatePayload)
	assert.ErrorIs(t, reasons["new.png"], ErrDuplicatePayload)
	assert.ErrorIs(t, reasons["empty.png"], ErrInvalidPayload)
	assert.ErrorIs(t, reasons["  "], ErrInvalidPayload)

	assert.Equal(t, 3, q.Stats().Total)
	assert.Equal(t, 1, rec.count(events.ItemSubmitted, "new.png"))
	assert.Equal(t, 1, rec.count(events.ItemRejected, "archive.png"))
}

func TestSubmit_ResubmittingFailedFilenameReplacesItem(t *testing.T) {
	t.Parallel()

	q := newTestQueue(t, always(map[string]error{"a.png": errMalformed}), testPolicy())
	first := q.Submit(context.Background(), payloads("a.png", "b.png"), nil)
	_, err := q.Run(context.Background(), false)
	require.NoError(t, err)
	require.Equal(t, 1, q.Stats().Count(StatusError))

	res := q.Submit(context.Background(), payloads("A.png"), nil)
	require.Len(t, res.Accepted, 1)

	items := q.Items()
	require.Len(t, items, 2)
	assert.Equal(t, "A.png", items[0].Payload.Filename)
	assert.Equal(t, StatusPending, items[0].Status)
	assert.Equal(t, res.Accepted[0].ID, items[0].ID)
	assert.NotEqual(t, first.Accepted[0].ID, items[0].ID)
	assert.Zero(t, q.Stats().Count(StatusError))

	_, err = q.Item(first.Accepted[0].ID)
	assert.ErrorIs(t, err, ErrItemNotFound)

	// Retrying failed items cannot produce a second artifact for the key.
	_, err = q.Run(context.Background(), true)
	require.NoError(t, err)
	keys := map[string]int{}
	for _, it := range q.Items() {
		keys[it.Payload.Key()]++
	}
	assert.Equal(t, map[string]int{"a.png": 1, "b.png": 1}, keys)
}

func TestQueue_Maintenance(t *testing.T) {
	t.Parallel()

	q := newTestQueue(t, always(nil), testPolicy())
	res := q.Submit(context.Background(), payloads("a.png", "b.png", "c.png"), nil)

	require.NoError(t, q.Remove(res.Accepted[1].ID))
	assert.ErrorIs(t, q.Remove(uuid.New()), ErrItemNotFound)

	items := q.Items()
	require.Len(t, items, 2)
	assert.Equal(t, "a.png", items[0].Payload.Filename)
	assert.Equal(t, "c.png", items[1].Payload.Filename)

	got, err := q.Item(res.Accepted[0].ID)
	require.NoError(t, err)
	assert.Equal(t, "a.png", got.Payload.Filename)
	_, err = q.Item(uuid.New())
	assert.ErrorIs(t, err, ErrItemNotFound)

	replaced, err := q.Replace(context.Background(), payloads("x.png"), nil)
	require.NoError(t, err)
	assert.Len(t, replaced.Accepted, 1)
	assert.Equal(t, 1, q.Stats().Total)

	require.NoError(t, q.Clear())
	assert.Zero(t, q.Stats().Total)
	assert.False(t, q.Running())
}

func TestQueue_ItemsAreSnapshots(t *testing.T) {
	t.Parallel()

	q := newTestQueue(t, always(nil), testPolicy())
	q.Submit(context.Background(), payloads("a.png"), nil)
	_, err := q.Run(context.Background(), false)
	require.NoError(t, err)

	snap := q.Items()
	snap[0].Status = StatusError
	snap[0].Result.Exercise.Title = "mutated"

	fresh := q.Items()
	assert.Equal(t, StatusDone, fresh[0].Status)
	assert.Equal(t, "Exercise a.png", fresh[0].Result.Exercise.Title)
}

func TestStats(t *testing.T) {
	t.Parallel()

	q := newTestQueue(t, always(map[string]error{"b.png": errMalformed}), testPolicy())
	q.Submit(context.Background(), payloads("a.png", "b.png"), nil)

	st := q.Stats()
	assert.Equal(t, 2, st.Total)
	assert.Equal(t, 2, st.Count(StatusPending))
	assert.Zero(t, st.Count(StatusDone))

	_, err := q.Run(context.Background(), false)
	require.NoError(t, err)

	st = q.Stats()
	assert.Equal(t, 1, st.Count(StatusDone))
	assert.Equal(t, 1, st.Count(StatusError))
	assert.Len(t, st.ByStatus, len(Statuses))
}
