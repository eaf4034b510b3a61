package graph

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blockedby/mailmerge/internal/models"
)

const shareLink = "https://contoso-my.sharepoint.com/:x:/g/personal/ops/IQD?e=Mv2"

// fakeWorkbook serves the share, tables and rows/add endpoints and records inserted batches.
type fakeWorkbook struct {
	mu       sync.Mutex
	tables   string
	batches  [][][]any
	tableHit []string
	throttle int
}

func (f *fakeWorkbook) handler(t *testing.T) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		switch {
		case r.URL.Path == "/shares/"+ShareID(shareLink)+"/driveItem":
			_, _ = io.WriteString(w, `{"id":"item1","parentReference":{"driveId":"drive1"}}`)
		case r.URL.Path == "/drives/drive1/items/item1/workbook/tables":
			assert.Equal(t, "id,name", r.URL.Query().Get("$select"))
			_, _ = io.WriteString(w, f.tables)
		case strings.HasSuffix(r.URL.Path, "/rows/add"):
			if f.throttle > 0 {
				f.throttle--
				w.WriteHeader(http.StatusTooManyRequests)
				return
			}
			parts := strings.Split(r.URL.Path, "/")
			f.tableHit = append(f.tableHit, parts[len(parts)-3])

			var body struct {
				Values [][]any `json:"values"`
			}
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			f.batches = append(f.batches, body.Values)
			w.WriteHeader(http.StatusCreated)
			_, _ = io.WriteString(w, `{}`)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})
}

func rows(n int) [][]any {
	out := make([][]any, n)
	for i := range out {
		out[i] = []any{"ts", "actor", "send mail", "r", float64(i)}
	}
	return out
}

func TestShareID(t *testing.T) {
	id := ShareID("https://example.com/a?b=c")
	assert.True(t, strings.HasPrefix(id, "u!"))
	assert.NotContains(t, id, "=")
	assert.NotContains(t, id, "+")
	assert.NotContains(t, id, "/")
}

func TestWorkbook_InsertRows_Chunks(t *testing.T) {
	fake := &fakeWorkbook{tables: `{"value":[{"id":"1","name":"Other"},{"id":"2","name":"LogsTable"}]}`}
	srv := httptest.NewServer(fake.handler(t))
	defer srv.Close()

	c, _ := newTestClient(t, srv)
	wb := NewWorkbook(c)

	err := wb.InsertRows(context.Background(), InsertParams{
		AnyoneEditLink: shareLink,
		TableName:      "logstable",
		Rows:           rows(5),
		ChunkSize:      2,
	})
	require.NoError(t, err)

	require.Len(t, fake.batches, 3)
	assert.Len(t, fake.batches[0], 2)
	assert.Len(t, fake.batches[1], 2)
	assert.Len(t, fake.batches[2], 1)
	assert.Equal(t, []string{"LogsTable", "LogsTable", "LogsTable"}, fake.tableHit)

	// order preserved across chunks
	assert.Equal(t, float64(0), fake.batches[0][0][4])
	assert.Equal(t, float64(4), fake.batches[2][0][4])
}

func TestWorkbook_InsertRows_DefaultsToFirstTable(t *testing.T) {
	fake := &fakeWorkbook{tables: `{"value":[{"id":"1","name":"First"},{"id":"2","name":"Second"}]}`}
	srv := httptest.NewServer(fake.handler(t))
	defer srv.Close()

	c, _ := newTestClient(t, srv)
	err := NewWorkbook(c).InsertRows(context.Background(), InsertParams{
		AnyoneEditLink: shareLink,
		TableName:      "Nope",
		Rows:           rows(1),
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"First"}, fake.tableHit)
}

func TestWorkbook_InsertRows_NoTables(t *testing.T) {
	fake := &fakeWorkbook{tables: `{"value":[]}`}
	srv := httptest.NewServer(fake.handler(t))
	defer srv.Close()

	c, _ := newTestClient(t, srv)
	err := NewWorkbook(c).InsertRows(context.Background(), InsertParams{AnyoneEditLink: shareLink, Rows: rows(1)})
	assert.ErrorIs(t, err, ErrNoTables)
}

func TestWorkbook_InsertRows_Guards(t *testing.T) {
	wb := NewWorkbook(NewClient(Config{BaseURL: "http://127.0.0.1:1"}, nil))

	assert.ErrorIs(t, wb.InsertRows(context.Background(), InsertParams{Rows: rows(1)}), ErrLinkRequired)
	assert.NoError(t, wb.InsertRows(context.Background(), InsertParams{AnyoneEditLink: shareLink}))
}

func TestWorkbook_ResolveDriveItem_Unresolved(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"id":"item1"}`)
	}))
	defer srv.Close()

	c, _ := newTestClient(t, srv)
	_, err := NewWorkbook(c).ResolveDriveItem(context.Background(), shareLink)
	assert.ErrorIs(t, err, ErrUnresolvedItem)
}

func TestWorkbook_AddRows_RetriesThrottle(t *testing.T) {
	fake := &fakeWorkbook{tables: `{"value":[{"id":"1","name":"LogsTable"}]}`, throttle: 2}
	srv := httptest.NewServer(fake.handler(t))
	defer srv.Close()

	c, waits := newTestClient(t, srv)
	err := NewWorkbook(c).InsertRows(context.Background(), InsertParams{AnyoneEditLink: shareLink, Rows: rows(3)})
	require.NoError(t, err)

	assert.Len(t, fake.batches, 1)
	assert.Equal(t, []time.Duration{800 * time.Millisecond, 1600 * time.Millisecond}, *waits)
}

func TestWorkbookSink_Append(t *testing.T) {
	fake := &fakeWorkbook{tables: `{"value":[{"id":"1","name":"LogsTable"}]}`}
	srv := httptest.NewServer(fake.handler(t))
	defer srv.Close()

	c, _ := newTestClient(t, srv)
	sink := NewWorkbookSink(NewWorkbook(c), shareLink, "LogsTable", 200)

	ts := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	err := sink.Append(context.Background(), []models.AuditRow{
		{Timestamp: ts, Actor: "ops", Action: "send mail", Recipient: "a@x.com", Message: "sent"},
		{Timestamp: ts, Actor: "ops", Action: "send mail", Recipient: "bad", Message: "invalid recipient"},
	})
	require.NoError(t, err)

	require.Len(t, fake.batches, 1)
	assert.Equal(t, []any{"2026-01-02T03:04:05Z", "ops", "send mail", "a@x.com", "sent"}, fake.batches[0][0])
	assert.Equal(t, "invalid recipient", fake.batches[0][1][4])
}
