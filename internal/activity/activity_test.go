package activity

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"librarydesk/internal/store/storetest"
)

func TestAppendAndList(t *testing.T) {
	ctx := context.Background()
	log := NewLog(storetest.SQLite(t), slog.Default())
	fixed := time.Date(2026, 10, 17, 9, 30, 0, 0, time.UTC)
	log.now = func() time.Time { return fixed }

	require.NoError(t, log.Append(ctx, Entry{Entity: "book", EntityID: 1, Action: "created", Detail: map[string]any{"title": "Dune"}}))
	log.Record(ctx, Entry{Entity: "book", EntityID: 1, Action: "borrowed"})

	entries, err := log.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	assert.Equal(t, "borrowed", entries[0].Action)
	assert.Nil(t, entries[0].Detail)
	assert.Equal(t, "created", entries[1].Action)
	assert.Equal(t, "Dune", entries[1].Detail["title"])
	assert.True(t, fixed.Equal(entries[1].CreatedAt))

	entries, err = log.List(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestRecordSwallowsFailures(t *testing.T) {
	db := storetest.SQLite(t)
	var buf bytes.Buffer
	log := NewLog(db, slog.New(slog.NewTextHandler(&buf, nil)))
	require.NoError(t, db.Close())

	log.Record(context.Background(), Entry{Entity: "book", EntityID: 9, Action: "deleted"})
	assert.Contains(t, buf.String(), "failed to record activity")
}

func TestHandlerList(t *testing.T) {
	log := NewLog(storetest.SQLite(t), slog.Default())
	log.Record(context.Background(), Entry{Entity: "member", EntityID: 4, Action: "created"})

	r := chi.NewRouter()
	NewHandler(log, slog.Default()).Routes(r)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/activity?limit=10", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var got []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got, 1)
	assert.Equal(t, "member", got[0]["entity"])
}
