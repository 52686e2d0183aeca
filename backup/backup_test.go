package backup

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bienestar/engine"
	"bienestar/models"
	"bienestar/store"
)

var (
	keyA = bytes.Repeat([]byte{1}, 32)
	keyB = bytes.Repeat([]byte{2}, 32)
	now  = time.Date(2026, 10, 14, 9, 30, 0, 0, time.UTC)
)

func seeded(t *testing.T) *store.Session {
	t.Helper()
	st := store.New(store.NewMemoryBackend(), nil)
	sess := st.Unlock(keyA)
	sess.Set(engine.KeyUser, models.UserProfile{Name: "Ana", HasPin: true, Streak: 1})
	sess.Set(engine.KeyStreak, 3)
	sess.Set(engine.WeekCacheKey(3), models.WeekData{"Lunes": {Reflections: "bien"}})
	st.SetPlain(engine.KeyNotifications, "true")
	return sess
}

func TestExportRoundTrip(t *testing.T) {
	src := seeded(t)
	doc := Export(src, now)

	assert.Equal(t, Version, doc.Version)
	assert.Equal(t, now, doc.Timestamp)
	assert.Equal(t, []string{engine.WeekCacheKey(3), engine.KeyStreak, engine.KeyUser}, doc.Keys(),
		"plain keys are not exported")

	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, doc))
	decoded, err := Decode(&buf)
	require.NoError(t, err)
	if diff := cmp.Diff(doc.Keys(), decoded.Keys()); diff != "" {
		t.Errorf("keys mismatch (-want +got):\n%s", diff)
	}

	dst := store.New(store.NewMemoryBackend(), nil).Unlock(keyB)
	res, err := Import(dst, decoded, true)
	require.NoError(t, err)
	assert.Len(t, res.Restored, 3)
	assert.Empty(t, res.Skipped)

	user, ok := store.LoadAs[models.UserProfile](dst, engine.KeyUser)
	require.True(t, ok)
	assert.Equal(t, "Ana", user.Name)
	assert.Equal(t, 3, store.LoadOr(dst, engine.KeyStreak, 0))

	week, ok := store.LoadAs[models.WeekData](dst, engine.WeekCacheKey(3))
	require.True(t, ok)
	assert.Equal(t, "bien", week["Lunes"].Reflections)
}

func TestExportSkipsUnreadableKeys(t *testing.T) {
	sess := seeded(t)
	other := sess.Store().Unlock(keyB)
	doc := Export(other, now)
	assert.Empty(t, doc.Records)
}

func TestImportGuards(t *testing.T) {
	dst := store.New(store.NewMemoryBackend(), nil).Unlock(keyA)
	doc := Export(seeded(t), now)

	_, err := Import(dst, doc, false)
	assert.ErrorIs(t, err, ErrNotConfirmed)

	delete(doc.Records, engine.KeyUser)
	_, err = Import(dst, doc, true)
	assert.ErrorIs(t, err, ErrNoProfile)
	assert.Empty(t, dst.Store().Keys())
}

func TestImportReplacesState(t *testing.T) {
	dst := seeded(t)
	doc := Document{Version: Version, Records: map[string]json.RawMessage{
		engine.KeyUser: json.RawMessage(`{"name":"Luis","hasPin":true}`),
		"unknown_key":  json.RawMessage(`1`),
	}}

	res, err := Import(dst, doc, true)
	require.NoError(t, err)
	assert.Equal(t, []string{engine.KeyUser}, res.Restored)
	assert.Equal(t, []string{"unknown_key"}, res.Skipped)

	assert.False(t, dst.Exists(engine.KeyStreak), "keys absent from the document are removed")
	assert.False(t, dst.Exists(engine.WeekCacheKey(3)))
	assert.True(t, dst.Exists(engine.KeyNotifications), "plain keys are left alone")
}

func TestDecodeUnversioned(t *testing.T) {
	raw := `{"user": {"name": "Ana"}, "streak_count": 2, "timestamp": "2026-10-01T10:00:00Z"}`
	doc, err := Decode(strings.NewReader(raw))
	require.NoError(t, err)

	assert.Equal(t, 0, doc.Version)
	assert.Equal(t, time.Date(2026, 10, 1, 10, 0, 0, 0, time.UTC), doc.Timestamp)
	assert.Equal(t, []string{"streak_count", "user"}, doc.Keys())

	doc, err = Decode(strings.NewReader(`{"user": {}, "timestamp": 1790000000000}`))
	require.NoError(t, err)
	assert.Equal(t, time.UnixMilli(1790000000000).UTC(), doc.Timestamp)
}

func TestDecodeRejects(t *testing.T) {
	_, err := Decode(strings.NewReader(`{"version": 9, "records": {}}`))
	assert.ErrorIs(t, err, ErrUnsupportedVersion)

	_, err = Decode(strings.NewReader(`not json`))
	assert.ErrorIs(t, err, ErrMalformed)
}
