// Package backup exports and restores the decrypted state of a profile.
//
// A document holds the decrypted value of every persisted secret-gated key,
// namespaced by key name:
//
//	{"version": 1, "timestamp": "...", "records": {"user": {...}, ...}}
//
// Documents without a version field are read as the unversioned layout,
// where records sit at the top level next to "timestamp".
package backup

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"time"

	"bienestar/engine"
	"bienestar/store"
)

const Version = 1

var (
	ErrNotConfirmed       = errors.New("backup: import requires confirmation")
	ErrUnsupportedVersion = errors.New("backup: unsupported document version")
	ErrNoProfile          = errors.New("backup: document has no user record")
	ErrMalformed          = errors.New("backup: malformed document")
)

type Document struct {
	Version   int                        `json:"version"`
	Timestamp time.Time                  `json:"timestamp"`
	Records   map[string]json.RawMessage `json:"records"`
}

// Keys returns the record keys in sorted order.
func (d Document) Keys() []string {
	keys := make([]string, 0, len(d.Records))
	for k := range d.Records {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Restorable reports whether key belongs in a backup.
func Restorable(key string) bool {
	if engine.IsWeekCacheKey(key) {
		return true
	}
	for _, k := range engine.EncryptedKeys {
		if k == key {
			return true
		}
	}
	return false
}

// Export collects every key readable under the session secret.
func Export(sess *store.Session, now time.Time) Document {
	doc := Document{Version: Version, Timestamp: now.UTC(), Records: map[string]json.RawMessage{}}
	for _, key := range sess.Store().Keys() {
		if !Restorable(key) {
			continue
		}
		if raw, ok := sess.Get(key); ok {
			doc.Records[key] = raw
		}
	}
	return doc
}

func Encode(w io.Writer, doc Document) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}

// Decode reads a versioned or unversioned document.
func Decode(r io.Reader) (Document, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return Document{}, err
	}
	var top map[string]json.RawMessage
	if err := json.Unmarshal(data, &top); err != nil {
		return Document{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	if _, versioned := top["version"]; versioned {
		var doc Document
		if err := json.Unmarshal(data, &doc); err != nil {
			return Document{}, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		if doc.Version != Version {
			return Document{}, fmt.Errorf("%w: %d", ErrUnsupportedVersion, doc.Version)
		}
		if doc.Records == nil {
			doc.Records = map[string]json.RawMessage{}
		}
		return doc, nil
	}

	doc := Document{Records: map[string]json.RawMessage{}}
	for k, v := range top {
		if k == "timestamp" {
			doc.Timestamp = parseTimestamp(v)
			continue
		}
		doc.Records[k] = v
	}
	return doc, nil
}

// parseTimestamp accepts RFC 3339 strings and Unix milliseconds.
func parseTimestamp(raw json.RawMessage) time.Time {
	var s string
	if json.Unmarshal(raw, &s) == nil {
		if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
			return t
		}
		if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
			return time.UnixMilli(ms).UTC()
		}
		return time.Time{}
	}
	var ms int64
	if json.Unmarshal(raw, &ms) == nil {
		return time.UnixMilli(ms).UTC()
	}
	return time.Time{}
}

// Result summarizes an import.
type Result struct {
	Restored []string `json:"restored"`
	Skipped  []string `json:"skipped"`
}

// Import writes every restorable record under the session secret. Keys a
// backup may hold but doc lacks are removed, so the profile matches doc.
func Import(sess *store.Session, doc Document, confirm bool) (Result, error) {
	if !confirm {
		return Result{}, ErrNotConfirmed
	}
	if _, ok := doc.Records[engine.KeyUser]; !ok {
		return Result{}, ErrNoProfile
	}

	var res Result
	err := sess.Store().Atomic(func() error {
		for _, key := range sess.Store().Keys() {
			if _, keep := doc.Records[key]; !keep && Restorable(key) {
				sess.Remove(key)
			}
		}
		for _, key := range doc.Keys() {
			raw := doc.Records[key]
			if !Restorable(key) || !json.Valid(raw) || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
				res.Skipped = append(res.Skipped, key)
				continue
			}
			sess.Set(key, raw)
			res.Restored = append(res.Restored, key)
		}
		return nil
	})
	return res, err
}
