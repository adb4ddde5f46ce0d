// Package store implements the per-scope durable item storage described in
// SPEC_FULL.md §4.1: a journal-first write path, one JSON file per item, a
// catalog projection, and snapshot/state-ok integrity markers. The atomic
// tmp-then-rename discipline and lock-guarded catalog writes follow the
// teacher's bbolt-transaction store (pkg/storage) adapted to a plain-file
// layout, since a single embedded database file does not suit three
// independently-committable, user-browsable scope directories.
package store

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"sync/atomic"
	"time"

	"github.com/llm-memory/engine/pkg/checksum"
	"github.com/llm-memory/engine/pkg/lock"
	"github.com/llm-memory/engine/pkg/log"
	"github.com/llm-memory/engine/pkg/memerr"
	"github.com/llm-memory/engine/pkg/types"
)

const (
	DefaultCompactEvery = 500

	lockCatalog = "catalog"
	lockJournal = "journal"
)

// Store owns one scope directory (global, local, or committed) and is the
// sole writer of its items/, catalog.json, journal.ndjson, snapshot.json
// and state.ok files.
type Store struct {
	Scope types.Scope
	Dir   string

	itemsDir string
	tmpDir   string
	locksDir string
	indexDir string

	journalPath  string
	catalogPath  string
	snapshotPath string
	stateOkPath  string

	compactEvery int
	sinceCompact int64 // atomic

	// OnCompactionDue is invoked (non-blocking, by the caller's scheduler)
	// once the append counter reaches compactEvery. Nil is a valid no-op.
	OnCompactionDue func(*Store)
}

// Open ensures the scope directory layout exists and returns a Store bound
// to it. It does not perform recovery; call Recover separately so the
// manager can fan recovery out across scopes concurrently.
func Open(scopeDir string, scope types.Scope) (*Store, error) {
	s := &Store{
		Scope:        scope,
		Dir:          scopeDir,
		itemsDir:     filepath.Join(scopeDir, "items"),
		tmpDir:       filepath.Join(scopeDir, "tmp"),
		locksDir:     filepath.Join(scopeDir, "locks"),
		indexDir:     filepath.Join(scopeDir, "index"),
		journalPath:  filepath.Join(scopeDir, "journal.ndjson"),
		catalogPath:  filepath.Join(scopeDir, "catalog.json"),
		snapshotPath: filepath.Join(scopeDir, "snapshot.json"),
		stateOkPath:  filepath.Join(scopeDir, "state.ok"),
		compactEvery: DefaultCompactEvery,
	}
	for _, d := range []string{s.itemsDir, s.tmpDir, s.locksDir, s.indexDir} {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return nil, memerr.Wrap(memerr.IO, err, "create scope dir %s", d)
		}
	}
	return s, nil
}

// IndexDir returns the directory holding this scope's index/*.json files,
// used by pkg/index and pkg/vectorindex and by the checksum computation.
func (s *Store) IndexDir() string { return s.indexDir }

func (s *Store) writeAtomic(path string, data []byte) error {
	tmp := filepath.Join(s.tmpDir, filepath.Base(path)+".tmp")
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return memerr.Wrap(memerr.IO, err, "write temp file %s", tmp)
	}
	if err := os.Rename(tmp, path); err != nil {
		return memerr.Wrap(memerr.IO, err, "rename %s to %s", tmp, path)
	}
	return nil
}

// WriteItem appends an upsert journal entry, writes the item file
// atomically, and refreshes the item's catalog entry, in that order. The
// journal append is the durability commit point: if the process crashes
// after it but before the item file or catalog are updated, replay
// reconstructs both.
func (s *Store) WriteItem(item *types.MemoryItem) error {
	if err := s.appendJournal(types.JournalEntry{
		Op:     types.JournalOpUpsert,
		Item:   item,
		TS:     time.Now().UTC(),
		Actor:  "manager",
	}); err != nil {
		return err
	}
	if err := s.writeItemFile(item); err != nil {
		return err
	}
	if err := s.upsertCatalogEntry(types.Summarize(item)); err != nil {
		return err
	}
	s.noteAppend()
	return nil
}

func (s *Store) writeItemFile(item *types.MemoryItem) error {
	data, err := json.MarshalIndent(item, "", "  ")
	if err != nil {
		return memerr.Wrap(memerr.IO, err, "marshal item %s", item.ID)
	}
	return s.writeAtomic(s.itemPath(item.ID), data)
}

func (s *Store) itemPath(id string) string {
	return filepath.Join(s.itemsDir, id+".json")
}

// ReadItem returns the parsed item, or (nil, nil) if it doesn't exist. The
// catalog is never consulted; the item file is the source of truth for
// content.
func (s *Store) ReadItem(id string) (*types.MemoryItem, error) {
	data, err := os.ReadFile(s.itemPath(id))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, memerr.Wrap(memerr.IO, err, "read item %s", id)
	}
	var item types.MemoryItem
	if err := json.Unmarshal(data, &item); err != nil {
		return nil, memerr.Wrap(memerr.Corrupt, err, "parse item %s", id)
	}
	return &item, nil
}

// DeleteItem appends a delete journal entry, removes the item file if
// present, and drops its catalog entry. Returns whether the file existed.
func (s *Store) DeleteItem(id string) (bool, error) {
	if err := s.appendJournal(types.JournalEntry{
		Op:    types.JournalOpDelete,
		ID:    id,
		TS:    time.Now().UTC(),
		Actor: "manager",
	}); err != nil {
		return false, err
	}
	err := os.Remove(s.itemPath(id))
	existed := err == nil
	if err != nil && !os.IsNotExist(err) {
		return false, memerr.Wrap(memerr.IO, err, "remove item %s", id)
	}
	if err := s.deleteCatalogEntry(id); err != nil {
		return existed, err
	}
	s.noteAppend()
	return existed, nil
}

func (s *Store) noteAppend() {
	n := atomic.AddInt64(&s.sinceCompact, 1)
	if int(n) >= s.compactEvery {
		atomic.StoreInt64(&s.sinceCompact, 0)
		if s.OnCompactionDue != nil {
			s.OnCompactionDue(s)
		}
	}
}

// ListItems enumerates items/ and parses every file. Used by rebuild and
// by full replay fallbacks; callers that only need summaries should prefer
// ReadCatalog.
func (s *Store) ListItems() ([]*types.MemoryItem, error) {
	entries, err := os.ReadDir(s.itemsDir)
	if err != nil {
		return nil, memerr.Wrap(memerr.IO, err, "read items dir %s", s.itemsDir)
	}
	items := make([]*types.MemoryItem, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		id := e.Name()
		if filepath.Ext(id) != ".json" {
			continue
		}
		id = id[:len(id)-len(".json")]
		item, err := s.ReadItem(id)
		if err != nil {
			log.WithScope(string(s.Scope)).Warn().Err(err).Str("item_id", id).Msg("skipping unreadable item during listItems")
			continue
		}
		if item != nil {
			items = append(items, item)
		}
	}
	return items, nil
}

// ReadCatalog parses catalog.json, returning an empty map on an absent or
// corrupt file rather than erroring — the catalog is a projection that
// RebuildCatalog can always regenerate.
func (s *Store) ReadCatalog() (map[string]types.MemoryItemSummary, error) {
	data, err := os.ReadFile(s.catalogPath)
	if err != nil {
		return map[string]types.MemoryItemSummary{}, nil
	}
	var catalog map[string]types.MemoryItemSummary
	if err := json.Unmarshal(data, &catalog); err != nil {
		log.WithScope(string(s.Scope)).Warn().Err(err).Msg("catalog.json corrupt, treating as empty")
		return map[string]types.MemoryItemSummary{}, nil
	}
	return catalog, nil
}

func (s *Store) writeCatalog(catalog map[string]types.MemoryItemSummary) error {
	data, err := json.Marshal(catalog)
	if err != nil {
		return memerr.Wrap(memerr.IO, err, "marshal catalog")
	}
	return s.writeAtomic(s.catalogPath, data)
}

func (s *Store) upsertCatalogEntry(summary types.MemoryItemSummary) error {
	return lock.With(s.locksDir, lockCatalog, func() error {
		catalog, err := s.ReadCatalog()
		if err != nil {
			return err
		}
		catalog[summary.ID] = summary
		return s.writeCatalog(catalog)
	})
}

func (s *Store) deleteCatalogEntry(id string) error {
	return lock.With(s.locksDir, lockCatalog, func() error {
		catalog, err := s.ReadCatalog()
		if err != nil {
			return err
		}
		delete(catalog, id)
		return s.writeCatalog(catalog)
	})
}

// RebuildCatalog scans every item file and rewrites catalog.json from
// scratch under the catalog lock.
func (s *Store) RebuildCatalog() error {
	items, err := s.ListItems()
	if err != nil {
		return err
	}
	catalog := make(map[string]types.MemoryItemSummary, len(items))
	for _, item := range items {
		catalog[item.ID] = types.Summarize(item)
	}
	return lock.With(s.locksDir, lockCatalog, func() error {
		return s.writeCatalog(catalog)
	})
}

func (s *Store) appendJournal(entry types.JournalEntry) error {
	return lock.With(s.locksDir, lockJournal, func() error {
		f, err := os.OpenFile(s.journalPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return memerr.Wrap(memerr.IO, err, "open journal %s", s.journalPath)
		}
		defer f.Close()
		data, err := json.Marshal(entry)
		if err != nil {
			return memerr.Wrap(memerr.IO, err, "marshal journal entry")
		}
		if _, err := f.Write(append(data, '\n')); err != nil {
			return memerr.Wrap(memerr.IO, err, "append journal entry")
		}
		return nil
	})
}

// ReadJournal returns up to limit entries from the start of the journal.
// limit <= 0 means unlimited.
func (s *Store) ReadJournal(limit int) ([]types.JournalEntry, error) {
	entries, err := s.readAllJournal()
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

// ReadJournalSince returns entries with ts strictly greater than since.
func (s *Store) ReadJournalSince(since time.Time) ([]types.JournalEntry, error) {
	entries, err := s.readAllJournal()
	if err != nil {
		return nil, err
	}
	out := entries[:0:0]
	for _, e := range entries {
		if e.TS.After(since) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *Store) readAllJournal() ([]types.JournalEntry, error) {
	f, err := os.Open(s.journalPath)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, memerr.Wrap(memerr.IO, err, "open journal %s", s.journalPath)
	}
	defer f.Close()

	var entries []types.JournalEntry
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 8*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var entry types.JournalEntry
		if err := json.Unmarshal(line, &entry); err != nil {
			log.WithScope(string(s.Scope)).Warn().Err(err).Msg("skipping malformed journal line")
			continue
		}
		entries = append(entries, entry)
	}
	if err := scanner.Err(); err != nil {
		return nil, memerr.Wrap(memerr.IO, err, "scan journal %s", s.journalPath)
	}
	return entries, nil
}

// ReplaceJournal atomically rewrites journal.ndjson with exactly the given
// entries, used by Compact to collapse history into one upsert per live id.
func (s *Store) ReplaceJournal(entries []types.JournalEntry) error {
	return lock.With(s.locksDir, lockJournal, func() error {
		var buf []byte
		for _, e := range entries {
			data, err := json.Marshal(e)
			if err != nil {
				return memerr.Wrap(memerr.IO, err, "marshal journal entry")
			}
			buf = append(buf, data...)
			buf = append(buf, '\n')
		}
		return s.writeAtomic(s.journalPath, buf)
	})
}

// WriteSnapshotMeta atomically writes snapshot.json.
func (s *Store) WriteSnapshotMeta(meta types.SnapshotMeta) error {
	data, err := json.Marshal(meta)
	if err != nil {
		return memerr.Wrap(memerr.IO, err, "marshal snapshot meta")
	}
	return s.writeAtomic(s.snapshotPath, data)
}

// ReadSnapshotMeta reads snapshot.json. ok is false if absent or corrupt.
func (s *Store) ReadSnapshotMeta() (meta types.SnapshotMeta, ok bool, err error) {
	data, rerr := os.ReadFile(s.snapshotPath)
	if os.IsNotExist(rerr) {
		return types.SnapshotMeta{}, false, nil
	}
	if rerr != nil {
		return types.SnapshotMeta{}, false, memerr.Wrap(memerr.IO, rerr, "read snapshot meta")
	}
	if err := json.Unmarshal(data, &meta); err != nil {
		return types.SnapshotMeta{}, false, nil
	}
	return meta, true, nil
}

// WriteStateOk atomically writes state.ok.
func (s *Store) WriteStateOk(st types.StateOk) error {
	data, err := json.Marshal(st)
	if err != nil {
		return memerr.Wrap(memerr.IO, err, "marshal state ok")
	}
	return s.writeAtomic(s.stateOkPath, data)
}

// ReadStateOk reads state.ok. ok is false if absent or corrupt.
func (s *Store) ReadStateOk() (st types.StateOk, ok bool, err error) {
	data, rerr := os.ReadFile(s.stateOkPath)
	if os.IsNotExist(rerr) {
		return types.StateOk{}, false, nil
	}
	if rerr != nil {
		return types.StateOk{}, false, memerr.Wrap(memerr.IO, rerr, "read state ok")
	}
	if err := json.Unmarshal(data, &st); err != nil {
		return types.StateOk{}, false, nil
	}
	return st, true, nil
}

// ComputeChecksum digests catalog.json and the four index/*.json files in
// a fixed order, matching SPEC_FULL.md §4.1. A missing index file still
// contributes its name, so a partially deleted index/ directory yields a
// digest that will not match a previously recorded one.
func (s *Store) ComputeChecksum() (string, error) {
	d := checksum.New()

	catalogData, err := os.ReadFile(s.catalogPath)
	if err != nil && !os.IsNotExist(err) {
		return "", memerr.Wrap(memerr.IO, err, "read catalog for checksum")
	}
	d.WritePart("catalog", catalogData)

	for _, part := range []string{"inverted", "lengths", "meta", "vectors"} {
		data, err := os.ReadFile(filepath.Join(s.indexDir, part+".json"))
		if err != nil && !os.IsNotExist(err) {
			return "", memerr.Wrap(memerr.IO, err, "read index part %s for checksum", part)
		}
		d.WritePart(part, data)
	}
	return d.Sum(), nil
}

// Compact materializes current state (one upsert per live item) into a
// fresh journal, then writes a new snapshot and state-ok marker. Delete
// tombstones are dropped since every remaining id is, by definition, live.
func (s *Store) Compact() error {
	items, err := s.ListItems()
	if err != nil {
		return err
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })

	now := time.Now().UTC()
	entries := make([]types.JournalEntry, 0, len(items))
	for _, item := range items {
		entries = append(entries, types.JournalEntry{
			Op:    types.JournalOpUpsert,
			Item:  item,
			TS:    now,
			Actor: "compact",
		})
	}
	if err := s.ReplaceJournal(entries); err != nil {
		return err
	}
	if err := s.RebuildCatalog(); err != nil {
		return err
	}
	sum, err := s.ComputeChecksum()
	if err != nil {
		return err
	}
	if err := s.WriteSnapshotMeta(types.SnapshotMeta{LastTS: now, Checksum: sum}); err != nil {
		return err
	}
	return s.WriteStateOk(types.StateOk{TS: now, Checksum: sum})
}

// Recover performs startup crash recovery: validate the recorded checksum
// against the current on-disk state, replay the journal tail (or the
// whole journal, on mismatch or absent snapshot), then refresh the
// snapshot and state-ok markers.
func (s *Store) Recover() error {
	scopeLog := log.WithScope(string(s.Scope))

	snap, hasSnap, err := s.ReadSnapshotMeta()
	if err != nil {
		return err
	}

	fullReplay := !hasSnap
	if hasSnap && snap.Checksum != "" {
		actual, err := s.ComputeChecksum()
		if err != nil {
			return err
		}
		if actual != snap.Checksum {
			scopeLog.Warn().Msg("checksum mismatch on recovery, forcing full replay")
			fullReplay = true
		}
	}

	var entries []types.JournalEntry
	if fullReplay {
		entries, err = s.ReadJournal(0)
	} else {
		entries, err = s.ReadJournalSince(snap.LastTS)
	}
	if err != nil {
		return err
	}

	if err := s.replay(entries); err != nil {
		return err
	}

	lastTS := time.Now().UTC()
	if hasSnap && !fullReplay {
		lastTS = snap.LastTS
	}
	for _, e := range entries {
		if e.TS.After(lastTS) {
			lastTS = e.TS
		}
	}

	sum, err := s.ComputeChecksum()
	if err != nil {
		return err
	}
	if err := s.WriteSnapshotMeta(types.SnapshotMeta{LastTS: lastTS, Checksum: sum}); err != nil {
		return err
	}
	return s.WriteStateOk(types.StateOk{TS: time.Now().UTC(), Checksum: sum})
}

// replay applies journal entries in order: upsert writes the item file if
// missing and refreshes its catalog entry; delete removes both.
func (s *Store) replay(entries []types.JournalEntry) error {
	for _, e := range entries {
		switch e.Op {
		case types.JournalOpUpsert:
			if e.Item == nil {
				continue
			}
			if _, err := os.Stat(s.itemPath(e.Item.ID)); os.IsNotExist(err) {
				if err := s.writeItemFile(e.Item); err != nil {
					return err
				}
			}
			if err := s.upsertCatalogEntry(types.Summarize(e.Item)); err != nil {
				return err
			}
		case types.JournalOpDelete:
			if err := os.Remove(s.itemPath(e.ID)); err != nil && !os.IsNotExist(err) {
				return memerr.Wrap(memerr.IO, err, "remove item %s during replay", e.ID)
			}
			if err := s.deleteCatalogEntry(e.ID); err != nil {
				return err
			}
		}
	}
	return nil
}
