package thinkerbell

import (
	"sync"

	"github.com/tidwall/buntdb"

	"github.com/vesper-home/hub/cmn"
	"github.com/vesper-home/hub/metrics"
	"github.com/vesper-home/hub/taxonomy"
)

// scriptRecord is the row shape of the scripts(id, source, is_enabled,
// owner) table spec.md §6 specifies, realized over buntdb (SPEC_FULL §6:
// an embedded, transactional, B-tree-indexed store) instead of a SQL
// driver.
type scriptRecord struct {
	ID      string `json:"id"`
	Source  string `json:"source"`
	Enabled bool   `json:"is_enabled"`
	Owner   string `json:"owner"`
}

func scriptKey(id string) string { return "script:" + id }

// Manager is the persistent rule store: put/set_enabled/remove/
// remove_all/load/get_running_count (spec.md §4.5), keeping each row's
// is_enabled flag in step with whether an Executor is actually running
// for it.
type Manager struct {
	db        *buntdb.DB
	fe        taxonomy.Frontend
	principal taxonomy.Principal
	metrics   *metrics.Rules

	mu        sync.Mutex
	executors map[string]*Executor
}

// OpenManager opens (creating if absent) the buntdb file at path. Pass
// ":memory:" for an ephemeral store, used in tests.
func OpenManager(path string, fe taxonomy.Frontend, principal taxonomy.Principal, m *metrics.Rules) (*Manager, error) {
	db, err := buntdb.Open(path)
	if err != nil {
		return nil, cmn.NewGenericError("open rule store", err)
	}
	if err := db.CreateIndex("enabled", "script:*", buntdb.IndexJSON("is_enabled")); err != nil && err != buntdb.ErrIndexExists {
		db.Close()
		return nil, cmn.NewGenericError("create rule store index", err)
	}
	return &Manager{
		db:        db,
		fe:        fe,
		principal: principal,
		metrics:   m,
		executors: make(map[string]*Executor),
	}, nil
}

func (mgr *Manager) Close() error { return mgr.db.Close() }

// Put compiles source, starts its executor, and upserts the row with
// enabled=true. Fails if compilation fails or id is already running
// (spec.md §4.5).
func (mgr *Manager) Put(id, source, owner string) error {
	mgr.mu.Lock()
	defer mgr.mu.Unlock()
	if _, running := mgr.executors[id]; running {
		return cmn.NewGenericError("script "+id+" already running", nil)
	}
	script, err := Compile([]byte(source), mgr.fe)
	if err != nil {
		return err
	}
	ex, err := StartExecutor(script, mgr.fe, mgr.principal, id, mgr.metrics)
	if err != nil {
		return err
	}
	rec := scriptRecord{ID: id, Source: source, Enabled: true, Owner: owner}
	if err := mgr.upsert(rec); err != nil {
		ex.Stop()
		return err
	}
	mgr.executors[id] = ex
	if mgr.metrics != nil {
		mgr.metrics.RuleLoaded()
	}
	return nil
}

// SetEnabled transitions a script's running state. Per SPEC_FULL §9 (the
// spec's documented either-way tolerance): the live executor is mutated
// first; the DB row is written second, and on a DB failure the executor
// state wins — it is the authoritative "running" signal.
func (mgr *Manager) SetEnabled(id string, enabled bool) error {
	mgr.mu.Lock()
	defer mgr.mu.Unlock()
	rec, err := mgr.get(id)
	if err != nil {
		return err
	}
	if rec.Enabled == enabled {
		return nil
	}
	if !enabled {
		mgr.stopExecutor(id)
		rec.Enabled = false
		return mgr.upsert(rec)
	}
	script, err := Compile([]byte(rec.Source), mgr.fe)
	if err != nil {
		return err
	}
	ex, err := StartExecutor(script, mgr.fe, mgr.principal, id, mgr.metrics)
	if err != nil {
		return err
	}
	mgr.executors[id] = ex
	if mgr.metrics != nil {
		mgr.metrics.RuleLoaded()
	}
	rec.Enabled = true
	return mgr.upsert(rec)
}

// Remove disables (if running) then deletes the row, best-effort.
func (mgr *Manager) Remove(id string) error {
	mgr.mu.Lock()
	defer mgr.mu.Unlock()
	mgr.stopExecutor(id)
	err := mgr.db.Update(func(tx *buntdb.Tx) error {
		_, err := tx.Delete(scriptKey(id))
		if err == buntdb.ErrNotFound {
			return nil
		}
		return err
	})
	if err != nil {
		return cmn.NewGenericError("delete rule row", err)
	}
	return nil
}

// RemoveAll attempts to stop every running executor, collecting per-id
// errors, and always truncates the table regardless of stop outcomes
// (spec.md §4.5).
func (mgr *Manager) RemoveAll() map[string]error {
	mgr.mu.Lock()
	defer mgr.mu.Unlock()
	errs := make(map[string]error)
	for id := range mgr.executors {
		mgr.stopExecutor(id)
	}
	if err := mgr.db.Update(func(tx *buntdb.Tx) error {
		return tx.DeleteAll()
	}); err != nil {
		errs["*"] = cmn.NewGenericError("truncate rule store", err)
	}
	return errs
}

// Load enumerates every row at startup, compiling and starting an
// executor for each enabled one; a failure on one row is recorded in the
// result map and does not block the rest (spec.md §4.5).
func (mgr *Manager) Load() map[string]error {
	mgr.mu.Lock()
	defer mgr.mu.Unlock()
	var recs []scriptRecord
	mgr.db.View(func(tx *buntdb.Tx) error {
		return tx.Ascend("enabled", func(_, value string) bool {
			var rec scriptRecord
			if err := jsonAPI.UnmarshalFromString(value, &rec); err == nil {
				recs = append(recs, rec)
			}
			return true
		})
	})
	results := make(map[string]error, len(recs))
	for _, rec := range recs {
		if !rec.Enabled {
			continue
		}
		script, err := Compile([]byte(rec.Source), mgr.fe)
		if err != nil {
			results[rec.ID] = err
			continue
		}
		ex, err := StartExecutor(script, mgr.fe, mgr.principal, rec.ID, mgr.metrics)
		if err != nil {
			results[rec.ID] = err
			continue
		}
		mgr.executors[rec.ID] = ex
		if mgr.metrics != nil {
			mgr.metrics.RuleLoaded()
		}
		results[rec.ID] = nil
	}
	return results
}

// GetRunningCount is the observable live-executor count spec.md §4.5
// names explicitly.
func (mgr *Manager) GetRunningCount() int {
	mgr.mu.Lock()
	defer mgr.mu.Unlock()
	return len(mgr.executors)
}

func (mgr *Manager) stopExecutor(id string) {
	ex, ok := mgr.executors[id]
	if !ok {
		return
	}
	ex.Stop()
	delete(mgr.executors, id)
	if mgr.metrics != nil {
		mgr.metrics.RuleUnloaded()
	}
}

func (mgr *Manager) get(id string) (scriptRecord, error) {
	var rec scriptRecord
	err := mgr.db.View(func(tx *buntdb.Tx) error {
		val, err := tx.Get(scriptKey(id))
		if err != nil {
			return err
		}
		return jsonAPI.UnmarshalFromString(val, &rec)
	})
	if err == buntdb.ErrNotFound {
		return rec, cmn.NewGenericError("no such script "+id, nil)
	}
	if err != nil {
		return rec, cmn.NewGenericError("read rule store", err)
	}
	return rec, nil
}

func (mgr *Manager) upsert(rec scriptRecord) error {
	b, err := jsonAPI.Marshal(rec)
	if err != nil {
		return cmn.NewSerializeError("%v", err)
	}
	if err := mgr.db.Update(func(tx *buntdb.Tx) error {
		_, _, err := tx.Set(scriptKey(rec.ID), string(b), nil)
		return err
	}); err != nil {
		return cmn.NewGenericError("write rule row", err)
	}
	return nil
}
