package service

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"export-import-service/internal/models"
)

type fakeCache struct {
	mu          sync.Mutex
	entries     map[string]fakeEntry
	versions    map[string]int64
	invalidated []string
	// beforeSet runs ahead of every SetDashboard, outside the lock.
	beforeSet func(identity string)
}

type fakeEntry struct {
	version int64
	dash    *models.Dashboard
}

func newFakeCache() *fakeCache {
	return &fakeCache{entries: make(map[string]fakeEntry), versions: make(map[string]int64)}
}

func (c *fakeCache) GetDashboard(_ context.Context, identity string) (*models.Dashboard, int64, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	version := c.versions[identity]
	e, ok := c.entries[identity]
	if !ok || e.version != version {
		return nil, version, false, nil
	}
	return e.dash, version, true, nil
}

func (c *fakeCache) SetDashboard(_ context.Context, identity string, version int64, dash *models.Dashboard, _ time.Duration) error {
	if c.beforeSet != nil {
		c.beforeSet(identity)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[identity] = fakeEntry{version: version, dash: dash}
	return nil
}

func (c *fakeCache) InvalidateDashboard(_ context.Context, identity string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.versions[identity]++
	delete(c.entries, identity)
	c.invalidated = append(c.invalidated, identity)
	return nil
}

// fakeIdempotency mimics the Redis claim/receipt keys, including expiry
// against a clock the test advances.
type fakeIdempotency struct {
	mu         sync.Mutex
	values     map[string]string
	expires    map[string]time.Time
	claimTTLs  []time.Duration
	clock      time.Time
	storeErr   error
	storeCalls int
}

func newFakeIdempotency() *fakeIdempotency {
	return &fakeIdempotency{
		values:  make(map[string]string),
		expires: make(map[string]time.Time),
		clock:   time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func (f *fakeIdempotency) advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.clock = f.clock.Add(d)
}

// lookup drops an expired key. Caller holds mu.
func (f *fakeIdempotency) lookup(key string) (string, bool) {
	if exp, ok := f.expires[key]; ok && !f.clock.Before(exp) {
		delete(f.values, key)
		delete(f.expires, key)
	}
	v, ok := f.values[key]
	return v, ok
}

func (f *fakeIdempotency) set(key, value string, ttl time.Duration) {
	f.values[key] = value
	if ttl > 0 {
		f.expires[key] = f.clock.Add(ttl)
	} else {
		delete(f.expires, key)
	}
}

func (f *fakeIdempotency) ClaimIdempotencyKey(_ context.Context, key string, ttl time.Duration) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.lookup(key); ok {
		return false, nil
	}
	f.claimTTLs = append(f.claimTTLs, ttl)
	f.set(key, "pending", ttl)
	return true, nil
}

func (f *fakeIdempotency) GetImportReceipt(_ context.Context, key string) (*models.ImportReceipt, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.lookup(key)
	if !ok {
		return nil, false, nil
	}
	if v == "pending" {
		return nil, true, nil
	}
	var r models.ImportReceipt
	if err := json.Unmarshal([]byte(v), &r); err != nil {
		return nil, false, err
	}
	return &r, false, nil
}

func (f *fakeIdempotency) StoreImportReceipt(_ context.Context, key string, receipt *models.ImportReceipt, ttl time.Duration) error {
	raw, err := json.Marshal(receipt)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.storeCalls++
	if f.storeErr != nil {
		return f.storeErr
	}
	f.set(key, string(raw), ttl)
	return nil
}

func (f *fakeIdempotency) ReleaseIdempotencyKey(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.values, key)
	delete(f.expires, key)
	return nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []string
}

func (p *recordingPublisher) add(t string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, t)
}

func (p *recordingPublisher) PublishImportRecorded(_ context.Context, e *models.ImportRecordedEvent) error {
	p.add(e.EventType)
	return nil
}

func (p *recordingPublisher) PublishImportDeleted(_ context.Context, e *models.ImportDeletedEvent) error {
	p.add(e.EventType)
	return nil
}

func (p *recordingPublisher) PublishExportChanged(_ context.Context, e *models.ExportChangedEvent) error {
	p.add(e.EventType)
	return nil
}

// failingLedger fails every call with err.
type failingLedger struct {
	err error
}

func (f failingLedger) RecordImport(context.Context, *models.ImportRecord) error { return f.err }

func (f failingLedger) ListImports(context.Context, string, int) ([]models.ImportRecord, error) {
	return nil, f.err
}

func (f failingLedger) CountImports(context.Context, string) (int64, error) { return 0, f.err }

func (f failingLedger) DeleteImport(context.Context, string) (*models.ImportRecord, error) {
	return nil, f.err
}
