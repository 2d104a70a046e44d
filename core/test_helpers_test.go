package core

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

type stubLogger struct{}

func (stubLogger) Trace(string, ...any) {}
func (stubLogger) Debug(string, ...any) {}
func (stubLogger) Info(string, ...any)  {}
func (stubLogger) Warn(string, ...any)  {}
func (stubLogger) Error(string, ...any) {}
func (stubLogger) Fatal(string, ...any) {}
func (s stubLogger) WithContext(context.Context) Logger {
	return s
}

type stubLoggerProvider struct {
	logger Logger
}

func (p stubLoggerProvider) GetLogger(string) Logger {
	return p.logger
}

type capturedCounter struct {
	name  string
	value int64
	tags  map[string]string
}

type capturedHistogram struct {
	name  string
	value float64
	tags  map[string]string
}

type captureMetricsRecorder struct {
	mu         sync.Mutex
	counters   []capturedCounter
	histograms []capturedHistogram
}

func (m *captureMetricsRecorder) IncCounter(_ context.Context, name string, value int64, tags map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counters = append(m.counters, capturedCounter{name: name, value: value, tags: cloneTags(tags)})
}

func (m *captureMetricsRecorder) ObserveHistogram(_ context.Context, name string, value float64, tags map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.histograms = append(m.histograms, capturedHistogram{name: name, value: value, tags: cloneTags(tags)})
}

func (m *captureMetricsRecorder) hasCounter(name string, status string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, counter := range m.counters {
		if counter.name == name && counter.tags["status"] == status {
			return true
		}
	}
	return false
}

type capturedLog struct {
	level  string
	msg    string
	fields map[string]any
}

type captureLogger struct {
	mu       *sync.Mutex
	records  *[]capturedLog
	defaults map[string]any
}

func newCaptureLogger() *captureLogger {
	records := []capturedLog{}
	return &captureLogger{mu: &sync.Mutex{}, records: &records, defaults: map[string]any{}}
}

func (l *captureLogger) WithFields(fields map[string]any) Logger {
	merged := cloneFields(l.defaults)
	for key, value := range fields {
		merged[key] = value
	}
	return &captureLogger{mu: l.mu, records: l.records, defaults: merged}
}

func (l *captureLogger) Trace(msg string, args ...any) { l.record("trace", msg, args...) }
func (l *captureLogger) Debug(msg string, args ...any) { l.record("debug", msg, args...) }
func (l *captureLogger) Info(msg string, args ...any)  { l.record("info", msg, args...) }
func (l *captureLogger) Warn(msg string, args ...any)  { l.record("warn", msg, args...) }
func (l *captureLogger) Error(msg string, args ...any) { l.record("error", msg, args...) }
func (l *captureLogger) Fatal(msg string, args ...any) { l.record("fatal", msg, args...) }

func (l *captureLogger) WithContext(context.Context) Logger {
	return &captureLogger{mu: l.mu, records: l.records, defaults: cloneFields(l.defaults)}
}

func (l *captureLogger) record(level string, msg string, args ...any) {
	fields := cloneFields(l.defaults)
	for index := 0; index+1 < len(args); index += 2 {
		key, ok := args[index].(string)
		if !ok {
			continue
		}
		fields[key] = args[index+1]
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	*l.records = append(*l.records, capturedLog{level: level, msg: msg, fields: fields})
}

func (l *captureLogger) snapshot() []capturedLog {
	l.mu.Lock()
	defer l.mu.Unlock()
	items := *l.records
	out := make([]capturedLog, len(items))
	copy(out, items)
	return out
}

func (l *captureLogger) find(level string, msg string) (capturedLog, bool) {
	for _, record := range l.snapshot() {
		if record.level == level && record.msg == msg {
			return record, true
		}
	}
	return capturedLog{}, false
}

// stubExchanger issues "tok-<location>-<n>" tokens and fails for the
// locations listed in failFor.
type stubExchanger struct {
	mu       sync.Mutex
	calls    []LocationTokenRequest
	failFor  map[string]error
	issued   atomic.Int64
	panicFor string
}

func (e *stubExchanger) ExchangeLocationToken(_ context.Context, req LocationTokenRequest) (Credential, error) {
	e.mu.Lock()
	e.calls = append(e.calls, req)
	failure := e.failFor[req.LocationID]
	e.mu.Unlock()
	if e.panicFor != "" && req.LocationID == e.panicFor {
		panic("exchanger exploded")
	}
	if failure != nil {
		return Credential{}, failure
	}
	n := e.issued.Add(1)
	return Credential{
		AccessToken: fmt.Sprintf("tok-%s-%d", req.LocationID, n),
		TokenType:   "Bearer",
	}, nil
}

func (e *stubExchanger) callCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.calls)
}

// recordingStore wraps a MemoryCredentialStore and records every call.
type recordingStore struct {
	*MemoryCredentialStore
	mu       sync.Mutex
	gets     []string
	sets     []string
	deletes  []string
	setErr   error
	getErr   error
	deleteFn func(string) error
}

func newRecordingStore() *recordingStore {
	return &recordingStore{MemoryCredentialStore: NewMemoryCredentialStore()}
}

func (s *recordingStore) GetAccessToken(ctx context.Context, tenantID string) (Credential, bool, error) {
	s.mu.Lock()
	s.gets = append(s.gets, tenantID)
	err := s.getErr
	s.mu.Unlock()
	if err != nil {
		return Credential{}, false, err
	}
	return s.MemoryCredentialStore.GetAccessToken(ctx, tenantID)
}

func (s *recordingStore) SetSession(ctx context.Context, tenantID string, credential Credential) error {
	s.mu.Lock()
	s.sets = append(s.sets, tenantID)
	err := s.setErr
	s.mu.Unlock()
	if err != nil {
		return err
	}
	return s.MemoryCredentialStore.SetSession(ctx, tenantID, credential)
}

func (s *recordingStore) DeleteSession(ctx context.Context, tenantID string) error {
	s.mu.Lock()
	s.deletes = append(s.deletes, tenantID)
	fn := s.deleteFn
	s.mu.Unlock()
	if fn != nil {
		return fn(tenantID)
	}
	return s.MemoryCredentialStore.DeleteSession(ctx, tenantID)
}

func (s *recordingStore) totalCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.gets) + len(s.sets) + len(s.deletes)
}

func seedCompany(store CredentialStore, companyID string) {
	_ = store.SetSession(context.Background(), companyID, Credential{
		TenantType:  TenantTypeCompany,
		AccessToken: "company-token-" + companyID,
		TokenType:   "Bearer",
	})
}

// trackingProvisioner records concurrency and call order for bulk tests.
type trackingProvisioner struct {
	mu          sync.Mutex
	inFlight    int
	maxInFlight int
	started     []string
	failFor     map[string]bool
	panicFor    string
	delay       time.Duration
}

func (p *trackingProvisioner) ProvisionLocation(_ context.Context, _ string, locationID string) error {
	p.mu.Lock()
	p.inFlight++
	if p.inFlight > p.maxInFlight {
		p.maxInFlight = p.inFlight
	}
	p.started = append(p.started, locationID)
	p.mu.Unlock()

	defer func() {
		p.mu.Lock()
		p.inFlight--
		p.mu.Unlock()
	}()

	if p.delay > 0 {
		time.Sleep(p.delay)
	}
	if p.panicFor != "" && locationID == p.panicFor {
		panic("provisioner exploded")
	}
	if p.failFor[locationID] {
		return fmt.Errorf("provisioning %s rejected", strings.ToLower(locationID))
	}
	return nil
}

func (p *trackingProvisioner) startedIDs() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.started...)
}
