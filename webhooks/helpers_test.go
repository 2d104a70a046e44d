package webhooks

import (
	"context"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"encoding/pem"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/goliatone/go-provisioning/core"
)

var (
	testKeyOnce sync.Once
	testKey     *rsa.PrivateKey
	testKeyErr  error
)

func signingKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	testKeyOnce.Do(func() {
		testKey, testKeyErr = rsa.GenerateKey(rand.Reader, 2048)
	})
	if testKeyErr != nil {
		t.Fatalf("generate rsa key: %v", testKeyErr)
	}
	return testKey
}

func publicKeyPEM(t *testing.T) string {
	t.Helper()
	der, err := x509.MarshalPKIXPublicKey(&signingKey(t).PublicKey)
	if err != nil {
		t.Fatalf("marshal public key: %v", err)
	}
	return string(pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der}))
}

func pkcs1PublicKeyPEM(t *testing.T) string {
	t.Helper()
	der := x509.MarshalPKCS1PublicKey(&signingKey(t).PublicKey)
	return string(pem.EncodeToMemory(&pem.Block{Type: "RSA PUBLIC KEY", Bytes: der}))
}

func sign(t *testing.T, payload []byte) string {
	t.Helper()
	digest := sha256.Sum256(payload)
	signature, err := rsa.SignPKCS1v15(rand.Reader, signingKey(t), crypto.SHA256, digest[:])
	if err != nil {
		t.Fatalf("sign payload: %v", err)
	}
	return base64.StdEncoding.EncodeToString(signature)
}

func mustJSON(t *testing.T, value any) []byte {
	t.Helper()
	raw, err := json.Marshal(value)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	return raw
}

type provisionCall struct {
	companyID  string
	locationID string
}

type bulkCall struct {
	companyID   string
	locationIDs []string
}

type spyProvisioning struct {
	mu         sync.Mutex
	provisions []provisionCall
	bulks      []bulkCall
	uninstalls []string
	provideErr error
	bulkReport *core.BulkInstallReport
	bulkErr    error
	panicOn    string
}

func (s *spyProvisioning) ProvisionLocation(_ context.Context, companyID string, locationID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.panicOn == "provision" {
		panic("provision exploded")
	}
	s.provisions = append(s.provisions, provisionCall{companyID: companyID, locationID: locationID})
	return s.provideErr
}

func (s *spyProvisioning) InstallMany(_ context.Context, companyID string, locationIDs []string) (core.BulkInstallReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bulks = append(s.bulks, bulkCall{companyID: companyID, locationIDs: append([]string(nil), locationIDs...)})
	if s.bulkErr != nil {
		return core.BulkInstallReport{}, s.bulkErr
	}
	if s.bulkReport != nil {
		return *s.bulkReport, nil
	}
	return core.BulkInstallReport{
		CompanyID: companyID,
		Attempted: len(locationIDs),
		Succeeded: len(locationIDs),
		Batches:   (len(locationIDs) + 4) / 5,
	}, nil
}

func (s *spyProvisioning) Uninstall(_ context.Context, tenantID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.uninstalls = append(s.uninstalls, tenantID)
	return nil
}

func (s *spyProvisioning) totalCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.provisions) + len(s.bulks) + len(s.uninstalls)
}

type spyVerifier struct {
	mu       sync.Mutex
	calls    int
	payloads [][]byte
	result   bool
}

func (v *spyVerifier) Verify(payload []byte, _ string, _ string) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.calls++
	v.payloads = append(v.payloads, append([]byte(nil), payload...))
	return v.result
}

type spySink struct {
	mu     sync.Mutex
	events []core.LifecycleEvent
	err    error
}

func (s *spySink) Publish(_ context.Context, event core.LifecycleEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return s.err
}

type spyReporter struct {
	mu     sync.Mutex
	errors []error
}

func (r *spyReporter) ReportFailure(_ context.Context, err error, _ map[string]any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errors = append(r.errors, err)
}

type spyMetrics struct {
	mu       sync.Mutex
	counters map[string]int64
}

func (m *spyMetrics) IncCounter(_ context.Context, name string, value int64, _ map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.counters == nil {
		m.counters = map[string]int64{}
	}
	m.counters[name] += value
}

func (m *spyMetrics) ObserveHistogram(context.Context, string, float64, map[string]string) {}

func (m *spyMetrics) count(name string) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counters[name]
}

var errExchangeRejected = errors.New("exchange rejected")

func failingReport(companyID string, ids []string, failed string) *core.BulkInstallReport {
	report := &core.BulkInstallReport{CompanyID: companyID, Batches: 1}
	for _, id := range ids {
		report.Attempted++
		if id == failed {
			report.Failed++
			report.Failures = append(report.Failures, core.NewProvisioningResult(id, fmt.Errorf("%s: %w", id, errExchangeRejected)))
			continue
		}
		report.Succeeded++
	}
	return report
}

type loggedEntry struct {
	level string
	msg   string
}

type recordingLogger struct {
	mu      *sync.Mutex
	entries *[]loggedEntry
}

func newRecordingLogger() *recordingLogger {
	entries := []loggedEntry{}
	return &recordingLogger{mu: &sync.Mutex{}, entries: &entries}
}

func (l *recordingLogger) add(level string, msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	*l.entries = append(*l.entries, loggedEntry{level: level, msg: msg})
}

func (l *recordingLogger) Trace(msg string, _ ...any) { l.add("trace", msg) }
func (l *recordingLogger) Debug(msg string, _ ...any) { l.add("debug", msg) }
func (l *recordingLogger) Info(msg string, _ ...any)  { l.add("info", msg) }
func (l *recordingLogger) Warn(msg string, _ ...any)  { l.add("warn", msg) }
func (l *recordingLogger) Error(msg string, _ ...any) { l.add("error", msg) }
func (l *recordingLogger) Fatal(msg string, _ ...any) { l.add("fatal", msg) }

func (l *recordingLogger) WithContext(context.Context) core.Logger {
	return l
}

func (l *recordingLogger) has(level string, msg string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, entry := range *l.entries {
		if entry.level == level && entry.msg == msg {
			return true
		}
	}
	return false
}
