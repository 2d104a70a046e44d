package core

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
)

// BulkInstaller provisions many locations of one company in sequential
// batches. Every task in a batch is awaited before the batch results are
// folded into the report, and no batch starts before the previous one
// settled.
type BulkInstaller struct {
	provisioner LocationProvisioner
	batchSize   int
	observer    Observer
	onBatch     func(index int, locationIDs []string)
}

type BulkOption func(*BulkInstaller)

func WithBulkObserver(observer Observer) BulkOption {
	return func(b *BulkInstaller) {
		b.observer = observer
	}
}

// WithBatchHook runs fn on the coordinator goroutine before each batch is
// launched.
func WithBatchHook(fn func(index int, locationIDs []string)) BulkOption {
	return func(b *BulkInstaller) {
		b.onBatch = fn
	}
}

func NewBulkInstaller(provisioner LocationProvisioner, batchSize int, opts ...BulkOption) (*BulkInstaller, error) {
	if provisioner == nil {
		return nil, fmt.Errorf("core: location provisioner is required")
	}
	if batchSize <= 0 {
		batchSize = DefaultBulkConcurrency
	}
	installer := &BulkInstaller{provisioner: provisioner, batchSize: batchSize}
	for _, opt := range opts {
		if opt != nil {
			opt(installer)
		}
	}
	return installer, nil
}

func (b *BulkInstaller) BatchSize() int {
	if b == nil || b.batchSize <= 0 {
		return DefaultBulkConcurrency
	}
	return b.batchSize
}

// InstallMany never fails for individual locations; those land in the
// report. An error is returned only when the call is rejected before any
// batch runs.
func (b *BulkInstaller) InstallMany(ctx context.Context, companyID string, locationIDs []string) (BulkInstallReport, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if b == nil || b.provisioner == nil {
		return BulkInstallReport{}, fmt.Errorf("core: bulk installer is not configured")
	}
	companyID = strings.TrimSpace(companyID)
	if companyID == "" {
		return BulkInstallReport{}, badInput("core: company id is required for bulk install", map[string]any{
			"location_count": len(locationIDs),
		})
	}

	startedAt := time.Now().UTC()
	size := b.BatchSize()
	report := BulkInstallReport{CompanyID: companyID}

	for start := 0; start < len(locationIDs); start += size {
		end := min(start+size, len(locationIDs))
		batch := locationIDs[start:end]
		if b.onBatch != nil {
			b.onBatch(report.Batches, append([]string(nil), batch...))
		}

		results := b.runBatch(ctx, companyID, batch)
		for _, result := range results {
			report.record(result)
		}
		report.Batches++
		b.observer.Debug(ctx, "bulk install batch settled", map[string]any{
			"company_id":   companyID,
			"batch":        report.Batches,
			"batch_size":   len(batch),
			"attempted":    report.Attempted,
			"failed":       report.Failed,
			"location_ids": strings.Join(batch, ","),
		})
	}

	fields := map[string]any{
		"company_id": companyID,
		"attempted":  report.Attempted,
		"succeeded":  report.Succeeded,
		"failed":     report.Failed,
		"batches":    report.Batches,
	}
	if report.Failed > 0 {
		fields["failures"] = failureSummary(report.Failures)
	}
	b.observer.Observe(ctx, startedAt, "bulk_install", report.Err(), fields)
	return report, nil
}

func (b *BulkInstaller) runBatch(ctx context.Context, companyID string, batch []string) []ProvisioningResult {
	results := make([]ProvisioningResult, len(batch))
	var group errgroup.Group
	for index, locationID := range batch {
		group.Go(func() error {
			results[index] = b.provisionOne(ctx, companyID, locationID)
			return nil
		})
	}
	_ = group.Wait()
	return results
}

func (b *BulkInstaller) provisionOne(ctx context.Context, companyID string, locationID string) (result ProvisioningResult) {
	defer func() {
		if recovered := recover(); recovered != nil {
			result = NewProvisioningResult(locationID,
				newProvisioningError(StepUnexpected, companyID, locationID, PanicError(recovered)))
		}
	}()
	trimmed := strings.TrimSpace(locationID)
	if trimmed == "" {
		return NewProvisioningResult(locationID,
			badInput("core: location id is required", map[string]any{"company_id": companyID}))
	}
	return NewProvisioningResult(trimmed, b.provisioner.ProvisionLocation(ctx, companyID, trimmed))
}

func failureSummary(failures []ProvisioningResult) []map[string]any {
	out := make([]map[string]any, 0, len(failures))
	for _, failure := range failures {
		out = append(out, map[string]any{
			"location_id": failure.LocationID,
			"error":       failure.ErrorMessage,
		})
	}
	return out
}

var _ BulkLocationInstaller = (*BulkInstaller)(nil)
