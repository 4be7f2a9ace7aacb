// Package pipeline orchestrates one spreadsheet's path through the system:
// resolve the file name, extract each configured sheet, transform, persist,
// and archive the outcome.
package pipeline

import (
	"context"
	"fmt"
	"log"
	"path"
	"strings"
	"time"

	"reportflow/pkg/core/config"
	"reportflow/pkg/core/extract"
	"reportflow/pkg/core/grid"
	"reportflow/pkg/core/objstore"
	"reportflow/pkg/core/resolve"
	"reportflow/pkg/core/transform"
	"reportflow/pkg/core/xlsx"
	"reportflow/pkg/models"
)

// SheetLoader materialises a spreadsheet file into cell grids.
type SheetLoader interface {
	Load(path string) (*xlsx.Workbook, error)
}

// Persister writes a transformed table to the database.
type Persister interface {
	Persist(ctx context.Context, table *grid.Table, export config.ExportSpec) (int, error)
}

// Archiver moves a successfully processed file out of the input area.
type Archiver interface {
	Archive(ctx context.Context, key string, success bool) (string, error)
}

// Auditor records per-file processing status rows.
type Auditor interface {
	Begin(ctx context.Context, fileName, objectKey string, sizeBytes int64) (string, error)
	Finish(ctx context.Context, fileName, status, errorMessage, archivePath string) (bool, error)
}

// pendingMerge is a table waiting for its partner from another report file.
type pendingMerge struct {
	table      *grid.Table
	spec       config.NoTitleTableSpec
	reportName string
}

// Processor runs files through the pipeline. Construct with NewProcessor;
// all collaborators are injected.
type Processor struct {
	registry  *config.Registry
	resolver  *resolve.Resolver
	loader    SheetLoader
	persister Persister
	objects   objstore.Store
	archiver  Archiver
	auditor   Auditor
	cfg       config.ProcessingConfig
	now       func() time.Time

	pending []pendingMerge
}

// NewProcessor wires the pipeline. objects, archiver, and auditor may be nil
// when running against local files without audit tracking.
func NewProcessor(
	registry *config.Registry,
	loader SheetLoader,
	persister Persister,
	objects objstore.Store,
	archiver Archiver,
	auditor Auditor,
	cfg config.ProcessingConfig,
) *Processor {
	return &Processor{
		registry:  registry,
		resolver:  resolve.New(registry),
		loader:    loader,
		persister: persister,
		objects:   objects,
		archiver:  archiver,
		auditor:   auditor,
		cfg:       cfg,
		now:       time.Now,
	}
}

// Process runs one file end-to-end. A file whose name resolves to no known
// report is a skipped no-op success; a file that yields zero tables is a
// failure.
func (p *Processor) Process(ctx context.Context, key string) models.ProcessingResult {
	started := p.now()
	fileName := path.Base(key)
	result := models.ProcessingResult{FileName: fileName, SourceKey: key, Success: true}
	defer func() {
		result.ProcessingTime = p.now().Sub(started)
	}()

	canonical, ok := p.resolver.Resolve(fileName)
	if !ok {
		log.Printf("[Pipeline] no configuration for %s, skipping", fileName)
		result.Skipped = true
		return result
	}
	result.CanonicalKey = canonical

	if p.auditor != nil {
		size := p.objectSize(ctx, key)
		if _, err := p.auditor.Begin(ctx, fileName, key, size); err != nil {
			log.Printf("[Pipeline] WARNING: audit record not created: %v", err)
		}
	}

	localPath := key
	if p.objects != nil {
		downloaded, err := p.objects.Download(ctx, key)
		if err != nil {
			result.AddError(fmt.Sprintf("download failed: %v", err))
			p.finishAudit(ctx, &result)
			return result
		}
		localPath = downloaded
	}

	wb, err := p.loader.Load(localPath)
	if err != nil {
		result.AddError(fmt.Sprintf("failed to load spreadsheet: %v", err))
		p.archive(ctx, key, &result)
		p.finishAudit(ctx, &result)
		return result
	}

	report, _ := p.registry.Report(canonical)
	fileKeyValues := extract.KeyValueSet{}
	for _, sheet := range report.Sheets {
		p.processSheet(ctx, wb, sheet, canonical, fileKeyValues, &result)
	}

	if result.TablesProcessed == 0 && !p.contributedMerge(canonical) {
		result.AddError("no tables were extracted from the file")
	}

	p.archive(ctx, key, &result)
	p.finishAudit(ctx, &result)
	log.Printf("[Pipeline] %s: success=%v tables=%d rows=%d errors=%d",
		fileName, result.Success, result.TablesProcessed, result.RowsProcessed, len(result.Errors))
	return result
}

func (p *Processor) processSheet(
	ctx context.Context,
	wb *xlsx.Workbook,
	sheet config.SheetSpec,
	reportName string,
	fileKeyValues extract.KeyValueSet,
	result *models.ProcessingResult,
) {
	grid2d, ok := wb.Sheet(sheet.Name)
	if !ok {
		log.Printf("[Pipeline] WARNING: sheet %q not present, skipping", sheet.Name)
		return
	}

	fileKeyValues.Merge(extract.KeyValues(grid2d, sheet.KeyValues))

	for _, spec := range sheet.Tables {
		table, found := extract.FixedHeaderTable(grid2d, spec)
		if !found {
			log.Printf("[Pipeline] WARNING: table %q not found on sheet %q", spec.Title, sheet.Name)
			continue
		}
		transform.Apply(table, transform.Options{
			AddKeys:     spec.AddKeys,
			KeySpecs:    sheet.KeyValues,
			Headers:     spec.Headers,
			Derived:     spec.Derived,
			AddDataDate: spec.AddDataDate,
			FillNA:      spec.FillNA,
		}, fileKeyValues, p.now())
		p.record(ctx, table, spec.ExportSpec, result)
	}

	for _, spec := range sheet.NoTitleTables {
		table, found := p.extractNoTitle(grid2d, wb, spec, fileKeyValues)
		if !found {
			log.Printf("[Pipeline] WARNING: no-title table %q not found on sheet %q", spec.Title, sheet.Name)
			continue
		}

		if spec.MergeWith != "" {
			p.pending = append(p.pending, pendingMerge{table: table, spec: spec, reportName: reportName})
			log.Printf("[Pipeline] table %q stored for merging with %q", spec.Title, spec.MergeWith)
			continue
		}

		transform.Apply(table, transform.Options{
			AddKeys:      spec.AddKeys,
			KeySpecs:     sheet.KeyValues,
			Headers:      spec.Headers,
			Derived:      spec.Derived,
			Concatenated: spec.Type == "concatenate_tables" || spec.Type == "multi_concatenate_tables",
			AddDataDate:  spec.AddDataDate,
			FillNA:       spec.FillNA,
		}, fileKeyValues, p.now())
		p.record(ctx, table, spec.ExportSpec, result)
	}
}

func (p *Processor) extractNoTitle(
	sheet grid.Sheet,
	wb *xlsx.Workbook,
	spec config.NoTitleTableSpec,
	fileKeyValues extract.KeyValueSet,
) (*grid.Table, bool) {
	switch spec.Type {
	case "concatenate_tables":
		if spec.Concat == nil {
			log.Printf("[Pipeline] ERROR: table %q lacks a concatenate declaration", spec.Title)
			return nil, false
		}
		return extract.ConcatTables(sheet, *spec.Concat)
	case "multi_concatenate_tables":
		if spec.MultiConcat == nil {
			log.Printf("[Pipeline] ERROR: table %q lacks a multi-sheet declaration", spec.Title)
			return nil, false
		}
		return extract.MultiSheetConcat(wb.Sheets, *spec.MultiConcat)
	}

	return extract.NoTitleTable(sheet, extract.NoTitleOptions{
		StartRow: spec.StartRow,
		Headers:  spec.Headers,
		FillNA:   spec.FillNA,
		Flatten:  spec.FlatTable,
		FlatBy:   spec.FlatBy,
		DataDate: p.dataDate(fileKeyValues),
		Exclude:  spec.ColumnsToExclude,
	})
}

// dataDate resolves the date used to label flattened tables: the extracted
// report date when present, today otherwise.
func (p *Processor) dataDate(fileKeyValues extract.KeyValueSet) time.Time {
	if v, ok := fileKeyValues[transform.ReportDateKey]; ok {
		if t, parsed := grid.ParseDate(v.String()); parsed {
			return t
		}
	}
	return p.now()
}

// record persists a finished table when its declaration exports, and folds
// the outcome into the file result.
func (p *Processor) record(ctx context.Context, table *grid.Table, export config.ExportSpec, result *models.ProcessingResult) {
	result.TablesProcessed++
	result.RowsProcessed += table.NumRows()

	if !export.ExportToDB || !p.cfg.EnableDatabase || p.persister == nil {
		return
	}
	if _, err := p.persister.Persist(ctx, table, export); err != nil {
		result.DatabaseErrors++
		result.AddError(err.Error())
	}
}

// archive moves the file into the dated layout once its outcome is known:
// success/ for clean runs, failed/ for files whose content could not be
// processed. A file that only failed at the database stays in the input area
// so a later run can retry it.
func (p *Processor) archive(ctx context.Context, key string, result *models.ProcessingResult) {
	if p.archiver == nil {
		return
	}
	clean := result.Success && len(result.Errors) == 0
	if !clean && result.DatabaseErrors > 0 {
		log.Printf("[Pipeline] %s kept in place for retry after database errors", result.FileName)
		return
	}
	archived, err := p.archiver.Archive(ctx, key, clean)
	if err != nil {
		result.AddError(fmt.Sprintf("archiving failed: %v", err))
		return
	}
	result.ArchivePath = archived
}

// contributedMerge reports whether the file deferred at least one table into
// the pending merge set.
func (p *Processor) contributedMerge(reportName string) bool {
	for _, m := range p.pending {
		if m.reportName == reportName {
			return true
		}
	}
	return false
}

func (p *Processor) finishAudit(ctx context.Context, result *models.ProcessingResult) {
	if p.auditor == nil {
		return
	}
	status := "success"
	if !result.Success {
		status = "failed"
	}
	msg := strings.Join(result.Errors, "; ")
	if _, err := p.auditor.Finish(ctx, result.FileName, status, msg, result.ArchivePath); err != nil {
		log.Printf("[Pipeline] WARNING: audit record not updated: %v", err)
	}
}

func (p *Processor) objectSize(ctx context.Context, key string) int64 {
	if p.objects == nil {
		return 0
	}
	meta, err := p.objects.Head(ctx, key)
	if err != nil {
		return 0
	}
	return meta.SizeBytes
}

// ProcessBatch runs a set of files in order, then resolves the cross-file
// merges their tables deferred.
func (p *Processor) ProcessBatch(ctx context.Context, keys []string) models.BatchResult {
	var batch models.BatchResult
	for _, key := range keys {
		batch.Add(p.Process(ctx, key))
	}
	merges, errs := p.FlushMerges(ctx)
	batch.MergesProcessed = merges
	batch.Errors = append(batch.Errors, errs...)
	return batch
}

// FlushMerges pairs the deferred tables by title across report files, joins
// each pair, applies both declarations' derived columns, and persists when
// either side exports. Unmatched tables are reported as errors.
func (p *Processor) FlushMerges(ctx context.Context) (int, []string) {
	pending := p.pending
	p.pending = nil

	var errs []string
	merged := 0
	done := make(map[int]bool)
	for i, m := range pending {
		if done[i] {
			continue
		}
		partnerIdx := -1
		for j := i + 1; j < len(pending); j++ {
			if done[j] {
				continue
			}
			if pending[j].reportName == m.spec.MergeWith && pending[j].spec.Title == m.spec.Title {
				partnerIdx = j
				break
			}
		}
		if partnerIdx < 0 {
			errs = append(errs, fmt.Sprintf("merge partner %q not found for table %q", m.spec.MergeWith, m.spec.Title))
			continue
		}
		partner := pending[partnerIdx]
		done[i], done[partnerIdx] = true, true

		joined, ok := extract.MergeTables(m.table, partner.table, m.spec.MergeOn, m.reportName, partner.reportName)
		if !ok {
			errs = append(errs, fmt.Sprintf("merge failed for table %q", m.spec.Title))
			continue
		}

		derived := append(append([]config.DerivedColumnSpec{}, m.spec.Derived...), partner.spec.Derived...)
		transform.ApplyDerived(joined, derived, nil, p.now())

		export := m.spec.ExportSpec
		if !export.ExportToDB {
			export = partner.spec.ExportSpec
		}
		if export.ExportToDB && p.cfg.EnableDatabase && p.persister != nil {
			if _, err := p.persister.Persist(ctx, joined, export); err != nil {
				errs = append(errs, err.Error())
				continue
			}
		}
		merged++
		log.Printf("[Pipeline] merged table %q across %s and %s (%d rows)",
			m.spec.Title, m.reportName, partner.reportName, joined.NumRows())
	}
	return merged, errs
}
