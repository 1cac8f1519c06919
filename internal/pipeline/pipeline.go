package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/callveil/callveil/internal/events"
	"github.com/callveil/callveil/internal/ingest"
	"github.com/callveil/callveil/internal/llm"
	"github.com/callveil/callveil/internal/redact"
	"github.com/callveil/callveil/internal/store"
	"github.com/callveil/callveil/internal/vaultstore"
)

// Pipeline runs the batch analysis loop: mask each transcript, send the
// masked text out for analysis, rehydrate the result locally, and persist
// it. The input file is re-read every iteration so records appended while
// the pipeline runs are still picked up.
type Pipeline struct {
	config     *Config
	engine     *redact.Engine
	client     *llm.Client
	loader     *ingest.Loader
	vaultStore *vaultstore.Store
	store      *store.Store
	hub        *events.Hub
	logger     *zap.Logger

	mu        sync.Mutex
	processed map[string]bool
	results   []map[string]any
}

// New creates a batch pipeline. vaultStore, analysisStore, and hub are
// optional and may be nil.
func New(
	config *Config,
	engine *redact.Engine,
	client *llm.Client,
	loader *ingest.Loader,
	vaultStore *vaultstore.Store,
	analysisStore *store.Store,
	hub *events.Hub,
	logger *zap.Logger,
) *Pipeline {
	return &Pipeline{
		config:     config,
		engine:     engine,
		client:     client,
		loader:     loader,
		vaultStore: vaultStore,
		store:      analysisStore,
		hub:        hub,
		logger:     logger,
		processed:  make(map[string]bool),
	}
}

// Run processes every unprocessed record in the input file until none
// remain. Already-processed call IDs from the checkpoint are skipped, and
// the checkpoint is updated after every batch so an interrupted run resumes
// cleanly.
func (p *Pipeline) Run(ctx context.Context) (*Result, error) {
	start := time.Now()
	result := &Result{}

	if err := p.loadCheckpoint(); err != nil {
		return nil, fmt.Errorf("failed to load checkpoint: %w", err)
	}
	if err := p.loadExistingResults(); err != nil {
		return nil, fmt.Errorf("failed to load existing results: %w", err)
	}

	p.logger.Info("Starting batch pipeline",
		zap.String("input", p.config.InputFile),
		zap.String("output", p.config.OutputFile),
		zap.Int("already_processed", len(p.processed)),
		zap.Int("concurrency", p.config.Concurrency))

	for {
		select {
		case <-ctx.Done():
			return result, ctx.Err()
		default:
		}

		// Re-read the source so records added mid-run are included.
		records, err := p.loader.LoadFile(p.config.InputFile)
		if err != nil {
			return result, fmt.Errorf("failed to load input file: %w", err)
		}

		batch := p.nextBatch(records)
		if len(batch) == 0 {
			break
		}

		var wg sync.WaitGroup
		for _, record := range batch {
			wg.Add(1)
			go func(rec ingest.CallRecord) {
				defer wg.Done()
				if err := p.processCall(ctx, rec); err != nil {
					p.logger.Error("Call processing failed",
						zap.String("call_id", rec.CallID),
						zap.Error(err))
					p.deadLetter(rec.CallID, err)
					p.markProcessed(rec.CallID)
					p.mu.Lock()
					result.Failed++
					p.mu.Unlock()
					return
				}
				p.mu.Lock()
				result.Processed++
				p.mu.Unlock()
			}(record)
		}
		wg.Wait()

		if err := p.flush(); err != nil {
			return result, err
		}

		remaining := 0
		for _, record := range records {
			if !p.isProcessed(record.CallID) {
				remaining++
			}
		}
		p.broadcastProgress(result, remaining)
	}

	result.Duration = time.Since(start)
	p.logger.Info("Batch pipeline completed",
		zap.Int("processed", result.Processed),
		zap.Int("failed", result.Failed),
		zap.Duration("duration", result.Duration))

	return result, nil
}

// nextBatch returns up to Concurrency unprocessed records.
func (p *Pipeline) nextBatch(records []ingest.CallRecord) []ingest.CallRecord {
	limit := p.config.Concurrency
	if limit < 1 {
		limit = 1
	}

	var batch []ingest.CallRecord
	for _, record := range records {
		if p.isProcessed(record.CallID) {
			continue
		}
		batch = append(batch, record)
		if len(batch) >= limit {
			break
		}
	}
	return batch
}

// processCall handles one transcript end to end. The vault mapping stays in
// this process; only the masked transcript goes to the generation service.
func (p *Pipeline) processCall(ctx context.Context, record ingest.CallRecord) error {
	log := p.logger.With(zap.String("call_id", record.CallID))

	maskStart := time.Now()
	masked, err := p.engine.Mask(ctx, record.Transcript)
	if err != nil {
		return fmt.Errorf("masking failed: %w", err)
	}

	total := 0
	for _, f := range masked.Findings {
		total += f.Count
	}
	log.Info("Transcript masked", zap.Int("findings", total))

	if p.hub != nil {
		p.hub.BroadcastEvent(events.Event{
			Type:      events.EventTypeDetection,
			Timestamp: time.Now(),
			Data: events.DetectionEvent{
				CallID:        record.CallID,
				Findings:      masked.Findings,
				TotalFindings: total,
				ProcessingMS:  float64(time.Since(maskStart).Nanoseconds()) / 1e6,
			},
		})
	}

	if p.config.PersistVaults && p.vaultStore != nil {
		if err := p.vaultStore.Save(ctx, record.CallID, masked.Mapping); err != nil {
			return fmt.Errorf("vault persistence failed: %w", err)
		}
	}

	analysis, err := p.client.Analyze(ctx, masked.Masked)
	if err != nil {
		return fmt.Errorf("analysis failed: %w", err)
	}

	rehydrated, ok := redact.Rehydrate(analysis, masked.Mapping).(map[string]any)
	if !ok {
		return fmt.Errorf("unexpected analysis document shape")
	}
	rehydrated["call_id"] = record.CallID

	if p.config.StoreResults && p.store != nil {
		if err := p.store.UpsertDocument(ctx, record.CallID, rehydrated); err != nil {
			return fmt.Errorf("result persistence failed: %w", err)
		}
	}

	p.mu.Lock()
	p.results = append(p.results, rehydrated)
	p.processed[record.CallID] = true
	p.mu.Unlock()

	log.Info("Call analyzed")
	return nil
}

func (p *Pipeline) isProcessed(callID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.processed[callID]
}

func (p *Pipeline) markProcessed(callID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.processed[callID] = true
}

// flush writes the accumulated results and the checkpoint to disk.
func (p *Pipeline) flush() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := writeJSONAtomic(p.config.OutputFile, p.results); err != nil {
		return fmt.Errorf("failed to write output file: %w", err)
	}

	cp := checkpoint{UpdatedAt: time.Now()}
	for id := range p.processed {
		cp.ProcessedIDs = append(cp.ProcessedIDs, id)
	}
	if err := writeJSONAtomic(p.config.CheckpointFile, cp); err != nil {
		return fmt.Errorf("failed to write checkpoint: %w", err)
	}

	return nil
}

// loadCheckpoint restores the processed set from a previous run. A missing
// checkpoint file is a fresh start, not an error.
func (p *Pipeline) loadCheckpoint() error {
	data, err := os.ReadFile(p.config.CheckpointFile)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}

	var cp checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return fmt.Errorf("corrupted checkpoint file: %w", err)
	}
	for _, id := range cp.ProcessedIDs {
		p.processed[id] = true
	}
	return nil
}

// loadExistingResults reloads output from a previous run so resumed runs
// append rather than overwrite.
func (p *Pipeline) loadExistingResults() error {
	data, err := os.ReadFile(p.config.OutputFile)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}

	if err := json.Unmarshal(data, &p.results); err != nil {
		return fmt.Errorf("corrupted output file: %w", err)
	}
	return nil
}

// deadLetter appends a failed call to the dead letter file as a JSON line.
func (p *Pipeline) deadLetter(callID string, cause error) {
	entry := deadLetterEntry{
		CallID:    callID,
		Error:     cause.Error(),
		Timestamp: time.Now(),
	}

	if err := os.MkdirAll(filepath.Dir(p.config.DeadLetterFile), 0o755); err != nil {
		p.logger.Error("Failed to create dead letter directory", zap.Error(err))
		return
	}

	file, err := os.OpenFile(p.config.DeadLetterFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		p.logger.Error("Failed to open dead letter file", zap.Error(err))
		return
	}
	defer file.Close()

	line, _ := json.Marshal(entry)
	if _, err := file.Write(append(line, '\n')); err != nil {
		p.logger.Error("Failed to write dead letter entry", zap.Error(err))
	}
}

func (p *Pipeline) broadcastProgress(result *Result, remaining int) {
	if p.hub == nil {
		return
	}
	p.hub.BroadcastEvent(events.Event{
		Type:      events.EventTypeProgress,
		Timestamp: time.Now(),
		Data: events.ProgressEvent{
			Processed: result.Processed,
			Failed:    result.Failed,
			Remaining: remaining,
		},
	})
}

// writeJSONAtomic writes v as indented JSON via a temp file and rename, so
// a crash mid-write never leaves a truncated file.
func writeJSONAtomic(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
