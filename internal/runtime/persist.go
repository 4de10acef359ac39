package runtime

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aretw0/blueprint/pkg/domain"
	"github.com/aretw0/blueprint/pkg/ports"
)

// enqueueLocked captures the current graph and version into a new job.
func (e *Engine) enqueueLocked(kind jobKind, autosave bool, maxAttempts int) *job {
	j := newJob(kind, autosave, maxAttempts)
	j.graph = e.store.graph.Clone()
	j.expectedVersion = e.version
	j.revision = e.revision
	j.enqueuedAt = e.clock.Now()

	for _, purged := range e.queue.push(j) {
		purged.finish(domain.ErrJobCanceled)
	}
	e.status = domain.SyncSaving
	e.kick()
	return j
}

func (e *Engine) kick() {
	select {
	case e.wake <- struct{}{}:
	default:
	}
}

// run is the single consumer of the queue. Only it calls the gateway for jobs,
// so at most one job is in flight.
func (e *Engine) run() {
	for {
		select {
		case <-e.done:
			return
		case <-e.wake:
		}
		for e.step() {
		}
	}
}

// step executes the next job. It returns false when there is nothing to run.
func (e *Engine) step() bool {
	e.mu.Lock()
	if e.closed || e.inFlight != nil || e.parked != nil {
		e.mu.Unlock()
		return false
	}
	j := e.queue.pop()
	if j == nil {
		e.notifyIdleLocked()
		e.mu.Unlock()
		return false
	}

	j.attempt++
	e.inFlight = j
	epoch := e.epoch
	call := e.prepareLocked(j)
	e.publishLocked()
	e.mu.Unlock()

	start := time.Now()
	result, err := call()
	elapsed := time.Since(start)

	e.mu.Lock()
	e.completeLocked(j, epoch, result, err, elapsed)
	e.notifyIdleLocked()
	e.publishLocked()
	events := e.outbox
	e.outbox = nil
	e.mu.Unlock()

	e.deliver(events)
	return true
}

// prepareLocked builds the gateway call for j. Upserts are sanitized here, right
// before submission; a repair is written back to the store when it still holds
// the job's graph and re-baselined in history so it cannot be undone.
func (e *Engine) prepareLocked(j *job) func() (ports.UpsertResult, error) {
	bp := e.blueprint.Clone()
	gw, timeout := e.gateway, e.settings.CallTimeout

	if j.kind == jobRename {
		req := ports.RenameRequest{
			BlueprintID:             bp.ID,
			NextTitle:               j.title,
			ExpectedAutosaveVersion: j.expectedVersion,
		}
		return func() (ports.UpsertResult, error) {
			ctx, cancel := context.WithTimeout(context.Background(), timeout)
			defer cancel()
			version, err := gw.RenameBlueprint(ctx, req)
			return ports.UpsertResult{BlueprintID: req.BlueprintID, Version: version}, err
		}
	}

	res := Sanitize(j.graph, e.newID)
	if res.Changed {
		e.logger.Debug("graph repaired before save",
			"blueprint_id", bp.ID,
			"dropped_edges", len(res.DroppedEdges),
		)
		if e.store.graph.Equal(j.graph) {
			repaired := res.Graph.Clone()
			e.history.Apply(func() {
				e.store.replace(repaired)
			})
			e.history.Rebaseline(repaired)
		}
		j.graph = res.Graph
	}

	req := ports.UpsertRequest{
		BlueprintID:             bp.ID,
		Title:                   bp.Title,
		Description:             bp.Description,
		Status:                  bp.Status,
		Metadata:                bp.Metadata,
		Graph:                   j.graph.Clone(),
		DeletedNodeIDs:          e.persistedNodes.Difference(j.graph.NodeIDs()),
		DeletedEdgeIDs:          e.persistedEdges.Difference(j.graph.EdgeIDs()),
		Autosave:                j.autosave,
		ExpectedAutosaveVersion: j.expectedVersion,
	}
	return func() (ports.UpsertResult, error) {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		return gw.UpsertGraph(ctx, req)
	}
}

// completeLocked settles j after its gateway call.
func (e *Engine) completeLocked(j *job, epoch uint64, result ports.UpsertResult, err error, elapsed time.Duration) {
	e.inFlight = nil

	if e.closed {
		j.finish(domain.ErrDisposed)
		return
	}
	if epoch != e.epoch {
		e.logger.Debug("discarding save outcome from before reload", "blueprint_id", e.blueprint.ID)
		j.finish(domain.ErrJobCanceled)
		return
	}

	event := domain.JobEvent{
		Timestamp:   e.clock.Now(),
		BlueprintID: e.blueprint.ID,
		Autosave:    j.autosave,
		Attempt:     j.attempt,
		QueueDepth:  e.queue.len(),
		Elapsed:     elapsed,
	}

	switch {
	case err == nil:
		e.succeedLocked(j, result)
		event.Type = domain.EventJobSuccess
		event.Version = e.version
		e.emitLocked(event)
		j.finish(nil)

	case domain.IsConflict(err):
		if !errors.Is(err, domain.ErrConflict) {
			err = fmt.Errorf("%w: %v", domain.ErrConflict, err)
		}
		e.status = domain.SyncConflict
		e.lastErr = err
		e.stopAutosaveLocked()
		for _, queued := range e.queue.drain() {
			queued.finish(err)
		}
		e.logger.Warn("save rejected, reload required",
			"blueprint_id", e.blueprint.ID,
			"version", j.expectedVersion,
			"err", err,
		)
		event.Type = domain.EventJobConflict
		event.Version = e.version
		event.QueueDepth = 0
		event.Err = err.Error()
		e.emitLocked(event)
		j.finish(err)

	case !domain.IsPermanent(err) && j.attempt < j.maxAttempts:
		delay := e.settings.Backoff.Delay(j.attempt)
		e.parked = j
		e.retryTimer = e.clock.AfterFunc(delay, func() {
			e.guard(func() {
				if e.parked != j {
					return
				}
				e.parked = nil
				e.retryTimer = nil
				e.queue.pushFront(j)
				e.kick()
			})
		})
		e.logger.Debug("save failed, retrying",
			"blueprint_id", e.blueprint.ID,
			"job_attempt", j.attempt,
			"backoff", delay,
			"err", err,
		)
		event.Type = domain.EventJobRetry
		event.Backoff = delay
		event.Version = e.version
		event.Err = err.Error()
		e.emitLocked(event)

	default:
		e.lastErr = err
		if e.queue.len() == 0 {
			e.status = domain.SyncError
		}
		e.logger.Error("save failed",
			"blueprint_id", e.blueprint.ID,
			"job_attempt", j.attempt,
			"version", e.version,
			"err", err,
		)
		event.Type = domain.EventJobFailed
		event.Version = e.version
		event.Err = err.Error()
		e.emitLocked(event)
		j.finish(err)
	}
}

func (e *Engine) succeedLocked(j *job, result ports.UpsertResult) {
	if e.blueprint.ID == "" {
		e.blueprint.ID = result.BlueprintID
	}
	previous := j.expectedVersion
	e.version = previous + 1
	if result.Version != 0 && result.Version != e.version {
		e.logger.Warn("gateway reported unexpected version",
			"blueprint_id", e.blueprint.ID,
			"version", e.version,
			"reported", result.Version,
		)
	}
	e.queue.rebase(previous, e.version)

	switch j.kind {
	case jobRename:
		e.blueprint.Title = j.title
	case jobUpsert:
		e.persistedNodes = domain.NewIDSet(j.graph.NodeIDs()...)
		e.persistedEdges = domain.NewIDSet(j.graph.EdgeIDs()...)
		if j.revision == e.revision {
			e.dirty = false
		}
	}

	e.lastErr = nil
	if e.queue.len() == 0 {
		e.status = domain.SyncIdle
	} else {
		e.status = domain.SyncSaving
	}
	e.logger.Debug("blueprint saved",
		"blueprint_id", e.blueprint.ID,
		"job_attempt", j.attempt,
		"version", e.version,
	)
}
