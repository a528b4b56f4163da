package runtime

import (
	"context"

	"zombiezen.com/go/log"

	"github.com/kingwill101/lualike/src/conf"
)

type (
	// GCMode selects between the incremental and generational collection
	// strategies.
	GCMode int
	gcPhase int

	// GC is the steerable collector behind collectgarbage. It owns no thread:
	// every step runs synchronously on the caller, driven either by explicit
	// Step/Collect calls or by allocation pressure when automatic collection
	// is running. It traces a registry of runtime objects (tables, upvalue
	// cells, closures, environments) from a caller-supplied root set and keeps
	// a byte estimate of live memory.
	GC struct {
		ctx  context.Context
		mode GCMode

		running    bool
		stepSizeKB int64
		minorMult  int64
		majorMult  int64

		allocated int64
		debt      int64
		lastMajor int64
		cycles    int64

		registry map[any]int64
		young    map[any]struct{}

		phase     gcPhase
		marked    map[any]bool
		gray      []any
		sweepList []any
		sweepIdx  int
	}
)

const (
	// GCIncremental steps a full-heap mark and sweep forward a bounded amount
	// at a time.
	GCIncremental GCMode = iota
	// GCGenerational runs frequent minor cycles over recently allocated
	// objects and escalates to a major cycle when the heap outgrows the major
	// multiplier.
	GCGenerational
)

const (
	phaseIdle gcPhase = iota
	phaseMark
	phaseSweep
)

func (m GCMode) String() string {
	if m == GCGenerational {
		return "generational"
	}
	return "incremental"
}

func newGC(ctx context.Context) *GC {
	return &GC{
		ctx:        ctx,
		mode:       GCIncremental,
		running:    true,
		stepSizeKB: conf.GCSTEPSIZEKB,
		minorMult:  conf.GCMINORMULT,
		majorMult:  conf.GCMAJORMULT,
		registry:   map[any]int64{},
		young:      map[any]struct{}{},
	}
}

// Track registers a runtime object and its size estimate with the collector.
func (gc *GC) Track(obj any, size int64) {
	if _, exists := gc.registry[obj]; exists {
		return
	}
	gc.registry[obj] = size
	gc.young[obj] = struct{}{}
	gc.allocated += size
	gc.debt += size
	// An object allocated while a cycle is in flight is live for that cycle;
	// its real reachability is judged by the next one.
	switch gc.phase {
	case phaseMark:
		pushGray(obj, gc.marked, &gc.gray)
	case phaseSweep:
		gc.marked[obj] = true
	}
}

// barrier grays a value newly linked into the object graph while a mark is in
// flight. A store into an already-marked container would otherwise hide a
// reachable object from the sweep.
func (gc *GC) barrier(obj any) {
	if gc.phase != phaseMark {
		return
	}
	pushGray(obj, gc.marked, &gc.gray)
}

// maybeStep is the automatic stepping hook called on allocation. It does
// nothing while the collector is stopped; explicit Collect/Step still work.
func (gc *GC) maybeStep(roots []any) {
	if !gc.running {
		return
	}
	if gc.debt >= gc.stepSizeKB*1024 {
		gc.Step(roots, 0)
	}
}

// Collect runs a full major collection over the supplied root set and returns
// the number of bytes swept.
func (gc *GC) Collect(roots []any) int64 {
	gc.resetCycle()
	marked := map[any]bool{}
	gray := append([]any{}, roots...)
	for len(gray) > 0 {
		obj := gray[len(gray)-1]
		gray = gray[:len(gray)-1]
		markObject(obj, marked, &gray)
	}
	freed := int64(0)
	for obj, size := range gc.registry {
		if !marked[obj] {
			freed += size
			delete(gc.registry, obj)
			delete(gc.young, obj)
		}
	}
	gc.allocated -= freed
	gc.lastMajor = gc.allocated
	gc.young = map[any]struct{}{}
	gc.debt = 0
	gc.cycles++
	log.Debugf(gc.ctx, "gc: major cycle %d closed, freed %d bytes, %d live", gc.cycles, freed, gc.allocated)
	return freed
}

// Step drives the collector forward by hand. A zero amount performs one
// minimal increment; otherwise the collector behaves as if amountKB kilobytes
// had been allocated, stepping until that pressure is consumed. It reports
// whether a collection cycle was closed. Explicit steps work even while
// automatic collection is stopped.
func (gc *GC) Step(roots []any, amountKB int64) bool {
	if amountKB <= 0 {
		return gc.singleStep(roots)
	}
	gc.debt += amountKB * 1024
	closed := false
	for gc.debt >= gc.stepSizeKB*1024 {
		gc.debt -= gc.stepSizeKB * 1024
		if gc.singleStep(roots) {
			closed = true
		}
	}
	return closed
}

func (gc *GC) singleStep(roots []any) bool {
	switch gc.phase {
	case phaseIdle:
		if gc.mode == GCGenerational && !gc.majorDue() {
			gc.minorCollect(roots)
			return true
		}
		gc.marked = map[any]bool{}
		gc.gray = append([]any{}, roots...)
		gc.phase = phaseMark
		return false
	case phaseMark:
		for i := 0; i < conf.GCSTEPOBJECTS; i++ {
			if len(gc.gray) == 0 {
				break
			}
			obj := gc.gray[len(gc.gray)-1]
			gc.gray = gc.gray[:len(gc.gray)-1]
			markObject(obj, gc.marked, &gc.gray)
		}
		if len(gc.gray) == 0 {
			gc.sweepList = make([]any, 0, len(gc.registry))
			for obj := range gc.registry {
				gc.sweepList = append(gc.sweepList, obj)
			}
			gc.sweepIdx = 0
			gc.phase = phaseSweep
		}
		return false
	case phaseSweep:
		for i := 0; i < conf.GCSTEPOBJECTS; i++ {
			if gc.sweepIdx >= len(gc.sweepList) {
				break
			}
			obj := gc.sweepList[gc.sweepIdx]
			gc.sweepIdx++
			if !gc.marked[obj] {
				gc.allocated -= gc.registry[obj]
				delete(gc.registry, obj)
				delete(gc.young, obj)
			}
		}
		if gc.sweepIdx >= len(gc.sweepList) {
			gc.resetCycle()
			gc.lastMajor = gc.allocated
			gc.young = map[any]struct{}{}
			gc.cycles++
			log.Debugf(gc.ctx, "gc: incremental cycle %d closed, %d bytes live", gc.cycles, gc.allocated)
			return true
		}
		return false
	}
	return false
}

// minorCollect traces the full root set but only sweeps objects allocated
// since the last major cycle; old objects are presumed live.
func (gc *GC) minorCollect(roots []any) {
	marked := map[any]bool{}
	gray := append([]any{}, roots...)
	for len(gray) > 0 {
		obj := gray[len(gray)-1]
		gray = gray[:len(gray)-1]
		markObject(obj, marked, &gray)
	}
	freed := int64(0)
	for obj := range gc.young {
		if !marked[obj] {
			freed += gc.registry[obj]
			delete(gc.registry, obj)
			delete(gc.young, obj)
		}
	}
	gc.allocated -= freed
	gc.young = map[any]struct{}{}
	gc.debt = 0
	gc.cycles++
	log.Debugf(gc.ctx, "gc: minor cycle %d closed, freed %d bytes", gc.cycles, freed)
}

// majorDue reports whether the heap has grown past the major multiplier,
// expressed as percent growth over the heap left by the last major cycle.
func (gc *GC) majorDue() bool {
	if gc.lastMajor == 0 {
		return len(gc.registry) > 0 && gc.allocated > gc.stepSizeKB*1024
	}
	return gc.allocated > gc.lastMajor+gc.lastMajor*gc.majorMult/100
}

func (gc *GC) resetCycle() {
	gc.phase = phaseIdle
	gc.marked = nil
	gc.gray = nil
	gc.sweepList = nil
	gc.sweepIdx = 0
}

// Count returns the current estimated memory use in kilobytes as a fractional
// value, so that Count()*1024 is byte accurate, plus the minor multiplier.
func (gc *GC) Count() (float64, int64) {
	return float64(gc.allocated) / 1024.0, gc.minorMult
}

// SetMode switches collection strategy and returns the previous mode name.
// Tunables are positional per mode: incremental takes the step size in
// kilobytes; generational takes the minor then major multiplier. A zero
// tunable means leave unchanged, never set to zero.
func (gc *GC) SetMode(mode GCMode, tunables ...int64) string {
	prev := gc.mode.String()
	gc.mode = mode
	gc.resetCycle()
	if mode == GCIncremental {
		if len(tunables) > 0 && tunables[0] != 0 {
			gc.stepSizeKB = tunables[0]
		}
		return prev
	}
	if len(tunables) > 0 && tunables[0] != 0 {
		gc.minorMult = tunables[0]
	}
	if len(tunables) > 1 && tunables[1] != 0 {
		gc.majorMult = tunables[1]
	}
	return prev
}

// Mode reports the current collection strategy.
func (gc *GC) Mode() GCMode { return gc.mode }

// Stop disables automatic collection. Explicit Collect and Step keep working.
func (gc *GC) Stop() { gc.running = false }

// Restart re-enables automatic collection.
func (gc *GC) Restart() { gc.running = true }

// IsRunning reports whether automatic collection is active.
func (gc *GC) IsRunning() bool { return gc.running }

// Cycles reports how many collection cycles have closed.
func (gc *GC) Cycles() int64 { return gc.cycles }

func markObject(obj any, marked map[any]bool, gray *[]any) {
	switch tobj := obj.(type) {
	case nil:
		return
	case *Table:
		if tobj == nil || marked[tobj] {
			return
		}
		marked[tobj] = true
		for _, v := range tobj.val {
			pushGray(v, marked, gray)
		}
		for k, v := range tobj.hashtable {
			pushGray(k, marked, gray)
			pushGray(v, marked, gray)
		}
		if tobj.metatable != nil {
			pushGray(tobj.metatable, marked, gray)
		}
	case *Upvalue:
		if tobj == nil || marked[tobj] {
			return
		}
		marked[tobj] = true
		pushGray(tobj.val, marked, gray)
	case *Closure:
		if tobj == nil || marked[tobj] {
			return
		}
		marked[tobj] = true
		for _, up := range tobj.upvalues {
			pushGray(up, marked, gray)
		}
		if tobj.env != nil {
			pushGray(tobj.env, marked, gray)
		}
	case *Environment:
		if tobj == nil || marked[tobj] {
			return
		}
		marked[tobj] = true
		for _, cell := range tobj.vars {
			pushGray(cell, marked, gray)
		}
		if tobj.parent != nil {
			pushGray(tobj.parent, marked, gray)
		}
	}
}

func pushGray(obj any, marked map[any]bool, gray *[]any) {
	switch obj.(type) {
	case *Table, *Upvalue, *Closure, *Environment:
		if !marked[obj] {
			*gray = append(*gray, obj)
		}
	}
}

func tableSize(tbl *Table) int64 {
	return 48 + int64(len(tbl.val)+len(tbl.hashtable))*16
}
