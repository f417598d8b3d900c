package spawn

import (
	"go.uber.org/zap"

	"spawnforge.ai/internal/catalog"
	"spawnforge.ai/internal/content"
	"spawnforge.ai/internal/spawn/logic/footprint"
	"spawnforge.ai/internal/spawn/logic/randx"
	"spawnforge.ai/internal/spawn/validate"
	"spawnforge.ai/internal/world"
)

// Outcome classifies one tile evaluation.
type Outcome uint8

const (
	OutcomePlaced Outcome = iota
	OutcomeGlobalRoll
	OutcomeNoEntry
	OutcomeNoRule
	OutcomeRuleRoll
	OutcomeNoPosition
	OutcomeOccupied
	OutcomeAwaitingContent
	OutcomeNothingChanged
)

var outcomeNames = [...]string{
	OutcomePlaced:          "placed",
	OutcomeGlobalRoll:      "global_roll",
	OutcomeNoEntry:         "no_entry",
	OutcomeNoRule:          "no_rule",
	OutcomeRuleRoll:        "rule_roll",
	OutcomeNoPosition:      "no_position",
	OutcomeOccupied:        "occupied",
	OutcomeAwaitingContent: "awaiting_content",
	OutcomeNothingChanged:  "nothing_changed",
}

func (o Outcome) String() string {
	if int(o) < len(outcomeNames) {
		return outcomeNames[o]
	}
	return "unknown"
}

// Decision is the full record of one tile evaluation, consumed by the audit
// log and the status feed.
type Decision struct {
	Tile    world.TileKey
	Outcome Outcome
	EntryID string
	Reasons []string
	Result  validate.Result
}

// maxPenaltyFailures caps the exponent of the repeated-failure penalty.
const maxPenaltyFailures = 4

// failurePenalty halves an entry's effective rule probability for each
// recorded download failure, saturating at 1/16.
func failurePenalty(failures int) float64 {
	if failures <= 0 {
		return 1
	}
	if failures > maxPenaltyFailures {
		failures = maxPenaltyFailures
	}
	p := 1.0
	for i := 0; i < failures; i++ {
		p /= 2
	}
	return p
}

// Evaluator runs the spawn decision for one tile at a time. It owns no
// goroutines and must be called only from the tick loop; the catalog's
// runtime counters are mutated here and nowhere else.
type Evaluator struct {
	w       world.World
	cat     *catalog.Catalog
	cache   *content.Cache
	tracker *Occupancy
	exec    *Executor
	log     *zap.Logger

	// requestFetch starts a background single-flight download for a
	// payload that is needed but not cached.
	requestFetch func(id, hash string)
}

func NewEvaluator(w world.World, cat *catalog.Catalog, cache *content.Cache, tracker *Occupancy, exec *Executor, requestFetch func(id, hash string), log *zap.Logger) *Evaluator {
	return &Evaluator{
		w:            w,
		cat:          cat,
		cache:        cache,
		tracker:      tracker,
		exec:         exec,
		requestFetch: requestFetch,
		log:          log,
	}
}

// SetCatalog swaps the active catalog on refresh.
func (e *Evaluator) SetCatalog(cat *catalog.Catalog) { e.cat = cat }

// Catalog returns the active catalog.
func (e *Evaluator) Catalog() *catalog.Catalog { return e.cat }

// EvaluateTile runs the whole decision pipeline for one queued tile. The
// random stream is derived from the world seed, the catalog identity and
// the tile coordinate, so re-evaluating the same tile against the same
// catalog yields the same decision.
func (e *Evaluator) EvaluateTile(k world.TileKey) Decision {
	tx, tz := k.Unpack()
	d := Decision{Tile: k}
	st := randx.NewTileStream(e.w.Seed(), e.cat.ID, tx, tz)

	if st.Float64() >= e.cat.GlobalProbability {
		d.Outcome = OutcomeGlobalRoll
		return d
	}

	ent := e.pickEntry(st)
	if ent == nil {
		d.Outcome = OutcomeNoEntry
		return d
	}
	d.EntryID = ent.ID

	cx, cz := k.Center()
	rule, ok := e.pickRule(ent, e.w.RegionTag(cx, cz))
	if !ok {
		d.Outcome = OutcomeNoRule
		return d
	}

	if st.Float64() >= rule.Probability*failurePenalty(ent.DownloadFailures) {
		d.Outcome = OutcomeRuleRoll
		return d
	}

	g := footprint.Geometry{Size: ent.Size, Anchor: ent.Anchor, Facing: ent.AnchorFacing}
	res, fail := validate.Search(e.w, st, g, rule, tx, tz)
	if fail != nil {
		d.Outcome = OutcomeNoPosition
		d.Reasons = fail.Reasons
		return d
	}
	d.Result = res

	if e.tracker.AnyClaimed(res.Box) {
		d.Outcome = OutcomeOccupied
		return d
	}

	if _, cached := e.cache.GetVerified(ent.ID, ent.PayloadHash); !cached {
		d.Outcome = OutcomeAwaitingContent
		if !e.cache.IsDownloading(ent.ID) && e.requestFetch != nil {
			e.requestFetch(ent.ID, ent.PayloadHash)
		}
		return d
	}

	// Claim before mutating the world so a mid-placement crash leaves the
	// footprint reserved rather than half shared.
	e.tracker.Claim(res.Box)

	placed, err := e.exec.Place(ent, res, tx, tz)
	if err != nil {
		e.log.Error("placement failed",
			zap.String("entry", ent.ID),
			zap.Stringer("tile", k),
			zap.Error(err))
		d.Outcome = OutcomeNothingChanged
		d.Reasons = []string{err.Error()}
		return d
	}
	if !placed {
		d.Outcome = OutcomeNothingChanged
		return d
	}
	d.Outcome = OutcomePlaced
	return d
}

// pickEntry selects uniformly among entries that still have spawn budget.
func (e *Evaluator) pickEntry(st *randx.Stream) *catalog.Entry {
	candidates := make([]int, 0, len(e.cat.Entries))
	for i := range e.cat.Entries {
		if e.cat.Entries[i].HasBudget() {
			candidates = append(candidates, i)
		}
	}
	if len(candidates) == 0 {
		return nil
	}
	return &e.cat.Entries[candidates[st.Intn(len(candidates))]]
}

// pickRule returns the first of the entry's rules matching the region tag.
// An entry with no rules at all gets the default everywhere-ground rule; an
// entry whose rules all miss the tag gets nothing.
func (e *Evaluator) pickRule(ent *catalog.Entry, tag string) (catalog.Rule, bool) {
	if len(ent.Rules) == 0 {
		return catalog.DefaultRule(e.w.MinY(), e.w.MaxY()), true
	}
	for _, r := range ent.Rules {
		if r.Matches(tag) {
			return r, true
		}
	}
	return catalog.Rule{}, false
}
