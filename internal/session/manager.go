// Package session runs wizard sessions on top of a session store: it
// restores the wizard, applies one transition, persists the result and
// publishes an event. Generation is serialised per session.
package session

import (
	"context"
	stderrors "errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/singleflight"

	"vacalyser/internal/ai"
	"vacalyser/internal/errors"
	"vacalyser/internal/events"
	"vacalyser/internal/observability"
	"vacalyser/internal/store"
	"vacalyser/internal/types"
	"vacalyser/internal/wizard"
)

// Generator produces artifacts and suggestions; *ai.Service implements it
type Generator interface {
	Generate(ctx context.Context, kind string, form wizard.FormState, opts types.GenerateOptions, onChunk func(string)) (*types.Artifact, error)
	Suggest(ctx context.Context, kind, jobTitle string) (*types.Suggestions, error)
}

// Manager coordinates sessions. It is safe for concurrent use; operations on
// the same session id are applied one at a time.
type Manager struct {
	store     store.Store
	generator Generator
	steps     []wizard.Step
	publisher events.Publisher
	metrics   *observability.Metrics
	logger    *errors.Logger

	locksMu sync.Mutex
	locks   map[string]*sessionLocks // only ids with an operation in progress
	flight  singleflight.Group

	now   func() time.Time
	newID func() string
}

type sessionLocks struct {
	state    sync.Mutex // load-modify-save of the stored session
	generate sync.Mutex // one generation in flight
	refs     int        // guarded by Manager.locksMu
}

// Options configures a Manager. Nil fields get working defaults.
type Options struct {
	Steps     []wizard.Step
	Publisher events.Publisher
	Metrics   *observability.Metrics
	Logger    *errors.Logger
}

// NewManager creates a manager over an opened store
func NewManager(st store.Store, gen Generator, opts Options) (*Manager, error) {
	steps := opts.Steps
	if steps == nil {
		steps = wizard.DefaultSteps()
	}
	if err := wizard.ValidateSteps(steps); err != nil {
		return nil, err
	}
	m := &Manager{
		store:     st,
		generator: gen,
		steps:     steps,
		publisher: opts.Publisher,
		metrics:   opts.Metrics,
		logger:    opts.Logger,
		locks:     map[string]*sessionLocks{},
		now:       func() time.Time { return time.Now().UTC() },
		newID:     uuid.NewString,
	}
	if m.publisher == nil {
		m.publisher = events.NoopPublisher{}
	}
	if m.metrics == nil {
		m.metrics = &observability.Metrics{}
	}
	if m.logger == nil {
		m.logger = errors.NewDiscardLogger()
	}
	return m, nil
}

// Steps returns the catalog sessions run over
func (m *Manager) Steps() []wizard.Step {
	return slices.Clone(m.steps)
}

// acquire returns the locks of a session id and a release func. Entries are
// reference counted and dropped when the last holder releases, so ids that
// never existed or were purged do not accumulate.
func (m *Manager) acquire(id string) (*sessionLocks, func()) {
	m.locksMu.Lock()
	l, ok := m.locks[id]
	if !ok {
		l = &sessionLocks{}
		m.locks[id] = l
	}
	l.refs++
	m.locksMu.Unlock()

	return l, func() {
		m.locksMu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(m.locks, id)
		}
		m.locksMu.Unlock()
	}
}

// lockCount reports how many session ids currently hold lock entries
func (m *Manager) lockCount() int {
	m.locksMu.Lock()
	defer m.locksMu.Unlock()
	return len(m.locks)
}

// Create starts a new session at the first step
func (m *Manager) Create(ctx context.Context) (types.SessionView, error) {
	w, err := wizard.New(m.steps)
	if err != nil {
		return types.SessionView{}, err
	}
	now := m.now()
	sess := &store.Session{
		ID:        m.newID(),
		Snapshot:  w.Snapshot(),
		Artifacts: map[string]types.Artifact{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := m.store.Create(ctx, sess); err != nil {
		return types.SessionView{}, err
	}

	m.metrics.RecordBusinessMetric(ctx, observability.MetricSessionCreated, true)
	m.publish(ctx, events.Event{Type: events.TypeSessionCreated, SessionID: sess.ID, Step: m.steps[0].Name})
	m.logger.Debug("Session created", "session_id", sess.ID)
	return m.view(sess, w), nil
}

// Get returns the current view of a session
func (m *Manager) Get(ctx context.Context, id string) (types.SessionView, error) {
	sess, w, err := m.load(ctx, id)
	if err != nil {
		return types.SessionView{}, err
	}
	return m.view(sess, w), nil
}

// Delete removes a session and everything generated for it
func (m *Manager) Delete(ctx context.Context, id string) error {
	l, release := m.acquire(id)
	defer release()
	l.state.Lock()
	defer l.state.Unlock()

	if err := m.store.Delete(ctx, id); err != nil {
		return err
	}
	m.metrics.RecordBusinessMetric(ctx, observability.MetricSessionDeleted, true)
	m.publish(ctx, events.Event{Type: events.TypeSessionDeleted, SessionID: id})
	return nil
}

// Advance merges fields into the session and moves to the next step when the
// current one is complete. The merged answers are saved even when required
// fields are still missing; the returned view then shows the unchanged step
// and the error is a *wizard.MissingFieldsError.
func (m *Manager) Advance(ctx context.Context, id string, fields wizard.FormState) (types.SessionView, error) {
	var from string
	view, err := m.transition(ctx, id, func(w *wizard.Wizard) error {
		step, err := w.CurrentStep()
		if err != nil {
			return err
		}
		from = step.Name
		return w.Advance(fields)
	})

	var missing *wizard.MissingFieldsError
	switch {
	case err == nil:
		m.metrics.RecordBusinessMetric(ctx, observability.MetricWizardAdvanced, true, attribute.String("step", from))
		m.publish(ctx, events.Event{
			Type:      events.TypeWizardAdvanced,
			SessionID: id,
			Step:      view.Step.Name,
			Data:      map[string]any{"from": from, "progress": view.Progress},
		})
	case stderrors.As(err, &missing):
		m.metrics.RecordBusinessMetric(ctx, observability.MetricWizardAdvanced, false, attribute.String("step", from))
	}
	return view, err
}

// Retreat moves the session one step back
func (m *Manager) Retreat(ctx context.Context, id string) (types.SessionView, error) {
	view, err := m.transition(ctx, id, func(w *wizard.Wizard) error {
		w.Retreat()
		return nil
	})
	if err != nil {
		return view, err
	}
	m.metrics.RecordBusinessMetric(ctx, observability.MetricWizardRetreated, true)
	m.publish(ctx, events.Event{Type: events.TypeWizardRetreated, SessionID: id, Step: view.Step.Name})
	return view, nil
}

// Reset clears the answers and artifacts of a session and returns to the first step
func (m *Manager) Reset(ctx context.Context, id string) (types.SessionView, error) {
	view, err := m.transition(ctx, id, func(w *wizard.Wizard) error {
		w.Reset()
		return nil
	}, func(sess *store.Session) {
		sess.Artifacts = map[string]types.Artifact{}
	})
	if err != nil {
		return view, err
	}
	m.metrics.RecordBusinessMetric(ctx, observability.MetricWizardReset, true)
	m.publish(ctx, events.Event{Type: events.TypeWizardReset, SessionID: id, Step: view.Step.Name})
	return view, nil
}

// transition applies fn to the restored wizard and saves the new snapshot.
// The snapshot is saved even when fn fails, so merged answers survive a
// rejected advance.
func (m *Manager) transition(ctx context.Context, id string, fn func(*wizard.Wizard) error, extra ...func(*store.Session)) (types.SessionView, error) {
	l, release := m.acquire(id)
	defer release()
	l.state.Lock()
	defer l.state.Unlock()

	sess, w, err := m.load(ctx, id)
	if err != nil {
		return types.SessionView{}, err
	}

	opErr := fn(w)
	sess.Snapshot = w.Snapshot()
	for _, f := range extra {
		f(sess)
	}
	sess.UpdatedAt = m.now()
	if err := m.store.Save(ctx, sess); err != nil {
		return types.SessionView{}, err
	}
	return m.view(sess, w), opErr
}

// Generate produces an artifact from the session's answers and stores it on
// the session. Every kind except the summary needs the wizard to be on its
// last step. Identical concurrent requests share one model call; onChunk
// callers always get their own call so they see every fragment.
func (m *Manager) Generate(ctx context.Context, id, kind string, opts types.GenerateOptions, onChunk func(string)) (*types.Artifact, error) {
	if !slices.Contains(ai.ArtifactKinds, kind) {
		return nil, errors.NewValidationError(errors.ErrCodeUnknownArtifact,
			fmt.Sprintf("unknown artifact kind %q", kind), nil).
			WithContext("supported", strings.Join(ai.ArtifactKinds, ", "))
	}
	if onChunk != nil {
		return m.generate(ctx, id, kind, opts, onChunk)
	}

	key := strings.Join([]string{id, kind, opts.Style, opts.Language, opts.Audience}, "\x00")
	ch := m.flight.DoChan(key, func() (any, error) {
		return m.generate(context.WithoutCancel(ctx), id, kind, opts, nil)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		artifact := *res.Val.(*types.Artifact)
		return &artifact, nil
	}
}

func (m *Manager) generate(ctx context.Context, id, kind string, opts types.GenerateOptions, onChunk func(string)) (*types.Artifact, error) {
	l, release := m.acquire(id)
	defer release()
	l.generate.Lock()
	defer l.generate.Unlock()

	_, w, err := m.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if kind != ai.KindSummary && !w.IsTerminal() {
		step, _ := w.CurrentStep()
		return nil, errors.NewConflictError(errors.ErrCodeNotAtSummary,
			"complete every wizard step before generating", nil).
			WithContext("step", step.Name).
			WithContext("kind", kind)
	}

	var artifact *types.Artifact
	err = m.metrics.TrackAIOperationWithTokens(ctx, kind, func(ctx context.Context) *observability.AIOperationResult {
		var genErr error
		artifact, genErr = m.generator.Generate(ctx, kind, w.Form(), opts, onChunk)
		return aiResult(artifact, genErr)
	})
	if err != nil {
		m.metrics.RecordBusinessMetric(ctx, observability.MetricArtifactGenerated, false, attribute.String("kind", kind))
		return nil, err
	}

	if err := m.storeArtifact(ctx, id, *artifact); err != nil {
		return nil, err
	}
	m.metrics.RecordBusinessMetric(ctx, observability.MetricArtifactGenerated, true, attribute.String("kind", kind))
	m.publish(ctx, events.Event{
		Type:      events.TypeArtifactGenerated,
		SessionID: id,
		Kind:      kind,
		Data:      map[string]any{"fileName": artifact.FileName, "length": len(artifact.Content)},
	})
	return artifact, nil
}

func (m *Manager) storeArtifact(ctx context.Context, id string, artifact types.Artifact) error {
	l, release := m.acquire(id)
	defer release()
	l.state.Lock()
	defer l.state.Unlock()

	sess, err := m.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if sess.Artifacts == nil {
		sess.Artifacts = map[string]types.Artifact{}
	}
	sess.Artifacts[artifact.Kind] = artifact
	sess.UpdatedAt = m.now()
	return m.store.Save(ctx, sess)
}

// Suggest proposes items of kind for the session's job title
func (m *Manager) Suggest(ctx context.Context, id, kind string) (*types.Suggestions, error) {
	_, w, err := m.load(ctx, id)
	if err != nil {
		return nil, err
	}
	jobTitle := w.Form().Text("job_title")
	if jobTitle == "" {
		return nil, errors.NewValidationError(errors.ErrCodeMissingField,
			"enter a job title before asking for suggestions", nil).
			WithContext("missing_fields", []string{"job_title"})
	}

	var out *types.Suggestions
	err = m.metrics.TrackAIOperationWithTokens(ctx, kind, func(ctx context.Context) *observability.AIOperationResult {
		var sugErr error
		out, sugErr = m.generator.Suggest(ctx, kind, jobTitle)
		return &observability.AIOperationResult{Error: sugErr, Empty: errors.IsCode(sugErr, errors.ErrCodeLLMEmptyResult)}
	})
	m.metrics.RecordBusinessMetric(ctx, observability.MetricSuggestionsCreated, err == nil, attribute.String("kind", kind))
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Artifact returns a previously generated artifact
func (m *Manager) Artifact(ctx context.Context, id, kind string) (types.Artifact, error) {
	sess, err := m.store.Get(ctx, id)
	if err != nil {
		return types.Artifact{}, err
	}
	a, ok := sess.Artifacts[kind]
	if !ok {
		return types.Artifact{}, errors.NewNotFoundError(errors.ErrCodeArtifactNotFound,
			fmt.Sprintf("no %s has been generated for this session", kind), nil).
			WithContext("session_id", id).
			WithContext("kind", kind)
	}
	return a, nil
}

// Count reports how many sessions are stored
func (m *Manager) Count(ctx context.Context) (int, error) {
	return m.store.Count(ctx)
}

// NewSweeper returns a sweeper over the manager's store that keeps the
// session metrics in step with expiries
func (m *Manager) NewSweeper(ttl, interval time.Duration) *store.Sweeper {
	return store.NewSweeper(m.store, ttl, interval, m.logger, func(n int) {
		m.metrics.RecordSessionsPurged(context.Background(), n)
	})
}

func (m *Manager) load(ctx context.Context, id string) (*store.Session, *wizard.Wizard, error) {
	sess, err := m.store.Get(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	w, err := wizard.New(m.steps)
	if err != nil {
		return nil, nil, err
	}
	if err := w.Restore(sess.Snapshot); err != nil {
		return nil, nil, err
	}
	return sess, w, nil
}

func (m *Manager) view(sess *store.Session, w *wizard.Wizard) types.SessionView {
	step, _ := w.CurrentStep()
	form := make(map[string]any, len(sess.Snapshot.Form))
	for k, v := range sess.Snapshot.Form {
		form[k] = v
	}
	var artifacts map[string]string
	if len(sess.Artifacts) > 0 {
		artifacts = make(map[string]string, len(sess.Artifacts))
		for kind, a := range sess.Artifacts {
			artifacts[kind] = a.FileName
		}
	}
	return types.SessionView{
		ID:        sess.ID,
		Step:      DescribeStep(w.Index(), step),
		Cursor:    w.Index(),
		StepCount: w.Len(),
		Progress:  w.Progress(),
		Terminal:  w.IsTerminal(),
		Form:      form,
		Artifacts: artifacts,
		CreatedAt: sess.CreatedAt,
		UpdatedAt: sess.UpdatedAt,
	}
}

func (m *Manager) publish(ctx context.Context, ev events.Event) {
	if ev.Time.IsZero() {
		ev.Time = m.now()
	}
	if err := m.publisher.Publish(ctx, ev); err != nil {
		m.logger.LogError(err, "Failed to publish event", "type", ev.Type, "session_id", ev.SessionID)
	}
}

func aiResult(artifact *types.Artifact, err error) *observability.AIOperationResult {
	res := &observability.AIOperationResult{Error: err}
	if err != nil {
		if appErr, ok := errors.As(err); ok && appErr.Code == errors.ErrCodeLLMEmptyResult {
			res.Empty = true
			if n, ok := appErr.Context["skipped_lines"].(int); ok {
				res.MalformedLines = n
			}
		}
		return res
	}
	res.MalformedLines = artifact.SkippedLines
	if u := artifact.Usage; u != nil {
		res.TokenUsage = &observability.TokenUsage{
			InputTokens:  u.InputTokens,
			OutputTokens: u.OutputTokens,
			TotalTokens:  u.TotalTokens,
		}
	}
	return res
}
