package functions

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/ggoodman/appfunctions-go/appfunctiondata"
	"github.com/ggoodman/appfunctions-go/internal/logctx"
	"github.com/ggoodman/appfunctions-go/metadata"
	"github.com/ggoodman/appfunctions-go/storage"
	"github.com/ggoodman/appfunctions-go/storage/memory"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
)

// Handler implements a function. params is validated against the
// function's parameters spec before Execute is called; the returned
// container must be built against the function's response spec, or be nil
// when the function declares no return value.
type Handler interface {
	Execute(ctx context.Context, params *appfunctiondata.Data) (*appfunctiondata.Data, error)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, params *appfunctiondata.Data) (*appfunctiondata.Data, error)

func (f HandlerFunc) Execute(ctx context.Context, params *appfunctiondata.Data) (*appfunctiondata.Data, error) {
	return f(ctx, params)
}

// ExecuteRequest names the function to run and carries its parameters.
type ExecuteRequest struct {
	TargetPackage string
	FunctionID    string
	// Parameters may be nil for functions without required parameters.
	Parameters *appfunctiondata.Data
}

// ExecuteResponse carries the result container of a successful execution.
type ExecuteResponse struct {
	ExecutionID string
	Result      *appfunctiondata.Data
}

type fnKey struct{ pkg, id string }

type entry struct {
	meta     metadata.FunctionMetadata
	params   *appfunctiondata.DataSpec
	response *appfunctiondata.DataSpec
	handler  Handler
}

// Service holds the functions of one or more packages and executes them.
type Service struct {
	mu      sync.RWMutex
	entries map[fnKey]*entry

	store    storage.Storage
	ownStore bool
	log      *slog.Logger
	reg      prometheus.Registerer
	metrics  *metrics
	changes  changeFeed
}

// NewService constructs a Service with defaults and applies options.
func NewService(opts ...Option) (*Service, error) {
	s := &Service{
		entries: make(map[fnKey]*entry),
		log:     slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = logctx.Wrap(s.log)
	if s.store == nil {
		st, err := memory.New(memory.Unbounded)
		if err != nil {
			return nil, err
		}
		s.store, s.ownStore = st, true
	}
	if s.reg != nil {
		m, err := newMetrics(s.reg)
		if err != nil {
			return nil, fmt.Errorf("register metrics: %w", err)
		}
		s.metrics = m
	}
	return s, nil
}

// Close releases the service's change subscribers and any storage it owns.
func (s *Service) Close() error {
	s.changes.close()
	if s.ownStore {
		return s.store.Close()
	}
	return nil
}

// Subscriber returns a channel signalled whenever the set of functions or an
// enabled state changes.
func (s *Service) Subscriber() <-chan struct{} { return s.changes.subscribe() }

func newEntry(meta metadata.FunctionMetadata, h Handler) (*entry, error) {
	if err := meta.Validate(); err != nil {
		return nil, &Error{Code: CodeInvalidArgument, Err: err}
	}
	return &entry{
		meta:     meta,
		params:   appfunctiondata.ParametersSpec(&meta),
		response: appfunctiondata.ResponseSpec(&meta),
		handler:  h,
	}, nil
}

// Register adds a function. It fails with CodeResourceAlreadyExists when the
// package already has a function with the same id.
func (s *Service) Register(meta metadata.FunctionMetadata, h Handler) error {
	e, err := newEntry(meta, h)
	if err != nil {
		return err
	}
	k := fnKey{meta.PackageName, meta.ID}
	s.mu.Lock()
	if _, exists := s.entries[k]; exists {
		s.mu.Unlock()
		return NewError(CodeResourceAlreadyExists, "function %s/%s is already registered", k.pkg, k.id)
	}
	s.entries[k] = e
	s.mu.Unlock()

	s.log.Debug("functions.register", slog.String("package", k.pkg), slog.String("id", k.id), slog.Bool("has_handler", h != nil))
	s.changes.publish()
	return nil
}

// Upsert installs metadata for each function, replacing earlier metadata but
// keeping any handler already attached.
func (s *Service) Upsert(metas ...metadata.FunctionMetadata) error {
	prepared := make([]*entry, 0, len(metas))
	for _, m := range metas {
		e, err := newEntry(m, nil)
		if err != nil {
			return err
		}
		prepared = append(prepared, e)
	}
	s.mu.Lock()
	for _, e := range prepared {
		k := fnKey{e.meta.PackageName, e.meta.ID}
		if old, ok := s.entries[k]; ok {
			e.handler = old.handler
		}
		s.entries[k] = e
	}
	s.mu.Unlock()
	if len(prepared) > 0 {
		s.changes.publish()
	}
	return nil
}

// SetHandler attaches h to an already known function.
func (s *Service) SetHandler(pkg, id string, h Handler) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[fnKey{pkg, id}]
	if !ok {
		return NewError(CodeFunctionNotFound, "function %s/%s not found", pkg, id)
	}
	ne := *e
	ne.handler = h
	s.entries[fnKey{pkg, id}] = &ne
	return nil
}

// Remove deletes a function and reports whether it existed. Persisted
// enabled state is left in place.
func (s *Service) Remove(pkg, id string) bool {
	s.mu.Lock()
	_, ok := s.entries[fnKey{pkg, id}]
	delete(s.entries, fnKey{pkg, id})
	s.mu.Unlock()
	if ok {
		s.changes.publish()
	}
	return ok
}

// Get returns the metadata of one function.
func (s *Service) Get(pkg, id string) (metadata.FunctionMetadata, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[fnKey{pkg, id}]
	if !ok {
		return metadata.FunctionMetadata{}, false
	}
	return e.meta, true
}

// List returns the metadata of every function in pkg, or of every function
// when pkg is empty, ordered by package then id.
func (s *Service) List(pkg string) []metadata.FunctionMetadata {
	s.mu.RLock()
	out := make([]metadata.FunctionMetadata, 0, len(s.entries))
	for k, e := range s.entries {
		if pkg == "" || k.pkg == pkg {
			out = append(out, e.meta)
		}
	}
	s.mu.RUnlock()
	slices.SortFunc(out, func(a, b metadata.FunctionMetadata) int {
		return cmp.Or(cmp.Compare(a.PackageName, b.PackageName), cmp.Compare(a.ID, b.ID))
	})
	return out
}

// NewParameters returns a builder for the parameters of a function.
func (s *Service) NewParameters(pkg, id string) (*appfunctiondata.Builder, error) {
	e, err := s.lookup(pkg, id)
	if err != nil {
		return nil, err
	}
	return appfunctiondata.NewBuilderForSpec(e.params), nil
}

// ParametersSpec returns the parameters spec of a function.
func (s *Service) ParametersSpec(pkg, id string) (*appfunctiondata.DataSpec, error) {
	e, err := s.lookup(pkg, id)
	if err != nil {
		return nil, err
	}
	return e.params, nil
}

func (s *Service) lookup(pkg, id string) (*entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[fnKey{pkg, id}]
	if !ok {
		return nil, NewError(CodeFunctionNotFound, "function %s/%s not found", pkg, id)
	}
	return e, nil
}

// SetEnabled persists an enabled-state override. StateDefault clears it.
func (s *Service) SetEnabled(ctx context.Context, pkg, id string, state EnabledState) error {
	if _, err := s.lookup(pkg, id); err != nil {
		return err
	}
	if state < StateDefault || state > StateDisabled {
		return NewError(CodeInvalidArgument, "invalid enabled state %d", int(state))
	}
	if err := saveState(ctx, s.store, pkg, id, state); err != nil {
		return &Error{Code: CodeSystemError, Err: err}
	}
	s.log.InfoContext(ctx, "functions.set_enabled", slog.String("package", pkg), slog.String("id", id), slog.String("state", state.String()))
	s.changes.publish()
	return nil
}

// EnabledState returns the persisted override of a function.
func (s *Service) EnabledState(ctx context.Context, pkg, id string) (EnabledState, error) {
	if _, err := s.lookup(pkg, id); err != nil {
		return StateDefault, err
	}
	st, err := loadState(ctx, s.store, pkg, id)
	if err != nil {
		return StateDefault, &Error{Code: CodeSystemError, Err: err}
	}
	return st, nil
}

// IsEnabled resolves the override against the function's default.
func (s *Service) IsEnabled(ctx context.Context, pkg, id string) (bool, error) {
	e, err := s.lookup(pkg, id)
	if err != nil {
		return false, err
	}
	st, err := loadState(ctx, s.store, pkg, id)
	if err != nil {
		return false, &Error{Code: CodeSystemError, Err: err}
	}
	switch st {
	case StateEnabled:
		return true, nil
	case StateDisabled:
		return false, nil
	default:
		return e.meta.EnabledByDefault, nil
	}
}

// Execute runs a function. Every failure is reported as an *Error.
func (s *Service) Execute(ctx context.Context, req ExecuteRequest) (*ExecuteResponse, error) {
	executionID := uuid.NewString()
	ctx = logctx.WithFunctionCallData(ctx, &logctx.FunctionCallData{
		Package:     req.TargetPackage,
		FunctionID:  req.FunctionID,
		ExecutionID: executionID,
	})

	start := time.Now()
	result, ferr := s.execute(ctx, req)
	s.metrics.observe(req.TargetPackage, req.FunctionID, ferr, time.Since(start))

	if ferr != nil {
		s.log.InfoContext(ctx, "functions.execute.failed", slog.String("code", ferr.Code.String()), slog.String("err", ferr.Error()))
		return nil, ferr
	}
	s.log.DebugContext(ctx, "functions.execute.ok", slog.Duration("elapsed", time.Since(start)))
	return &ExecuteResponse{ExecutionID: executionID, Result: result}, nil
}

func (s *Service) execute(ctx context.Context, req ExecuteRequest) (*appfunctiondata.Data, *Error) {
	e, err := s.lookup(req.TargetPackage, req.FunctionID)
	if err != nil {
		return nil, AsError(err, CodeFunctionNotFound)
	}
	enabled, err := s.IsEnabled(ctx, req.TargetPackage, req.FunctionID)
	if err != nil {
		return nil, AsError(err, CodeSystemError)
	}
	if !enabled {
		return nil, NewError(CodeDisabled, "function %s/%s is disabled", req.TargetPackage, req.FunctionID)
	}
	if e.handler == nil {
		return nil, NewError(CodeFunctionNotFound, "function %s/%s has no implementation", req.TargetPackage, req.FunctionID)
	}

	params := req.Parameters
	if params == nil {
		params = appfunctiondata.NewBuilderForSpec(e.params).Build()
	}
	if spec, ok := params.Spec(); !ok || !spec.Equal(e.params) {
		return nil, NewError(CodeInvalidArgument, "parameters were not built against the parameters of %s", req.FunctionID)
	}
	if missing := params.MissingRequired(); len(missing) > 0 {
		return nil, NewError(CodeInvalidArgument, "missing required parameters %v", missing)
	}
	if err := ctx.Err(); err != nil {
		return nil, AsError(err, CodeCancelled)
	}

	result, err := s.invoke(ctx, e.handler, params)
	if err != nil {
		if ctx.Err() != nil {
			return nil, AsError(ctx.Err(), CodeCancelled)
		}
		var fe *Error
		if errors.As(err, &fe) {
			return nil, fe
		}
		return nil, &Error{Code: CodeAppUnknownError, Err: err}
	}
	return checkResult(e, result)
}

func (s *Service) invoke(ctx context.Context, h Handler, params *appfunctiondata.Data) (res *appfunctiondata.Data, err error) {
	defer func() {
		if r := recover(); r != nil {
			s.log.ErrorContext(ctx, "functions.execute.panic", slog.Any("panic", r))
			res, err = nil, fmt.Errorf("handler panicked: %v", r)
		}
	}()
	return h.Execute(ctx, params)
}

func checkResult(e *entry, result *appfunctiondata.Data) (*appfunctiondata.Data, *Error) {
	if result == nil {
		if e.meta.Response.ValueType == nil || e.meta.Response.ValueType.IsNullable() {
			return appfunctiondata.NewBuilderForSpec(e.response).Build(), nil
		}
		return nil, NewError(CodeAppUnknownError, "function returned no result")
	}
	if spec, ok := result.Spec(); !ok || !spec.Equal(e.response) {
		return nil, NewError(CodeAppUnknownError, "result was not built against the response of %s", e.meta.ID)
	}
	if missing := result.MissingRequired(); len(missing) > 0 {
		return nil, NewError(CodeAppUnknownError, "result is missing %v", missing)
	}
	return result, nil
}

// NewResult returns a builder for the result container of meta. The return
// value goes under metadata.ReturnValueKey.
func NewResult(meta *metadata.FunctionMetadata) *appfunctiondata.Builder {
	return appfunctiondata.NewBuilderForSpec(appfunctiondata.ResponseSpec(meta))
}
