package functions

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/ggoodman/appfunctions-go/appfunctiondata"
	"github.com/ggoodman/appfunctions-go/metadata"
	"github.com/ggoodman/appfunctions-go/storage/memory"
	"github.com/prometheus/client_golang/prometheus"
)

const notesPkg = "com.example.notes"

func createNoteMeta() metadata.FunctionMetadata {
	return metadata.FunctionMetadata{
		ID:               "createNote",
		PackageName:      notesPkg,
		EnabledByDefault: true,
		Parameters: []metadata.ParameterMetadata{
			{Name: "title", IsRequired: true, DataType: metadata.String()},
			{Name: "pinned", DataType: metadata.Boolean()},
		},
		Response: metadata.ResponseMetadata{ValueType: metadata.String()},
	}
}

func echoTitle(meta metadata.FunctionMetadata) HandlerFunc {
	return func(ctx context.Context, p *appfunctiondata.Data) (*appfunctiondata.Data, error) {
		title, err := p.GetString("title")
		if err != nil {
			return nil, err
		}
		b := NewResult(&meta)
		if err := b.SetString(metadata.ReturnValueKey, "note:"+title); err != nil {
			return nil, err
		}
		return b.Build(), nil
	}
}

func newService(t *testing.T, opts ...Option) *Service {
	t.Helper()
	s, err := NewService(opts...)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func codeOf(t *testing.T, err error) ErrorCode {
	t.Helper()
	var fe *Error
	if !errors.As(err, &fe) {
		t.Fatalf("expected *Error, got %T: %v", err, err)
	}
	return fe.Code
}

func titleParams(t *testing.T, s *Service, title string) *appfunctiondata.Data {
	t.Helper()
	b, err := s.NewParameters(notesPkg, "createNote")
	if err != nil {
		t.Fatalf("NewParameters: %v", err)
	}
	if err := b.SetString("title", title); err != nil {
		t.Fatalf("SetString: %v", err)
	}
	return b.Build()
}

func TestExecute(t *testing.T) {
	s := newService(t)
	meta := createNoteMeta()
	if err := s.Register(meta, echoTitle(meta)); err != nil {
		t.Fatalf("Register: %v", err)
	}

	res, err := s.Execute(context.Background(), ExecuteRequest{
		TargetPackage: notesPkg,
		FunctionID:    "createNote",
		Parameters:    titleParams(t, s, "Groceries"),
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if res.ExecutionID == "" {
		t.Fatalf("execution id should be set")
	}
	got, err := res.Result.GetString(metadata.ReturnValueKey)
	if err != nil || got != "note:Groceries" {
		t.Fatalf("return value = %q, %v", got, err)
	}
}

func TestExecuteFailures(t *testing.T) {
	s := newService(t)
	meta := createNoteMeta()
	if err := s.Register(meta, echoTitle(meta)); err != nil {
		t.Fatalf("Register: %v", err)
	}
	ctx := context.Background()

	t.Run("not found", func(t *testing.T) {
		_, err := s.Execute(ctx, ExecuteRequest{TargetPackage: notesPkg, FunctionID: "nope"})
		if codeOf(t, err) != CodeFunctionNotFound {
			t.Fatalf("unexpected %v", err)
		}
	})

	t.Run("missing required", func(t *testing.T) {
		_, err := s.Execute(ctx, ExecuteRequest{TargetPackage: notesPkg, FunctionID: "createNote"})
		if codeOf(t, err) != CodeInvalidArgument || !strings.Contains(err.Error(), "title") {
			t.Fatalf("unexpected %v", err)
		}
	})

	t.Run("foreign parameters", func(t *testing.T) {
		b := appfunctiondata.NewParametersBuilder([]metadata.ParameterMetadata{{Name: "title", DataType: metadata.Long()}}, metadata.Components{})
		_, err := s.Execute(ctx, ExecuteRequest{TargetPackage: notesPkg, FunctionID: "createNote", Parameters: b.Build()})
		if codeOf(t, err) != CodeInvalidArgument {
			t.Fatalf("unexpected %v", err)
		}
	})

	t.Run("cancelled", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		_, err := s.Execute(cctx, ExecuteRequest{TargetPackage: notesPkg, FunctionID: "createNote", Parameters: titleParams(t, s, "x")})
		if codeOf(t, err) != CodeCancelled || !errors.Is(err, context.Canceled) {
			t.Fatalf("unexpected %v", err)
		}
	})
}

func TestHandlerErrors(t *testing.T) {
	s := newService(t)
	ctx := context.Background()
	cases := []struct {
		id      string
		handler HandlerFunc
		want    ErrorCode
	}{
		{"plain", func(context.Context, *appfunctiondata.Data) (*appfunctiondata.Data, error) {
			return nil, errors.New("disk on fire")
		}, CodeAppUnknownError},
		{"coded", func(context.Context, *appfunctiondata.Data) (*appfunctiondata.Data, error) {
			return nil, NewError(CodeLimitExceeded, "too many notes")
		}, CodeLimitExceeded},
		{"panic", func(context.Context, *appfunctiondata.Data) (*appfunctiondata.Data, error) {
			panic("boom")
		}, CodeAppUnknownError},
		{"nil result", func(context.Context, *appfunctiondata.Data) (*appfunctiondata.Data, error) {
			return nil, nil
		}, CodeAppUnknownError},
		{"wrong result", func(context.Context, *appfunctiondata.Data) (*appfunctiondata.Data, error) {
			return appfunctiondata.NewLegacyBuilder("x", "1").Build(), nil
		}, CodeAppUnknownError},
	}
	for _, tc := range cases {
		meta := createNoteMeta()
		meta.ID = tc.id
		meta.Parameters = nil
		if err := s.Register(meta, tc.handler); err != nil {
			t.Fatalf("Register %s: %v", tc.id, err)
		}
		_, err := s.Execute(ctx, ExecuteRequest{TargetPackage: notesPkg, FunctionID: tc.id})
		if got := codeOf(t, err); got != tc.want {
			t.Fatalf("%s: code = %v, want %v (%v)", tc.id, got, tc.want, err)
		}
	}
}

func TestNoReturnValue(t *testing.T) {
	s := newService(t)
	meta := metadata.FunctionMetadata{ID: "ping", PackageName: notesPkg, EnabledByDefault: true}
	err := s.Register(meta, HandlerFunc(func(context.Context, *appfunctiondata.Data) (*appfunctiondata.Data, error) {
		return nil, nil
	}))
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	res, err := s.Execute(context.Background(), ExecuteRequest{TargetPackage: notesPkg, FunctionID: "ping"})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if res.Result.ContainsKey(metadata.ReturnValueKey) {
		t.Fatalf("no return value expected")
	}
}

func TestEnabledState(t *testing.T) {
	store, err := memory.New(16)
	if err != nil {
		t.Fatalf("memory.New: %v", err)
	}
	defer store.Close()
	s := newService(t, WithStorage(store))
	meta := createNoteMeta()
	meta.EnabledByDefault = false
	if err := s.Register(meta, echoTitle(meta)); err != nil {
		t.Fatalf("Register: %v", err)
	}
	ctx := context.Background()
	sub := s.Subscriber()

	if ok, err := s.IsEnabled(ctx, notesPkg, "createNote"); err != nil || ok {
		t.Fatalf("IsEnabled = %v, %v; want false by default", ok, err)
	}
	_, err = s.Execute(ctx, ExecuteRequest{TargetPackage: notesPkg, FunctionID: "createNote", Parameters: titleParams(t, s, "x")})
	if codeOf(t, err) != CodeDisabled {
		t.Fatalf("unexpected %v", err)
	}

	if err := s.SetEnabled(ctx, notesPkg, "createNote", StateEnabled); err != nil {
		t.Fatalf("SetEnabled: %v", err)
	}
	select {
	case <-sub:
	case <-time.After(time.Second):
		t.Fatalf("SetEnabled should notify subscribers")
	}
	if st, _ := s.EnabledState(ctx, notesPkg, "createNote"); st != StateEnabled {
		t.Fatalf("state = %v", st)
	}
	if _, err := s.Execute(ctx, ExecuteRequest{TargetPackage: notesPkg, FunctionID: "createNote", Parameters: titleParams(t, s, "x")}); err != nil {
		t.Fatalf("Execute after enable: %v", err)
	}

	// state survives a new service over the same storage
	s2 := newService(t, WithStorage(store))
	if err := s2.Upsert(meta); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if ok, _ := s2.IsEnabled(ctx, notesPkg, "createNote"); !ok {
		t.Fatalf("enabled state should be persisted")
	}

	if err := s.SetEnabled(ctx, notesPkg, "createNote", StateDefault); err != nil {
		t.Fatalf("SetEnabled default: %v", err)
	}
	if ok, _ := s.IsEnabled(ctx, notesPkg, "createNote"); ok {
		t.Fatalf("default should fall back to EnabledByDefault")
	}
	if err := s.SetEnabled(ctx, notesPkg, "missing", StateEnabled); codeOf(t, err) != CodeFunctionNotFound {
		t.Fatalf("unexpected %v", err)
	}
}

func TestDefaultStorageKeepsOverrides(t *testing.T) {
	s := newService(t)
	meta := createNoteMeta()
	if err := s.Register(meta, echoTitle(meta)); err != nil {
		t.Fatalf("Register: %v", err)
	}
	ctx := context.Background()
	if err := s.SetEnabled(ctx, notesPkg, "createNote", StateDisabled); err != nil {
		t.Fatalf("SetEnabled: %v", err)
	}
	// overrides for many other functions must not push this one out
	for i := range 5000 {
		if err := saveState(ctx, s.store, notesPkg, fmt.Sprintf("fn%d", i), StateEnabled); err != nil {
			t.Fatalf("saveState: %v", err)
		}
	}
	if st, err := s.EnabledState(ctx, notesPkg, "createNote"); err != nil || st != StateDisabled {
		t.Fatalf("state = %v, %v; want disabled", st, err)
	}
}

func TestRegistryOperations(t *testing.T) {
	s := newService(t)
	meta := createNoteMeta()
	if err := s.Register(meta, nil); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := s.Register(meta, nil); codeOf(t, err) != CodeResourceAlreadyExists {
		t.Fatalf("unexpected %v", err)
	}

	_, err := s.Execute(context.Background(), ExecuteRequest{TargetPackage: notesPkg, FunctionID: "createNote", Parameters: titleParams(t, s, "x")})
	if codeOf(t, err) != CodeFunctionNotFound {
		t.Fatalf("function without handler should not be found, got %v", err)
	}
	if err := s.SetHandler(notesPkg, "createNote", echoTitle(meta)); err != nil {
		t.Fatalf("SetHandler: %v", err)
	}

	updated := meta
	updated.Description = "Creates a note"
	if err := s.Upsert(updated); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if got, _ := s.Get(notesPkg, "createNote"); got.Description != "Creates a note" {
		t.Fatalf("Upsert should replace metadata")
	}
	if _, err := s.Execute(context.Background(), ExecuteRequest{TargetPackage: notesPkg, FunctionID: "createNote", Parameters: titleParams(t, s, "x")}); err != nil {
		t.Fatalf("Upsert should keep the handler: %v", err)
	}

	other := createNoteMeta()
	other.PackageName = "com.example.mail"
	if err := s.Upsert(other); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if all := s.List(""); len(all) != 2 || all[0].PackageName != "com.example.mail" {
		t.Fatalf("List(\"\") = %+v", all)
	}
	if notes := s.List(notesPkg); len(notes) != 1 {
		t.Fatalf("List(notes) = %+v", notes)
	}
	if !s.Remove("com.example.mail", "createNote") || s.Remove("com.example.mail", "createNote") {
		t.Fatalf("Remove should report existence")
	}

	bad := createNoteMeta()
	bad.Parameters = append(bad.Parameters, metadata.ParameterMetadata{Name: "x", DataType: metadata.Ref("com.example.Missing")})
	if err := s.Upsert(bad); codeOf(t, err) != CodeInvalidArgument {
		t.Fatalf("invalid metadata should be rejected, got %v", err)
	}
}

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	s := newService(t, WithMetricsRegisterer(reg))
	meta := createNoteMeta()
	if err := s.Register(meta, echoTitle(meta)); err != nil {
		t.Fatalf("Register: %v", err)
	}
	ctx := context.Background()
	_, _ = s.Execute(ctx, ExecuteRequest{TargetPackage: notesPkg, FunctionID: "createNote", Parameters: titleParams(t, s, "x")})
	_, _ = s.Execute(ctx, ExecuteRequest{TargetPackage: notesPkg, FunctionID: "createNote"})

	// a second service shares the collectors
	if _, err := NewService(WithMetricsRegisterer(reg)); err != nil {
		t.Fatalf("second service: %v", err)
	}

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	statuses := map[string]float64{}
	for _, mf := range families {
		if mf.GetName() != "appfunctions_functions_executions_total" {
			continue
		}
		for _, m := range mf.GetMetric() {
			for _, lp := range m.GetLabel() {
				if lp.GetName() == "status" {
					statuses[lp.GetValue()] += m.GetCounter().GetValue()
				}
			}
		}
	}
	if statuses["ok"] != 1 || statuses["invalid_argument"] != 1 {
		t.Fatalf("statuses = %v", statuses)
	}
}

func TestErrorCategories(t *testing.T) {
	cases := map[ErrorCode]Category{
		CodeDenied:          CategoryRequest,
		CodeLimitExceeded:   CategoryRequest,
		CodeCancelled:       CategorySystem,
		CodeAppUnknownError: CategoryApp,
		ErrorCode(42):       CategoryUnknown,
	}
	for code, want := range cases {
		if got := code.Category(); got != want {
			t.Fatalf("%v.Category() = %v, want %v", code, got, want)
		}
	}
	err := AsError(&appfunctiondata.InvalidArgumentError{Key: "k", Reason: "r"}, CodeSystemError)
	if err.Code != CodeInvalidArgument {
		t.Fatalf("AsError = %v", err)
	}
	if AsError(nil, CodeSystemError) != nil {
		t.Fatalf("AsError(nil) should be nil")
	}
}
