// Package functions hosts app functions in process: it keeps each function's
// metadata next to its Handler, gates execution on the persisted enabled
// state, validates parameter and result containers against the function's
// specs and reports every failure as an *Error carrying an ErrorCode.
//
// Example:
//
//	svc, _ := functions.NewService(functions.WithStorage(store))
//	_ = svc.Register(meta, functions.HandlerFunc(func(ctx context.Context, p *appfunctiondata.Data) (*appfunctiondata.Data, error) {
//	    title, err := p.GetString("title")
//	    ...
//	}))
//	params, _ := svc.NewParameters(meta.PackageName, meta.ID)
//	_ = params.SetString("title", "Groceries")
//	res, err := svc.Execute(ctx, functions.ExecuteRequest{
//	    TargetPackage: meta.PackageName,
//	    FunctionID:    meta.ID,
//	    Parameters:    params.Build(),
//	})
//
// Results carry the return value under metadata.ReturnValueKey; NewResult
// returns a builder for them.
package functions
