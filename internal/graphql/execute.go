package graphql

import (
	"context"
	"errors"

	"github.com/vektah/gqlparser/v2"
	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/gqlerror"
	"github.com/vektah/gqlparser/v2/validator"
	"go.uber.org/zap"
)

// Request is a GraphQL request body.
type Request struct {
	Query         string         `json:"query"`
	OperationName string         `json:"operationName,omitempty"`
	Variables     map[string]any `json:"variables,omitempty"`
}

// Response is a GraphQL response body.
type Response struct {
	Data   *OrderedMap   `json:"data,omitempty"`
	Errors gqlerror.List `json:"errors,omitempty"`
}

// Execute validates req against the schema and runs the selected operation.
// Field errors are reported next to the partial data.
func (r *Resolver) Execute(ctx context.Context, req Request) *Response {
	doc, errs := gqlparser.LoadQuery(schema, req.Query)
	if len(errs) > 0 {
		return &Response{Errors: errs}
	}
	op := doc.Operations.ForName(req.OperationName)
	if op == nil {
		if req.OperationName == "" {
			return &Response{Errors: gqlerror.List{gqlerror.Errorf("operation name is required when the document has several operations")}}
		}
		return &Response{Errors: gqlerror.List{gqlerror.Errorf("operation %q not found", req.OperationName)}}
	}
	vars, err := validator.VariableValues(schema, op, req.Variables)
	if err != nil {
		var gerr *gqlerror.Error
		if !errors.As(err, &gerr) {
			gerr = gqlerror.Errorf("%s", err)
		}
		return &Response{Errors: gqlerror.List{gerr}}
	}

	fields := r.query
	if op.Operation == ast.Mutation {
		fields = r.mutation
	} else if op.Operation != ast.Query {
		return &Response{Errors: gqlerror.List{gqlerror.Errorf("%s operations are not supported", op.Operation)}}
	}

	ex := &execution{resolver: r, vars: vars}
	selected := ex.collect(op.SelectionSet)
	data := newOrderedMap(len(selected))
	for _, f := range selected {
		key := responseKey(f)
		path := ast.Path{ast.PathName(key)}
		if f.Name == "__typename" {
			data.Set(key, typeName(op.Operation))
			continue
		}
		fn, ok := fields[f.Name]
		if !ok {
			ex.fail(gqlerror.ErrorPathf(path, "no resolver for field %s", f.Name))
			data.Set(key, nil)
			continue
		}
		v, err := fn(ctx, f.ArgumentMap(vars))
		if err != nil {
			r.Logger.Ctx(ctx).Debug("GraphQL field failed", zap.String("field", f.Name), zap.Error(err))
			ex.fail(errorToGraphQL(err, path))
			data.Set(key, nil)
			continue
		}
		data.Set(key, ex.complete(ctx, v, f.SelectionSet, path))
	}
	return &Response{Data: data, Errors: ex.errors}
}

type execution struct {
	resolver *Resolver
	vars     map[string]any
	errors   gqlerror.List
}

func (ex *execution) fail(err *gqlerror.Error) {
	ex.errors = append(ex.errors, err)
}

// complete projects a resolved value onto the selection set.
func (ex *execution) complete(ctx context.Context, v any, sel ast.SelectionSet, path ast.Path) any {
	switch x := v.(type) {
	case nil:
		return nil
	case lazy:
		resolved, err := x(ctx)
		if err != nil {
			ex.fail(errorToGraphQL(err, path))
			return nil
		}
		return ex.complete(ctx, resolved, sel, path)
	case object:
		fields := ex.collect(sel)
		out := newOrderedMap(len(fields))
		for _, f := range fields {
			key := responseKey(f)
			out.Set(key, ex.complete(ctx, x[f.Name], f.SelectionSet, append(path[:len(path):len(path)], ast.PathName(key))))
		}
		return out
	case []object:
		out := make([]any, len(x))
		for i, item := range x {
			out[i] = ex.complete(ctx, item, sel, append(path[:len(path):len(path)], ast.PathIndex(i)))
		}
		return out
	default:
		return v
	}
}

// collect flattens fragments and drops fields excluded by @skip or @include.
func (ex *execution) collect(sel ast.SelectionSet) []*ast.Field {
	var fields []*ast.Field
	for _, s := range sel {
		switch s := s.(type) {
		case *ast.Field:
			if ex.included(s.Directives) {
				fields = append(fields, s)
			}
		case *ast.InlineFragment:
			if ex.included(s.Directives) {
				fields = append(fields, ex.collect(s.SelectionSet)...)
			}
		case *ast.FragmentSpread:
			if ex.included(s.Directives) && s.Definition != nil {
				fields = append(fields, ex.collect(s.Definition.SelectionSet)...)
			}
		}
	}
	return fields
}

func (ex *execution) included(dirs ast.DirectiveList) bool {
	if d := dirs.ForName("skip"); d != nil {
		if skip, _ := d.ArgumentMap(ex.vars)["if"].(bool); skip {
			return false
		}
	}
	if d := dirs.ForName("include"); d != nil {
		if include, _ := d.ArgumentMap(ex.vars)["if"].(bool); !include {
			return false
		}
	}
	return true
}

func responseKey(f *ast.Field) string {
	if f.Alias != "" {
		return f.Alias
	}
	return f.Name
}

func typeName(op ast.Operation) string {
	if op == ast.Mutation {
		return "Mutation"
	}
	return "Query"
}
