package loader

import (
	"context"
	"errors"
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"net/http"
	"os"
	"reflect"

	"github.com/joeydtaylor/enroute/pkg/chain"
	"github.com/traefik/yaegi/interp"
	"github.com/traefik/yaegi/stdlib"
)

// Exported names an artifact may declare.
const (
	SymbolHandler  = "Handler"
	SymbolHandlers = "Handlers"
)

var (
	errorType  = reflect.TypeOf((*error)(nil)).Elem()
	writerType = reflect.TypeOf((*http.ResponseWriter)(nil)).Elem()
	reqType    = reflect.TypeOf((*http.Request)(nil))
)

// Script loads Go source artifacts through the yaegi interpreter. Every Load
// evaluates the file in a fresh interpreter, so a changed file always yields
// the new code.
//
// An artifact declares either
//
//	func Handler(w http.ResponseWriter, r *http.Request) error
//
// or a slice of such functions named Handlers. Plain
// func(http.ResponseWriter, *http.Request) values are accepted too.
type Script struct {
	// Symbols are made importable by artifacts next to the standard library.
	Symbols interp.Exports
	// Unrestricted exposes os/exec and the real syscall package.
	Unrestricted bool
}

// NewScript returns a Script loader with the standard library available.
func NewScript() *Script { return &Script{} }

func (s *Script) Load(ctx context.Context, path string) (steps []chain.Step, err error) {
	if err := ctx.Err(); err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}

	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, path, src, parser.AllErrors)
	if err != nil {
		return nil, &LoadError{Path: path, Err: fmt.Errorf("syntax: %w", err)}
	}
	symbol := declared(file)
	if symbol == "" {
		return nil, &LoadError{Path: path, Err: fmt.Errorf("%w: declare %s or %s", ErrShape, SymbolHandler, SymbolHandlers)}
	}

	// interpreted init code may panic
	defer func() {
		if rec := recover(); rec != nil {
			steps, err = nil, &LoadError{Path: path, Err: fmt.Errorf("eval: panic: %v", rec)}
		}
	}()

	i := interp.New(interp.Options{Unrestricted: s.Unrestricted})
	if err := i.Use(stdlib.Symbols); err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}
	if s.Symbols != nil {
		if err := i.Use(s.Symbols); err != nil {
			return nil, &LoadError{Path: path, Err: err}
		}
	}
	if _, err := i.Eval(string(src)); err != nil {
		return nil, &LoadError{Path: path, Err: fmt.Errorf("eval: %w", err)}
	}

	ref := symbol
	if pkg := file.Name.Name; pkg != "main" {
		ref = pkg + "." + symbol
	}
	v, err := i.Eval(ref)
	if err != nil {
		return nil, &LoadError{Path: path, Err: fmt.Errorf("eval %s: %w", ref, err)}
	}

	if symbol == SymbolHandler {
		st, err := asStep(v)
		if err != nil {
			return nil, &LoadError{Path: path, Err: fmt.Errorf("%s: %w", symbol, err)}
		}
		return []chain.Step{st}, nil
	}
	steps, err = asSteps(v)
	if err != nil {
		return nil, &LoadError{Path: path, Err: fmt.Errorf("%s: %w", symbol, err)}
	}
	return steps, nil
}

// declared returns the top-level handler symbol the file declares, preferring
// Handler over Handlers.
func declared(f *ast.File) string {
	var found string
	for _, d := range f.Decls {
		switch d := d.(type) {
		case *ast.FuncDecl:
			if d.Recv == nil && d.Name.Name == SymbolHandler {
				return SymbolHandler
			}
		case *ast.GenDecl:
			if d.Tok != token.VAR {
				continue
			}
			for _, spec := range d.Specs {
				vs, ok := spec.(*ast.ValueSpec)
				if !ok {
					continue
				}
				for _, n := range vs.Names {
					switch n.Name {
					case SymbolHandler:
						return SymbolHandler
					case SymbolHandlers:
						found = SymbolHandlers
					}
				}
			}
		}
	}
	return found
}

func asSteps(v reflect.Value) ([]chain.Step, error) {
	v = unwrap(v)
	if !v.IsValid() || (v.Kind() != reflect.Slice && v.Kind() != reflect.Array) {
		return nil, fmt.Errorf("%w: want a slice of handlers, got %s", ErrShape, kindOf(v))
	}
	if v.Len() == 0 {
		return nil, fmt.Errorf("%w: empty handler list", ErrShape)
	}
	out := make([]chain.Step, 0, v.Len())
	for i := 0; i < v.Len(); i++ {
		st, err := asStep(v.Index(i))
		if err != nil {
			return nil, fmt.Errorf("element %d: %w", i, err)
		}
		out = append(out, st)
	}
	return out, nil
}

func asStep(v reflect.Value) (chain.Step, error) {
	v = unwrap(v)
	if !v.IsValid() || v.Kind() != reflect.Func || v.IsNil() {
		return nil, fmt.Errorf("%w: want a function, got %s", ErrShape, kindOf(v))
	}
	if v.CanInterface() {
		switch fn := v.Interface().(type) {
		case func(http.ResponseWriter, *http.Request) error:
			return fn, nil
		case chain.Step:
			return fn, nil
		case func(http.ResponseWriter, *http.Request):
			return func(w http.ResponseWriter, r *http.Request) error {
				fn(w, r)
				return nil
			}, nil
		}
	}

	t := v.Type()
	if t.NumIn() != 2 || !writerType.AssignableTo(t.In(0)) || !reqType.AssignableTo(t.In(1)) {
		return nil, fmt.Errorf("%w: unexpected signature %s", ErrShape, t)
	}
	switch {
	case t.NumOut() == 0:
	case t.NumOut() == 1 && t.Out(0).Implements(errorType):
	default:
		return nil, fmt.Errorf("%w: unexpected signature %s", ErrShape, t)
	}
	return func(w http.ResponseWriter, r *http.Request) error {
		out := v.Call([]reflect.Value{reflect.ValueOf(&w).Elem(), reflect.ValueOf(r)})
		if len(out) == 0 {
			return nil
		}
		if err, ok := out[0].Interface().(error); ok && err != nil {
			return err
		}
		return nil
	}, nil
}

func unwrap(v reflect.Value) reflect.Value {
	for v.IsValid() && v.Kind() == reflect.Interface && !v.IsNil() {
		v = v.Elem()
	}
	return v
}

func kindOf(v reflect.Value) string {
	if !v.IsValid() {
		return "nothing"
	}
	return v.Kind().String()
}

// IsShape reports whether err came from an artifact with the wrong exports.
func IsShape(err error) bool { return errors.Is(err, ErrShape) }
