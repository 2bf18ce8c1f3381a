package script

import (
	"fmt"

	"github.com/expr-lang/expr"

	"github.com/roach88/recstream/internal/record"
)

func (sc *scope) functions() []expr.Option {
	return []expr.Option{
		expr.Function("get", sc.guard(func(params ...any) (any, error) {
			v, err := sc.resolve(params[0].(string))
			if err != nil || v == nil {
				return nil, err
			}
			r, err := v.Lower()
			if err != nil {
				return nil, err
			}
			return record.ToNative(r), nil
		}),
			new(func(string) any)),
		expr.Function("set", sc.guard(func(params ...any) (any, error) {
			p, err := record.ParsePath(params[0].(string))
			if err != nil {
				return nil, err
			}
			r, err := record.FromNative(params[1])
			if err != nil {
				return nil, err
			}
			return params[1], sc.view.SetPath(p, record.Lift(r))
		}),
			new(func(string, any) any)),
		expr.Function("del", sc.guard(func(params ...any) (any, error) {
			p, err := record.ParsePath(params[0].(string))
			if err != nil {
				return nil, err
			}
			old, err := sc.view.DeletePath(p)
			if err != nil || old == nil {
				return nil, err
			}
			r, err := old.Lower()
			if err != nil {
				return nil, err
			}
			return record.ToNative(r), nil
		}),
			new(func(string) any)),
		expr.Function("push", sc.guard(func(params ...any) (any, error) {
			p, err := record.ParsePath(params[0].(string))
			if err != nil {
				return nil, err
			}
			r, err := record.FromNative(params[1])
			if err != nil {
				return nil, err
			}
			arr, err := sc.view.Resolve(p)
			if err != nil {
				return nil, err
			}
			if arr == nil {
				arr = record.Lift(record.Array())
				if err := sc.view.SetPath(p, arr); err != nil {
					return nil, err
				}
			}
			if err := arr.Append(record.Lift(r)); err != nil {
				return nil, fmt.Errorf("push %s: %w", params[0], err)
			}
			return arr.Len(), nil
		}),
			new(func(string, any) int)),
		expr.Function("alias", sc.guard(func(params ...any) (any, error) {
			dst, err := record.ParsePath(params[0].(string))
			if err != nil {
				return nil, err
			}
			src, err := sc.resolve(params[1].(string))
			if err != nil {
				return nil, err
			}
			if src == nil {
				return nil, fmt.Errorf("alias: nothing at %q", params[1])
			}
			return nil, sc.view.SetPath(dst, src)
		}),
			new(func(string, string) any)),
	}
}

// guard records the first helper failure; eval reports it in place of the
// error expr returns.
func (sc *scope) guard(fn func(params ...any) (any, error)) func(params ...any) (any, error) {
	return func(params ...any) (any, error) {
		out, err := fn(params...)
		if err != nil && sc.err == nil {
			sc.err = err
		}
		return out, err
	}
}

func (sc *scope) resolve(path string) (*record.Value, error) {
	p, err := record.ParsePath(path)
	if err != nil {
		return nil, err
	}
	return sc.view.Resolve(p)
}
