package main

import (
	"fmt"
	"strconv"
	"strings"

	"go.bytecodealliance.org/wit"

	"github.com/wippyai/untypedvec"
)

type point struct {
	X, Y int32
}

// elemKind adapts one element type to the demo's untyped command surface.
type elemKind struct {
	name string
	// guest is the WIT type a guest reads the elements as; nil when the
	// type cannot live in linear memory.
	guest  wit.Type
	open   func(drops *int, opts ...untypedvec.Option) *untypedvec.Vec
	parse  func(s string) (any, error)
	sample func(i int) any
	push   func(v *untypedvec.Vec, val any) error
	get    func(v *untypedvec.Vec, i int) (string, error)
}

func kindFor[T any](name string, guest wit.Type, parse func(string) (T, error), sample func(int) T) elemKind {
	return elemKind{
		name:  name,
		guest: guest,
		open: func(drops *int, opts ...untypedvec.Option) *untypedvec.Vec {
			if drops != nil {
				opts = append(opts, untypedvec.DropFunc(func(*T) { *drops++ }))
			}
			return untypedvec.New[T](opts...)
		},
		parse: func(s string) (any, error) {
			return parse(s)
		},
		sample: func(i int) any {
			return sample(i)
		},
		push: func(v *untypedvec.Vec, val any) error {
			return untypedvec.Push(v, val.(T))
		},
		get: func(v *untypedvec.Vec, i int) (string, error) {
			x, err := untypedvec.Get[T](v, i)
			if err != nil {
				return "", err
			}
			return fmt.Sprintf("%v", x), nil
		},
	}
}

var kinds = map[string]elemKind{
	"i32": kindFor("i32", wit.S32{},
		func(s string) (int32, error) {
			n, err := strconv.ParseInt(s, 10, 32)
			return int32(n), err
		},
		func(i int) int32 { return int32(i) }),
	"i64": kindFor("i64", wit.S64{},
		func(s string) (int64, error) { return strconv.ParseInt(s, 10, 64) },
		func(i int) int64 { return int64(i) * 1_000_003 }),
	"f64": kindFor("f64", wit.F64{},
		func(s string) (float64, error) { return strconv.ParseFloat(s, 64) },
		func(i int) float64 { return float64(i) / 4 }),
	"string": kindFor("string", nil,
		func(s string) (string, error) { return s, nil },
		func(i int) string { return "item-" + strconv.Itoa(i) }),
	"point": kindFor("point", pointDef, parsePoint,
		func(i int) point { return point{X: int32(i), Y: int32(-i)} }),
}

// pointDef is record point { x: s32, y: s32 }.
var pointDef = &wit.TypeDef{Kind: &wit.Record{Fields: []wit.Field{
	{Name: "x", Type: wit.S32{}},
	{Name: "y", Type: wit.S32{}},
}}}

func parsePoint(s string) (point, error) {
	xs, ys, ok := strings.Cut(s, ",")
	if !ok {
		return point{}, fmt.Errorf("point must be x,y")
	}
	x, err := strconv.ParseInt(strings.TrimSpace(xs), 10, 32)
	if err != nil {
		return point{}, fmt.Errorf("x: %w", err)
	}
	y, err := strconv.ParseInt(strings.TrimSpace(ys), 10, 32)
	if err != nil {
		return point{}, fmt.Errorf("y: %w", err)
	}
	return point{X: int32(x), Y: int32(y)}, nil
}

func kindNames() string {
	return "i32|i64|f64|string|point"
}
