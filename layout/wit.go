package layout

import (
	"fmt"
	"reflect"
	"strings"
	"unicode"

	"go.bytecodealliance.org/wit"

	"github.com/wippyai/untypedvec/errors"
)

// Info is the Canonical ABI layout of a WIT type.
type Info struct {
	// FieldOffs holds record field or tuple element offsets in declaration order.
	FieldOffs []uint32
	Size      uint32
	Align     uint32
}

// Calculator computes Canonical ABI layouts and caches them per TypeDef.
type Calculator struct {
	cache map[*wit.TypeDef]Info
}

func NewCalculator() *Calculator {
	return &Calculator{
		cache: make(map[*wit.TypeDef]Info),
	}
}

func (c *Calculator) Calculate(t wit.Type) Info {
	switch typ := t.(type) {
	case wit.U8, wit.S8, wit.Bool:
		return Info{Size: 1, Align: 1}
	case wit.U16, wit.S16:
		return Info{Size: 2, Align: 2}
	case wit.U32, wit.S32, wit.F32, wit.Char:
		return Info{Size: 4, Align: 4}
	case wit.U64, wit.S64, wit.F64:
		return Info{Size: 8, Align: 8}
	case wit.String:
		return Info{Size: 8, Align: 4} // [ptr: u32, len: u32]
	case *wit.TypeDef:
		return c.calculateTypeDef(typ)
	default:
		return Info{Size: 0, Align: 1}
	}
}

func (c *Calculator) calculateTypeDef(t *wit.TypeDef) Info {
	if cached, ok := c.cache[t]; ok {
		return cached
	}

	var info Info

	switch kind := t.Kind.(type) {
	case *wit.Record:
		types := make([]wit.Type, len(kind.Fields))
		for i, f := range kind.Fields {
			types[i] = f.Type
		}
		info = c.sequence(types)
	case *wit.Tuple:
		info = c.sequence(kind.Types)
	case *wit.Variant:
		payloads := make([]wit.Type, 0, len(kind.Cases))
		for _, cs := range kind.Cases {
			payloads = append(payloads, cs.Type)
		}
		info = c.tagged(discriminantSize(len(kind.Cases)), payloads)
	case *wit.Option:
		info = c.tagged(1, []wit.Type{kind.Type})
	case *wit.Result:
		info = c.tagged(1, []wit.Type{kind.OK, kind.Err})
	case *wit.Enum:
		size := discriminantSize(len(kind.Cases))
		info = Info{Size: size, Align: size}
	case *wit.Flags:
		info = flagsInfo(len(kind.Flags))
	case *wit.List:
		info = Info{Size: 8, Align: 4}
	case *wit.Own, *wit.Borrow:
		info = Info{Size: 4, Align: 4}
	case wit.Type:
		info = c.Calculate(kind)
	default:
		info = Info{Size: 0, Align: 1}
	}

	c.cache[t] = info
	return info
}

// sequence lays out records and tuples: members in order, each at its own alignment.
func (c *Calculator) sequence(types []wit.Type) Info {
	if len(types) == 0 {
		return Info{Size: 0, Align: 1}
	}

	offs := make([]uint32, len(types))
	maxAlign := uint32(1)
	offset := uint32(0)

	for i, typ := range types {
		member := c.Calculate(typ)
		offset = alignTo32(offset, member.Align)
		offs[i] = offset
		if member.Align > maxAlign {
			maxAlign = member.Align
		}
		offset += member.Size
	}

	return Info{
		Size:      alignTo32(offset, maxAlign),
		Align:     maxAlign,
		FieldOffs: offs,
	}
}

// tagged lays out variants, options and results: discriminant, then the largest payload.
func (c *Calculator) tagged(discSize uint32, payloads []wit.Type) Info {
	maxAlign := discSize
	maxSize := uint32(0)

	for _, p := range payloads {
		if p == nil {
			continue
		}
		pl := c.Calculate(p)
		if pl.Align > maxAlign {
			maxAlign = pl.Align
		}
		if pl.Size > maxSize {
			maxSize = pl.Size
		}
	}

	payloadOffset := alignTo32(discSize, maxAlign)
	return Info{
		Size:  alignTo32(payloadOffset+maxSize, maxAlign),
		Align: maxAlign,
	}
}

func discriminantSize(numCases int) uint32 {
	if numCases <= 256 {
		return 1
	} else if numCases <= 65536 {
		return 2
	}
	return 4
}

func flagsInfo(numFlags int) Info {
	switch {
	case numFlags == 0:
		return Info{Size: 0, Align: 1}
	case numFlags <= 8:
		return Info{Size: 1, Align: 1}
	case numFlags <= 16:
		return Info{Size: 2, Align: 2}
	default:
		words := (numFlags + 31) / 32
		return Info{Size: uint32(words * 4), Align: 4}
	}
}

func alignTo32(offset, align uint32) uint32 {
	return uint32(AlignTo(uintptr(offset), uintptr(align)))
}

// CheckWIT reports whether values of goType can be read in place by a guest
// that expects witType. Sizes, alignments, field offsets and primitive kinds
// must all agree. WIT types whose Go form differs from their memory form
// (strings, lists, options, results, variants) are unsupported.
func CheckWIT(goType reflect.Type, witType wit.Type) error {
	return NewCalculator().Check(goType, witType)
}

// Check is CheckWIT using the calculator's cache.
func (c *Calculator) Check(goType reflect.Type, witType wit.Type) error {
	return c.check(goType, witType, goType.String())
}

func (c *Calculator) check(goType reflect.Type, witType wit.Type, path string) error {
	info := c.Calculate(witType)
	if goType.Size() != uintptr(info.Size) || uintptr(goType.Align()) != uintptr(info.Align) {
		return errors.LayoutMismatch(path, witName(witType), fmt.Sprintf(
			"size %d align %d, want size %d align %d",
			goType.Size(), goType.Align(), info.Size, info.Align))
	}

	var want []reflect.Kind
	switch typ := witType.(type) {
	case wit.Bool:
		want = []reflect.Kind{reflect.Bool}
	case wit.U8:
		want = []reflect.Kind{reflect.Uint8}
	case wit.S8:
		want = []reflect.Kind{reflect.Int8}
	case wit.U16:
		want = []reflect.Kind{reflect.Uint16}
	case wit.S16:
		want = []reflect.Kind{reflect.Int16}
	case wit.U32:
		want = []reflect.Kind{reflect.Uint32}
	case wit.S32:
		want = []reflect.Kind{reflect.Int32}
	case wit.U64:
		want = []reflect.Kind{reflect.Uint64}
	case wit.S64:
		want = []reflect.Kind{reflect.Int64}
	case wit.F32:
		want = []reflect.Kind{reflect.Float32}
	case wit.F64:
		want = []reflect.Kind{reflect.Float64}
	case wit.Char:
		want = []reflect.Kind{reflect.Int32, reflect.Uint32}
	case *wit.TypeDef:
		return c.checkTypeDef(goType, typ, path)
	default:
		return errors.New(errors.PhaseLayout, errors.KindUnsupported).
			GoType(path).
			BoundType(witName(witType)).
			Detail("no in-place Go representation").
			Build()
	}
	return checkKind(goType, witType, path, want...)
}

func (c *Calculator) checkTypeDef(goType reflect.Type, t *wit.TypeDef, path string) error {
	switch kind := t.Kind.(type) {
	case *wit.Record:
		if goType.Kind() != reflect.Struct || goType.NumField() != len(kind.Fields) {
			return errors.LayoutMismatch(path, witName(t),
				fmt.Sprintf("want struct with %d fields", len(kind.Fields)))
		}
		offs := c.Calculate(t).FieldOffs
		for i, wf := range kind.Fields {
			gf := goType.Field(i)
			if !fieldMatches(gf, wf.Name) {
				return errors.LayoutMismatch(path, witName(t),
					fmt.Sprintf("field %d is %s, want %s", i, gf.Name, wf.Name))
			}
			if err := c.checkMember(gf, offs[i], wf.Type, path+"."+gf.Name); err != nil {
				return err
			}
		}
		return nil
	case *wit.Tuple:
		if goType.Kind() != reflect.Struct || goType.NumField() != len(kind.Types) {
			return errors.LayoutMismatch(path, witName(t),
				fmt.Sprintf("want struct with %d fields", len(kind.Types)))
		}
		offs := c.Calculate(t).FieldOffs
		for i, typ := range kind.Types {
			gf := goType.Field(i)
			if err := c.checkMember(gf, offs[i], typ, path+"."+gf.Name); err != nil {
				return err
			}
		}
		return nil
	case *wit.Enum:
		return checkKind(goType, t, path, reflect.Uint8, reflect.Uint16, reflect.Uint32)
	case *wit.Flags:
		if goType.Kind() == reflect.Array {
			return checkKind(goType.Elem(), t, path+"[]", reflect.Uint32)
		}
		return checkKind(goType, t, path, reflect.Uint8, reflect.Uint16, reflect.Uint32)
	case *wit.Own, *wit.Borrow:
		return checkKind(goType, t, path, reflect.Uint32, reflect.Int32)
	case wit.Type:
		return c.check(goType, kind, path)
	default:
		return errors.New(errors.PhaseLayout, errors.KindUnsupported).
			GoType(path).
			BoundType(witName(t)).
			Detail("no in-place Go representation for %T", kind).
			Build()
	}
}

func (c *Calculator) checkMember(gf reflect.StructField, witOffset uint32, witType wit.Type, path string) error {
	if gf.Offset != uintptr(witOffset) {
		return errors.LayoutMismatch(path, witName(witType),
			fmt.Sprintf("offset %d, want %d", gf.Offset, witOffset))
	}
	return c.check(gf.Type, witType, path)
}

func checkKind(goType reflect.Type, witType wit.Type, path string, want ...reflect.Kind) error {
	for _, k := range want {
		if goType.Kind() == k {
			return nil
		}
	}
	return errors.LayoutMismatch(path, witName(witType),
		fmt.Sprintf("Go kind %s not representable", goType.Kind()))
}

// fieldMatches accepts a wit:"name" tag, a case-insensitive match, or the
// kebab-case form of the Go field name.
func fieldMatches(f reflect.StructField, witName string) bool {
	if tag := f.Tag.Get("wit"); tag != "" {
		return tag == witName
	}
	if strings.EqualFold(f.Name, witName) {
		return true
	}
	return toKebabCase(f.Name) == witName
}

func toKebabCase(s string) string {
	var result strings.Builder
	for i, r := range s {
		if unicode.IsUpper(r) {
			if i > 0 {
				result.WriteByte('-')
			}
			result.WriteRune(unicode.ToLower(r))
		} else {
			result.WriteRune(r)
		}
	}
	return result.String()
}

func witName(t wit.Type) string {
	switch v := t.(type) {
	case wit.Bool:
		return "bool"
	case wit.U8:
		return "u8"
	case wit.S8:
		return "s8"
	case wit.U16:
		return "u16"
	case wit.S16:
		return "s16"
	case wit.U32:
		return "u32"
	case wit.S32:
		return "s32"
	case wit.U64:
		return "u64"
	case wit.S64:
		return "s64"
	case wit.F32:
		return "f32"
	case wit.F64:
		return "f64"
	case wit.Char:
		return "char"
	case wit.String:
		return "string"
	case *wit.TypeDef:
		if v.Name != nil {
			return *v.Name
		}
		return fmt.Sprintf("%T", v.Kind)
	default:
		return fmt.Sprintf("%T", t)
	}
}
