package fingerprint

import (
	"crypto/sha256"
	"encoding"
	"encoding/binary"
	"encoding/hex"
	"hash"
	"math"
	"reflect"
	"sort"

	"github.com/aescanero/dagoml/pkg/domain"
	"github.com/google/uuid"
	"gonum.org/v1/gonum/mat"
)

// Tokenizer is implemented by values that already carry a stable identity.
type Tokenizer interface {
	Token() string
}

// Tokenize returns the hex-encoded fingerprint of values, taken as an ordered tuple.
func Tokenize(values ...any) string {
	e := newEncoder()
	e.tag("tuple")
	e.length(len(values))
	for _, v := range values {
		e.value(v)
	}
	return e.sum()
}

type encoder struct {
	h hash.Hash
	// pointers and maps on the current path, to cut cycles
	visiting map[uintptr]bool
}

func newEncoder() *encoder {
	return &encoder{h: sha256.New(), visiting: make(map[uintptr]bool)}
}

func (e *encoder) sum() string {
	return hex.EncodeToString(e.h.Sum(nil))
}

// field writes data with an 8-byte big-endian length prefix.
func (e *encoder) field(data []byte) {
	var prefix [8]byte
	binary.BigEndian.PutUint64(prefix[:], uint64(len(data)))
	e.h.Write(prefix[:])
	e.h.Write(data)
}

func (e *encoder) tag(t string) { e.field([]byte(t)) }

func (e *encoder) str(s string) { e.field([]byte(s)) }

func (e *encoder) length(n int) { e.uint(uint64(n)) }

func (e *encoder) uint(u uint64) {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], u)
	e.field(b[:])
}

func (e *encoder) float(f float64) {
	if f == 0 {
		f = 0 // folds -0 into +0
	}
	if math.IsNaN(f) {
		f = math.NaN()
	}
	e.uint(math.Float64bits(f))
}

func (e *encoder) value(v any) {
	if isNilPointer(v) {
		e.tag("nil")
		return
	}
	switch t := v.(type) {
	case nil:
		e.tag("nil")
	case Tokenizer:
		e.tag("token")
		e.str(t.Token())
	case domain.Estimator:
		e.estimator(t)
	case mat.Matrix:
		e.matrix(t)
	case []byte:
		e.tag("bytes")
		e.field(t)
	case encoding.BinaryMarshaler:
		e.marshaled(v, t.MarshalBinary)
	case encoding.TextMarshaler:
		e.marshaled(v, t.MarshalText)
	default:
		e.reflectValue(reflect.ValueOf(v))
	}
}

// marshaled hashes the value's own canonical encoding, falling back to its
// fields when the encoding fails.
func (e *encoder) marshaled(v any, marshal func() ([]byte, error)) {
	data, err := marshal()
	if err != nil {
		e.reflectValue(reflect.ValueOf(v))
		return
	}
	e.tag("encoded")
	e.str(typeIdentity(reflect.TypeOf(v)))
	e.field(data)
}

// isNilPointer catches typed nil pointers, which satisfy interfaces such as
// mat.Matrix but cannot be called.
func isNilPointer(v any) bool {
	rv := reflect.ValueOf(v)
	return rv.Kind() == reflect.Pointer && rv.IsNil()
}

func (e *encoder) estimator(est domain.Estimator) {
	e.tag("estimator")
	e.str(typeIdentity(reflect.TypeOf(est)))
	e.mapping(est.GetParams(true))

	fitted := map[string]any{}
	if fs, ok := est.(domain.FittedStater); ok {
		fitted = fs.FittedAttributes()
	}
	e.mapping(fitted)
}

func (e *encoder) matrix(m mat.Matrix) {
	r, c := m.Dims()
	e.tag("matrix")
	e.length(r)
	e.length(c)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			e.float(m.At(i, j))
		}
	}
}

// mapping encodes string-keyed maps in sorted key order.
func (e *encoder) mapping(m map[string]any) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	e.tag("map")
	e.length(len(keys))
	for _, k := range keys {
		e.str(k)
		e.value(m[k])
	}
}

func (e *encoder) reflectValue(rv reflect.Value) {
	switch rv.Kind() {
	case reflect.Invalid:
		e.tag("nil")
	case reflect.Bool:
		e.tag("bool")
		if rv.Bool() {
			e.uint(1)
		} else {
			e.uint(0)
		}
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		e.tag("int")
		e.uint(uint64(rv.Int()))
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		e.tag("uint")
		e.uint(rv.Uint())
	case reflect.Float32, reflect.Float64:
		e.tag("float")
		e.float(rv.Float())
	case reflect.Complex64, reflect.Complex128:
		c := rv.Complex()
		e.tag("complex")
		e.float(real(c))
		e.float(imag(c))
	case reflect.String:
		e.tag("string")
		e.str(rv.String())
	case reflect.Slice, reflect.Array:
		if rv.Kind() == reflect.Slice && rv.IsNil() {
			e.tag("nil")
			return
		}
		e.tag("seq")
		e.length(rv.Len())
		for i := 0; i < rv.Len(); i++ {
			e.elem(rv.Index(i))
		}
	case reflect.Map:
		if !e.enter(rv.Pointer()) {
			return
		}
		defer e.leave(rv.Pointer())
		e.reflectMap(rv)
	case reflect.Struct:
		e.tag("struct")
		e.str(typeIdentity(rv.Type()))
		t := rv.Type()
		for i := 0; i < t.NumField(); i++ {
			e.str(t.Field(i).Name)
			e.elem(rv.Field(i))
		}
	case reflect.Interface:
		if rv.IsNil() {
			e.tag("nil")
			return
		}
		e.elem(rv.Elem())
	case reflect.Pointer:
		if rv.IsNil() {
			e.tag("nil")
			return
		}
		if !e.enter(rv.Pointer()) {
			return
		}
		defer e.leave(rv.Pointer())
		e.elem(rv.Elem())
	default:
		// Functions, channels and unsafe pointers have no content to hash.
		// A fresh random token keeps them from ever sharing a key.
		e.tag("opaque")
		e.str(uuid.NewString())
	}
}

// enter marks addr as being encoded. A value already on the path is a
// cycle and is written as a back reference instead.
func (e *encoder) enter(addr uintptr) bool {
	if e.visiting[addr] {
		e.tag("cycle")
		return false
	}
	e.visiting[addr] = true
	return true
}

func (e *encoder) leave(addr uintptr) { delete(e.visiting, addr) }

// elem re-enters value so nested interface-typed elements hit the typed cases.
func (e *encoder) elem(rv reflect.Value) {
	if rv.CanInterface() {
		e.value(rv.Interface())
		return
	}
	e.reflectValue(rv)
}

func (e *encoder) reflectMap(rv reflect.Value) {
	type entry struct {
		key   string
		value reflect.Value
	}
	entries := make([]entry, 0, rv.Len())
	iter := rv.MapRange()
	for iter.Next() {
		k := &encoder{h: sha256.New(), visiting: e.visiting}
		k.elem(iter.Key())
		entries = append(entries, entry{key: k.sum(), value: iter.Value()})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].key < entries[j].key })

	e.tag("map")
	e.length(len(entries))
	for _, en := range entries {
		e.str(en.key)
		e.elem(en.value)
	}
}

// typeIdentity returns the package path and name of t, looking through pointers.
func typeIdentity(t reflect.Type) string {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.PkgPath() == "" {
		return t.String()
	}
	return t.PkgPath() + "." + t.Name()
}
