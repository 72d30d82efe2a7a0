package purity

import (
	"errors"
	"strings"
	"testing"

	"go.uber.org/multierr"

	terrors "github.com/tangzhangming/treeopt/internal/errors"
	"github.com/tangzhangming/treeopt/internal/types"
)

func TestCatalogExact(t *testing.T) {
	c := NewCatalog()
	m := types.NewMethod(types.StringType, "Trim", false, types.StringType)
	other := types.NewMethod(types.StringType, "Trim", false, types.StringType)
	c.MustAdd(m, Pure)
	c.Freeze()

	if !c.IsPure(m) {
		t.Error("expected registered member to be pure")
	}
	if !c.IsPure(other) {
		t.Error("expected a member with the same signature to match")
	}
	if c.IsIdentity(m) {
		t.Error("expected Trim not to be an identity function")
	}
	if c.IsPure(types.NewMethod(types.StringType, "Trim", true, types.StringType)) {
		t.Error("expected static and instance members not to match")
	}
	if c.Len() != 1 {
		t.Errorf("expected 1 entry, got %d", c.Len())
	}
}

func TestCatalogErrors(t *testing.T) {
	c := NewCatalog()
	if err := c.Add(nil, Pure); !errors.Is(err, terrors.ErrNilArgument) {
		t.Errorf("expected T0001, got %v", err)
	}
	c.Freeze()
	if err := c.Add(types.NewMethod(nil, "F", true, types.Int32Type), Pure); err == nil || !strings.Contains(err.Error(), "frozen") {
		t.Errorf("expected frozen error, got %v", err)
	}
	var nilCatalog *Catalog
	if nilCatalog.IsPure(types.NewMethod(nil, "F", true, types.Int32Type)) {
		t.Error("expected nil catalog to trust nothing")
	}
}

func TestCatalogOpenGeneric(t *testing.T) {
	tv := types.NewParam("T")
	list := types.NewGeneric(types.Class, "List", nil, tv)
	count := types.NewProperty(list, "Count", false, types.Int32Type, false)
	get := types.NewMethod(list, "Get", false, tv, types.P("i", types.Int32Type))

	c := NewCatalog()
	c.MustAdd(count, Pure)
	c.MustAdd(get, Pure)
	c.Freeze()

	ints := list.Instantiate(types.Int32Type)
	if !c.IsPure(count.OnType(ints)) {
		t.Error("expected List<int>.Count to match List<T>.Count")
	}
	if !c.IsPure(get.OnType(list.Instantiate(types.StringType))) {
		t.Error("expected List<string>.Get to match List<T>.Get")
	}

	// 与模板无关的同名成员
	set := types.NewGeneric(types.Class, "Set", nil, types.NewParam("T"))
	if c.IsPure(types.NewProperty(set.Instantiate(types.Int32Type), "Count", false, types.Int32Type, false)) {
		t.Error("expected Set<int>.Count not to match List<T>.Count")
	}
}

func TestLibraryLookup(t *testing.T) {
	lib := Builtins()
	if lib.Type("Math") != MathType {
		t.Error("expected Math type to be registered")
	}
	if got := lib.Member("String.Length").Result; got != types.Int32Type {
		t.Errorf("expected int, got %s", got)
	}
	if len(lib.Lookup("Nope.Nothing")) != 0 {
		t.Error("expected no members for an unknown name")
	}
	names := lib.Names()
	for i := 1; i < len(names); i++ {
		if names[i-1] > names[i] {
			t.Fatalf("expected sorted names, got %v", names)
		}
	}

	id := lib.Specialize("Operators.Identity", types.StringType)
	if id.Result != types.StringType || id.Root() != lib.Member("Operators.Identity") {
		t.Errorf("expected Identity<string> returning string, got %s", id)
	}
	hv := lib.Specialize("Nullable.HasValue", types.Int32Type)
	if !types.Identical(hv.DeclaringType, types.NullableOf(types.Int32Type)) {
		t.Errorf("expected int?.HasValue, got %s", hv)
	}
}

func TestLibraryCatalog(t *testing.T) {
	lib := Builtins()

	c, err := lib.Catalog("Math.*", "Operators.Identity")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !c.IsPure(lib.Member("Math.Sqrt")) || c.IsPure(lib.Member("String.Length")) {
		t.Error("expected only Math members and Identity in the catalog")
	}
	if !c.IsIdentity(lib.Specialize("Operators.Identity", types.Int32Type)) {
		t.Error("expected Identity<int> to be an identity function")
	}

	// 通配符跳过有副作用的成员
	c, err = lib.Catalog("Counter.*")
	if err != nil || c.Len() != 0 {
		t.Errorf("expected empty catalog without error, got %d entries, %v", c.Len(), err)
	}

	c, err = lib.Catalog("Nope.Nothing", "Console.WriteLine", "Char.IsDigit")
	if n := len(multierr.Errors(err)); n != 2 {
		t.Errorf("expected 2 errors, got %d: %v", n, err)
	}
	if !c.IsPure(lib.Member("Char.IsDigit")) {
		t.Error("expected valid names to be registered despite errors")
	}
}

func TestBuiltinImpls(t *testing.T) {
	lib := Builtins()
	tests := []struct {
		name string
		obj  any
		args []any
		want any
	}{
		{"Math.Max", nil, []any{int32(3), int32(9)}, int32(9)},
		{"Math.Min", nil, []any{int32(3), int32(9)}, int32(3)},
		{"Math.Sqrt", nil, []any{16.0}, 4.0},
		{"String.Length", "héllo", nil, int32(5)},
		{"String.Concat", nil, []any{"a", nil}, "a"},
		{"String.IsNullOrEmpty", nil, []any{nil}, true},
		{"String.ToUpperInvariant", "abc", nil, "ABC"},
		{"Char.IsDigit", nil, []any{uint16('7')}, true},
	}
	for _, tt := range tests {
		got, err := lib.Member(tt.name).Impl(tt.obj, tt.args)
		if err != nil {
			t.Errorf("%s: unexpected error %v", tt.name, err)
			continue
		}
		if got != tt.want {
			t.Errorf("%s: expected %v, got %v", tt.name, tt.want, got)
		}
	}

	next := lib.Member("Counter.Next").Impl
	a, _ := next(nil, nil)
	b, _ := next(nil, nil)
	if a != int32(1) || b != int32(2) {
		t.Errorf("expected 1 then 2, got %v then %v", a, b)
	}
}

func TestPrimitiveNames(t *testing.T) {
	lib := Builtins()
	if lib.Type("String") != types.StringType || lib.Type("Char") != types.CharType {
		t.Error("expected primitive types under their framework names")
	}
	if len(lib.Lookup("string.Length")) != 0 {
		t.Error("expected keyword names not to be registered")
	}
}
