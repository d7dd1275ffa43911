package lifecycle

import (
	"testing"

	"github.com/wippyai/scanx-wasm/engine"
)

func TestShallowEqual(t *testing.T) {
	shared := map[string]int{"x": 1}
	buf := []byte("wasm")
	ptr := new(int)
	ch := make(chan int)
	locate := engine.LocateFunc(func(path, prefix string) string { return prefix + path })
	same := engine.Overrides{"a": 1}
	var hosts []engine.LocateFunc
	for _, host := range []string{"a.example", "b.example"} {
		hosts = append(hosts, func(path, prefix string) string { return host + "/" + path })
	}

	tests := []struct {
		name string
		a, b engine.Overrides
		want bool
	}{
		{"both nil", nil, nil, true},
		{"nil vs empty", nil, engine.Overrides{}, true},
		{"empty maps", engine.Overrides{}, engine.Overrides{}, true},
		{"same map", same, same, true},
		{"equal scalars", engine.Overrides{"a": 1, "b": "s"}, engine.Overrides{"a": 1, "b": "s"}, true},
		{"different scalar", engine.Overrides{"a": 1}, engine.Overrides{"a": 2}, false},
		{"different scalar type", engine.Overrides{"a": 1}, engine.Overrides{"a": int64(1)}, false},
		{"extra key", engine.Overrides{"a": 1}, engine.Overrides{"a": 1, "b": 2}, false},
		{"different key", engine.Overrides{"a": 1}, engine.Overrides{"b": 1}, false},
		{"nil values", engine.Overrides{"a": nil}, engine.Overrides{"a": nil}, true},
		{"nil vs value", engine.Overrides{"a": nil}, engine.Overrides{"a": 0}, false},
		{"shared nested map", engine.Overrides{"a": shared}, engine.Overrides{"a": shared}, true},
		{"distinct nested maps", engine.Overrides{"a": map[string]int{"x": 1}}, engine.Overrides{"a": map[string]int{"x": 1}}, false},
		{"shared slice", engine.Overrides{"b": buf}, engine.Overrides{"b": buf}, true},
		{"copied slice", engine.Overrides{"b": buf}, engine.Overrides{"b": []byte("wasm")}, false},
		{"resliced", engine.Overrides{"b": buf}, engine.Overrides{"b": buf[:2]}, false},
		{"shared pointer", engine.Overrides{"p": ptr}, engine.Overrides{"p": ptr}, true},
		{"distinct pointers", engine.Overrides{"p": new(int)}, engine.Overrides{"p": new(int)}, false},
		{"shared chan", engine.Overrides{"c": ch}, engine.Overrides{"c": ch}, true},
		{"same func", engine.Overrides{"f": locate}, engine.Overrides{"f": locate}, true},
		{"same closure", engine.Overrides{"f": hosts[1]}, engine.Overrides{"f": hosts[1]}, true},
		{"distinct closures from one literal", engine.Overrides{"f": hosts[0]}, engine.Overrides{"f": hosts[1]}, false},
		{"top-level func", engine.Overrides{"f": engine.LocateFunc(joinPath)}, engine.Overrides{"f": engine.LocateFunc(joinPath)}, true},
		{"struct values", engine.Overrides{"s": struct{ A int }{1}}, engine.Overrides{"s": struct{ A int }{1}}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ShallowEqual(tt.a, tt.b); got != tt.want {
				t.Errorf("ShallowEqual = %v, want %v", got, tt.want)
			}
			if got := ShallowEqual(tt.b, tt.a); got != tt.want {
				t.Errorf("ShallowEqual (swapped) = %v, want %v", got, tt.want)
			}
		})
	}
}

func joinPath(path, prefix string) string { return prefix + path }

func TestIdentical(t *testing.T) {
	a := engine.Overrides{"a": 1}
	if !Identical(a, a) {
		t.Error("same map should be identical")
	}
	if Identical(a, engine.Overrides{"a": 1}) {
		t.Error("equal maps should not be identical")
	}
	if !Identical(nil, nil) {
		t.Error("nil maps should be identical")
	}
	if Identical(a, nil) {
		t.Error("map and nil should not be identical")
	}
}
