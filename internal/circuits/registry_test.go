package circuits

import (
	"errors"
	"testing"

	"axonsim/internal/encoding"
	"axonsim/internal/nn"
)

func TestBuiltinsAvailable(t *testing.T) {
	for _, name := range []string{"memory", "inverting_memory", "signed_memory", "synchronizer"} {
		h, err := Build(nn.NewNetwork(), encoding.Default(), name, name, Options{Size: 3})
		if err != nil {
			t.Fatalf("build %s: %v", name, err)
		}
		if h.Module == nil || h.InputLanes() == 0 || h.InputLanes() != h.OutputLanes() {
			t.Fatalf("%s: malformed handle %+v", name, h)
		}
	}
}

func TestSynchronizerHandleHonoursSize(t *testing.T) {
	h, err := Build(nn.NewNetwork(), encoding.Default(), "synchronizer", "s", Options{Size: 4})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if len(h.Inputs) != 4 || len(h.Recall) != 0 {
		t.Fatalf("unexpected handle: %+v", h)
	}
}

func TestSignedMemoryHandleUsesSignedLanes(t *testing.T) {
	h, err := Build(nn.NewNetwork(), encoding.Default(), "signed-mem", "sm", Options{})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if len(h.Inputs) != 0 || len(h.SignedInputs) != 1 || len(h.SignedOutputs) != 1 || len(h.Recall) != 1 {
		t.Fatalf("unexpected handle: %+v", h)
	}
	if h.SignedInputs[0].Plus == h.SignedInputs[0].Minus {
		t.Fatalf("expected distinct polarity neurons, got %+v", h.SignedInputs[0])
	}
}

func TestRegisterValidation(t *testing.T) {
	resetCircuitRegistryForTests()
	t.Cleanup(resetCircuitRegistryForTests)

	build := func(*nn.Network, encoding.Encoder, string, Options) (Handle, error) { return Handle{}, nil }
	if err := Register(Spec{Build: build}); err == nil {
		t.Fatal("expected empty name error")
	}
	if err := Register(Spec{Name: "nil"}); err == nil {
		t.Fatal("expected nil builder error")
	}
	if err := Register(Spec{Name: "memory", Build: build}); !errors.Is(err, ErrCircuitExists) {
		t.Fatalf("expected ErrCircuitExists, got: %v", err)
	}
	if err := Register(Spec{Name: "Stick-Mem", Build: build}); !errors.Is(err, ErrCircuitExists) {
		t.Fatalf("expected alias to collide with memory, got: %v", err)
	}
}

func TestGetResolvesAliases(t *testing.T) {
	cases := map[string]string{
		"Inverting-Memory": "inverting_memory",
		"sync":             "synchronizer",
		" MEM ":            "memory",
	}
	for alias, want := range cases {
		spec, err := Get(alias)
		if err != nil {
			t.Fatalf("get %q: %v", alias, err)
		}
		if spec.Name != want {
			t.Fatalf("get %q: got %s want %s", alias, spec.Name, want)
		}
	}
}

func TestGetCircuitNotFound(t *testing.T) {
	if _, err := Get("missing"); !errors.Is(err, ErrCircuitNotFound) {
		t.Fatalf("expected ErrCircuitNotFound, got: %v", err)
	}
}

func TestListCircuitsSorted(t *testing.T) {
	resetCircuitRegistryForTests()
	t.Cleanup(resetCircuitRegistryForTests)

	build := func(*nn.Network, encoding.Encoder, string, Options) (Handle, error) { return Handle{}, nil }
	if err := Register(Spec{Name: "a", Build: build}); err != nil {
		t.Fatalf("register a: %v", err)
	}
	specs := List()
	if len(specs) != 5 || specs[0].Name != "a" || specs[1].Name != "inverting_memory" {
		t.Fatalf("unexpected circuit list: %+v", specs)
	}
}
