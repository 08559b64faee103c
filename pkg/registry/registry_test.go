package registry

import (
	"fmt"
	"sync"
	"testing"

	"github.com/waypack/waypack/pkg/derrors"
)

func sampleBackend(name string) CompilerBackend {
	return CompilerBackend{Name: name, Executable: name, ObjectFlag: "-c"}
}

func TestRegisterAndGet(t *testing.T) {
	reg := New()

	if err := reg.Register("sdc", sampleBackend("sdc")); err != nil {
		t.Fatalf("Register() error = %v, want nil", err)
	}

	got, err := reg.Get("sdc")
	if err != nil {
		t.Fatalf("Get() error = %v, want nil", err)
	}
	if got.Executable != "sdc" {
		t.Errorf("Executable = %q, want %q", got.Executable, "sdc")
	}
}

func TestRegisterEmptyNameRejected(t *testing.T) {
	reg := New()
	err := reg.Register("", sampleBackend(""))
	if !derrors.Is(err, derrors.InvalidInput) {
		t.Errorf("Register(\"\") error = %v, want InvalidInput", err)
	}
}

func TestRegisterDuplicateRejected(t *testing.T) {
	reg := New()
	if err := reg.Register("sdc", sampleBackend("sdc")); err != nil {
		t.Fatalf("first Register() error = %v", err)
	}
	err := reg.Register("sdc", sampleBackend("sdc"))
	if !derrors.Is(err, derrors.AlreadyExists) {
		t.Errorf("duplicate Register() error = %v, want AlreadyExists", err)
	}
}

func TestGetUnknownNameIsNotFound(t *testing.T) {
	reg := New()
	_, err := reg.Get("no-such-backend")
	if !derrors.Is(err, derrors.NotFound) {
		t.Errorf("Get() error = %v, want NotFound", err)
	}
}

func TestHas(t *testing.T) {
	reg := New()
	_ = reg.Register("sdc", sampleBackend("sdc"))

	if !reg.Has("sdc") {
		t.Error("Has(sdc) = false, want true")
	}
	if reg.Has("gdc") {
		t.Error("Has(gdc) = true, want false")
	}
}

func TestMustRegisterPanicsOnDuplicate(t *testing.T) {
	reg := New()
	MustRegister(reg, "sdc", sampleBackend("sdc"))

	defer func() {
		if r := recover(); r == nil {
			t.Error("MustRegister() duplicate should panic")
		}
	}()
	MustRegister(reg, "sdc", sampleBackend("sdc"))
}

func TestRegisterConcurrentWrites(t *testing.T) {
	reg := New()
	const goroutines = 10

	var wg sync.WaitGroup
	wg.Add(goroutines)
	for g := 0; g < goroutines; g++ {
		go func(id int) {
			defer wg.Done()
			name := fmt.Sprintf("backend-%d", id)
			_ = reg.Register(name, sampleBackend(name))
		}(g)
	}
	wg.Wait()

	for g := 0; g < goroutines; g++ {
		name := fmt.Sprintf("backend-%d", g)
		if !reg.Has(name) {
			t.Errorf("backend %q missing after concurrent registration", name)
		}
	}
}
