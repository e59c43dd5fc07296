package backend

import (
	"testing"

	"github.com/vietddude/slicks/internal/infra/store"
)

func TestNewFactory(t *testing.T) {
	for _, name := range []string{"", store.BackendFlight, store.BackendPostgres} {
		f, err := NewFactory(store.Config{Backend: name})
		if err != nil {
			t.Errorf("backend %q: unexpected error %v", name, err)
		}
		if f == nil {
			t.Errorf("backend %q: nil factory", name)
		}
	}

	if _, err := NewFactory(store.Config{Backend: "mongo"}); err == nil {
		t.Error("expected error for unknown backend")
	}
}
