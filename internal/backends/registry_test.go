package backends

import (
	"reflect"
	"testing"
)

func TestUsesReceiverResources(t *testing.T) {
	tests := []struct {
		name      string
		cfg       Config
		backendID string
		want      bool
	}{
		{
			name:      "built-in with structured API enabled",
			cfg:       Config{ReceiversAPIEnabled: true},
			backendID: BuiltInBackendID,
			want:      true,
		},
		{
			name:      "built-in with structured API disabled",
			cfg:       Config{ReceiversAPIEnabled: false},
			backendID: BuiltInBackendID,
			want:      false,
		},
		{
			name:      "external backend stays legacy even when enabled",
			cfg:       Config{ReceiversAPIEnabled: true, ExternalBackends: []string{"harbor-main"}},
			backendID: "harbor-main",
			want:      false,
		},
		{
			name:      "unknown backend reads as legacy",
			cfg:       Config{ReceiversAPIEnabled: true},
			backendID: "nowhere",
			want:      false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRegistry(tt.cfg)
			if got := r.UsesReceiverResources(tt.backendID); got != tt.want {
				t.Fatalf("UsesReceiverResources(%q) = %v, want %v", tt.backendID, got, tt.want)
			}
		})
	}
}

func TestRegistryInventory(t *testing.T) {
	r := NewRegistry(Config{
		ReceiversAPIEnabled: true,
		ExternalBackends:    []string{"harbor-main", "pier-side", "harbor-main", ""},
		ReadOnlyBackends:    []string{"pier-side"},
	})

	if !r.Known(BuiltInBackendID) || !r.Known("harbor-main") || !r.Known("pier-side") {
		t.Fatal("expected all configured backends to be known")
	}
	if r.Known("nowhere") {
		t.Fatal("unexpected backend known")
	}

	list := r.List()
	if len(list) != 3 {
		t.Fatalf("expected 3 backends after dedup, got %d", len(list))
	}
	if list[0].ID != BuiltInBackendID {
		t.Fatalf("expected built-in first, got %s", list[0].ID)
	}
	if !list[0].UsesReceiverResources {
		t.Fatal("expected built-in to advertise structured API")
	}
	if list[1].ID != "harbor-main" || list[1].UsesReceiverResources {
		t.Fatalf("unexpected external backend: %+v", list[1])
	}
	if !r.IsReadOnly("pier-side") {
		t.Fatal("expected pier-side to be read-only")
	}
	if r.IsReadOnly("harbor-main") || r.IsReadOnly(BuiltInBackendID) {
		t.Fatal("unexpected read-only flag")
	}
}

func TestRegistryCannotRedefineBuiltIn(t *testing.T) {
	r := NewRegistry(Config{
		ExternalBackends: []string{BuiltInBackendID},
		ReadOnlyBackends: []string{},
	})

	if len(r.List()) != 1 {
		t.Fatalf("expected built-in only, got %+v", r.List())
	}
	if r.List()[0].Name != "Aldis" {
		t.Fatalf("expected built-in entry to win, got %+v", r.List()[0])
	}
}

func TestParseList(t *testing.T) {
	tests := []struct {
		raw  string
		want []string
	}{
		{"", nil},
		{"harbor-main", []string{"harbor-main"}},
		{"harbor-main, pier-side", []string{"harbor-main", "pier-side"}},
		{" , harbor-main ,, ", []string{"harbor-main"}},
	}

	for _, tt := range tests {
		if got := ParseList(tt.raw); !reflect.DeepEqual(got, tt.want) {
			t.Fatalf("ParseList(%q) = %v, want %v", tt.raw, got, tt.want)
		}
	}
}
