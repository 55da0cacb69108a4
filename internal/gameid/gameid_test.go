package gameid

import (
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestGenerate(t *testing.T) {
	id := Generate()

	if len(id) != 26 {
		t.Errorf("expected 26 characters, got %d", len(id))
	}
	if err := Validate(id); err != nil {
		t.Errorf("generated ID failed validation: %v", err)
	}

	u, err := Parse(id)
	if err != nil {
		t.Fatalf("parse generated ID: %v", err)
	}
	if u.Version() != 7 {
		t.Errorf("expected UUIDv7, got version %d", u.Version())
	}
}

func TestGenerateUnique(t *testing.T) {
	ids := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := Generate()
		if ids[id] {
			t.Errorf("duplicate ID generated: %s", id)
		}
		ids[id] = true
	}
}

func TestGenerateTimeSorted(t *testing.T) {
	var ids []string
	for i := 0; i < 10; i++ {
		ids = append(ids, Generate())
		time.Sleep(time.Millisecond)
	}

	for i := 1; i < len(ids); i++ {
		if strings.Compare(ids[i-1], ids[i]) >= 0 {
			t.Errorf("IDs not sorted: %s >= %s", ids[i-1], ids[i])
		}
	}
}

func TestEncodeRoundTrip(t *testing.T) {
	u := uuid.MustParse("01890a5d-ac96-774b-bcce-b302099a8057")
	got, err := Parse(Encode(u))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if got != u {
		t.Errorf("round trip mismatch: %s != %s", got, u)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		id      string
		wantErr bool
	}{
		{"valid", Encode(uuid.Nil), false},
		{"too short", "0123", true},
		{"too long", strings.Repeat("0", 27), true},
		{"excluded letter", strings.Repeat("0", 25) + "u", true},
		{"uppercase", strings.Repeat("0", 25) + "A", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.id)
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate(%q) error = %v, wantErr %v", tt.id, err, tt.wantErr)
			}
		})
	}
}
