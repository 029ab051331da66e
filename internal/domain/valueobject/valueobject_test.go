package valueobject

import (
	"errors"
	"math"
	"regexp"
	"sync"
	"testing"

	"github.com/ruudy-sib/outbound/internal/domain"
)

func TestNewClientIdentity(t *testing.T) {
	tests := []struct {
		name    string
		role    string
		wantErr bool
	}{
		{name: "valid role", role: "frontend-go", wantErr: false},
		{name: "role is trimmed", role: "  frontend-go  ", wantErr: false},
		{name: "empty role", role: "", wantErr: true},
		{name: "whitespace role", role: "   ", wantErr: true},
		{name: "role with separator", role: "front/end", wantErr: true},
	}

	pattern := regexp.MustCompile(`^frontend-go-[0-9a-f]{16}$`)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NewClientIdentity(tt.role)
			if (err != nil) != tt.wantErr {
				t.Fatalf("NewClientIdentity(%q) error = %v, wantErr %v", tt.role, err, tt.wantErr)
			}
			if tt.wantErr {
				if !got.IsZero() {
					t.Fatalf("expected zero identity on error, got %q", got)
				}
				return
			}
			if !pattern.MatchString(got.String()) {
				t.Fatalf("identity %q does not match %s", got, pattern)
			}
		})
	}
}

func TestNewClientIdentity_distinctAcrossInstances(t *testing.T) {
	const instances = 5000

	seen := make(map[string]struct{}, instances)
	for i := 0; i < instances; i++ {
		id, err := NewClientIdentity("frontend-go")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if _, dup := seen[id.String()]; dup {
			t.Fatalf("identity %q generated twice after %d instances", id, i)
		}
		seen[id.String()] = struct{}{}
	}
}

func TestSequence_Next(t *testing.T) {
	seq := NewSequence()
	for want := uint64(0); want < 5; want++ {
		got, err := seq.Next()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got != want {
			t.Fatalf("Next() = %d, want %d", got, want)
		}
	}
}

func TestSequence_concurrentCallersNeverShareANumber(t *testing.T) {
	seq := NewSequence()
	const callers, perCaller = 8, 500

	var mu sync.Mutex
	seen := make(map[uint64]struct{}, callers*perCaller)

	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perCaller; j++ {
				n, err := seq.Next()
				if err != nil {
					t.Errorf("unexpected error: %v", err)
					return
				}
				mu.Lock()
				seen[n] = struct{}{}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if len(seen) != callers*perCaller {
		t.Fatalf("expected %d distinct numbers, got %d", callers*perCaller, len(seen))
	}
}

func TestSequence_exhaustionIsReportedNotWrapped(t *testing.T) {
	seq := &Sequence{next: math.MaxUint64}

	got, err := seq.Next()
	if err != nil {
		t.Fatalf("last number should still be handed out: %v", err)
	}
	if got != math.MaxUint64 {
		t.Fatalf("Next() = %d, want MaxUint64", got)
	}

	for i := 0; i < 2; i++ {
		if _, err := seq.Next(); !errors.Is(err, domain.ErrSequenceExhausted) {
			t.Fatalf("Next() error = %v, want ErrSequenceExhausted", err)
		}
	}
}

func TestParseMessageID(t *testing.T) {
	tests := []struct {
		name         string
		input        string
		wantIdentity string
		wantSeq      uint64
		wantErr      bool
	}{
		{name: "valid ID", input: "frontend-go-ab12/42", wantIdentity: "frontend-go-ab12", wantSeq: 42},
		{name: "ID with spaces is trimmed", input: "  frontend-go-ab12/0  ", wantIdentity: "frontend-go-ab12", wantSeq: 0},
		{name: "empty string", input: "", wantErr: true},
		{name: "missing sequence", input: "frontend-go-ab12/", wantErr: true},
		{name: "missing identity", input: "/3", wantErr: true},
		{name: "non-numeric sequence", input: "frontend-go-ab12/x", wantErr: true},
		{name: "negative sequence", input: "frontend-go-ab12/-1", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseMessageID(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseMessageID(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if got.Identity() != tt.wantIdentity || got.Sequence() != tt.wantSeq {
				t.Fatalf("ParseMessageID(%q) = (%q, %d)", tt.input, got.Identity(), got.Sequence())
			}
		})
	}
}

func TestMessageID_roundTrip(t *testing.T) {
	identity, err := NewClientIdentity("frontend-go")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	id := NewMessageID(identity, 7)
	parsed, err := ParseMessageID(id.String())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !parsed.Equals(id) {
		t.Fatalf("expected %q to equal %q", parsed, id)
	}
	if parsed.Equals(NewMessageID(identity, 8)) {
		t.Fatal("IDs with different sequences must not be equal")
	}
}
