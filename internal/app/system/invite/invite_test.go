package invite

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestGenerate_Format(t *testing.T) {
	for i := 0; i < 100; i++ {
		code, err := Generate()
		if err != nil {
			t.Fatalf("Generate failed: %v", err)
		}
		if !strings.HasPrefix(code, Prefix) {
			t.Fatalf("code %q missing %q prefix", code, Prefix)
		}
		body := strings.TrimPrefix(code, Prefix)
		if len(body) != BodyLength {
			t.Fatalf("code body %q: got %d chars, want %d", body, len(body), BodyLength)
		}
		for _, c := range body {
			if !strings.ContainsRune(alphabet, c) {
				t.Fatalf("code %q contains invalid character %q", code, c)
			}
		}
	}
}

func TestGenerateUnique_RetriesUntilFree(t *testing.T) {
	calls := 0
	exists := func(ctx context.Context, code string) (bool, error) {
		calls++
		return calls < 3, nil // first two candidates collide
	}

	code, err := GenerateUnique(context.Background(), exists)
	if err != nil {
		t.Fatalf("GenerateUnique failed: %v", err)
	}
	if code == "" {
		t.Fatal("expected a code")
	}
	if calls != 3 {
		t.Errorf("expected 3 existence checks, got %d", calls)
	}
}

func TestGenerateUnique_StoreError(t *testing.T) {
	want := errors.New("store down")
	exists := func(ctx context.Context, code string) (bool, error) {
		return false, want
	}

	if _, err := GenerateUnique(context.Background(), exists); !errors.Is(err, want) {
		t.Errorf("expected store error to propagate, got %v", err)
	}
}

func TestGenerateUnique_GivesUpWhenSaturated(t *testing.T) {
	exists := func(ctx context.Context, code string) (bool, error) {
		return true, nil
	}

	if _, err := GenerateUnique(context.Background(), exists); err == nil {
		t.Error("expected error when every candidate collides")
	}
}
