package hash_test

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"reflect"
	"strings"
	"testing"

	"github.com/JesseWaas/fs-audit/internal/audit"
	"github.com/JesseWaas/fs-audit/internal/hash"
)

func TestAlgorithms(t *testing.T) {
	want := []string{"md5", "sha1", "sha224", "sha256", "sha384", "sha512"}
	if got := hash.Algorithms(); !reflect.DeepEqual(got, want) {
		t.Errorf("Algorithms() = %v, want %v", got, want)
	}
}

func TestNew_UnknownAlgorithm(t *testing.T) {
	_, err := hash.New("sha999")
	if err == nil {
		t.Fatal("New(sha999) expected error, got nil")
	}
	if !audit.IsConfigError(err) {
		t.Errorf("New(sha999) error = %v, want configuration error", err)
	}
}

func TestHasher_Sum(t *testing.T) {
	data := "the quick brown fox jumps over the lazy dog"
	sum := sha256.Sum256([]byte(data))
	want := hex.EncodeToString(sum[:])

	h, err := hash.New("sha256")
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	got, err := h.Sum(context.Background(), strings.NewReader(data))
	if err != nil {
		t.Fatalf("Sum() error = %v", err)
	}
	if got != want {
		t.Errorf("Sum() = %s, want %s", got, want)
	}
}

func TestHasher_Sum_ChunkingDoesNotChangeDigest(t *testing.T) {
	data := strings.Repeat("abcdefgh", 100)

	reference, err := hash.New("sha256")
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	want, err := reference.Sum(context.Background(), strings.NewReader(data))
	if err != nil {
		t.Fatalf("Sum() error = %v", err)
	}

	// Chunk sizes straddling the input length: smaller, exact, larger,
	// and one byte at a time.
	for _, chunkSize := range []int{1, 7, len(data), len(data) + 1, 3 * len(data)} {
		h, err := hash.NewWithChunkSize("sha256", chunkSize)
		if err != nil {
			t.Fatalf("NewWithChunkSize(%d) error = %v", chunkSize, err)
		}
		got, err := h.Sum(context.Background(), strings.NewReader(data))
		if err != nil {
			t.Fatalf("Sum() with chunk size %d error = %v", chunkSize, err)
		}
		if got != want {
			t.Errorf("Sum() with chunk size %d = %s, want %s", chunkSize, got, want)
		}
	}
}

func TestHasher_Sum_EmptyInput(t *testing.T) {
	// Hashing zero bytes must yield the algorithm's empty-input digest,
	// not an error.
	tests := []struct {
		algorithm string
		want      string
	}{
		{"md5", "d41d8cd98f00b204e9800998ecf8427e"},
		{"sha1", "da39a3ee5e6b4b0d3255bfef95601890afd80709"},
		{"sha256", "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"},
	}

	for _, tt := range tests {
		t.Run(tt.algorithm, func(t *testing.T) {
			h, err := hash.New(tt.algorithm)
			if err != nil {
				t.Fatalf("New() error = %v", err)
			}
			got, err := h.Sum(context.Background(), strings.NewReader(""))
			if err != nil {
				t.Fatalf("Sum() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("Sum() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestHasher_Sum_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	h, err := hash.New("sha256")
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	got, err := h.Sum(ctx, strings.NewReader("data"))
	if err != context.Canceled {
		t.Errorf("Sum() error = %v, want context.Canceled", err)
	}
	if got != "" {
		t.Errorf("Sum() = %q, want empty digest on cancellation", got)
	}
}

func TestHasher_Algorithm(t *testing.T) {
	h, err := hash.New("sha512")
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if got := h.Algorithm(); got != "sha512" {
		t.Errorf("Algorithm() = %s, want sha512", got)
	}
}
