package database

import (
	"errors"
	"testing"
)

func TestParseNamespace(t *testing.T) {
	tests := []struct {
		input   string
		want    Namespace
		wantErr bool
	}{
		{"ref", NamespaceReference, false},
		{"reference", NamespaceReference, false},
		{" Reference ", NamespaceReference, false},
		{"group", NamespaceGroup, false},
		{"GROUP", NamespaceGroup, false},
		{"faces", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseNamespace(tt.input)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidNamespace) {
					t.Errorf("ParseNamespace(%q) error = %v, want ErrInvalidNamespace", tt.input, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseNamespace(%q) unexpected error: %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("ParseNamespace(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestNamespaceTable(t *testing.T) {
	if got := NamespaceReference.Table(); got != "reference_images" {
		t.Errorf("reference table = %q", got)
	}
	if got := NamespaceGroup.Table(); got != "group_images" {
		t.Errorf("group table = %q", got)
	}
}

func TestStorageErrorWraps(t *testing.T) {
	cause := errors.New("disk full")
	err := StorageError("upsert", cause)
	if !errors.Is(err, ErrStorage) {
		t.Error("StorageError() does not match ErrStorage")
	}
	if !errors.Is(err, cause) {
		t.Error("StorageError() does not match its cause")
	}
}

func TestEmbeddingCodec(t *testing.T) {
	t.Run("round trip", func(t *testing.T) {
		in := []float32{0.25, -1.5, 3}
		text, err := EncodeEmbedding(in)
		if err != nil {
			t.Fatalf("EncodeEmbedding() error = %v", err)
		}
		if text != "[0.25,-1.5,3]" {
			t.Errorf("EncodeEmbedding() = %q", text)
		}
		out, err := DecodeEmbedding(text)
		if err != nil {
			t.Fatalf("DecodeEmbedding() error = %v", err)
		}
		if len(out) != len(in) || out[1] != -1.5 {
			t.Errorf("DecodeEmbedding() = %v", out)
		}
	})

	t.Run("rejects empty", func(t *testing.T) {
		if _, err := EncodeEmbedding(nil); err == nil {
			t.Error("EncodeEmbedding(nil) should fail")
		}
		if _, err := DecodeEmbedding("[]"); err == nil {
			t.Error(`DecodeEmbedding("[]") should fail`)
		}
	})

	t.Run("rejects garbage", func(t *testing.T) {
		for _, text := range []string{"not-json", `{"a":1}`, `["x"]`, ""} {
			if _, err := DecodeEmbedding(text); err == nil {
				t.Errorf("DecodeEmbedding(%q) should fail", text)
			}
		}
	})
}
