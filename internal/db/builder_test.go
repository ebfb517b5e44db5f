package db

import (
	"strings"
	"testing"
)

func TestIndexBuilder_ChunkSchema(t *testing.T) {
	idx, err := NewIndex("ragworker:chunks").
		Prefix("ragworker:chunk:").
		Tag("project_id").
		Tag("document_id").
		Numeric("chunk_index").
		VectorHNSW("vector", 3072, DistanceCosine, 16, 200).
		Build()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(idx.Fields) != 4 {
		t.Fatalf("fields count = %d, want 4", len(idx.Fields))
	}
	if idx.Fields[0].Name != "project_id" || idx.Fields[0].Type != IndexFieldTag {
		t.Errorf("field[0] = %+v, want project_id TAG", idx.Fields[0])
	}
	f := idx.Fields[3]
	if f.VectorAlgo != VectorHNSW || f.VectorDim != 3072 || f.VectorDistance != DistanceCosine {
		t.Errorf("unexpected vector field %+v", f)
	}
	if f.VectorM != 16 || f.VectorEFConstruct != 200 {
		t.Errorf("unexpected HNSW params M=%d EF=%d", f.VectorM, f.VectorEFConstruct)
	}
}

func TestIndexBuilder_VectorFlat(t *testing.T) {
	idx, err := NewIndex("vec-idx").
		Prefix("emb:").
		VectorFlat("embedding", 1536, DistanceCosine).
		Build()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if idx.Fields[0].VectorAlgo != VectorFlat {
		t.Errorf("algo = %q, want FLAT", idx.Fields[0].VectorAlgo)
	}
}

func TestIndexBuilder_ValidationErrors(t *testing.T) {
	tests := []struct {
		name    string
		builder func() (*IndexDefinition, error)
		wantErr string
	}{
		{
			name: "empty name",
			builder: func() (*IndexDefinition, error) {
				return NewIndex("").Tag("x").Build()
			},
			wantErr: "index name is required",
		},
		{
			name: "no fields",
			builder: func() (*IndexDefinition, error) {
				return NewIndex("idx").Build()
			},
			wantErr: "at least one field",
		},
		{
			name: "vector without dim",
			builder: func() (*IndexDefinition, error) {
				return NewIndex("idx").VectorFlat("v", 0, DistanceCosine).Build()
			},
			wantErr: "positive DIM",
		},
		{
			name: "invalid characters",
			builder: func() (*IndexDefinition, error) {
				return NewIndex("idx with spaces").Tag("x").Build()
			},
			wantErr: "invalid characters",
		},
		{
			name: "duplicate fields",
			builder: func() (*IndexDefinition, error) {
				return NewIndex("dup").Tag("a").Numeric("a").Build()
			},
			wantErr: "duplicate field name",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.builder()
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("got error %q, want containing %q", err.Error(), tt.wantErr)
			}
		})
	}
}

func TestIndexDefinition_String(t *testing.T) {
	idx, err := NewIndex("my-idx").
		Prefix("doc:").
		Tag("cat").
		VectorHNSW("vec", 512, DistanceCosine, 0, 0).
		Build()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := "FT.CREATE my-idx ON HASH PREFIX doc: SCHEMA cat TAG vec VECTOR HNSW"
	if s := idx.String(); s != want {
		t.Errorf("String() = %q, want %q", s, want)
	}
}

func TestError_Unwrap(t *testing.T) {
	inner := ErrKeyNotFound
	err := &Error{Op: OpGet, Err: inner}
	if err.Error() != "GET: db: key not found" {
		t.Errorf("unexpected message %q", err.Error())
	}
	if err.Unwrap() != inner {
		t.Error("expected Unwrap to return inner error")
	}
}
