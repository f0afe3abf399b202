package service

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/docpipeline/docpipeline/internal/pipelineerr"
)

func writeSchemaFile(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name+".json"), []byte(content), 0o644); err != nil {
		t.Fatalf("write schema fixture: %v", err)
	}
}

func TestSchemaRegistry_GetLoadsAndCaches(t *testing.T) {
	dir := t.TempDir()
	writeSchemaFile(t, dir, "invoice-v1", `{"type":"object","properties":{"total":{"type":"number"}}}`)

	reg := NewSchemaRegistry(dir)
	s1, err := reg.Get("invoice-v1")
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	s2, err := reg.Get("invoice-v1")
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if s1 != s2 {
		t.Error("expected the same cached *Schema on repeated Get()")
	}
}

func TestSchemaRegistry_GetMissingFile(t *testing.T) {
	reg := NewSchemaRegistry(t.TempDir())
	_, err := reg.Get("does-not-exist")
	if err == nil {
		t.Fatal("expected error for missing schema file")
	}
	if pipelineerr.KindOf(err) != pipelineerr.KindSchemaRegistry {
		t.Errorf("expected KindSchemaRegistry, got %s", pipelineerr.KindOf(err))
	}
}

func TestSchemaRegistry_GetMalformedJSON(t *testing.T) {
	dir := t.TempDir()
	writeSchemaFile(t, dir, "broken", `{not valid json`)

	reg := NewSchemaRegistry(dir)
	_, err := reg.Get("broken")
	if err == nil {
		t.Fatal("expected error for malformed schema")
	}
	if pipelineerr.KindOf(err) != pipelineerr.KindSchemaRegistry {
		t.Errorf("expected KindSchemaRegistry, got %s", pipelineerr.KindOf(err))
	}
}

func TestSchemaRegistry_GetNonObjectRoot(t *testing.T) {
	dir := t.TempDir()
	writeSchemaFile(t, dir, "array-root", `["not", "an", "object"]`)

	reg := NewSchemaRegistry(dir)
	_, err := reg.Get("array-root")
	if err == nil {
		t.Fatal("expected error for non-object schema root")
	}
}

func TestSchemaRegistry_List(t *testing.T) {
	dir := t.TempDir()
	writeSchemaFile(t, dir, "b-schema", `{"type":"object"}`)
	writeSchemaFile(t, dir, "a-schema", `{"type":"object"}`)

	reg := NewSchemaRegistry(dir)
	if _, err := reg.Get("b-schema"); err != nil {
		t.Fatal(err)
	}
	if _, err := reg.Get("a-schema"); err != nil {
		t.Fatal(err)
	}

	names := reg.List()
	if len(names) != 2 || names[0] != "a-schema" || names[1] != "b-schema" {
		t.Errorf("List() = %v, want sorted [a-schema b-schema]", names)
	}
}

func TestSchemaRegistry_Clear(t *testing.T) {
	dir := t.TempDir()
	writeSchemaFile(t, dir, "s", `{"type":"object"}`)

	reg := NewSchemaRegistry(dir)
	if _, err := reg.Get("s"); err != nil {
		t.Fatal(err)
	}
	reg.Clear()
	if len(reg.List()) != 0 {
		t.Error("expected empty cache after Clear()")
	}
}

func TestSchemaRegistry_ListAvailable(t *testing.T) {
	dir := t.TempDir()
	writeSchemaFile(t, dir, "invoice-v1", `{"type":"object"}`)
	writeSchemaFile(t, dir, "receipt-v1", `{"type":"object"}`)

	reg := NewSchemaRegistry(dir)
	names, err := reg.ListAvailable()
	if err != nil {
		t.Fatalf("ListAvailable() error: %v", err)
	}
	if len(names) != 2 || names[0] != "invoice-v1" || names[1] != "receipt-v1" {
		t.Errorf("ListAvailable() = %v", names)
	}
}
