package core

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/JonMunkholm/shipbroker/internal/store"
)

func TestBuildRecord(t *testing.T) {
	def := mustGet(t, "test_listing")
	v := NewValidator(def)

	values := validListing()
	values["gearDetails"] = "left over from before"
	rec, err := BuildRecord(def, v, fillDraft(t, def, values))
	if err != nil {
		t.Fatal(err)
	}

	want := store.Record{
		"cargo_type":         "Urea",
		"cargo_weight":       5000.0,
		"cargo_volume":       nil,
		"loading_date":       time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
		"contact_email":      "ops@example.com",
		"additional_details": "Gear: no, Gear Details: , Window: 2025-03-01 to 2025-03-10",
	}
	if diff := cmp.Diff(want, rec); diff != "" {
		t.Errorf("BuildRecord() mismatch (-want +got):\n%s", diff)
	}
}

func TestBuildRecord_UnparseableBecomesNull(t *testing.T) {
	def := mustGet(t, "test_listing")
	rec, err := BuildRecord(def, NewValidator(def), fillDraft(t, def, map[string]any{
		"qty":  "plenty",
		"from": "someday",
	}))
	if err != nil {
		t.Fatal(err)
	}
	if rec["cargo_weight"] != nil || rec["loading_date"] != nil {
		t.Errorf("got weight=%v date=%v, want nil", rec["cargo_weight"], rec["loading_date"])
	}
}

func TestBuildRecord_Nullable(t *testing.T) {
	def := mustGet(t, "test_signup")
	v := NewValidator(def)

	rec, _ := BuildRecord(def, v, fillDraft(t, def, map[string]any{"email": "A@B.CO"}))
	if diff := cmp.Diff(store.Record{"email": "a@b.co", "name": nil}, rec); diff != "" {
		t.Errorf("empty optional (-want +got):\n%s", diff)
	}

	rec, _ = BuildRecord(def, v, fillDraft(t, def, map[string]any{"email": "a@b.co", "name": " Sam "}))
	if rec["name"] != "Sam" {
		t.Errorf("name = %#v, want trimmed text", rec["name"])
	}
}

func TestBuildRecord_IntOutOfRange(t *testing.T) {
	def, err := ParseDefinition([]byte(`
key: test_tonnage
title: Tonnage
table: vessel_listings
steps:
  - name: Ship
    fields:
      - {name: dwt, label: DWT, kind: number, min: 0}
record:
  columns:
    - {column: dwt, field: dwt, as: int}
`))
	if err != nil {
		t.Fatal(err)
	}
	v := NewValidator(&def)

	tests := []struct {
		dwt     string
		want    any
		wantErr bool
	}{
		{dwt: "28500", want: int64(28500)},
		{dwt: "1e20", wantErr: true},
		{dwt: "99999999999999999999", wantErr: true},
		{dwt: "9223372036854775807", wantErr: true},
		{dwt: "", want: nil},
	}
	for _, tt := range tests {
		t.Run(tt.dwt, func(t *testing.T) {
			rec, err := BuildRecord(&def, v, fillDraft(t, &def, map[string]any{"dwt": tt.dwt}))
			if tt.wantErr {
				if err == nil {
					t.Fatalf("BuildRecord() stored dwt=%v, want out of range error", rec["dwt"])
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if rec["dwt"] != tt.want {
				t.Errorf("dwt = %#v, want %#v", rec["dwt"], tt.want)
			}
		})
	}
}
