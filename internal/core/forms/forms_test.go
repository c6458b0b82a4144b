package forms

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/shipbroker/internal/core"
	"github.com/JonMunkholm/shipbroker/internal/store"
)

func TestLoad(t *testing.T) {
	defs, err := Load(definitions)
	require.NoError(t, err)

	var keys []string
	for _, d := range defs {
		keys = append(keys, d.Key)
		assert.True(t, store.KnownTable(d.Table), "%s writes to unknown table %s", d.Key, d.Table)
	}
	assert.ElementsMatch(t, []string{"cargo_listing", "vessel_listing", "contact", "newsletter"}, keys)
}

func TestRegistered(t *testing.T) {
	for key, steps := range map[string]int{
		"cargo_listing":  3,
		"vessel_listing": 3,
		"contact":        1,
		"newsletter":     1,
	} {
		def, ok := core.Get(key)
		require.True(t, ok, key)
		assert.Equal(t, steps, def.StepCount(), key)
	}

	contact, _ := core.Get("contact")
	assert.Equal(t, "contact_form", contact.VerifyAction)
	assert.Equal(t, core.AfterSubmitReset, contact.AfterSubmit)

	newsletter, _ := core.Get("newsletter")
	assert.False(t, newsletter.RequiresVerification())
	assert.Equal(t, "This email is already subscribed to our newsletter.", newsletter.Messages.Duplicate)
}

func fill(t *testing.T, def *core.Definition, values map[string]any) core.Draft {
	t.Helper()
	c := core.NewController(def)
	for k, v := range values {
		require.NoError(t, c.SetField(k, v), k)
	}
	return c.Draft()
}

func cargoValues() map[string]any {
	return map[string]any{
		"cargoName":       "Urea",
		"imsbcType":       "group-c",
		"quantity":        "5000",
		"quantityUnit":    "mt",
		"loadingPort":     "Jebel Ali",
		"dischargingPort": "Port Said",
		"laycanFrom":      "2025-03-01",
		"laycanTo":        "2025-03-10",
		"contactName":     "A",
		"contactPhone":    "+971501234567",
		"contactEmail":    "a@b.co",
		"agreeTerms":      true,
	}
}

func TestCargoRecord(t *testing.T) {
	def, _ := core.Get("cargo_listing")
	v := core.NewValidator(def)
	d := fill(t, def, cargoValues())

	_, ok := v.CanSubmit(d)
	require.True(t, ok)

	rec, err := core.BuildRecord(def, v, d)
	require.NoError(t, err)

	want := store.Record{
		"cargo_type":            "Urea",
		"origin_port":           "Jebel Ali",
		"destination_port":      "Port Said",
		"cargo_weight":          5000.0,
		"cargo_volume":          nil,
		"preferred_vessel_type": "group-c",
		"loading_date":          time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
		"contact_name":          "A",
		"contact_email":         "a@b.co",
		"contact_phone":         "+971501234567",
		"company":               "firm",
		"additional_details": "IMSBC: group-c, Quantity: 5000 mt, Stowage Factor: , " +
			"Laycan: 2025-03-01 to 2025-03-10, Target Freight: , First Fixture: no",
	}
	if diff := cmp.Diff(want, rec); diff != "" {
		t.Errorf("cargo record mismatch (-want +got):\n%s", diff)
	}
}

func TestCargoLaycanOrder(t *testing.T) {
	def, _ := core.Get("cargo_listing")
	values := cargoValues()
	values["laycanTo"] = "2025-02-20"

	r := core.NewValidator(def).ValidateStep(fill(t, def, values), 1)
	assert.False(t, r.Valid)
	assert.Equal(t, "Laycan To cannot be before Laycan From", r.ErrorFor("laycanTo"))
}

func TestVesselGearDetails(t *testing.T) {
	def, _ := core.Get("vessel_listing")
	v := core.NewValidator(def).WithClock(func() time.Time {
		return time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	})

	base := map[string]any{
		"vesselName": "MV Nile Star",
		"vesselType": "general-cargo",
		"dwt":        "8500",
		"yearBuilt":  "2012",
		"flag":       "Panama",
	}

	t.Run("no gear leaves details inactive", func(t *testing.T) {
		values := map[string]any{"hasGear": "no"}
		for k, val := range base {
			values[k] = val
		}
		assert.True(t, v.ValidateStep(fill(t, def, values), 0).Valid)
	})

	t.Run("gear requires details", func(t *testing.T) {
		values := map[string]any{"hasGear": "yes"}
		for k, val := range base {
			values[k] = val
		}
		r := v.ValidateStep(fill(t, def, values), 0)
		assert.False(t, r.Valid)
		assert.Equal(t, "Gear Details is required", r.ErrorFor("gearDetails"))
	})

	t.Run("year built bounds", func(t *testing.T) {
		values := map[string]any{"hasGear": "no", "yearBuilt": "1985"}
		for k, val := range base {
			if k != "yearBuilt" {
				values[k] = val
			}
		}
		r := v.ValidateStep(fill(t, def, values), 0)
		assert.Equal(t, "Year Built must be at least 1990", r.ErrorFor("yearBuilt"))

		values["yearBuilt"] = "2026"
		r = v.ValidateStep(fill(t, def, values), 0)
		assert.Equal(t, "Year Built must be at most 2025", r.ErrorFor("yearBuilt"))
	})
}

func TestContactMessages(t *testing.T) {
	def, _ := core.Get("contact")
	r := core.NewValidator(def).ValidateStep(fill(t, def, map[string]any{
		"name":    "A",
		"email":   "not-an-email",
		"phone":   "12345",
		"message": "short",
	}), 0)

	assert.Equal(t, map[string]string{
		"name":            "Name must be at least 2 characters",
		"email":           "Invalid email address",
		"phone":           "Phone number must be at least 10 characters",
		"howDidYouFindUs": "Please select how you found us",
		"message":         "Message must be at least 10 characters",
	}, r.ErrorMap())
}

func TestNewsletterRecord(t *testing.T) {
	def, _ := core.Get("newsletter")
	v := core.NewValidator(def)

	rec, err := core.BuildRecord(def, v, fill(t, def, map[string]any{"email": "Broker@Example.com"}))
	require.NoError(t, err)
	assert.Equal(t, store.Record{"email": "broker@example.com", "name": nil}, rec)
}

type insert struct {
	table string
	rec   store.Record
}

type recordingInserter struct {
	mu      sync.Mutex
	inserts []insert
	err     error
}

func (r *recordingInserter) Insert(_ context.Context, table string, rec store.Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.inserts = append(r.inserts, insert{table, rec})
	return nil
}

var passVerifier = core.VerifierFunc(func(context.Context, string) (string, error) {
	return "tok", nil
})

func TestCargoListingSubmit(t *testing.T) {
	ins := &recordingInserter{}
	svc := core.NewService(ins, core.Config{})
	f, err := svc.Open("cargo_listing", "")
	require.NoError(t, err)

	values := cargoValues()
	values["cargoName"] = "Wheat"
	values["quantity"] = "5000"
	values["quantityUnit"] = "mt"
	require.NoError(t, f.SetFields(values))

	for i := 0; i < 2; i++ {
		_, err := f.Advance()
		require.NoError(t, err)
	}
	out, _, err := f.Submit(context.Background(), core.SubmitOptions{Verifier: passVerifier})
	require.NoError(t, err)

	assert.Equal(t, core.StateSucceeded, out.State)
	assert.Equal(t, core.StateSucceeded, f.Submission())
	require.Len(t, ins.inserts, 1)
	assert.Equal(t, "cargo_listings", ins.inserts[0].table)
	assert.Equal(t, "Wheat", ins.inserts[0].rec["cargo_type"])
	assert.Equal(t, 5000.0, ins.inserts[0].rec["cargo_weight"])
}

func TestVesselGearAdvanceStays(t *testing.T) {
	svc := core.NewService(&recordingInserter{}, core.Config{})
	f, err := svc.Open("vessel_listing", "")
	require.NoError(t, err)

	require.NoError(t, f.SetFields(map[string]any{
		"vesselName":  "MV Nile Star",
		"vesselType":  "general-cargo",
		"dwt":         "8500",
		"yearBuilt":   "2012",
		"flag":        "Panama",
		"hasGear":     "yes",
		"gearDetails": "",
	}))

	r, err := f.Advance()
	require.ErrorIs(t, err, core.ErrStepInvalid)
	assert.Equal(t, "Gear Details is required", r.ErrorFor("gearDetails"))
	assert.Equal(t, 0, f.State().Step)
}

func TestVesselDWTBounds(t *testing.T) {
	def, _ := core.Get("vessel_listing")
	d := fill(t, def, map[string]any{"dwt": "1e20"})

	r := core.NewValidator(def).ValidateStep(d, 0)
	assert.NotEmpty(t, r.ErrorFor("dwt"))
}

func TestNewsletterStoresLowercaseEmail(t *testing.T) {
	ins := &recordingInserter{}
	svc := core.NewService(ins, core.Config{})

	for _, email := range []string{"Broker@Example.com", "broker@example.com"} {
		f, err := svc.Open("newsletter", "")
		require.NoError(t, err)
		require.NoError(t, f.SetField("email", email))
		out, _, err := f.Submit(context.Background(), core.SubmitOptions{})
		require.NoError(t, err)
		require.Equal(t, core.StateSucceeded, out.State)
		svc.Discard(f.ID())
	}

	require.Len(t, ins.inserts, 2)
	assert.Equal(t, ins.inserts[0].rec["email"], ins.inserts[1].rec["email"])
}
