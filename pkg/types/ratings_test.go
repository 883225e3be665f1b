package types

import "testing"

func TestRatingsRoundTripThroughDriver(t *testing.T) {
	in := Ratings{"food": 5, "delivery": 3}
	value, err := in.Value()
	if err != nil {
		t.Fatalf("Value: %v", err)
	}
	var out Ratings
	if err := out.Scan(value); err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if out["food"] != 5 || out["delivery"] != 3 {
		t.Fatalf("unexpected ratings %v", out)
	}
}

func TestRatingsScanEdgeCases(t *testing.T) {
	var r Ratings
	if err := r.Scan(nil); err != nil || r != nil {
		t.Fatalf("nil scan = %v, %v", r, err)
	}
	if err := r.Scan(`{"food":4}`); err != nil || r["food"] != 4 {
		t.Fatalf("string scan = %v, %v", r, err)
	}
	if err := r.Scan(42); err == nil {
		t.Fatal("expected unsupported type error")
	}
	if v, _ := Ratings(nil).Value(); string(v.([]byte)) != "{}" {
		t.Fatalf("nil ratings should store an empty object, got %v", v)
	}
	if err := r.Scan([]byte(`[1,2]`)); err == nil {
		t.Fatal("expected error for a json array")
	}
}

func TestRatingsValidate(t *testing.T) {
	normalized := Ratings{" Food ": 4, "DELIVERY": 5}.Normalize()
	if normalized["food"] != 4 || normalized["delivery"] != 5 || len(normalized) != 2 {
		t.Fatalf("Normalize = %v", normalized)
	}
	if field, err := normalized.Validate(); err != nil {
		t.Fatalf("Validate(%v) = %q, %v", normalized, field, err)
	}

	many := Ratings{}
	for i := range maxCategories + 1 {
		many[string(rune('a'+i))] = 3
	}
	cases := map[string]struct {
		in    Ratings
		field string
	}{
		"empty":      {in: Ratings{}},
		"too many":   {in: many},
		"low score":  {in: Ratings{"food": 0}, field: "food"},
		"high score": {in: Ratings{"food": 6}, field: "food"},
		"blank name": {in: Ratings{"": 3}, field: ""},
	}
	for name, tc := range cases {
		field, err := tc.in.Validate()
		if err == nil || field != tc.field {
			t.Fatalf("%s: Validate = %q, %v", name, field, err)
		}
	}
}
