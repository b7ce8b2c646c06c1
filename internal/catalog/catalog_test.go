package catalog

import (
	"errors"
	"fmt"
	"math"
	"testing"
)

func TestDefaultCatalogWeights(t *testing.T) {
	c, err := Default(nil, "https://cdn.test/figures/")
	if err != nil {
		t.Fatalf("Default failed: %v", err)
	}
	if c.Len() != 24 {
		t.Fatalf("unexpected size: got=%d want=24", c.Len())
	}

	will, _ := c.Lookup("will")
	if will.Weight != 0.005 {
		t.Fatalf("unexpected will weight: got=%v want=0.005", will.Weight)
	}
	dark, _ := c.Lookup("will-upside-down")
	if dark.Weight != 0.01 {
		t.Fatalf("unexpected will-upside-down weight: got=%v want=0.01", dark.Weight)
	}

	wantOther := (1 - 0.005 - 0.01) / 22
	mike, _ := c.Lookup("mike")
	if math.Abs(mike.Weight-wantOther) > 1e-15 {
		t.Fatalf("unexpected common weight: got=%v want=%v", mike.Weight, wantOther)
	}
	if mike.MediaRef != "https://cdn.test/figures/mike.png" {
		t.Fatalf("unexpected media ref: %q", mike.MediaRef)
	}
}

func TestWeightsSumToOneForAnySize(t *testing.T) {
	for n := 2; n <= 60; n++ {
		figures := make([]Figure, n)
		for i := range figures {
			figures[i] = Figure{Slug: fmt.Sprintf("f%d", i), Name: fmt.Sprintf("Figure %d", i)}
		}
		rare := map[string]float64{"f0": 0.005, "f1": 0.01}
		c, err := New(figures, rare, "")
		if n == 2 {
			// only rare items left: their mass must already be 1
			if !errors.Is(err, ErrInvalidCatalog) {
				t.Fatalf("n=2: expected ErrInvalidCatalog, got %v", err)
			}
			continue
		}
		if err != nil {
			t.Fatalf("n=%d: New failed: %v", n, err)
		}
		sum := 0.0
		for _, w := range c.Weights() {
			sum += w.Probability
		}
		if math.Abs(sum-1) > Tolerance {
			t.Fatalf("n=%d: weights sum to %v", n, sum)
		}
	}
}

func TestNewRejectsBadConfig(t *testing.T) {
	figures := []Figure{{Slug: "a", Name: "A"}, {Slug: "b", Name: "B"}, {Slug: "c", Name: "C"}}

	cases := map[string]struct {
		figures []Figure
		rare    map[string]float64
	}{
		"empty":         {figures: nil},
		"unknown rare":  {figures: figures, rare: map[string]float64{"z": 0.1}},
		"rare too big":  {figures: figures, rare: map[string]float64{"a": 0.7, "b": 0.4}},
		"negative rare": {figures: figures, rare: map[string]float64{"a": -0.1}},
		"dup slug":      {figures: []Figure{{Slug: "a", Name: "A"}, {Slug: "a", Name: "B"}}},
		"dup name":      {figures: []Figure{{Slug: "a", Name: "A"}, {Slug: "b", Name: "A"}}},
	}
	for name, tc := range cases {
		if _, err := New(tc.figures, tc.rare, ""); !errors.Is(err, ErrInvalidCatalog) {
			t.Fatalf("%s: expected ErrInvalidCatalog, got %v", name, err)
		}
	}
}

func TestIndexKeepsCatalogOrder(t *testing.T) {
	c, err := Default(nil, "")
	if err != nil {
		t.Fatalf("Default failed: %v", err)
	}
	items := c.Items()
	for i, it := range items {
		if c.Index(it.Slug) != i {
			t.Fatalf("unexpected index for %s: got=%d want=%d", it.Slug, c.Index(it.Slug), i)
		}
	}
	if c.Index("unknown") != c.Len() {
		t.Fatalf("unknown slug should sort last")
	}
	items[0].Name = "mutated"
	if first, _ := c.Lookup(items[0].Slug); first.Name == "mutated" {
		t.Fatal("Items must return a copy")
	}
}

func TestLookupName(t *testing.T) {
	c, err := Default(DefaultRare, "")
	if err != nil {
		t.Fatalf("Default failed: %v", err)
	}
	will, _ := c.Lookup("will")
	got, ok := c.LookupName(will.Name)
	if !ok || got.Slug != "will" {
		t.Fatalf("unexpected lookup: %+v ok=%v", got, ok)
	}
	if _, ok := c.LookupName("Mind Flayer"); ok {
		t.Fatal("unknown name should not match")
	}
}
