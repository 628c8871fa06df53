package grid

import (
	"sort"
	"testing"

	"slether-arena/internal/geom"
)

func TestCellOf_FloorsNegativeCoordinates(t *testing.T) {
	g := New(100)
	cases := []struct {
		p    geom.Point
		want Cell
	}{
		{geom.Point{X: 0, Y: 0}, Cell{0, 0}},
		{geom.Point{X: 99.9, Y: 100}, Cell{0, 1}},
		{geom.Point{X: -0.1, Y: -100}, Cell{-1, -1}},
		{geom.Point{X: -100.1, Y: 250}, Cell{-2, 2}},
	}
	for _, tc := range cases {
		if got := g.CellOf(tc.p); got != tc.want {
			t.Fatalf("CellOf(%+v): got %+v want %+v", tc.p, got, tc.want)
		}
	}
}

func TestQuery_CoversThreeByThreeNeighborhood(t *testing.T) {
	g := New(100)
	g.Insert("center", geom.Point{X: 150, Y: 150})
	g.Insert("corner", geom.Point{X: 20, Y: 20})
	g.Insert("edge", geom.Point{X: 299, Y: 150})
	g.Insert("far", geom.Point{X: 350, Y: 150})

	got := g.Query(geom.Point{X: 110, Y: 190})
	sort.Strings(got)
	want := []string{"center", "corner", "edge"}
	if len(got) != len(want) {
		t.Fatalf("query: got %v want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("query: got %v want %v", got, want)
		}
	}
}

func TestQuery_DeduplicatesIdsInSeveralCells(t *testing.T) {
	g := New(100)
	g.Insert("snake", geom.Point{X: 10, Y: 10})
	g.Insert("snake", geom.Point{X: 110, Y: 10})
	got := g.Query(geom.Point{X: 50, Y: 50})
	if len(got) != 1 || got[0] != "snake" {
		t.Fatalf("query: got %v want [snake]", got)
	}
	if g.Len() != 2 {
		t.Fatalf("len: got %d want 2", g.Len())
	}
}

func TestInsertRemove_KeepsExactMembership(t *testing.T) {
	g := New(50)
	p := geom.Point{X: 75, Y: 20}
	g.Insert("f1", p)
	g.Insert("f1", p)
	if g.Len() != 1 {
		t.Fatalf("duplicate insert counted: len=%d", g.Len())
	}
	if !g.Contains("f1", p) {
		t.Fatalf("expected f1 in its cell")
	}
	if g.Remove("f1", geom.Point{X: 10, Y: 10}) {
		t.Fatalf("remove from the wrong cell should fail")
	}
	if !g.Remove("f1", p) {
		t.Fatalf("remove from the right cell should succeed")
	}
	if g.Contains("f1", p) || g.Len() != 0 {
		t.Fatalf("f1 still registered after remove")
	}
	if got := g.Query(p); len(got) != 0 {
		t.Fatalf("query after remove: got %v", got)
	}
}

func TestClear(t *testing.T) {
	g := New(10)
	for i := 0; i < 20; i++ {
		g.Insert(string(rune('a'+i)), geom.Point{X: float64(i * 7), Y: 3})
	}
	g.Clear()
	if g.Len() != 0 || len(g.Query(geom.Point{X: 0, Y: 0})) != 0 {
		t.Fatalf("grid not empty after Clear")
	}
}
