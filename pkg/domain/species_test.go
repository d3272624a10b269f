package domain

import "testing"

func TestAssignSpeciesBoundaries(t *testing.T) {
	cases := []struct {
		draw uint32
		want Species
	}{
		{1, SpeciesMothOrchid},
		{3074, SpeciesMothOrchid},
		{3075, SpeciesOrangeCattleya},
		{6074, SpeciesOrangeCattleya},
		{6075, SpeciesBlueVanda},
		{8074, SpeciesBlueVanda},
		{8075, SpeciesLadysSlipper},
		{9074, SpeciesLadysSlipper},
		{9075, SpeciesVietnamesePaph},
		{9574, SpeciesVietnamesePaph},
		{9575, SpeciesKayasimaMiltonia},
		{9824, SpeciesKayasimaMiltonia},
		{9825, SpeciesButterflyOrchid},
		{9924, SpeciesButterflyOrchid},
		{9925, SpeciesGhostOrchid},
		{9974, SpeciesGhostOrchid},
		{9975, SpeciesGoldOfKinabalu},
		{9999, SpeciesGoldOfKinabalu},
		{10000, SpeciesShenzhenNongke},
	}
	for _, tc := range cases {
		got, err := AssignSpecies(tc.draw)
		if err != nil {
			t.Fatalf("draw %d: %v", tc.draw, err)
		}
		if got != tc.want {
			t.Fatalf("draw %d: got %s want %s", tc.draw, got, tc.want)
		}
	}
}

func TestAssignSpeciesOutOfRange(t *testing.T) {
	if _, err := AssignSpecies(0); err == nil {
		t.Fatalf("expected error for draw 0")
	}
	if _, err := AssignSpecies(10001); err == nil {
		t.Fatalf("expected error for draw 10001")
	}
}

func TestAssignSpeciesTotalOverDomain(t *testing.T) {
	for draw := uint32(1); draw <= 10000; draw++ {
		s, err := AssignSpecies(draw)
		if err != nil {
			t.Fatalf("draw %d: %v", draw, err)
		}
		if s.IsZero() {
			t.Fatalf("draw %d: zero species", draw)
		}
	}
}

func TestNormalizeDraw(t *testing.T) {
	cases := []struct {
		random uint64
		want   uint32
	}{
		{0, 10000},
		{1, 1},
		{9999, 9999},
		{10000, 10000},
		{10001, 1},
		{20000, 10000},
		{123456789, 6789},
	}
	for _, tc := range cases {
		if got := NormalizeDraw(tc.random); got != tc.want {
			t.Fatalf("random %d: got %d want %d", tc.random, got, tc.want)
		}
	}
}

func TestAllSpeciesOrder(t *testing.T) {
	all := AllSpecies()
	if len(all) != 10 {
		t.Fatalf("expected 10 species, got %d", len(all))
	}
	if all[0] != SpeciesMothOrchid {
		t.Fatalf("expected moth orchid first, got %s", all[0])
	}
	if all[9] != SpeciesShenzhenNongke {
		t.Fatalf("expected Shenzhen Nongke last, got %s", all[9])
	}
}
