package domain

import "fmt"

// Species names one of the ten fixed orchid varieties a germination draw can
// produce.
type Species struct {
	CommonName string `json:"common_name"`
	LatinName  string `json:"latin_name"`
}

// IsZero reports whether the species has not been assigned yet.
func (s Species) IsZero() bool { return s == Species{} }

func (s Species) String() string {
	if s.IsZero() {
		return "unassigned"
	}
	return fmt.Sprintf("%s (%s)", s.CommonName, s.LatinName)
}

// The ten species, rarest last.
var (
	SpeciesMothOrchid       = Species{CommonName: "moth orchid", LatinName: "phalaenopsis micholitzii"}
	SpeciesOrangeCattleya   = Species{CommonName: "orange cattleya", LatinName: "guarianthe aurantiaca"}
	SpeciesBlueVanda        = Species{CommonName: "blue vanda", LatinName: "vanda coerulea"}
	SpeciesLadysSlipper     = Species{CommonName: "lady's slipper", LatinName: "cypripedium calceolus"}
	SpeciesVietnamesePaph   = Species{CommonName: "Vietnamese Paphiopedilum", LatinName: "paphiopedilum vietnamense"}
	SpeciesKayasimaMiltonia = Species{CommonName: "Kayasima Miltonia", LatinName: "miltonia kayasimae"}
	SpeciesButterflyOrchid  = Species{CommonName: "Hochstetter's butterfly orchid", LatinName: "platanthera azorica"}
	SpeciesGhostOrchid      = Species{CommonName: "Ghost orchid", LatinName: "dendrophylax lindenii"}
	SpeciesGoldOfKinabalu   = Species{CommonName: "Gold of Kinabalu", LatinName: "paphiopedilum rothschildianum"}
	SpeciesShenzhenNongke   = Species{CommonName: "Shenzhen Nongke", LatinName: "shenzhenica orchidaceae"}
)

// speciesCutoffs maps inclusive draw upper bounds to species, in ascending
// order. A draw lands in the first bucket whose bound it does not exceed.
var speciesCutoffs = []struct {
	max     uint32
	species Species
}{
	{3074, SpeciesMothOrchid},
	{6074, SpeciesOrangeCattleya},
	{8074, SpeciesBlueVanda},
	{9074, SpeciesLadysSlipper},
	{9574, SpeciesVietnamesePaph},
	{9824, SpeciesKayasimaMiltonia},
	{9924, SpeciesButterflyOrchid},
	{9974, SpeciesGhostOrchid},
	{9999, SpeciesGoldOfKinabalu},
	{10000, SpeciesShenzhenNongke},
}

// AllSpecies lists every species in draw order.
func AllSpecies() []Species {
	out := make([]Species, len(speciesCutoffs))
	for i, c := range speciesCutoffs {
		out[i] = c.species
	}
	return out
}

// NormalizeDraw maps raw oracle randomness onto the assignment domain
// [1, 10000]. The value is taken modulo 10000, with 0 meaning the top value
// 10000 rather than the bottom.
func NormalizeDraw(random uint64) uint32 {
	draw := uint32(random % 10000)
	if draw == 0 {
		return 10000
	}
	return draw
}

// AssignSpecies maps a normalized draw to its species bucket. The mapping is
// total over [1, 10000]; draws outside the domain are an error. It is called
// exactly once per token, at germination fulfillment, and the result is
// stored immutably.
func AssignSpecies(draw uint32) (Species, error) {
	if draw < 1 || draw > 10000 {
		return Species{}, fmt.Errorf("species draw %d outside [1, 10000]", draw)
	}
	for _, c := range speciesCutoffs {
		if draw <= c.max {
			return c.species, nil
		}
	}
	// Unreachable: the last cutoff is 10000.
	return Species{}, fmt.Errorf("species draw %d unmatched", draw)
}
