package ligand

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/turtacn/dockprep/pkg/errors"
)

// ─────────────────────────────────────────────────────────────────────────────
// Protonation variant enumeration
// ─────────────────────────────────────────────────────────────────────────────

// Variant is one protonation/tautomer state of a ligand at the target pH.
type Variant struct {
	Mol   *Mol
	Label string

	// Probability is the Henderson-Hasselbalch population estimate of this
	// state at the target pH, used to rank variants when capping.
	Probability float64
}

// EnumerateOptions controls variant enumeration.
type EnumerateOptions struct {
	PH                float64
	EnumerateTautomer bool
	EnumerateAcidBase bool

	// MaxVariants caps the number of returned variants; zero means no cap.
	// When capping applies, the most probable states are kept.
	MaxVariants int
}

// siteKind classifies an ionizable site by the functional group it sits in.
type siteKind int

const (
	siteCarboxyl siteKind = iota
	sitePhenol
	siteThiol
	siteAmine
	siteImidazoleN
	sitePhosphate
)

// sitePKa gives the approximate pKa used for population estimates.  The
// values are textbook group constants; substituent effects are ignored.
var sitePKa = map[siteKind]float64{
	siteCarboxyl:   4.2,
	sitePhenol:     10.0,
	siteThiol:      8.3,
	siteAmine:      9.5,
	siteImidazoleN: 6.0,
	sitePhosphate:  2.1,
}

// siteIsAcid reports whether the protonated form of the site is the neutral
// one (acid: loses a proton above pKa) as opposed to a base (gains a proton
// below pKa).
var siteIsAcid = map[siteKind]bool{
	siteCarboxyl:   true,
	sitePhenol:     true,
	siteThiol:      true,
	sitePhosphate:  true,
	siteAmine:      false,
	siteImidazoleN: false,
}

type ionizableSite struct {
	atom int
	kind siteKind
}

// findIonizableSites locates acidic and basic positions by local functional
// group patterns on the molecular graph.
func findIonizableSites(m *Mol) []ionizableSite {
	var sites []ionizableSite
	ringAtoms := m.RingAtoms()

	for i, a := range m.Atoms {
		switch strings.ToUpper(a.Element) {
		case "O":
			if a.Aromatic {
				continue
			}
			nbrs := m.Neighbors(i)
			if len(nbrs) != 1 || a.HCount == 0 {
				continue
			}
			c := nbrs[0]
			switch strings.ToUpper(m.Atoms[c].Element) {
			case "C":
				if hasDoubleBondedO(m, c, i) {
					sites = append(sites, ionizableSite{atom: i, kind: siteCarboxyl})
				} else if m.Atoms[c].Aromatic {
					sites = append(sites, ionizableSite{atom: i, kind: sitePhenol})
				}
			case "P":
				sites = append(sites, ionizableSite{atom: i, kind: sitePhosphate})
			}
		case "S":
			if !a.Aromatic && a.HCount > 0 && len(m.Neighbors(i)) == 1 {
				sites = append(sites, ionizableSite{atom: i, kind: siteThiol})
			}
		case "N":
			if a.Aromatic {
				// Pyridine/imidazole-type ring nitrogen without an attached
				// hydrogen is a weak base.
				if a.HCount == 0 && a.Charge == 0 {
					sites = append(sites, ionizableSite{atom: i, kind: siteImidazoleN})
				}
				continue
			}
			if ringAtoms[i] && isAmideN(m, i) {
				continue
			}
			if a.HCount == 0 && len(m.Neighbors(i)) < 3 {
				continue
			}
			if isAmideN(m, i) || hasDoubleBond(m, i) {
				continue
			}
			if a.Charge == 0 {
				sites = append(sites, ionizableSite{atom: i, kind: siteAmine})
			}
		}
	}
	return sites
}

func hasDoubleBondedO(m *Mol, c, except int) bool {
	for _, n := range m.Neighbors(c) {
		if n == except || strings.ToUpper(m.Atoms[n].Element) != "O" {
			continue
		}
		if b, ok := m.BondBetween(c, n); ok && b.Order == 2 {
			return true
		}
	}
	return false
}

func isAmideN(m *Mol, n int) bool {
	for _, c := range m.Neighbors(n) {
		if strings.ToUpper(m.Atoms[c].Element) != "C" {
			continue
		}
		if hasDoubleBondedO(m, c, -1) {
			return true
		}
	}
	return false
}

func hasDoubleBond(m *Mol, i int) bool {
	for _, b := range m.Bonds {
		if (b.A == i || b.B == i) && b.Order >= 2 {
			return true
		}
	}
	return false
}

// protonatedFraction returns the population of the protonated state at pH.
func protonatedFraction(kind siteKind, ph float64) float64 {
	return 1.0 / (1.0 + math.Pow(10, ph-sitePKa[kind]))
}

// applySiteState mutates the molecule so the site is protonated or not,
// adjusting hydrogen count and formal charge.
func applySiteState(m *Mol, s ionizableSite, protonated bool) {
	a := &m.Atoms[s.atom]
	if siteIsAcid[s.kind] {
		if protonated {
			a.Charge = 0
			if a.HCount == 0 {
				a.HCount = 1
			}
		} else {
			a.Charge = -1
			a.HCount = 0
		}
		return
	}
	// Basic site: protonation adds a hydrogen and a positive charge.
	if protonated {
		a.Charge = 1
		a.HCount++
	} else {
		a.Charge = 0
	}
}

// Enumerate generates the protonation variants of a parsed ligand according
// to opts.  With both enumeration flags off it returns exactly one variant:
// the most probable protonation state of every site at the target pH.
func Enumerate(m *Mol, opts EnumerateOptions) ([]Variant, error) {
	if m == nil || len(m.Atoms) == 0 {
		return nil, errors.NoValidVariant("cannot enumerate variants of an empty molecule")
	}
	ph := opts.PH
	if ph == 0 {
		ph = 7.4
	}
	sites := findIonizableSites(m)

	if !opts.EnumerateAcidBase {
		// Deterministic single state: majority species per site.
		v := m.Clone()
		prob := 1.0
		for _, s := range sites {
			f := protonatedFraction(s.kind, ph)
			protonated := f >= 0.5
			applySiteState(v, s, protonated)
			if protonated {
				prob *= f
			} else {
				prob *= 1 - f
			}
		}
		variants := []Variant{{Mol: v, Label: fmt.Sprintf("pH%.1f", ph), Probability: prob}}
		if opts.EnumerateTautomer {
			variants = append(variants, enumerateTautomers(v, ph)...)
		}
		return capVariants(variants, opts.MaxVariants), nil
	}

	// Full acid/base enumeration: every combination of site states, ranked
	// by population.  Site counts in drug-like molecules are small, so the
	// 2^n expansion stays tractable; the cap below bounds the output.
	states := 1 << len(sites)
	variants := make([]Variant, 0, states)
	for mask := 0; mask < states; mask++ {
		v := m.Clone()
		prob := 1.0
		for si, s := range sites {
			protonated := mask&(1<<si) != 0
			applySiteState(v, s, protonated)
			f := protonatedFraction(s.kind, ph)
			if protonated {
				prob *= f
			} else {
				prob *= 1 - f
			}
		}
		variants = append(variants, Variant{
			Mol:         v,
			Label:       fmt.Sprintf("pH%.1f-state%d", ph, mask),
			Probability: prob,
		})
	}
	if opts.EnumerateTautomer {
		base := variants
		for _, v := range base {
			variants = append(variants, enumerateTautomers(v.Mol, ph)...)
		}
	}

	sort.SliceStable(variants, func(i, j int) bool {
		return variants[i].Probability > variants[j].Probability
	})
	return capVariants(variants, opts.MaxVariants), nil
}

// enumerateTautomers produces annular tautomers for five-membered-ring-style
// aromatic nitrogen pairs: the hydrogen on an [nH] is relocated to another
// ring nitrogen of the same ring system.  Other tautomerism is out of reach
// of a graph-only model and is not attempted.
func enumerateTautomers(m *Mol, ph float64) []Variant {
	var donors, acceptors []int
	for i, a := range m.Atoms {
		if strings.ToUpper(a.Element) != "N" || !a.Aromatic {
			continue
		}
		if a.HCount > 0 {
			donors = append(donors, i)
		} else if a.Charge == 0 {
			acceptors = append(acceptors, i)
		}
	}
	var out []Variant
	for _, d := range donors {
		for _, acc := range acceptors {
			t := m.Clone()
			t.Atoms[d].HCount--
			t.Atoms[acc].HCount++
			t.Atoms[acc].hExplicit = true
			t.Atoms[d].hExplicit = true
			out = append(out, Variant{
				Mol:   t,
				Label: fmt.Sprintf("pH%.1f-taut-N%d", ph, acc),
				// Tautomer populations are not modelled; ranked below the
				// canonical state.
				Probability: 0.25,
			})
		}
	}
	return out
}

func capVariants(vs []Variant, max int) []Variant {
	if max > 0 && len(vs) > max {
		return vs[:max]
	}
	return vs
}
