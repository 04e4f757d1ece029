package pdbqt

import (
	"fmt"
	"sort"
	"strings"

	"github.com/turtacn/dockprep/internal/domain/ligand"
	"github.com/turtacn/dockprep/pkg/errors"
)

// ─────────────────────────────────────────────────────────────────────────────
// Ligand encoding
// ─────────────────────────────────────────────────────────────────────────────

// EncodeLigand renders an embedded conformer as a PDBQT torsion tree: a ROOT
// block holding the largest rigid fragment, nested BRANCH blocks for every
// rotatable bond, and a trailing TORSDOF count.
func EncodeLigand(conf *ligand.Conformer, resName string) (string, error) {
	if conf == nil || len(conf.Atoms) == 0 {
		return "", errors.LigandEncoding("cannot encode empty conformer")
	}
	if resName == "" {
		resName = "LIG"
	}

	rot := rotatableBonds(conf)
	frags, fragOf := rigidFragments(conf, rot)
	if len(frags) == 0 {
		return "", errors.LigandEncoding("conformer has no rigid fragment")
	}

	// Root is the largest fragment; ties break toward the lower index for
	// determinism.
	root := 0
	for i, f := range frags {
		if len(f) > len(frags[root]) {
			root = i
		}
	}

	// Fragment adjacency through rotatable bonds.
	type link struct {
		frag int
		a, b int // atom indices: a in the parent fragment, b in the child
	}
	adj := make(map[int][]link)
	for _, bi := range rot {
		b := conf.Bonds[bi]
		fa, fb := fragOf[b.A], fragOf[b.B]
		adj[fa] = append(adj[fa], link{frag: fb, a: b.A, b: b.B})
		adj[fb] = append(adj[fb], link{frag: fa, a: b.B, b: b.A})
	}
	for f := range adj {
		sort.Slice(adj[f], func(i, j int) bool { return adj[f][i].b < adj[f][j].b })
	}

	var sb strings.Builder
	serialOf := make(map[int]int, len(conf.Atoms))
	serial := 0
	charges := LigandCharges(conf)

	writeAtoms := func(frag int) {
		atoms := append([]int(nil), frags[frag]...)
		sort.Ints(atoms)
		for _, ai := range atoms {
			serial++
			serialOf[ai] = serial
			sb.WriteString(ligandAtomLine(conf, ai, serial, resName, charges[ai]))
		}
	}

	visited := map[int]bool{root: true}
	torsions := 0

	var walk func(frag int, entryA, entryB int, isRoot bool)
	walk = func(frag int, entryA, entryB int, isRoot bool) {
		if isRoot {
			sb.WriteString("ROOT\n")
			writeAtoms(frag)
			sb.WriteString("ENDROOT\n")
		} else {
			fmt.Fprintf(&sb, "BRANCH %d %d\n", serialOf[entryA], serial+1)
			writeAtoms(frag)
		}
		for _, l := range adj[frag] {
			if visited[l.frag] {
				continue
			}
			visited[l.frag] = true
			torsions++
			walk(l.frag, l.a, l.b, false)
		}
		if !isRoot {
			fmt.Fprintf(&sb, "END_BRANCH %d %d\n", serialOf[entryA], serialOf[entryB])
		}
	}
	walk(root, -1, -1, true)
	fmt.Fprintf(&sb, "TORSDOF %d\n", torsions)

	return sb.String(), nil
}

// rotatableBonds returns the bond indices eligible as torsions: acyclic
// single bonds between non-terminal heavy atoms, excluding amide linkages.
func rotatableBonds(conf *ligand.Conformer) []int {
	m := &ligand.Mol{Atoms: conf.Atoms, Bonds: conf.Bonds}
	inRing := ringBondIndexSet(m)

	heavyDegree := make([]int, len(conf.Atoms))
	for _, b := range conf.Bonds {
		if strings.ToUpper(conf.Atoms[b.A].Element) != "H" &&
			strings.ToUpper(conf.Atoms[b.B].Element) != "H" {
			heavyDegree[b.A]++
			heavyDegree[b.B]++
		}
	}

	var rot []int
	for bi, b := range conf.Bonds {
		if b.Order != 1 || b.Aromatic || inRing[bi] {
			continue
		}
		if strings.ToUpper(conf.Atoms[b.A].Element) == "H" ||
			strings.ToUpper(conf.Atoms[b.B].Element) == "H" {
			continue
		}
		if heavyDegree[b.A] < 2 || heavyDegree[b.B] < 2 {
			continue
		}
		if isAmideBond(m, b) {
			continue
		}
		rot = append(rot, bi)
	}
	return rot
}

func isAmideBond(m *ligand.Mol, b ligand.Bond) bool {
	c, n := b.A, b.B
	if strings.ToUpper(m.Atoms[c].Element) == "N" {
		c, n = n, c
	}
	if strings.ToUpper(m.Atoms[c].Element) != "C" || strings.ToUpper(m.Atoms[n].Element) != "N" {
		return false
	}
	for _, nb := range m.Neighbors(c) {
		if strings.ToUpper(m.Atoms[nb].Element) != "O" {
			continue
		}
		if bd, ok := m.BondBetween(c, nb); ok && bd.Order == 2 {
			return true
		}
	}
	return false
}

// ringBondIndexSet adapts the molecule's ring perception to bond indices of
// the conformer's bond slice.
func ringBondIndexSet(m *ligand.Mol) map[int]bool {
	ringAtoms := m.RingAtoms()
	set := map[int]bool{}
	for bi, b := range m.Bonds {
		if !ringAtoms[b.A] || !ringAtoms[b.B] {
			continue
		}
		// Both endpoints cyclic is necessary but not sufficient; confirm the
		// bond survives in a cycle by checking connectivity without it.
		if stillConnectedWithout(m, bi) {
			set[bi] = true
		}
	}
	return set
}

// stillConnectedWithout reports whether the bond's endpoints remain
// connected when the bond is removed, i.e. the bond lies on a cycle.
func stillConnectedWithout(m *ligand.Mol, skip int) bool {
	start, goal := m.Bonds[skip].A, m.Bonds[skip].B
	seen := map[int]bool{start: true}
	queue := []int{start}
	for len(queue) > 0 {
		u := queue[0]
		queue = queue[1:]
		for bi, b := range m.Bonds {
			if bi == skip {
				continue
			}
			var v int
			switch {
			case b.A == u:
				v = b.B
			case b.B == u:
				v = b.A
			default:
				continue
			}
			if v == goal {
				return true
			}
			if !seen[v] {
				seen[v] = true
				queue = append(queue, v)
			}
		}
	}
	return false
}

// rigidFragments partitions atoms into rigid fragments by removing the
// rotatable bonds, returning the fragments and the fragment index per atom.
func rigidFragments(conf *ligand.Conformer, rot []int) ([][]int, []int) {
	skip := map[int]bool{}
	for _, bi := range rot {
		skip[bi] = true
	}
	n := len(conf.Atoms)
	fragOf := make([]int, n)
	for i := range fragOf {
		fragOf[i] = -1
	}
	var frags [][]int
	for start := 0; start < n; start++ {
		if fragOf[start] >= 0 {
			continue
		}
		id := len(frags)
		var members []int
		queue := []int{start}
		fragOf[start] = id
		for len(queue) > 0 {
			u := queue[0]
			queue = queue[1:]
			members = append(members, u)
			for bi, b := range conf.Bonds {
				if skip[bi] {
					continue
				}
				var v int
				switch {
				case b.A == u:
					v = b.B
				case b.B == u:
					v = b.A
				default:
					continue
				}
				if fragOf[v] < 0 {
					fragOf[v] = id
					queue = append(queue, v)
				}
			}
		}
		frags = append(frags, members)
	}
	return frags, fragOf
}

// ligandAtomLine renders one PDBQT ATOM record: PDB columns through the
// temperature factor, then the partial charge and the AutoDock type.
func ligandAtomLine(conf *ligand.Conformer, ai, serial int, resName string, charge float64) string {
	name := atomName(conf, ai)
	c := conf.Coords[ai]
	return fmt.Sprintf("ATOM  %5d %-4s %-3s A%4d    %8.3f%8.3f%8.3f%6.2f%6.2f    %6.3f %-2s\n",
		serial, name, resName, 1,
		c[0], c[1], c[2], 1.00, 0.00,
		charge, LigandAtomType(conf, ai))
}

// atomName builds a per-atom name from the element and the atom's ordinal
// within that element (C1, C2, N1, ...).
func atomName(conf *ligand.Conformer, ai int) string {
	el := conf.Atoms[ai].Element
	ord := 0
	for i := 0; i <= ai; i++ {
		if conf.Atoms[i].Element == el {
			ord++
		}
	}
	return fmt.Sprintf("%s%d", strings.ToUpper(el), ord)
}
