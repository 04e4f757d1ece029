package ligand

// ringBondSet marks every bond that lies on at least one cycle.  A bond is
// cyclic exactly when it is not a bridge of the molecular graph, so a single
// bridge-finding pass suffices.
func (m *Mol) ringBondSet() map[int]bool {
	n := len(m.Atoms)
	type edge struct{ to, bond int }
	edges := make([][]edge, n)
	for bi, b := range m.Bonds {
		edges[b.A] = append(edges[b.A], edge{b.B, bi})
		edges[b.B] = append(edges[b.B], edge{b.A, bi})
	}

	disc := make([]int, n)
	low := make([]int, n)
	for i := range disc {
		disc[i] = -1
	}
	inRing := map[int]bool{}
	timer := 0

	var dfs func(u, parentBond int)
	dfs = func(u, parentBond int) {
		disc[u] = timer
		low[u] = timer
		timer++
		for _, e := range edges[u] {
			if e.bond == parentBond {
				continue
			}
			if disc[e.to] == -1 {
				dfs(e.to, e.bond)
				if low[e.to] < low[u] {
					low[u] = low[e.to]
				}
				if low[e.to] <= disc[u] {
					inRing[e.bond] = true
				}
			} else {
				if disc[e.to] < low[u] {
					low[u] = disc[e.to]
				}
				if disc[e.to] < disc[u] {
					inRing[e.bond] = true
				}
			}
		}
	}
	for i := 0; i < n; i++ {
		if disc[i] == -1 {
			dfs(i, -1)
		}
	}
	return inRing
}

// RingAtoms returns, per atom index, whether the atom belongs to a ring.
func (m *Mol) RingAtoms() []bool {
	inRing := m.ringBondSet()
	atoms := make([]bool, len(m.Atoms))
	for bi := range m.Bonds {
		if inRing[bi] {
			atoms[m.Bonds[bi].A] = true
			atoms[m.Bonds[bi].B] = true
		}
	}
	return atoms
}
