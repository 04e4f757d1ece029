package ligand

import (
	"fmt"
	"math"
	"strings"

	"github.com/turtacn/dockprep/pkg/errors"
)

// ─────────────────────────────────────────────────────────────────────────────
// 3D conformer generation
// ─────────────────────────────────────────────────────────────────────────────

// Conformer holds one 3D embedding of a variant.  Coords is indexed in
// parallel with the expanded atom list: the heavy atoms of the molecule
// first, then the polar hydrogens appended by expansion.
type Conformer struct {
	// Atoms is the embedded atom list, heavy atoms followed by polar
	// hydrogens attached to N, O, and S.  Nonpolar hydrogens stay implicit,
	// matching the united-atom convention of the docking encoding.
	Atoms  []MolAtom
	Coords [][3]float64

	// HeavyParent maps each appended hydrogen (index >= heavy count) to the
	// heavy atom it is bonded to.
	HeavyParent map[int]int

	// Bonds mirrors the molecule's bonds plus the hydrogen attachments.
	Bonds []Bond
}

// Bond geometry constants, in angstroms.
const (
	bondSingle   = 1.54
	bondAromatic = 1.39
	bondDouble   = 1.34
	bondTriple   = 1.20
	bondHydrogen = 1.01

	tetrahedralAngle = 109.47 * math.Pi / 180
	minSeparation    = 0.8
)

// EmbedOptions controls conformer generation.
type EmbedOptions struct {
	// NumConformers is how many distinct embeddings to produce.  Zero or
	// one yields a single conformer.  Additional conformers differ by
	// deterministic torsion offsets.
	NumConformers int

	// Seed varies the deterministic torsion schedule; the same seed always
	// produces the same coordinates.
	Seed int64
}

// Embed produces 3D conformers for a molecule.  The embedding walks the
// graph breadth-first from the first atom, placing each atom at a standard
// bond length from its parent with tetrahedral spread and a torsion angle
// drawn from a deterministic schedule.  Clashes are relieved by retrying
// with shifted torsion phases.
//
// Ring geometry is approximate: bonds that close a ring are not traversed
// by the walk, so their lengths are not set to the standard values.  A
// collapsed closure, where the two ring ends land nearly on top of each
// other, is rejected as a clash; a stretched one is accepted.  The docking
// engine's own minimization is expected to restore proper ring shapes.
func Embed(m *Mol, opts EmbedOptions) ([]Conformer, error) {
	if m == nil || len(m.Atoms) == 0 {
		return nil, errors.ConformerGeneration("cannot embed empty molecule", "")
	}

	n := opts.NumConformers
	if n < 1 {
		n = 1
	}
	out := make([]Conformer, 0, n)
	for i := 0; i < n; i++ {
		conf, err := embedOne(m, opts.Seed+int64(i)*7919)
		if err != nil {
			return nil, err
		}
		out = append(out, conf)
	}
	return out, nil
}

func embedOne(m *Mol, seed int64) (Conformer, error) {
	const maxAttempts = 8
	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		conf, err := tryEmbed(m, seed+int64(attempt)*104729)
		if err == nil {
			return conf, nil
		}
		lastErr = err
	}
	return Conformer{}, errors.ConformerGeneration(
		fmt.Sprintf("embedding failed after %d attempts: %v", maxAttempts, lastErr),
		m.SMILES)
}

func tryEmbed(m *Mol, seed int64) (Conformer, error) {
	nHeavy := len(m.Atoms)
	coords := make([][3]float64, nHeavy)
	placed := make([]bool, nHeavy)

	// Torsion schedule: a cheap deterministic PRNG stream.
	state := uint64(seed)*6364136223846793005 + 1442695040888963407
	nextAngle := func() float64 {
		state = state*6364136223846793005 + 1442695040888963407
		return float64(state>>33) / float64(1<<31) * 2 * math.Pi
	}

	// BFS placement per connected fragment; fragments are offset along x so
	// dot-separated salts do not overlap.
	fragOffset := 0.0
	for root := 0; root < nHeavy; root++ {
		if placed[root] {
			continue
		}
		coords[root] = [3]float64{fragOffset, 0, 0}
		placed[root] = true
		queue := []int{root}
		for len(queue) > 0 {
			parent := queue[0]
			queue = queue[1:]
			for _, child := range m.Neighbors(parent) {
				if placed[child] {
					continue
				}
				b, _ := m.BondBetween(parent, child)
				dir := childDirection(m, coords, placed, parent, nextAngle())
				length := bondLength(b)
				coords[child] = add(coords[parent], scale(dir, length))
				placed[child] = true
				queue = append(queue, child)
			}
		}
		fragOffset += 10.0
	}

	if err := checkClashes(coords); err != nil {
		return Conformer{}, err
	}

	conf := Conformer{
		Atoms:       append([]MolAtom(nil), m.Atoms...),
		Coords:      coords,
		HeavyParent: map[int]int{},
		Bonds:       append([]Bond(nil), m.Bonds...),
	}
	addPolarHydrogens(m, &conf, nextAngle)
	return conf, nil
}

// childDirection picks a unit vector away from the parent's already-placed
// neighbors, spreading substituents tetrahedrally with the torsion angle
// applied around the incoming bond.
func childDirection(m *Mol, coords [][3]float64, placed []bool, parent int, torsion float64) [3]float64 {
	var anchors [][3]float64
	for _, n := range m.Neighbors(parent) {
		if placed[n] {
			anchors = append(anchors, sub(coords[n], coords[parent]))
		}
	}
	switch len(anchors) {
	case 0:
		return [3]float64{1, 0, 0}
	case 1:
		// Bend away from the single anchor by the tetrahedral angle and
		// rotate by the torsion around it.
		axis := normalize(anchors[0])
		perp := anyPerpendicular(axis)
		dir := add(scale(axis, math.Cos(math.Pi-tetrahedralAngle)),
			scale(perp, math.Sin(math.Pi-tetrahedralAngle)))
		return normalize(rotateAround(dir, axis, torsion))
	default:
		// Point away from the average of existing substituents.
		var sum [3]float64
		for _, a := range anchors {
			sum = add(sum, normalize(a))
		}
		if norm(sum) < 1e-9 {
			return normalize(anyPerpendicular(normalize(anchors[0])))
		}
		away := scale(normalize(sum), -1)
		// Small torsional jitter keeps symmetric substituents apart.
		perp := anyPerpendicular(away)
		return normalize(add(away, scale(perp, 0.3*math.Sin(torsion))))
	}
}

func bondLength(b Bond) float64 {
	switch {
	case b.Aromatic:
		return bondAromatic
	case b.Order == 2:
		return bondDouble
	case b.Order == 3:
		return bondTriple
	default:
		return bondSingle
	}
}

// checkClashes rejects embeddings where any two heavy atoms sit closer than
// the separation floor, or where any coordinate is not finite.  Tree bonds
// always measure a standard length well above the floor, so the check only
// ever trips on torsion collisions and collapsed ring closures.
func checkClashes(coords [][3]float64) error {
	for i := range coords {
		for k := 0; k < 3; k++ {
			if math.IsNaN(coords[i][k]) || math.IsInf(coords[i][k], 0) {
				return fmt.Errorf("non-finite coordinate at atom %d", i)
			}
		}
		for j := i + 1; j < len(coords); j++ {
			if dist(coords[i], coords[j]) < minSeparation {
				return fmt.Errorf("clash between atoms %d and %d", i, j)
			}
		}
	}
	return nil
}

// addPolarHydrogens appends explicit hydrogens for N, O, and S donors so the
// docking encoding can type them as donors.
func addPolarHydrogens(m *Mol, conf *Conformer, nextAngle func() float64) {
	nHeavy := len(m.Atoms)
	for i := 0; i < nHeavy; i++ {
		a := m.Atoms[i]
		el := strings.ToUpper(a.Element)
		if el != "N" && el != "O" && el != "S" {
			continue
		}
		for h := 0; h < a.HCount; h++ {
			idx := len(conf.Atoms)
			placedMask := make([]bool, nHeavy)
			for k := range placedMask {
				placedMask[k] = true
			}
			dir := childDirection(m, conf.Coords[:nHeavy], placedMask, i, nextAngle())
			conf.Atoms = append(conf.Atoms, MolAtom{Element: "H"})
			conf.Coords = append(conf.Coords, add(conf.Coords[i], scale(dir, bondHydrogen)))
			conf.HeavyParent[idx] = i
			conf.Bonds = append(conf.Bonds, Bond{A: i, B: idx, Order: 1})
		}
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Vector helpers
// ─────────────────────────────────────────────────────────────────────────────

func add(a, b [3]float64) [3]float64 { return [3]float64{a[0] + b[0], a[1] + b[1], a[2] + b[2]} }
func sub(a, b [3]float64) [3]float64 { return [3]float64{a[0] - b[0], a[1] - b[1], a[2] - b[2]} }
func scale(a [3]float64, s float64) [3]float64 {
	return [3]float64{a[0] * s, a[1] * s, a[2] * s}
}
func norm(a [3]float64) float64 {
	return math.Sqrt(a[0]*a[0] + a[1]*a[1] + a[2]*a[2])
}
func normalize(a [3]float64) [3]float64 {
	n := norm(a)
	if n < 1e-12 {
		return [3]float64{1, 0, 0}
	}
	return scale(a, 1/n)
}
func dist(a, b [3]float64) float64 { return norm(sub(a, b)) }

func cross(a, b [3]float64) [3]float64 {
	return [3]float64{
		a[1]*b[2] - a[2]*b[1],
		a[2]*b[0] - a[0]*b[2],
		a[0]*b[1] - a[1]*b[0],
	}
}

func anyPerpendicular(v [3]float64) [3]float64 {
	ref := [3]float64{0, 0, 1}
	if math.Abs(v[2]) > 0.9 {
		ref = [3]float64{0, 1, 0}
	}
	return normalize(cross(v, ref))
}

// rotateAround rotates v around the unit axis by angle (Rodrigues formula).
func rotateAround(v, axis [3]float64, angle float64) [3]float64 {
	c, s := math.Cos(angle), math.Sin(angle)
	term1 := scale(v, c)
	term2 := scale(cross(axis, v), s)
	term3 := scale(axis, dot(axis, v)*(1-c))
	return add(add(term1, term2), term3)
}

func dot(a, b [3]float64) float64 { return a[0]*b[0] + a[1]*b[1] + a[2]*b[2] }
