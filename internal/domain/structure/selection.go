package structure

import (
	"fmt"
	"strings"
)

// Selection is a declarative, composable atom filter.  Selections are values:
// composing or applying them never mutates the receiver or the input
// Structure.
//
// Applying two selections sequentially is equivalent to applying their
// conjunction, and because every predicate here is a pure per-atom test the
// result is independent of application order.  Order still matters for
// auditability: String() reports predicates in composition order, and that
// exact order is what gets recorded on preparation results.
type Selection struct {
	name string
	pred func(Atom) bool
}

// String returns the human-readable form of the selection, e.g.
// "protein and not water and chain A".
func (s Selection) String() string {
	if s.name == "" {
		return "all"
	}
	return s.name
}

// Matches reports whether a single atom passes the selection.
func (s Selection) Matches(a Atom) bool {
	if s.pred == nil {
		return true
	}
	return s.pred(a)
}

// Apply filters st and returns a new Structure containing the matching atoms
// in their original order.  The result may be empty; callers that require a
// non-empty subset check Len and raise EmptySelectionError themselves, since
// only they know whether emptiness is an error.
func (s Selection) Apply(st *Structure) *Structure {
	var out []Atom
	for _, a := range st.atoms {
		if s.Matches(a) {
			out = append(out, a)
		}
	}
	return &Structure{atoms: out, cryst1: st.cryst1}
}

// And returns the conjunction of two selections.  The receiver's predicates
// are evaluated first; the composed name preserves that order.
func (s Selection) And(o Selection) Selection {
	left, right := s, o
	name := left.String()
	if name == "all" {
		name = right.String()
	} else if right.String() != "all" {
		name = name + " and " + right.String()
	}
	return Selection{
		name: name,
		pred: func(a Atom) bool { return left.Matches(a) && right.Matches(a) },
	}
}

// Or returns the disjunction of two selections.
func (s Selection) Or(o Selection) Selection {
	left, right := s, o
	if left.String() == "all" || right.String() == "all" {
		return All()
	}
	return Selection{
		name: "(" + left.String() + " or " + right.String() + ")",
		pred: func(a Atom) bool { return left.Matches(a) || right.Matches(a) },
	}
}

// Not returns the negation of a selection.
func Not(s Selection) Selection {
	return Selection{
		name: "not " + s.String(),
		pred: func(a Atom) bool { return !s.Matches(a) },
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Primitive selections
// ─────────────────────────────────────────────────────────────────────────────

// All matches every atom.
func All() Selection { return Selection{} }

// Protein matches atoms of standard amino acid residues.
func Protein() Selection {
	return Selection{name: "protein", pred: Atom.IsProtein}
}

// Water matches crystallographic water atoms.
func Water() Selection {
	return Selection{name: "water", pred: Atom.IsWater}
}

// Hetero matches HETATM records.
func Hetero() Selection {
	return Selection{name: "hetero", pred: func(a Atom) bool { return a.Hetero }}
}

// Chain matches atoms of the given chain identifier.
func Chain(id string) Selection {
	return Selection{
		name: "chain " + id,
		pred: func(a Atom) bool { return a.Chain == id },
	}
}

// ResName matches atoms whose residue name equals name (case-insensitive).
// Typical use: selecting a bound reference ligand, e.g. ResName("STI").
func ResName(name string) Selection {
	upper := strings.ToUpper(name)
	return Selection{
		name: "resname " + upper,
		pred: func(a Atom) bool { return strings.ToUpper(a.ResName) == upper },
	}
}

// Residue matches atoms of one residue identified by chain and sequence
// number.
func Residue(chain string, resSeq int) Selection {
	return Selection{
		name: fmt.Sprintf("residue %s:%d", chain, resSeq),
		pred: func(a Atom) bool { return a.Chain == chain && a.ResSeq == resSeq },
	}
}

// DefaultReceptor is the default receptor selection: protein atoms only,
// heteroatoms and solvent excluded.
func DefaultReceptor() Selection {
	return Protein().And(Not(Hetero())).And(Not(Water()))
}
