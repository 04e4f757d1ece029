package pipeline

import (
	"github.com/turtacn/dockprep/internal/domain/docking"
	"github.com/turtacn/dockprep/internal/domain/structure"
)

// BoxInput is the CLI-facing grid-box request.  Exactly one of the explicit
// center or the reference fields must be populated; docking.Compute enforces
// the exclusivity.
type BoxInput struct {
	// Explicit mode: center plus extents.
	Center *[3]float64
	Size   *[3]float64

	// Reference mode: select a bound ligand by residue name, optionally
	// narrowed to one chain and residue number.
	RefResName string
	RefChain   string
	RefResSeq  int

	// Padding is the margin around the reference bounding box when no
	// explicit extents are given; zero means docking.DefaultPadding.
	Padding float64
}

// Spec converts the input into a domain BoxSpec.
func (in BoxInput) Spec() docking.BoxSpec {
	spec := docking.BoxSpec{Center: in.Center, Size: in.Size, Padding: in.Padding}
	if in.RefResName != "" || in.RefChain != "" || in.RefResSeq != 0 {
		sel := structure.All()
		if in.RefResName != "" {
			sel = sel.And(structure.ResName(in.RefResName))
		}
		if in.RefChain != "" {
			sel = sel.And(structure.Chain(in.RefChain))
		}
		if in.RefResSeq != 0 && in.RefChain != "" {
			sel = structure.Residue(in.RefChain, in.RefResSeq)
			if in.RefResName != "" {
				sel = sel.And(structure.ResName(in.RefResName))
			}
		}
		spec.Reference = &sel
	}
	return spec
}

// ResolveBox computes the search box from the input against st.  st may be
// nil in explicit mode.  Reference selections run against the full fetched
// model, not the prepared receptor, because bound ligands are heteroatoms the
// receptor selection strips.
func ResolveBox(in BoxInput, st *structure.Structure) (docking.GridBox, error) {
	return docking.Compute(in.Spec(), st)
}
