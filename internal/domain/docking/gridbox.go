// Package docking provides the grid-box model, the docking-run aggregate,
// and the engine pose-output parser.
package docking

import (
	"fmt"
	"strings"

	"github.com/turtacn/dockprep/internal/domain/structure"
	"github.com/turtacn/dockprep/pkg/errors"
)

// DefaultPadding is the margin, in the coordinate unit of the structure
// (ångström for PDB input), added on every side of a reference selection's
// bounding box when the caller does not give explicit extents.
const DefaultPadding = 5.0

// GridBox is the axis-aligned search region handed to the docking engine:
// a center and strictly positive extents, in structure coordinate units.
type GridBox struct {
	CenterX, CenterY, CenterZ float64
	SizeX, SizeY, SizeZ       float64
}

// Validate enforces the strictly-positive-extents invariant.
func (b GridBox) Validate() error {
	if b.SizeX <= 0 || b.SizeY <= 0 || b.SizeZ <= 0 {
		return errors.New(errors.CodeInvalidBoxExtent,
			"grid box extents must be strictly positive").
			WithDetail(fmt.Sprintf("size=(%g, %g, %g)", b.SizeX, b.SizeY, b.SizeZ))
	}
	return nil
}

// ConfigText renders the box in the engine's key-value configuration format.
func (b GridBox) ConfigText() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "center_x = %.3f\n", b.CenterX)
	fmt.Fprintf(&sb, "center_y = %.3f\n", b.CenterY)
	fmt.Fprintf(&sb, "center_z = %.3f\n", b.CenterZ)
	fmt.Fprintf(&sb, "size_x = %.3f\n", b.SizeX)
	fmt.Fprintf(&sb, "size_y = %.3f\n", b.SizeY)
	fmt.Fprintf(&sb, "size_z = %.3f\n", b.SizeZ)
	return sb.String()
}

// CornersPDB renders the eight box corners as dummy HETATM records, for
// inspection of the search region in a structure viewer.
func (b GridBox) CornersPDB() string {
	var sb strings.Builder
	i := 0
	for _, dx := range []float64{-1, 1} {
		for _, dy := range []float64{-1, 1} {
			for _, dz := range []float64{-1, 1} {
				i++
				fmt.Fprintf(&sb,
					"HETATM%5d  C   BOX A   1    %8.3f%8.3f%8.3f  1.00  0.00           C\n",
					i,
					b.CenterX+dx*b.SizeX/2,
					b.CenterY+dy*b.SizeY/2,
					b.CenterZ+dz*b.SizeZ/2)
			}
		}
	}
	return sb.String()
}

// ─────────────────────────────────────────────────────────────────────────────
// BoxSpec — the two mutually exclusive ways to request a box
// ─────────────────────────────────────────────────────────────────────────────

// BoxSpec describes a grid-box request.  Exactly one mode must be fully
// specified:
//
//	explicit:  Center and Size both set;
//	reference: Reference set (Size optional; defaulted from the reference
//	           bounding box plus DefaultPadding).
//
// Anything else is rejected as ambiguous.
type BoxSpec struct {
	// Center is the explicit box center.
	Center *[3]float64

	// Size is the explicit box extents.
	Size *[3]float64

	// Reference selects the atoms whose centroid becomes the box center,
	// e.g. a bound reference ligand: structure.ResName("STI").
	Reference *structure.Selection

	// Padding overrides DefaultPadding around the reference bounding box
	// when Size is not given; zero means DefaultPadding.
	Padding float64
}

// Compute resolves the spec into a GridBox.  st is the structure the
// reference selection is evaluated against; it may be nil in explicit mode.
// Compute is a pure function: no side effects, deterministic for equal
// inputs.
func Compute(spec BoxSpec, st *structure.Structure) (GridBox, error) {
	explicit := spec.Center != nil
	reference := spec.Reference != nil

	switch {
	case explicit && reference:
		return GridBox{}, errors.AmbiguousBoxSpec(
			"both explicit center and reference selection given")
	case !explicit && !reference:
		return GridBox{}, errors.AmbiguousBoxSpec(
			"neither explicit center nor reference selection given")
	case explicit && spec.Size == nil:
		return GridBox{}, errors.AmbiguousBoxSpec(
			"explicit center requires explicit extents")
	}

	var box GridBox
	if explicit {
		box = GridBox{
			CenterX: spec.Center[0], CenterY: spec.Center[1], CenterZ: spec.Center[2],
			SizeX: spec.Size[0], SizeY: spec.Size[1], SizeZ: spec.Size[2],
		}
		return box, box.Validate()
	}

	if st == nil {
		return GridBox{}, errors.EmptySelection("reference mode requires a structure")
	}
	ref := spec.Reference.Apply(st)
	if ref.Len() == 0 {
		return GridBox{}, errors.EmptySelection(
			"box reference selection matched no atoms").
			WithDetail(spec.Reference.String())
	}

	cx, cy, cz, err := ref.Centroid()
	if err != nil {
		return GridBox{}, err
	}
	box = GridBox{CenterX: cx, CenterY: cy, CenterZ: cz}

	if spec.Size != nil {
		box.SizeX, box.SizeY, box.SizeZ = spec.Size[0], spec.Size[1], spec.Size[2]
	} else {
		min, max, err := ref.Bounds()
		if err != nil {
			return GridBox{}, err
		}
		pad := spec.Padding
		if pad == 0 {
			pad = DefaultPadding
		}
		box.SizeX = max[0] - min[0] + 2*pad
		box.SizeY = max[1] - min[1] + 2*pad
		box.SizeZ = max[2] - min[2] + 2*pad
	}
	return box, box.Validate()
}
