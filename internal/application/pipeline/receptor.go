package pipeline

import (
	"context"
	"os"
	"time"

	"github.com/turtacn/dockprep/internal/domain/pdbqt"
	"github.com/turtacn/dockprep/internal/domain/structure"
	"github.com/turtacn/dockprep/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/dockprep/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/dockprep/internal/infrastructure/protonate"
	"github.com/turtacn/dockprep/pkg/errors"
	dtypes "github.com/turtacn/dockprep/pkg/types/docking"
)

// StructureFetcher resolves an accession to a local PDB file.  Satisfied by
// rcsb.Fetcher; swappable in tests.
type StructureFetcher interface {
	Fetch(ctx context.Context, accession string) (string, error)
	CachePath(accession string) string
}

// ReceptorInput describes one receptor preparation request.
type ReceptorInput struct {
	Accession string

	// Chains restricts the selection to the listed chain IDs; empty keeps
	// all chains.
	Chains []string

	// KeepResNames are HETATM residue names to retain despite the default
	// protein-only selection, e.g. a structural cofactor.
	KeepResNames []string

	// FlexResidues lists residues (chain:resname:resseq) whose side chains
	// are encoded as flexible.
	FlexResidues []string

	ProtonationMode dtypes.ProtonationMode
}

// PreparedReceptor is the outcome of receptor preparation.
type PreparedReceptor struct {
	Accession string

	// Rigid and Flex are the PDBQT encodings.  Flex is empty when no
	// flexible residues were requested.
	Rigid        string
	Flex         string
	FlexResidues []string

	// ProtonationApplied reports whether hydrogens were actually added;
	// best-effort mode may complete without them.
	ProtonationApplied bool

	InputAtoms  int
	OutputAtoms int

	// Structure is the prepared (selected, possibly protonated) model, kept
	// for downstream grid-box resolution against reference ligands.  Note
	// the reference selection must run against the fetched model when the
	// reference is a hetero ligand stripped by preparation; see Source.
	Structure *structure.Structure

	// Source is the full fetched model before selection.
	Source *structure.Structure
}

// ReceptorService turns an accession into an engine-ready receptor encoding.
type ReceptorService struct {
	fetcher    StructureFetcher
	protonator protonate.Protonator
	metrics    *prometheus.PipelineMetrics
	logger     logging.Logger
}

// NewReceptorService wires the receptor preparer.  protonator and metrics may
// be nil.
func NewReceptorService(fetcher StructureFetcher, protonator protonate.Protonator,
	metrics *prometheus.PipelineMetrics, log logging.Logger) *ReceptorService {
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &ReceptorService{
		fetcher:    fetcher,
		protonator: protonator,
		metrics:    metrics,
		logger:     log,
	}
}

// Prepare fetches, selects, protonates and encodes the receptor.
func (s *ReceptorService) Prepare(ctx context.Context, input ReceptorInput) (*PreparedReceptor, error) {
	start := time.Now()
	prepared, err := s.prepare(ctx, input)
	if s.metrics != nil {
		s.metrics.RecordReceptorPrep(err, time.Since(start))
	}
	return prepared, err
}

func (s *ReceptorService) prepare(ctx context.Context, input ReceptorInput) (*PreparedReceptor, error) {
	mode := input.ProtonationMode
	if mode == "" {
		mode = dtypes.ProtonationBestEffort
	}
	if !mode.IsValid() {
		return nil, errors.InvalidParam("unknown protonation mode: " + mode.String())
	}

	source, err := s.fetchStructure(ctx, input.Accession)
	if err != nil {
		return nil, err
	}

	selected := buildReceptorSelection(input).Apply(source)
	if selected.Len() == 0 {
		return nil, errors.EmptySelection("receptor selection matched no atoms").
			WithDetail(input.Accession)
	}

	prepared := selected
	protonated := false
	switch mode {
	case dtypes.ProtonationSkip:
	case dtypes.ProtonationBestEffort:
		if s.protonator != nil && s.protonator.Available() {
			st, perr := s.protonator.Protonate(ctx, selected)
			if perr != nil {
				s.logger.Warn("protonation failed, continuing without hydrogens",
					logging.String("accession", input.Accession),
					logging.Err(perr))
			} else {
				prepared, protonated = st, true
			}
		}
	case dtypes.ProtonationRequire:
		if s.protonator == nil || !s.protonator.Available() {
			return nil, errors.ProtonationUnavailable(
				"protonation required but no protonation tool is available")
		}
		st, perr := s.protonator.Protonate(ctx, selected)
		if perr != nil {
			return nil, perr
		}
		prepared, protonated = st, true
	}

	enc, err := pdbqt.EncodeReceptor(prepared, input.FlexResidues)
	if err != nil {
		return nil, err
	}

	s.logger.Info("receptor prepared",
		logging.String("accession", input.Accession),
		logging.Int("input_atoms", source.Len()),
		logging.Int("output_atoms", prepared.Len()),
		logging.Bool("protonated", protonated),
		logging.Int("flex_residues", len(enc.FlexResidues)))

	return &PreparedReceptor{
		Accession:          input.Accession,
		Rigid:              enc.Rigid,
		Flex:               enc.Flex,
		FlexResidues:       enc.FlexResidues,
		ProtonationApplied: protonated,
		InputAtoms:         source.Len(),
		OutputAtoms:        prepared.Len(),
		Structure:          prepared,
		Source:             source,
	}, nil
}

func (s *ReceptorService) fetchStructure(ctx context.Context, accession string) (*structure.Structure, error) {
	_, statErr := os.Stat(s.fetcher.CachePath(accession))
	cached := statErr == nil

	start := time.Now()
	path, err := s.fetcher.Fetch(ctx, accession)
	if s.metrics != nil {
		outcome := "downloaded"
		if cached {
			outcome = "hit"
		}
		if err != nil {
			outcome = "failed"
		}
		s.metrics.RecordFetch(outcome, time.Since(start))
	}
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeInternal, "failed to open fetched structure")
	}
	defer f.Close()
	return structure.Parse(f)
}

// buildReceptorSelection composes the receptor filter: protein atoms without
// waters, narrowed to the requested chains, plus any residue names the caller
// asked to keep.
func buildReceptorSelection(input ReceptorInput) structure.Selection {
	base := structure.DefaultReceptor()
	if len(input.Chains) > 0 {
		chains := structure.Chain(input.Chains[0])
		for _, c := range input.Chains[1:] {
			chains = chains.Or(structure.Chain(c))
		}
		base = base.And(chains)
	}
	for _, name := range input.KeepResNames {
		base = base.Or(structure.ResName(name).And(structure.Not(structure.Water())))
	}
	return base
}
