package pipeline

import (
	"context"
	"fmt"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/turtacn/dockprep/internal/domain/ligand"
	"github.com/turtacn/dockprep/internal/domain/pdbqt"
	"github.com/turtacn/dockprep/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/dockprep/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/dockprep/pkg/errors"
)

// LigandInput describes one ligand preparation request.
type LigandInput struct {
	SMILES string

	// PH is the target pH for variant enumeration; zero means 7.4.
	PH float64

	EnumerateTautomers bool
	EnumerateAcidBase  bool

	// MaxVariants caps enumeration, keeping the most probable states.
	MaxVariants int

	// NumConformers is the number of 3D embeddings attempted per variant;
	// the first embedding that survives encoding is used.
	NumConformers int

	// Seed fixes the conformer torsion schedule for reproducible output.
	Seed int64
}

// PreparedVariant is one successfully encoded protonation state.
type PreparedVariant struct {
	Label       string
	Probability float64
	PDBQT       string
	HeavyAtoms  int
}

// VariantFailure records why one variant was abandoned.  The rest of the
// preparation continues; failures are reported, not fatal, unless every
// variant fails.
type VariantFailure struct {
	Label string
	Err   error
}

// PreparedLigand is the outcome of ligand preparation: at least one encoded
// variant, plus the failures of any variants that did not make it.
type PreparedLigand struct {
	SMILES   string
	Variants []PreparedVariant
	Failures []VariantFailure
}

// Best returns the most probable prepared variant.  Enumeration orders
// variants by probability, and preparation preserves that order.
func (p *PreparedLigand) Best() PreparedVariant { return p.Variants[0] }

// LigandService turns a SMILES string into engine-ready ligand encodings.
type LigandService struct {
	metrics *prometheus.PipelineMetrics
	logger  logging.Logger

	// parallelism bounds concurrent variant embedding; zero means NumCPU.
	parallelism int
}

// NewLigandService wires the ligand preparer.  metrics may be nil.
func NewLigandService(metrics *prometheus.PipelineMetrics, log logging.Logger) *LigandService {
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &LigandService{metrics: metrics, logger: log}
}

// Prepare parses, enumerates, embeds and encodes the ligand.  Variants are
// processed in parallel; a failing variant never blocks the others.
func (s *LigandService) Prepare(ctx context.Context, input LigandInput) (*PreparedLigand, error) {
	start := time.Now()
	prepared, err := s.prepare(ctx, input)
	if s.metrics != nil {
		variants := 0
		if prepared != nil {
			variants = len(prepared.Variants)
		}
		s.metrics.RecordLigandPrep(err, variants, time.Since(start))
	}
	return prepared, err
}

func (s *LigandService) prepare(ctx context.Context, input LigandInput) (*PreparedLigand, error) {
	if input.SMILES == "" {
		return nil, errors.InvalidSMILES("empty SMILES string", "")
	}

	mol, err := ligand.Parse(input.SMILES)
	if err != nil {
		return nil, err
	}

	ph := input.PH
	if ph == 0 {
		ph = 7.4
	}
	variants, err := ligand.Enumerate(mol, ligand.EnumerateOptions{
		PH:                ph,
		EnumerateTautomer: input.EnumerateTautomers,
		EnumerateAcidBase: input.EnumerateAcidBase,
		MaxVariants:       input.MaxVariants,
	})
	if err != nil {
		return nil, err
	}

	type slot struct {
		variant *PreparedVariant
		failure *VariantFailure
	}
	slots := make([]slot, len(variants))

	workers := s.parallelism
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if workers > len(variants) {
		workers = len(variants)
	}

	var wg sync.WaitGroup
	jobs := make(chan int)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				v := variants[i]
				pv, err := s.prepareVariant(ctx, v, input)
				if err != nil {
					slots[i] = slot{failure: &VariantFailure{Label: v.Label, Err: err}}
					continue
				}
				slots[i] = slot{variant: pv}
			}
		}()
	}
	for i := range variants {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeTimeout, "ligand preparation cancelled")
	}

	prepared := &PreparedLigand{SMILES: input.SMILES}
	for _, sl := range slots {
		if sl.variant != nil {
			prepared.Variants = append(prepared.Variants, *sl.variant)
		}
		if sl.failure != nil {
			prepared.Failures = append(prepared.Failures, *sl.failure)
			s.logger.Warn("ligand variant abandoned",
				logging.String("smiles", input.SMILES),
				logging.String("variant", sl.failure.Label),
				logging.Err(sl.failure.Err))
		}
	}

	if len(prepared.Variants) == 0 {
		details := make([]string, len(prepared.Failures))
		for i, f := range prepared.Failures {
			details[i] = f.Label + ": " + f.Err.Error()
		}
		return nil, errors.NoValidVariant(
			fmt.Sprintf("all %d variants failed preparation", len(variants))).
			WithDetail(strings.Join(details, "; "))
	}

	s.logger.Info("ligand prepared",
		logging.String("smiles", input.SMILES),
		logging.Int("variants", len(prepared.Variants)),
		logging.Int("failed", len(prepared.Failures)))
	return prepared, nil
}

func (s *LigandService) prepareVariant(ctx context.Context, v ligand.Variant, input LigandInput) (*PreparedVariant, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	confs, err := ligand.Embed(v.Mol, ligand.EmbedOptions{
		NumConformers: input.NumConformers,
		Seed:          input.Seed,
	})
	if err != nil {
		return nil, errors.ConformerGeneration(err.Error(), v.Label)
	}

	var lastErr error
	for i := range confs {
		text, err := pdbqt.EncodeLigand(&confs[i], "LIG")
		if err != nil {
			lastErr = err
			continue
		}
		return &PreparedVariant{
			Label:       v.Label,
			Probability: v.Probability,
			PDBQT:       text,
			HeavyAtoms:  v.Mol.HeavyAtomCount(),
		}, nil
	}
	return nil, lastErr
}
