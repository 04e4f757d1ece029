package docking

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/turtacn/dockprep/pkg/errors"
)

// Pose is one ranked candidate placement from the engine's output.
type Pose struct {
	// Rank is the 1-based pose rank as emitted by the engine.
	Rank int

	// Affinity is the predicted binding affinity (kcal/mol for vina);
	// more negative is more favourable.
	Affinity float64

	// RMSDLower and RMSDUpper are the engine's distances to the best pose.
	RMSDLower float64
	RMSDUpper float64

	// Block is the raw multi-line text of this pose's model, kept verbatim
	// for artifact storage and downstream viewers.
	Block string
}

// Result is the parsed outcome of one successful docking run.
type Result struct {
	Poses []Pose

	// SourcePath is the pose file the result was parsed from.
	SourcePath string
}

// Best returns the top-ranked pose.  Valid Results always have at least one.
func (r Result) Best() Pose { return r.Poses[0] }

// ─────────────────────────────────────────────────────────────────────────────
// Pose-file parsing
// ─────────────────────────────────────────────────────────────────────────────

// scoreRemarkPrefix is the per-model score annotation in vina pose files:
//
//	REMARK VINA RESULT:    -9.1      0.000      0.000
const scoreRemarkPrefix = "REMARK VINA RESULT:"

// ParsePoses reads an engine pose file (multi-MODEL PDBQT with embedded score
// remarks) and returns the ranked Result.  The file is treated as untrusted
// engine output: a file with no poses, with non-contiguous model numbers, or
// with scores that are not monotonically non-increasing in favourability is
// rejected as corrupt rather than silently re-sorted.
func ParsePoses(r io.Reader) (Result, error) {
	var (
		poses    []Pose
		scored   []bool
		current  *Pose
		block    strings.Builder
		hasScore bool
	)

	flush := func() {
		if current != nil {
			current.Block = block.String()
			poses = append(poses, *current)
			scored = append(scored, hasScore)
			current = nil
			hasScore = false
			block.Reset()
		}
	}

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 1024), 1024*1024)
	for sc.Scan() {
		line := sc.Text()
		switch {
		case strings.HasPrefix(line, "MODEL"):
			flush()
			n, err := strconv.Atoi(strings.TrimSpace(strings.TrimPrefix(line, "MODEL")))
			if err != nil {
				return Result{}, errors.MalformedOutput("unparseable MODEL record").
					WithDetail(line)
			}
			current = &Pose{Rank: n}
		case strings.HasPrefix(line, scoreRemarkPrefix):
			if current == nil {
				return Result{}, errors.MalformedOutput("score remark outside MODEL block")
			}
			if err := parseScoreRemark(line, current); err != nil {
				return Result{}, err
			}
			hasScore = true
		case strings.HasPrefix(line, "ENDMDL"):
			flush()
			continue
		}
		if current != nil {
			block.WriteString(line)
			block.WriteByte('\n')
		}
	}
	if err := sc.Err(); err != nil {
		return Result{}, errors.Wrap(err, errors.CodeMalformedOutput, "read pose file")
	}
	flush()

	if len(poses) == 0 {
		return Result{}, errors.MalformedOutput("no poses found in engine output")
	}
	for i, p := range poses {
		if !scored[i] {
			return Result{}, errors.MalformedOutput("pose model carries no score remark").
				WithDetail(fmt.Sprintf("MODEL %d has no %q line", p.Rank, scoreRemarkPrefix))
		}
		if p.Rank != i+1 {
			return Result{}, errors.MalformedOutput("pose ranks are not contiguous from 1").
				WithDetail(fmt.Sprintf("pose %d has rank %d", i+1, p.Rank))
		}
		if i > 0 && p.Affinity < poses[i-1].Affinity {
			return Result{}, errors.MalformedOutput(
				"pose scores are not ordered best-first").
				WithDetail(fmt.Sprintf("rank %d affinity %.3f better than rank %d affinity %.3f",
					p.Rank, p.Affinity, poses[i-1].Rank, poses[i-1].Affinity))
		}
	}
	return Result{Poses: poses}, nil
}

// ParsePoseFile opens and parses an engine pose file from disk.
func ParsePoseFile(path string) (Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return Result{}, errors.Wrap(err, errors.CodeMalformedOutput, "open pose file").
			WithDetail(path)
	}
	defer f.Close()

	res, err := ParsePoses(f)
	if err != nil {
		return Result{}, err
	}
	res.SourcePath = path
	return res, nil
}

func parseScoreRemark(line string, p *Pose) error {
	fields := strings.Fields(strings.TrimPrefix(line, scoreRemarkPrefix))
	if len(fields) < 3 {
		return errors.MalformedOutput("score remark has fewer than three fields").
			WithDetail(line)
	}
	vals := make([]float64, 3)
	for i := 0; i < 3; i++ {
		v, err := strconv.ParseFloat(fields[i], 64)
		if err != nil {
			return errors.MalformedOutput("unparseable score field").WithDetail(line)
		}
		vals[i] = v
	}
	p.Affinity, p.RMSDLower, p.RMSDUpper = vals[0], vals[1], vals[2]
	return nil
}
