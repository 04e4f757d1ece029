package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/turtacn/dockprep/internal/domain/docking"
	"github.com/turtacn/dockprep/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/dockprep/pkg/errors"
	"github.com/turtacn/dockprep/pkg/types/common"
	dtypes "github.com/turtacn/dockprep/pkg/types/docking"
)

// RunRepository persists docking runs.
type RunRepository interface {
	Save(ctx context.Context, run *docking.Run) error
	Update(ctx context.Context, run *docking.Run) error
	FindByID(ctx context.Context, id common.ID) (*docking.Run, error)
	FindByKey(ctx context.Context, runKey string) (*docking.Run, error)
	ListByStatus(ctx context.Context, status dtypes.RunStatus, limit int) ([]*docking.Run, error)
	ListRecent(ctx context.Context, limit int) ([]*docking.Run, error)
}

type runRepository struct {
	conn   *Connection
	logger logging.Logger
}

func NewRunRepository(conn *Connection, log logging.Logger) RunRepository {
	return &runRepository{conn: conn, logger: log}
}

const runColumns = `
	id, run_key, accession, ligand_smiles,
	center_x, center_y, center_z, size_x, size_y, size_z,
	scoring, exhaustiveness, seed,
	status, created_at, started_at, finished_at,
	diagnostic, failure_code, pose_count, best_affinity, pose_path`

func (r *runRepository) Save(ctx context.Context, run *docking.Run) error {
	touchTimestamps(run)
	_, err := r.conn.DB().ExecContext(ctx, `
		INSERT INTO docking_runs (`+runColumns+`
		) VALUES (
			$1,$2,$3,$4,
			$5,$6,$7,$8,$9,$10,
			$11,$12,$13,
			$14,$15,$16,$17,
			$18,$19,$20,$21,$22
		)`,
		run.ID.String(), run.Key(), run.Accession, run.LigandSMILES,
		run.Box.CenterX, run.Box.CenterY, run.Box.CenterZ,
		run.Box.SizeX, run.Box.SizeY, run.Box.SizeZ,
		run.Scoring.String(), run.Exhaustiveness, run.Seed,
		run.Status.String(), run.CreatedAt, run.StartedAt, run.FinishedAt,
		run.Diagnostic, run.FailureCode, run.PoseCount, run.BestAffinity, run.PosePath,
	)
	if err != nil {
		r.logger.Error("failed to insert docking run",
			logging.String("run_id", run.ID.String()), logging.Err(err))
		return errors.Wrap(err, errors.CodeDatabaseError, "failed to insert docking run")
	}
	return nil
}

func (r *runRepository) Update(ctx context.Context, run *docking.Run) error {
	res, err := r.conn.DB().ExecContext(ctx, `
		UPDATE docking_runs SET
			status = $2, started_at = $3, finished_at = $4,
			diagnostic = $5, failure_code = $6,
			pose_count = $7, best_affinity = $8, pose_path = $9
		WHERE id = $1`,
		run.ID.String(),
		run.Status.String(), run.StartedAt, run.FinishedAt,
		run.Diagnostic, run.FailureCode,
		run.PoseCount, run.BestAffinity, run.PosePath,
	)
	if err != nil {
		return errors.Wrap(err, errors.CodeDatabaseError, "failed to update docking run")
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, errors.CodeDatabaseError, "failed to read update result")
	}
	if affected == 0 {
		return errors.New(errors.CodeNotFound, "docking run not found").
			WithDetail(run.ID.String())
	}
	return nil
}

func (r *runRepository) FindByID(ctx context.Context, id common.ID) (*docking.Run, error) {
	row := r.conn.DB().QueryRowContext(ctx, `
		SELECT `+runColumns+` FROM docking_runs WHERE id = $1`, id.String())
	return scanRun(row)
}

// FindByKey returns the newest run for an input combination; callers use it
// to surface a prior result for an identical request.
func (r *runRepository) FindByKey(ctx context.Context, runKey string) (*docking.Run, error) {
	row := r.conn.DB().QueryRowContext(ctx, `
		SELECT `+runColumns+` FROM docking_runs
		WHERE run_key = $1
		ORDER BY created_at DESC
		LIMIT 1`, runKey)
	return scanRun(row)
}

func (r *runRepository) ListByStatus(ctx context.Context, status dtypes.RunStatus, limit int) ([]*docking.Run, error) {
	rows, err := r.conn.DB().QueryContext(ctx, `
		SELECT `+runColumns+` FROM docking_runs
		WHERE status = $1
		ORDER BY created_at DESC
		LIMIT $2`, status.String(), limit)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeDatabaseError, "failed to list docking runs")
	}
	defer rows.Close()
	return scanRuns(rows)
}

func (r *runRepository) ListRecent(ctx context.Context, limit int) ([]*docking.Run, error) {
	rows, err := r.conn.DB().QueryContext(ctx, `
		SELECT `+runColumns+` FROM docking_runs
		ORDER BY created_at DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeDatabaseError, "failed to list docking runs")
	}
	defer rows.Close()
	return scanRuns(rows)
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(row rowScanner) (*docking.Run, error) {
	var (
		run       docking.Run
		id        string
		runKey    string
		scoring   string
		status    string
		startedAt sql.NullTime
		finished  sql.NullTime
		bestAff   sql.NullFloat64
	)
	err := row.Scan(
		&id, &runKey, &run.Accession, &run.LigandSMILES,
		&run.Box.CenterX, &run.Box.CenterY, &run.Box.CenterZ,
		&run.Box.SizeX, &run.Box.SizeY, &run.Box.SizeZ,
		&scoring, &run.Exhaustiveness, &run.Seed,
		&status, &run.CreatedAt, &startedAt, &finished,
		&run.Diagnostic, &run.FailureCode, &run.PoseCount, &bestAff, &run.PosePath,
	)
	if err == sql.ErrNoRows {
		return nil, errors.New(errors.CodeNotFound, "docking run not found")
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeDatabaseError, "failed to scan docking run")
	}

	run.ID = common.ID(id)
	run.Scoring = dtypes.ScoringFunction(scoring)
	run.Status = dtypes.RunStatus(status)
	if startedAt.Valid {
		t := startedAt.Time
		run.StartedAt = &t
	}
	if finished.Valid {
		t := finished.Time
		run.FinishedAt = &t
	}
	if bestAff.Valid {
		v := bestAff.Float64
		run.BestAffinity = &v
	}
	return &run, nil
}

func scanRuns(rows *sql.Rows) ([]*docking.Run, error) {
	var out []*docking.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, run)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, errors.CodeDatabaseError, "failed to iterate docking runs")
	}
	return out, nil
}

// touchTimestamps normalizes zero times before persistence; sql drivers
// reject the zero time on timestamptz columns in some configurations.
func touchTimestamps(run *docking.Run) {
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}
}
