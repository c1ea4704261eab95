package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/parcelgrid/survey-engine/internal/compute"
	"github.com/parcelgrid/survey-engine/internal/coords"
	"github.com/parcelgrid/survey-engine/internal/domain"
	"github.com/parcelgrid/survey-engine/internal/geometry"
	"github.com/parcelgrid/survey-engine/internal/quota"
	"github.com/parcelgrid/survey-engine/internal/review"
	"github.com/parcelgrid/survey-engine/internal/seal"
	"github.com/parcelgrid/survey-engine/internal/sectional"
	"github.com/parcelgrid/survey-engine/internal/store"
	"github.com/parcelgrid/survey-engine/internal/topology"
	"github.com/parcelgrid/survey-engine/internal/workflow"
)

// parseFlags maps command-line flags onto coords.ParseOptions.
type parseFlags struct {
	noHeader  bool
	notation  string
	delimiter string
	x, y      string
	zone      string
	sourceCRS string
	skipRows  int
}

func (p *parseFlags) register(cmd *cobra.Command) {
	f := cmd.Flags()
	f.BoolVar(&p.noHeader, "no-header", false, "the file has no header row")
	f.StringVar(&p.notation, "notation", string(coords.NotationDecimal), "coordinate notation: decimal, utm or dms")
	f.StringVar(&p.delimiter, "delimiter", ",", "field delimiter")
	f.StringVar(&p.x, "x", "", "X column name")
	f.StringVar(&p.y, "y", "", "Y column name")
	f.StringVar(&p.zone, "zone", "", "default UTM zone, e.g. 35J")
	f.StringVar(&p.sourceCRS, "source-crs", "", "proj4 definition of the input coordinates")
	f.IntVar(&p.skipRows, "skip-rows", 0, "rows to discard before the header")
}

func (p *parseFlags) options() (coords.ParseOptions, error) {
	opts := coords.DefaultParseOptions()
	opts.HasHeader = !p.noHeader
	opts.Notation = coords.Notation(p.notation)
	opts.SkipRows = p.skipRows
	opts.DefaultZone = p.zone
	opts.SourceCRS = p.sourceCRS
	if p.x != "" {
		opts.X = coords.Named(p.x)
	}
	if p.y != "" {
		opts.Y = coords.Named(p.y)
	}
	switch p.delimiter {
	case `\t`, "tab":
		opts.Delimiter = '\t'
	default:
		r := []rune(p.delimiter)
		if len(r) != 1 {
			return opts, fmt.Errorf("delimiter must be a single character, got %q", p.delimiter)
		}
		opts.Delimiter = r[0]
	}
	switch opts.Notation {
	case coords.NotationDecimal, coords.NotationUTM, coords.NotationDMS:
	default:
		return opts, fmt.Errorf("unknown notation %q", p.notation)
	}
	return opts, nil
}

func (a *app) parseFile(cmd *cobra.Command, path string, pf *parseFlags) (coords.ParseResult, error) {
	opts, err := pf.options()
	if err != nil {
		return coords.ParseResult{}, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return coords.ParseResult{}, fmt.Errorf("reading coordinates: %w", err)
	}
	router := coords.NewRouter(a.cfg.Computation, opts, a.logger)
	return router.Parse(cmd.Context(), filepath.Base(path), data)
}

func (a *app) readUnits(path string) (review.UnitDocument, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return review.UnitDocument{}, fmt.Errorf("reading units: %w", err)
	}
	v, err := review.NewSchemaValidator()
	if err != nil {
		return review.UnitDocument{}, err
	}
	return v.Decode(data)
}

func newParseCmd(a *app) *cobra.Command {
	pf := &parseFlags{}
	cmd := &cobra.Command{
		Use:          "parse <coordinate-file>",
		Short:        "Parse a coordinate file and output JSON",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := a.parseFile(cmd, args[0], pf)
			if err != nil {
				return err
			}
			if err := writeJSON(cmd, res); err != nil {
				return err
			}
			if !res.Success {
				return fmt.Errorf("%d line(s) failed to parse", len(res.Errors))
			}
			return nil
		},
	}
	pf.register(cmd)
	return cmd
}

func newComputeCmd(a *app) *cobra.Command {
	pf := &parseFlags{}
	var (
		method    string
		distances []float64
	)
	cmd := &cobra.Command{
		Use:          "compute <coordinate-file>",
		Short:        "Compute closure, area, accuracy and QC for an outside figure",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			parsed, err := a.parseFile(cmd, args[0], pf)
			if err != nil {
				return err
			}
			engine := compute.NewEngine(a.cfg.Computation, a.logger, a.metrics)
			res := engine.ComputeOutsideFigure(cmd.Context(), compute.FigureInput{
				Coordinates:       domain.Points(parsed.Coordinates),
				SurveyMethod:      method,
				MeasuredDistances: distances,
			})
			if err := writeJSON(cmd, res); err != nil {
				return err
			}
			if !res.Success {
				return fmt.Errorf("computation failed: %v", res.Errors)
			}
			return nil
		},
	}
	pf.register(cmd)
	cmd.Flags().StringVar(&method, "method", "", "survey method recorded with the result")
	cmd.Flags().Float64SliceVar(&distances, "distances", nil, "measured leg distances, comma separated")
	return cmd
}

// generateUnits parses the parent and unit files and generates unit geometries.
func (a *app) generateUnits(cmd *cobra.Command, parentPath, unitsPath string, pf *parseFlags) (geometry.Ring, domain.GeometryGenerationResult, error) {
	parsed, err := a.parseFile(cmd, parentPath, pf)
	if err != nil {
		return geometry.Ring{}, domain.GeometryGenerationResult{}, err
	}
	doc, err := a.readUnits(unitsPath)
	if err != nil {
		return geometry.Ring{}, domain.GeometryGenerationResult{}, err
	}
	parent, err := geometry.NewRing(domain.Points(parsed.Coordinates))
	if err != nil {
		return geometry.Ring{}, domain.GeometryGenerationResult{}, fmt.Errorf("parent parcel: %w", err)
	}
	g := sectional.NewGenerator(a.cfg.Computation, a.logger, a.metrics)
	res, err := g.GenerateSectionalGeometries(cmd.Context(), parent.Geom(), doc.Units)
	return parent, res, err
}

func newGenerateCmd(a *app) *cobra.Command {
	pf := &parseFlags{}
	var parentPath, unitsPath string
	cmd := &cobra.Command{
		Use:          "generate",
		Short:        "Generate sectional unit geometries inside a parent parcel",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, res, err := a.generateUnits(cmd, parentPath, unitsPath, pf)
			if err != nil {
				return err
			}
			floors := sectional.ValidateFloorLevels(res.Units, a.cfg.Computation.MaxFloorSpan)
			out := struct {
				domain.GeometryGenerationResult
				Floors sectional.FloorLevelReport `json:"floors"`
			}{res, floors}
			if err := writeJSON(cmd, out); err != nil {
				return err
			}
			if !res.Success {
				return fmt.Errorf("%d unit(s) failed", len(res.Errors))
			}
			return nil
		},
	}
	pf.register(cmd)
	cmd.Flags().StringVar(&parentPath, "parent", "", "parent parcel coordinate file")
	cmd.Flags().StringVar(&unitsPath, "units", "", "unit specification document (JSON)")
	_ = cmd.MarkFlagRequired("parent")
	_ = cmd.MarkFlagRequired("units")
	return cmd
}

func newQuotasCmd(a *app) *cobra.Command {
	var (
		commonArea    float64
		precision     int
		includeCommon bool
		adjustID      string
		adjustQuota   float64
	)
	cmd := &cobra.Command{
		Use:          "quotas <units.json>",
		Short:        "Calculate participation quotas from unit areas",
		Long:         "Reads a JSON array of {id, section_number, area, section_type} and apportions 100% between the units.",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("reading units: %w", err)
			}
			var units []domain.QuotaUnit
			if err := json.Unmarshal(data, &units); err != nil {
				return fmt.Errorf("decoding units: %w", err)
			}
			if precision == 0 {
				precision = a.cfg.Computation.Precision
			}
			if precision < 1 || precision > 10 {
				return fmt.Errorf("precision must be between 1 and 10, got %d", precision)
			}

			var res domain.QuotaCalculationResult
			if adjustID != "" {
				res = quota.AdjustQuota(units, adjustID, adjustQuota, commonArea, precision)
			} else {
				res = quota.CalculateParticipationQuotas(units, commonArea, quota.Options{
					ExcludeCommonUnits: !includeCommon,
					Precision:          precision,
					AdjustTo100:        true,
				})
			}
			if err := writeJSON(cmd, res); err != nil {
				return err
			}
			if !res.Success || !res.IsValid {
				return fmt.Errorf("quotas are not valid: %v", res.Errors)
			}
			return nil
		},
	}
	f := cmd.Flags()
	f.Float64Var(&commonArea, "common-area", 0, "common property area in m²")
	f.IntVar(&precision, "precision", 0, "decimal places (defaults to configuration)")
	f.BoolVar(&includeCommon, "include-common", false, "apportion to common-type units too")
	f.StringVar(&adjustID, "adjust", "", "unit ID whose quota is fixed manually")
	f.Float64Var(&adjustQuota, "quota", 0, "manual quota for --adjust, in percent")
	return cmd
}

func newValidateCmd(a *app) *cobra.Command {
	pf := &parseFlags{}
	var (
		parentPath, unitsPath string
		crossFloor            bool
		strictWalls           bool
	)
	cmd := &cobra.Command{
		Use:          "validate",
		Short:        "Validate the topology of a sectional scheme",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			parent, gen, err := a.generateUnits(cmd, parentPath, unitsPath, pf)
			if err != nil {
				return err
			}
			opts := topology.DefaultOptions()
			opts.CheckCrossFloor = crossFloor
			opts.AllowSharedWalls = !strictWalls
			v := topology.NewValidator(a.logger, a.metrics)
			rep, err := v.ValidateSchemeTopology(cmd.Context(), parent, sectional.GroupByFloor(gen.Units), opts)
			if err != nil {
				return err
			}
			if err := writeJSON(cmd, rep); err != nil {
				return err
			}
			if !rep.IsValid {
				return fmt.Errorf("scheme has %d topology error(s)", len(rep.Errors))
			}
			return nil
		},
	}
	pf.register(cmd)
	f := cmd.Flags()
	f.StringVar(&parentPath, "parent", "", "parent parcel coordinate file")
	f.StringVar(&unitsPath, "units", "", "unit specification document (JSON)")
	f.BoolVar(&crossFloor, "cross-floor", true, "report plan overlaps between floors as warnings")
	f.BoolVar(&strictWalls, "strict-walls", false, "treat shared walls as errors")
	_ = cmd.MarkFlagRequired("parent")
	_ = cmd.MarkFlagRequired("units")
	return cmd
}

func newSealCmd(a *app) *cobra.Command {
	var (
		planID string
		facts  domain.SealFacts
	)
	cmd := &cobra.Command{
		Use:          "seal",
		Short:        "Seal the computed facts of a validated survey plan",
		Long:         "Only seal a plan whose topology validation has passed; use run --seal to enforce every gate.",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rec, err := seal.NewSealer(a.logger, a.metrics).SealSurveyPlan(planID, facts)
			if err != nil {
				return err
			}
			if a.db != nil {
				if err := (&store.SealRepo{}).Save(cmd.Context(), a.db, rec); err != nil {
					return err
				}
			}
			return writeJSON(cmd, rec)
		},
	}
	f := cmd.Flags()
	f.StringVar(&planID, "plan-id", "", "survey plan identifier")
	f.IntVar(&facts.SectionCount, "sections", 0, "number of sections")
	f.Float64Var(&facts.TotalUnitArea, "unit-area", 0, "total unit area in m²")
	f.Float64Var(&facts.ParentParcelArea, "parent-area", 0, "parent parcel area in m²")
	_ = cmd.MarkFlagRequired("plan-id")
	return cmd
}

func newVerifyCmd(a *app) *cobra.Command {
	var planID, recordPath string
	cmd := &cobra.Command{
		Use:          "verify",
		Short:        "Verify a seal against the facts recorded with it",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var v domain.SealVerification
			switch {
			case recordPath != "":
				data, err := os.ReadFile(recordPath)
				if err != nil {
					return fmt.Errorf("reading seal record: %w", err)
				}
				var rec domain.SealRecord
				if err := json.Unmarshal(data, &rec); err != nil {
					return fmt.Errorf("decoding seal record: %w", err)
				}
				v = seal.NewSealer(a.logger, a.metrics).VerifyRecord(rec)
			case planID != "":
				if a.db == nil {
					return fmt.Errorf("--plan-id requires a database (--db or db_path)")
				}
				p := workflow.NewPipeline(a.cfg.Computation, a.logger, a.metrics).WithStore(a.db)
				var err error
				if v, err = p.VerifyStored(cmd.Context(), planID); err != nil {
					return err
				}
			default:
				return fmt.Errorf("one of --record or --plan-id is required")
			}
			if err := writeJSON(cmd, v); err != nil {
				return err
			}
			if !v.IsValid {
				return fmt.Errorf("%s", v.Error)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&planID, "plan-id", "", "verify the seal stored for this plan")
	cmd.Flags().StringVar(&recordPath, "record", "", "verify a seal record JSON file")
	return cmd
}

func newRunCmd(a *app) *cobra.Command {
	pf := &parseFlags{}
	var (
		parentPath, unitsPath string
		planID, actor, method string
		distances             []float64
		doSeal                bool
	)
	cmd := &cobra.Command{
		Use:          "run",
		Short:        "Run the full pipeline from parent coordinates to seal",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			opts, err := pf.options()
			if err != nil {
				return err
			}
			data, err := os.ReadFile(parentPath)
			if err != nil {
				return fmt.Errorf("reading coordinates: %w", err)
			}
			doc, err := a.readUnits(unitsPath)
			if err != nil {
				return err
			}
			if planID == "" {
				planID = doc.PlanID
			}

			p := workflow.NewPipeline(a.cfg.Computation, a.logger, a.metrics)
			if a.db != nil {
				p.WithStore(a.db)
			}
			start := time.Now()
			out, err := p.Run(cmd.Context(), workflow.PlanInput{
				PlanID:            planID,
				Actor:             actor,
				ParentFile:        filepath.Base(parentPath),
				ParentData:        data,
				ParseOptions:      opts,
				SurveyMethod:      method,
				MeasuredDistances: distances,
				Units:             doc.Units,
				Seal:              doSeal,
			})
			if err != nil {
				return err
			}
			a.logger.Info("pipeline finished", "plan_id", out.PlanID, "stage", out.Stage,
				"sealed", out.Sealed(), "duration", time.Since(start))
			if err := writeJSON(cmd, out); err != nil {
				return err
			}
			if len(out.Blockers) > 0 {
				return fmt.Errorf("plan blocked at %s: %d blocker(s)", out.Stage, len(out.Blockers))
			}
			return nil
		},
	}
	pf.register(cmd)
	f := cmd.Flags()
	f.StringVar(&parentPath, "parent", "", "parent parcel coordinate file")
	f.StringVar(&unitsPath, "units", "", "unit specification document (JSON)")
	f.StringVar(&planID, "plan-id", "", "plan identifier (defaults to the document's plan_id, then a UUID)")
	f.StringVar(&actor, "actor", "", "actor recorded in the audit log")
	f.StringVar(&method, "method", "", "survey method")
	f.Float64SliceVar(&distances, "distances", nil, "measured leg distances, comma separated")
	f.BoolVar(&doSeal, "seal", false, "seal the plan when every gate passes")
	_ = cmd.MarkFlagRequired("parent")
	_ = cmd.MarkFlagRequired("units")
	return cmd
}
