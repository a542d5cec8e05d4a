package cli

import (
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	"go.viam.com/utils"

	"go.viam.com/posecore/calibration"
	"go.viam.com/posecore/config"
	"go.viam.com/posecore/homogprovider"
	"go.viam.com/posecore/logging"
	"go.viam.com/posecore/poseaverage"
	"go.viam.com/posecore/posesolver"
	"go.viam.com/posecore/rimage/transform"
	"go.viam.com/posecore/spatialmath"
)

// newLogger builds the command logger. The returned func flushes and closes the log file, if any.
func newLogger(c *cli.Context) (logging.Logger, func()) {
	var logger logging.Logger
	if c.Bool(debugFlag) {
		logger = logging.NewDebugLogger("posecore")
	} else {
		logger = logging.NewBlankLogger("posecore")
		logger.AddAppender(logging.NewWriterAppender(c.App.ErrWriter))
		logger.SetLevel(logging.WARN)
	}
	path := c.Path(logFileFlag)
	if path == "" {
		return logger, func() {}
	}
	file := logging.NewFileAppender(path, logFileMaxSizeMB)
	logger.AddAppender(file)
	return logger, func() {
		utils.UncheckedError(logger.Sync())
		utils.UncheckedError(file.Close())
	}
}

// loadConfig reads the --config file, or returns the zero config when none was given.
func loadConfig(c *cli.Context, logger logging.Logger) (*config.Config, error) {
	path := c.String(configFlag)
	if path == "" {
		return &config.Config{}, nil
	}
	return config.Read(path, logger)
}

// offsetFromFlags starts from base and overrides every offset field set on the command line.
func offsetFromFlags(c *cli.Context, base homogprovider.Config) homogprovider.Config {
	for name, field := range map[string]*float64{
		offsetFlagX:     &base.X,
		offsetFlagY:     &base.Y,
		offsetFlagZ:     &base.Z,
		offsetFlagRoll:  &base.Roll,
		offsetFlagPitch: &base.Pitch,
		offsetFlagYaw:   &base.Yaw,
	} {
		if c.IsSet(name) {
			*field = c.Float64(name)
		}
	}
	if c.IsSet(offsetFlagDegrees) {
		base.Degrees = c.Bool(offsetFlagDegrees)
	}
	return base
}

// OffsetAction prints the transform built from the offset flags.
func OffsetAction(c *cli.Context) error {
	logger, closeLogger := newLogger(c)
	defer closeLogger()
	cfg, err := loadConfig(c, logger)
	if err != nil {
		return err
	}
	offset := offsetFromFlags(c, cfg.Offset)
	if err := offset.Validate("offset"); err != nil {
		return err
	}
	printf(c.App.Writer, "%s", transformTable(offset.Transform()))
	return nil
}

// SchemaAction prints the JSON schema of the pipeline config.
func SchemaAction(c *cli.Context) error {
	out, err := config.SchemaJSON()
	if err != nil {
		return err
	}
	printf(c.App.Writer, "%s", out)
	return nil
}

// CalibrateAction calibrates a camera from a dataset file.
func CalibrateAction(c *cli.Context) error {
	logger, closeLogger := newLogger(c)
	defer closeLogger()
	var doc datasetFile
	if err := readJSONFile(c.Path(calibrateFlagDataset), &doc); err != nil {
		return err
	}
	dataset := calibration.NewDataset(
		calibration.PolicyContinuous,
		calibration.DefaultCalibrator{Refine: c.Bool(calibrateFlagRefine)},
		logger.Sublogger("calibration"),
	)
	for i, set := range doc.Observations {
		if _, err := dataset.RegisterObservation(set, doc.ImageSize); err != nil {
			return errors.Wrapf(err, "observation %d", i)
		}
	}
	model, err := dataset.Calibrate()
	if err != nil {
		return err
	}
	result := dataset.LastResult()
	printf(c.App.Writer, "%s", cameraModelTable(model, result.ViewErrors))
	if hist := viewErrorHistogram(result.ViewErrors); hist != "" {
		printf(c.App.Writer, "%s", hist)
	}
	if spread, err := dataset.Spread(); err == nil && (spread.X == 0 || spread.Y == 0) {
		warningf(c.App.ErrWriter, "model points do not spread over both board axes, check the dataset")
	}

	if out := c.Path(calibrateFlagOutput); out != "" {
		if err := transform.WriteCameraModelFile(out, model); err != nil {
			return err
		}
		printf(c.App.Writer, "camera model written to %s", out)
	}
	if out := c.Path(calibrateFlagPlot); out != "" {
		if err := saveViewErrorPlot(out, result.ViewErrors, result.ReprojectionError); err != nil {
			return err
		}
		printf(c.App.Writer, "reprojection error plot written to %s", out)
	}
	return nil
}

// SolveAction solves the pose of the object in a correspondence file.
func SolveAction(c *cli.Context) error {
	logger, closeLogger := newLogger(c)
	defer closeLogger()
	cfg, err := loadConfig(c, logger)
	if err != nil {
		return err
	}
	cfg.Offset = offsetFromFlags(c, cfg.Offset)
	if c.IsSet(solveFlagRectified) {
		cfg.Rectified = c.Bool(solveFlagRectified)
	}
	if err := cfg.Validate(""); err != nil {
		return err
	}

	model, err := transform.ReadCameraModelFile(c.Path(solveFlagCameraModel))
	if err != nil {
		return err
	}
	var set calibration.CorrespondenceSet
	if err := readJSONFile(c.Path(solveFlagCorrespondences), &set); err != nil {
		return err
	}

	solver := posesolver.NewSolver(
		cfg.SolverOptions(),
		posesolver.DefaultPnP{Refine: cfg.RefineEnabled()},
		nil,
		logger.Sublogger("solver"),
	)
	detail, err := solver.SolveWithDetail(set, model)
	if err != nil {
		return err
	}
	printf(c.App.Writer, "rvec: [%.6f %.6f %.6f]",
		detail.RotationVector.X, detail.RotationVector.Y, detail.RotationVector.Z)
	printf(c.App.Writer, "tvec: [%.6f %.6f %.6f]",
		detail.TranslationVector.X, detail.TranslationVector.Y, detail.TranslationVector.Z)
	printf(c.App.Writer, "%s", transformTable(detail.Transform))
	return nil
}

// AverageAction averages the transforms in a file.
func AverageAction(c *cli.Context) error {
	logger, closeLogger := newLogger(c)
	defer closeLogger()
	cfg, err := loadConfig(c, logger)
	if err != nil {
		return err
	}
	opts := cfg.AveragerOptions()
	if c.IsSet(averageFlagPrecision) {
		prec, err := spatialmath.ParsePrecision(c.String(averageFlagPrecision))
		if err != nil {
			return err
		}
		opts.Precision = prec
	}
	if c.Bool(averageFlagNoShortcut) {
		opts.SingleSampleShortcut = false
	}
	if c.Bool(averageFlagSkipIdentity) {
		opts.SkipIdentity = true
	}

	var doc transformsFile
	if err := readJSONFile(c.Path(averageFlagTransforms), &doc); err != nil {
		return err
	}
	averager := poseaverage.NewAverager(opts, 1, logger.Sublogger("average"))
	for _, t := range doc.toTransforms() {
		averager.Add(t)
	}
	avg, err := averager.Current()
	if err != nil {
		if errors.Is(err, poseaverage.ErrNotEnoughSamples) {
			return errors.Wrap(poseaverage.ErrNoPoses, "no usable transforms")
		}
		return err
	}
	printf(c.App.Writer, "%s", transformTable(avg))
	printf(c.App.Writer, "%s", statsTable(averager.Stats(), averager.Dispersion()))

	if out := c.Path(averageFlagOutput); out != "" {
		if err := writeJSONFile(out, transformsFile{Transforms: [][3][4]float64{avg.Elements()}}); err != nil {
			return err
		}
		printf(c.App.Writer, "average written to %s", out)
	}
	return nil
}
