// Package cli contains the posecore command line tool.
package cli

import (
	"io"

	"github.com/urfave/cli/v2"
)

// CLI flags.
const (
	debugFlag   = "debug"
	configFlag  = "config"
	logFileFlag = "log-file"

	logFileMaxSizeMB = 10

	offsetFlagX       = "x"
	offsetFlagY       = "y"
	offsetFlagZ       = "z"
	offsetFlagRoll    = "roll"
	offsetFlagPitch   = "pitch"
	offsetFlagYaw     = "yaw"
	offsetFlagDegrees = "degrees"

	calibrateFlagDataset = "dataset"
	calibrateFlagOutput  = "output"
	calibrateFlagRefine  = "refine"
	calibrateFlagPlot    = "plot"

	solveFlagCameraModel     = "camera-model"
	solveFlagCorrespondences = "correspondences"
	solveFlagRectified       = "rectified"

	averageFlagTransforms   = "transforms"
	averageFlagPrecision    = "precision"
	averageFlagNoShortcut   = "no-shortcut"
	averageFlagSkipIdentity = "skip-identity"
	averageFlagOutput       = "output"
)

func offsetFlags() []cli.Flag {
	return []cli.Flag{
		&cli.Float64Flag{Name: offsetFlagX, Usage: "translation along X"},
		&cli.Float64Flag{Name: offsetFlagY, Usage: "translation along Y"},
		&cli.Float64Flag{Name: offsetFlagZ, Usage: "translation along Z"},
		&cli.Float64Flag{Name: offsetFlagRoll, Usage: "rotation about X"},
		&cli.Float64Flag{Name: offsetFlagPitch, Usage: "rotation about Y"},
		&cli.Float64Flag{Name: offsetFlagYaw, Usage: "rotation about Z"},
		&cli.BoolFlag{Name: offsetFlagDegrees, Usage: "read roll, pitch and yaw as degrees"},
	}
}

var app = &cli.App{
	Name:            "posecore",
	Usage:           "calibrate cameras and estimate object poses from point correspondences",
	HideHelpCommand: true,
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:    configFlag,
			Aliases: []string{"c"},
			Usage:   "load pipeline configuration from `FILE`",
		},
		&cli.BoolFlag{
			Name:    debugFlag,
			Aliases: []string{"vvv"},
			Usage:   "enable debug logging",
		},
		&cli.PathFlag{
			Name:  logFileFlag,
			Usage: "also write logs to `FILE`, rotated every 10MB",
		},
	},
	Commands: []*cli.Command{
		{
			Name:      "offset",
			Usage:     "print the homogeneous transform of a translation and roll, pitch, yaw",
			UsageText: "posecore offset [--x X] [--y Y] [--z Z] [--roll R] [--pitch P] [--yaw Y] [--degrees]",
			Flags:     offsetFlags(),
			Action:    OffsetAction,
		},
		{
			Name:   "schema",
			Usage:  "print the JSON schema of the --config document",
			Action: SchemaAction,
		},
		{
			Name:  "calibrate",
			Usage: "calibrate a camera from a recorded chessboard dataset",
			Flags: []cli.Flag{
				&cli.PathFlag{
					Name:     calibrateFlagDataset,
					Usage:    "dataset `FILE` with image_size and observations",
					Required: true,
				},
				&cli.PathFlag{
					Name:  calibrateFlagOutput,
					Usage: "write the camera model to `FILE`",
				},
				&cli.BoolFlag{
					Name:  calibrateFlagRefine,
					Usage: "refine the closed form estimate by minimizing the reprojection error",
					Value: true,
				},
				&cli.PathFlag{
					Name:  calibrateFlagPlot,
					Usage: "save a plot of the per view reprojection error to `FILE` (.png, .svg, .pdf)",
				},
			},
			Action: CalibrateAction,
		},
		{
			Name:  "solve",
			Usage: "solve the pose of an object from its point correspondences",
			Flags: append([]cli.Flag{
				&cli.PathFlag{
					Name:     solveFlagCameraModel,
					Usage:    "camera model `FILE` written by calibrate",
					Required: true,
				},
				&cli.PathFlag{
					Name:     solveFlagCorrespondences,
					Usage:    "correspondence set `FILE` with image_points and model_points",
					Required: true,
				},
				&cli.BoolFlag{
					Name:  solveFlagRectified,
					Usage: "solve against the projection matrix of the camera model",
				},
			}, offsetFlags()...),
			Action: SolveAction,
		},
		{
			Name:  "average",
			Usage: "average a sequence of transforms",
			Flags: []cli.Flag{
				&cli.PathFlag{
					Name:     averageFlagTransforms,
					Usage:    "`FILE` with a transforms array of 3x4 matrices",
					Required: true,
				},
				&cli.StringFlag{
					Name:  averageFlagPrecision,
					Usage: "float64 or float32",
				},
				&cli.BoolFlag{
					Name:  averageFlagNoShortcut,
					Usage: "pass a single sample through the axis-angle round trip",
				},
				&cli.BoolFlag{
					Name:  averageFlagSkipIdentity,
					Usage: "drop identity transforms",
				},
				&cli.PathFlag{
					Name:  averageFlagOutput,
					Usage: "write the averaged transform to `FILE`",
				},
			},
			Action: AverageAction,
		},
	},
}

// NewApp returns a new app with the CLI API, Writer set to out, and ErrWriter
// set to errOut.
func NewApp(out, errOut io.Writer) *cli.App {
	app.Writer = out
	app.ErrWriter = errOut
	return app
}
