// Package main is the grabcut command line tool.
package main

import (
	"os"

	"github.com/edaniels/golog"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"

	"github.com/setanarut/grabcut"
	"github.com/setanarut/grabcut/gmm"
	"github.com/setanarut/grabcut/utils"
)

const (
	flagConfig     = "config"
	flagComponents = "components"
	flagIterations = "iterations"
	flagLambda     = "lambda"
	flagInit       = "init"
	flagWorkers    = "workers"
	flagBackground = "background"
	flagMask       = "mask"
	flagPalette    = "palette"
	flagDebug      = "debug"
)

var logger = golog.NewDevelopmentLogger("grabcut")

func main() {
	if err := realMain(os.Args); err != nil {
		logger.Fatal(err)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:      "grabcut",
		Usage:     "segment the foreground of an image",
		ArgsUsage: "<image> <trimap> <output>",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    flagConfig,
				Aliases: []string{"c"},
				Usage:   "load options from YAML `FILE`",
			},
			&cli.IntFlag{
				Name:  flagComponents,
				Usage: "gaussian components per colour model",
			},
			&cli.IntFlag{
				Name:  flagIterations,
				Usage: "maximum segmentation iterations",
			},
			&cli.Float64Flag{
				Name:  flagLambda,
				Usage: "data term weight",
			},
			&cli.StringFlag{
				Name:  flagInit,
				Usage: "component seeding: quasirandom, kmeans or dominant",
			},
			&cli.IntFlag{
				Name:  flagWorkers,
				Usage: "parallel workers, 0 for one per CPU",
			},
			&cli.StringFlag{
				Name:  flagBackground,
				Value: "#000000",
				Usage: "background colour of the cut-out, or transparent",
			},
			&cli.StringFlag{
				Name:  flagMask,
				Usage: "also write the binary mask to `FILE`",
			},
			&cli.StringFlag{
				Name:  flagPalette,
				Usage: "also write a swatch of the fitted colour models to `FILE`",
			},
			&cli.BoolFlag{
				Name:    flagDebug,
				Aliases: []string{"vvv"},
				Usage:   "enable debug logging",
			},
		},
		Before: func(c *cli.Context) error {
			if c.Bool(flagDebug) {
				logger = golog.NewDebugLogger("grabcut")
			}
			return nil
		},
		Action: run,
	}
}

func realMain(args []string) error {
	return newApp().Run(args)
}

func options(c *cli.Context) (grabcut.Options, error) {
	opt := grabcut.DefaultOptions()
	if c.IsSet(flagConfig) {
		var err error
		if opt, err = grabcut.LoadOptions(c.String(flagConfig)); err != nil {
			return opt, err
		}
	}
	if c.IsSet(flagComponents) {
		opt.Components = c.Int(flagComponents)
	}
	if c.IsSet(flagIterations) {
		opt.MaxIterations = c.Int(flagIterations)
	}
	if c.IsSet(flagLambda) {
		opt.Lambda = c.Float64(flagLambda)
	}
	if c.IsSet(flagInit) {
		m, err := gmm.ParseInitMethod(c.String(flagInit))
		if err != nil {
			return opt, err
		}
		opt.Init = m
	}
	if c.IsSet(flagWorkers) {
		opt.Workers = c.Int(flagWorkers)
	}
	opt.Logger = logger
	return opt, opt.Validate()
}

func run(c *cli.Context) error {
	if c.NArg() != 3 {
		return errors.Errorf("need <image> <trimap> <output>, got %d arguments", c.NArg())
	}
	imagePath, trimapPath, outPath := c.Args().Get(0), c.Args().Get(1), c.Args().Get(2)

	opt, err := options(c)
	if err != nil {
		return err
	}
	bg, err := utils.ParseColor(c.String(flagBackground))
	if err != nil {
		return err
	}

	src, err := utils.ReadImage(imagePath)
	if err != nil {
		return err
	}
	trimap, err := utils.ReadTrimap(trimapPath)
	if err != nil {
		return err
	}
	img, err := grabcut.NewImageFromRGB(src)
	if err != nil {
		return err
	}

	seg, err := grabcut.NewSegmenter(opt)
	if err != nil {
		return err
	}
	if err := seg.Seed(img, trimap); err != nil {
		return err
	}
	res, err := seg.Run()
	if err != nil {
		return err
	}

	if _, _, _, a := bg.RGBA(); a == 0 {
		err = utils.SaveImage(seg.AlphaCutOut(), outPath)
	} else {
		err = utils.SaveImage(seg.CutOut(bg), outPath)
	}
	if err != nil {
		return err
	}
	if c.IsSet(flagMask) {
		if err := utils.SaveMask(res.Mask, c.String(flagMask)); err != nil {
			return err
		}
	}
	if c.IsSet(flagPalette) {
		fg, bgModel := seg.Models()
		if err := utils.SaveModelPalette([]*gmm.MixtureModel{fg, bgModel}, 64, c.String(flagPalette)); err != nil {
			return err
		}
	}

	logger.Infow("segmented",
		"image", imagePath, "state", res.State, "iterations", res.Iterations,
		"foreground", res.Mask.Count(grabcut.Foreground), "output", outPath)
	return nil
}
