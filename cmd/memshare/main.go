// Command memshare runs the memory_share pass over a JSON netlist.
//
// Usage:
//
//	memshare -i design.json -o out.json [module ...]
//
// The optional module arguments select which modules to process; all
// modules are processed when none are given.
package main

import (
	"fmt"
	"os"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	memshare "github.com/opd-ai/go-memshare"
	"github.com/opd-ai/go-memshare/internal/rtlil"
)

func main() {
	if err := memshare.RegisterMemoryShare(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	app := &cli.App{
		Name:  "memshare",
		Usage: "consolidate memory ports in a JSON netlist",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "input",
				Aliases:  []string{"i"},
				Usage:    "input netlist `FILE`",
				Required: true,
			},
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "output netlist `FILE` (defaults to stdout)",
			},
			&cli.BoolFlag{
				Name:    "verbose",
				Aliases: []string{"v"},
				Usage:   "log per-port decisions",
			},
		},
		Action: run,
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	log := logrus.New()
	log.SetOutput(os.Stderr)
	log.SetLevel(logrus.InfoLevel)
	if !c.Bool("verbose") {
		log.SetLevel(logrus.WarnLevel)
	}

	in, err := os.Open(c.String("input"))
	if err != nil {
		return errors.Wrap(err, "opening input netlist")
	}
	defer in.Close()

	design, err := rtlil.ReadJSON(in)
	if err != nil {
		return errors.Wrapf(err, "reading %s", c.String("input"))
	}

	cfg := memshare.Config{Log: logrus.NewEntry(log)}
	if err := memshare.DefaultRegistry.Run("memory_share", design, c.Args().Slice(), cfg); err != nil {
		return err
	}

	out := os.Stdout
	if path := c.String("output"); path != "" {
		f, err := os.Create(path)
		if err != nil {
			return errors.Wrap(err, "creating output netlist")
		}
		defer f.Close()
		out = f
	}

	if err := design.WriteJSON(out); err != nil {
		return errors.Wrap(err, "writing output netlist")
	}
	return nil
}
