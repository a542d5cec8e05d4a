// Package main is the posecore command line tool.
package main

import (
	"log"
	"os"

	"go.viam.com/posecore/cli"
)

func main() {
	app := cli.NewApp(os.Stdout, os.Stderr)
	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
