package main

import (
	"github.com/changyy/captcha-ocr-devkit/pkg/cli"

	// Built-in handler builders, referenced by name from manifests.
	_ "github.com/changyy/captcha-ocr-devkit/pkg/handler/demo"
)

var (
	version   = "dev"
	buildDate = "unknown"
	gitCommit = "unknown"
)

func main() {
	cli.SetVersion(version, buildDate, gitCommit)
	cli.Execute()
}
