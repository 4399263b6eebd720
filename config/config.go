/*
	Helpers for loading contextual config.

	Config for powergit means "things that are the host operator's
	concerns" -- where state lives on the machine running the CLI.
	The library itself takes everything through constructor options;
	only cmd/powergit consults this package.
*/
package config

import (
	"os"
	"path/filepath"
)

/*
	Return the home-base path that is the default root for the CLI's
	repository state (object directories and the indexed-pack record).

	The default value is `/var/lib/powergit`;
	this can be overriden by the `POWERGIT_BASE` environment variable.
*/
func GetBasePath() string {
	pth := os.Getenv("POWERGIT_BASE")
	if pth == "" {
		pth = "/var/lib/powergit"
	}
	pth, err := filepath.Abs(pth)
	if err != nil {
		panic(err)
	}
	return pth
}
