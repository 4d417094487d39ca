package cmd

import (
	"github.com/urfave/cli/v2"

	"github.com/trelay/railstream/cli/render"
	"github.com/trelay/railstream/types"
)

// VersionResponse is the response for the version command.
type VersionResponse struct {
	Version string `json:"version"`
	Commit  string `json:"commit"`
}

// VersionCommand returns the version command. All components share a
// single version.
func VersionCommand(commit string) *cli.Command {
	return &cli.Command{
		Name:  "version",
		Usage: "Show version information",
		Flags: OutputFlags(),
		Action: func(c *cli.Context) error {
			renderer, err := render.NewRenderer(c)
			if err != nil {
				return err
			}
			return renderer.Render(VersionResponse{
				Version: types.Version,
				Commit:  commit,
			})
		},
	}
}
