/*
Copyright © 2021 Joseph Lewis <joseph@josephlewis.net>

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package cmd

import (
	"os"

	"github.com/josephlewis42/pipesh/core/vos"
	"github.com/spf13/cobra"
)

// imageCmd converts a Docker image to a filesystem image
var imageCmd = &cobra.Command{
	Use:   "image INPUT_TAR OUTPUT_TAR_GZ [TAG]",
	Short: "Convert a docker image to a .tar.gz for use as a root filesystem.",
	Long: `Convert a docker image to a .tar.gz for use as a root filesystem.

Prepare an image by running the following:

	docker pull some-image:latest
	docker save some-image:latest > some-image.tar
	pipesh image some-image.tar root.tar.gz

Then set filesystem.kind to memory and filesystem.image to root.tar.gz in the
configuration.
`,
	Args: cobra.RangeArgs(2, 3),
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true

		inputPath := args[0]
		outputPath := args[1]
		var tag string
		if len(args) == 3 {
			tag = args[2]
		}

		image, err := vos.LoadSavedImage(inputPath, tag)
		if err != nil {
			return err
		}

		out, err := os.Create(outputPath)
		if err != nil {
			return err
		}

		if err := vos.WriteImage(image, out); err != nil {
			out.Close()
			return err
		}
		return out.Close()
	},
}

func init() {
	rootCmd.AddCommand(imageCmd)
}
