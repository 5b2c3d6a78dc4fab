// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rongoro/dev/internal/runtime"
)

func newImagesCommand(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "images [provider]",
		Short: "List the images known to a container provider",
		Long: `List the images of a container provider: docker, podman or container
(the engine chosen in the tool configuration, the default).`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			backend, err := s.containerBackend(providerArg(args, 0))
			if err != nil {
				return err
			}
			images, err := backend.Images(cmd.Context())
			if err != nil {
				return wrapError(err, "list images", backend.Name())
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%-40s %-20s %s\n", "REPOSITORY", "TAG", "IMAGE ID")
			for _, img := range images {
				fmt.Fprintf(out, "%-40s %-20s %s\n", img.Repository, img.Tag, img.ID)
			}
			return nil
		},
	}
}

func newRmImageCommand(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "rm_image <image> [provider]",
		Short: "Remove an image from a container provider",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			backend, err := s.containerBackend(providerArg(args, 1))
			if err != nil {
				return err
			}
			if err := backend.RemoveImage(cmd.Context(), args[0]); err != nil {
				return wrapError(err, "remove image", args[0])
			}
			fmt.Fprintln(cmd.OutOrStdout(), SuccessStyle.Render("removed "+args[0]))
			return nil
		},
	}
}

func providerArg(args []string, i int) string {
	if len(args) > i {
		return args[i]
	}
	return runtime.ProviderContainer
}

// containerBackend returns the container backend registered as provider.
func (s *session) containerBackend(provider string) (*runtime.ContainerBackend, error) {
	b, err := s.registry(s.app.stdout).Get(provider)
	if err != nil {
		return nil, wrapError(err, "select provider", provider)
	}
	cb, ok := b.(*runtime.ContainerBackend)
	if !ok {
		return nil, fmt.Errorf("provider %q does not manage container images", provider)
	}
	return cb, nil
}
