// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/Thermoquad/mfmode/pkg/image"
)

var crcCmd = &cobra.Command{
	Use:   "crc [image]",
	Short: "Compute the CRC-16/XMODEM of an application image",
	Long: `Stream an image file or flash partition through the checksum engine and
print the result in the form the factory-test session shows it:

  App CRC: XXXX

The image defaults to image.path from the config. --region selects the
partition from image.partitions; without a partition table the whole file
is checksummed.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runCRC,
}

var crcQuiet bool

func init() {
	rootCmd.AddCommand(crcCmd)
	crcCmd.Flags().String("region", "application", "Partition to checksum")
	crcCmd.Flags().Int("window", image.DefaultWindowSize, "Bytes read per storage request")
	crcCmd.Flags().BoolVarP(&crcQuiet, "quiet", "q", false, "Do not show a progress bar")
}

func runCRC(cmd *cobra.Command, args []string) error {
	if len(args) == 1 {
		cfg.Image.Path = args[0]
	}
	if cfg.Image.Path == "" {
		return fmt.Errorf("no image: pass a file or set image.path")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	flash, err := openImage()
	if err != nil {
		return err
	}
	defer flash.Close()

	region, err := flash.Region(cfg.Image.Region)
	if err != nil {
		return err
	}

	opts := []image.Option{
		image.WithWindowSize(cfg.Image.Window),
		image.WithLogger(logger),
	}
	if !crcQuiet {
		bar := progressbar.NewOptions64(region.Length,
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionSetWidth(40),
			progressbar.OptionSetDescription(region.Name),
			progressbar.OptionShowBytes(true),
			progressbar.OptionOnCompletion(func() { fmt.Fprintln(os.Stderr) }),
		)
		opts = append(opts, image.WithProgressCallback(func(p image.Progress) {
			bar.Set64(p.Done)
		}))
	}

	digest, err := image.NewStreamer(flash, opts...).Checksum(ctx, region.Name)
	if err != nil {
		return err
	}

	fmt.Printf("App CRC: %s\n", digest)
	return nil
}
