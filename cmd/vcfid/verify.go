package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/inodb/vcfid/internal/rewrite"
	"github.com/inodb/vcfid/internal/verify"
)

func newVerifyCmd() *cobra.Command {
	var (
		inputPath  string
		outputPath string
		checksum   string
		blankLines string
	)

	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Verify a rewritten file or print a checksum",
		Long: `With --checksum, print the MD5 digest of a file.

With --input and --output, stream both files and verify the rewrite
contract: the output must be byte-identical to the input everywhere
except the ID column of data lines, which must hold CHROM:POS:REF:ALT.`,
		Example: `  vcfid verify --checksum output.vcf
  vcfid verify -i input.vcf -o output.vcf`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if checksum != "" {
				sum, err := verify.File(checksum)
				if err != nil {
					return err
				}
				fmt.Printf("%s  %s\n", sum, checksum)
				return nil
			}

			if inputPath == "" || outputPath == "" {
				return fmt.Errorf("either --checksum or both --input and --output are required")
			}

			if blankLines == "" {
				blankLines = viper.GetString("rewrite.blank_lines")
			}
			blank, err := rewrite.ParseBlankPolicy(blankLines)
			if err != nil {
				return err
			}

			in, err := os.Open(inputPath)
			if err != nil {
				return fmt.Errorf("open input: %w", err)
			}
			defer in.Close()

			out, err := os.Open(outputPath)
			if err != nil {
				return fmt.Errorf("open output: %w", err)
			}
			defer out.Close()

			stats, err := verify.Compare(in, out, blank)
			if err != nil {
				return err
			}

			fmt.Printf("OK: %d lines (%d headers, %d records)\n",
				stats.Lines, stats.Headers, stats.Records)
			return nil
		},
	}

	cmd.Flags().StringVarP(&inputPath, "input", "i", "", "Original input file")
	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "Rewritten output file")
	cmd.Flags().StringVar(&checksum, "checksum", "", "Print the MD5 digest of this file and exit")
	cmd.Flags().StringVar(&blankLines, "blank-lines", "", "Blank line policy used when the output was produced")

	return cmd
}
