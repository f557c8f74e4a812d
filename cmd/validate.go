// File: cmd/validate.go
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/xkilldash9x/erppilot/api/schemas"
)

var validateCmd = &cobra.Command{
	Use:   "validate <script.json>",
	Short: "Check a script file for structural errors without running it.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		script, err := loadScript(args[0])
		if err != nil {
			return err
		}
		if err := schemas.Validate(script); err != nil {
			return fmt.Errorf("script is invalid: %w", err)
		}
		fmt.Printf("script is valid: %d steps\n", len(script.Steps))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}
