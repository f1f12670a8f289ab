package cli

import (
	"github.com/spf13/cobra"

	"vacalyser/internal/common"
	"vacalyser/internal/session"
)

var stepsCmd = &cobra.Command{
	Use:   "steps",
	Short: "List the wizard steps and their fields",
	Args:  cobra.NoArgs,
	PreRunE: func(cmd *cobra.Command, args []string) error {
		return resolveFormat(cmd, &stepsConfig)
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := getConfigFromContext(cmd.Context())
		logger := getLoggerFromContext(cmd.Context())

		steps, err := loadSteps(cfg)
		if err != nil {
			return err
		}
		return common.NewOutputHandler(logger).HandleOutput(session.DescribeSteps(steps), stepsConfig)
	},
}

var stepsConfig common.CommandConfig

func init() {
	addOutputFlags(stepsCmd, &stepsConfig)
}
