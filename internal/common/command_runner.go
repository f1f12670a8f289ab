package common

import (
	"context"
	"fmt"

	"vacalyser/internal/errors"
	"vacalyser/internal/types"
)

// CreateInputFunc builds the operation input from the contents of the argument files
type CreateInputFunc[Input any] func(files []InputFile) (Input, error)

// LogDetailsFunc logs the start of an operation
type LogDetailsFunc[Input any] func(input Input, cfg CommandConfig)

// OperationFunc is a model-backed operation reporting its token usage
type OperationFunc[Input, Output any] func(context.Context, Input) (Output, *types.TokenUsage, error)

// RunAICommand reads the argument files, runs the operation and writes its
// result in the configured format
func RunAICommand[Input, Output any](
	ctx context.Context,
	logger *errors.Logger,
	cmdConfig CommandConfig,
	args []string,
	createInput CreateInputFunc[Input],
	operation OperationFunc[Input, Output],
	logDetails LogDetailsFunc[Input],
) error {
	fileProcessor := NewFileProcessor(logger)
	outputHandler := NewOutputHandler(logger)

	if err := fileProcessor.ValidateOutputFile(cmdConfig.OutputFile); err != nil {
		return err
	}

	files, err := fileProcessor.ValidateAndReadFiles(args...)
	if err != nil {
		return err
	}

	input, err := createInput(files)
	if err != nil {
		return fmt.Errorf("failed to create input: %w", err)
	}

	if logDetails != nil {
		logDetails(input, cmdConfig)
	}

	result, usage, err := operation(ctx, input)
	if err != nil {
		return err
	}

	if usage != nil {
		logger.Info("AI token usage",
			"input_tokens", usage.InputTokens,
			"output_tokens", usage.OutputTokens,
			"total_tokens", usage.TotalTokens,
			"estimated", usage.Estimated)
	}

	return outputHandler.HandleOutput(result, cmdConfig)
}
