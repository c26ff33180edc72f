package extract

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"g11n/internal/textutil"
	"g11n/internal/worker"

	"github.com/rs/zerolog"
)

// Extractor runs a SourceParser over a batch of files and merges the
// results into one id-keyed table.
type Extractor struct {
	// Parser overrides the ScriptParser built from the options.
	Parser  SourceParser
	Workers int
	Logger  zerolog.Logger
}

// NewExtractor creates an Extractor reading files with the given number of
// workers.
func NewExtractor(workers int, logger zerolog.Logger) *Extractor {
	return &Extractor{Workers: workers, Logger: logger}
}

// Extract merges the messages of files, formats them with opts.Format and
// returns the serialized document.
func (e *Extractor) Extract(ctx context.Context, files []string, opts Options) ([]byte, error) {
	if opts.Format == nil {
		return nil, errors.New("extract: no formatter configured")
	}

	msgs, err := e.Collect(ctx, files, opts)
	if err != nil {
		return nil, err
	}

	doc, err := opts.Format.Format(msgs)
	if err != nil {
		return nil, fmt.Errorf("format messages: %w", err)
	}
	out, err := opts.Format.Serialize(doc)
	if err != nil {
		return nil, fmt.Errorf("serialize messages: %w", err)
	}
	return out, nil
}

// ExtractAndWrite runs Extract and writes the result, plus a trailing
// newline, to outFile.
func (e *Extractor) ExtractAndWrite(ctx context.Context, files []string, outFile string, opts Options) error {
	out, err := e.Extract(ctx, files, opts)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(outFile), 0755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	if err := os.WriteFile(outFile, append(out, '\n'), 0644); err != nil {
		return fmt.Errorf("write %s: %w", outFile, err)
	}
	e.Logger.Info().Str("path", outFile).Msg("Wrote extracted messages")
	return nil
}

// Collect parses every file concurrently and merges the descriptors in file
// order. The returned descriptors are keyed by id and have ID cleared.
func (e *Extractor) Collect(ctx context.Context, files []string, opts Options) (map[string]Descriptor, error) {
	parser := e.Parser
	if parser == nil {
		parser = NewScriptParser(opts.AdditionalComponentNames, opts.AdditionalFunctionNames, opts.Pragma)
	}

	pool := worker.NewPool[string, *FileResult](e.Workers, e.Logger,
		func(ctx context.Context, path string) (*FileResult, error) {
			return e.processFile(path, parser, opts)
		},
	)
	tasks := pool.Execute(ctx, files)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	merged := make(map[string]Descriptor)
	for _, task := range tasks {
		if task.Err != nil {
			if opts.Throws {
				return nil, task.Err
			}
			e.Logger.Warn().Err(task.Err).Str("file", task.Input).Msg("Skipping file")
			continue
		}

		for _, msg := range task.Result.Messages {
			if msg.ID == "" {
				err := fmt.Errorf("missing message id for message in %s (defaultMessage %q)",
					task.Input, textutil.Truncate(msg.DefaultMessage, 40))
				if opts.Throws {
					return nil, err
				}
				e.Logger.Warn().Err(err).Msg("Skipping message")
				continue
			}

			if existing, ok := merged[msg.ID]; ok {
				if existing.Description != msg.Description || existing.DefaultMessage != msg.DefaultMessage {
					e.Logger.Warn().
						Str("id", msg.ID).
						Str("file", task.Input).
						Msg("Duplicate message id with different description or defaultMessage")
				}
			}
			merged[msg.ID] = msg
		}
	}

	results := make(map[string]Descriptor, len(merged))
	for id, msg := range merged {
		if opts.Flatten && msg.DefaultMessage != "" {
			hoisted, err := HoistSelectors(msg.DefaultMessage)
			if err != nil {
				err = fmt.Errorf("flatten message %s: %w", id, err)
				if opts.Throws {
					return nil, err
				}
				e.Logger.Warn().Err(err).Msg("Keeping message as written")
			} else {
				msg.DefaultMessage = hoisted
			}
		}
		if opts.RemoveDefaultMessage {
			msg.DefaultMessage = ""
		}
		msg.ID = ""
		results[id] = msg
	}

	e.Logger.Info().Int("files", len(files)).Int("messages", len(results)).Msg("Extracted messages")
	return results, nil
}

func (e *Extractor) processFile(path string, parser SourceParser, opts Options) (*FileResult, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read source file: %w", err)
	}

	result, err := parser.ParseFile(path, src)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	for i := range result.Messages {
		msg := &result.Messages[i]
		if !opts.PreserveWhitespace {
			msg.DefaultMessage = textutil.CollapseWhitespace(msg.DefaultMessage)
		}
		if msg.ID == "" && opts.IDInterpolationPattern != "" {
			id, err := InterpolateID(opts.IDInterpolationPattern, path, msg.DefaultMessage, msg.Description)
			if err != nil {
				return nil, fmt.Errorf("interpolate id in %s: %w", path, err)
			}
			msg.ID = id
		}
		if opts.ExtractSourceLocation {
			line, col := lineCol(src, msg.Start)
			msg.File = path
			msg.Line = intPtr(line)
			msg.Col = intPtr(col)
		} else {
			msg.File = ""
			msg.Start, msg.End, msg.Line, msg.Col = nil, nil, nil, nil
		}
	}

	e.Logger.Debug().Str("file", path).Int("messages", len(result.Messages)).Msg("Parsed file")

	if opts.OnMessages != nil {
		opts.OnMessages(path, result.Messages)
	}
	if result.Meta != nil && opts.OnMeta != nil {
		opts.OnMeta(path, result.Meta)
	}
	return result, nil
}
