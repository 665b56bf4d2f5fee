package config

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// Wizard provides an interactive configuration wizard
type Wizard struct {
	reader *bufio.Reader
	out    io.Writer
}

// NewWizard creates a wizard reading answers from in and writing prompts to out
func NewWizard(in io.Reader, out io.Writer) *Wizard {
	return &Wizard{
		reader: bufio.NewReader(in),
		out:    out,
	}
}

// Run asks for the settings a first run needs, starting from base
func (w *Wizard) Run(base *Config) (*Config, error) {
	cfg := *base
	validator := NewValidator()

	fmt.Fprintln(w.out, "=== mindvault configuration ===")
	fmt.Fprintln(w.out)

	// Storage path
	fmt.Fprintf(w.out, "Storage directory [%s]: ", cfg.StoragePath)
	path, err := w.readLine()
	if err != nil {
		return nil, err
	}
	if path != "" {
		resolved, err := ResolveStoragePath(path)
		if err != nil {
			return nil, err
		}
		cfg.StoragePath = resolved
	}

	// OpenAI API Key
	fmt.Fprintln(w.out, "Vector search needs an OpenAI API key. Without one, search is keyword only.")
	for {
		fmt.Fprint(w.out, "OpenAI API Key (press Enter to skip): ")
		key, err := w.readLine()
		if err != nil {
			return nil, err
		}
		if key == "" {
			break
		}
		if err := validator.ValidateAPIKey(key); err != nil {
			fmt.Fprintf(w.out, "Error: %v\n", err)
			continue
		}
		cfg.Embedding.APIKey = key
		break
	}

	// Embedding model
	if cfg.Embedding.Enabled() {
		for {
			fmt.Fprintf(w.out, "Embedding model [%s]: ", cfg.Embedding.Model)
			model, err := w.readLine()
			if err != nil {
				return nil, err
			}
			if model == "" {
				break
			}
			if err := validator.ValidateEmbeddingModel(model); err != nil {
				fmt.Fprintf(w.out, "Error: %v\n", err)
				continue
			}
			cfg.Embedding.Model = model
			break
		}
	}

	return &cfg, nil
}

// readLine reads a line from stdin. EOF ends the answer like Enter does.
func (w *Wizard) readLine() (string, error) {
	line, err := w.reader.ReadString('\n')
	if err != nil && err != io.EOF {
		return "", err
	}
	return strings.TrimSpace(line), nil
}
